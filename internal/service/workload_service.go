package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edstack/academia-api/internal/models"
	appErrors "github.com/edstack/academia-api/pkg/errors"
)

type workloadFacultyRepository interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.Faculty, error)
	Update(ctx context.Context, faculty *models.Faculty) error
	RefreshWorkloadCache(ctx context.Context, tenantID, id string, hours int) error
	ListWorkloads(ctx context.Context, tenantID string) ([]models.FacultyWorkload, error)
}

type workloadSlotRepository interface {
	ListForFaculty(ctx context.Context, tenantID, facultyID string) ([]models.TimetableSlot, error)
}

// UpdateWorkloadLimitRequest changes a faculty member's weekly ceiling.
type UpdateWorkloadLimitRequest struct {
	MaxHoursPerWeek int `json:"max_hours_per_week" validate:"required,min=1,max=60"`
}

// WorkloadService reports and maintains faculty weekly teaching hours.
// Reported hours are always recomputed from active slots; the
// denormalized column on faculty is a display cache only.
type WorkloadService struct {
	faculty   workloadFacultyRepository
	slots     workloadSlotRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewWorkloadService instantiates WorkloadService.
func NewWorkloadService(faculty workloadFacultyRepository, slots workloadSlotRepository, validate *validator.Validate, logger *zap.Logger) *WorkloadService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkloadService{faculty: faculty, slots: slots, validator: validate, logger: logger}
}

// Get recomputes one faculty member's weekly hours from their active
// slots, refreshing the cached column when it has drifted.
func (s *WorkloadService) Get(ctx context.Context, tenantID, facultyID string) (*models.FacultyWorkload, error) {
	member, err := s.faculty.FindByID(ctx, tenantID, facultyID)
	if err != nil {
		return nil, notFoundOrInternal(err, "faculty not found")
	}

	slots, err := s.slots.ListForFaculty(ctx, tenantID, facultyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty slots")
	}

	hours := 0
	for _, slot := range slots {
		hours += slotHours(slot.StartTime, slot.EndTime)
	}

	if hours != member.CurrentHoursPerWeek {
		s.logger.Info("workload cache drift corrected",
			zap.String("faculty_id", facultyID),
			zap.Int("cached", member.CurrentHoursPerWeek),
			zap.Int("recomputed", hours))
		if err := s.faculty.RefreshWorkloadCache(ctx, tenantID, facultyID, hours); err != nil {
			s.logger.Warn("workload cache refresh failed", zap.String("faculty_id", facultyID), zap.Error(err))
		}
	}

	return &models.FacultyWorkload{
		FacultyID:    member.ID,
		FullName:     member.FullName,
		CurrentHours: hours,
		MaxHours:     member.MaxHoursPerWeek,
	}, nil
}

// List returns the workload roster for every active faculty member.
func (s *WorkloadService) List(ctx context.Context, tenantID string) ([]models.FacultyWorkload, error) {
	workloads, err := s.faculty.ListWorkloads(ctx, tenantID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list workloads")
	}
	return workloads, nil
}

// UpdateLimit changes the weekly ceiling for one faculty member.
// Lowering the ceiling below the member's current hours is allowed;
// existing slots stay, new allocations are rejected until hours drop.
func (s *WorkloadService) UpdateLimit(ctx context.Context, tenantID, facultyID string, req UpdateWorkloadLimitRequest) (*models.Faculty, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid workload limit payload")
	}

	member, err := s.faculty.FindByID(ctx, tenantID, facultyID)
	if err != nil {
		return nil, notFoundOrInternal(err, "faculty not found")
	}

	member.MaxHoursPerWeek = req.MaxHoursPerWeek
	if err := s.faculty.Update(ctx, member); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update workload limit")
	}

	s.logger.Info(fmt.Sprintf("workload limit set to %d", req.MaxHoursPerWeek),
		zap.String("tenant_id", tenantID),
		zap.String("faculty_id", facultyID))
	return member, nil
}
