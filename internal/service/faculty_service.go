package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edstack/academia-api/internal/models"
	appErrors "github.com/edstack/academia-api/pkg/errors"
)

type facultyRepository interface {
	List(ctx context.Context, tenantID string, filter models.FacultyFilter) ([]models.Faculty, int, error)
	FindByID(ctx context.Context, tenantID, id string) (*models.Faculty, error)
	Create(ctx context.Context, faculty *models.Faculty) error
	Update(ctx context.Context, faculty *models.Faculty) error
	Deactivate(ctx context.Context, tenantID, id string) error
}

// CreateFacultyRequest captures fields for registering faculty.
// Identity lives in the external provider; only the subject claim and
// profile data are stored here.
type CreateFacultyRequest struct {
	ExternalSubject string  `json:"external_subject" validate:"required"`
	Email           string  `json:"email" validate:"required,email"`
	FullName        string  `json:"full_name" validate:"required"`
	Department      *string `json:"department,omitempty"`
	MaxHoursPerWeek int     `json:"max_hours_per_week" validate:"required,min=1,max=60"`
}

// UpdateFacultyRequest modifies faculty profile fields.
type UpdateFacultyRequest struct {
	Email      string  `json:"email" validate:"required,email"`
	FullName   string  `json:"full_name" validate:"required"`
	Department *string `json:"department,omitempty"`
}

// FacultyService handles faculty domain workflows.
type FacultyService struct {
	repo      facultyRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFacultyService creates a new faculty service.
func NewFacultyService(repo facultyRepository, validate *validator.Validate, logger *zap.Logger) *FacultyService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FacultyService{repo: repo, validator: validate, logger: logger}
}

// List returns paginated faculty for a tenant.
func (s *FacultyService) List(ctx context.Context, tenantID string, filter models.FacultyFilter) ([]models.Faculty, *models.Pagination, error) {
	faculty, total, err := s.repo.List(ctx, tenantID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list faculty")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return faculty, pagination, nil
}

// Get returns a faculty member by identifier.
func (s *FacultyService) Get(ctx context.Context, tenantID, id string) (*models.Faculty, error) {
	member, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "faculty not found")
	}
	return member, nil
}

// Create registers a new faculty member.
func (s *FacultyService) Create(ctx context.Context, tenantID string, req CreateFacultyRequest) (*models.Faculty, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid faculty payload")
	}

	member := &models.Faculty{
		TenantID:        tenantID,
		ExternalSubject: req.ExternalSubject,
		Email:           strings.ToLower(strings.TrimSpace(req.Email)),
		FullName:        req.FullName,
		Department:      req.Department,
		MaxHoursPerWeek: req.MaxHoursPerWeek,
		Active:          true,
	}

	if err := s.repo.Create(ctx, member); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create faculty")
	}
	return member, nil
}

// Update modifies faculty profile fields.
func (s *FacultyService) Update(ctx context.Context, tenantID, id string, req UpdateFacultyRequest) (*models.Faculty, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid faculty payload")
	}

	member, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "faculty not found")
	}

	member.Email = strings.ToLower(strings.TrimSpace(req.Email))
	member.FullName = req.FullName
	member.Department = req.Department

	if err := s.repo.Update(ctx, member); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update faculty")
	}
	return member, nil
}

// Deactivate marks a faculty member inactive. Existing slots stay
// allocated; reassignment is a timetable operation.
func (s *FacultyService) Deactivate(ctx context.Context, tenantID, id string) error {
	if _, err := s.repo.FindByID(ctx, tenantID, id); err != nil {
		return notFoundOrInternal(err, "faculty not found")
	}
	if err := s.repo.Deactivate(ctx, tenantID, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate faculty")
	}
	s.logger.Info("faculty deactivated", zap.String("tenant_id", tenantID), zap.String("faculty_id", id))
	return nil
}
