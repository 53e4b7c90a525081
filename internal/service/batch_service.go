package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edstack/academia-api/internal/models"
	appErrors "github.com/edstack/academia-api/pkg/errors"
)

type batchRepository interface {
	List(ctx context.Context, tenantID string, filter models.BatchFilter) ([]models.Batch, int, error)
	FindByID(ctx context.Context, tenantID, id string) (*models.Batch, error)
	Create(ctx context.Context, batch *models.Batch) error
	Update(ctx context.Context, batch *models.Batch) error
	Delete(ctx context.Context, tenantID, id string) error
}

type batchSlotRetirer interface {
	RetireByBatch(ctx context.Context, tenantID, batchID string) error
}

// CreateBatchRequest captures fields for creating batches.
type CreateBatchRequest struct {
	ProgramCode    string  `json:"program_code" validate:"required"`
	Semester       int     `json:"semester" validate:"required,min=1,max=12"`
	Name           string  `json:"name" validate:"required"`
	Code           string  `json:"code" validate:"required"`
	MaxStudents    int     `json:"max_students" validate:"required,min=1"`
	AcademicYearID *string `json:"academic_year_id,omitempty"`
}

// UpdateBatchRequest modifies batch fields.
type UpdateBatchRequest struct {
	Name        string `json:"name" validate:"required"`
	Semester    int    `json:"semester" validate:"required,min=1,max=12"`
	MaxStudents int    `json:"max_students" validate:"required,min=1"`
}

// BatchService handles batch domain workflows.
type BatchService struct {
	repo      batchRepository
	slots     batchSlotRetirer
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBatchService creates a new batch service.
func NewBatchService(repo batchRepository, slots batchSlotRetirer, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *BatchService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchService{repo: repo, slots: slots, cache: cache, validator: validate, logger: logger}
}

// List returns paginated batches for a tenant.
func (s *BatchService) List(ctx context.Context, tenantID string, filter models.BatchFilter) ([]models.Batch, *models.Pagination, error) {
	batches, total, err := s.repo.List(ctx, tenantID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list batches")
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
	return batches, pagination, nil
}

// Get returns a batch by identifier.
func (s *BatchService) Get(ctx context.Context, tenantID, id string) (*models.Batch, error) {
	batch, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "batch not found")
	}
	return batch, nil
}

// Create adds a new batch.
func (s *BatchService) Create(ctx context.Context, tenantID string, req CreateBatchRequest) (*models.Batch, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch payload")
	}

	batch := &models.Batch{
		TenantID:       tenantID,
		ProgramCode:    strings.ToUpper(strings.TrimSpace(req.ProgramCode)),
		Semester:       req.Semester,
		Name:           req.Name,
		Code:           strings.ToUpper(strings.TrimSpace(req.Code)),
		MaxStudents:    req.MaxStudents,
		AcademicYearID: req.AcademicYearID,
	}

	if err := s.repo.Create(ctx, batch); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create batch")
	}
	return batch, nil
}

// Update modifies an existing batch.
func (s *BatchService) Update(ctx context.Context, tenantID, id string, req UpdateBatchRequest) (*models.Batch, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch payload")
	}

	batch, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "batch not found")
	}

	batch.Name = req.Name
	batch.Semester = req.Semester
	batch.MaxStudents = req.MaxStudents

	if err := s.repo.Update(ctx, batch); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update batch")
	}
	return batch, nil
}

// Delete retires the batch's active slots and removes the batch.
func (s *BatchService) Delete(ctx context.Context, tenantID, id string) error {
	if _, err := s.repo.FindByID(ctx, tenantID, id); err != nil {
		return notFoundOrInternal(err, "batch not found")
	}

	if err := s.slots.RetireByBatch(ctx, tenantID, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to retire batch slots")
	}
	if err := s.repo.Delete(ctx, tenantID, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete batch")
	}

	_ = s.cache.Invalidate(ctx, TenantTimetablePattern(tenantID))
	s.logger.Info("batch deleted", zap.String("tenant_id", tenantID), zap.String("batch_id", id))
	return nil
}
