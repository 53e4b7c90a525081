package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edstack/academia-api/internal/models"
	appErrors "github.com/edstack/academia-api/pkg/errors"
)

type subjectRepository interface {
	List(ctx context.Context, tenantID string, filter models.SubjectFilter) ([]models.Subject, int, error)
	ListBySemester(ctx context.Context, tenantID, programCode string, semester int) ([]models.Subject, error)
	FindByID(ctx context.Context, tenantID, id string) (*models.Subject, error)
	Create(ctx context.Context, subject *models.Subject) error
	Update(ctx context.Context, subject *models.Subject) error
	Delete(ctx context.Context, tenantID, id string) error
}

// CreateSubjectRequest captures fields for creating subjects.
type CreateSubjectRequest struct {
	ProgramCode string `json:"program_code" validate:"required"`
	Semester    int    `json:"semester" validate:"required,min=1,max=12"`
	Name        string `json:"name" validate:"required"`
	Code        string `json:"code" validate:"required"`
	Credits     int    `json:"credits" validate:"required,min=1,max=10"`
}

// UpdateSubjectRequest modifies subject fields.
type UpdateSubjectRequest struct {
	Name    string `json:"name" validate:"required"`
	Credits int    `json:"credits" validate:"required,min=1,max=10"`
}

// SubjectService handles subject domain workflows.
type SubjectService struct {
	repo      subjectRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubjectService creates a new subject service.
func NewSubjectService(repo subjectRepository, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectService{repo: repo, validator: validate, logger: logger}
}

// List returns paginated subjects for a tenant.
func (s *SubjectService) List(ctx context.Context, tenantID string, filter models.SubjectFilter) ([]models.Subject, *models.Pagination, error) {
	subjects, total, err := s.repo.List(ctx, tenantID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
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
	return subjects, pagination, nil
}

// ListBySemester returns the subjects of one program semester.
func (s *SubjectService) ListBySemester(ctx context.Context, tenantID, programCode string, semester int) ([]models.Subject, error) {
	if programCode == "" || semester < 1 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "program code and semester are required")
	}
	subjects, err := s.repo.ListBySemester(ctx, tenantID, strings.ToUpper(programCode), semester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list semester subjects")
	}
	return subjects, nil
}

// Get returns a subject by identifier.
func (s *SubjectService) Get(ctx context.Context, tenantID, id string) (*models.Subject, error) {
	subject, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "subject not found")
	}
	return subject, nil
}

// Create adds a new subject.
func (s *SubjectService) Create(ctx context.Context, tenantID string, req CreateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}

	subject := &models.Subject{
		TenantID:    tenantID,
		ProgramCode: strings.ToUpper(strings.TrimSpace(req.ProgramCode)),
		Semester:    req.Semester,
		Name:        req.Name,
		Code:        strings.ToUpper(strings.TrimSpace(req.Code)),
		Credits:     req.Credits,
	}

	if err := s.repo.Create(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create subject")
	}
	return subject, nil
}

// Update modifies an existing subject.
func (s *SubjectService) Update(ctx context.Context, tenantID, id string, req UpdateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}

	subject, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "subject not found")
	}

	subject.Name = req.Name
	subject.Credits = req.Credits

	if err := s.repo.Update(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update subject")
	}
	return subject, nil
}

// Delete removes a subject. Slots referencing it block the delete at
// the database level.
func (s *SubjectService) Delete(ctx context.Context, tenantID, id string) error {
	if _, err := s.repo.FindByID(ctx, tenantID, id); err != nil {
		return notFoundOrInternal(err, "subject not found")
	}
	if err := s.repo.Delete(ctx, tenantID, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "subject is referenced by timetable slots")
	}
	return nil
}
