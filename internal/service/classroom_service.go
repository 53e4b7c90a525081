package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edstack/academia-api/internal/models"
	appErrors "github.com/edstack/academia-api/pkg/errors"
)

type classroomRepository interface {
	List(ctx context.Context, tenantID string, filter models.ClassroomFilter) ([]models.Classroom, int, error)
	FindByID(ctx context.Context, tenantID, id string) (*models.Classroom, error)
	Create(ctx context.Context, room *models.Classroom) error
	Update(ctx context.Context, room *models.Classroom) error
	Delete(ctx context.Context, tenantID, id string) error
}

// CreateClassroomRequest captures fields for creating classrooms.
type CreateClassroomRequest struct {
	Name     string  `json:"name" validate:"required"`
	Code     string  `json:"code" validate:"required"`
	Building *string `json:"building,omitempty"`
	Floor    *string `json:"floor,omitempty"`
	Capacity int     `json:"capacity" validate:"required,min=1"`
	RoomType string  `json:"room_type" validate:"required,oneof=lecture lab seminar"`
}

// UpdateClassroomRequest modifies classroom fields.
type UpdateClassroomRequest struct {
	Name        string `json:"name" validate:"required"`
	Capacity    int    `json:"capacity" validate:"required,min=1"`
	RoomType    string `json:"room_type" validate:"required,oneof=lecture lab seminar"`
	IsAvailable *bool  `json:"is_available" validate:"required"`
}

// ClassroomService handles classroom domain workflows.
type ClassroomService struct {
	repo      classroomRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassroomService creates a new classroom service.
func NewClassroomService(repo classroomRepository, validate *validator.Validate, logger *zap.Logger) *ClassroomService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassroomService{repo: repo, validator: validate, logger: logger}
}

// List returns paginated classrooms for a tenant.
func (s *ClassroomService) List(ctx context.Context, tenantID string, filter models.ClassroomFilter) ([]models.Classroom, *models.Pagination, error) {
	rooms, total, err := s.repo.List(ctx, tenantID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classrooms")
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
	return rooms, pagination, nil
}

// Get returns a classroom by identifier.
func (s *ClassroomService) Get(ctx context.Context, tenantID, id string) (*models.Classroom, error) {
	room, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "classroom not found")
	}
	return room, nil
}

// Create adds a new classroom, available by default.
func (s *ClassroomService) Create(ctx context.Context, tenantID string, req CreateClassroomRequest) (*models.Classroom, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid classroom payload")
	}

	room := &models.Classroom{
		TenantID:    tenantID,
		Name:        req.Name,
		Code:        strings.ToUpper(strings.TrimSpace(req.Code)),
		Building:    req.Building,
		Floor:       req.Floor,
		Capacity:    req.Capacity,
		RoomType:    req.RoomType,
		IsAvailable: true,
	}

	if err := s.repo.Create(ctx, room); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create classroom")
	}
	return room, nil
}

// Update modifies an existing classroom.
func (s *ClassroomService) Update(ctx context.Context, tenantID, id string, req UpdateClassroomRequest) (*models.Classroom, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid classroom payload")
	}

	room, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "classroom not found")
	}

	room.Name = req.Name
	room.Capacity = req.Capacity
	room.RoomType = req.RoomType
	if req.IsAvailable != nil {
		room.IsAvailable = *req.IsAvailable
	}

	if err := s.repo.Update(ctx, room); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update classroom")
	}
	return room, nil
}

// Delete removes a classroom. Active slots referencing it block the
// delete at the database level.
func (s *ClassroomService) Delete(ctx context.Context, tenantID, id string) error {
	if _, err := s.repo.FindByID(ctx, tenantID, id); err != nil {
		return notFoundOrInternal(err, "classroom not found")
	}
	if err := s.repo.Delete(ctx, tenantID, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "classroom is referenced by timetable slots")
	}
	return nil
}
