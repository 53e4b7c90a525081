package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edstack/academia-api/internal/models"
	appErrors "github.com/edstack/academia-api/pkg/errors"
)

type tenantRepository interface {
	List(ctx context.Context) ([]models.Tenant, error)
	FindByID(ctx context.Context, id string) (*models.Tenant, error)
	Create(ctx context.Context, tenant *models.Tenant) error
	Delete(ctx context.Context, id string) error
}

// CreateTenantRequest registers a new institution.
type CreateTenantRequest struct {
	Name string `json:"name" validate:"required"`
	Code string `json:"code" validate:"required,alphanum"`
}

// TenantService handles platform-level tenant administration.
type TenantService struct {
	repo      tenantRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTenantService creates a new tenant service.
func NewTenantService(repo tenantRepository, validate *validator.Validate, logger *zap.Logger) *TenantService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TenantService{repo: repo, validator: validate, logger: logger}
}

// List returns every registered tenant.
func (s *TenantService) List(ctx context.Context) ([]models.Tenant, error) {
	tenants, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tenants")
	}
	return tenants, nil
}

// Get returns one tenant by identifier.
func (s *TenantService) Get(ctx context.Context, id string) (*models.Tenant, error) {
	tenant, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "tenant not found")
	}
	return tenant, nil
}

// Create registers a new tenant.
func (s *TenantService) Create(ctx context.Context, req CreateTenantRequest) (*models.Tenant, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid tenant payload")
	}

	tenant := &models.Tenant{
		Name:   req.Name,
		Code:   strings.ToUpper(strings.TrimSpace(req.Code)),
		Active: true,
	}
	if err := s.repo.Create(ctx, tenant); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create tenant")
	}

	s.logger.Info("tenant created", zap.String("tenant_id", tenant.ID), zap.String("code", tenant.Code))
	return tenant, nil
}

// Delete removes a tenant; its scoped rows cascade in the database.
func (s *TenantService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return notFoundOrInternal(err, "tenant not found")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete tenant")
	}
	s.logger.Info("tenant deleted", zap.String("tenant_id", id))
	return nil
}
