package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edstack/academia-api/internal/models"
)

const facultyColumns = `id, tenant_id, external_subject, email, full_name, department, max_hours_per_week, current_hours_per_week, active, created_at, updated_at`

// FacultyRepository provides persistence for faculty users.
type FacultyRepository struct {
	db *sqlx.DB
}

// NewFacultyRepository creates a new faculty repository.
func NewFacultyRepository(db *sqlx.DB) *FacultyRepository {
	return &FacultyRepository{db: db}
}

// List returns faculty for a tenant with optional filtering and pagination.
func (r *FacultyRepository) List(ctx context.Context, tenantID string, filter models.FacultyFilter) ([]models.Faculty, int, error) {
	base := "FROM faculty WHERE tenant_id = $1"
	args := []interface{}{tenantID}

	if filter.Search != "" {
		base += fmt.Sprintf(" AND (full_name ILIKE $%d OR email ILIKE $%d)", len(args)+1, len(args)+1)
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.Department != "" {
		base += fmt.Sprintf(" AND department = $%d", len(args)+1)
		args = append(args, filter.Department)
	}
	if filter.Active != nil {
		base += fmt.Sprintf(" AND active = $%d", len(args)+1)
		args = append(args, *filter.Active)
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"full_name":  true,
		"email":      true,
		"created_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "full_name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", facultyColumns, base, sortBy, order, size, offset)
	var faculty []models.Faculty
	if err := r.db.SelectContext(ctx, &faculty, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list faculty: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count faculty: %w", err)
	}

	return faculty, total, nil
}

// FindByID loads a faculty member by id within a tenant.
func (r *FacultyRepository) FindByID(ctx context.Context, tenantID, id string) (*models.Faculty, error) {
	query := fmt.Sprintf(`SELECT %s FROM faculty WHERE id = $1 AND tenant_id = $2`, facultyColumns)
	var faculty models.Faculty
	if err := r.db.GetContext(ctx, &faculty, query, id, tenantID); err != nil {
		return nil, err
	}
	return &faculty, nil
}

// Create stores a new faculty record.
func (r *FacultyRepository) Create(ctx context.Context, faculty *models.Faculty) error {
	if faculty.ID == "" {
		faculty.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if faculty.CreatedAt.IsZero() {
		faculty.CreatedAt = now
	}
	faculty.UpdatedAt = now

	const query = `INSERT INTO faculty (id, tenant_id, external_subject, email, full_name, department, max_hours_per_week, current_hours_per_week, active, created_at, updated_at)
VALUES (:id, :tenant_id, :external_subject, :email, :full_name, :department, :max_hours_per_week, :current_hours_per_week, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, faculty); err != nil {
		return fmt.Errorf("create faculty: %w", err)
	}
	return nil
}

// Update modifies a faculty record.
func (r *FacultyRepository) Update(ctx context.Context, faculty *models.Faculty) error {
	faculty.UpdatedAt = time.Now().UTC()
	const query = `UPDATE faculty
SET email = :email, full_name = :full_name, department = :department, max_hours_per_week = :max_hours_per_week, active = :active, updated_at = :updated_at
WHERE id = :id AND tenant_id = :tenant_id`
	if _, err := r.db.NamedExecContext(ctx, query, faculty); err != nil {
		return fmt.Errorf("update faculty: %w", err)
	}
	return nil
}

// Deactivate marks a faculty member inactive.
func (r *FacultyRepository) Deactivate(ctx context.Context, tenantID, id string) error {
	const query = `UPDATE faculty SET active = FALSE, updated_at = $3 WHERE id = $1 AND tenant_id = $2`
	if _, err := r.db.ExecContext(ctx, query, id, tenantID, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate faculty: %w", err)
	}
	return nil
}

// RefreshWorkloadCache writes the recomputed weekly hours into the
// denormalized counter column.
func (r *FacultyRepository) RefreshWorkloadCache(ctx context.Context, tenantID, id string, hours int) error {
	const query = `UPDATE faculty SET current_hours_per_week = $3, updated_at = $4 WHERE id = $1 AND tenant_id = $2`
	if _, err := r.db.ExecContext(ctx, query, id, tenantID, hours, time.Now().UTC()); err != nil {
		return fmt.Errorf("refresh workload cache: %w", err)
	}
	return nil
}

// ListWorkloads returns the workload roster for a tenant ordered by name.
func (r *FacultyRepository) ListWorkloads(ctx context.Context, tenantID string) ([]models.FacultyWorkload, error) {
	const query = `SELECT id AS faculty_id, full_name, current_hours_per_week AS current_hours, max_hours_per_week AS max_hours
FROM faculty WHERE tenant_id = $1 AND active ORDER BY full_name ASC`
	var workloads []models.FacultyWorkload
	if err := r.db.SelectContext(ctx, &workloads, query, tenantID); err != nil {
		return nil, fmt.Errorf("list faculty workloads: %w", err)
	}
	return workloads, nil
}
