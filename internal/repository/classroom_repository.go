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

const classroomColumns = `id, tenant_id, name, code, building, floor, capacity, room_type, is_available, created_at, updated_at`

// ClassroomRepository provides persistence for classrooms.
type ClassroomRepository struct {
	db *sqlx.DB
}

// NewClassroomRepository creates a new classroom repository.
func NewClassroomRepository(db *sqlx.DB) *ClassroomRepository {
	return &ClassroomRepository{db: db}
}

// List returns classrooms for a tenant with optional filtering and pagination.
func (r *ClassroomRepository) List(ctx context.Context, tenantID string, filter models.ClassroomFilter) ([]models.Classroom, int, error) {
	base := "FROM classrooms WHERE tenant_id = $1"
	args := []interface{}{tenantID}

	if filter.RoomType != "" {
		base += fmt.Sprintf(" AND room_type = $%d", len(args)+1)
		args = append(args, filter.RoomType)
	}
	if filter.Available != nil {
		base += fmt.Sprintf(" AND is_available = $%d", len(args)+1)
		args = append(args, *filter.Available)
	}
	if filter.Search != "" {
		base += fmt.Sprintf(" AND (name ILIKE $%d OR code ILIKE $%d)", len(args)+1, len(args)+1)
		args = append(args, "%"+filter.Search+"%")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"name":     true,
		"code":     true,
		"capacity": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "name"
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", classroomColumns, base, sortBy, order, size, offset)
	var rooms []models.Classroom
	if err := r.db.SelectContext(ctx, &rooms, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list classrooms: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count classrooms: %w", err)
	}

	return rooms, total, nil
}

// ListAvailable returns available rooms ordered by capacity, largest first.
func (r *ClassroomRepository) ListAvailable(ctx context.Context, tenantID string) ([]models.Classroom, error) {
	query := fmt.Sprintf(`SELECT %s FROM classrooms WHERE tenant_id = $1 AND is_available ORDER BY capacity DESC`, classroomColumns)
	var rooms []models.Classroom
	if err := r.db.SelectContext(ctx, &rooms, query, tenantID); err != nil {
		return nil, fmt.Errorf("list available classrooms: %w", err)
	}
	return rooms, nil
}

// FindByID loads a classroom by id within a tenant.
func (r *ClassroomRepository) FindByID(ctx context.Context, tenantID, id string) (*models.Classroom, error) {
	query := fmt.Sprintf(`SELECT %s FROM classrooms WHERE id = $1 AND tenant_id = $2`, classroomColumns)
	var room models.Classroom
	if err := r.db.GetContext(ctx, &room, query, id, tenantID); err != nil {
		return nil, err
	}
	return &room, nil
}

// Create stores a new classroom record.
func (r *ClassroomRepository) Create(ctx context.Context, room *models.Classroom) error {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now
	}
	room.UpdatedAt = now

	const query = `INSERT INTO classrooms (id, tenant_id, name, code, building, floor, capacity, room_type, is_available, created_at, updated_at)
VALUES (:id, :tenant_id, :name, :code, :building, :floor, :capacity, :room_type, :is_available, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, room); err != nil {
		return fmt.Errorf("create classroom: %w", err)
	}
	return nil
}

// Update modifies a classroom record.
func (r *ClassroomRepository) Update(ctx context.Context, room *models.Classroom) error {
	room.UpdatedAt = time.Now().UTC()
	const query = `UPDATE classrooms
SET name = :name, code = :code, building = :building, floor = :floor, capacity = :capacity, room_type = :room_type, is_available = :is_available, updated_at = :updated_at
WHERE id = :id AND tenant_id = :tenant_id`
	if _, err := r.db.NamedExecContext(ctx, query, room); err != nil {
		return fmt.Errorf("update classroom: %w", err)
	}
	return nil
}

// Delete removes a classroom.
func (r *ClassroomRepository) Delete(ctx context.Context, tenantID, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM classrooms WHERE id = $1 AND tenant_id = $2`, id, tenantID); err != nil {
		return fmt.Errorf("delete classroom: %w", err)
	}
	return nil
}
