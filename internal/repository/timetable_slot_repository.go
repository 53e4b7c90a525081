package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edstack/academia-api/internal/models"
)

const slotColumns = `id, tenant_id, batch_id, subject_id, faculty_id, classroom_id, academic_year_id, day_of_week, period_number, start_time, end_time, slot_type, is_active, created_at, updated_at`

// TimetableSlotRepository provides persistence for the slot allocation
// ledger. Every query filters by tenant_id.
type TimetableSlotRepository struct {
	db *sqlx.DB
}

// NewTimetableSlotRepository creates a new slot repository.
func NewTimetableSlotRepository(db *sqlx.DB) *TimetableSlotRepository {
	return &TimetableSlotRepository{db: db}
}

func (r *TimetableSlotRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByID loads a slot by id within a tenant.
func (r *TimetableSlotRepository) FindByID(ctx context.Context, tenantID, id string) (*models.TimetableSlot, error) {
	query := fmt.Sprintf(`SELECT %s FROM timetable_slots WHERE id = $1 AND tenant_id = $2`, slotColumns)
	var slot models.TimetableSlot
	if err := r.db.GetContext(ctx, &slot, query, id, tenantID); err != nil {
		return nil, err
	}
	return &slot, nil
}

// ListActiveByKey returns every active slot occupying the (day, period)
// key in the tenant, across batches, faculty and rooms. The caller
// classifies which uniqueness dimension an allocation would violate.
func (r *TimetableSlotRepository) ListActiveByKey(ctx context.Context, tenantID string, dayOfWeek, periodNumber int) ([]models.TimetableSlot, error) {
	query := fmt.Sprintf(`SELECT %s FROM timetable_slots WHERE tenant_id = $1 AND day_of_week = $2 AND period_number = $3 AND is_active`, slotColumns)
	var slots []models.TimetableSlot
	if err := r.db.SelectContext(ctx, &slots, query, tenantID, dayOfWeek, periodNumber); err != nil {
		return nil, fmt.Errorf("list slots by key: %w", err)
	}
	return slots, nil
}

// ListForBatch returns active slots for a batch ordered by day and period.
func (r *TimetableSlotRepository) ListForBatch(ctx context.Context, tenantID, batchID string, academicYearID string) ([]models.TimetableSlot, error) {
	query := fmt.Sprintf(`SELECT %s FROM timetable_slots WHERE tenant_id = $1 AND batch_id = $2 AND is_active`, slotColumns)
	args := []interface{}{tenantID, batchID}
	if academicYearID != "" {
		query += ` AND academic_year_id = $3`
		args = append(args, academicYearID)
	}
	query += ` ORDER BY day_of_week ASC, period_number ASC`

	var slots []models.TimetableSlot
	if err := r.db.SelectContext(ctx, &slots, query, args...); err != nil {
		return nil, fmt.Errorf("list batch slots: %w", err)
	}
	return slots, nil
}

// ListForFaculty returns active slots taught by a faculty member.
func (r *TimetableSlotRepository) ListForFaculty(ctx context.Context, tenantID, facultyID string) ([]models.TimetableSlot, error) {
	query := fmt.Sprintf(`SELECT %s FROM timetable_slots WHERE tenant_id = $1 AND faculty_id = $2 AND is_active ORDER BY day_of_week ASC, period_number ASC`, slotColumns)
	var slots []models.TimetableSlot
	if err := r.db.SelectContext(ctx, &slots, query, tenantID, facultyID); err != nil {
		return nil, fmt.Errorf("list faculty slots: %w", err)
	}
	return slots, nil
}

// Insert stores a new slot. Unique-violation errors from the partial
// indexes surface unwrapped pq errors for the service to classify.
func (r *TimetableSlotRepository) Insert(ctx context.Context, exec sqlx.ExtContext, slot *models.TimetableSlot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = now
	}
	slot.UpdatedAt = now

	const query = `INSERT INTO timetable_slots (id, tenant_id, batch_id, subject_id, faculty_id, classroom_id, academic_year_id, day_of_week, period_number, start_time, end_time, slot_type, is_active, created_at, updated_at)
VALUES (:id, :tenant_id, :batch_id, :subject_id, :faculty_id, :classroom_id, :academic_year_id, :day_of_week, :period_number, :start_time, :end_time, :slot_type, :is_active, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, slot); err != nil {
		return fmt.Errorf("insert timetable slot: %w", err)
	}
	return nil
}

// UpdateKey moves a slot to a new (day, period, classroom) key with
// times re-derived from the period template.
func (r *TimetableSlotRepository) UpdateKey(ctx context.Context, exec sqlx.ExtContext, slot *models.TimetableSlot) error {
	slot.UpdatedAt = time.Now().UTC()
	const query = `UPDATE timetable_slots
SET day_of_week = :day_of_week, period_number = :period_number, classroom_id = :classroom_id, start_time = :start_time, end_time = :end_time, updated_at = :updated_at
WHERE id = :id AND tenant_id = :tenant_id`
	res, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, slot)
	if err != nil {
		return fmt.Errorf("update timetable slot: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Retire soft-deletes a slot, freeing its keys for reuse.
func (r *TimetableSlotRepository) Retire(ctx context.Context, tenantID, id string) error {
	const query = `UPDATE timetable_slots SET is_active = FALSE, updated_at = $3 WHERE id = $1 AND tenant_id = $2`
	if _, err := r.db.ExecContext(ctx, query, id, tenantID, time.Now().UTC()); err != nil {
		return fmt.Errorf("retire timetable slot: %w", err)
	}
	return nil
}

// RetireByBatch soft-deletes every active slot of a batch. Used when a
// timetable is regenerated from scratch.
func (r *TimetableSlotRepository) RetireByBatch(ctx context.Context, tenantID, batchID string) error {
	const query = `UPDATE timetable_slots SET is_active = FALSE, updated_at = $3 WHERE tenant_id = $1 AND batch_id = $2 AND is_active`
	if _, err := r.db.ExecContext(ctx, query, tenantID, batchID, time.Now().UTC()); err != nil {
		return fmt.Errorf("retire batch slots: %w", err)
	}
	return nil
}

// Delete hard-deletes a slot by id.
func (r *TimetableSlotRepository) Delete(ctx context.Context, tenantID, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM timetable_slots WHERE id = $1 AND tenant_id = $2`, id, tenantID); err != nil {
		return fmt.Errorf("delete timetable slot: %w", err)
	}
	return nil
}
