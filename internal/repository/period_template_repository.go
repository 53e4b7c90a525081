package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edstack/academia-api/internal/models"
	"github.com/edstack/academia-api/pkg/database"
)

// PeriodTemplateRepository manages per-tenant period grids plus the
// system default grid (rows with NULL tenant_id).
type PeriodTemplateRepository struct {
	db *sqlx.DB
}

// NewPeriodTemplateRepository builds the repository.
func NewPeriodTemplateRepository(db *sqlx.DB) *PeriodTemplateRepository {
	return &PeriodTemplateRepository{db: db}
}

// ListByTenant returns the tenant's own periods ordered by number.
func (r *PeriodTemplateRepository) ListByTenant(ctx context.Context, tenantID string) ([]models.PeriodTemplate, error) {
	const query = `SELECT id, tenant_id, period_number, start_time, end_time, label, is_break, created_at
FROM period_templates WHERE tenant_id = $1 ORDER BY period_number ASC`
	var periods []models.PeriodTemplate
	if err := r.db.SelectContext(ctx, &periods, query, tenantID); err != nil {
		return nil, fmt.Errorf("list tenant periods: %w", err)
	}
	return periods, nil
}

// ListDefaults returns the system default grid.
func (r *PeriodTemplateRepository) ListDefaults(ctx context.Context) ([]models.PeriodTemplate, error) {
	const query = `SELECT id, tenant_id, period_number, start_time, end_time, label, is_break, created_at
FROM period_templates WHERE tenant_id IS NULL ORDER BY period_number ASC`
	var periods []models.PeriodTemplate
	if err := r.db.SelectContext(ctx, &periods, query); err != nil {
		return nil, fmt.Errorf("list default periods: %w", err)
	}
	return periods, nil
}

// Replace swaps the tenant's grid for the provided periods in one
// transaction, mirroring the delete-then-insert seed behaviour.
func (r *PeriodTemplateRepository) Replace(ctx context.Context, tenantID string, periods []models.PeriodTemplate) error {
	return database.WithinTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM period_templates WHERE tenant_id = $1`, tenantID); err != nil {
			return fmt.Errorf("clear tenant periods: %w", err)
		}

		now := time.Now().UTC()
		const insert = `INSERT INTO period_templates (id, tenant_id, period_number, start_time, end_time, label, is_break, created_at)
VALUES (:id, :tenant_id, :period_number, :start_time, :end_time, :label, :is_break, :created_at)`
		for i := range periods {
			period := &periods[i]
			if period.ID == "" {
				period.ID = uuid.NewString()
			}
			period.TenantID = &tenantID
			if period.CreatedAt.IsZero() {
				period.CreatedAt = now
			}
			if _, err := sqlx.NamedExecContext(ctx, tx, insert, period); err != nil {
				return fmt.Errorf("insert period %d: %w", period.PeriodNumber, err)
			}
		}
		return nil
	})
}
