package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edstack/academia-api/internal/models"
)

func newPeriodTemplateRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestPeriodTemplateRepositoryListByTenant(t *testing.T) {
	db, mock, cleanup := newPeriodTemplateRepoMock(t)
	defer cleanup()
	repo := NewPeriodTemplateRepository(db)

	tenantID := "tenant-1"
	rows := sqlmock.NewRows([]string{"id", "tenant_id", "period_number", "start_time", "end_time", "label", "is_break", "created_at"}).
		AddRow("p-1", tenantID, 1, "08:00", "08:50", "Period 1", false, time.Now()).
		AddRow("p-2", tenantID, 2, "08:50", "09:40", "Period 2", false, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM period_templates WHERE tenant_id = $1 ORDER BY period_number ASC")).
		WithArgs(tenantID).
		WillReturnRows(rows)

	periods, err := repo.ListByTenant(context.Background(), tenantID)
	require.NoError(t, err)
	require.Len(t, periods, 2)
	assert.Equal(t, 1, periods[0].PeriodNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPeriodTemplateRepositoryListDefaults(t *testing.T) {
	db, mock, cleanup := newPeriodTemplateRepoMock(t)
	defer cleanup()
	repo := NewPeriodTemplateRepository(db)

	rows := sqlmock.NewRows([]string{"id", "tenant_id", "period_number", "start_time", "end_time", "label", "is_break", "created_at"}).
		AddRow("d-1", nil, 1, "09:00", "09:55", "Period 1", false, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM period_templates WHERE tenant_id IS NULL ORDER BY period_number ASC")).
		WillReturnRows(rows)

	periods, err := repo.ListDefaults(context.Background())
	require.NoError(t, err)
	require.Len(t, periods, 1)
	assert.Nil(t, periods[0].TenantID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPeriodTemplateRepositoryReplace(t *testing.T) {
	db, mock, cleanup := newPeriodTemplateRepoMock(t)
	defer cleanup()
	repo := NewPeriodTemplateRepository(db)

	tenantID := "tenant-1"

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM period_templates WHERE tenant_id = $1")).
		WithArgs(tenantID).
		WillReturnResult(sqlmock.NewResult(0, 8))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO period_templates")).
		WithArgs(sqlmock.AnyArg(), tenantID, 1, "08:00", "08:50", "Period 1", false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO period_templates")).
		WithArgs(sqlmock.AnyArg(), tenantID, 2, "08:50", "09:20", "Break", true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	label := func(s string) *string { return &s }
	periods := []models.PeriodTemplate{
		{PeriodNumber: 1, StartTime: "08:00", EndTime: "08:50", Label: label("Period 1")},
		{PeriodNumber: 2, StartTime: "08:50", EndTime: "09:20", Label: label("Break"), IsBreak: true},
	}

	require.NoError(t, repo.Replace(context.Background(), tenantID, periods))
	assert.NoError(t, mock.ExpectationsWereMet())
}
