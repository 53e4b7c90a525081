package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edstack/academia-api/internal/models"
)

func newTimetableSlotRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func slotRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "tenant_id", "batch_id", "subject_id", "faculty_id", "classroom_id",
		"academic_year_id", "day_of_week", "period_number", "start_time", "end_time",
		"slot_type", "is_active", "created_at", "updated_at",
	})
}

func TestTimetableSlotRepositoryListActiveByKey(t *testing.T) {
	db, mock, cleanup := newTimetableSlotRepoMock(t)
	defer cleanup()
	repo := NewTimetableSlotRepository(db)

	rows := slotRows().
		AddRow("slot-1", "tenant-1", "batch-1", "sub-1", "fac-1", nil, nil, 2, 3, "10:05", "11:00", models.SlotTypeLecture, true, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM timetable_slots WHERE tenant_id = $1 AND day_of_week = $2 AND period_number = $3 AND is_active")).
		WithArgs("tenant-1", 2, 3).
		WillReturnRows(rows)

	slots, err := repo.ListActiveByKey(context.Background(), "tenant-1", 2, 3)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "batch-1", slots[0].BatchID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableSlotRepositoryListForBatch(t *testing.T) {
	db, mock, cleanup := newTimetableSlotRepoMock(t)
	defer cleanup()
	repo := NewTimetableSlotRepository(db)

	rows := slotRows().
		AddRow("slot-1", "tenant-1", "batch-1", "sub-1", "fac-1", nil, "year-1", 1, 1, "09:00", "09:55", models.SlotTypeLecture, true, time.Now(), time.Now()).
		AddRow("slot-2", "tenant-1", "batch-1", "sub-2", "fac-2", nil, "year-1", 1, 2, "09:55", "10:50", models.SlotTypeLecture, true, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("WHERE tenant_id = $1 AND batch_id = $2 AND is_active AND academic_year_id = $3 ORDER BY day_of_week ASC, period_number ASC")).
		WithArgs("tenant-1", "batch-1", "year-1").
		WillReturnRows(rows)

	slots, err := repo.ListForBatch(context.Background(), "tenant-1", "batch-1", "year-1")
	require.NoError(t, err)
	assert.Len(t, slots, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableSlotRepositoryListForFaculty(t *testing.T) {
	db, mock, cleanup := newTimetableSlotRepoMock(t)
	defer cleanup()
	repo := NewTimetableSlotRepository(db)

	rows := slotRows().
		AddRow("slot-1", "tenant-1", "batch-1", "sub-1", "fac-1", nil, nil, 3, 4, "11:00", "11:55", models.SlotTypeLab, true, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("WHERE tenant_id = $1 AND faculty_id = $2 AND is_active ORDER BY day_of_week ASC, period_number ASC")).
		WithArgs("tenant-1", "fac-1").
		WillReturnRows(rows)

	slots, err := repo.ListForFaculty(context.Background(), "tenant-1", "fac-1")
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, models.SlotTypeLab, slots[0].SlotType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableSlotRepositoryInsert(t *testing.T) {
	db, mock, cleanup := newTimetableSlotRepoMock(t)
	defer cleanup()
	repo := NewTimetableSlotRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_slots")).
		WithArgs(sqlmock.AnyArg(), "tenant-1", "batch-1", "sub-1", "fac-1", nil, nil, 2, 3, "10:05", "11:00", models.SlotTypeLecture, true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	slot := &models.TimetableSlot{
		TenantID:     "tenant-1",
		BatchID:      "batch-1",
		SubjectID:    "sub-1",
		FacultyID:    "fac-1",
		DayOfWeek:    2,
		PeriodNumber: 3,
		StartTime:    "10:05",
		EndTime:      "11:00",
		SlotType:     models.SlotTypeLecture,
		IsActive:     true,
	}

	require.NoError(t, repo.Insert(context.Background(), nil, slot))
	assert.NotEmpty(t, slot.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableSlotRepositoryUpdateKey(t *testing.T) {
	db, mock, cleanup := newTimetableSlotRepoMock(t)
	defer cleanup()
	repo := NewTimetableSlotRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE timetable_slots")).
		WithArgs(3, 4, nil, "11:00", "11:50", sqlmock.AnyArg(), "slot-1", "tenant-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	slot := &models.TimetableSlot{
		ID: "slot-1", TenantID: "tenant-1",
		DayOfWeek: 3, PeriodNumber: 4, StartTime: "11:00", EndTime: "11:50",
	}
	require.NoError(t, repo.UpdateKey(context.Background(), nil, slot))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableSlotRepositoryUpdateKeyMissingRow(t *testing.T) {
	db, mock, cleanup := newTimetableSlotRepoMock(t)
	defer cleanup()
	repo := NewTimetableSlotRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE timetable_slots")).
		WithArgs(3, 4, nil, "11:00", "11:50", sqlmock.AnyArg(), "slot-gone", "tenant-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	slot := &models.TimetableSlot{
		ID: "slot-gone", TenantID: "tenant-1",
		DayOfWeek: 3, PeriodNumber: 4, StartTime: "11:00", EndTime: "11:50",
	}
	err := repo.UpdateKey(context.Background(), nil, slot)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableSlotRepositoryRetire(t *testing.T) {
	db, mock, cleanup := newTimetableSlotRepoMock(t)
	defer cleanup()
	repo := NewTimetableSlotRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE timetable_slots SET is_active = FALSE, updated_at = $3 WHERE id = $1 AND tenant_id = $2")).
		WithArgs("slot-1", "tenant-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Retire(context.Background(), "tenant-1", "slot-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableSlotRepositoryRetireByBatch(t *testing.T) {
	db, mock, cleanup := newTimetableSlotRepoMock(t)
	defer cleanup()
	repo := NewTimetableSlotRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE timetable_slots SET is_active = FALSE, updated_at = $3 WHERE tenant_id = $1 AND batch_id = $2 AND is_active")).
		WithArgs("tenant-1", "batch-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 12))

	require.NoError(t, repo.RetireByBatch(context.Background(), "tenant-1", "batch-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
