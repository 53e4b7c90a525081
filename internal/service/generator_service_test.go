package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edstack/academia-api/internal/models"
	appErrors "github.com/edstack/academia-api/pkg/errors"
)

type periodGridStub struct{ grid []models.PeriodTemplate }

func (p *periodGridStub) List(ctx context.Context, tenantID string) ([]models.PeriodTemplate, error) {
	return p.grid, nil
}

type roomListStub struct{ rooms []models.Classroom }

func (r *roomListStub) ListAvailable(ctx context.Context, tenantID string) ([]models.Classroom, error) {
	return r.rooms, nil
}

type generatorFixture struct {
	timetable *timetableFixture
	service   *GeneratorService
}

func newGeneratorFixture(maxHours int, rooms []models.Classroom) *generatorFixture {
	fx := newTimetableFixture(maxHours)
	svc := NewGeneratorService(
		fx.service,
		fx.slots,
		&periodGridStub{grid: models.DefaultPeriodGrid()},
		&batchReaderStub{ids: map[string]bool{"batch-1": true}},
		&roomListStub{rooms: rooms},
		nil,
		nil,
	)
	return &generatorFixture{timetable: fx, service: svc}
}

func TestGeneratorServicePlacesAllLoads(t *testing.T) {
	fx := newGeneratorFixture(30, nil)

	result, err := fx.service.Generate(context.Background(), "tenant-1", GenerateTimetableRequest{
		BatchID: "batch-1",
		SubjectLoads: []SubjectLoadRequest{
			{SubjectID: "sub-1", FacultyID: "fac-1", WeeklyCount: 3},
			{SubjectID: "sub-2", FacultyID: "fac-2", WeeklyCount: 2},
		},
	})
	require.NoError(t, err)
	assert.Len(t, result.Created, 5)
	assert.Empty(t, result.Unplaced)

	// No two created slots share a batch occupancy key.
	keys := make(map[models.SlotKey]bool)
	for _, slot := range result.Created {
		key := models.SlotKey{DayOfWeek: slot.DayOfWeek, PeriodNumber: slot.PeriodNumber}
		assert.False(t, keys[key])
		keys[key] = true
		assert.False(t, models.DefaultPeriodGrid()[slot.PeriodNumber-1].IsBreak)
	}
}

func TestGeneratorServiceBalancesDays(t *testing.T) {
	fx := newGeneratorFixture(30, nil)

	result, err := fx.service.Generate(context.Background(), "tenant-1", GenerateTimetableRequest{
		BatchID: "batch-1",
		SubjectLoads: []SubjectLoadRequest{
			{SubjectID: "sub-1", FacultyID: "fac-1", WeeklyCount: 6},
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Created, 6)

	days := make(map[int]int)
	for _, slot := range result.Created {
		days[slot.DayOfWeek]++
	}
	assert.Len(t, days, 6)
}

func TestGeneratorServiceHonoursPreferredPeriods(t *testing.T) {
	fx := newGeneratorFixture(30, nil)

	result, err := fx.service.Generate(context.Background(), "tenant-1", GenerateTimetableRequest{
		BatchID: "batch-1",
		SubjectLoads: []SubjectLoadRequest{
			{SubjectID: "sub-1", FacultyID: "fac-1", WeeklyCount: 1, Preferred: []int{5}},
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Created, 1)
	assert.Equal(t, 5, result.Created[0].PeriodNumber)
}

func TestGeneratorServiceReportsUnplacedOnWorkloadCeiling(t *testing.T) {
	fx := newGeneratorFixture(2, nil)

	result, err := fx.service.Generate(context.Background(), "tenant-1", GenerateTimetableRequest{
		BatchID: "batch-1",
		SubjectLoads: []SubjectLoadRequest{
			{SubjectID: "sub-1", FacultyID: "fac-1", WeeklyCount: 4},
		},
	})
	require.NoError(t, err)
	assert.Len(t, result.Created, 2)
	assert.Len(t, result.Unplaced, 2)
	assert.Equal(t, "fac-1", result.Unplaced[0].FacultyID)
}

func TestGeneratorServiceRoomConflictLeavesKeyForOtherLoads(t *testing.T) {
	fx := newTimetableFixture(30)
	svc := NewGeneratorService(
		fx.service,
		fx.slots,
		&periodGridStub{grid: []models.PeriodTemplate{
			{PeriodNumber: 1, StartTime: "09:00", EndTime: "09:50"},
		}},
		&batchReaderStub{ids: map[string]bool{"batch-1": true}},
		&roomListStub{rooms: []models.Classroom{{ID: "room-1", TenantID: "tenant-1"}}},
		nil,
		nil,
	)
	// Another batch holds room-1 on Monday period 1. That key stays
	// available for loads that do not need the room.
	room := "room-1"
	fx.slots.add(models.TimetableSlot{
		TenantID: "tenant-1", BatchID: "batch-2", SubjectID: "sub-2", FacultyID: "fac-9",
		ClassroomID: &room, DayOfWeek: 1, PeriodNumber: 1, StartTime: "09:00", EndTime: "09:50", IsActive: true,
	})

	result, err := svc.Generate(context.Background(), "tenant-1", GenerateTimetableRequest{
		BatchID: "batch-1",
		SubjectLoads: []SubjectLoadRequest{
			{SubjectID: "sub-1", FacultyID: "fac-1", WeeklyCount: 5, NeedsRoom: true},
			{SubjectID: "sub-2", FacultyID: "fac-2", WeeklyCount: 1},
		},
	})
	require.NoError(t, err)
	assert.Len(t, result.Created, 6)
	assert.Empty(t, result.Unplaced)

	var mondayFirst *models.TimetableSlot
	for i, slot := range result.Created {
		if slot.DayOfWeek == 1 && slot.PeriodNumber == 1 {
			mondayFirst = &result.Created[i]
		}
	}
	require.NotNil(t, mondayFirst)
	assert.Equal(t, "fac-2", mondayFirst.FacultyID)
	assert.Nil(t, mondayFirst.ClassroomID)
}

func TestGeneratorServiceSkipsOccupiedKeys(t *testing.T) {
	fx := newGeneratorFixture(30, nil)
	// Another batch already books fac-1 on Monday period 1.
	fx.timetable.slots.add(models.TimetableSlot{
		TenantID: "tenant-1", BatchID: "batch-2", SubjectID: "sub-2", FacultyID: "fac-1",
		DayOfWeek: 1, PeriodNumber: 1, StartTime: "09:00", EndTime: "09:50", IsActive: true,
	})

	result, err := fx.service.Generate(context.Background(), "tenant-1", GenerateTimetableRequest{
		BatchID: "batch-1",
		SubjectLoads: []SubjectLoadRequest{
			{SubjectID: "sub-1", FacultyID: "fac-1", WeeklyCount: 1},
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Created, 1)
	created := result.Created[0]
	assert.False(t, created.DayOfWeek == 1 && created.PeriodNumber == 1)
}

func TestGeneratorServiceReplaceExistingRetiresOldSlots(t *testing.T) {
	fx := newGeneratorFixture(30, nil)
	old := fx.timetable.slots.add(models.TimetableSlot{
		TenantID: "tenant-1", BatchID: "batch-1", SubjectID: "sub-2", FacultyID: "fac-2",
		DayOfWeek: 1, PeriodNumber: 1, StartTime: "09:00", EndTime: "09:50", IsActive: true,
	})

	result, err := fx.service.Generate(context.Background(), "tenant-1", GenerateTimetableRequest{
		BatchID:         "batch-1",
		ReplaceExisting: true,
		SubjectLoads: []SubjectLoadRequest{
			{SubjectID: "sub-1", FacultyID: "fac-1", WeeklyCount: 1},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Retired)
	assert.False(t, fx.timetable.slots.slots[old.ID].IsActive)
}

func TestGeneratorServiceAssignsRoomsRoundRobin(t *testing.T) {
	rooms := []models.Classroom{
		{ID: "room-a", TenantID: "tenant-1", IsAvailable: true},
		{ID: "room-b", TenantID: "tenant-1", IsAvailable: true},
	}
	fx := newGeneratorFixture(30, rooms)
	// The allocator validates classroom ids on every placement.
	fx.timetable.service.classrooms = &classroomReaderStub{ids: map[string]bool{"room-a": true, "room-b": true}}

	result, err := fx.service.Generate(context.Background(), "tenant-1", GenerateTimetableRequest{
		BatchID: "batch-1",
		SubjectLoads: []SubjectLoadRequest{
			{SubjectID: "sub-1", FacultyID: "fac-1", WeeklyCount: 2, NeedsRoom: true},
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Created, 2)
	require.NotNil(t, result.Created[0].ClassroomID)
	require.NotNil(t, result.Created[1].ClassroomID)
	assert.NotEqual(t, *result.Created[0].ClassroomID, *result.Created[1].ClassroomID)
}

func TestGeneratorServiceUnknownBatch(t *testing.T) {
	fx := newGeneratorFixture(30, nil)

	_, err := fx.service.Generate(context.Background(), "tenant-1", GenerateTimetableRequest{
		BatchID: "missing",
		SubjectLoads: []SubjectLoadRequest{
			{SubjectID: "sub-1", FacultyID: "fac-1", WeeklyCount: 1},
		},
	})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}

func TestGeneratorServiceRejectsBreakOnlyGrid(t *testing.T) {
	fx := newTimetableFixture(30)
	svc := NewGeneratorService(
		fx.service,
		fx.slots,
		&periodGridStub{grid: []models.PeriodTemplate{{PeriodNumber: 1, StartTime: "10:40", EndTime: "11:00", IsBreak: true}}},
		&batchReaderStub{ids: map[string]bool{"batch-1": true}},
		&roomListStub{},
		nil,
		nil,
	)

	_, err := svc.Generate(context.Background(), "tenant-1", GenerateTimetableRequest{
		BatchID: "batch-1",
		SubjectLoads: []SubjectLoadRequest{
			{SubjectID: "sub-1", FacultyID: "fac-1", WeeklyCount: 1},
		},
	})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidPeriod))
}
