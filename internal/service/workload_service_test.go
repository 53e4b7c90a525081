package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edstack/academia-api/internal/models"
	appErrors "github.com/edstack/academia-api/pkg/errors"
)

type workloadFacultyStub struct {
	members   map[string]*models.Faculty
	workloads []models.FacultyWorkload
	refreshed map[string]int
	updated   *models.Faculty
}

func (w *workloadFacultyStub) FindByID(ctx context.Context, tenantID, id string) (*models.Faculty, error) {
	member, ok := w.members[id]
	if !ok || member.TenantID != tenantID {
		return nil, sql.ErrNoRows
	}
	copied := *member
	return &copied, nil
}

func (w *workloadFacultyStub) Update(ctx context.Context, faculty *models.Faculty) error {
	w.updated = faculty
	return nil
}

func (w *workloadFacultyStub) RefreshWorkloadCache(ctx context.Context, tenantID, id string, hours int) error {
	if w.refreshed == nil {
		w.refreshed = make(map[string]int)
	}
	w.refreshed[id] = hours
	return nil
}

func (w *workloadFacultyStub) ListWorkloads(ctx context.Context, tenantID string) ([]models.FacultyWorkload, error) {
	return w.workloads, nil
}

func newWorkloadFixture(cachedHours int, slots ...models.TimetableSlot) (*WorkloadService, *workloadFacultyStub, *slotRepoStub) {
	faculty := &workloadFacultyStub{members: map[string]*models.Faculty{
		"fac-1": {ID: "fac-1", TenantID: "tenant-1", FullName: "Ada Lovelace", MaxHoursPerWeek: 18, CurrentHoursPerWeek: cachedHours, Active: true},
	}}
	repo := newSlotRepoStub()
	for _, slot := range slots {
		repo.add(slot)
	}
	return NewWorkloadService(faculty, repo, nil, nil), faculty, repo
}

func TestWorkloadServiceGetRecomputesHours(t *testing.T) {
	svc, _, _ := newWorkloadFixture(2,
		models.TimetableSlot{TenantID: "tenant-1", FacultyID: "fac-1", BatchID: "batch-1", DayOfWeek: 1, PeriodNumber: 1, StartTime: "09:00", EndTime: "09:50", IsActive: true},
		models.TimetableSlot{TenantID: "tenant-1", FacultyID: "fac-1", BatchID: "batch-1", DayOfWeek: 2, PeriodNumber: 1, StartTime: "09:00", EndTime: "09:50", IsActive: true},
	)

	workload, err := svc.Get(context.Background(), "tenant-1", "fac-1")
	require.NoError(t, err)
	assert.Equal(t, 2, workload.CurrentHours)
	assert.Equal(t, 18, workload.MaxHours)
	assert.Equal(t, "Ada Lovelace", workload.FullName)
}

func TestWorkloadServiceGetCorrectsCacheDrift(t *testing.T) {
	svc, faculty, _ := newWorkloadFixture(5,
		models.TimetableSlot{TenantID: "tenant-1", FacultyID: "fac-1", BatchID: "batch-1", DayOfWeek: 1, PeriodNumber: 1, StartTime: "09:00", EndTime: "09:50", IsActive: true},
	)

	workload, err := svc.Get(context.Background(), "tenant-1", "fac-1")
	require.NoError(t, err)
	assert.Equal(t, 1, workload.CurrentHours)
	assert.Equal(t, 1, faculty.refreshed["fac-1"])
}

func TestWorkloadServiceGetSkipsRefreshWhenCacheMatches(t *testing.T) {
	svc, faculty, _ := newWorkloadFixture(1,
		models.TimetableSlot{TenantID: "tenant-1", FacultyID: "fac-1", BatchID: "batch-1", DayOfWeek: 1, PeriodNumber: 1, StartTime: "09:00", EndTime: "09:50", IsActive: true},
	)

	_, err := svc.Get(context.Background(), "tenant-1", "fac-1")
	require.NoError(t, err)
	assert.Nil(t, faculty.refreshed)
}

func TestWorkloadServiceGetIgnoresRetiredSlots(t *testing.T) {
	svc, _, _ := newWorkloadFixture(0,
		models.TimetableSlot{TenantID: "tenant-1", FacultyID: "fac-1", BatchID: "batch-1", DayOfWeek: 1, PeriodNumber: 1, StartTime: "09:00", EndTime: "09:50", IsActive: false},
	)

	workload, err := svc.Get(context.Background(), "tenant-1", "fac-1")
	require.NoError(t, err)
	assert.Zero(t, workload.CurrentHours)
}

func TestWorkloadServiceGetUnknownFaculty(t *testing.T) {
	svc, _, _ := newWorkloadFixture(0)

	_, err := svc.Get(context.Background(), "tenant-1", "missing")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}

func TestWorkloadServiceList(t *testing.T) {
	svc, faculty, _ := newWorkloadFixture(0)
	faculty.workloads = []models.FacultyWorkload{
		{FacultyID: "fac-1", FullName: "Ada Lovelace", CurrentHours: 4, MaxHours: 18},
	}

	workloads, err := svc.List(context.Background(), "tenant-1")
	require.NoError(t, err)
	require.Len(t, workloads, 1)
	assert.Equal(t, 4, workloads[0].CurrentHours)
}

func TestWorkloadServiceUpdateLimit(t *testing.T) {
	svc, faculty, _ := newWorkloadFixture(0)

	member, err := svc.UpdateLimit(context.Background(), "tenant-1", "fac-1", UpdateWorkloadLimitRequest{MaxHoursPerWeek: 12})
	require.NoError(t, err)
	assert.Equal(t, 12, member.MaxHoursPerWeek)
	require.NotNil(t, faculty.updated)
	assert.Equal(t, 12, faculty.updated.MaxHoursPerWeek)
}

func TestWorkloadServiceUpdateLimitBelowCurrentHoursAllowed(t *testing.T) {
	svc, _, _ := newWorkloadFixture(10)

	member, err := svc.UpdateLimit(context.Background(), "tenant-1", "fac-1", UpdateWorkloadLimitRequest{MaxHoursPerWeek: 4})
	require.NoError(t, err)
	assert.Equal(t, 4, member.MaxHoursPerWeek)
}

func TestWorkloadServiceUpdateLimitValidation(t *testing.T) {
	svc, _, _ := newWorkloadFixture(0)

	_, err := svc.UpdateLimit(context.Background(), "tenant-1", "fac-1", UpdateWorkloadLimitRequest{MaxHoursPerWeek: 0})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}
