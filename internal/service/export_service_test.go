package service

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edstack/academia-api/internal/models"
	"github.com/edstack/academia-api/internal/repository"
	appErrors "github.com/edstack/academia-api/pkg/errors"
	"github.com/edstack/academia-api/pkg/jobs"
	"github.com/edstack/academia-api/pkg/storage"
)

type exportJobRepoStub struct {
	mu     sync.Mutex
	jobs   map[string]*models.ExportJob
	nextID int
}

func newExportJobRepoStub() *exportJobRepoStub {
	return &exportJobRepoStub{jobs: make(map[string]*models.ExportJob)}
}

func (r *exportJobRepoStub) Create(ctx context.Context, job *models.ExportJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	job.ID = fmt.Sprintf("job-%d", r.nextID)
	if job.Status == "" {
		job.Status = models.ExportStatusPending
	}
	job.CreatedAt = time.Now()
	job.UpdatedAt = job.CreatedAt
	stored := *job
	r.jobs[job.ID] = &stored
	return nil
}

func (r *exportJobRepoStub) FindByID(ctx context.Context, tenantID, id string) (*models.ExportJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok || job.TenantID != tenantID {
		return nil, sql.ErrNoRows
	}
	copied := *job
	return &copied, nil
}

func (r *exportJobRepoStub) Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.FilePath != nil {
		job.FilePath = params.FilePath
	}
	if params.Error != nil {
		job.Error = params.Error
	}
	job.UpdatedAt = time.Now()
	return nil
}

func (r *exportJobRepoStub) ListPending(ctx context.Context, limit int) ([]models.ExportJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var pending []models.ExportJob
	for _, job := range r.jobs {
		if job.Status == models.ExportStatusPending {
			pending = append(pending, *job)
		}
	}
	return pending, nil
}

func (r *exportJobRepoStub) ListCompletedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var expired []models.ExportJob
	for _, job := range r.jobs {
		if job.Status == models.ExportStatusCompleted && job.UpdatedAt.Before(cutoff) {
			expired = append(expired, *job)
		}
	}
	return expired, nil
}

func (r *exportJobRepoStub) age(id string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok {
		job.UpdatedAt = time.Now().Add(-d)
	}
}

func (r *exportJobRepoStub) status(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok {
		return job.Status
	}
	return ""
}

type exportFixture struct {
	service *ExportService
	repo    *exportJobRepoStub
	slots   *slotRepoStub
}

func newExportFixture(t *testing.T) *exportFixture {
	t.Helper()

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)

	slots := newSlotRepoStub()
	slots.add(models.TimetableSlot{
		TenantID: "tenant-1", BatchID: "batch-1", SubjectID: "sub-1", FacultyID: "fac-1",
		DayOfWeek: 1, PeriodNumber: 1, StartTime: "09:00", EndTime: "09:50",
		SlotType: models.SlotTypeLecture, IsActive: true,
	})

	repo := newExportJobRepoStub()
	service := NewExportService(
		repo,
		slots,
		&batchReaderStub{ids: map[string]bool{"batch-1": true}},
		&subjectReaderStub{ids: map[string]bool{"sub-1": true}},
		newFacultyReaderStub(&models.Faculty{ID: "fac-1", TenantID: "tenant-1", FullName: "Ada Lovelace", MaxHoursPerWeek: 18, Active: true}),
		&periodGridStub{grid: models.DefaultPeriodGrid()},
		store,
		signer,
		nil,
		nil,
		ExportConfig{Workers: 1},
	)
	return &exportFixture{service: service, repo: repo, slots: slots}
}

func (fx *exportFixture) createJob(t *testing.T, format string) *models.ExportJob {
	t.Helper()
	job := &models.ExportJob{TenantID: "tenant-1", BatchID: "batch-1", Format: format}
	require.NoError(t, fx.repo.Create(context.Background(), job))
	return job
}

func exportJobPayload(job *models.ExportJob) jobs.Job {
	return jobs.Job{
		ID:   job.ID,
		Type: "timetable_export",
		Payload: exportPayload{
			JobID:    job.ID,
			TenantID: job.TenantID,
			BatchID:  job.BatchID,
			Format:   job.Format,
		},
	}
}

func TestExportServiceEnqueueValidation(t *testing.T) {
	fx := newExportFixture(t)

	_, err := fx.service.Enqueue(context.Background(), "tenant-1", CreateExportRequest{BatchID: "batch-1", Format: "xlsx"})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestExportServiceEnqueueUnknownBatch(t *testing.T) {
	fx := newExportFixture(t)

	_, err := fx.service.Enqueue(context.Background(), "tenant-1", CreateExportRequest{BatchID: "missing", Format: models.ExportFormatCSV})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}

func TestExportServiceRunsJobToCompletion(t *testing.T) {
	fx := newExportFixture(t)
	fx.service.Start(context.Background())
	defer fx.service.Stop()

	job, err := fx.service.Enqueue(context.Background(), "tenant-1", CreateExportRequest{BatchID: "batch-1", Format: models.ExportFormatCSV})
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusPending, job.Status)

	require.Eventually(t, func() bool {
		return fx.repo.status(job.ID) == models.ExportStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	status, err := fx.service.Get(context.Background(), "tenant-1", job.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, status.DownloadURL)
	require.NotNil(t, status.ExpiresAt)
	assert.True(t, status.ExpiresAt.After(time.Now()))
}

func TestExportServiceProcessWritesCSVArtifact(t *testing.T) {
	fx := newExportFixture(t)
	job := fx.createJob(t, models.ExportFormatCSV)

	require.NoError(t, fx.service.process(context.Background(), exportJobPayload(job)))

	stored, err := fx.repo.FindByID(context.Background(), "tenant-1", job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusCompleted, stored.Status)
	require.NotNil(t, stored.FilePath)

	file, _, err := fx.service.Open(mustSign(t, fx.service, stored))
	require.NoError(t, err)
	defer file.Close()
	content, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Contains(t, string(content), "SUB (Ada Lovelace)")
}

func TestExportServiceProcessWritesPDFArtifact(t *testing.T) {
	fx := newExportFixture(t)
	job := fx.createJob(t, models.ExportFormatPDF)

	require.NoError(t, fx.service.process(context.Background(), exportJobPayload(job)))

	stored, err := fx.repo.FindByID(context.Background(), "tenant-1", job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusCompleted, stored.Status)
	require.NotNil(t, stored.FilePath)
	assert.True(t, strings.HasSuffix(*stored.FilePath, ".pdf"))
}

func TestExportServiceProcessMarksFailedJob(t *testing.T) {
	fx := newExportFixture(t)
	job := fx.createJob(t, models.ExportFormatCSV)
	job.BatchID = "missing"

	err := fx.service.process(context.Background(), exportJobPayload(job))
	require.Error(t, err)

	stored, findErr := fx.repo.FindByID(context.Background(), "tenant-1", job.ID)
	require.NoError(t, findErr)
	assert.Equal(t, models.ExportStatusFailed, stored.Status)
	require.NotNil(t, stored.Error)
}

func TestExportServiceGetPendingJobHasNoLink(t *testing.T) {
	fx := newExportFixture(t)
	job := fx.createJob(t, models.ExportFormatCSV)

	status, err := fx.service.Get(context.Background(), "tenant-1", job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusPending, status.Job.Status)
	assert.Empty(t, status.DownloadURL)
}

func TestExportServiceGetIsTenantScoped(t *testing.T) {
	fx := newExportFixture(t)
	job := fx.createJob(t, models.ExportFormatCSV)

	_, err := fx.service.Get(context.Background(), "tenant-2", job.ID)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}

func TestExportServiceOpenRejectsTamperedToken(t *testing.T) {
	fx := newExportFixture(t)

	_, _, err := fx.service.Open("bogus.token.payload.signature")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden))
}

func TestExportServiceStartRecoversPendingJobs(t *testing.T) {
	fx := newExportFixture(t)
	job := fx.createJob(t, models.ExportFormatCSV)

	fx.service.Start(context.Background())
	defer fx.service.Stop()

	require.Eventually(t, func() bool {
		return fx.repo.status(job.ID) == models.ExportStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)
}

func mustSign(t *testing.T, svc *ExportService, job *models.ExportJob) string {
	t.Helper()
	status, err := svc.Get(context.Background(), job.TenantID, job.ID)
	require.NoError(t, err)
	require.NotEmpty(t, status.DownloadURL)
	return status.DownloadURL
}

func TestExportServiceCleanupExpiresArtifacts(t *testing.T) {
	fx := newExportFixture(t)
	job := fx.createJob(t, models.ExportFormatCSV)

	require.NoError(t, fx.service.process(context.Background(), exportJobPayload(job)))
	fx.repo.age(job.ID, 48*time.Hour)

	fx.service.Cleanup(context.Background())

	status, err := fx.service.Get(context.Background(), "tenant-1", job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusCompleted, status.Job.Status)
	assert.Empty(t, status.DownloadURL)
}
