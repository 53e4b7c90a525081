package service

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edstack/academia-api/internal/models"
	"github.com/edstack/academia-api/internal/repository"
	appErrors "github.com/edstack/academia-api/pkg/errors"
	"github.com/edstack/academia-api/pkg/export"
	"github.com/edstack/academia-api/pkg/jobs"
	"github.com/edstack/academia-api/pkg/storage"
)

const exportJobType = "timetable_export"

type exportJobRepository interface {
	Create(ctx context.Context, job *models.ExportJob) error
	FindByID(ctx context.Context, tenantID, id string) (*models.ExportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error
	ListPending(ctx context.Context, limit int) ([]models.ExportJob, error)
	ListCompletedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error)
}

type exportRenderer interface {
	Render(sheet export.TimetableSheet) ([]byte, error)
}

// CreateExportRequest asks for an asynchronous timetable export.
type CreateExportRequest struct {
	BatchID string `json:"batch_id" validate:"required"`
	Format  string `json:"format" validate:"required,oneof=csv pdf"`
}

// ExportJobStatus is the API view of a job with its download link.
type ExportJobStatus struct {
	Job         *models.ExportJob `json:"job"`
	DownloadURL string            `json:"download_url,omitempty"`
	ExpiresAt   *time.Time        `json:"expires_at,omitempty"`
}

type exportPayload struct {
	JobID    string
	TenantID string
	BatchID  string
	Format   string
}

// ExportConfig governs export behaviour.
type ExportConfig struct {
	Workers    int
	Retries    int
	RetentionD time.Duration
}

// ExportService renders batch timetables to CSV or PDF in background
// workers and serves the artifacts through signed URLs.
type ExportService struct {
	repo      exportJobRepository
	slots     generatorSlotRepository
	batches   batchReader
	subjects  subjectReader
	faculty   facultyReader
	periods   periodGridLister
	store     *storage.LocalStorage
	signer    *storage.SignedURLSigner
	csv       exportRenderer
	pdf       exportRenderer
	queue     *jobs.Queue
	validator *validator.Validate
	logger    *zap.Logger
	retention time.Duration
	quit      chan struct{}
}

// NewExportService wires export dependencies and its worker queue.
func NewExportService(
	repo exportJobRepository,
	slots generatorSlotRepository,
	batches batchReader,
	subjects subjectReader,
	faculty facultyReader,
	periods periodGridLister,
	store *storage.LocalStorage,
	signer *storage.SignedURLSigner,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg ExportConfig,
) *ExportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.RetentionD <= 0 {
		cfg.RetentionD = 24 * time.Hour
	}

	s := &ExportService{
		repo:      repo,
		slots:     slots,
		batches:   batches,
		subjects:  subjects,
		faculty:   faculty,
		periods:   periods,
		store:     store,
		signer:    signer,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		validator: validate,
		logger:    logger,
		retention: cfg.RetentionD,
		quit:      make(chan struct{}),
	}
	s.queue = jobs.NewQueue(exportJobType, s.process, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.Retries,
		Logger:     logger,
	})
	return s
}

// Start launches the export workers and re-enqueues jobs left pending
// by a previous run.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
	go s.cleanupLoop(ctx)

	pending, err := s.repo.ListPending(ctx, 50)
	if err != nil {
		s.logger.Warn("export job recovery failed", zap.Error(err))
		return
	}
	for _, job := range pending {
		s.enqueueJob(job)
	}
	if len(pending) > 0 {
		s.logger.Info("recovered pending export jobs", zap.Int("count", len(pending)))
	}
}

// Stop drains the export workers.
func (s *ExportService) Stop() {
	close(s.quit)
	s.queue.Stop()
}

func (s *ExportService) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.quit:
			return
		case <-ticker.C:
			s.Cleanup(ctx)
		}
	}
}

// Enqueue records an export job and schedules it for rendering.
func (s *ExportService) Enqueue(ctx context.Context, tenantID string, req CreateExportRequest) (*models.ExportJob, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload")
	}
	if _, err := s.batches.FindByID(ctx, tenantID, req.BatchID); err != nil {
		return nil, notFoundOrInternal(err, "batch not found")
	}

	job := &models.ExportJob{
		TenantID: tenantID,
		BatchID:  req.BatchID,
		Format:   req.Format,
		Status:   models.ExportStatusPending,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export job")
	}

	s.enqueueJob(*job)
	return job, nil
}

// Get returns the status of one export job, including a signed
// download link once the artifact is ready.
func (s *ExportService) Get(ctx context.Context, tenantID, jobID string) (*ExportJobStatus, error) {
	job, err := s.repo.FindByID(ctx, tenantID, jobID)
	if err != nil {
		return nil, notFoundOrInternal(err, "export job not found")
	}

	status := &ExportJobStatus{Job: job}
	if job.Status == models.ExportStatusCompleted && job.FilePath != nil && *job.FilePath != "" && s.signer != nil {
		url, expiresAt, err := s.signer.Generate(job.ID, *job.FilePath)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
		}
		status.DownloadURL = url
		status.ExpiresAt = &expiresAt
	}
	return status, nil
}

// Open validates a signed token and opens the exported file for
// streaming to the client.
func (s *ExportService) Open(token string) (*os.File, string, error) {
	_, relPath, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired download token")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export artifact no longer available")
	}
	return file, relPath, nil
}

// Cleanup removes artifacts older than the retention window and
// detaches them from their completed jobs so Get stops issuing links.
func (s *ExportService) Cleanup(ctx context.Context) {
	cutoff := time.Now().Add(-s.retention)
	expired, err := s.repo.ListCompletedBefore(ctx, cutoff, 100)
	if err != nil {
		s.logger.Warn("export cleanup listing failed", zap.Error(err))
	}
	for _, job := range expired {
		if job.FilePath == nil || *job.FilePath == "" {
			continue
		}
		if err := s.store.Delete(*job.FilePath); err != nil {
			s.logger.Warn("export artifact delete failed", zap.String("job_id", job.ID), zap.Error(err))
			continue
		}
		empty := ""
		if err := s.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{FilePath: &empty}); err != nil {
			s.logger.Warn("export job detach failed", zap.String("job_id", job.ID), zap.Error(err))
		}
	}

	removed, err := s.store.CleanupOlderThan(s.retention)
	if err != nil {
		s.logger.Warn("export cleanup failed", zap.Error(err))
		return
	}
	if len(removed)+len(expired) > 0 {
		s.logger.Info("export artifacts removed", zap.Int("count", len(removed)+len(expired)))
	}
}

func (s *ExportService) enqueueJob(job models.ExportJob) {
	err := s.queue.Enqueue(jobs.Job{
		ID:   job.ID,
		Type: exportJobType,
		Payload: exportPayload{
			JobID:    job.ID,
			TenantID: job.TenantID,
			BatchID:  job.BatchID,
			Format:   job.Format,
		},
	})
	if err != nil {
		s.logger.Error("export enqueue failed", zap.String("job_id", job.ID), zap.Error(err))
	}
}

func (s *ExportService) process(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(exportPayload)
	if !ok {
		return fmt.Errorf("unexpected export payload type %T", job.Payload)
	}

	running := models.ExportStatusRunning
	if err := s.repo.Update(ctx, payload.JobID, repository.UpdateExportJobParams{Status: &running}); err != nil {
		return fmt.Errorf("mark export running: %w", err)
	}

	data, filename, err := s.render(ctx, payload)
	if err != nil {
		failed := models.ExportStatusFailed
		message := err.Error()
		if updateErr := s.repo.Update(ctx, payload.JobID, repository.UpdateExportJobParams{Status: &failed, Error: &message}); updateErr != nil {
			s.logger.Error("export failure not recorded", zap.String("job_id", payload.JobID), zap.Error(updateErr))
		}
		return err
	}

	relPath, err := s.store.Save(filename, data)
	if err != nil {
		failed := models.ExportStatusFailed
		message := err.Error()
		_ = s.repo.Update(ctx, payload.JobID, repository.UpdateExportJobParams{Status: &failed, Error: &message})
		return fmt.Errorf("store export artifact: %w", err)
	}

	completed := models.ExportStatusCompleted
	if err := s.repo.Update(ctx, payload.JobID, repository.UpdateExportJobParams{Status: &completed, FilePath: &relPath}); err != nil {
		return fmt.Errorf("mark export completed: %w", err)
	}

	s.logger.Info("export completed",
		zap.String("job_id", payload.JobID),
		zap.String("batch_id", payload.BatchID),
		zap.String("format", payload.Format))
	return nil
}

func (s *ExportService) render(ctx context.Context, payload exportPayload) ([]byte, string, error) {
	batch, err := s.batches.FindByID(ctx, payload.TenantID, payload.BatchID)
	if err != nil {
		return nil, "", fmt.Errorf("load batch: %w", err)
	}
	slots, err := s.slots.ListForBatch(ctx, payload.TenantID, payload.BatchID, "")
	if err != nil {
		return nil, "", fmt.Errorf("load slots: %w", err)
	}

	sheet, err := s.buildSheet(ctx, payload.TenantID, batch, slots)
	if err != nil {
		return nil, "", err
	}

	var renderer exportRenderer
	switch payload.Format {
	case models.ExportFormatPDF:
		renderer = s.pdf
	default:
		renderer = s.csv
	}
	data, err := renderer.Render(sheet)
	if err != nil {
		return nil, "", fmt.Errorf("render %s export: %w", payload.Format, err)
	}

	filename := fmt.Sprintf("timetable_%s_%s.%s", batch.Code, payload.JobID, payload.Format)
	return data, filename, nil
}

func (s *ExportService) buildSheet(ctx context.Context, tenantID string, batch *models.Batch, slots []models.TimetableSlot) (export.TimetableSheet, error) {
	grid, err := s.periods.List(ctx, tenantID)
	if err != nil {
		return export.TimetableSheet{}, fmt.Errorf("load period grid: %w", err)
	}
	var periods []int
	for _, period := range grid {
		if !period.IsBreak {
			periods = append(periods, period.PeriodNumber)
		}
	}
	sort.Ints(periods)

	subjectNames := make(map[string]string)
	facultyNames := make(map[string]string)
	cells := make(map[int]map[int]string)
	for _, slot := range slots {
		subjectName, ok := subjectNames[slot.SubjectID]
		if !ok {
			subject, err := s.subjects.FindByID(ctx, tenantID, slot.SubjectID)
			if err != nil {
				return export.TimetableSheet{}, fmt.Errorf("load subject %s: %w", slot.SubjectID, err)
			}
			subjectName = subject.Code
			subjectNames[slot.SubjectID] = subjectName
		}
		facultyName, ok := facultyNames[slot.FacultyID]
		if !ok {
			member, err := s.faculty.FindByID(ctx, tenantID, slot.FacultyID)
			if err != nil {
				return export.TimetableSheet{}, fmt.Errorf("load faculty %s: %w", slot.FacultyID, err)
			}
			facultyName = member.FullName
			facultyNames[slot.FacultyID] = facultyName
		}

		if cells[slot.DayOfWeek] == nil {
			cells[slot.DayOfWeek] = make(map[int]string)
		}
		cells[slot.DayOfWeek][slot.PeriodNumber] = fmt.Sprintf("%s (%s)", subjectName, facultyName)
	}

	return export.TimetableSheet{
		Title:   fmt.Sprintf("%s - %s", batch.Name, batch.Code),
		Periods: periods,
		Cells:   cells,
	}, nil
}
