package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/edstack/academia-api/internal/models"
	"github.com/edstack/academia-api/pkg/config"
	"github.com/edstack/academia-api/pkg/database"
	appErrors "github.com/edstack/academia-api/pkg/errors"
)

type timetableSlotRepository interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.TimetableSlot, error)
	ListActiveByKey(ctx context.Context, tenantID string, dayOfWeek, periodNumber int) ([]models.TimetableSlot, error)
	ListForBatch(ctx context.Context, tenantID, batchID, academicYearID string) ([]models.TimetableSlot, error)
	ListForFaculty(ctx context.Context, tenantID, facultyID string) ([]models.TimetableSlot, error)
	Insert(ctx context.Context, exec sqlx.ExtContext, slot *models.TimetableSlot) error
	UpdateKey(ctx context.Context, exec sqlx.ExtContext, slot *models.TimetableSlot) error
	Retire(ctx context.Context, tenantID, id string) error
	RetireByBatch(ctx context.Context, tenantID, batchID string) error
	Delete(ctx context.Context, tenantID, id string) error
}

type periodResolver interface {
	Resolve(ctx context.Context, tenantID string, periodNumber int) (*models.PeriodTemplate, error)
}

type facultyReader interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.Faculty, error)
	RefreshWorkloadCache(ctx context.Context, tenantID, id string, hours int) error
}

type batchReader interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.Batch, error)
}

type classroomReader interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.Classroom, error)
}

type subjectReader interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.Subject, error)
}

// AllocateSlotRequest describes payload for allocating a timetable slot.
type AllocateSlotRequest struct {
	BatchID        string  `json:"batch_id" validate:"required"`
	SubjectID      string  `json:"subject_id" validate:"required"`
	FacultyID      string  `json:"faculty_id" validate:"required"`
	ClassroomID    *string `json:"classroom_id,omitempty"`
	AcademicYearID *string `json:"academic_year_id,omitempty"`
	DayOfWeek      int     `json:"day_of_week" validate:"required"`
	PeriodNumber   int     `json:"period_number" validate:"required"`
	SlotType       string  `json:"slot_type" validate:"omitempty,oneof=lecture lab tutorial"`
}

// RescheduleSlotRequest moves an existing slot to a new key.
type RescheduleSlotRequest struct {
	DayOfWeek    int     `json:"day_of_week" validate:"required"`
	PeriodNumber int     `json:"period_number" validate:"required"`
	ClassroomID  *string `json:"classroom_id,omitempty"`
}

// TimetableService coordinates slot allocation. The partial unique
// indexes in Postgres remain authoritative for the occupancy
// invariants; the pre-checks here exist to attribute conflicts to a
// dimension before the insert races.
type TimetableService struct {
	slots        timetableSlotRepository
	periods      periodResolver
	faculty      facultyReader
	batches      batchReader
	classrooms   classroomReader
	subjects     subjectReader
	cache        *CacheService
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	maxRetries   int
	retryBackoff time.Duration
}

// NewTimetableService instantiates TimetableService.
func NewTimetableService(
	slots timetableSlotRepository,
	periods periodResolver,
	faculty facultyReader,
	batches batchReader,
	classrooms classroomReader,
	subjects subjectReader,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg config.AllocatorConfig,
) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 50 * time.Millisecond
	}
	return &TimetableService{
		slots:        slots,
		periods:      periods,
		faculty:      faculty,
		batches:      batches,
		classrooms:   classrooms,
		subjects:     subjects,
		cache:        cache,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		maxRetries:   maxRetries,
		retryBackoff: backoff,
	}
}

// Allocate creates a new active slot after validating the period,
// attributing conflicts and enforcing the faculty workload ceiling.
func (s *TimetableService) Allocate(ctx context.Context, tenantID string, req AllocateSlotRequest) (*models.TimetableSlot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot payload")
	}

	period, err := s.resolveTeachingPeriod(ctx, tenantID, req.DayOfWeek, req.PeriodNumber)
	if err != nil {
		return nil, err
	}

	batch, err := s.batches.FindByID(ctx, tenantID, req.BatchID)
	if err != nil {
		return nil, notFoundOrInternal(err, "batch not found")
	}
	if req.AcademicYearID != nil && batch.AcademicYearID != nil && *req.AcademicYearID != *batch.AcademicYearID {
		return nil, appErrors.Clone(appErrors.ErrTenantMismatch, "academic year does not match the batch")
	}
	if _, err := s.subjects.FindByID(ctx, tenantID, req.SubjectID); err != nil {
		return nil, notFoundOrInternal(err, "subject not found")
	}
	member, err := s.faculty.FindByID(ctx, tenantID, req.FacultyID)
	if err != nil {
		return nil, notFoundOrInternal(err, "faculty not found")
	}
	if req.ClassroomID != nil {
		if _, err := s.classrooms.FindByID(ctx, tenantID, *req.ClassroomID); err != nil {
			return nil, notFoundOrInternal(err, "classroom not found")
		}
	}

	// Conflicts are attributed before the workload ceiling so a request
	// that both collides and overloads reports the collision.
	if err := s.ensureNoConflict(ctx, tenantID, req.BatchID, req.FacultyID, req.ClassroomID, req.DayOfWeek, req.PeriodNumber, ""); err != nil {
		s.metrics.RecordAllocation(AllocationOutcomeConflict)
		return nil, err
	}

	currentHours, err := s.facultyHours(ctx, tenantID, req.FacultyID, "")
	if err != nil {
		return nil, err
	}
	addHours := slotHours(period.StartTime, period.EndTime)
	if member.MaxHoursPerWeek > 0 && currentHours+addHours > member.MaxHoursPerWeek {
		s.metrics.RecordAllocation(AllocationOutcomeRejected)
		return nil, appErrors.Clone(appErrors.ErrWorkloadExceeded,
			fmt.Sprintf("allocation would put %s at %d of %d weekly hours", member.FullName, currentHours+addHours, member.MaxHoursPerWeek))
	}

	slotType := req.SlotType
	if slotType == "" {
		slotType = models.SlotTypeLecture
	}
	slot := models.TimetableSlot{
		TenantID:       tenantID,
		BatchID:        req.BatchID,
		SubjectID:      req.SubjectID,
		FacultyID:      req.FacultyID,
		ClassroomID:    req.ClassroomID,
		AcademicYearID: req.AcademicYearID,
		DayOfWeek:      req.DayOfWeek,
		PeriodNumber:   req.PeriodNumber,
		StartTime:      period.StartTime,
		EndTime:        period.EndTime,
		SlotType:       slotType,
		IsActive:       true,
	}

	write := func() error { return s.slots.Insert(ctx, nil, &slot) }
	if err := s.writeWithRetry(ctx, tenantID, req.BatchID, req.FacultyID, req.ClassroomID, req.DayOfWeek, req.PeriodNumber, slot.ID, write); err != nil {
		return nil, err
	}

	if err := s.faculty.RefreshWorkloadCache(ctx, tenantID, req.FacultyID, currentHours+addHours); err != nil {
		s.logger.Warn("workload cache refresh failed", zap.String("faculty_id", req.FacultyID), zap.Error(err))
	}
	s.invalidateTimetables(ctx, tenantID)
	s.metrics.RecordAllocation(AllocationOutcomeCreated)

	s.logger.Info("slot allocated",
		zap.String("tenant_id", tenantID),
		zap.String("slot_id", slot.ID),
		zap.Int("day_of_week", slot.DayOfWeek),
		zap.Int("period_number", slot.PeriodNumber))
	return &slot, nil
}

// Reschedule moves an active slot to a new (day, period, classroom)
// key. Moving a slot onto its own current key is a no-op.
func (s *TimetableService) Reschedule(ctx context.Context, tenantID, slotID string, req RescheduleSlotRequest) (*models.TimetableSlot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reschedule payload")
	}

	slot, err := s.slots.FindByID(ctx, tenantID, slotID)
	if err != nil {
		return nil, notFoundOrInternal(err, "slot not found")
	}
	if !slot.IsActive {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "slot has been retired")
	}

	sameClassroom := equalOptional(slot.ClassroomID, req.ClassroomID)
	if slot.DayOfWeek == req.DayOfWeek && slot.PeriodNumber == req.PeriodNumber && sameClassroom {
		return slot, nil
	}

	period, err := s.resolveTeachingPeriod(ctx, tenantID, req.DayOfWeek, req.PeriodNumber)
	if err != nil {
		return nil, err
	}
	if req.ClassroomID != nil && !sameClassroom {
		if _, err := s.classrooms.FindByID(ctx, tenantID, *req.ClassroomID); err != nil {
			return nil, notFoundOrInternal(err, "classroom not found")
		}
	}

	if err := s.ensureNoConflict(ctx, tenantID, slot.BatchID, slot.FacultyID, req.ClassroomID, req.DayOfWeek, req.PeriodNumber, slot.ID); err != nil {
		s.metrics.RecordAllocation(AllocationOutcomeConflict)
		return nil, err
	}

	member, err := s.faculty.FindByID(ctx, tenantID, slot.FacultyID)
	if err != nil {
		return nil, notFoundOrInternal(err, "faculty not found")
	}
	otherHours, err := s.facultyHours(ctx, tenantID, slot.FacultyID, slot.ID)
	if err != nil {
		return nil, err
	}
	newHours := slotHours(period.StartTime, period.EndTime)
	if member.MaxHoursPerWeek > 0 && otherHours+newHours > member.MaxHoursPerWeek {
		s.metrics.RecordAllocation(AllocationOutcomeRejected)
		return nil, appErrors.Clone(appErrors.ErrWorkloadExceeded,
			fmt.Sprintf("reschedule would put %s at %d of %d weekly hours", member.FullName, otherHours+newHours, member.MaxHoursPerWeek))
	}

	slot.DayOfWeek = req.DayOfWeek
	slot.PeriodNumber = req.PeriodNumber
	slot.ClassroomID = req.ClassroomID
	slot.StartTime = period.StartTime
	slot.EndTime = period.EndTime

	write := func() error { return s.slots.UpdateKey(ctx, nil, slot) }
	if err := s.writeWithRetry(ctx, tenantID, slot.BatchID, slot.FacultyID, req.ClassroomID, req.DayOfWeek, req.PeriodNumber, slot.ID, write); err != nil {
		return nil, err
	}

	if err := s.faculty.RefreshWorkloadCache(ctx, tenantID, slot.FacultyID, otherHours+newHours); err != nil {
		s.logger.Warn("workload cache refresh failed", zap.String("faculty_id", slot.FacultyID), zap.Error(err))
	}
	s.invalidateTimetables(ctx, tenantID)
	return slot, nil
}

// Retire soft-deletes a slot, freeing its occupancy keys. Retiring an
// already retired slot succeeds without touching storage.
func (s *TimetableService) Retire(ctx context.Context, tenantID, slotID string) error {
	slot, err := s.slots.FindByID(ctx, tenantID, slotID)
	if err != nil {
		return notFoundOrInternal(err, "slot not found")
	}
	if !slot.IsActive {
		return nil
	}

	if err := s.slots.Retire(ctx, tenantID, slotID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to retire slot")
	}

	s.refreshFacultyWorkload(ctx, tenantID, slot.FacultyID)
	s.invalidateTimetables(ctx, tenantID)
	return nil
}

// Delete removes a slot row entirely. Retired rows may be deleted too.
func (s *TimetableService) Delete(ctx context.Context, tenantID, slotID string) error {
	slot, err := s.slots.FindByID(ctx, tenantID, slotID)
	if err != nil {
		return notFoundOrInternal(err, "slot not found")
	}

	if err := s.slots.Delete(ctx, tenantID, slotID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete slot")
	}

	if slot.IsActive {
		s.refreshFacultyWorkload(ctx, tenantID, slot.FacultyID)
	}
	s.invalidateTimetables(ctx, tenantID)
	return nil
}

// GetBatchTimetable returns the active slots of a batch with a
// day-by-period grid, served from cache when warm.
func (s *TimetableService) GetBatchTimetable(ctx context.Context, tenantID, batchID, academicYearID string) (*models.BatchTimetable, error) {
	key := BatchTimetableKey(tenantID, batchID)
	if academicYearID == "" {
		var cached models.BatchTimetable
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return &cached, nil
		}
	}

	if _, err := s.batches.FindByID(ctx, tenantID, batchID); err != nil {
		return nil, notFoundOrInternal(err, "batch not found")
	}
	slots, err := s.slots.ListForBatch(ctx, tenantID, batchID, academicYearID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch timetable")
	}

	timetable := &models.BatchTimetable{Slots: slots, Grid: models.BuildGrid(slots)}
	if academicYearID == "" {
		_ = s.cache.Set(ctx, key, timetable, 0)
	}
	return timetable, nil
}

// GetFacultyTimetable returns the active slots taught by one faculty
// member with a day-by-period grid.
func (s *TimetableService) GetFacultyTimetable(ctx context.Context, tenantID, facultyID string) (*models.BatchTimetable, error) {
	key := FacultyTimetableKey(tenantID, facultyID)
	var cached models.BatchTimetable
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	if _, err := s.faculty.FindByID(ctx, tenantID, facultyID); err != nil {
		return nil, notFoundOrInternal(err, "faculty not found")
	}
	slots, err := s.slots.ListForFaculty(ctx, tenantID, facultyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty timetable")
	}

	timetable := &models.BatchTimetable{Slots: slots, Grid: models.BuildGrid(slots)}
	_ = s.cache.Set(ctx, key, timetable, 0)
	return timetable, nil
}

func (s *TimetableService) resolveTeachingPeriod(ctx context.Context, tenantID string, dayOfWeek, periodNumber int) (*models.PeriodTemplate, error) {
	if dayOfWeek < models.MinDayOfWeek || dayOfWeek > models.MaxDayOfWeek {
		return nil, appErrors.Clone(appErrors.ErrInvalidPeriod, fmt.Sprintf("day of week must be between %d and %d", models.MinDayOfWeek, models.MaxDayOfWeek))
	}
	period, err := s.periods.Resolve(ctx, tenantID, periodNumber)
	if err != nil {
		return nil, err
	}
	if period.IsBreak {
		return nil, appErrors.Clone(appErrors.ErrInvalidPeriod, fmt.Sprintf("period %d is a break", periodNumber))
	}
	return period, nil
}

func (s *TimetableService) ensureNoConflict(ctx context.Context, tenantID, batchID, facultyID string, classroomID *string, dayOfWeek, periodNumber int, ignoreID string) error {
	existing, err := s.slots.ListActiveByKey(ctx, tenantID, dayOfWeek, periodNumber)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check slot conflicts")
	}

	for _, item := range existing {
		if item.ID == ignoreID {
			continue
		}
		if item.BatchID == batchID {
			return wrapSlotConflict(models.ConflictBatch, "batch already has a slot at this period", item)
		}
		if item.FacultyID == facultyID {
			return wrapSlotConflict(models.ConflictFaculty, "faculty already teaches at this period", item)
		}
		if classroomID != nil && item.ClassroomID != nil && *item.ClassroomID == *classroomID {
			return wrapSlotConflict(models.ConflictRoom, "classroom already booked at this period", item)
		}
	}
	return nil
}

// writeWithRetry executes the storage write, retrying transient
// conflicts with linear backoff and decoding unique violations raised
// by the partial indexes into attributed conflict errors.
func (s *TimetableService) writeWithRetry(ctx context.Context, tenantID, batchID, facultyID string, classroomID *string, dayOfWeek, periodNumber int, ignoreID string, write func() error) error {
	var lastErr error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		err := write()
		if err == nil {
			return nil
		}
		lastErr = err

		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "slot no longer exists")
		}
		if constraint := database.UniqueConstraint(err); constraint != "" {
			s.metrics.RecordAllocation(AllocationOutcomeConflict)
			// A concurrent writer won the key between the pre-check
			// and the insert. Re-run the attribution against what is
			// now committed.
			if checkErr := s.ensureNoConflict(ctx, tenantID, batchID, facultyID, classroomID, dayOfWeek, periodNumber, ignoreID); checkErr != nil {
				return checkErr
			}
			return appErrors.Clone(appErrors.ErrSlotConflict, conflictMessage(constraint))
		}
		if !database.IsTransient(err) {
			s.metrics.RecordAllocation(AllocationOutcomeError)
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write slot")
		}

		s.metrics.RecordAllocationRetry()
		s.logger.Warn("transient storage conflict, retrying",
			zap.String("tenant_id", tenantID),
			zap.Int("attempt", attempt),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return appErrors.Wrap(ctx.Err(), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "allocation cancelled")
		case <-time.After(s.retryBackoff * time.Duration(attempt)):
		}
	}
	return appErrors.Wrap(lastErr, appErrors.ErrTransientConflict.Code, appErrors.ErrTransientConflict.Status, appErrors.ErrTransientConflict.Message)
}

func (s *TimetableService) facultyHours(ctx context.Context, tenantID, facultyID, excludeSlotID string) (int, error) {
	slots, err := s.slots.ListForFaculty(ctx, tenantID, facultyID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute faculty workload")
	}
	total := 0
	for _, slot := range slots {
		if slot.ID == excludeSlotID {
			continue
		}
		total += slotHours(slot.StartTime, slot.EndTime)
	}
	return total, nil
}

func (s *TimetableService) refreshFacultyWorkload(ctx context.Context, tenantID, facultyID string) {
	hours, err := s.facultyHours(ctx, tenantID, facultyID, "")
	if err != nil {
		s.logger.Warn("workload recompute failed", zap.String("faculty_id", facultyID), zap.Error(err))
		return
	}
	if err := s.faculty.RefreshWorkloadCache(ctx, tenantID, facultyID, hours); err != nil {
		s.logger.Warn("workload cache refresh failed", zap.String("faculty_id", facultyID), zap.Error(err))
	}
}

func (s *TimetableService) invalidateTimetables(ctx context.Context, tenantID string) {
	_ = s.cache.Invalidate(ctx, TenantTimetablePattern(tenantID))
}

func wrapSlotConflict(dimension, message string, existing models.TimetableSlot) error {
	conflict := models.SlotConflict{
		SlotID:       existing.ID,
		Dimension:    dimension,
		BatchID:      existing.BatchID,
		FacultyID:    existing.FacultyID,
		DayOfWeek:    existing.DayOfWeek,
		PeriodNumber: existing.PeriodNumber,
	}
	if existing.ClassroomID != nil {
		conflict.ClassroomID = *existing.ClassroomID
	}
	domainErr := &models.SlotConflictError{Dimension: dimension, Message: message, Conflict: conflict}
	return appErrors.Wrap(domainErr, appErrors.ErrSlotConflict.Code, appErrors.ErrSlotConflict.Status, fmt.Sprintf("slot conflict: %s", message))
}

func conflictMessage(constraint string) string {
	switch constraint {
	case "uq_slot_batch":
		return "batch already has a slot at this period"
	case "uq_slot_faculty":
		return "faculty already teaches at this period"
	case "uq_slot_room":
		return "classroom already booked at this period"
	}
	return "timetable slot conflict"
}

func notFoundOrInternal(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, message)
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "storage failure")
}

func equalOptional(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// slotHours converts a slot's clock span into billable whole hours,
// rounding partial hours up.
func slotHours(start, end string) int {
	s, err1 := time.Parse("15:04", start)
	e, err2 := time.Parse("15:04", end)
	if err1 != nil || err2 != nil {
		return 1
	}
	minutes := int(e.Sub(s).Minutes())
	if minutes <= 0 {
		return 1
	}
	return (minutes + 59) / 60
}
