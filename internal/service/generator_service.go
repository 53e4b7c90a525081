package service

import (
	"context"
	"errors"
	"sort"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edstack/academia-api/internal/models"
	appErrors "github.com/edstack/academia-api/pkg/errors"
)

type slotAllocator interface {
	Allocate(ctx context.Context, tenantID string, req AllocateSlotRequest) (*models.TimetableSlot, error)
	Retire(ctx context.Context, tenantID, slotID string) error
}

type generatorSlotRepository interface {
	ListForBatch(ctx context.Context, tenantID, batchID, academicYearID string) ([]models.TimetableSlot, error)
	ListForFaculty(ctx context.Context, tenantID, facultyID string) ([]models.TimetableSlot, error)
}

type periodGridLister interface {
	List(ctx context.Context, tenantID string) ([]models.PeriodTemplate, error)
}

type generatorBatchReader interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.Batch, error)
}

type classroomLister interface {
	ListAvailable(ctx context.Context, tenantID string) ([]models.Classroom, error)
}

// SubjectLoadRequest asks for a number of weekly occurrences of a
// subject taught by one faculty member.
type SubjectLoadRequest struct {
	SubjectID   string `json:"subject_id" validate:"required"`
	FacultyID   string `json:"faculty_id" validate:"required"`
	WeeklyCount int    `json:"weekly_count" validate:"required,min=1,max=36"`
	SlotType    string `json:"slot_type" validate:"omitempty,oneof=lecture lab tutorial"`
	Preferred   []int  `json:"preferred_periods,omitempty"`
	NeedsRoom   bool   `json:"needs_room"`
}

// GenerateTimetableRequest drives greedy timetable generation for one batch.
type GenerateTimetableRequest struct {
	BatchID         string               `json:"batch_id" validate:"required"`
	AcademicYearID  *string              `json:"academic_year_id,omitempty"`
	SubjectLoads    []SubjectLoadRequest `json:"subject_loads" validate:"required,min=1,dive"`
	ReplaceExisting bool                 `json:"replace_existing"`
}

// UnplacedLoad records one weekly occurrence the generator could not place.
type UnplacedLoad struct {
	SubjectID string `json:"subject_id"`
	FacultyID string `json:"faculty_id"`
	Reason    string `json:"reason"`
}

// GenerateTimetableResult summarises a generation run.
type GenerateTimetableResult struct {
	Created  []models.TimetableSlot `json:"created"`
	Unplaced []UnplacedLoad         `json:"unplaced,omitempty"`
	Retired  int                    `json:"retired"`
}

// GeneratorService fills a batch timetable greedily, hardest loads
// first, days balanced by current load. Every placement goes through
// the allocator so the occupancy and workload invariants hold even
// when generation races manual edits.
type GeneratorService struct {
	allocator slotAllocator
	slots     generatorSlotRepository
	periods   periodGridLister
	batches   generatorBatchReader
	rooms     classroomLister
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGeneratorService wires generator dependencies.
func NewGeneratorService(
	allocator slotAllocator,
	slots generatorSlotRepository,
	periods periodGridLister,
	batches generatorBatchReader,
	rooms classroomLister,
	validate *validator.Validate,
	logger *zap.Logger,
) *GeneratorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeneratorService{
		allocator: allocator,
		slots:     slots,
		periods:   periods,
		batches:   batches,
		rooms:     rooms,
		validator: validate,
		logger:    logger,
	}
}

// Generate places the requested subject loads into free keys of the
// batch grid. Loads that cannot be placed are reported, not failed.
func (s *GeneratorService) Generate(ctx context.Context, tenantID string, req GenerateTimetableRequest) (*GenerateTimetableResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generation payload")
	}
	if _, err := s.batches.FindByID(ctx, tenantID, req.BatchID); err != nil {
		return nil, notFoundOrInternal(err, "batch not found")
	}

	teaching, err := s.teachingPeriods(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if len(teaching) == 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidPeriod, "tenant period grid has no teaching periods")
	}

	result := &GenerateTimetableResult{}
	if req.ReplaceExisting {
		existing, err := s.slots.ListForBatch(ctx, tenantID, req.BatchID, stringValue(req.AcademicYearID))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing slots")
		}
		for _, slot := range existing {
			if err := s.allocator.Retire(ctx, tenantID, slot.ID); err != nil {
				return nil, err
			}
			result.Retired++
		}
	}

	state, err := s.buildState(ctx, tenantID, req, teaching)
	if err != nil {
		return nil, err
	}

	rooms, err := s.rooms.ListAvailable(ctx, tenantID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classrooms")
	}

	// Hardest first: more weekly occurrences are harder to fit.
	loads := make([]SubjectLoadRequest, len(req.SubjectLoads))
	copy(loads, req.SubjectLoads)
	sort.SliceStable(loads, func(i, j int) bool {
		return loads[i].WeeklyCount > loads[j].WeeklyCount
	})

	for _, load := range loads {
		for n := 0; n < load.WeeklyCount; n++ {
			placed, err := s.placeLoad(ctx, tenantID, req, load, state, rooms, result)
			if err != nil {
				return nil, err
			}
			if !placed {
				result.Unplaced = append(result.Unplaced, UnplacedLoad{
					SubjectID: load.SubjectID,
					FacultyID: load.FacultyID,
					Reason:    "no free period for batch and faculty",
				})
			}
		}
	}

	s.logger.Info("timetable generated",
		zap.String("tenant_id", tenantID),
		zap.String("batch_id", req.BatchID),
		zap.Int("created", len(result.Created)),
		zap.Int("unplaced", len(result.Unplaced)))
	return result, nil
}

type generatorState struct {
	periods      []int
	batchBusy    map[models.SlotKey]bool
	facultyBusy  map[string]map[models.SlotKey]bool
	dayLoad      map[int]int
	facultyHours map[string]int
	facultyIDs   []string
}

func (s *GeneratorService) teachingPeriods(ctx context.Context, tenantID string) ([]models.PeriodTemplate, error) {
	grid, err := s.periods.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	teaching := make([]models.PeriodTemplate, 0, len(grid))
	for _, period := range grid {
		if !period.IsBreak {
			teaching = append(teaching, period)
		}
	}
	return teaching, nil
}

func (s *GeneratorService) buildState(ctx context.Context, tenantID string, req GenerateTimetableRequest, teaching []models.PeriodTemplate) (*generatorState, error) {
	state := &generatorState{
		batchBusy:   make(map[models.SlotKey]bool),
		facultyBusy: make(map[string]map[models.SlotKey]bool),
		dayLoad:     make(map[int]int),
	}
	for _, period := range teaching {
		state.periods = append(state.periods, period.PeriodNumber)
	}

	batchSlots, err := s.slots.ListForBatch(ctx, tenantID, req.BatchID, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch slots")
	}
	for _, slot := range batchSlots {
		key := models.SlotKey{DayOfWeek: slot.DayOfWeek, PeriodNumber: slot.PeriodNumber}
		state.batchBusy[key] = true
		state.dayLoad[slot.DayOfWeek]++
	}

	seen := make(map[string]bool)
	for _, load := range req.SubjectLoads {
		if seen[load.FacultyID] {
			continue
		}
		seen[load.FacultyID] = true
		state.facultyIDs = append(state.facultyIDs, load.FacultyID)

		facultySlots, err := s.slots.ListForFaculty(ctx, tenantID, load.FacultyID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty slots")
		}
		busy := make(map[models.SlotKey]bool, len(facultySlots))
		for _, slot := range facultySlots {
			busy[models.SlotKey{DayOfWeek: slot.DayOfWeek, PeriodNumber: slot.PeriodNumber}] = true
		}
		state.facultyBusy[load.FacultyID] = busy
	}
	return state, nil
}

// placeLoad tries candidate keys in day-balanced order and hands the
// winning key to the allocator. An allocation conflict means a
// concurrent writer took the key; the next candidate is tried.
func (s *GeneratorService) placeLoad(ctx context.Context, tenantID string, req GenerateTimetableRequest, load SubjectLoadRequest, state *generatorState, rooms []models.Classroom, result *GenerateTimetableResult) (bool, error) {
	days := make([]int, 0, models.MaxDayOfWeek)
	for day := models.MinDayOfWeek; day <= models.MaxDayOfWeek; day++ {
		days = append(days, day)
	}
	sort.SliceStable(days, func(i, j int) bool {
		return state.dayLoad[days[i]] < state.dayLoad[days[j]]
	})

	for _, day := range days {
		for _, periodNumber := range orderPeriods(state.periods, load.Preferred) {
			key := models.SlotKey{DayOfWeek: day, PeriodNumber: periodNumber}
			if state.batchBusy[key] || state.facultyBusy[load.FacultyID][key] {
				continue
			}

			allocReq := AllocateSlotRequest{
				BatchID:        req.BatchID,
				SubjectID:      load.SubjectID,
				FacultyID:      load.FacultyID,
				AcademicYearID: req.AcademicYearID,
				DayOfWeek:      day,
				PeriodNumber:   periodNumber,
				SlotType:       load.SlotType,
			}
			if load.NeedsRoom && len(rooms) > 0 {
				roomID := rooms[len(result.Created)%len(rooms)].ID
				allocReq.ClassroomID = &roomID
			}

			slot, err := s.allocator.Allocate(ctx, tenantID, allocReq)
			if err != nil {
				if appErrors.HasCode(err, appErrors.ErrSlotConflict) {
					// Only a batch-dimension collision exhausts the key for
					// every load; faculty or room collisions leave it open
					// for loads with a different faculty or room.
					var conflictErr *models.SlotConflictError
					switch {
					case !errors.As(err, &conflictErr), conflictErr.Dimension == models.ConflictBatch:
						state.batchBusy[key] = true
					case conflictErr.Dimension == models.ConflictFaculty:
						if state.facultyBusy[load.FacultyID] == nil {
							state.facultyBusy[load.FacultyID] = make(map[models.SlotKey]bool)
						}
						state.facultyBusy[load.FacultyID][key] = true
					}
					continue
				}
				if appErrors.HasCode(err, appErrors.ErrWorkloadExceeded) {
					return false, nil
				}
				var appErr *appErrors.Error
				if errors.As(err, &appErr) {
					return false, err
				}
				return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "allocation failed during generation")
			}

			state.batchBusy[key] = true
			if state.facultyBusy[load.FacultyID] == nil {
				state.facultyBusy[load.FacultyID] = make(map[models.SlotKey]bool)
			}
			state.facultyBusy[load.FacultyID][key] = true
			state.dayLoad[day]++
			result.Created = append(result.Created, *slot)
			return true, nil
		}
	}
	return false, nil
}

// orderPeriods puts a load's preferred periods first, then the rest of
// the grid in order.
func orderPeriods(all []int, preferred []int) []int {
	valid := make(map[int]bool, len(all))
	for _, p := range all {
		valid[p] = true
	}
	seen := make(map[int]bool, len(all))
	ordered := make([]int, 0, len(all))
	for _, p := range preferred {
		if valid[p] && !seen[p] {
			ordered = append(ordered, p)
			seen[p] = true
		}
	}
	for _, p := range all {
		if !seen[p] {
			ordered = append(ordered, p)
		}
	}
	return ordered
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
