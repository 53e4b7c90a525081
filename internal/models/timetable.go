package models

import "time"

// Slot types accepted by the timetable_slots table.
const (
	SlotTypeLecture  = "lecture"
	SlotTypeLab      = "lab"
	SlotTypeTutorial = "tutorial"
)

// Conflict dimensions for slot allocation failures.
const (
	ConflictBatch   = "BATCH"
	ConflictFaculty = "FACULTY"
	ConflictRoom    = "ROOM"
)

// Days of the week usable for scheduling, Monday through Saturday.
const (
	MinDayOfWeek = 1
	MaxDayOfWeek = 6
)

// TimetableSlot is the allocation unit: one scheduled occurrence of a
// subject for a batch at a (day, period) key. Start and end times are
// derived from the tenant's period template at allocation time.
type TimetableSlot struct {
	ID             string    `db:"id" json:"id"`
	TenantID       string    `db:"tenant_id" json:"tenant_id"`
	BatchID        string    `db:"batch_id" json:"batch_id"`
	SubjectID      string    `db:"subject_id" json:"subject_id"`
	FacultyID      string    `db:"faculty_id" json:"faculty_id"`
	ClassroomID    *string   `db:"classroom_id" json:"classroom_id,omitempty"`
	AcademicYearID *string   `db:"academic_year_id" json:"academic_year_id,omitempty"`
	DayOfWeek      int       `db:"day_of_week" json:"day_of_week"`
	PeriodNumber   int       `db:"period_number" json:"period_number"`
	StartTime      string    `db:"start_time" json:"start_time"`
	EndTime        string    `db:"end_time" json:"end_time"`
	SlotType       string    `db:"slot_type" json:"slot_type"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// SlotKey is the occupancy key the three uniqueness invariants range over.
type SlotKey struct {
	DayOfWeek    int
	PeriodNumber int
}

// SlotConflict describes an existing active slot blocking an allocation.
type SlotConflict struct {
	SlotID       string `json:"slot_id"`
	Dimension    string `json:"dimension"`
	BatchID      string `json:"batch_id"`
	FacultyID    string `json:"faculty_id"`
	ClassroomID  string `json:"classroom_id,omitempty"`
	DayOfWeek    int    `json:"day_of_week"`
	PeriodNumber int    `json:"period_number"`
}

// SlotConflictError is returned when an allocation collides with an
// existing active slot on one of the three uniqueness dimensions.
type SlotConflictError struct {
	Dimension string       `json:"dimension"`
	Message   string       `json:"message"`
	Conflict  SlotConflict `json:"conflict"`
}

// Error implements the error interface for conflict errors.
func (e *SlotConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

// TimetableGrid organises slots as day-of-week -> period-number -> slot.
type TimetableGrid map[int]map[int]TimetableSlot

// BuildGrid indexes slots into a grid for display.
func BuildGrid(slots []TimetableSlot) TimetableGrid {
	grid := make(TimetableGrid)
	for _, slot := range slots {
		if _, ok := grid[slot.DayOfWeek]; !ok {
			grid[slot.DayOfWeek] = make(map[int]TimetableSlot)
		}
		grid[slot.DayOfWeek][slot.PeriodNumber] = slot
	}
	return grid
}

// BatchTimetable is the batch view of the ledger.
type BatchTimetable struct {
	Slots []TimetableSlot `json:"slots"`
	Grid  TimetableGrid   `json:"grid"`
}
