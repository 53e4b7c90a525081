package export

// TimetableSheet is the renderer-agnostic view of one batch timetable:
// one row per day of week, one column per period number.
type TimetableSheet struct {
	Title   string
	Periods []int
	// Cells maps day-of-week -> period-number -> display text.
	Cells map[int]map[int]string
}

var dayNames = map[int]string{
	1: "Monday",
	2: "Tuesday",
	3: "Wednesday",
	4: "Thursday",
	5: "Friday",
	6: "Saturday",
}

// DayName returns the display name for a 1-based day of week.
func DayName(day int) string {
	if name, ok := dayNames[day]; ok {
		return name
	}
	return ""
}

func (s TimetableSheet) cell(day, period int) string {
	if periods, ok := s.Cells[day]; ok {
		return periods[period]
	}
	return ""
}
