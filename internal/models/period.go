package models

import "time"

// PeriodTemplate is one row of a tenant's canonical period grid.
// Rows with a NULL tenant id form the system-wide default grid used
// when a tenant has not defined its own periods.
type PeriodTemplate struct {
	ID           string    `db:"id" json:"id"`
	TenantID     *string   `db:"tenant_id" json:"tenant_id,omitempty"`
	PeriodNumber int       `db:"period_number" json:"period_number"`
	StartTime    string    `db:"start_time" json:"start_time"`
	EndTime      string    `db:"end_time" json:"end_time"`
	Label        *string   `db:"label" json:"label,omitempty"`
	IsBreak      bool      `db:"is_break" json:"is_break"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// DefaultPeriodGrid is the fallback template applied to tenants that
// define no periods: six teaching periods with breaks after the second
// and fourth.
func DefaultPeriodGrid() []PeriodTemplate {
	label := func(s string) *string { return &s }
	return []PeriodTemplate{
		{PeriodNumber: 1, StartTime: "09:00", EndTime: "09:50", Label: label("Period 1")},
		{PeriodNumber: 2, StartTime: "09:50", EndTime: "10:40", Label: label("Period 2")},
		{PeriodNumber: 3, StartTime: "10:40", EndTime: "11:00", Label: label("Morning Break"), IsBreak: true},
		{PeriodNumber: 4, StartTime: "11:00", EndTime: "11:50", Label: label("Period 3")},
		{PeriodNumber: 5, StartTime: "11:50", EndTime: "12:40", Label: label("Period 4")},
		{PeriodNumber: 6, StartTime: "12:40", EndTime: "13:30", Label: label("Lunch Break"), IsBreak: true},
		{PeriodNumber: 7, StartTime: "13:30", EndTime: "14:20", Label: label("Period 5")},
		{PeriodNumber: 8, StartTime: "14:20", EndTime: "15:10", Label: label("Period 6")},
	}
}
