package models

import "time"

// Batch is a cohort of students in a program semester sharing one timetable.
type Batch struct {
	ID             string    `db:"id" json:"id"`
	TenantID       string    `db:"tenant_id" json:"tenant_id"`
	ProgramCode    string    `db:"program_code" json:"program_code"`
	Semester       int       `db:"semester" json:"semester"`
	Name           string    `db:"name" json:"name"`
	Code           string    `db:"code" json:"code"`
	MaxStudents    int       `db:"max_students" json:"max_students"`
	AcademicYearID *string   `db:"academic_year_id" json:"academic_year_id,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// BatchFilter describes query params for listing batches.
type BatchFilter struct {
	ProgramCode string
	Semester    int
	Search      string
	Page        int
	PageSize    int
	SortBy      string
	SortOrder   string
}
