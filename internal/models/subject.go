package models

import "time"

// Subject is a course offered within a program semester.
type Subject struct {
	ID          string    `db:"id" json:"id"`
	TenantID    string    `db:"tenant_id" json:"tenant_id"`
	ProgramCode string    `db:"program_code" json:"program_code"`
	Semester    int       `db:"semester" json:"semester"`
	Name        string    `db:"name" json:"name"`
	Code        string    `db:"code" json:"code"`
	Credits     int       `db:"credits" json:"credits"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// SubjectFilter describes query params for listing subjects.
type SubjectFilter struct {
	ProgramCode string
	Semester    int
	Search      string
	Page        int
	PageSize    int
	SortBy      string
	SortOrder   string
}
