package models

import "time"

// Faculty is a teaching user. Identity lives in an external provider;
// ExternalSubject is the opaque subject identifier issued by it.
type Faculty struct {
	ID                  string    `db:"id" json:"id"`
	TenantID            string    `db:"tenant_id" json:"tenant_id"`
	ExternalSubject     string    `db:"external_subject" json:"external_subject"`
	Email               string    `db:"email" json:"email"`
	FullName            string    `db:"full_name" json:"full_name"`
	Department          *string   `db:"department" json:"department,omitempty"`
	MaxHoursPerWeek     int       `db:"max_hours_per_week" json:"max_hours_per_week"`
	CurrentHoursPerWeek int       `db:"current_hours_per_week" json:"current_hours_per_week"`
	Active              bool      `db:"active" json:"active"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}

// FacultyFilter describes query params for listing faculty.
type FacultyFilter struct {
	Search     string
	Department string
	Active     *bool
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// FacultyWorkload is the workload view for one faculty member.
// CurrentHours is always recomputed from active slots, never read from
// the cached column alone.
type FacultyWorkload struct {
	FacultyID    string `db:"faculty_id" json:"faculty_id"`
	FullName     string `db:"full_name" json:"full_name"`
	CurrentHours int    `db:"current_hours" json:"current_hours"`
	MaxHours     int    `db:"max_hours" json:"max_hours"`
}
