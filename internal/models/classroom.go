package models

import "time"

// Room types accepted by the classrooms table.
const (
	RoomTypeLecture = "lecture"
	RoomTypeLab     = "lab"
	RoomTypeSeminar = "seminar"
)

// Classroom is a physical room that may host timetable slots.
type Classroom struct {
	ID          string    `db:"id" json:"id"`
	TenantID    string    `db:"tenant_id" json:"tenant_id"`
	Name        string    `db:"name" json:"name"`
	Code        string    `db:"code" json:"code"`
	Building    *string   `db:"building" json:"building,omitempty"`
	Floor       *string   `db:"floor" json:"floor,omitempty"`
	Capacity    int       `db:"capacity" json:"capacity"`
	RoomType    string    `db:"room_type" json:"room_type"`
	IsAvailable bool      `db:"is_available" json:"is_available"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ClassroomFilter describes query params for listing classrooms.
type ClassroomFilter struct {
	RoomType  string
	Available *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
