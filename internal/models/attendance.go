package models

import (
	"strings"
	"time"
)

// AttendanceAction mutates the meeting counter and attendance-date set.
type AttendanceAction string

const (
	ActionAdd    AttendanceAction = "add"
	ActionRemove AttendanceAction = "remove"
)

// Valid reports whether the action is supported.
func (a AttendanceAction) Valid() bool {
	switch AttendanceAction(strings.ToLower(string(a))) {
	case ActionAdd, ActionRemove:
		return true
	}
	return false
}

// AttendanceRecord is one entry of the append-only attendance audit log,
// created once per scan/check-in and never mutated.
type AttendanceRecord struct {
	ID             string    `db:"id" json:"id"`
	UserID         string    `db:"user_id" json:"user_id"`
	SubjectID      string    `db:"subject_id" json:"subject_id"`
	SubjectName    string    `db:"subject_name" json:"subject_name"`
	AttendanceDate time.Time `db:"attendance_date" json:"attendance_date"`
	Location       *string   `db:"location" json:"location,omitempty"`
	Notes          *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// HistoryDay groups records of one calendar date for history views.
type HistoryDay struct {
	Date    string             `json:"date"`
	Records []AttendanceRecord `json:"records"`
}
