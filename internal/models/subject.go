package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// MaxMeetings bounds the per-subject meeting counter.
const MaxMeetings = 14

// Reschedule is one entry in a subject's append-only reschedule log.
type Reschedule struct {
	Date      string    `json:"date"`
	NewDate   string    `json:"new_date,omitempty"`
	NewRoom   string    `json:"new_room,omitempty"`
	StartTime string    `json:"start_time,omitempty"`
	EndTime   string    `json:"end_time,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RescheduleList stores the reschedule log as a JSONB column.
type RescheduleList []Reschedule

// Value implements driver.Valuer.
func (l RescheduleList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	raw, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("marshal reschedules: %w", err)
	}
	return string(raw), nil
}

// Scan implements sql.Scanner.
func (l *RescheduleList) Scan(src interface{}) error {
	if src == nil {
		*l = nil
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported reschedules source type %T", src)
	}
	if len(raw) == 0 {
		*l = nil
		return nil
	}
	return json.Unmarshal(raw, l)
}

// Subject represents one course owned by a user. A subject is scheduled
// either on a recurring weekday (Day) or on a one-off SpecificDate.
//
// Meeting and AttendanceDates are mutated only through the attendance ledger;
// every mutation updates both fields in a single statement so the counter
// cannot drift from the date set.
type Subject struct {
	ID              string         `db:"id" json:"id"`
	ExternalID      *string        `db:"external_id" json:"external_id,omitempty"`
	UserID          string         `db:"user_id" json:"user_id"`
	Name            string         `db:"name" json:"name"`
	Day             *string        `db:"day" json:"day,omitempty"`
	SpecificDate    *time.Time     `db:"specific_date" json:"specific_date,omitempty"`
	Room            *string        `db:"room" json:"room,omitempty"`
	StartTime       *string        `db:"start_time" json:"start_time,omitempty"`
	EndTime         *string        `db:"end_time" json:"end_time,omitempty"`
	Lecturers       pq.StringArray `db:"lecturers" json:"lecturers,omitempty"`
	StartDate       *time.Time     `db:"start_date" json:"start_date,omitempty"`
	Meeting         int            `db:"meeting" json:"meeting"`
	AttendanceDates pq.StringArray `db:"attendance_dates" json:"attendance_dates"`
	MeetingDates    pq.StringArray `db:"meeting_dates" json:"meeting_dates,omitempty"`
	Reschedules     RescheduleList `db:"reschedules" json:"reschedules,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// TotalMeetings returns the denominator used for percentage calculation:
// 1 for a one-off subject, the precomputed meeting-date count when present,
// otherwise the provided fallback (legacy subjects without meeting dates).
func (s *Subject) TotalMeetings(fallback int) int {
	if s.SpecificDate != nil {
		return 1
	}
	if len(s.MeetingDates) > 0 {
		return len(s.MeetingDates)
	}
	return fallback
}
