package dto

// CreateSubjectRequest is the payload for subject creation. A subject is
// scheduled either on a recurring weekday or on a one-off specific date.
type CreateSubjectRequest struct {
	ExternalID   *string  `json:"external_id"`
	Name         string   `json:"name" validate:"required"`
	Day          *string  `json:"day" validate:"omitempty,oneof=monday tuesday wednesday thursday friday saturday sunday"`
	SpecificDate *string  `json:"specific_date"`
	Room         *string  `json:"room"`
	StartTime    *string  `json:"start_time"`
	EndTime      *string  `json:"end_time"`
	Lecturers    []string `json:"lecturers"`
	StartDate    *string  `json:"start_date"`
}

// UpdateSubjectRequest carries mutable schedule fields.
type UpdateSubjectRequest struct {
	Name         string   `json:"name" validate:"required"`
	Day          *string  `json:"day" validate:"omitempty,oneof=monday tuesday wednesday thursday friday saturday sunday"`
	SpecificDate *string  `json:"specific_date"`
	Room         *string  `json:"room"`
	StartTime    *string  `json:"start_time"`
	EndTime      *string  `json:"end_time"`
	Lecturers    []string `json:"lecturers"`
	StartDate    *string  `json:"start_date"`
}

// RescheduleRequest appends one entry to a subject's reschedule log.
type RescheduleRequest struct {
	Date      string `json:"date" validate:"required"`
	NewDate   string `json:"new_date"`
	NewRoom   string `json:"new_room"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Reason    string `json:"reason"`
}
