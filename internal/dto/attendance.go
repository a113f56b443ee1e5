package dto

// AttendanceUpdateRequest mutates a subject's meeting counter and
// attendance-date set. Action defaults to "add" when omitted.
type AttendanceUpdateRequest struct {
	Date   string `json:"date" validate:"required"`
	Action string `json:"action"`
}

// AttendanceUpdateResponse echoes the updated counter.
type AttendanceUpdateResponse struct {
	SubjectID string `json:"subject_id"`
	Meeting   int    `json:"meeting"`
	Action    string `json:"action"`
}

// CheckInRequest is the scan/check-in payload: the counter update and the
// history record are committed together.
type CheckInRequest struct {
	SubjectID string  `json:"subject_id" validate:"required"`
	Date      string  `json:"date" validate:"required"`
	Location  *string `json:"location"`
	Notes     *string `json:"notes"`
}

// AttendanceStatusResponse reports whether the user attended on a calendar
// date. Attended is set when the query was scoped to one subject; Subjects
// maps subject id to attended otherwise.
type AttendanceStatusResponse struct {
	Date     string          `json:"date"`
	Attended *bool           `json:"attended,omitempty"`
	Subjects map[string]bool `json:"subjects,omitempty"`
}

// AttendanceSummaryResponse aggregates attendance across subjects.
type AttendanceSummaryResponse struct {
	AttendedMeetings int `json:"attended_meetings"`
	PossibleMeetings int `json:"possible_meetings"`
	Percentage       int `json:"percentage"`
}
