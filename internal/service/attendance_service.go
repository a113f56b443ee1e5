package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kuliahku/kuliahku-api/internal/dto"
	"github.com/kuliahku/kuliahku-api/internal/models"
	"github.com/kuliahku/kuliahku-api/pkg/config"
	appErrors "github.com/kuliahku/kuliahku-api/pkg/errors"
	"github.com/kuliahku/kuliahku-api/pkg/export"
)

const ledgerDateLayout = "2006-01-02"

type attendanceLedgerRepository interface {
	RecordAttendance(ctx context.Context, userID, key, date string, action models.AttendanceAction) (int, error)
	CheckIn(ctx context.Context, userID, key, date string, attendanceDate time.Time, location, notes *string) (*models.AttendanceRecord, int, error)
	ListRecords(ctx context.Context, userID string) ([]models.AttendanceRecord, error)
	RecordsInRange(ctx context.Context, userID string, from, to time.Time, subjectID string) ([]models.AttendanceRecord, error)
}

type attendanceSubjectRepository interface {
	FindByKey(ctx context.Context, userID, key string) (*models.Subject, error)
	ListByUser(ctx context.Context, userID string) ([]models.Subject, error)
}

type summaryCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// AttendanceService maintains the attendance ledger: meeting counters,
// attendance-date sets, the append-only history log and derived statistics.
type AttendanceService struct {
	ledger    attendanceLedgerRepository
	subjects  attendanceSubjectRepository
	cache     summaryCache
	validator *validator.Validate
	logger    *zap.Logger
	config    config.AttendanceConfig
	location  *time.Location
}

// NewAttendanceService constructs the attendance service. The configured
// timezone fixes the calendar-day boundary for status queries; an unknown
// zone falls back to UTC.
func NewAttendanceService(ledger attendanceLedgerRepository, subjects attendanceSubjectRepository, cache summaryCache, validate *validator.Validate, logger *zap.Logger, cfg config.AttendanceConfig) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultTotalMeetings <= 0 {
		cfg.DefaultTotalMeetings = models.MaxMeetings
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil || cfg.Timezone == "" {
		loc = time.UTC
	}
	return &AttendanceService{
		ledger:    ledger,
		subjects:  subjects,
		cache:     cache,
		validator: validate,
		logger:    logger,
		config:    cfg,
		location:  loc,
	}
}

// RecordAttendance applies one counter mutation for the subject addressed by
// its internal or external id and returns the updated meeting count.
func (s *AttendanceService) RecordAttendance(ctx context.Context, userID, subjectKey string, req dto.AttendanceUpdateRequest) (*dto.AttendanceUpdateResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	action := models.AttendanceAction(strings.ToLower(req.Action))
	if req.Action == "" {
		action = models.ActionAdd
	}
	if !action.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "action must be add or remove")
	}
	if _, err := time.Parse(ledgerDateLayout, req.Date); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
	}

	meeting, err := s.ledger.RecordAttendance(ctx, userID, subjectKey, req.Date, action)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}

	s.invalidateSummary(ctx, userID)

	return &dto.AttendanceUpdateResponse{SubjectID: subjectKey, Meeting: meeting, Action: string(action)}, nil
}

// CheckIn performs the scan flow: ledger mutation and history record are
// committed together, a failure of either write fails the whole operation.
func (s *AttendanceService) CheckIn(ctx context.Context, userID string, req dto.CheckInRequest) (*models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid check-in payload")
	}
	day, err := time.ParseInLocation(ledgerDateLayout, req.Date, s.location)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
	}

	record, _, err := s.ledger.CheckIn(ctx, userID, req.SubjectID, req.Date, day.UTC(), req.Location, req.Notes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check in")
	}

	s.invalidateSummary(ctx, userID)

	return record, nil
}

// History returns the user's attendance log grouped by calendar date, newest
// date first.
func (s *AttendanceService) History(ctx context.Context, userID string) ([]models.HistoryDay, error) {
	records, err := s.ledger.ListRecords(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance history")
	}

	days := make([]models.HistoryDay, 0)
	index := make(map[string]int)
	for _, record := range records {
		date := record.AttendanceDate.In(s.location).Format(ledgerDateLayout)
		i, ok := index[date]
		if !ok {
			days = append(days, models.HistoryDay{Date: date})
			i = len(days) - 1
			index[date] = i
		}
		days[i].Records = append(days[i].Records, record)
	}
	return days, nil
}

// Status reports whether the user attended on the given calendar date,
// scoped to one subject when a key is provided, otherwise per subject.
func (s *AttendanceService) Status(ctx context.Context, userID, date, subjectKey string) (*dto.AttendanceStatusResponse, error) {
	day, err := time.ParseInLocation(ledgerDateLayout, date, s.location)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
	}
	from := day
	to := day.Add(24*time.Hour - time.Millisecond)

	subjectID := ""
	if subjectKey != "" {
		subject, err := s.subjects.FindByKey(ctx, userID, subjectKey)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
		}
		subjectID = subject.ID
	}

	records, err := s.ledger.RecordsInRange(ctx, userID, from.UTC(), to.UTC(), subjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance status")
	}

	res := &dto.AttendanceStatusResponse{Date: date}
	if subjectID != "" {
		attended := len(records) > 0
		res.Attended = &attended
		return res, nil
	}

	res.Subjects = make(map[string]bool, len(records))
	for _, record := range records {
		res.Subjects[record.SubjectID] = true
	}
	return res, nil
}

// Summary aggregates attendance across the user's subjects, served from the
// cache when fresh.
func (s *AttendanceService) Summary(ctx context.Context, userID string) (*dto.AttendanceSummaryResponse, error) {
	key := summaryCacheKey(userID)
	var cached dto.AttendanceSummaryResponse
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	} else if !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("attendance summary cache read failed", zap.Error(err))
	}

	subjects, err := s.subjects.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}

	summary := ComputeAttendanceSummary(subjects, s.config.DefaultTotalMeetings)
	if err := s.cache.Set(ctx, key, summary, s.config.SummaryCacheTTL); err != nil {
		s.logger.Warn("attendance summary cache write failed", zap.Error(err))
	}
	return &summary, nil
}

// ExportHistory renders the user's history as CSV or PDF.
func (s *AttendanceService) ExportHistory(ctx context.Context, userID, format string) ([]byte, string, error) {
	days, err := s.History(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	summary, err := s.Summary(ctx, userID)
	if err != nil {
		return nil, "", err
	}

	data := export.Dataset{
		Title:   "Attendance History",
		Headers: []string{"Date", "Subject", "Location", "Notes"},
		Footer: []string{
			fmt.Sprintf("Attended meetings: %d of %d (%d%%)", summary.AttendedMeetings, summary.PossibleMeetings, summary.Percentage),
		},
	}
	for _, day := range days {
		for _, record := range day.Records {
			location := ""
			if record.Location != nil {
				location = *record.Location
			}
			notes := ""
			if record.Notes != nil {
				notes = *record.Notes
			}
			data.Rows = append(data.Rows, []string{day.Date, record.SubjectName, location, notes})
		}
	}

	switch strings.ToLower(format) {
	case "pdf":
		payload, err := export.NewPDFExporter().Render(data)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return payload, "application/pdf", nil
	case "", "csv":
		payload, err := export.NewCSVExporter().Render(data)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return payload, "text/csv", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

func (s *AttendanceService) invalidateSummary(ctx context.Context, userID string) {
	if err := s.cache.Delete(ctx, summaryCacheKey(userID)); err != nil {
		s.logger.Warn("attendance summary cache invalidation failed", zap.Error(err))
	}
}

func summaryCacheKey(userID string) string {
	return "attendance:summary:" + userID
}

// ComputeAttendanceSummary is a pure function over the subject collection:
// attended meetings are the sizes of the attendance-date sets, possible
// meetings the per-subject denominators (1 for one-off subjects, the
// precomputed meeting-date count when present, otherwise defaultTotal).
// The percentage is rounded and capped at 100; an empty collection yields 0.
func ComputeAttendanceSummary(subjects []models.Subject, defaultTotal int) dto.AttendanceSummaryResponse {
	attended := 0
	possible := 0
	for i := range subjects {
		attended += len(subjects[i].AttendanceDates)
		possible += subjects[i].TotalMeetings(defaultTotal)
	}
	if possible == 0 {
		return dto.AttendanceSummaryResponse{}
	}
	pct := math.Min(100, 100*float64(attended)/float64(possible))
	return dto.AttendanceSummaryResponse{
		AttendedMeetings: attended,
		PossibleMeetings: possible,
		Percentage:       int(math.Round(pct)),
	}
}
