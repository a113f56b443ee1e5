package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuliahku/kuliahku-api/internal/dto"
	"github.com/kuliahku/kuliahku-api/internal/models"
	"github.com/kuliahku/kuliahku-api/pkg/config"
	appErrors "github.com/kuliahku/kuliahku-api/pkg/errors"
)

type ledgerRepoStub struct {
	meeting   int
	err       error
	records   []models.AttendanceRecord
	lastDate  string
	lastKey   string
	lastAct   models.AttendanceAction
	rangeFrom time.Time
	rangeTo   time.Time
	rangeSubj string
}

func (s *ledgerRepoStub) RecordAttendance(ctx context.Context, userID, key, date string, action models.AttendanceAction) (int, error) {
	s.lastKey = key
	s.lastDate = date
	s.lastAct = action
	if s.err != nil {
		return 0, s.err
	}
	return s.meeting, nil
}

func (s *ledgerRepoStub) CheckIn(ctx context.Context, userID, key, date string, attendanceDate time.Time, location, notes *string) (*models.AttendanceRecord, int, error) {
	if s.err != nil {
		return nil, 0, s.err
	}
	return &models.AttendanceRecord{
		ID:             "rec-1",
		UserID:         userID,
		SubjectID:      key,
		SubjectName:    "Algorithms",
		AttendanceDate: attendanceDate,
		Location:       location,
		Notes:          notes,
	}, s.meeting, nil
}

func (s *ledgerRepoStub) ListRecords(ctx context.Context, userID string) ([]models.AttendanceRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

func (s *ledgerRepoStub) RecordsInRange(ctx context.Context, userID string, from, to time.Time, subjectID string) ([]models.AttendanceRecord, error) {
	s.rangeFrom = from
	s.rangeTo = to
	s.rangeSubj = subjectID
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

type subjectRepoStub struct {
	subjects []models.Subject
	byKey    map[string]*models.Subject
	err      error
}

func (s *subjectRepoStub) FindByKey(ctx context.Context, userID, key string) (*models.Subject, error) {
	if s.err != nil {
		return nil, s.err
	}
	if subject, ok := s.byKey[key]; ok {
		return subject, nil
	}
	return nil, sql.ErrNoRows
}

func (s *subjectRepoStub) ListByUser(ctx context.Context, userID string) ([]models.Subject, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.subjects, nil
}

type cacheStub struct {
	store   map[string]interface{}
	gets    int
	sets    int
	deletes []string
}

func newCacheStub() *cacheStub {
	return &cacheStub{store: map[string]interface{}{}}
}

func (c *cacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	c.gets++
	value, ok := c.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	if summary, ok := value.(dto.AttendanceSummaryResponse); ok {
		*dest.(*dto.AttendanceSummaryResponse) = summary
	}
	return nil
}

func (c *cacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.sets++
	if summary, ok := value.(dto.AttendanceSummaryResponse); ok {
		c.store[key] = summary
	}
	return nil
}

func (c *cacheStub) Delete(ctx context.Context, key string) error {
	c.deletes = append(c.deletes, key)
	delete(c.store, key)
	return nil
}

func testAttendanceConfig() config.AttendanceConfig {
	return config.AttendanceConfig{
		DefaultTotalMeetings: 14,
		Timezone:             "UTC",
		SummaryCacheTTL:      5 * time.Minute,
	}
}

func newTestAttendanceService(ledger *ledgerRepoStub, subjects *subjectRepoStub, cache *cacheStub) *AttendanceService {
	if ledger == nil {
		ledger = &ledgerRepoStub{}
	}
	if subjects == nil {
		subjects = &subjectRepoStub{}
	}
	if cache == nil {
		cache = newCacheStub()
	}
	return NewAttendanceService(ledger, subjects, cache, nil, nil, testAttendanceConfig())
}

func TestAttendanceServiceRecordAttendanceDefaultsToAdd(t *testing.T) {
	ledger := &ledgerRepoStub{meeting: 5}
	svc := newTestAttendanceService(ledger, nil, nil)

	res, err := svc.RecordAttendance(context.Background(), "user-1", "subj-1", dto.AttendanceUpdateRequest{Date: "2026-03-02"})
	require.NoError(t, err)
	assert.Equal(t, models.ActionAdd, ledger.lastAct)
	assert.Equal(t, 5, res.Meeting)
	assert.Equal(t, "add", res.Action)
}

func TestAttendanceServiceRecordAttendanceInvalidAction(t *testing.T) {
	svc := newTestAttendanceService(nil, nil, nil)

	_, err := svc.RecordAttendance(context.Background(), "user-1", "subj-1", dto.AttendanceUpdateRequest{Date: "2026-03-02", Action: "toggle"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceRecordAttendanceInvalidDate(t *testing.T) {
	svc := newTestAttendanceService(nil, nil, nil)

	_, err := svc.RecordAttendance(context.Background(), "user-1", "subj-1", dto.AttendanceUpdateRequest{Date: "02-03-2026"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceRecordAttendanceSubjectNotFound(t *testing.T) {
	ledger := &ledgerRepoStub{err: sql.ErrNoRows}
	svc := newTestAttendanceService(ledger, nil, nil)

	_, err := svc.RecordAttendance(context.Background(), "user-1", "ghost", dto.AttendanceUpdateRequest{Date: "2026-03-02"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceRecordAttendanceInvalidatesSummaryCache(t *testing.T) {
	cache := newCacheStub()
	svc := newTestAttendanceService(&ledgerRepoStub{meeting: 1}, nil, cache)

	_, err := svc.RecordAttendance(context.Background(), "user-1", "subj-1", dto.AttendanceUpdateRequest{Date: "2026-03-02", Action: "remove"})
	require.NoError(t, err)
	require.Len(t, cache.deletes, 1)
	assert.Equal(t, "attendance:summary:user-1", cache.deletes[0])
}

func TestAttendanceServiceCheckIn(t *testing.T) {
	ledger := &ledgerRepoStub{meeting: 3}
	svc := newTestAttendanceService(ledger, nil, nil)

	location := "Room 101"
	record, err := svc.CheckIn(context.Background(), "user-1", dto.CheckInRequest{
		SubjectID: "subj-1",
		Date:      "2026-03-02",
		Location:  &location,
	})
	require.NoError(t, err)
	assert.Equal(t, "subj-1", record.SubjectID)
	assert.Equal(t, "2026-03-02", record.AttendanceDate.UTC().Format("2006-01-02"))
	require.NotNil(t, record.Location)
	assert.Equal(t, "Room 101", *record.Location)
}

func TestAttendanceServiceHistoryGroupsByDate(t *testing.T) {
	day1 := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)
	day1Later := time.Date(2026, 3, 3, 14, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	ledger := &ledgerRepoStub{records: []models.AttendanceRecord{
		{ID: "r1", SubjectID: "subj-1", AttendanceDate: day1Later},
		{ID: "r2", SubjectID: "subj-2", AttendanceDate: day1},
		{ID: "r3", SubjectID: "subj-1", AttendanceDate: day2},
	}}
	svc := newTestAttendanceService(ledger, nil, nil)

	days, err := svc.History(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, "2026-03-03", days[0].Date)
	assert.Len(t, days[0].Records, 2)
	assert.Equal(t, "2026-03-02", days[1].Date)
	assert.Len(t, days[1].Records, 1)
}

func TestAttendanceServiceStatusScopedToSubject(t *testing.T) {
	ledger := &ledgerRepoStub{records: []models.AttendanceRecord{{ID: "r1", SubjectID: "subj-internal"}}}
	subjects := &subjectRepoStub{byKey: map[string]*models.Subject{
		"ext-1": {ID: "subj-internal"},
	}}
	svc := newTestAttendanceService(ledger, subjects, nil)

	res, err := svc.Status(context.Background(), "user-1", "2026-03-02", "ext-1")
	require.NoError(t, err)
	require.NotNil(t, res.Attended)
	assert.True(t, *res.Attended)
	assert.Equal(t, "subj-internal", ledger.rangeSubj)

	// The whole calendar day is covered.
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), ledger.rangeFrom)
	assert.True(t, ledger.rangeTo.After(time.Date(2026, 3, 2, 23, 59, 59, 0, time.UTC)))
	assert.True(t, ledger.rangeTo.Before(time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)))
}

func TestAttendanceServiceStatusUnknownSubject(t *testing.T) {
	subjects := &subjectRepoStub{byKey: map[string]*models.Subject{}}
	svc := newTestAttendanceService(nil, subjects, nil)

	_, err := svc.Status(context.Background(), "user-1", "2026-03-02", "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceStatusAllSubjects(t *testing.T) {
	ledger := &ledgerRepoStub{records: []models.AttendanceRecord{
		{ID: "r1", SubjectID: "subj-1"},
		{ID: "r2", SubjectID: "subj-2"},
		{ID: "r3", SubjectID: "subj-1"},
	}}
	svc := newTestAttendanceService(ledger, nil, nil)

	res, err := svc.Status(context.Background(), "user-1", "2026-03-02", "")
	require.NoError(t, err)
	assert.Nil(t, res.Attended)
	assert.Equal(t, map[string]bool{"subj-1": true, "subj-2": true}, res.Subjects)
}

func TestAttendanceServiceSummaryUsesCache(t *testing.T) {
	cache := newCacheStub()
	subjects := &subjectRepoStub{subjects: []models.Subject{
		{AttendanceDates: []string{"2026-03-02"}, MeetingDates: []string{"a", "b"}},
	}}
	svc := newTestAttendanceService(nil, subjects, cache)

	first, err := svc.Summary(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, first.AttendedMeetings)
	assert.Equal(t, 1, cache.sets)

	second, err := svc.Summary(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, cache.sets, "second call must be served from cache")
}

func TestAttendanceServiceExportHistoryCSV(t *testing.T) {
	ledger := &ledgerRepoStub{records: []models.AttendanceRecord{
		{ID: "r1", SubjectName: "Algorithms", AttendanceDate: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)},
	}}
	subjects := &subjectRepoStub{subjects: []models.Subject{
		{AttendanceDates: []string{"2026-03-02"}, MeetingDates: []string{"a", "b"}},
	}}
	svc := newTestAttendanceService(ledger, subjects, nil)

	payload, contentType, err := svc.ExportHistory(context.Background(), "user-1", "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	body := string(payload)
	assert.Contains(t, body, "Algorithms")
	assert.Contains(t, body, "2026-03-02")
	assert.Contains(t, body, "1 of 2")
}

func TestAttendanceServiceExportHistoryUnknownFormat(t *testing.T) {
	svc := newTestAttendanceService(nil, nil, nil)

	_, _, err := svc.ExportHistory(context.Background(), "user-1", "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestComputeAttendanceSummary(t *testing.T) {
	specific := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		subjects []models.Subject
		want     dto.AttendanceSummaryResponse
	}{
		{
			name:     "no subjects",
			subjects: nil,
			want:     dto.AttendanceSummaryResponse{},
		},
		{
			name: "one-off subject fully attended",
			subjects: []models.Subject{
				{SpecificDate: &specific, AttendanceDates: []string{"2026-03-02"}},
			},
			want: dto.AttendanceSummaryResponse{AttendedMeetings: 1, PossibleMeetings: 1, Percentage: 100},
		},
		{
			name: "half attended recurring subject",
			subjects: []models.Subject{
				{AttendanceDates: make([]string, 7)},
			},
			want: dto.AttendanceSummaryResponse{AttendedMeetings: 7, PossibleMeetings: 14, Percentage: 50},
		},
		{
			name: "meeting dates override the default denominator",
			subjects: []models.Subject{
				{AttendanceDates: []string{"a"}, MeetingDates: []string{"m1", "m2", "m3", "m4"}},
			},
			want: dto.AttendanceSummaryResponse{AttendedMeetings: 1, PossibleMeetings: 4, Percentage: 25},
		},
		{
			name: "mixed subjects round to nearest",
			subjects: []models.Subject{
				{SpecificDate: &specific, AttendanceDates: []string{"2026-03-02"}},
				{AttendanceDates: []string{"a"}, MeetingDates: []string{"m1", "m2"}},
			},
			want: dto.AttendanceSummaryResponse{AttendedMeetings: 2, PossibleMeetings: 3, Percentage: 67},
		},
		{
			name: "percentage capped at 100",
			subjects: []models.Subject{
				{AttendanceDates: []string{"a", "b", "c"}, MeetingDates: []string{"m1", "m2"}},
			},
			want: dto.AttendanceSummaryResponse{AttendedMeetings: 3, PossibleMeetings: 2, Percentage: 100},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeAttendanceSummary(tt.subjects, 14)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAttendanceServiceUnknownTimezoneFallsBackToUTC(t *testing.T) {
	cfg := testAttendanceConfig()
	cfg.Timezone = "Mars/Olympus"
	svc := NewAttendanceService(&ledgerRepoStub{}, &subjectRepoStub{}, newCacheStub(), nil, nil, cfg)
	assert.Equal(t, time.UTC, svc.location)
}

func TestAttendanceActionValid(t *testing.T) {
	assert.True(t, models.AttendanceAction("add").Valid())
	assert.True(t, models.AttendanceAction(strings.ToUpper("remove")).Valid())
	assert.False(t, models.AttendanceAction("toggle").Valid())
}
