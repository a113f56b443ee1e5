package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuliahku/kuliahku-api/internal/dto"
	"github.com/kuliahku/kuliahku-api/internal/models"
	appErrors "github.com/kuliahku/kuliahku-api/pkg/errors"
)

type subjectCrudRepoStub struct {
	created     *models.Subject
	updated     *models.Subject
	byKey       map[string]*models.Subject
	appended    []models.Reschedule
	deletedKeys []string
	deletedAll  int64
	err         error
}

func newSubjectCrudRepoStub() *subjectCrudRepoStub {
	return &subjectCrudRepoStub{byKey: map[string]*models.Subject{}}
}

func (s *subjectCrudRepoStub) Create(ctx context.Context, subject *models.Subject) error {
	if s.err != nil {
		return s.err
	}
	subject.ID = "subj-1"
	s.created = subject
	return nil
}

func (s *subjectCrudRepoStub) FindByKey(ctx context.Context, userID, key string) (*models.Subject, error) {
	if s.err != nil {
		return nil, s.err
	}
	if subject, ok := s.byKey[key]; ok {
		return subject, nil
	}
	return nil, sql.ErrNoRows
}

func (s *subjectCrudRepoStub) ListByUser(ctx context.Context, userID string) ([]models.Subject, error) {
	if s.err != nil {
		return nil, s.err
	}
	subjects := make([]models.Subject, 0, len(s.byKey))
	for _, subject := range s.byKey {
		subjects = append(subjects, *subject)
	}
	return subjects, nil
}

func (s *subjectCrudRepoStub) Update(ctx context.Context, subject *models.Subject) error {
	if s.err != nil {
		return s.err
	}
	s.updated = subject
	return nil
}

func (s *subjectCrudRepoStub) AppendReschedule(ctx context.Context, userID, key string, entry models.Reschedule) error {
	if s.err != nil {
		return s.err
	}
	if _, ok := s.byKey[key]; !ok {
		return sql.ErrNoRows
	}
	s.appended = append(s.appended, entry)
	return nil
}

func (s *subjectCrudRepoStub) Delete(ctx context.Context, userID, key string) error {
	if s.err != nil {
		return s.err
	}
	if _, ok := s.byKey[key]; !ok {
		return sql.ErrNoRows
	}
	s.deletedKeys = append(s.deletedKeys, key)
	return nil
}

func (s *subjectCrudRepoStub) DeleteAllByUser(ctx context.Context, userID string) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.deletedAll, nil
}

func strPtr(v string) *string { return &v }

func TestSubjectServiceCreateRecurringPrecomputesMeetingDates(t *testing.T) {
	repo := newSubjectCrudRepoStub()
	svc := NewSubjectService(repo, nil, nil)

	subject, err := svc.Create(context.Background(), "user-1", dto.CreateSubjectRequest{
		Name:      "Algorithms",
		Day:       strPtr("monday"),
		StartDate: strPtr("2026-03-02"),
	})
	require.NoError(t, err)
	require.Len(t, subject.MeetingDates, models.MaxMeetings)
	assert.Equal(t, "2026-03-02", subject.MeetingDates[0])
	assert.Equal(t, "2026-03-09", subject.MeetingDates[1])
	assert.Equal(t, "2026-06-01", subject.MeetingDates[13])
}

func TestSubjectServiceCreateOneOffSkipsMeetingDates(t *testing.T) {
	repo := newSubjectCrudRepoStub()
	svc := NewSubjectService(repo, nil, nil)

	subject, err := svc.Create(context.Background(), "user-1", dto.CreateSubjectRequest{
		Name:         "Guest Lecture",
		SpecificDate: strPtr("2026-03-02"),
	})
	require.NoError(t, err)
	assert.Empty(t, subject.MeetingDates)
	require.NotNil(t, subject.SpecificDate)
	assert.Equal(t, 1, subject.TotalMeetings(14))
}

func TestSubjectServiceCreateRequiresSchedule(t *testing.T) {
	svc := NewSubjectService(newSubjectCrudRepoStub(), nil, nil)

	_, err := svc.Create(context.Background(), "user-1", dto.CreateSubjectRequest{Name: "Algorithms"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSubjectServiceCreateRejectsBadDate(t *testing.T) {
	svc := NewSubjectService(newSubjectCrudRepoStub(), nil, nil)

	_, err := svc.Create(context.Background(), "user-1", dto.CreateSubjectRequest{
		Name:         "Algorithms",
		SpecificDate: strPtr("03/02/2026"),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSubjectServiceGetNotFound(t *testing.T) {
	svc := NewSubjectService(newSubjectCrudRepoStub(), nil, nil)

	_, err := svc.Get(context.Background(), "user-1", "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSubjectServiceUpdateRecomputesMeetingDatesOnNewStartDate(t *testing.T) {
	repo := newSubjectCrudRepoStub()
	oldStart := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	repo.byKey["subj-1"] = &models.Subject{
		ID:           "subj-1",
		UserID:       "user-1",
		Name:         "Algorithms",
		StartDate:    &oldStart,
		MeetingDates: []string{"2026-03-02"},
	}
	svc := NewSubjectService(repo, nil, nil)

	subject, err := svc.Update(context.Background(), "user-1", "subj-1", dto.UpdateSubjectRequest{
		Name:      "Algorithms",
		Day:       strPtr("tuesday"),
		StartDate: strPtr("2026-03-10"),
	})
	require.NoError(t, err)
	require.Len(t, subject.MeetingDates, models.MaxMeetings)
	assert.Equal(t, "2026-03-10", subject.MeetingDates[0])
	require.NotNil(t, repo.updated)
}

func TestSubjectServiceAppendReschedule(t *testing.T) {
	repo := newSubjectCrudRepoStub()
	repo.byKey["subj-1"] = &models.Subject{ID: "subj-1"}
	svc := NewSubjectService(repo, nil, nil)

	err := svc.AppendReschedule(context.Background(), "user-1", "subj-1", dto.RescheduleRequest{
		Date:    "2026-03-02",
		NewDate: "2026-03-04",
		Reason:  "public holiday",
	})
	require.NoError(t, err)
	require.Len(t, repo.appended, 1)
	assert.Equal(t, "2026-03-04", repo.appended[0].NewDate)
	assert.False(t, repo.appended[0].CreatedAt.IsZero())
}

func TestSubjectServiceAppendRescheduleNotFound(t *testing.T) {
	svc := NewSubjectService(newSubjectCrudRepoStub(), nil, nil)

	err := svc.AppendReschedule(context.Background(), "user-1", "ghost", dto.RescheduleRequest{Date: "2026-03-02"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSubjectServiceDeleteAllReturnsCount(t *testing.T) {
	repo := newSubjectCrudRepoStub()
	repo.deletedAll = 3
	svc := NewSubjectService(repo, nil, nil)

	n, err := svc.DeleteAll(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestGenerateMeetingDates(t *testing.T) {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	dates := GenerateMeetingDates(start)

	require.Len(t, dates, models.MaxMeetings)
	for i, date := range dates {
		expected := start.AddDate(0, 0, 7*i).Format("2006-01-02")
		assert.Equal(t, expected, date)
	}
}
