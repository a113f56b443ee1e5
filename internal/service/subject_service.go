package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/kuliahku/kuliahku-api/internal/dto"
	"github.com/kuliahku/kuliahku-api/internal/models"
	appErrors "github.com/kuliahku/kuliahku-api/pkg/errors"
)

type subjectRepository interface {
	Create(ctx context.Context, subject *models.Subject) error
	FindByKey(ctx context.Context, userID, key string) (*models.Subject, error)
	ListByUser(ctx context.Context, userID string) ([]models.Subject, error)
	Update(ctx context.Context, subject *models.Subject) error
	AppendReschedule(ctx context.Context, userID, key string, entry models.Reschedule) error
	Delete(ctx context.Context, userID, key string) error
	DeleteAllByUser(ctx context.Context, userID string) (int64, error)
}

// SubjectService manages course subjects and their schedules.
type SubjectService struct {
	repo      subjectRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubjectService constructs the subject service.
func NewSubjectService(repo subjectRepository, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectService{repo: repo, validator: validate, logger: logger}
}

// Create stores a new subject. For recurring subjects with a start date the
// meeting dates are precomputed as weekly occurrences.
func (s *SubjectService) Create(ctx context.Context, userID string, req dto.CreateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}
	if req.Day == nil && req.SpecificDate == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "either day or specific_date is required")
	}

	subject := &models.Subject{
		ExternalID: req.ExternalID,
		UserID:     userID,
		Name:       req.Name,
		Day:        req.Day,
		Room:       req.Room,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		Lecturers:  pq.StringArray(req.Lecturers),
	}

	if req.SpecificDate != nil {
		specific, err := time.Parse(ledgerDateLayout, *req.SpecificDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid specific_date format, expected YYYY-MM-DD")
		}
		subject.SpecificDate = &specific
	}
	if req.StartDate != nil {
		start, err := time.Parse(ledgerDateLayout, *req.StartDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid start_date format, expected YYYY-MM-DD")
		}
		subject.StartDate = &start
		if subject.SpecificDate == nil {
			subject.MeetingDates = GenerateMeetingDates(start)
		}
	}

	if err := s.repo.Create(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create subject")
	}
	return subject, nil
}

// Get returns one subject addressed by internal or external id.
func (s *SubjectService) Get(ctx context.Context, userID, key string) (*models.Subject, error) {
	subject, err := s.repo.FindByKey(ctx, userID, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	return subject, nil
}

// List returns the user's subjects.
func (s *SubjectService) List(ctx context.Context, userID string) ([]models.Subject, error) {
	subjects, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	return subjects, nil
}

// Update replaces mutable schedule fields, recomputing meeting dates when the
// start date changed on a recurring subject.
func (s *SubjectService) Update(ctx context.Context, userID, key string, req dto.UpdateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}

	subject, err := s.Get(ctx, userID, key)
	if err != nil {
		return nil, err
	}

	subject.Name = req.Name
	subject.Day = req.Day
	subject.Room = req.Room
	subject.StartTime = req.StartTime
	subject.EndTime = req.EndTime
	subject.Lecturers = pq.StringArray(req.Lecturers)

	subject.SpecificDate = nil
	if req.SpecificDate != nil {
		specific, err := time.Parse(ledgerDateLayout, *req.SpecificDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid specific_date format, expected YYYY-MM-DD")
		}
		subject.SpecificDate = &specific
	}
	if req.StartDate != nil {
		start, err := time.Parse(ledgerDateLayout, *req.StartDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid start_date format, expected YYYY-MM-DD")
		}
		if subject.StartDate == nil || !subject.StartDate.Equal(start) {
			subject.StartDate = &start
			if subject.SpecificDate == nil {
				subject.MeetingDates = GenerateMeetingDates(start)
			}
		}
	}

	if err := s.repo.Update(ctx, subject); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update subject")
	}
	return subject, nil
}

// AppendReschedule appends one entry to the subject's reschedule log.
func (s *SubjectService) AppendReschedule(ctx context.Context, userID, key string, req dto.RescheduleRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reschedule payload")
	}
	entry := models.Reschedule{
		Date:      req.Date,
		NewDate:   req.NewDate,
		NewRoom:   req.NewRoom,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Reason:    req.Reason,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.AppendReschedule(ctx, userID, key, entry); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to append reschedule")
	}
	return nil
}

// Delete removes one subject.
func (s *SubjectService) Delete(ctx context.Context, userID, key string) error {
	if err := s.repo.Delete(ctx, userID, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete subject")
	}
	return nil
}

// DeleteAll removes every subject of the user and returns the count.
func (s *SubjectService) DeleteAll(ctx context.Context, userID string) (int64, error) {
	n, err := s.repo.DeleteAllByUser(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete subjects")
	}
	return n, nil
}

// GenerateMeetingDates precomputes the scheduled meeting dates for a
// recurring subject: weekly occurrences starting at the given date, capped
// at the meeting-counter bound.
func GenerateMeetingDates(start time.Time) []string {
	dates := make([]string, 0, models.MaxMeetings)
	for i := 0; i < models.MaxMeetings; i++ {
		dates = append(dates, start.AddDate(0, 0, 7*i).Format(ledgerDateLayout))
	}
	return dates
}
