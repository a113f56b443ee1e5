package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kuliahku/kuliahku-api/internal/models"
)

const subjectColumns = `id, external_id, user_id, name, day, specific_date, room, start_time, end_time, lecturers, start_date, meeting, attendance_dates, meeting_dates, reschedules, created_at, updated_at`

// SubjectRepository provides database access for subjects. Subjects are
// addressed by their internal id or their client-supplied external id; both
// forms resolve to the same row.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository constructs the repository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// Create inserts a new subject.
func (r *SubjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if subject.CreatedAt.IsZero() {
		subject.CreatedAt = now
	}
	subject.UpdatedAt = now

	const query = `INSERT INTO subjects (id, external_id, user_id, name, day, specific_date, room, start_time, end_time, lecturers, start_date, meeting, attendance_dates, meeting_dates, reschedules, created_at, updated_at)
VALUES (:id, :external_id, :user_id, :name, :day, :specific_date, :room, :start_time, :end_time, :lecturers, :start_date, :meeting, :attendance_dates, :meeting_dates, :reschedules, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("create subject: %w", err)
	}
	return nil
}

// FindByKey returns the user's subject matching the internal or external id.
func (r *SubjectRepository) FindByKey(ctx context.Context, userID, key string) (*models.Subject, error) {
	query := fmt.Sprintf(`SELECT %s FROM subjects WHERE user_id = $1 AND (id = $2 OR external_id = $2) LIMIT 1`, subjectColumns)
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, userID, key); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find subject: %w", err)
	}
	return &subject, nil
}

// ListByUser returns all subjects owned by the user.
func (r *SubjectRepository) ListByUser(ctx context.Context, userID string) ([]models.Subject, error) {
	query := fmt.Sprintf(`SELECT %s FROM subjects WHERE user_id = $1 ORDER BY created_at ASC`, subjectColumns)
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, userID); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}

// Update persists mutable schedule fields.
func (r *SubjectRepository) Update(ctx context.Context, subject *models.Subject) error {
	subject.UpdatedAt = time.Now().UTC()
	const query = `UPDATE subjects SET name = :name, day = :day, specific_date = :specific_date, room = :room, start_time = :start_time, end_time = :end_time, lecturers = :lecturers, start_date = :start_date, meeting_dates = :meeting_dates, updated_at = :updated_at
WHERE id = :id AND user_id = :user_id`
	res, err := r.db.NamedExecContext(ctx, query, subject)
	if err != nil {
		return fmt.Errorf("update subject: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AppendReschedule appends one entry to the subject's reschedule log.
func (r *SubjectRepository) AppendReschedule(ctx context.Context, userID, key string, entry models.Reschedule) error {
	raw, err := models.RescheduleList{entry}.Value()
	if err != nil {
		return err
	}
	const query = `UPDATE subjects SET reschedules = COALESCE(reschedules, '[]'::jsonb) || $3::jsonb, updated_at = $4
WHERE user_id = $1 AND (id = $2 OR external_id = $2)`
	res, err := r.db.ExecContext(ctx, query, userID, key, raw, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("append reschedule: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes one subject.
func (r *SubjectRepository) Delete(ctx context.Context, userID, key string) error {
	const query = `DELETE FROM subjects WHERE user_id = $1 AND (id = $2 OR external_id = $2)`
	res, err := r.db.ExecContext(ctx, query, userID, key)
	if err != nil {
		return fmt.Errorf("delete subject: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteAllByUser removes every subject of the user and returns the count.
func (r *SubjectRepository) DeleteAllByUser(ctx context.Context, userID string) (int64, error) {
	const query = `DELETE FROM subjects WHERE user_id = $1`
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("delete all subjects: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete all subjects: %w", err)
	}
	return n, nil
}
