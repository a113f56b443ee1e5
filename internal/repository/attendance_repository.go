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

const recordColumns = `id, user_id, subject_id, subject_name, attendance_date, location, notes, created_at`

// AttendanceRepository owns the attendance ledger: the per-subject meeting
// counter plus attendance-date set, and the append-only attendance_records
// log. Counter and date set are always mutated by a single statement so
// concurrent scans cannot lose updates.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

type ledgerRow struct {
	ID      string `db:"id"`
	Name    string `db:"name"`
	Meeting int    `db:"meeting"`
}

// addQuery appends the date and increments the counter only when the date is
// not already present, making repeated adds for the same date no-ops.
const addQuery = `UPDATE subjects
SET attendance_dates = array_append(attendance_dates, $3),
    meeting = LEAST(meeting + 1, $4),
    updated_at = $5
WHERE user_id = $1 AND (id = $2 OR external_id = $2)
  AND NOT (attendance_dates @> ARRAY[$3])
RETURNING id, name, meeting`

// removeQuery drops the date and decrements the counter, floored at zero.
// Removing a date that was never recorded is a no-op.
const removeQuery = `UPDATE subjects
SET attendance_dates = array_remove(attendance_dates, $3),
    meeting = GREATEST(meeting - 1, 0),
    updated_at = $4
WHERE user_id = $1 AND (id = $2 OR external_id = $2)
  AND attendance_dates @> ARRAY[$3]
RETURNING id, name, meeting`

const currentLedgerQuery = `SELECT id, name, meeting FROM subjects WHERE user_id = $1 AND (id = $2 OR external_id = $2) LIMIT 1`

// RecordAttendance applies one add/remove mutation and returns the updated
// meeting count. sql.ErrNoRows is returned when the subject does not exist.
func (r *AttendanceRepository) RecordAttendance(ctx context.Context, userID, key, date string, action models.AttendanceAction) (int, error) {
	row, err := applyLedger(ctx, r.db, userID, key, date, action)
	if err != nil {
		return 0, err
	}
	return row.Meeting, nil
}

// CheckIn performs the scan flow: the ledger mutation and the history record
// are committed in one transaction, so either both writes land or neither.
func (r *AttendanceRepository) CheckIn(ctx context.Context, userID, key, date string, attendanceDate time.Time, location, notes *string) (*models.AttendanceRecord, int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("begin check-in: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	row, err := applyLedger(ctx, tx, userID, key, date, models.ActionAdd)
	if err != nil {
		return nil, 0, err
	}

	record := &models.AttendanceRecord{
		ID:             uuid.NewString(),
		UserID:         userID,
		SubjectID:      row.ID,
		SubjectName:    row.Name,
		AttendanceDate: attendanceDate,
		Location:       location,
		Notes:          notes,
		CreatedAt:      time.Now().UTC(),
	}
	const insertQuery = `INSERT INTO attendance_records (id, user_id, subject_id, subject_name, attendance_date, location, notes, created_at)
VALUES (:id, :user_id, :subject_id, :subject_name, :attendance_date, :location, :notes, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insertQuery, record); err != nil {
		return nil, 0, fmt.Errorf("insert attendance record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("commit check-in: %w", err)
	}
	committed = true
	return record, row.Meeting, nil
}

// ListRecords returns the user's history, newest first.
func (r *AttendanceRepository) ListRecords(ctx context.Context, userID string) ([]models.AttendanceRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_records WHERE user_id = $1 ORDER BY attendance_date DESC, created_at DESC`, recordColumns)
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, userID); err != nil {
		return nil, fmt.Errorf("list attendance records: %w", err)
	}
	return records, nil
}

// RecordsInRange returns the user's records inside [from, to], optionally
// scoped to one subject (internal id).
func (r *AttendanceRepository) RecordsInRange(ctx context.Context, userID string, from, to time.Time, subjectID string) ([]models.AttendanceRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_records WHERE user_id = $1 AND attendance_date >= $2 AND attendance_date <= $3`, recordColumns)
	args := []interface{}{userID, from, to}
	if subjectID != "" {
		query += " AND subject_id = $4"
		args = append(args, subjectID)
	}
	query += " ORDER BY attendance_date ASC"

	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("attendance records in range: %w", err)
	}
	return records, nil
}

// applyLedger runs the conditional mutation against db or tx. When the
// conditional update matches no row the subject is re-read: a missing subject
// propagates sql.ErrNoRows, an existing one means the mutation was a no-op
// (date already present for add, never recorded for remove) and the current
// counter is returned unchanged.
func applyLedger(ctx context.Context, q sqlx.ExtContext, userID, key, date string, action models.AttendanceAction) (*ledgerRow, error) {
	now := time.Now().UTC()
	var row ledgerRow
	var err error
	switch action {
	case models.ActionRemove:
		err = sqlx.GetContext(ctx, q, &row, removeQuery, userID, key, date, now)
	default:
		err = sqlx.GetContext(ctx, q, &row, addQuery, userID, key, date, models.MaxMeetings, now)
	}
	if err == nil {
		return &row, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("record attendance %s: %w", action, err)
	}

	if err := sqlx.GetContext(ctx, q, &row, currentLedgerQuery, userID, key); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("load subject ledger: %w", err)
	}
	return &row, nil
}
