package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"attendance.service/internal/core/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// GetAttendance fetches a record and its breaks by ID. With ForUpdate the
// attendances row stays locked until the surrounding transaction ends.
func (r *PostgresRepository) GetAttendance(ctx context.Context, id int64, lock LockMode) (*model.AttendanceRecord, error) {
	query := `SELECT id, user_id, work_date, clock_in_at, clock_out_at, note
              FROM attendances
              WHERE id = $1`
	if lock == ForUpdate {
		query += ` FOR UPDATE`
	}

	rec, err := r.scanAttendance(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadBreaks(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// FindAttendanceByUserAndDate fetches the record for one user's calendar
// day, or nil when none exists yet.
func (r *PostgresRepository) FindAttendanceByUserAndDate(ctx context.Context, userID string, workDate time.Time, lock LockMode) (*model.AttendanceRecord, error) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("app.user_id", userID))

	query := `SELECT id, user_id, work_date, clock_in_at, clock_out_at, note
              FROM attendances
              WHERE user_id = $1 AND work_date = $2`
	if lock == ForUpdate {
		query += ` FOR UPDATE`
	}

	rec, err := r.scanAttendance(r.db.QueryRowContext(ctx, query, userID, workDate))
	if err == ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadBreaks(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// CreateAttendance inserts an empty record for the day. Records are created
// lazily on first clock-in, never on mere reads.
func (r *PostgresRepository) CreateAttendance(ctx context.Context, userID string, workDate time.Time) (*model.AttendanceRecord, error) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("app.user_id", userID))

	rec := &model.AttendanceRecord{UserID: userID, WorkDate: workDate}
	query := `INSERT INTO attendances (user_id, work_date) VALUES ($1, $2) RETURNING id`

	if err := r.db.QueryRowContext(ctx, query, userID, workDate).Scan(&rec.ID); err != nil {
		return nil, fmt.Errorf("insert attendance: %w", err)
	}
	return rec, nil
}

// UpdateAttendance persists the clock fields and note of an existing record.
// Breaks are managed through the break methods, not here.
func (r *PostgresRepository) UpdateAttendance(ctx context.Context, rec *model.AttendanceRecord) error {
	query := `UPDATE attendances
              SET clock_in_at = $1,
                  clock_out_at = $2,
                  note = $3
              WHERE id = $4`

	_, err := r.db.ExecContext(ctx, query, rec.ClockInAt, rec.ClockOutAt, rec.Note, rec.ID)
	if err != nil {
		return fmt.Errorf("update attendance: %w", err)
	}
	return nil
}

// ListAttendanceByMonth returns one user's records for a calendar month,
// ordered by work date, breaks included.
func (r *PostgresRepository) ListAttendanceByMonth(ctx context.Context, userID string, year int, month time.Month) ([]model.AttendanceRecord, error) {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	query := `SELECT id, user_id, work_date, clock_in_at, clock_out_at, note
              FROM attendances
              WHERE user_id = $1 AND work_date >= $2 AND work_date < $3
              ORDER BY work_date`

	rows, err := r.db.QueryContext(ctx, query, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	var records []model.AttendanceRecord
	for rows.Next() {
		rec, err := r.scanAttendanceRow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range records {
		if err := r.loadBreaks(ctx, &records[i]); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// InsertBreak appends a break interval to a record.
func (r *PostgresRepository) InsertBreak(ctx context.Context, attendanceID int64, b model.BreakInterval) (int64, error) {
	var id int64
	query := `INSERT INTO attendance_breaks (attendance_id, start_at, end_at, order_no)
              VALUES ($1, $2, $3, $4) RETURNING id`

	err := r.db.QueryRowContext(ctx, query, attendanceID, b.StartAt, b.EndAt, b.OrderNo).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert break: %w", err)
	}
	return id, nil
}

// CloseBreak stamps the end time on an open break.
func (r *PostgresRepository) CloseBreak(ctx context.Context, breakID int64, end time.Time) error {
	query := `UPDATE attendance_breaks SET end_at = $1 WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, end, breakID); err != nil {
		return fmt.Errorf("close break: %w", err)
	}
	return nil
}

// ReplaceBreaks deletes every break owned by the record and inserts the
// given set. Correction approval always replaces wholesale, never patches.
func (r *PostgresRepository) ReplaceBreaks(ctx context.Context, attendanceID int64, breaks []model.BreakInterval) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM attendance_breaks WHERE attendance_id = $1`, attendanceID); err != nil {
		return fmt.Errorf("delete breaks: %w", err)
	}
	for _, b := range breaks {
		if _, err := r.InsertBreak(ctx, attendanceID, b); err != nil {
			return err
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostgresRepository) scanAttendance(row *sql.Row) (*model.AttendanceRecord, error) {
	rec, err := r.scanAttendanceRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return rec, err
}

func (r *PostgresRepository) scanAttendanceRow(row rowScanner) (*model.AttendanceRecord, error) {
	rec := &model.AttendanceRecord{}
	var clockIn, clockOut sql.NullTime

	err := row.Scan(&rec.ID, &rec.UserID, &rec.WorkDate, &clockIn, &clockOut, &rec.Note)
	if err != nil {
		return nil, err
	}

	if clockIn.Valid {
		rec.ClockInAt = &clockIn.Time
	}
	if clockOut.Valid {
		rec.ClockOutAt = &clockOut.Time
	}
	return rec, nil
}

func (r *PostgresRepository) loadBreaks(ctx context.Context, rec *model.AttendanceRecord) error {
	query := `SELECT id, start_at, end_at, order_no
              FROM attendance_breaks
              WHERE attendance_id = $1
              ORDER BY order_no, start_at, id`

	rows, err := r.db.QueryContext(ctx, query, rec.ID)
	if err != nil {
		return fmt.Errorf("load breaks: %w", err)
	}
	defer rows.Close()

	rec.Breaks = nil
	for rows.Next() {
		var b model.BreakInterval
		var start, end sql.NullTime
		if err := rows.Scan(&b.ID, &start, &end, &b.OrderNo); err != nil {
			return err
		}
		if start.Valid {
			b.StartAt = &start.Time
		}
		if end.Valid {
			b.EndAt = &end.Time
		}
		rec.Breaks = append(rec.Breaks, b)
	}
	return rows.Err()
}
