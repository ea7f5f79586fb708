package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"attendance.service/internal/core/model"
	"attendance.service/internal/core/timeval"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const pgUniqueViolation = "23505"

// CreateCorrection inserts a pending request. A concurrent insert for the
// same attendance loses against the partial unique index and is reported as
// ErrDuplicatePending.
func (r *PostgresRepository) CreateCorrection(ctx context.Context, req *model.CorrectionRequest) error {
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("app.user_id", req.UserID),
		attribute.Int64("app.attendance_id", req.AttendanceID),
	)

	proposedBreaks, err := marshalNullable(req.ProposedBreaks)
	if err != nil {
		return fmt.Errorf("marshal proposed breaks: %w", err)
	}
	payload, err := marshalNullable(req.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	query := `INSERT INTO correction_requests
              (id, attendance_id, user_id, status, reason,
               proposed_clock_in, proposed_clock_out, proposed_breaks, payload,
               created_at, export_status, export_retry_count)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 0)`

	_, err = r.db.ExecContext(ctx, query,
		req.ID, req.AttendanceID, req.UserID, req.Status, req.Reason,
		clockText(req.ProposedClockIn), clockText(req.ProposedClockOut),
		proposedBreaks, payload, req.CreatedAt, req.ExportStatus,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicatePending
		}
		return fmt.Errorf("insert correction request: %w", err)
	}
	return nil
}

// GetCorrection fetches a request by ID. With ForUpdate the row stays
// locked until the surrounding transaction ends, serializing approvals.
func (r *PostgresRepository) GetCorrection(ctx context.Context, id string, lock LockMode) (*model.CorrectionRequest, error) {
	query := correctionSelect + ` WHERE id = $1`
	if lock == ForUpdate {
		query += ` FOR UPDATE`
	}

	req, err := scanCorrection(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return req, err
}

// HasPendingCorrection reports whether a pending request exists for the
// attendance record. The unique index remains the authoritative guard.
func (r *PostgresRepository) HasPendingCorrection(ctx context.Context, attendanceID int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (
                  SELECT 1 FROM correction_requests
                  WHERE attendance_id = $1 AND status = 'pending')`

	if err := r.db.QueryRowContext(ctx, query, attendanceID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check pending correction: %w", err)
	}
	return exists, nil
}

// MarkCorrectionApproved flips pending -> approved and stamps the approver.
// The conditional WHERE makes a duplicate approval a no-op; the bool return
// reports whether this call performed the transition.
func (r *PostgresRepository) MarkCorrectionApproved(ctx context.Context, id string, approverID string, at time.Time) (bool, error) {
	query := `UPDATE correction_requests
              SET status = 'approved',
                  approved_by = $1,
                  approved_at = $2
              WHERE id = $3 AND status = 'pending'`

	res, err := r.db.ExecContext(ctx, query, approverID, at, id)
	if err != nil {
		return false, fmt.Errorf("approve correction request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListCorrections returns a user's requests filtered by status, newest
// first. An empty userID lists across all users (the approver's view).
func (r *PostgresRepository) ListCorrections(ctx context.Context, userID string, status model.RequestStatus) ([]model.CorrectionRequest, error) {
	query := correctionSelect + ` WHERE status = $1`
	args := []any{status}
	if userID != "" {
		query += ` AND user_id = $2`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list correction requests: %w", err)
	}
	defer rows.Close()

	var requests []model.CorrectionRequest
	for rows.Next() {
		req, err := scanCorrection(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

// UpdateExportStatus updates the downstream delivery status and retry count
// for an approved request being forwarded to the legacy system.
func (r *PostgresRepository) UpdateExportStatus(ctx context.Context, id string, status model.ExportStatus, retryCount int) error {
	query := `UPDATE correction_requests
              SET export_status = $1,
                  export_retry_count = $2
              WHERE id = $3`

	if _, err := r.db.ExecContext(ctx, query, status, retryCount, id); err != nil {
		return fmt.Errorf("update export status: %w", err)
	}
	return nil
}

const correctionSelect = `SELECT id, attendance_id, user_id, status, reason,
       proposed_clock_in, proposed_clock_out, proposed_breaks, payload,
       approved_by, approved_at, created_at, export_status, export_retry_count
       FROM correction_requests`

func scanCorrection(row rowScanner) (*model.CorrectionRequest, error) {
	req := &model.CorrectionRequest{}
	var (
		proposedIn, proposedOut, approvedBy sql.NullString
		proposedBreaks, payload             []byte
		approvedAt                          sql.NullTime
	)

	err := row.Scan(&req.ID, &req.AttendanceID, &req.UserID, &req.Status, &req.Reason,
		&proposedIn, &proposedOut, &proposedBreaks, &payload,
		&approvedBy, &approvedAt, &req.CreatedAt, &req.ExportStatus, &req.ExportRetryCount)
	if err != nil {
		return nil, err
	}

	if req.ProposedClockIn, err = clockFromText(proposedIn); err != nil {
		return nil, err
	}
	if req.ProposedClockOut, err = clockFromText(proposedOut); err != nil {
		return nil, err
	}
	if len(proposedBreaks) > 0 {
		if err := json.Unmarshal(proposedBreaks, &req.ProposedBreaks); err != nil {
			return nil, fmt.Errorf("unmarshal proposed breaks: %w", err)
		}
	}
	if len(payload) > 0 {
		req.Payload = &model.LegacyPayload{}
		if err := json.Unmarshal(payload, req.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	if approvedBy.Valid {
		req.ApprovedBy = &approvedBy.String
	}
	if approvedAt.Valid {
		req.ApprovedAt = &approvedAt.Time
	}
	return req, nil
}

// clockText renders an optional time-of-day to its "HH:MM" column form.
func clockText(t *timeval.TimeOfDay) any {
	if t == nil {
		return nil
	}
	return t.String()
}

func clockFromText(s sql.NullString) (*timeval.TimeOfDay, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := timeval.ParseClock(s.String)
	if err != nil {
		return nil, fmt.Errorf("stored clock value %q: %w", s.String, err)
	}
	return &t, nil
}

func marshalNullable(v any) ([]byte, error) {
	switch val := v.(type) {
	case []model.ProposedBreak:
		if len(val) == 0 {
			return nil, nil
		}
	case *model.LegacyPayload:
		if val == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}
