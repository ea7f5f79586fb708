package repository

import (
	"context"
	"errors"
	"time"

	"attendance.service/internal/core/model"
)

// Storage-level sentinel errors, mapped onto the core taxonomy by the
// services that observe them.
var (
	// ErrNotFound is returned by Get* methods when the row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicatePending is returned when inserting a correction request
	// violates the one-pending-per-attendance constraint.
	ErrDuplicatePending = errors.New("pending correction request already exists for attendance")
)

// LockMode selects whether a read takes a row-level exclusive lock for the
// remainder of the surrounding transaction.
type LockMode int

const (
	NoLock LockMode = iota
	ForUpdate
)

// Repository contract. WithinTx runs fn against a transaction-bound copy of
// the repository; punches and approvals acquire their record lock inside it.
type Repository interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, r Repository) error) error

	GetAttendance(ctx context.Context, id int64, lock LockMode) (*model.AttendanceRecord, error)
	FindAttendanceByUserAndDate(ctx context.Context, userID string, workDate time.Time, lock LockMode) (*model.AttendanceRecord, error)
	CreateAttendance(ctx context.Context, userID string, workDate time.Time) (*model.AttendanceRecord, error)
	UpdateAttendance(ctx context.Context, rec *model.AttendanceRecord) error
	ListAttendanceByMonth(ctx context.Context, userID string, year int, month time.Month) ([]model.AttendanceRecord, error)

	InsertBreak(ctx context.Context, attendanceID int64, b model.BreakInterval) (int64, error)
	CloseBreak(ctx context.Context, breakID int64, end time.Time) error
	ReplaceBreaks(ctx context.Context, attendanceID int64, breaks []model.BreakInterval) error

	CreateCorrection(ctx context.Context, req *model.CorrectionRequest) error
	GetCorrection(ctx context.Context, id string, lock LockMode) (*model.CorrectionRequest, error)
	HasPendingCorrection(ctx context.Context, attendanceID int64) (bool, error)
	MarkCorrectionApproved(ctx context.Context, id string, approverID string, at time.Time) (bool, error)
	ListCorrections(ctx context.Context, userID string, status model.RequestStatus) ([]model.CorrectionRequest, error)
	UpdateExportStatus(ctx context.Context, id string, status model.ExportStatus, retryCount int) error
}
