package core

import "errors"

// State errors: the punch is not legal in the record's current state. These
// are user-recoverable and surfaced verbatim as a rejected operation.
var (
	ErrAlreadyClockedIn  = errors.New("already clocked in")
	ErrNotClockedIn      = errors.New("not clocked in")
	ErrAlreadyClockedOut = errors.New("already clocked out")
	ErrAlreadyOnBreak    = errors.New("a break is already open")
	ErrNoOpenBreak       = errors.New("no open break")
	ErrOnBreak           = errors.New("cannot clock out while on break")
)

// Validation errors: bad caller input, always checked before any write.
var (
	ErrReasonRequired    = errors.New("reason is required")
	ErrInvalidClockRange = errors.New("clock-in must not be later than clock-out")
	ErrInvalidBreakStart = errors.New("break start is outside the working span")
	ErrInvalidBreakRange = errors.New("break end is later than clock-out")
)

// Workflow errors: a race or duplicate action, safe to surface as
// "already handled" rather than a hard failure.
var (
	ErrPendingExists   = errors.New("a pending correction request already exists")
	ErrAlreadyApproved = errors.New("correction request already approved")
)

// ErrNotFound is returned when the target record or request does not exist.
var ErrNotFound = errors.New("not found")
