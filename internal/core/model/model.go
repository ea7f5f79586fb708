package model

import (
	"time"

	"attendance.service/internal/core/timeval"
)

// Status is the derived working state of an attendance record. It is
// recomputed from the record on every read and never stored.
type Status string

const (
	StatusBefore  Status = "before"
	StatusWorking Status = "working"
	StatusBreak   Status = "break"
	StatusAfter   Status = "after"
)

// RequestStatus is the lifecycle state of a correction request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
)

// ExportStatus tracks downstream delivery of an approved correction to the
// legacy attendance system.
type ExportStatus string

const (
	StatusExportPending    ExportStatus = "PENDING"
	StatusExportProcessing ExportStatus = "PROCESSING"
	StatusExportCompleted  ExportStatus = "COMPLETED"
	StatusExportFailed     ExportStatus = "FAILED"
)

// BreakInterval is one break within a working day. Either side may be
// missing: an interval with a start and no end is an open break.
type BreakInterval struct {
	ID      int64      `json:"id"`
	StartAt *time.Time `json:"startAt,omitempty"`
	EndAt   *time.Time `json:"endAt,omitempty"`
	OrderNo int        `json:"orderNo"`
}

// Open reports whether the break has been started but not yet ended.
func (b BreakInterval) Open() bool {
	return b.StartAt != nil && b.EndAt == nil
}

// AttendanceRecord is one user's one calendar day. There is exactly one
// record per (UserID, WorkDate); it owns its break intervals.
type AttendanceRecord struct {
	ID         int64           `json:"id"`
	UserID     string          `json:"userId"`
	WorkDate   time.Time       `json:"workDate"`
	ClockInAt  *time.Time      `json:"clockInAt,omitempty"`
	ClockOutAt *time.Time      `json:"clockOutAt,omitempty"`
	Note       string          `json:"note,omitempty"`
	Breaks     []BreakInterval `json:"breaks"`
}

// OpenBreak returns the most recently started open break, ties broken by
// OrderNo descending, or nil when no break is open.
func (a *AttendanceRecord) OpenBreak() *BreakInterval {
	var latest *BreakInterval
	for i := range a.Breaks {
		b := &a.Breaks[i]
		if !b.Open() {
			continue
		}
		if latest == nil || b.StartAt.After(*latest.StartAt) ||
			(b.StartAt.Equal(*latest.StartAt) && b.OrderNo > latest.OrderNo) {
			latest = b
		}
	}
	return latest
}

// NextOrderNo returns the order number for a newly started break.
func (a *AttendanceRecord) NextOrderNo() int {
	max := 0
	for _, b := range a.Breaks {
		if b.OrderNo > max {
			max = b.OrderNo
		}
	}
	return max + 1
}

// Status derives the working state from the record's fields.
func (a *AttendanceRecord) Status() Status {
	switch {
	case a.ClockInAt == nil:
		return StatusBefore
	case a.ClockOutAt != nil:
		return StatusAfter
	case a.OpenBreak() != nil:
		return StatusBreak
	default:
		return StatusWorking
	}
}

// Totals is the computed minute summary for a record. WorkedMinutes is nil
// while the day is incomplete (clock-in or clock-out missing).
type Totals struct {
	BreakMinutes  int  `json:"breakMinutes"`
	WorkedMinutes *int `json:"workedMinutes,omitempty"`
}

// Totals sums closed breaks and, for a completed day, the worked minutes
// (work span minus breaks, floored at 0 against bad manual data).
func (a *AttendanceRecord) Totals() Totals {
	breakMinutes := 0
	for _, b := range a.Breaks {
		if b.StartAt != nil && b.EndAt != nil {
			breakMinutes += timeval.MinutesBetween(*b.StartAt, *b.EndAt)
		}
	}

	t := Totals{BreakMinutes: breakMinutes}
	if a.ClockInAt != nil && a.ClockOutAt != nil {
		worked := timeval.MinutesBetween(*a.ClockInAt, *a.ClockOutAt) - breakMinutes
		if worked < 0 {
			worked = 0
		}
		t.WorkedMinutes = &worked
	}
	return t
}

// ProposedBreak is one start/end pair proposed by a correction request.
type ProposedBreak struct {
	Start *timeval.TimeOfDay `json:"start,omitempty"`
	End   *timeval.TimeOfDay `json:"end,omitempty"`
}

// LegacyBreak is a raw break pair inside a LegacyPayload.
type LegacyBreak struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// LegacyPayload is the older storage shape for a correction's proposed
// values: raw "HH:MM" strings under a single JSON column. Requests created
// before the proposed_* columns existed carry their values only here.
type LegacyPayload struct {
	ClockIn  string        `json:"clock_in,omitempty"`
	ClockOut string        `json:"clock_out,omitempty"`
	Breaks   []LegacyBreak `json:"breaks,omitempty"`
}

// CorrectionRequest is a user's proposed replacement for an attendance
// record's fields. It transitions pending -> approved exactly once.
type CorrectionRequest struct {
	ID               string             `json:"id"`
	UserID           string             `json:"userId"`
	AttendanceID     int64              `json:"attendanceId"`
	Status           RequestStatus      `json:"status"`
	Reason           string             `json:"reason"`
	ProposedClockIn  *timeval.TimeOfDay `json:"proposedClockIn,omitempty"`
	ProposedClockOut *timeval.TimeOfDay `json:"proposedClockOut,omitempty"`
	ProposedBreaks   []ProposedBreak    `json:"proposedBreaks,omitempty"`
	Payload          *LegacyPayload     `json:"payload,omitempty"`
	ApprovedBy       *string            `json:"approvedBy,omitempty"`
	ApprovedAt       *time.Time         `json:"approvedAt,omitempty"`
	CreatedAt        time.Time          `json:"createdAt"`
	ExportStatus     ExportStatus       `json:"exportStatus"`
	ExportRetryCount int                `json:"exportRetryCount"`
}
