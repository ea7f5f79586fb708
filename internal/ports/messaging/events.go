package messaging

import "time"

// ClockOutEvent is the JSON payload published when a user completes a
// working day.
type ClockOutEvent struct {
	AttendanceID  int64     `json:"attendanceId"`
	UserID        string    `json:"userId"`
	WorkedMinutes int       `json:"workedMinutes"`
	BreakMinutes  int       `json:"breakMinutes"`
	ClockOutAt    time.Time `json:"clockOutAt"`
}

// CorrectionApprovedEvent is the JSON payload published after a correction
// request has been merged into its attendance record. The export worker
// forwards it to the legacy attendance system.
type CorrectionApprovedEvent struct {
	RequestID    string    `json:"requestId"`
	AttendanceID int64     `json:"attendanceId"`
	UserID       string    `json:"userId"`
	ApprovedBy   string    `json:"approvedBy"`
	ApprovedAt   time.Time `json:"approvedAt"`
}
