package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"attendance.service/internal/core"
	"attendance.service/internal/core/model"
	"attendance.service/internal/core/timeval"
	"github.com/gorilla/mux"
)

// AttendanceHandler exposes the punch state machine and the correction
// workflow over JSON. It owns no business rules; core errors are mapped
// onto HTTP statuses and surfaced verbatim.
type AttendanceHandler struct {
	Attendance *core.AttendanceService
	Correction *core.CorrectionService
}

type punchRequest struct {
	UserID string `json:"userId"`
}

// attendanceResponse carries the record together with its derived status
// and minute totals, recomputed on every read.
type attendanceResponse struct {
	*model.AttendanceRecord
	Status model.Status `json:"status"`
	Totals model.Totals `json:"totals"`
}

func toResponse(rec *model.AttendanceRecord) attendanceResponse {
	return attendanceResponse{
		AttendanceRecord: rec,
		Status:           rec.Status(),
		Totals:           rec.Totals(),
	}
}

// ClockIn handles POST /attendance/clock-in.
func (h *AttendanceHandler) ClockIn(w http.ResponseWriter, r *http.Request) {
	h.punch(w, r, h.Attendance.ClockIn)
}

// BreakStart handles POST /attendance/break-start.
func (h *AttendanceHandler) BreakStart(w http.ResponseWriter, r *http.Request) {
	h.punch(w, r, h.Attendance.BreakStart)
}

// BreakEnd handles POST /attendance/break-end.
func (h *AttendanceHandler) BreakEnd(w http.ResponseWriter, r *http.Request) {
	h.punch(w, r, h.Attendance.BreakEnd)
}

// ClockOut handles POST /attendance/clock-out.
func (h *AttendanceHandler) ClockOut(w http.ResponseWriter, r *http.Request) {
	h.punch(w, r, h.Attendance.ClockOut)
}

func (h *AttendanceHandler) punch(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, userID string) (*model.AttendanceRecord, error)) {
	var req punchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" {
		writeErrorMessage(w, http.StatusBadRequest, "userId is required")
		return
	}

	rec, err := op(r.Context(), req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(rec))
}

// GetRecord handles GET /attendance/{id}.
func (h *AttendanceHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "Invalid attendance id")
		return
	}

	rec, err := h.Attendance.Record(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(rec))
}

// GetToday handles GET /attendance/today?userId=. Reads never create the
// day's record; before the first punch the response has no record.
func (h *AttendanceHandler) GetToday(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeErrorMessage(w, http.StatusBadRequest, "userId is required")
		return
	}

	rec, err := h.Attendance.Today(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": model.StatusBefore})
		return
	}
	writeJSON(w, http.StatusOK, toResponse(rec))
}

// ListMonth handles GET /attendance?userId=&year=&month=.
func (h *AttendanceHandler) ListMonth(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := q.Get("userId")
	year, yerr := strconv.Atoi(q.Get("year"))
	month, merr := strconv.Atoi(q.Get("month"))
	if userID == "" || yerr != nil || merr != nil || month < 1 || month > 12 {
		writeErrorMessage(w, http.StatusBadRequest, "userId, year and month are required")
		return
	}

	records, err := h.Attendance.Month(r.Context(), userID, year, time.Month(month))
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]attendanceResponse, 0, len(records))
	for i := range records {
		out = append(out, toResponse(&records[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

type correctionBreak struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type submitCorrectionRequest struct {
	UserID   string               `json:"userId"`
	ClockIn  string               `json:"clockIn"`
	ClockOut string               `json:"clockOut"`
	Breaks   []correctionBreak    `json:"breaks"`
	Payload  *model.LegacyPayload `json:"payload"`
	Reason   string               `json:"reason"`
}

// SubmitCorrection handles POST /attendance/{id}/corrections. Proposed
// times arrive as "HH:MM" strings; the legacy payload shape is accepted as
// an alternative carrier of the same values.
func (h *AttendanceHandler) SubmitCorrection(w http.ResponseWriter, r *http.Request) {
	attendanceID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "Invalid attendance id")
		return
	}

	var req submitCorrectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" {
		writeErrorMessage(w, http.StatusBadRequest, "userId is required")
		return
	}

	proposal, err := req.toProposal()
	if err != nil {
		writeError(w, err)
		return
	}

	created, err := h.Correction.Submit(r.Context(), attendanceID, req.UserID, proposal, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (req submitCorrectionRequest) toProposal() (core.CorrectionProposal, error) {
	clockIn, clockOut := req.ClockIn, req.ClockOut
	breaks := req.Breaks

	// Legacy-shaped submissions carry the same values under payload.
	if req.Payload != nil {
		if clockIn == "" {
			clockIn = req.Payload.ClockIn
		}
		if clockOut == "" {
			clockOut = req.Payload.ClockOut
		}
		if len(breaks) == 0 {
			for _, b := range req.Payload.Breaks {
				breaks = append(breaks, correctionBreak{Start: b.Start, End: b.End})
			}
		}
	}

	var p core.CorrectionProposal
	var err error
	if p.ClockIn, err = parseOptionalClock(clockIn); err != nil {
		return p, err
	}
	if p.ClockOut, err = parseOptionalClock(clockOut); err != nil {
		return p, err
	}
	for _, b := range breaks {
		var pb model.ProposedBreak
		if pb.Start, err = parseOptionalClock(b.Start); err != nil {
			return p, err
		}
		if pb.End, err = parseOptionalClock(b.End); err != nil {
			return p, err
		}
		if pb.Start == nil && pb.End == nil {
			continue // blank form rows are not part of the proposal
		}
		p.Breaks = append(p.Breaks, pb)
	}
	return p, nil
}

func parseOptionalClock(s string) (*timeval.TimeOfDay, error) {
	if s == "" {
		return nil, nil
	}
	t, err := timeval.ParseClock(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

type approveRequest struct {
	ApproverID string `json:"approverId"`
}

// ApproveCorrection handles POST /corrections/{id}/approve.
func (h *AttendanceHandler) ApproveCorrection(w http.ResponseWriter, r *http.Request) {
	requestID := mux.Vars(r)["id"]

	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ApproverID == "" {
		writeErrorMessage(w, http.StatusBadRequest, "approverId is required")
		return
	}

	rec, err := h.Correction.Approve(r.Context(), requestID, req.ApproverID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(rec))
}

// GetCorrection handles GET /corrections/{id}.
func (h *AttendanceHandler) GetCorrection(w http.ResponseWriter, r *http.Request) {
	req, err := h.Correction.Request(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// ListCorrections handles GET /corrections?userId=&status=. Without a
// userId this is the approver's all-users view.
func (h *AttendanceHandler) ListCorrections(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	status := model.RequestStatus(q.Get("status"))
	if status == "" {
		status = model.RequestPending
	}
	if status != model.RequestPending && status != model.RequestApproved {
		writeErrorMessage(w, http.StatusBadRequest, "status must be pending or approved")
		return
	}

	requests, err := h.Correction.List(r.Context(), q.Get("userId"), status)
	if err != nil {
		writeError(w, err)
		return
	}
	if requests == nil {
		requests = []model.CorrectionRequest{}
	}
	writeJSON(w, http.StatusOK, requests)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps the core error taxonomy onto HTTP statuses: state and
// workflow conflicts are 409, input validation is 422, anything unexpected
// stays a generic 500.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		writeErrorMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrAlreadyClockedIn),
		errors.Is(err, core.ErrNotClockedIn),
		errors.Is(err, core.ErrAlreadyClockedOut),
		errors.Is(err, core.ErrAlreadyOnBreak),
		errors.Is(err, core.ErrNoOpenBreak),
		errors.Is(err, core.ErrOnBreak),
		errors.Is(err, core.ErrPendingExists),
		errors.Is(err, core.ErrAlreadyApproved):
		writeErrorMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, core.ErrReasonRequired),
		errors.Is(err, core.ErrInvalidClockRange),
		errors.Is(err, core.ErrInvalidBreakStart),
		errors.Is(err, core.ErrInvalidBreakRange),
		errors.Is(err, timeval.ErrInvalidFormat):
		writeErrorMessage(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeErrorMessage(w, http.StatusInternalServerError, "Service error processing request")
	}
}
