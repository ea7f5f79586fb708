package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"attendance.service/internal/core/model"
	"attendance.service/internal/core/timeval"
	"attendance.service/internal/ports/messaging"
	"attendance.service/internal/ports/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// CorrectionService owns the correction-request workflow: users submit a
// proposed replacement for a day's record, an approver merges it. The merge
// is all-or-nothing under the target record's row lock.
type CorrectionService struct {
	repo     repository.Repository
	producer messaging.Producer
	clock    Clock
}

// NewCorrectionService wires the correction workflow to its persistence
// gateway, event producer and clock source.
func NewCorrectionService(repo repository.Repository, p messaging.Producer, clock Clock) *CorrectionService {
	return &CorrectionService{
		repo:     repo,
		producer: p,
		clock:    clock,
	}
}

// CorrectionProposal carries the values a user wants applied to a record.
// Breaks may omit either side; validation at submission is strict about
// ordering but tolerates incomplete pairs.
type CorrectionProposal struct {
	ClockIn  *timeval.TimeOfDay
	ClockOut *timeval.TimeOfDay
	Breaks   []model.ProposedBreak
}

// Submit validates a proposal against the target record and persists it as
// a pending request. Nothing is written when any validation fails. The
// one-pending-per-record rule is checked here and enforced again by the
// storage layer's unique constraint, closing the check-then-act window.
func (s *CorrectionService) Submit(ctx context.Context, attendanceID int64, userID string, proposal CorrectionProposal, reason string) (*model.CorrectionRequest, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, ErrReasonRequired
	}

	var out *model.CorrectionRequest
	err := s.repo.WithinTx(ctx, func(ctx context.Context, r repository.Repository) error {
		rec, err := r.GetAttendance(ctx, attendanceID, repository.NoLock)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get attendance: %w", err)
		}
		// Users may only file against their own records.
		if rec.UserID != userID {
			return ErrNotFound
		}

		pending, err := r.HasPendingCorrection(ctx, attendanceID)
		if err != nil {
			return err
		}
		if pending {
			return ErrPendingExists
		}

		if err := validateProposal(rec, proposal); err != nil {
			return err
		}

		req := &model.CorrectionRequest{
			ID:               uuid.NewString(),
			UserID:           userID,
			AttendanceID:     attendanceID,
			Status:           model.RequestPending,
			Reason:           reason,
			ProposedClockIn:  proposal.ClockIn,
			ProposedClockOut: proposal.ClockOut,
			ProposedBreaks:   proposal.Breaks,
			CreatedAt:        s.clock.Now(),
			ExportStatus:     model.StatusExportPending,
		}
		if err := r.CreateCorrection(ctx, req); err != nil {
			if errors.Is(err, repository.ErrDuplicatePending) {
				return ErrPendingExists
			}
			return err
		}
		out = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Approve merges a pending request into its attendance record: partial
// overwrite of the clock fields, reason applied as the note, and wholesale
// replacement of the break set. The whole merge and the pending->approved
// transition commit atomically; a duplicate approval reports
// ErrAlreadyApproved without touching the record again.
func (s *CorrectionService) Approve(ctx context.Context, requestID string, approverID string) (*model.AttendanceRecord, error) {
	now := s.clock.Now()

	var (
		out   *model.AttendanceRecord
		event messaging.CorrectionApprovedEvent
	)
	err := s.repo.WithinTx(ctx, func(ctx context.Context, r repository.Repository) error {
		req, err := r.GetCorrection(ctx, requestID, repository.ForUpdate)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get correction request: %w", err)
		}
		if req.Status != model.RequestPending {
			return ErrAlreadyApproved
		}

		rec, err := r.GetAttendance(ctx, req.AttendanceID, repository.ForUpdate)
		if err != nil {
			return fmt.Errorf("get attendance: %w", err)
		}

		if in := resolveProposedClockIn(req); in != nil {
			t := timeval.Combine(rec.WorkDate, *in)
			rec.ClockInAt = &t
		}
		if outAt := resolveProposedClockOut(req); outAt != nil {
			t := timeval.Combine(rec.WorkDate, *outAt)
			rec.ClockOutAt = &t
		}
		if req.Reason != "" {
			rec.Note = req.Reason
		}
		if err := r.UpdateAttendance(ctx, rec); err != nil {
			return err
		}

		// Existing breaks are always discarded; only complete proposed
		// pairs come back. Pairs missing a side are dropped, not rejected.
		var replacement []model.BreakInterval
		for _, pb := range resolveProposedBreaks(req) {
			if pb.Start == nil || pb.End == nil {
				continue
			}
			start := timeval.Combine(rec.WorkDate, *pb.Start)
			end := timeval.Combine(rec.WorkDate, *pb.End)
			replacement = append(replacement, model.BreakInterval{
				StartAt: &start,
				EndAt:   &end,
				OrderNo: len(replacement) + 1,
			})
		}
		if err := r.ReplaceBreaks(ctx, rec.ID, replacement); err != nil {
			return err
		}

		applied, err := r.MarkCorrectionApproved(ctx, requestID, approverID, now)
		if err != nil {
			return err
		}
		if !applied {
			return ErrAlreadyApproved
		}

		out, err = r.GetAttendance(ctx, rec.ID, repository.NoLock)
		if err != nil {
			return err
		}
		event = messaging.CorrectionApprovedEvent{
			RequestID:    req.ID,
			AttendanceID: req.AttendanceID,
			UserID:       req.UserID,
			ApprovedBy:   approverID,
			ApprovedAt:   now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The merge is committed; a publish failure must not undo it.
	if err := s.producer.PublishCorrectionApproved(ctx, event); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("request_id", requestID).Msg("Failed to publish correction-approved event")
	}

	return out, nil
}

// Request fetches a correction request by ID.
func (s *CorrectionService) Request(ctx context.Context, id string) (*model.CorrectionRequest, error) {
	req, err := s.repo.GetCorrection(ctx, id, repository.NoLock)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	return req, err
}

// List returns correction requests filtered by status, optionally scoped to
// one user (empty userID is the approver's all-users view).
func (s *CorrectionService) List(ctx context.Context, userID string, status model.RequestStatus) ([]model.CorrectionRequest, error) {
	return s.repo.ListCorrections(ctx, userID, status)
}

// UpdateExportStatus is used by the export worker to track downstream
// delivery of an approved request.
func (s *CorrectionService) UpdateExportStatus(ctx context.Context, id string, status model.ExportStatus, retryCount int) error {
	return s.repo.UpdateExportStatus(ctx, id, status, retryCount)
}

// validateProposal applies the cross-field ordering rules before anything
// is persisted. Break boundaries are checked against the effective working
// span: the proposed clock value when present, the record's current value
// otherwise.
func validateProposal(rec *model.AttendanceRecord, p CorrectionProposal) error {
	if p.ClockIn != nil && p.ClockOut != nil && p.ClockIn.After(*p.ClockOut) {
		return ErrInvalidClockRange
	}

	effIn := effectiveClock(p.ClockIn, rec.ClockInAt)
	effOut := effectiveClock(p.ClockOut, rec.ClockOutAt)

	for _, b := range p.Breaks {
		if b.Start != nil {
			if effIn != nil && effIn.After(*b.Start) {
				return ErrInvalidBreakStart
			}
			if effOut != nil && b.Start.After(*effOut) {
				return ErrInvalidBreakStart
			}
		}
		if b.End != nil && effOut != nil && b.End.After(*effOut) {
			return ErrInvalidBreakRange
		}
	}
	return nil
}

func effectiveClock(proposed *timeval.TimeOfDay, current *time.Time) *timeval.TimeOfDay {
	if proposed != nil {
		return proposed
	}
	if current != nil {
		t := timeval.TimeOfDay{Hour: current.Hour(), Minute: current.Minute()}
		return &t
	}
	return nil
}

// resolveProposedClockIn returns the request's effective proposed clock-in:
// the canonical field when set, otherwise the legacy payload value. Both
// paths carry the same semantic value; the ambiguity stays localized here.
func resolveProposedClockIn(req *model.CorrectionRequest) *timeval.TimeOfDay {
	if req.ProposedClockIn != nil {
		return req.ProposedClockIn
	}
	if req.Payload != nil {
		return parseLegacyClock(req.Payload.ClockIn)
	}
	return nil
}

func resolveProposedClockOut(req *model.CorrectionRequest) *timeval.TimeOfDay {
	if req.ProposedClockOut != nil {
		return req.ProposedClockOut
	}
	if req.Payload != nil {
		return parseLegacyClock(req.Payload.ClockOut)
	}
	return nil
}

// resolveProposedBreaks prefers the canonical break list and falls back to
// the legacy payload. Sides that are empty or unparsable resolve to nil and
// get dropped by the merge's complete-pair filter.
func resolveProposedBreaks(req *model.CorrectionRequest) []model.ProposedBreak {
	if len(req.ProposedBreaks) > 0 {
		return req.ProposedBreaks
	}
	if req.Payload == nil {
		return nil
	}
	var out []model.ProposedBreak
	for _, lb := range req.Payload.Breaks {
		out = append(out, model.ProposedBreak{
			Start: parseLegacyClock(lb.Start),
			End:   parseLegacyClock(lb.End),
		})
	}
	return out
}

func parseLegacyClock(s string) *timeval.TimeOfDay {
	if s == "" {
		return nil
	}
	t, err := timeval.ParseClock(s)
	if err != nil {
		return nil
	}
	return &t
}
