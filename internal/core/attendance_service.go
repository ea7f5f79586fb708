package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"attendance.service/internal/core/model"
	"attendance.service/internal/ports/messaging"
	"attendance.service/internal/ports/repository"
	"github.com/rs/zerolog/log"
)

// AttendanceService drives the day-to-day punch state machine:
// before -> working -> (break -> working)* -> after. Every punch runs in one
// transaction holding the record's row lock, so concurrent duplicate punches
// serialize and the loser sees the updated state.
type AttendanceService struct {
	repo     repository.Repository
	producer messaging.Producer
	clock    Clock
}

// NewAttendanceService wires the punch state machine to its persistence
// gateway, event producer and clock source.
func NewAttendanceService(repo repository.Repository, p messaging.Producer, clock Clock) *AttendanceService {
	return &AttendanceService{
		repo:     repo,
		producer: p,
		clock:    clock,
	}
}

// ClockIn records the start of the user's working day, creating the day's
// record if this is the first punch. Fails with ErrAlreadyClockedIn on a
// repeated punch.
func (s *AttendanceService) ClockIn(ctx context.Context, userID string) (*model.AttendanceRecord, error) {
	now := s.clock.Now()

	var out *model.AttendanceRecord
	err := s.repo.WithinTx(ctx, func(ctx context.Context, r repository.Repository) error {
		rec, err := r.FindAttendanceByUserAndDate(ctx, userID, WorkDate(now), repository.ForUpdate)
		if err != nil {
			return fmt.Errorf("find attendance: %w", err)
		}
		if rec == nil {
			rec, err = r.CreateAttendance(ctx, userID, WorkDate(now))
			if err != nil {
				return fmt.Errorf("create attendance: %w", err)
			}
		}
		if rec.ClockInAt != nil {
			return ErrAlreadyClockedIn
		}

		rec.ClockInAt = &now
		if err := r.UpdateAttendance(ctx, rec); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// BreakStart opens a new break. The record lock taken by the lookup
// guarantees two concurrent break-starts cannot both observe "no open
// break"; the loser fails with ErrAlreadyOnBreak.
func (s *AttendanceService) BreakStart(ctx context.Context, userID string) (*model.AttendanceRecord, error) {
	now := s.clock.Now()

	var out *model.AttendanceRecord
	err := s.repo.WithinTx(ctx, func(ctx context.Context, r repository.Repository) error {
		rec, err := s.lockedRecord(ctx, r, userID, now)
		if err != nil {
			return err
		}
		if rec.OpenBreak() != nil {
			return ErrAlreadyOnBreak
		}

		b := model.BreakInterval{StartAt: &now, OrderNo: rec.NextOrderNo()}
		id, err := r.InsertBreak(ctx, rec.ID, b)
		if err != nil {
			return err
		}
		b.ID = id
		rec.Breaks = append(rec.Breaks, b)
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// BreakEnd closes the most recently started open break. Fails with
// ErrNoOpenBreak when every break is already closed.
func (s *AttendanceService) BreakEnd(ctx context.Context, userID string) (*model.AttendanceRecord, error) {
	now := s.clock.Now()

	var out *model.AttendanceRecord
	err := s.repo.WithinTx(ctx, func(ctx context.Context, r repository.Repository) error {
		rec, err := s.lockedRecord(ctx, r, userID, now)
		if err != nil {
			return err
		}
		open := rec.OpenBreak()
		if open == nil {
			return ErrNoOpenBreak
		}

		if err := r.CloseBreak(ctx, open.ID, now); err != nil {
			return err
		}
		open.EndAt = &now
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ClockOut ends the working day; the day must not have an open break. On
// success a clock-out event with the computed totals is published for
// downstream consumers.
func (s *AttendanceService) ClockOut(ctx context.Context, userID string) (*model.AttendanceRecord, error) {
	now := s.clock.Now()

	var out *model.AttendanceRecord
	err := s.repo.WithinTx(ctx, func(ctx context.Context, r repository.Repository) error {
		rec, err := s.lockedRecord(ctx, r, userID, now)
		if err != nil {
			return err
		}
		if rec.OpenBreak() != nil {
			return ErrOnBreak
		}

		rec.ClockOutAt = &now
		if err := r.UpdateAttendance(ctx, rec); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	totals := out.Totals()
	event := messaging.ClockOutEvent{
		AttendanceID: out.ID,
		UserID:       out.UserID,
		BreakMinutes: totals.BreakMinutes,
		ClockOutAt:   now,
	}
	if totals.WorkedMinutes != nil {
		event.WorkedMinutes = *totals.WorkedMinutes
	}
	// The punch is committed; a publish failure must not undo it.
	if err := s.producer.PublishClockOut(ctx, event); err != nil {
		log.Ctx(ctx).Warn().Err(err).Int64("attendance_id", out.ID).Msg("Failed to publish clock-out event")
	}

	return out, nil
}

// Record fetches a record by ID with its breaks.
func (s *AttendanceService) Record(ctx context.Context, id int64) (*model.AttendanceRecord, error) {
	rec, err := s.repo.GetAttendance(ctx, id, repository.NoLock)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	return rec, err
}

// Today returns the user's record for the current work date, or nil when no
// punch has happened yet. Mere reads never create a record.
func (s *AttendanceService) Today(ctx context.Context, userID string) (*model.AttendanceRecord, error) {
	return s.repo.FindAttendanceByUserAndDate(ctx, userID, WorkDate(s.clock.Now()), repository.NoLock)
}

// Month lists the user's records for one calendar month.
func (s *AttendanceService) Month(ctx context.Context, userID string, year int, month time.Month) ([]model.AttendanceRecord, error) {
	return s.repo.ListAttendanceByMonth(ctx, userID, year, month)
}

// lockedRecord loads today's record under its row lock and enforces the
// preconditions shared by break punches and clock-out.
func (s *AttendanceService) lockedRecord(ctx context.Context, r repository.Repository, userID string, now time.Time) (*model.AttendanceRecord, error) {
	rec, err := r.FindAttendanceByUserAndDate(ctx, userID, WorkDate(now), repository.ForUpdate)
	if err != nil {
		return nil, fmt.Errorf("find attendance: %w", err)
	}
	if rec == nil || rec.ClockInAt == nil {
		return nil, ErrNotClockedIn
	}
	if rec.ClockOutAt != nil {
		return nil, ErrAlreadyClockedOut
	}
	return rec, nil
}
