package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"attendance.service/internal/core/model"
	"attendance.service/internal/ports/messaging"
	"attendance.service/internal/ports/repository"
	"attendance.service/internal/ports/repository/memory"
)

// fakeClock scripts the punch sequence; tests advance it between calls.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(hour, minute int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = time.Date(c.now.Year(), c.now.Month(), c.now.Day(), hour, minute, 0, 0, c.now.Location())
}

// recordingProducer captures published events instead of talking to SQS.
type recordingProducer struct {
	mu          sync.Mutex
	clockOuts   []messaging.ClockOutEvent
	corrections []messaging.CorrectionApprovedEvent
	fail        bool
}

func (p *recordingProducer) PublishClockOut(ctx context.Context, event messaging.ClockOutEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("sqs unavailable")
	}
	p.clockOuts = append(p.clockOuts, event)
	return nil
}

func (p *recordingProducer) PublishCorrectionApproved(ctx context.Context, event messaging.CorrectionApprovedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("sqs unavailable")
	}
	p.corrections = append(p.corrections, event)
	return nil
}

func newAttendanceFixture(t *testing.T) (*AttendanceService, *memory.Store, *fakeClock, *recordingProducer) {
	t.Helper()
	store := memory.NewStore()
	clock := newFakeClock(time.Date(2026, time.February, 10, 9, 0, 0, 0, time.UTC))
	producer := &recordingProducer{}
	return NewAttendanceService(store, producer, clock), store, clock, producer
}

func TestClockInCreatesRecord(t *testing.T) {
	svc, _, clock, _ := newAttendanceFixture(t)

	rec, err := svc.ClockIn(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ClockIn: %v", err)
	}
	if rec.ClockInAt == nil || !rec.ClockInAt.Equal(clock.Now()) {
		t.Errorf("ClockInAt = %v, want %v", rec.ClockInAt, clock.Now())
	}
	if got := rec.Status(); got != model.StatusWorking {
		t.Errorf("Status = %q, want %q", got, model.StatusWorking)
	}
	if !rec.WorkDate.Equal(time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("WorkDate = %v, want midnight of the punch day", rec.WorkDate)
	}
}

func TestClockInTwiceFails(t *testing.T) {
	svc, _, clock, _ := newAttendanceFixture(t)
	ctx := context.Background()

	if _, err := svc.ClockIn(ctx, "user-1"); err != nil {
		t.Fatalf("ClockIn: %v", err)
	}
	clock.Set(9, 5)
	if _, err := svc.ClockIn(ctx, "user-1"); !errors.Is(err, ErrAlreadyClockedIn) {
		t.Fatalf("second ClockIn = %v, want ErrAlreadyClockedIn", err)
	}
}

func TestPunchesRequireClockIn(t *testing.T) {
	svc, _, _, _ := newAttendanceFixture(t)
	ctx := context.Background()

	if _, err := svc.BreakStart(ctx, "user-1"); !errors.Is(err, ErrNotClockedIn) {
		t.Errorf("BreakStart = %v, want ErrNotClockedIn", err)
	}
	if _, err := svc.BreakEnd(ctx, "user-1"); !errors.Is(err, ErrNotClockedIn) {
		t.Errorf("BreakEnd = %v, want ErrNotClockedIn", err)
	}
	if _, err := svc.ClockOut(ctx, "user-1"); !errors.Is(err, ErrNotClockedIn) {
		t.Errorf("ClockOut = %v, want ErrNotClockedIn", err)
	}
}

func TestBreakStateMachine(t *testing.T) {
	svc, _, clock, _ := newAttendanceFixture(t)
	ctx := context.Background()

	if _, err := svc.ClockIn(ctx, "user-1"); err != nil {
		t.Fatalf("ClockIn: %v", err)
	}

	clock.Set(12, 0)
	rec, err := svc.BreakStart(ctx, "user-1")
	if err != nil {
		t.Fatalf("BreakStart: %v", err)
	}
	if got := rec.Status(); got != model.StatusBreak {
		t.Errorf("Status = %q, want %q", got, model.StatusBreak)
	}

	if _, err := svc.BreakStart(ctx, "user-1"); !errors.Is(err, ErrAlreadyOnBreak) {
		t.Fatalf("nested BreakStart = %v, want ErrAlreadyOnBreak", err)
	}
	if _, err := svc.ClockOut(ctx, "user-1"); !errors.Is(err, ErrOnBreak) {
		t.Fatalf("ClockOut on break = %v, want ErrOnBreak", err)
	}

	clock.Set(12, 30)
	rec, err = svc.BreakEnd(ctx, "user-1")
	if err != nil {
		t.Fatalf("BreakEnd: %v", err)
	}
	if got := rec.Status(); got != model.StatusWorking {
		t.Errorf("Status = %q, want %q", got, model.StatusWorking)
	}

	if _, err := svc.BreakEnd(ctx, "user-1"); !errors.Is(err, ErrNoOpenBreak) {
		t.Fatalf("second BreakEnd = %v, want ErrNoOpenBreak", err)
	}
}

func TestFullDayTotalsAndEvent(t *testing.T) {
	svc, _, clock, producer := newAttendanceFixture(t)
	ctx := context.Background()

	if _, err := svc.ClockIn(ctx, "user-1"); err != nil {
		t.Fatalf("ClockIn: %v", err)
	}
	clock.Set(12, 0)
	if _, err := svc.BreakStart(ctx, "user-1"); err != nil {
		t.Fatalf("BreakStart: %v", err)
	}
	clock.Set(12, 30)
	if _, err := svc.BreakEnd(ctx, "user-1"); err != nil {
		t.Fatalf("BreakEnd: %v", err)
	}
	clock.Set(18, 0)
	rec, err := svc.ClockOut(ctx, "user-1")
	if err != nil {
		t.Fatalf("ClockOut: %v", err)
	}

	totals := rec.Totals()
	if totals.BreakMinutes != 30 {
		t.Errorf("BreakMinutes = %d, want 30", totals.BreakMinutes)
	}
	if totals.WorkedMinutes == nil || *totals.WorkedMinutes != 510 {
		t.Errorf("WorkedMinutes = %v, want 510", totals.WorkedMinutes)
	}

	if len(producer.clockOuts) != 1 {
		t.Fatalf("published %d clock-out events, want 1", len(producer.clockOuts))
	}
	event := producer.clockOuts[0]
	if event.AttendanceID != rec.ID || event.UserID != "user-1" {
		t.Errorf("event = %+v, want attendance %d for user-1", event, rec.ID)
	}
	if event.WorkedMinutes != 510 || event.BreakMinutes != 30 {
		t.Errorf("event totals = %d/%d, want 510/30", event.WorkedMinutes, event.BreakMinutes)
	}
}

func TestClockOutSurvivesPublishFailure(t *testing.T) {
	svc, store, clock, producer := newAttendanceFixture(t)
	ctx := context.Background()

	if _, err := svc.ClockIn(ctx, "user-1"); err != nil {
		t.Fatalf("ClockIn: %v", err)
	}
	clock.Set(18, 0)
	producer.fail = true

	rec, err := svc.ClockOut(ctx, "user-1")
	if err != nil {
		t.Fatalf("ClockOut = %v, want success despite publish failure", err)
	}
	stored, err := store.GetAttendance(ctx, rec.ID, repository.NoLock)
	if err != nil {
		t.Fatalf("GetAttendance: %v", err)
	}
	if stored.ClockOutAt == nil {
		t.Error("clock-out was not persisted")
	}
}

func TestPunchesAfterClockOutFail(t *testing.T) {
	svc, _, clock, _ := newAttendanceFixture(t)
	ctx := context.Background()

	if _, err := svc.ClockIn(ctx, "user-1"); err != nil {
		t.Fatalf("ClockIn: %v", err)
	}
	clock.Set(18, 0)
	if _, err := svc.ClockOut(ctx, "user-1"); err != nil {
		t.Fatalf("ClockOut: %v", err)
	}

	if _, err := svc.BreakStart(ctx, "user-1"); !errors.Is(err, ErrAlreadyClockedOut) {
		t.Errorf("BreakStart after clock-out = %v, want ErrAlreadyClockedOut", err)
	}
	if _, err := svc.ClockOut(ctx, "user-1"); !errors.Is(err, ErrAlreadyClockedOut) {
		t.Errorf("second ClockOut = %v, want ErrAlreadyClockedOut", err)
	}
}

func TestConcurrentBreakStartOneWinner(t *testing.T) {
	svc, _, clock, _ := newAttendanceFixture(t)
	ctx := context.Background()

	if _, err := svc.ClockIn(ctx, "user-1"); err != nil {
		t.Fatalf("ClockIn: %v", err)
	}
	clock.Set(12, 0)

	const punches = 8
	errs := make(chan error, punches)
	var wg sync.WaitGroup
	for i := 0; i < punches; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.BreakStart(ctx, "user-1")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var won, lost int
	for err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrAlreadyOnBreak):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 1 || lost != punches-1 {
		t.Fatalf("got %d winners and %d losers, want exactly 1 winner", won, lost)
	}
}

func TestTodayDoesNotCreateRecord(t *testing.T) {
	svc, _, _, _ := newAttendanceFixture(t)
	ctx := context.Background()

	rec, err := svc.Today(ctx, "user-1")
	if err != nil {
		t.Fatalf("Today: %v", err)
	}
	if rec != nil {
		t.Fatalf("Today before any punch = %+v, want nil", rec)
	}

	if _, err := svc.ClockIn(ctx, "user-1"); err != nil {
		t.Fatalf("ClockIn: %v", err)
	}
	rec, err = svc.Today(ctx, "user-1")
	if err != nil {
		t.Fatalf("Today: %v", err)
	}
	if rec == nil || rec.ClockInAt == nil {
		t.Fatalf("Today after clock-in = %+v, want the day's record", rec)
	}
}

func TestRecordNotFound(t *testing.T) {
	svc, _, _, _ := newAttendanceFixture(t)

	if _, err := svc.Record(context.Background(), 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Record(42) = %v, want ErrNotFound", err)
	}
}

func TestMonthListsOnlyThatMonth(t *testing.T) {
	svc, _, clock, _ := newAttendanceFixture(t)
	ctx := context.Background()

	if _, err := svc.ClockIn(ctx, "user-1"); err != nil {
		t.Fatalf("ClockIn: %v", err)
	}
	// Next day, next month.
	clock.mu.Lock()
	clock.now = time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	clock.mu.Unlock()
	if _, err := svc.ClockIn(ctx, "user-1"); err != nil {
		t.Fatalf("ClockIn: %v", err)
	}

	records, err := svc.Month(ctx, "user-1", 2026, time.February)
	if err != nil {
		t.Fatalf("Month: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Month returned %d records, want 1", len(records))
	}
	if records[0].WorkDate.Month() != time.February {
		t.Errorf("WorkDate = %v, want February", records[0].WorkDate)
	}
}
