package model

import (
	"testing"
	"time"
)

func at(hour, minute int) *time.Time {
	t := time.Date(2026, time.February, 10, hour, minute, 0, 0, time.UTC)
	return &t
}

func TestStatusDerivation(t *testing.T) {
	cases := []struct {
		name string
		rec  AttendanceRecord
		want Status
	}{
		{
			name: "no punches yet",
			rec:  AttendanceRecord{},
			want: StatusBefore,
		},
		{
			name: "clocked in",
			rec:  AttendanceRecord{ClockInAt: at(9, 0)},
			want: StatusWorking,
		},
		{
			name: "on break",
			rec: AttendanceRecord{
				ClockInAt: at(9, 0),
				Breaks:    []BreakInterval{{StartAt: at(12, 0), OrderNo: 1}},
			},
			want: StatusBreak,
		},
		{
			name: "back from break",
			rec: AttendanceRecord{
				ClockInAt: at(9, 0),
				Breaks:    []BreakInterval{{StartAt: at(12, 0), EndAt: at(12, 30), OrderNo: 1}},
			},
			want: StatusWorking,
		},
		{
			name: "clocked out",
			rec: AttendanceRecord{
				ClockInAt:  at(9, 0),
				ClockOutAt: at(18, 0),
				Breaks:     []BreakInterval{{StartAt: at(12, 0), EndAt: at(12, 30), OrderNo: 1}},
			},
			want: StatusAfter,
		},
		{
			// A record created by an approved correction can have a clock-out
			// without a clock-in removed; missing clock-in still wins.
			name: "clock out without clock in",
			rec:  AttendanceRecord{ClockOutAt: at(18, 0)},
			want: StatusBefore,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.rec.Status(); got != c.want {
				t.Errorf("Status() = %q, want %q", got, c.want)
			}
		})
	}
}

func TestOpenBreakPicksLatest(t *testing.T) {
	rec := AttendanceRecord{
		ClockInAt: at(9, 0),
		Breaks: []BreakInterval{
			{ID: 1, StartAt: at(10, 0), EndAt: at(10, 15), OrderNo: 1},
			{ID: 2, StartAt: at(12, 0), OrderNo: 2},
		},
	}

	open := rec.OpenBreak()
	if open == nil || open.ID != 2 {
		t.Fatalf("OpenBreak() = %+v, want break 2", open)
	}
}

func TestOpenBreakTieBreaksOnOrderNo(t *testing.T) {
	rec := AttendanceRecord{
		ClockInAt: at(9, 0),
		Breaks: []BreakInterval{
			{ID: 1, StartAt: at(12, 0), OrderNo: 1},
			{ID: 2, StartAt: at(12, 0), OrderNo: 2},
		},
	}

	open := rec.OpenBreak()
	if open == nil || open.OrderNo != 2 {
		t.Fatalf("OpenBreak() = %+v, want order 2", open)
	}
}

func TestNextOrderNo(t *testing.T) {
	rec := AttendanceRecord{}
	if got := rec.NextOrderNo(); got != 1 {
		t.Errorf("empty record NextOrderNo() = %d, want 1", got)
	}

	rec.Breaks = []BreakInterval{{OrderNo: 1}, {OrderNo: 3}}
	if got := rec.NextOrderNo(); got != 4 {
		t.Errorf("NextOrderNo() = %d, want 4", got)
	}
}

func TestTotalsCompleteDay(t *testing.T) {
	rec := AttendanceRecord{
		ClockInAt:  at(9, 0),
		ClockOutAt: at(18, 0),
		Breaks: []BreakInterval{
			{StartAt: at(12, 0), EndAt: at(12, 30), OrderNo: 1},
			{StartAt: at(15, 0), EndAt: at(15, 10), OrderNo: 2},
		},
	}

	totals := rec.Totals()
	if totals.BreakMinutes != 40 {
		t.Errorf("BreakMinutes = %d, want 40", totals.BreakMinutes)
	}
	if totals.WorkedMinutes == nil || *totals.WorkedMinutes != 500 {
		t.Errorf("WorkedMinutes = %v, want 500", totals.WorkedMinutes)
	}
}

func TestTotalsIncompleteDay(t *testing.T) {
	rec := AttendanceRecord{
		ClockInAt: at(9, 0),
		Breaks:    []BreakInterval{{StartAt: at(12, 0), EndAt: at(12, 30), OrderNo: 1}},
	}

	totals := rec.Totals()
	if totals.WorkedMinutes != nil {
		t.Errorf("WorkedMinutes = %v, want nil while day is open", *totals.WorkedMinutes)
	}
	if totals.BreakMinutes != 30 {
		t.Errorf("BreakMinutes = %d, want 30", totals.BreakMinutes)
	}

	// Open breaks do not count toward the total.
	rec.Breaks = append(rec.Breaks, BreakInterval{StartAt: at(15, 0), OrderNo: 2})
	if got := rec.Totals().BreakMinutes; got != 30 {
		t.Errorf("BreakMinutes with open break = %d, want 30", got)
	}
}

func TestTotalsFlooredAtZero(t *testing.T) {
	// Manually corrected data can make breaks exceed the work span.
	rec := AttendanceRecord{
		ClockInAt:  at(9, 0),
		ClockOutAt: at(10, 0),
		Breaks:     []BreakInterval{{StartAt: at(9, 0), EndAt: at(11, 0), OrderNo: 1}},
	}

	totals := rec.Totals()
	if totals.WorkedMinutes == nil || *totals.WorkedMinutes != 0 {
		t.Errorf("WorkedMinutes = %v, want 0", totals.WorkedMinutes)
	}
}
