package scheduler

import (
	"testing"
	"time"

	"github.com/AndrewArto/laundropi-control-sub000/protocol"
)

type fakeSwitch struct {
	calls []struct {
		id int
		on bool
	}
}

func (f *fakeSwitch) Set(id int, on bool) error {
	f.calls = append(f.calls, struct {
		id int
		on bool
	}{id, on})
	return nil
}

// at builds a time on a known calendar: 2026-08-24 is a Monday.
func at(day time.Weekday, hhmm string) time.Time {
	base := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC) // Monday
	offset := (int(day) - int(time.Monday) + 7) % 7
	m, _ := parseHHMM(hhmm)
	return base.AddDate(0, 0, offset).Add(time.Duration(m) * time.Minute)
}

func schedule(relayID int, days []string, from, to string) []protocol.RelaySchedule {
	return []protocol.RelaySchedule{{
		RelayID: relayID,
		Entries: []protocol.ScheduleEntry{{Days: days, From: from, To: to}},
	}}
}

func TestOvernightWindow(t *testing.T) {
	entries := []protocol.ScheduleEntry{{Days: []string{"mon"}, From: "22:00", To: "06:00"}}

	if !evaluate(entries, at(time.Tuesday, "03:00")) {
		t.Fatal("Tue 03:00 should be inside Mon 22:00-06:00")
	}
	if evaluate(entries, at(time.Tuesday, "07:00")) {
		t.Fatal("Tue 07:00 should be outside Mon 22:00-06:00")
	}
	if !evaluate(entries, at(time.Monday, "23:30")) {
		t.Fatal("Mon 23:30 should be inside Mon 22:00-06:00")
	}
	if evaluate(entries, at(time.Monday, "03:00")) {
		t.Fatal("Mon 03:00 precedes the Mon window entirely")
	}
}

func TestSameDayWindowHalfOpen(t *testing.T) {
	entries := []protocol.ScheduleEntry{{Days: []string{"wed"}, From: "09:00", To: "18:00"}}

	if !evaluate(entries, at(time.Wednesday, "09:00")) {
		t.Fatal("window start is inclusive")
	}
	if evaluate(entries, at(time.Wednesday, "18:00")) {
		t.Fatal("window end is exclusive")
	}
	if evaluate(entries, at(time.Thursday, "12:00")) {
		t.Fatal("day set must match")
	}
}

func TestEditSuppressionUntilBoundary(t *testing.T) {
	sw := &fakeSwitch{}
	s := New(sw)
	clock := at(time.Wednesday, "14:30")
	s.now = func() time.Time { return clock }

	s.SetSchedule(schedule(1, []string{"wed"}, "09:00", "18:00"), "v1")

	// Mid-window push: no flip at 14:30 or on later in-window ticks.
	s.Tick()
	clock = at(time.Wednesday, "14:31")
	s.Tick()
	if len(sw.calls) != 0 {
		t.Fatalf("suppressed relay toggled: %v", sw.calls)
	}

	// The 18:00 boundary lifts suppression and applies exactly once.
	clock = at(time.Wednesday, "18:00")
	s.Tick()
	if len(sw.calls) != 1 || sw.calls[0].id != 1 || sw.calls[0].on {
		t.Fatalf("expected single off at boundary, got %v", sw.calls)
	}
}

func TestAppliesExactlyOncePerChange(t *testing.T) {
	sw := &fakeSwitch{}
	s := New(sw)
	clock := at(time.Wednesday, "08:00")
	s.now = func() time.Time { return clock }

	s.SetSchedule(schedule(1, []string{"wed"}, "09:00", "18:00"), "v1")
	s.Tick() // suppressed, records shouldBeOn=false

	clock = at(time.Wednesday, "09:00")
	s.Tick() // boundary: on
	clock = at(time.Wednesday, "09:01")
	s.Tick()
	clock = at(time.Wednesday, "09:02")
	s.Tick()

	if len(sw.calls) != 1 || !sw.calls[0].on {
		t.Fatalf("expected one on command, got %v", sw.calls)
	}
}

func TestSleepGapReappliesState(t *testing.T) {
	sw := &fakeSwitch{}
	s := New(sw)
	clock := at(time.Wednesday, "08:59")
	s.now = func() time.Time { return clock }

	s.SetSchedule(schedule(1, []string{"wed"}, "09:00", "18:00"), "v1")
	s.Tick()
	clock = at(time.Wednesday, "09:00")
	s.Tick()
	if len(sw.calls) != 1 {
		t.Fatalf("expected on at 09:00, got %v", sw.calls)
	}

	// A 10 minute wall-clock jump resets applied tracking and reasserts.
	clock = at(time.Wednesday, "09:10")
	s.Tick()
	if len(sw.calls) != 2 || !sw.calls[1].on {
		t.Fatalf("expected reapply after gap, got %v", sw.calls)
	}
}

func TestManualOverrideHoldsUntilBoundary(t *testing.T) {
	sw := &fakeSwitch{}
	s := New(sw)
	clock := at(time.Wednesday, "17:57")
	s.now = func() time.Time { return clock }

	s.SetSchedule(schedule(1, []string{"wed"}, "09:00", "18:00"), "v1")
	s.Tick()

	// Operator forces the relay off mid-window; the scheduler must not
	// flip it back on while the window is still open.
	s.NotifyManual(1, false)
	clock = at(time.Wednesday, "17:58")
	s.Tick()
	clock = at(time.Wednesday, "17:59")
	s.Tick()
	if len(sw.calls) != 0 {
		t.Fatalf("manual override overridden early: %v", sw.calls)
	}

	// The 18:00 boundary lifts suppression; the relay already matches
	// the schedule (off), so nothing redundant is sent.
	clock = at(time.Wednesday, "18:00")
	s.Tick()
	if len(sw.calls) != 0 {
		t.Fatalf("redundant command at boundary: %v", sw.calls)
	}
}

func TestScheduleVersionEcho(t *testing.T) {
	s := New(&fakeSwitch{})
	if s.Version() != "" {
		t.Fatal("fresh scheduler should report empty version")
	}
	s.SetSchedule(schedule(1, []string{"mon"}, "09:00", "18:00"), "abc123")
	if s.Version() != "abc123" {
		t.Fatalf("version = %q", s.Version())
	}
}
