// Package scheduler turns the pushed time-window rules into local relay
// commands. It runs on a one-second tick and is the only writer of
// schedule-driven relay changes on the device.
package scheduler

import (
	"strings"
	"sync"
	"time"

	"github.com/AndrewArto/laundropi-control-sub000/agent/internal/logger"
	"github.com/AndrewArto/laundropi-control-sub000/protocol"
)

// Switcher is the slice of the relay driver the scheduler needs.
type Switcher interface {
	Set(id int, on bool) error
}

// maxTickGap is how much wall clock may pass between ticks before the
// scheduler assumes the device slept and resets its applied-state tracking.
const maxTickGap = 65 * time.Second

type track struct {
	shouldBeOn  *bool
	lastApplied *bool
	// suppressed holds enforcement after a schedule edit or a manual
	// override until the next natural window boundary.
	suppressed bool
}

type Scheduler struct {
	mu       sync.Mutex
	driver   Switcher
	entries  map[int][]protocol.ScheduleEntry
	version  string
	tracks   map[int]*track
	lastTick time.Time

	now func() time.Time
}

func New(driver Switcher) *Scheduler {
	return &Scheduler{
		driver:  driver,
		entries: make(map[int][]protocol.ScheduleEntry),
		tracks:  make(map[int]*track),
		now:     time.Now,
	}
}

// SetSchedule replaces the active rules. Every governed relay is marked
// suppressed with its tracked window state cleared, so an edit made while a
// relay is already inside (or outside) a window does not flip it on the
// spot; enforcement resumes at the next boundary crossing.
func (s *Scheduler) SetSchedule(schedules []protocol.RelaySchedule, version string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[int][]protocol.ScheduleEntry, len(schedules))
	for _, sch := range schedules {
		s.entries[sch.RelayID] = sch.Entries
	}
	s.version = version
	for id := range s.tracks {
		if _, governed := s.entries[id]; !governed {
			delete(s.tracks, id)
		}
	}
	for id := range s.entries {
		t := s.tracks[id]
		if t == nil {
			t = &track{}
			s.tracks[id] = t
		}
		t.shouldBeOn = nil
		t.suppressed = true
	}
	logger.Infof("schedule applied: %d relays, version %s", len(s.entries), version)
}

// Version reports the hash of the schedule currently in force, echoed back
// to the hub in every heartbeat.
func (s *Scheduler) Version() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// NotifyManual records a hub-commanded relay write so the next tick does
// not immediately fight it; the schedule takes back over at the next
// boundary.
func (s *Scheduler) NotifyManual(relayID int, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tracks[relayID]
	if t == nil {
		return
	}
	v := on
	t.lastApplied = &v
	t.suppressed = true
}

// Run ticks once per second until ctx is done.
func (s *Scheduler) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Tick evaluates every governed relay once.
func (s *Scheduler) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if !s.lastTick.IsZero() && now.Sub(s.lastTick) > maxTickGap {
		// Device slept; reapply everything from scratch.
		for _, t := range s.tracks {
			t.lastApplied = nil
		}
	}
	s.lastTick = now

	for id, entries := range s.entries {
		t := s.tracks[id]
		want := evaluate(entries, now)
		boundary := t.shouldBeOn != nil && *t.shouldBeOn != want
		v := want
		t.shouldBeOn = &v

		if t.suppressed {
			if !boundary {
				continue
			}
			t.suppressed = false
		}
		if t.lastApplied != nil && *t.lastApplied == want {
			continue
		}
		if err := s.driver.Set(id, want); err != nil {
			logger.Errorf("relay %d apply failed: %v", id, err)
			continue
		}
		a := want
		t.lastApplied = &a
	}
}

// evaluate reports whether any entry's window covers now. Entries with
// from > to wrap past midnight: they match from `from` on a listed day
// through `to` on the following morning.
func evaluate(entries []protocol.ScheduleEntry, now time.Time) bool {
	cur := now.Hour()*60 + now.Minute()
	today := dayCode(now.Weekday())
	yesterday := dayCode(now.AddDate(0, 0, -1).Weekday())
	for _, e := range entries {
		from, okF := parseHHMM(e.From)
		to, okT := parseHHMM(e.To)
		if !okF || !okT {
			continue
		}
		if from <= to {
			if hasDay(e.Days, today) && cur >= from && cur < to {
				return true
			}
		} else {
			if hasDay(e.Days, today) && cur >= from {
				return true
			}
			if hasDay(e.Days, yesterday) && cur < to {
				return true
			}
		}
	}
	return false
}

func hasDay(days []string, code string) bool {
	for _, d := range days {
		if strings.EqualFold(strings.TrimSpace(d), code) {
			return true
		}
	}
	return false
}

func dayCode(d time.Weekday) string {
	switch d {
	case time.Monday:
		return "mon"
	case time.Tuesday:
		return "tue"
	case time.Wednesday:
		return "wed"
	case time.Thursday:
		return "thu"
	case time.Friday:
		return "fri"
	case time.Saturday:
		return "sat"
	default:
		return "sun"
	}
}

// parseHHMM converts "HH:mm" to minutes since midnight.
func parseHHMM(s string) (int, bool) {
	if len(s) != 5 || s[2] != ':' {
		return 0, false
	}
	h := int(s[0]-'0')*10 + int(s[1]-'0')
	m := int(s[3]-'0')*10 + int(s[4]-'0')
	if s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' ||
		s[3] < '0' || s[3] > '9' || s[4] < '0' || s[4] > '9' {
		return 0, false
	}
	if h > 23 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}
