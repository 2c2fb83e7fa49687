package services

import (
	"errors"
	"sync"
	"time"

	"github.com/AndrewArto/laundropi-control-sub000/backend/app/models"
	"github.com/AndrewArto/laundropi-control-sub000/protocol"

	"gorm.io/gorm"
)

var errNotConnected = errors.New("agent not connected")

// fakeHub records sent frames per agent.
type fakeHub struct {
	mu        sync.Mutex
	connected map[string]bool
	sent      map[string][]protocol.Message
	sendErr   error
}

func newFakeHub(connected ...string) *fakeHub {
	h := &fakeHub{connected: make(map[string]bool), sent: make(map[string][]protocol.Message)}
	for _, id := range connected {
		h.connected[id] = true
	}
	return h
}

func (h *fakeHub) Send(agentID string, msg protocol.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sendErr != nil {
		return h.sendErr
	}
	if !h.connected[agentID] {
		return errNotConnected
	}
	h.sent[agentID] = append(h.sent[agentID], msg)
	return nil
}

func (h *fakeHub) IsConnected(agentID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connected[agentID]
}

func (h *fakeHub) sentTo(agentID string) []protocol.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]protocol.Message, len(h.sent[agentID]))
	copy(out, h.sent[agentID])
	return out
}

func (h *fakeHub) countOf(agentID string, kind protocol.Type) int {
	n := 0
	for _, m := range h.sentTo(agentID) {
		if m.Kind() == kind {
			n++
		}
	}
	return n
}

// fakeAgents is an in-memory agents table.
type fakeAgents struct {
	mu   sync.Mutex
	rows map[string]*models.Agent
}

func newFakeAgents(rows ...*models.Agent) *fakeAgents {
	f := &fakeAgents{rows: make(map[string]*models.Agent)}
	for _, r := range rows {
		f.rows[r.AgentID] = r
	}
	return f
}

func (f *fakeAgents) FindByAgentID(agentID string) (*models.Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.rows[agentID]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeAgents) ListAll() ([]models.Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Agent, 0, len(f.rows))
	for _, a := range f.rows {
		out = append(out, *a)
	}
	return out, nil
}

func (f *fakeAgents) UpdateDesiredState(agentID, desiredState string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.rows[agentID]; ok {
		a.DesiredState = desiredState
	}
	return nil
}

func (f *fakeAgents) UpdateScheduleVersion(agentID, version string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.rows[agentID]; ok {
		a.ScheduleVersion = version
	}
	return nil
}

// fakeJournal is an in-memory command journal.
type fakeJournal struct {
	mu      sync.Mutex
	entries []*models.Command
	nextID  uint
}

func (j *fakeJournal) Create(cmd *models.Command) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.nextID++
	cmd.ID = j.nextID
	j.entries = append(j.entries, cmd)
	return nil
}

func (j *fakeJournal) AckInFlight(agentID string, relayID int) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, e := range j.entries {
		if e.AgentID == agentID && e.RelayID == relayID &&
			(e.Status == models.CommandPending || e.Status == models.CommandSent) {
			e.Status = models.CommandAcked
		}
	}
	return nil
}

func (j *fakeJournal) SweepExpired(agentID string, now time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, e := range j.entries {
		if e.AgentID == agentID && e.ExpiresAt.Before(now) &&
			(e.Status == models.CommandPending || e.Status == models.CommandSent) {
			e.Status = models.CommandFailed
		}
	}
	return nil
}

func (j *fakeJournal) byStatus(status string) []*models.Command {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []*models.Command
	for _, e := range j.entries {
		if e.Status == status {
			out = append(out, e)
		}
	}
	return out
}

// fakeRules / fakeGroups are static rule stores.
type fakeRules struct{ rows []models.ScheduleRule }

func (f *fakeRules) ListActiveByAgent(agentID string) ([]models.ScheduleRule, error) {
	var out []models.ScheduleRule
	for _, r := range f.rows {
		if r.AgentID == agentID && r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeGroups struct{ rows []models.GroupRule }

func (f *fakeGroups) ListActiveByAgent(agentID string) ([]models.GroupRule, error) {
	var out []models.GroupRule
	for _, g := range f.rows {
		if g.AgentID == agentID && g.Active {
			out = append(out, g)
		}
	}
	return out, nil
}
