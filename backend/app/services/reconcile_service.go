package services

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/AndrewArto/laundropi-control-sub000/backend/app/models"
	"github.com/AndrewArto/laundropi-control-sub000/backend/global"
	"github.com/AndrewArto/laundropi-control-sub000/protocol"
)

// commandTTL bounds how long a journal entry may stay in flight before the
// lazy sweep marks it failed.
const commandTTL = 30 * time.Second

// AgentStore is the slice of the agent repository the reconciler needs.
type AgentStore interface {
	FindByAgentID(agentID string) (*models.Agent, error)
	ListAll() ([]models.Agent, error)
	UpdateDesiredState(agentID, desiredState string) error
}

// CommandStore is the journal surface. Entries are bookkeeping only; the
// desired-state map decides what gets sent.
type CommandStore interface {
	Create(cmd *models.Command) error
	AckInFlight(agentID string, relayID int) error
	SweepExpired(agentID string, now time.Time) error
}

// Sender abstracts the connection hub.
type Sender interface {
	Send(agentID string, msg protocol.Message) error
	IsConnected(agentID string) bool
}

// ReconcileService converges each agent's reported relay state to the
// authoritative desired-state map. Reconciliation for a given agent only
// runs from that agent's own heartbeat handler, so passes never overlap.
type ReconcileService struct {
	agents  AgentStore
	journal CommandStore
	hub     Sender

	mu      sync.Mutex
	desired map[string]map[int]protocol.RelayValue

	now func() time.Time
}

func NewReconcileService(agents AgentStore, journal CommandStore, hub Sender) *ReconcileService {
	s := &ReconcileService{
		agents:  agents,
		journal: journal,
		hub:     hub,
		desired: make(map[string]map[int]protocol.RelayValue),
		now:     time.Now,
	}
	s.loadDesired()
	return s
}

func (s *ReconcileService) loadDesired() {
	agents, err := s.agents.ListAll()
	if err != nil {
		global.Logger.Error().Err(err).Msg("load desired state failed")
		return
	}
	for _, a := range agents {
		if a.DesiredState == "" {
			continue
		}
		m := make(map[int]protocol.RelayValue)
		if err := json.Unmarshal([]byte(a.DesiredState), &m); err != nil {
			global.Logger.Warn().Err(err).Str("agent", a.AgentID).Msg("bad desired state row, skipping")
			continue
		}
		if len(m) > 0 {
			s.desired[a.AgentID] = m
		}
	}
}

// SetDesired records the intended value for one relay, journals the attempt
// and sends immediately when the agent is connected. Returns whether the
// command went out now.
func (s *ReconcileService) SetDesired(agentID string, relayID int, state protocol.RelayValue) (bool, error) {
	if !state.Valid() {
		return false, fmt.Errorf("invalid relay state %q", state)
	}
	s.mu.Lock()
	if s.desired[agentID] == nil {
		s.desired[agentID] = make(map[int]protocol.RelayValue)
	}
	s.desired[agentID][relayID] = state
	err := s.persistDesiredLocked(agentID)
	s.mu.Unlock()
	if err != nil {
		return false, err
	}

	sent := false
	if s.hub.IsConnected(agentID) {
		if err := s.hub.Send(agentID, protocol.NewSetRelay(relayID, state)); err == nil {
			sent = true
		}
	}
	status := models.CommandPending
	if sent {
		status = models.CommandSent
	}
	now := s.now()
	if err := s.journal.Create(&models.Command{
		AgentID:      agentID,
		RelayID:      relayID,
		DesiredState: string(state),
		Status:       status,
		CreatedAt:    now,
		ExpiresAt:    now.Add(commandTTL),
	}); err != nil {
		global.Logger.Error().Err(err).Str("agent", agentID).Int("relay", relayID).Msg("journal write failed")
	}
	return sent, nil
}

// HandleHeartbeat compares the reported relay list against the desired map.
// Converged relays ack their in-flight journal entries and leave the map;
// divergent relays are resent with a fresh journal entry. The expiry sweep
// piggybacks here so heartbeat handling stays the journal's only mutator.
func (s *ReconcileService) HandleHeartbeat(agentID string, relays []protocol.RelayState) {
	reported := make(map[int]protocol.RelayValue, len(relays))
	for _, r := range relays {
		reported[r.ID] = r.State
	}

	s.mu.Lock()
	want := make(map[int]protocol.RelayValue, len(s.desired[agentID]))
	for id, v := range s.desired[agentID] {
		want[id] = v
	}
	s.mu.Unlock()

	var converged []int
	for relayID, state := range want {
		if reported[relayID] == state {
			if err := s.journal.AckInFlight(agentID, relayID); err != nil {
				global.Logger.Warn().Err(err).Str("agent", agentID).Int("relay", relayID).Msg("journal ack failed")
			}
			converged = append(converged, relayID)
			continue
		}
		if !s.hub.IsConnected(agentID) {
			continue
		}
		if err := s.hub.Send(agentID, protocol.NewSetRelay(relayID, state)); err != nil {
			continue
		}
		now := s.now()
		if err := s.journal.Create(&models.Command{
			AgentID:      agentID,
			RelayID:      relayID,
			DesiredState: string(state),
			Status:       models.CommandSent,
			CreatedAt:    now,
			ExpiresAt:    now.Add(commandTTL),
		}); err != nil {
			global.Logger.Error().Err(err).Str("agent", agentID).Int("relay", relayID).Msg("journal write failed")
		}
	}

	if len(converged) > 0 {
		s.mu.Lock()
		for _, relayID := range converged {
			delete(s.desired[agentID], relayID)
		}
		if err := s.persistDesiredLocked(agentID); err != nil {
			global.Logger.Warn().Err(err).Str("agent", agentID).Msg("persist desired state failed")
		}
		s.mu.Unlock()
	}

	if err := s.journal.SweepExpired(agentID, s.now()); err != nil {
		global.Logger.Warn().Err(err).Str("agent", agentID).Msg("journal sweep failed")
	}
}

// ReconcileOnConnect resends every desired entry unconditionally: a freshly
// reconnected agent's relay state is unknown until its first heartbeat.
func (s *ReconcileService) ReconcileOnConnect(agentID string) {
	s.mu.Lock()
	want := make(map[int]protocol.RelayValue, len(s.desired[agentID]))
	for id, v := range s.desired[agentID] {
		want[id] = v
	}
	s.mu.Unlock()

	for relayID, state := range want {
		if err := s.hub.Send(agentID, protocol.NewSetRelay(relayID, state)); err != nil {
			global.Logger.Warn().Err(err).Str("agent", agentID).Int("relay", relayID).Msg("reconcile-on-connect send failed")
			continue
		}
		now := s.now()
		if err := s.journal.Create(&models.Command{
			AgentID:      agentID,
			RelayID:      relayID,
			DesiredState: string(state),
			Status:       models.CommandSent,
			CreatedAt:    now,
			ExpiresAt:    now.Add(commandTTL),
		}); err != nil {
			global.Logger.Error().Err(err).Str("agent", agentID).Int("relay", relayID).Msg("journal write failed")
		}
	}
}

// RemoveAgent drops tracked desired state on fleet removal.
func (s *ReconcileService) RemoveAgent(agentID string) {
	s.mu.Lock()
	delete(s.desired, agentID)
	s.mu.Unlock()
}

// Desired returns a copy of the tracked entries for one agent.
func (s *ReconcileService) Desired(agentID string) map[int]protocol.RelayValue {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]protocol.RelayValue, len(s.desired[agentID]))
	for id, v := range s.desired[agentID] {
		out[id] = v
	}
	return out
}

// persistDesiredLocked mirrors the in-memory map onto the agent row.
// Callers hold s.mu.
func (s *ReconcileService) persistDesiredLocked(agentID string) error {
	b, err := json.Marshal(s.desired[agentID])
	if err != nil {
		return err
	}
	return s.agents.UpdateDesiredState(agentID, string(b))
}
