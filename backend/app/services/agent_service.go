package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/AndrewArto/laundropi-control-sub000/backend/app/models"
	"github.com/AndrewArto/laundropi-control-sub000/backend/app/repo"
	"github.com/AndrewArto/laundropi-control-sub000/backend/config"
	"github.com/AndrewArto/laundropi-control-sub000/backend/global"
	"github.com/AndrewArto/laundropi-control-sub000/protocol"

	"gorm.io/gorm"
)

// ErrAuthFailed covers every handshake rejection. The connection is closed
// without retry on the hub side; the agent's reconnect loop backs off.
var ErrAuthFailed = errors.New("authentication failed")

type AgentService struct {
	agents *repo.AgentRepository
	fleet  config.Fleet
}

func NewAgentService(agents *repo.AgentRepository, fleet config.Fleet) *AgentService {
	return &AgentService{agents: agents, fleet: fleet}
}

// Authenticate validates a hello frame and returns the (possibly freshly
// created) agent record. Validation order: allow-list, recorded secret,
// static secret, dynamic registration, legacy fallback.
func (s *AgentService) Authenticate(hello protocol.Hello) (*models.Agent, error) {
	if hello.AgentID == "" {
		return nil, fmt.Errorf("%w: missing agent id", ErrAuthFailed)
	}
	if len(s.fleet.AllowedAgents) > 0 && !contains(s.fleet.AllowedAgents, hello.AgentID) {
		return nil, fmt.Errorf("%w: agent %s not in fleet", ErrAuthFailed, hello.AgentID)
	}

	a, err := s.agents.FindByAgentID(hello.AgentID)
	switch {
	case err == nil && a.Secret != "":
		if hello.Secret != a.Secret {
			return nil, fmt.Errorf("%w: secret mismatch for %s", ErrAuthFailed, hello.AgentID)
		}
		return a, nil
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("lookup agent %s: %w", hello.AgentID, err)
	}

	// No secret on record (either a pre-provisioned row without one, or no
	// row at all).
	secret, ok := s.acceptableFirstSecret(hello)
	if !ok {
		return nil, fmt.Errorf("%w: no secret on record and registration closed for %s", ErrAuthFailed, hello.AgentID)
	}

	if a == nil {
		a = &models.Agent{AgentID: hello.AgentID, Secret: secret, Version: hello.Version}
		if err := s.agents.Create(a); err != nil {
			return nil, fmt.Errorf("create agent %s: %w", hello.AgentID, err)
		}
		global.Logger.Info().Str("agent", hello.AgentID).Msg("agent registered dynamically")
		return a, nil
	}
	if err := s.agents.UpdateSecret(hello.AgentID, secret); err != nil {
		return nil, fmt.Errorf("record secret for %s: %w", hello.AgentID, err)
	}
	a.Secret = secret
	return a, nil
}

func (s *AgentService) acceptableFirstSecret(hello protocol.Hello) (string, bool) {
	if static, ok := s.fleet.StaticSecrets[hello.AgentID]; ok && hello.Secret == static {
		return static, true
	}
	if s.fleet.DynamicRegistration && hello.Secret != "" {
		return hello.Secret, true
	}
	if s.fleet.LegacySecret != "" && hello.Secret == s.fleet.LegacySecret {
		return s.fleet.LegacySecret, true
	}
	return "", false
}

// RecordHello stores the static config echoed in the hello frame.
func (s *AgentService) RecordHello(hello protocol.Hello) {
	if hello.Version != "" {
		if err := s.agents.UpdateVersion(hello.AgentID, hello.Version); err != nil {
			global.Logger.Warn().Err(err).Str("agent", hello.AgentID).Msg("record agent version failed")
		}
	}
}

// RecordHeartbeat persists the heartbeat self-report onto the agent row.
func (s *AgentService) RecordHeartbeat(agentID string, status protocol.HeartbeatStatus, at time.Time) error {
	statusJSON, err := json.Marshal(status)
	if err != nil {
		return err
	}
	metaJSON := []byte("{}")
	if status.Meta != nil {
		if b, err := json.Marshal(status.Meta); err == nil {
			metaJSON = b
		}
	}
	reported := make(map[int]protocol.RelayValue, len(status.Relays))
	for _, r := range status.Relays {
		reported[r.ID] = r.State
	}
	reportedJSON, err := json.Marshal(reported)
	if err != nil {
		return err
	}
	return s.agents.UpdateHeartbeat(agentID, string(statusJSON), string(metaJSON), string(reportedJSON), at)
}

func (s *AgentService) ListAll() ([]models.Agent, error) {
	return s.agents.ListAll()
}

// Provision pre-creates an agent row with a known secret.
func (s *AgentService) Provision(agentID, secret string) error {
	if agentID == "" {
		return errors.New("agent id required")
	}
	return s.agents.Create(&models.Agent{AgentID: agentID, Secret: secret})
}

// Remove performs explicit fleet removal. This is the only path that
// deletes an agent record.
func (s *AgentService) Remove(agentID string) error {
	return s.agents.DeleteByAgentID(agentID)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
