package services

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/AndrewArto/laundropi-control-sub000/backend/app/models"
	"github.com/AndrewArto/laundropi-control-sub000/backend/global"
	"github.com/AndrewArto/laundropi-control-sub000/protocol"
)

// ScheduleRuleStore and GroupRuleStore expose the rule rows owned by the
// storage collaborator. The distributor only reads them.
type ScheduleRuleStore interface {
	ListActiveByAgent(agentID string) ([]models.ScheduleRule, error)
}

type GroupRuleStore interface {
	ListActiveByAgent(agentID string) ([]models.GroupRule, error)
}

// ScheduleVersionStore persists the version an agent was last pushed.
type ScheduleVersionStore interface {
	FindByAgentID(agentID string) (*models.Agent, error)
	UpdateScheduleVersion(agentID, version string) error
}

// ScheduleService computes an agent's effective schedule, identifies it by
// a content hash and pushes it whenever the hash goes out of sync.
type ScheduleService struct {
	rules  ScheduleRuleStore
	groups GroupRuleStore
	agents ScheduleVersionStore
	hub    Sender
}

func NewScheduleService(rules ScheduleRuleStore, groups GroupRuleStore, agents ScheduleVersionStore, hub Sender) *ScheduleService {
	return &ScheduleService{rules: rules, groups: groups, agents: agents, hub: hub}
}

// BuildPayload merges explicit per-agent rules with group rules assigned to
// the agent, expanding each group's single on/off pair per relay. The
// returned version is a hash over the stable serialization, so it changes
// exactly when a rule affecting this agent changes.
func (s *ScheduleService) BuildPayload(agentID string) ([]protocol.RelaySchedule, string, error) {
	rules, err := s.rules.ListActiveByAgent(agentID)
	if err != nil {
		return nil, "", fmt.Errorf("list schedule rules: %w", err)
	}
	groups, err := s.groups.ListActiveByAgent(agentID)
	if err != nil {
		return nil, "", fmt.Errorf("list group rules: %w", err)
	}

	byRelay := make(map[int][]protocol.ScheduleEntry)
	for _, r := range rules {
		byRelay[r.RelayID] = append(byRelay[r.RelayID], protocol.ScheduleEntry{
			Days: splitDays(r.Days),
			From: r.FromTime,
			To:   r.ToTime,
		})
	}
	for _, g := range groups {
		var relayIDs []int
		if g.RelayIDs != "" {
			if err := json.Unmarshal([]byte(g.RelayIDs), &relayIDs); err != nil {
				global.Logger.Warn().Err(err).Uint("group", g.ID).Msg("bad relay id list on group rule")
				continue
			}
		}
		for _, relayID := range relayIDs {
			byRelay[relayID] = append(byRelay[relayID], protocol.ScheduleEntry{
				Days: splitDays(g.Days),
				From: g.OnTime,
				To:   g.OffTime,
			})
		}
	}

	relayIDs := make([]int, 0, len(byRelay))
	for id := range byRelay {
		relayIDs = append(relayIDs, id)
	}
	sort.Ints(relayIDs)

	payload := make([]protocol.RelaySchedule, 0, len(relayIDs))
	for _, id := range relayIDs {
		entries := byRelay[id]
		sort.Slice(entries, func(i, j int) bool {
			a, b := entries[i], entries[j]
			if a.From != b.From {
				return a.From < b.From
			}
			if a.To != b.To {
				return a.To < b.To
			}
			return strings.Join(a.Days, ",") < strings.Join(b.Days, ",")
		})
		payload = append(payload, protocol.RelaySchedule{RelayID: id, Entries: entries})
	}

	version, err := hashPayload(payload)
	if err != nil {
		return nil, "", err
	}
	return payload, version, nil
}

// PushToAgent sends the current payload and records the version, but only
// when a live connection exists.
func (s *ScheduleService) PushToAgent(agentID string) error {
	payload, version, err := s.BuildPayload(agentID)
	if err != nil {
		return err
	}
	if err := s.hub.Send(agentID, protocol.NewUpdateSchedule(payload, version)); err != nil {
		return err
	}
	if err := s.agents.UpdateScheduleVersion(agentID, version); err != nil {
		global.Logger.Warn().Err(err).Str("agent", agentID).Msg("persist schedule version failed")
	}
	global.Logger.Info().Str("agent", agentID).Str("version", version).Msg("schedule pushed")
	return nil
}

// CheckOnHeartbeat recomputes the hash and repushes when it disagrees with
// either the version the agent reports or the one on record. An agent that
// missed a push self-heals on its next heartbeat this way, with no per-agent
// dirty tracking.
func (s *ScheduleService) CheckOnHeartbeat(agentID, reportedVersion string) {
	_, version, err := s.BuildPayload(agentID)
	if err != nil {
		global.Logger.Warn().Err(err).Str("agent", agentID).Msg("schedule version check failed")
		return
	}
	recorded := ""
	if a, err := s.agents.FindByAgentID(agentID); err == nil {
		recorded = a.ScheduleVersion
	}
	if version == reportedVersion && version == recorded {
		return
	}
	if err := s.PushToAgent(agentID); err != nil {
		global.Logger.Warn().Err(err).Str("agent", agentID).Msg("schedule repush failed")
	}
}

func hashPayload(payload []protocol.RelaySchedule) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

func splitDays(days string) []string {
	if days == "" {
		return nil
	}
	parts := strings.Split(days, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}
