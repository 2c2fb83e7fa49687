package services

import (
	"testing"

	"github.com/AndrewArto/laundropi-control-sub000/backend/app/models"
	"github.com/AndrewArto/laundropi-control-sub000/protocol"
)

func testRules() *fakeRules {
	return &fakeRules{rows: []models.ScheduleRule{
		{ID: 1, AgentID: "a1", RelayID: 1, Days: "mon,tue,wed", FromTime: "09:00", ToTime: "18:00", Active: true},
		{ID: 2, AgentID: "a1", RelayID: 2, Days: "sat,sun", FromTime: "22:00", ToTime: "06:00", Active: true},
		{ID: 3, AgentID: "a1", RelayID: 3, Days: "mon", FromTime: "00:00", ToTime: "23:59", Active: false}, // inactive
		{ID: 4, AgentID: "other", RelayID: 1, Days: "mon", FromTime: "10:00", ToTime: "11:00", Active: true},
	}}
}

func testGroups() *fakeGroups {
	return &fakeGroups{rows: []models.GroupRule{
		{ID: 1, AgentID: "a1", Name: "signs", RelayIDs: "[1,4]", OnTime: "19:00", OffTime: "23:00", Days: "fri,sat", Active: true},
		{ID: 2, AgentID: "other", Name: "signs", RelayIDs: "[2]", OnTime: "19:00", OffTime: "23:00", Days: "fri,sat", Active: true},
	}}
}

func TestBuildPayloadMergesRulesAndGroups(t *testing.T) {
	svc := NewScheduleService(testRules(), testGroups(), newFakeAgents(&models.Agent{AgentID: "a1"}), newFakeHub())

	payload, version, err := svc.BuildPayload("a1")
	if err != nil {
		t.Fatal(err)
	}
	if version == "" {
		t.Error("empty version hash")
	}
	if len(payload) != 3 {
		t.Fatalf("got %d relay schedules, want 3 (relays 1, 2, 4)", len(payload))
	}
	if payload[0].RelayID != 1 || payload[1].RelayID != 2 || payload[2].RelayID != 4 {
		t.Errorf("relay order not stable: %+v", payload)
	}
	// Relay 1 gets its explicit rule plus the group expansion.
	if len(payload[0].Entries) != 2 {
		t.Errorf("relay 1 got %d entries, want 2", len(payload[0].Entries))
	}
	// Relay 4 only exists through the group.
	if len(payload[2].Entries) != 1 || payload[2].Entries[0].From != "19:00" {
		t.Errorf("group expansion wrong for relay 4: %+v", payload[2].Entries)
	}
}

func TestHashStableAcrossCalls(t *testing.T) {
	svc := NewScheduleService(testRules(), testGroups(), newFakeAgents(&models.Agent{AgentID: "a1"}), newFakeHub())

	_, v1, err := svc.BuildPayload("a1")
	if err != nil {
		t.Fatal(err)
	}
	_, v2, err := svc.BuildPayload("a1")
	if err != nil {
		t.Fatal(err)
	}
	if v1 != v2 {
		t.Errorf("hash unstable with no rule changes: %s != %s", v1, v2)
	}
}

func TestHashChangesWithAffectingRuleOnly(t *testing.T) {
	rules := testRules()
	svc := NewScheduleService(rules, testGroups(), newFakeAgents(&models.Agent{AgentID: "a1"}), newFakeHub())

	_, before, err := svc.BuildPayload("a1")
	if err != nil {
		t.Fatal(err)
	}

	// A rule for a different agent must not move a1's hash.
	rules.rows = append(rules.rows, models.ScheduleRule{
		ID: 9, AgentID: "other", RelayID: 5, Days: "mon", FromTime: "01:00", ToTime: "02:00", Active: true,
	})
	_, unaffected, err := svc.BuildPayload("a1")
	if err != nil {
		t.Fatal(err)
	}
	if unaffected != before {
		t.Error("hash moved for an unrelated agent's rule")
	}

	rules.rows = append(rules.rows, models.ScheduleRule{
		ID: 10, AgentID: "a1", RelayID: 1, Days: "thu", FromTime: "07:00", ToTime: "08:00", Active: true,
	})
	_, affected, err := svc.BuildPayload("a1")
	if err != nil {
		t.Fatal(err)
	}
	if affected == before {
		t.Error("hash unchanged after a rule affecting the agent changed")
	}
}

func TestPushPersistsVersionOnlyWhenConnected(t *testing.T) {
	agents := newFakeAgents(&models.Agent{AgentID: "a1"})
	hub := newFakeHub() // offline
	svc := NewScheduleService(testRules(), testGroups(), agents, hub)

	if err := svc.PushToAgent("a1"); err == nil {
		t.Fatal("push to a disconnected agent should fail")
	}
	a, _ := agents.FindByAgentID("a1")
	if a.ScheduleVersion != "" {
		t.Error("version persisted without a live connection")
	}

	hub.connected["a1"] = true
	if err := svc.PushToAgent("a1"); err != nil {
		t.Fatal(err)
	}
	a, _ = agents.FindByAgentID("a1")
	if a.ScheduleVersion == "" {
		t.Error("version not persisted after a successful push")
	}
	if hub.countOf("a1", protocol.TypeUpdateSchedule) != 1 {
		t.Error("update_schedule frame not sent")
	}
}

func TestHeartbeatVersionMismatchTriggersRepush(t *testing.T) {
	agents := newFakeAgents(&models.Agent{AgentID: "a1"})
	hub := newFakeHub("a1")
	svc := NewScheduleService(testRules(), testGroups(), agents, hub)

	if err := svc.PushToAgent("a1"); err != nil {
		t.Fatal(err)
	}
	a, _ := agents.FindByAgentID("a1")
	current := a.ScheduleVersion

	// Agent reports the up-to-date hash: nothing further goes out.
	svc.CheckOnHeartbeat("a1", current)
	if got := hub.countOf("a1", protocol.TypeUpdateSchedule); got != 1 {
		t.Errorf("in-sync heartbeat caused a repush (%d frames)", got)
	}

	// Agent reports a stale hash (missed a push while offline): self-heal.
	svc.CheckOnHeartbeat("a1", "stale-hash")
	if got := hub.countOf("a1", protocol.TypeUpdateSchedule); got != 2 {
		t.Errorf("stale heartbeat did not trigger a repush (%d frames)", got)
	}
}
