package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/AndrewArto/laundropi-control-sub000/backend/app/dto"
	"github.com/AndrewArto/laundropi-control-sub000/backend/app/models"
	"github.com/AndrewArto/laundropi-control-sub000/backend/app/repo"
	"github.com/AndrewArto/laundropi-control-sub000/backend/app/services"
	"github.com/AndrewArto/laundropi-control-sub000/backend/app/socket"
	"github.com/AndrewArto/laundropi-control-sub000/backend/global"

	"github.com/go-chi/chi/v5"
)

// ScheduleController owns rule CRUD. Every mutation triggers a best-effort
// repush to the affected agent; offline agents self-heal on their next
// heartbeat via the version check.
type ScheduleController struct {
	Rules       *repo.ScheduleRepository
	Groups      *repo.GroupRepository
	Distributor *services.ScheduleService
	Hub         *socket.Hub
}

func NewScheduleController(rules *repo.ScheduleRepository, groups *repo.GroupRepository, distributor *services.ScheduleService, hub *socket.Hub) *ScheduleController {
	return &ScheduleController{Rules: rules, Groups: groups, Distributor: distributor, Hub: hub}
}

func (c *ScheduleController) repush(agentID string) {
	if !c.Hub.IsConnected(agentID) {
		return
	}
	if err := c.Distributor.PushToAgent(agentID); err != nil {
		global.Logger.Warn().Err(err).Str("agent", agentID).Msg("schedule repush after rule change failed")
	}
}

// ListRules handles GET /api/agents/{agentID}/schedules.
func (c *ScheduleController) ListRules(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	rules, err := c.Rules.ListActiveByAgent(agentID)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rules)
}

// CreateRule handles POST /api/agents/{agentID}/schedules.
func (c *ScheduleController) CreateRule(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	var req dto.ScheduleRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || agentID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	rule := &models.ScheduleRule{
		AgentID:  agentID,
		RelayID:  req.RelayID,
		Days:     req.Days,
		FromTime: req.FromTime,
		ToTime:   req.ToTime,
		Active:   true,
	}
	if req.Active != nil {
		rule.Active = *req.Active
	}
	if err := c.Rules.Create(rule); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	c.repush(agentID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(rule)
}

// UpdateRule handles PUT /api/agents/{agentID}/schedules/{ruleID}.
func (c *ScheduleController) UpdateRule(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	ruleID, err := strconv.Atoi(chi.URLParam(r, "ruleID"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	rule, err := c.Rules.FindByID(uint(ruleID))
	if err != nil || rule.AgentID != agentID {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	var req dto.ScheduleRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	rule.RelayID = req.RelayID
	rule.Days = req.Days
	rule.FromTime = req.FromTime
	rule.ToTime = req.ToTime
	if req.Active != nil {
		rule.Active = *req.Active
	}
	if err := c.Rules.Update(rule); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	c.repush(agentID)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rule)
}

// DeleteRule handles DELETE /api/agents/{agentID}/schedules/{ruleID}.
func (c *ScheduleController) DeleteRule(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	ruleID, err := strconv.Atoi(chi.URLParam(r, "ruleID"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := c.Rules.Delete(uint(ruleID)); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	c.repush(agentID)
	w.WriteHeader(http.StatusNoContent)
}

// CreateGroup handles POST /api/agents/{agentID}/groups.
func (c *ScheduleController) CreateGroup(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	var req dto.GroupRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || agentID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	relayIDs, err := json.Marshal(req.RelayIDs)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	g := &models.GroupRule{
		AgentID:  agentID,
		Name:     req.Name,
		RelayIDs: string(relayIDs),
		OnTime:   req.OnTime,
		OffTime:  req.OffTime,
		Days:     req.Days,
		Active:   true,
	}
	if req.Active != nil {
		g.Active = *req.Active
	}
	if err := c.Groups.Create(g); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	c.repush(agentID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(g)
}

// ListGroups handles GET /api/agents/{agentID}/groups.
func (c *ScheduleController) ListGroups(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	groups, err := c.Groups.ListActiveByAgent(agentID)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(groups)
}

// UpdateGroup handles PUT /api/agents/{agentID}/groups/{groupID}.
func (c *ScheduleController) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	groupID, err := strconv.Atoi(chi.URLParam(r, "groupID"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	g, err := c.Groups.FindByID(uint(groupID))
	if err != nil || g.AgentID != agentID {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	var req dto.GroupRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	relayIDs, err := json.Marshal(req.RelayIDs)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	g.Name = req.Name
	g.RelayIDs = string(relayIDs)
	g.OnTime = req.OnTime
	g.OffTime = req.OffTime
	g.Days = req.Days
	if req.Active != nil {
		g.Active = *req.Active
	}
	if err := c.Groups.Update(g); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	c.repush(agentID)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(g)
}

// DeleteGroup handles DELETE /api/agents/{agentID}/groups/{groupID}.
func (c *ScheduleController) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	groupID, err := strconv.Atoi(chi.URLParam(r, "groupID"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := c.Groups.Delete(uint(groupID)); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	c.repush(agentID)
	w.WriteHeader(http.StatusNoContent)
}
