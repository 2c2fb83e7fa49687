package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/AndrewArto/laundropi-control-sub000/backend/app/dto"
	"github.com/AndrewArto/laundropi-control-sub000/backend/app/repo"
	"github.com/AndrewArto/laundropi-control-sub000/backend/app/services"
	"github.com/AndrewArto/laundropi-control-sub000/backend/app/socket"

	"github.com/go-chi/chi/v5"
)

type AgentController struct {
	Agents    *services.AgentService
	Reconcile *services.ReconcileService
	Machines  *services.MachineService
	Status    *services.StatusCache
	Journal   *repo.CommandRepository
	Hub       *socket.Hub
}

func NewAgentController(agents *services.AgentService, reconcile *services.ReconcileService, machines *services.MachineService, status *services.StatusCache, journal *repo.CommandRepository, hub *socket.Hub) *AgentController {
	return &AgentController{Agents: agents, Reconcile: reconcile, Machines: machines, Status: status, Journal: journal, Hub: hub}
}

// List handles GET /api/agents.
func (c *AgentController) List(w http.ResponseWriter, r *http.Request) {
	rows, err := c.Agents.ListAll()
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	out := make([]dto.AgentSummary, 0, len(rows))
	for _, a := range rows {
		out = append(out, dto.AgentSummary{
			AgentID:         a.AgentID,
			Version:         a.Version,
			Online:          c.Hub.IsOnline(a.AgentID),
			LastHeartbeat:   a.LastHeartbeat,
			ScheduleVersion: a.ScheduleVersion,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

// Provision handles POST /api/agents: pre-creates a fleet record with a
// known secret so the first hello matches.
func (c *AgentController) Provision(w http.ResponseWriter, r *http.Request) {
	var req dto.ProvisionAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AgentID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := c.Agents.Provision(req.AgentID, req.Secret); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// Remove handles DELETE /api/agents/{agentID} — explicit fleet removal,
// the only path that deletes an agent record.
func (c *AgentController) Remove(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	if agentID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := c.Agents.Remove(agentID); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	c.Reconcile.RemoveAgent(agentID)
	c.Status.Drop(r.Context(), agentID)
	w.WriteHeader(http.StatusNoContent)
}

// Commands handles GET /api/agents/{agentID}/commands: journal listing for
// observability.
func (c *AgentController) Commands(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	cmds, err := c.Journal.ListByAgent(agentID, 100)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	out := make([]dto.CommandEntry, 0, len(cmds))
	for _, cmd := range cmds {
		out = append(out, dto.CommandEntry{
			ID:           cmd.ID,
			RelayID:      cmd.RelayID,
			DesiredState: cmd.DesiredState,
			Status:       cmd.Status,
			CreatedAt:    cmd.CreatedAt,
			ExpiresAt:    cmd.ExpiresAt,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

// MachineList handles GET /api/agents/{agentID}/machines.
func (c *AgentController) MachineList(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	rows, err := c.Machines.ListByAgent(agentID)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	out := make([]dto.MachineSummary, 0, len(rows))
	for _, m := range rows {
		out = append(out, dto.MachineSummary{
			MachineID:   m.MachineID,
			Label:       m.Label,
			Type:        m.Type,
			Status:      m.Status,
			LastUpdated: m.LastUpdated,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}
