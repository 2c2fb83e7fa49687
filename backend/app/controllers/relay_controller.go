package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/AndrewArto/laundropi-control-sub000/backend/app/dto"
	"github.com/AndrewArto/laundropi-control-sub000/backend/app/services"
	"github.com/AndrewArto/laundropi-control-sub000/protocol"

	"github.com/go-chi/chi/v5"
)

type RelayController struct {
	Reconcile *services.ReconcileService
}

func NewRelayController(reconcile *services.ReconcileService) *RelayController {
	return &RelayController{Reconcile: reconcile}
}

// SetState handles POST /api/agents/{agentID}/relays/{relayID}/state. The
// write always lands in desired state; sent reports whether the command
// also went out over a live connection.
func (c *RelayController) SetState(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	relayID, err := strconv.Atoi(chi.URLParam(r, "relayID"))
	if err != nil || agentID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	var req dto.RelayStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	state := protocol.RelayValue(req.State)
	if !state.Valid() {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	sent, err := c.Reconcile.SetDesired(agentID, relayID, state)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(dto.RelayStateResponse{OK: true, Sent: sent})
}
