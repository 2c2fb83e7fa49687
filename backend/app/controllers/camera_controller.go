package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/AndrewArto/laundropi-control-sub000/backend/app/dto"
	"github.com/AndrewArto/laundropi-control-sub000/backend/app/models"
	"github.com/AndrewArto/laundropi-control-sub000/backend/app/repo"
	"github.com/AndrewArto/laundropi-control-sub000/backend/app/services"
	"github.com/AndrewArto/laundropi-control-sub000/backend/global"

	"github.com/go-chi/chi/v5"
)

type CameraController struct {
	Frames  *services.FrameProxy
	Cameras *repo.CameraRepository
}

func NewCameraController(frames *services.FrameProxy, cameras *repo.CameraRepository) *CameraController {
	return &CameraController{Frames: frames, Cameras: cameras}
}

// Frame handles GET /api/agents/{agentID}/cameras/{cameraID}/frame. Any
// proxy failure (offline agent, device error, timeout) surfaces as 504.
func (c *CameraController) Frame(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	cameraID, err := strconv.Atoi(chi.URLParam(r, "cameraID"))
	if err != nil || agentID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	data, contentType, err := c.Frames.RequestFrame(r.Context(), agentID, cameraID)
	if err != nil {
		global.Logger.Warn().Err(err).Str("agent", agentID).Int("camera", cameraID).Msg("camera frame failed")
		w.WriteHeader(http.StatusGatewayTimeout)
		return
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	_, _ = w.Write(data)
}

func (c *CameraController) repushConfig(agentID string) {
	if err := c.Frames.PushConfig(agentID); err != nil {
		global.Logger.Warn().Err(err).Str("agent", agentID).Msg("camera config repush failed")
	}
}

// ListInventory handles GET /api/agents/{agentID}/cameras.
func (c *CameraController) ListInventory(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	cams, err := c.Cameras.ListByAgent(agentID)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(cams)
}

// CreateInventory handles POST /api/agents/{agentID}/cameras. The new
// inventory goes out to a connected agent right away.
func (c *CameraController) CreateInventory(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	var req dto.CameraRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || agentID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	cam := &models.Camera{
		AgentID:    agentID,
		CameraID:   req.CameraID,
		StreamKey:  req.StreamKey,
		SourceType: req.SourceType,
		Enabled:    true,
		RTSPURL:    req.RTSPURL,
	}
	if req.Enabled != nil {
		cam.Enabled = *req.Enabled
	}
	if err := c.Cameras.Create(cam); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	c.repushConfig(agentID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(cam)
}

// DeleteInventory handles DELETE /api/agents/{agentID}/cameras/{cameraID}.
func (c *CameraController) DeleteInventory(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	id, err := strconv.Atoi(chi.URLParam(r, "cameraID"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	cams, err := c.Cameras.ListByAgent(agentID)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	for _, cam := range cams {
		if cam.CameraID == id {
			if err := c.Cameras.Delete(cam.ID); err != nil {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			c.repushConfig(agentID)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

// UpdateInventory handles PUT /api/agents/{agentID}/cameras/{cameraID}.
func (c *CameraController) UpdateInventory(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	id, err := strconv.Atoi(chi.URLParam(r, "cameraID"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	var req dto.CameraRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	cams, err := c.Cameras.ListByAgent(agentID)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	for i := range cams {
		if cams[i].CameraID != id {
			continue
		}
		cam := &cams[i]
		if req.StreamKey != "" {
			cam.StreamKey = req.StreamKey
		}
		if req.SourceType != "" {
			cam.SourceType = req.SourceType
		}
		if req.Enabled != nil {
			cam.Enabled = *req.Enabled
		}
		if req.RTSPURL != nil {
			cam.RTSPURL = req.RTSPURL
		}
		if err := c.Cameras.Update(cam); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		c.repushConfig(agentID)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(cam)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}
