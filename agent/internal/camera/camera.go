// Package camera serves hub frame requests from the unit's local snapshot
// endpoints (typically mjpeg-streamer or a USB cam HTTP shim).
package camera

import (
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/AndrewArto/laundropi-control-sub000/agent/internal/config"
	"github.com/AndrewArto/laundropi-control-sub000/protocol"
)

const (
	fetchTimeout = 3 * time.Second
	maxFrameSize = 4 << 20
)

type Subsystem struct {
	mu      sync.Mutex
	sources map[int]string                // cameraId -> local snapshot URL
	configs map[int]protocol.CameraConfig // hub-pushed inventory
	client  *http.Client
}

func New(sources []config.CameraSource) *Subsystem {
	s := &Subsystem{
		sources: make(map[int]string, len(sources)),
		configs: make(map[int]protocol.CameraConfig),
		client:  &http.Client{Timeout: fetchTimeout},
	}
	for _, src := range sources {
		s.sources[src.ID] = src.URL
	}
	return s
}

// Apply installs the hub-pushed camera inventory. A camera disabled by the
// hub stops serving frames even when a local source URL exists.
func (s *Subsystem) Apply(cameras []protocol.CameraConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs = make(map[int]protocol.CameraConfig, len(cameras))
	for _, c := range cameras {
		s.configs[c.ID] = c
	}
}

// HandleRequest answers one camera_frame_request. Errors come back as a
// failed frame, never as a dropped request.
func (s *Subsystem) HandleRequest(req protocol.CameraFrameRequest) protocol.CameraFrame {
	contentType, data, err := s.fetch(req.CameraID)
	if err != nil {
		return protocol.NewCameraFrameError(req.RequestID, err.Error())
	}
	return protocol.NewCameraFrame(req.RequestID, contentType, data)
}

func (s *Subsystem) fetch(cameraID int) (string, []byte, error) {
	s.mu.Lock()
	url, hasSource := s.sources[cameraID]
	cfg, hasConfig := s.configs[cameraID]
	s.mu.Unlock()

	if hasConfig && !cfg.Enabled {
		return "", nil, fmt.Errorf("camera %d disabled", cameraID)
	}
	if hasConfig && cfg.SourceType == "rtsp" {
		return "", nil, fmt.Errorf("camera %d: rtsp sources are viewed via stream, not snapshots", cameraID)
	}
	if !hasSource {
		return "", nil, fmt.Errorf("camera %d has no local source", cameraID)
	}

	resp, err := s.client.Get(url)
	if err != nil {
		return "", nil, fmt.Errorf("camera %d fetch: %w", cameraID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("camera %d fetch: status %d", cameraID, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFrameSize))
	if err != nil {
		return "", nil, fmt.Errorf("camera %d read: %w", cameraID, err)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return contentType, data, nil
}
