package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AndrewArto/laundropi-control-sub000/backend/app/models"
	"github.com/AndrewArto/laundropi-control-sub000/backend/global"
	"github.com/AndrewArto/laundropi-control-sub000/protocol"

	"github.com/google/uuid"
)

var (
	ErrCameraOffline = errors.New("agent not connected")
	ErrFrameTimeout  = errors.New("camera frame timed out")
)

// CameraTTLStore resolves the per-agent cache TTL override.
type CameraTTLStore interface {
	FindByAgentID(agentID string) (*models.Agent, error)
}

// CameraConfigStore lists the camera inventory pushed on connect.
type CameraConfigStore interface {
	ListByAgent(agentID string) ([]models.Camera, error)
}

type frameCacheEntry struct {
	contentType string
	data        []byte
	fetchedAt   time.Time
}

// frameCall is one in-flight device-side fetch, shared by every concurrent
// caller for the same cache key. done is closed exactly once.
type frameCall struct {
	key         string
	done        chan struct{}
	contentType string
	data        []byte
	err         error
}

// FrameProxy bridges HTTP callers to a connected agent's camera subsystem
// with caching, request coalescing and refetch throttling.
type FrameProxy struct {
	hub     Sender
	agents  CameraTTLStore
	configs CameraConfigStore

	defaultTTL   time.Duration
	minRefetch   time.Duration
	frameTimeout time.Duration

	mu          sync.Mutex
	cache       map[string]*frameCacheEntry
	inflight    map[string]*frameCall // cache key -> call
	pending     map[string]*frameCall // request id -> call
	lastAttempt map[string]time.Time

	now func() time.Time
}

func NewFrameProxy(hub Sender, agents CameraTTLStore, configs CameraConfigStore, defaultTTL, minRefetch, frameTimeout time.Duration) *FrameProxy {
	if frameTimeout <= 0 {
		frameTimeout = 4 * time.Second
	}
	return &FrameProxy{
		hub:          hub,
		agents:       agents,
		configs:      configs,
		defaultTTL:   defaultTTL,
		minRefetch:   minRefetch,
		frameTimeout: frameTimeout,
		cache:        make(map[string]*frameCacheEntry),
		inflight:     make(map[string]*frameCall),
		pending:      make(map[string]*frameCall),
		lastAttempt:  make(map[string]time.Time),
		now:          time.Now,
	}
}

// PushConfig sends the agent's camera inventory over the live connection.
// Called on connect and after inventory edits.
func (p *FrameProxy) PushConfig(agentID string) error {
	if p.configs == nil {
		return nil
	}
	rows, err := p.configs.ListByAgent(agentID)
	if err != nil {
		return fmt.Errorf("list cameras: %w", err)
	}
	cams := make([]protocol.CameraConfig, 0, len(rows))
	for _, c := range rows {
		cams = append(cams, protocol.CameraConfig{
			ID:         c.CameraID,
			StreamKey:  c.StreamKey,
			SourceType: c.SourceType,
			Enabled:    c.Enabled,
			RTSPURL:    c.RTSPURL,
		})
	}
	return p.hub.Send(agentID, protocol.NewUpdateCameras(cams))
}

func cacheKey(agentID string, cameraID int) string {
	return fmt.Sprintf("%s::%d", agentID, cameraID)
}

func (p *FrameProxy) ttlFor(agentID string) time.Duration {
	if a, err := p.agents.FindByAgentID(agentID); err == nil && a.CameraCacheTTL > 0 {
		return time.Duration(a.CameraCacheTTL) * time.Second
	}
	return p.defaultTTL
}

// RequestFrame returns the newest snapshot for one camera. Resolution
// order: fresh cache, joining an in-flight fetch, stale cache while inside
// the min-refetch window, then a device round-trip. Failures are never
// cached.
func (p *FrameProxy) RequestFrame(ctx context.Context, agentID string, cameraID int) ([]byte, string, error) {
	key := cacheKey(agentID, cameraID)
	now := p.now()
	// TTL lookup hits the database; keep it outside the cache lock so a slow
	// query cannot serialize unrelated frame requests.
	ttl := p.ttlFor(agentID)

	p.mu.Lock()
	if e, ok := p.cache[key]; ok && now.Sub(e.fetchedAt) < ttl {
		data, ct := e.data, e.contentType
		p.mu.Unlock()
		return data, ct, nil
	}
	if call, ok := p.inflight[key]; ok {
		p.mu.Unlock()
		return p.wait(ctx, call)
	}
	// The throttle window is independent of the TTL and may exceed it: a
	// formally expired entry is still served rather than hammering a slow
	// camera source.
	if e, ok := p.cache[key]; ok && now.Sub(p.lastAttempt[key]) < p.minRefetch {
		data, ct := e.data, e.contentType
		p.mu.Unlock()
		return data, ct, nil
	}
	if !p.hub.IsConnected(agentID) {
		p.mu.Unlock()
		return nil, "", ErrCameraOffline
	}
	requestID := uuid.NewString()
	call := &frameCall{key: key, done: make(chan struct{})}
	p.inflight[key] = call
	p.pending[requestID] = call
	p.lastAttempt[key] = now
	p.mu.Unlock()

	if err := p.hub.Send(agentID, protocol.NewCameraFrameRequest(cameraID, requestID)); err != nil {
		p.fail(requestID, err)
		return nil, "", err
	}

	timer := time.NewTimer(p.frameTimeout)
	defer timer.Stop()
	select {
	case <-call.done:
	case <-timer.C:
		p.fail(requestID, ErrFrameTimeout)
	case <-ctx.Done():
		p.fail(requestID, ctx.Err())
	}
	<-call.done
	return call.data, call.contentType, call.err
}

// wait joins an existing in-flight call.
func (p *FrameProxy) wait(ctx context.Context, call *frameCall) ([]byte, string, error) {
	select {
	case <-call.done:
		return call.data, call.contentType, call.err
	case <-ctx.Done():
		return nil, "", ctx.Err()
	}
}

// HandleFrame resolves the pending request matched by the response's
// request id. Unmatched responses (late arrivals after a timeout) are
// dropped.
func (p *FrameProxy) HandleFrame(msg protocol.CameraFrame) {
	p.mu.Lock()
	call, ok := p.pending[msg.RequestID]
	if !ok {
		p.mu.Unlock()
		global.Logger.Debug().Str("request", msg.RequestID).Msg("camera frame for unknown request")
		return
	}
	delete(p.pending, msg.RequestID)
	delete(p.inflight, call.key)
	if msg.OK {
		p.cache[call.key] = &frameCacheEntry{
			contentType: msg.ContentType,
			data:        msg.Data,
			fetchedAt:   p.now(),
		}
		call.data = msg.Data
		call.contentType = msg.ContentType
	} else {
		errMsg := msg.Error
		if errMsg == "" {
			errMsg = "camera frame failed"
		}
		call.err = errors.New(errMsg)
	}
	p.mu.Unlock()
	close(call.done)
}

// fail rejects a pending call unless a response already resolved it.
func (p *FrameProxy) fail(requestID string, err error) {
	p.mu.Lock()
	call, ok := p.pending[requestID]
	if ok {
		delete(p.pending, requestID)
		delete(p.inflight, call.key)
		call.err = err
	}
	p.mu.Unlock()
	if ok {
		close(call.done)
	}
}
