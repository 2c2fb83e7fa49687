package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/AndrewArto/laundropi-control-sub000/backend/app/models"
	"github.com/AndrewArto/laundropi-control-sub000/protocol"
)

func frameRequests(hub *fakeHub, agentID string) []protocol.CameraFrameRequest {
	var out []protocol.CameraFrameRequest
	for _, m := range hub.sentTo(agentID) {
		if req, ok := m.(protocol.CameraFrameRequest); ok {
			out = append(out, req)
		}
	}
	return out
}

func newTestProxy(hub *fakeHub) *FrameProxy {
	agents := newFakeAgents(&models.Agent{AgentID: "a1"})
	return NewFrameProxy(hub, agents, nil, 10*time.Second, 30*time.Second, 200*time.Millisecond)
}

func TestFrameRoundTrip(t *testing.T) {
	hub := newFakeHub("a1")
	p := newTestProxy(hub)

	done := make(chan struct{})
	var data []byte
	var ct string
	var err error
	go func() {
		data, ct, err = p.RequestFrame(context.Background(), "a1", 1)
		close(done)
	}()

	req := waitForRequest(t, hub, "a1", 1)
	p.HandleFrame(protocol.NewCameraFrame(req.RequestID, "image/jpeg", []byte("jpegbytes")))
	<-done

	if err != nil {
		t.Fatal(err)
	}
	if ct != "image/jpeg" || string(data) != "jpegbytes" {
		t.Errorf("got (%s, %q)", ct, data)
	}
}

func TestFreshCacheSkipsDevice(t *testing.T) {
	hub := newFakeHub("a1")
	p := newTestProxy(hub)

	resolveFirst(t, p, hub)
	if len(frameRequests(hub, "a1")) != 1 {
		t.Fatalf("setup produced %d requests", len(frameRequests(hub, "a1")))
	}

	// Second call inside the TTL is served from cache.
	data, _, err := p.RequestFrame(context.Background(), "a1", 1)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "jpegbytes" {
		t.Errorf("cache returned %q", data)
	}
	if got := len(frameRequests(hub, "a1")); got != 1 {
		t.Errorf("cached hit issued a device fetch (%d requests)", got)
	}
}

func TestConcurrentCallersCoalesce(t *testing.T) {
	hub := newFakeHub("a1")
	p := newTestProxy(hub)

	const callers = 5
	var wg sync.WaitGroup
	results := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, results[i] = p.RequestFrame(context.Background(), "a1", 1)
		}(i)
	}

	req := waitForRequest(t, hub, "a1", 1)
	p.HandleFrame(protocol.NewCameraFrame(req.RequestID, "image/jpeg", []byte("jpegbytes")))
	wg.Wait()

	for i, err := range results {
		if err != nil {
			t.Errorf("caller %d: %v", i, err)
		}
	}
	if got := len(frameRequests(hub, "a1")); got != 1 {
		t.Errorf("%d concurrent callers issued %d device fetches, want 1", callers, got)
	}
}

func TestStaleCacheServedWithinRefetchWindow(t *testing.T) {
	hub := newFakeHub("a1")
	agents := newFakeAgents(&models.Agent{AgentID: "a1"})
	p := NewFrameProxy(hub, agents, nil, 10*time.Second, 30*time.Second, 200*time.Millisecond)

	base := time.Now()
	p.now = func() time.Time { return base }
	resolveFirst(t, p, hub)

	// TTL (10s) has expired, but the min-refetch interval (30s) has not:
	// the stale entry is served instead of a new device round-trip.
	p.now = func() time.Time { return base.Add(15 * time.Second) }
	data, _, err := p.RequestFrame(context.Background(), "a1", 1)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "jpegbytes" {
		t.Errorf("got %q, want the stale cached frame", data)
	}
	if got := len(frameRequests(hub, "a1")); got != 1 {
		t.Errorf("throttled window issued a device fetch (%d requests)", got)
	}

	// Past the refetch window a new fetch goes out.
	p.now = func() time.Time { return base.Add(31 * time.Second) }
	done := make(chan struct{})
	go func() {
		_, _, _ = p.RequestFrame(context.Background(), "a1", 1)
		close(done)
	}()
	req := waitForNthRequest(t, hub, "a1", 2)
	p.HandleFrame(protocol.NewCameraFrame(req.RequestID, "image/jpeg", []byte("fresh")))
	<-done
}

func TestOfflineAgentFailsFast(t *testing.T) {
	hub := newFakeHub()
	p := newTestProxy(hub)

	if _, _, err := p.RequestFrame(context.Background(), "a1", 1); err != ErrCameraOffline {
		t.Fatalf("got %v, want ErrCameraOffline", err)
	}
}

func TestTimeoutRejectsAndCachesNothing(t *testing.T) {
	hub := newFakeHub("a1")
	p := newTestProxy(hub) // 200ms frame timeout

	if _, _, err := p.RequestFrame(context.Background(), "a1", 1); err != ErrFrameTimeout {
		t.Fatalf("got %v, want ErrFrameTimeout", err)
	}

	p.mu.Lock()
	cached := len(p.cache)
	pending := len(p.pending)
	p.mu.Unlock()
	if cached != 0 {
		t.Error("timeout cached a value")
	}
	if pending != 0 {
		t.Error("timed-out request left a pending entry")
	}
}

func TestDeviceErrorRejectsCallers(t *testing.T) {
	hub := newFakeHub("a1")
	p := newTestProxy(hub)

	done := make(chan error, 1)
	go func() {
		_, _, err := p.RequestFrame(context.Background(), "a1", 1)
		done <- err
	}()

	req := waitForRequest(t, hub, "a1", 1)
	p.HandleFrame(protocol.NewCameraFrameError(req.RequestID, "capture failed"))

	if err := <-done; err == nil || err.Error() != "capture failed" {
		t.Fatalf("got %v, want capture failed", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.cache) != 0 {
		t.Error("failure response cached a value")
	}
}

// slowTTLStore stands in for a slow agent-row lookup and records whether
// the proxy's cache lock was held during the call.
type slowTTLStore struct {
	proxy      *FrameProxy
	heldDuring bool
}

func (s *slowTTLStore) FindByAgentID(agentID string) (*models.Agent, error) {
	if s.proxy.mu.TryLock() {
		s.proxy.mu.Unlock()
	} else {
		s.heldDuring = true
	}
	return &models.Agent{AgentID: agentID}, nil
}

func TestTTLLookupRunsOutsideCacheLock(t *testing.T) {
	hub := newFakeHub("a1")
	store := &slowTTLStore{}
	p := NewFrameProxy(hub, store, nil, 10*time.Second, 30*time.Second, 200*time.Millisecond)
	store.proxy = p

	resolveFirst(t, p, hub)
	// Cache hit path resolves the TTL too.
	if _, _, err := p.RequestFrame(context.Background(), "a1", 1); err != nil {
		t.Fatal(err)
	}

	if store.heldDuring {
		t.Error("TTL lookup ran while holding the cache lock")
	}
}

// resolveFirst performs one full request/response cycle to warm the cache.
func resolveFirst(t *testing.T, p *FrameProxy, hub *fakeHub) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		_, _, _ = p.RequestFrame(context.Background(), "a1", 1)
		close(done)
	}()
	req := waitForRequest(t, hub, "a1", 1)
	p.HandleFrame(protocol.NewCameraFrame(req.RequestID, "image/jpeg", []byte("jpegbytes")))
	<-done
}

func waitForRequest(t *testing.T, hub *fakeHub, agentID string, cameraID int) protocol.CameraFrameRequest {
	return waitForNthRequest(t, hub, agentID, 1)
}

func waitForNthRequest(t *testing.T, hub *fakeHub, agentID string, n int) protocol.CameraFrameRequest {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		reqs := frameRequests(hub, agentID)
		if len(reqs) >= n {
			return reqs[n-1]
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("camera_frame_request never sent")
	return protocol.CameraFrameRequest{}
}
