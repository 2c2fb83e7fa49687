package socket

import (
	"sync"
	"testing"
	"time"

	"github.com/AndrewArto/laundropi-control-sub000/protocol"
)

type fakeConn struct {
	mu        sync.Mutex
	frames    []any
	deadlines []time.Time
	closed    bool
}

func (f *fakeConn) WriteJSON(v any) error {
	f.mu.Lock()
	f.frames = append(f.frames, v)
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) SetWriteDeadline(t time.Time) error {
	f.mu.Lock()
	f.deadlines = append(f.deadlines, t)
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func TestRegisterSupersedesOlderConnection(t *testing.T) {
	h := NewHub(time.Minute)
	old := &fakeConn{}
	newer := &fakeConn{}

	h.Register("a1", old)
	h.Register("a1", newer)

	if err := h.Send("a1", protocol.NewSetRelay(1, protocol.RelayOn)); err != nil {
		t.Fatal(err)
	}
	if old.count() != 0 {
		t.Error("frame went to superseded connection")
	}
	if newer.count() != 1 {
		t.Errorf("newer connection got %d frames, want 1", newer.count())
	}
}

func TestStaleCloseDoesNotEvictNewerConnection(t *testing.T) {
	h := NewHub(time.Minute)
	old := &fakeConn{}
	newer := &fakeConn{}

	h.Register("a1", old)
	h.Register("a1", newer)

	// The old socket's close handler fires after the new registration.
	h.Unregister("a1", old)

	if !h.IsConnected("a1") {
		t.Fatal("stale close evicted the newer connection")
	}

	h.Unregister("a1", newer)
	if h.IsConnected("a1") {
		t.Fatal("unregistering the current connection should evict it")
	}
}

func TestSendBoundsEachWrite(t *testing.T) {
	h := NewHub(time.Minute)
	conn := &fakeConn{}
	h.Register("a1", conn)

	before := time.Now()
	if err := h.Send("a1", protocol.NewSetRelay(1, protocol.RelayOn)); err != nil {
		t.Fatal(err)
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()
	if len(conn.deadlines) != 1 {
		t.Fatalf("got %d write deadlines, want 1 per write", len(conn.deadlines))
	}
	d := conn.deadlines[0]
	if d.Before(before) || d.After(before.Add(writeWait+time.Second)) {
		t.Errorf("deadline %v not within writeWait of the send", d)
	}
}

func TestSendToUnknownAgent(t *testing.T) {
	h := NewHub(time.Minute)
	if err := h.Send("ghost", protocol.NewSetRelay(1, protocol.RelayOff)); err != ErrAgentOffline {
		t.Fatalf("got %v, want ErrAgentOffline", err)
	}
}

func TestIsOnlineRequiresRecentHeartbeat(t *testing.T) {
	h := NewHub(10 * time.Millisecond)
	h.Register("a1", &fakeConn{})

	if !h.IsOnline("a1") {
		t.Fatal("freshly registered agent should be online")
	}

	time.Sleep(25 * time.Millisecond)
	if h.IsOnline("a1") {
		t.Fatal("agent with stale heartbeat should report offline")
	}
	// Staleness is a reporting concern only, the entry stays registered.
	if !h.IsConnected("a1") {
		t.Fatal("stale heartbeat must not evict the registry entry")
	}

	h.Touch("a1")
	if !h.IsOnline("a1") {
		t.Fatal("touch should refresh the heartbeat")
	}
}
