package connection

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AndrewArto/laundropi-control-sub000/agent/internal/camera"
	"github.com/AndrewArto/laundropi-control-sub000/agent/internal/config"
	"github.com/AndrewArto/laundropi-control-sub000/agent/internal/relay"
	"github.com/AndrewArto/laundropi-control-sub000/agent/internal/scheduler"
	"github.com/AndrewArto/laundropi-control-sub000/protocol"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{}

type hubStub struct {
	t      *testing.T
	frames chan protocol.Message
	conn   *websocket.Conn
	ready  chan struct{}
}

func newHubStub(t *testing.T) (*hubStub, *httptest.Server) {
	stub := &hubStub{t: t, frames: make(chan protocol.Message, 16), ready: make(chan struct{})}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		stub.conn = conn
		close(stub.ready)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			msg, err := protocol.Decode(data)
			if err != nil {
				t.Errorf("decode agent frame: %v", err)
				return
			}
			stub.frames <- msg
		}
	}))
	return stub, srv
}

func (h *hubStub) next() protocol.Message {
	select {
	case m := <-h.frames:
		return m
	case <-time.After(2 * time.Second):
		h.t.Fatal("timed out waiting for agent frame")
		return nil
	}
}

func newTestManager(url string) (*Manager, *relay.MemoryDriver, *scheduler.Scheduler) {
	cfg := config.AppConfig{
		HubURL:            strings.Replace(url, "http", "ws", 1),
		AgentID:           "pi-test",
		Secret:            "s3cret",
		Version:           "test",
		HeartbeatInterval: time.Hour, // keep the ticker out of the way
	}
	driver := relay.NewMemoryDriver([]config.RelayDef{{ID: 1, Name: "sign"}})
	sched := scheduler.New(driver)
	return New(cfg, driver, sched, camera.New(nil), nil), driver, sched
}

func TestSessionHelloThenHeartbeat(t *testing.T) {
	stub, srv := newHubStub(t)
	defer srv.Close()
	m, _, _ := newTestManager(srv.URL)

	conn, _, err := websocket.DefaultDialer.Dial(m.cfg.HubURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	go m.serve(conn)
	defer conn.Close()

	hello, ok := stub.next().(protocol.Hello)
	if !ok || hello.AgentID != "pi-test" || hello.Secret != "s3cret" {
		t.Fatalf("expected hello first, got %#v", hello)
	}
	if len(hello.Relays) != 1 || hello.Relays[0].ID != 1 {
		t.Fatalf("hello must echo relay inventory, got %#v", hello.Relays)
	}

	hb, ok := stub.next().(protocol.Heartbeat)
	if !ok {
		t.Fatal("expected heartbeat after hello")
	}
	if len(hb.Status.Relays) != 1 || hb.Status.Relays[0].State != protocol.RelayOff {
		t.Fatalf("unexpected first heartbeat: %#v", hb.Status)
	}
}

func TestSetRelayAppliesAndReportsImmediately(t *testing.T) {
	stub, srv := newHubStub(t)
	defer srv.Close()
	m, driver, _ := newTestManager(srv.URL)

	conn, _, err := websocket.DefaultDialer.Dial(m.cfg.HubURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	go m.serve(conn)
	defer conn.Close()

	stub.next() // hello
	stub.next() // first heartbeat
	<-stub.ready

	if err := stub.conn.WriteJSON(protocol.NewSetRelay(1, protocol.RelayOn)); err != nil {
		t.Fatalf("send set_relay: %v", err)
	}

	hb, ok := stub.next().(protocol.Heartbeat)
	if !ok {
		t.Fatal("expected an immediate heartbeat after set_relay")
	}
	if hb.Status.Relays[0].State != protocol.RelayOn {
		t.Fatalf("relay not reported on: %#v", hb.Status.Relays)
	}
	snap := driver.Snapshot()
	if snap[0].State != protocol.RelayOn {
		t.Fatalf("driver not switched: %#v", snap)
	}
}

func TestUpdateScheduleReachesScheduler(t *testing.T) {
	stub, srv := newHubStub(t)
	defer srv.Close()
	m, _, sched := newTestManager(srv.URL)

	conn, _, err := websocket.DefaultDialer.Dial(m.cfg.HubURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	go m.serve(conn)
	defer conn.Close()

	stub.next()
	stub.next()
	<-stub.ready

	push := protocol.NewUpdateSchedule([]protocol.RelaySchedule{{
		RelayID: 1,
		Entries: []protocol.ScheduleEntry{{Days: []string{"mon"}, From: "09:00", To: "18:00"}},
	}}, "deadbeef")
	if err := stub.conn.WriteJSON(push); err != nil {
		t.Fatalf("send update_schedule: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for sched.Version() != "deadbeef" {
		if time.Now().After(deadline) {
			t.Fatalf("scheduler version not updated, still %q", sched.Version())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
