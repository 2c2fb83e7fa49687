// Package connection maintains the single persistent hub connection: it
// dials, authenticates with the hello frame, emits heartbeats and
// dispatches inbound commands, reconnecting with backoff whenever the
// socket drops.
package connection

import (
	"errors"
	"sync"
	"time"

	"github.com/AndrewArto/laundropi-control-sub000/agent/internal/camera"
	"github.com/AndrewArto/laundropi-control-sub000/agent/internal/config"
	"github.com/AndrewArto/laundropi-control-sub000/agent/internal/logger"
	"github.com/AndrewArto/laundropi-control-sub000/agent/internal/relay"
	"github.com/AndrewArto/laundropi-control-sub000/agent/internal/scheduler"
	"github.com/AndrewArto/laundropi-control-sub000/agent/internal/store"
	"github.com/AndrewArto/laundropi-control-sub000/protocol"

	"github.com/gorilla/websocket"
)

const (
	baseRetryDelay = 1 * time.Second
	maxRetryDelay  = 30 * time.Second
	backoffFactor  = 1.5
)

var errNotConnected = errors.New("hub connection is down")

// Manager owns the agent's one outbound hub connection.
type Manager struct {
	cfg    config.AppConfig
	driver relay.Driver
	sched  *scheduler.Scheduler
	cams   *camera.Subsystem
	local  *store.Store

	mu   sync.Mutex
	conn *websocket.Conn

	stopCh chan struct{}
	doneCh chan struct{}
}

func New(cfg config.AppConfig, driver relay.Driver, sched *scheduler.Scheduler, cams *camera.Subsystem, local *store.Store) *Manager {
	return &Manager{
		cfg:    cfg,
		driver: driver,
		sched:  sched,
		cams:   cams,
		local:  local,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Send writes one frame over the live connection.
func (m *Manager) Send(msg protocol.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return errNotConnected
	}
	return m.conn.WriteJSON(msg)
}

// Run dials and serves sessions until Stop is called. Each failed dial or
// dropped session backs off by 1.5x up to 30s; a session that survives
// resets the delay.
func (m *Manager) Run() {
	defer close(m.doneCh)
	delay := baseRetryDelay
	for {
		select {
		case <-m.stopCh:
			return
		default:
		}

		logger.Infof("dialing hub at %s", m.cfg.HubURL)
		conn, _, err := websocket.DefaultDialer.Dial(m.cfg.HubURL, nil)
		if err != nil {
			logger.Errorf("hub dial failed: %v", err)
			if !m.sleep(delay) {
				return
			}
			delay = nextDelay(delay)
			continue
		}

		start := time.Now()
		m.serve(conn)
		if time.Since(start) > time.Minute {
			delay = baseRetryDelay
		} else {
			delay = nextDelay(delay)
		}
		if !m.sleep(delay) {
			return
		}
	}
}

// Stop tears down the current session and ends Run.
func (m *Manager) Stop() {
	close(m.stopCh)
	m.mu.Lock()
	if m.conn != nil {
		_ = m.conn.Close()
	}
	m.mu.Unlock()
	<-m.doneCh
}

func nextDelay(d time.Duration) time.Duration {
	d = time.Duration(float64(d) * backoffFactor)
	if d > maxRetryDelay {
		d = maxRetryDelay
	}
	return d
}

func (m *Manager) sleep(d time.Duration) bool {
	select {
	case <-m.stopCh:
		return false
	case <-time.After(d):
		return true
	}
}

// serve runs one authenticated session until the socket drops.
func (m *Manager) serve(conn *websocket.Conn) {
	defer conn.Close()

	hello := protocol.NewHello(m.cfg.AgentID, m.cfg.Secret, m.cfg.Version, m.driver.Configs())
	if err := conn.WriteJSON(hello); err != nil {
		logger.Errorf("hello send failed: %v", err)
		return
	}

	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		if m.conn == conn {
			m.conn = nil
		}
		m.mu.Unlock()
	}()

	logger.Infof("connected to hub as %s", m.cfg.AgentID)

	sessionDone := make(chan struct{})
	defer close(sessionDone)
	go m.heartbeatLoop(sessionDone)

	// First heartbeat answers the hub's reconcile-on-connect immediately.
	m.sendHeartbeat()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			logger.Warnf("hub connection lost: %v", err)
			return
		}
		msg, err := protocol.Decode(data)
		if err != nil {
			logger.Warnf("dropping bad frame from hub: %v", err)
			continue
		}
		m.dispatch(msg)
	}
}

func (m *Manager) heartbeatLoop(sessionDone <-chan struct{}) {
	interval := m.cfg.HeartbeatInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-sessionDone:
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.sendHeartbeat()
		}
	}
}

func (m *Manager) sendHeartbeat() {
	hb := protocol.NewHeartbeat(protocol.HeartbeatStatus{
		Relays:          m.driver.Snapshot(),
		Time:            time.Now().Unix(),
		ScheduleVersion: m.sched.Version(),
		Meta:            map[string]any{"version": m.cfg.Version},
	})
	if err := m.Send(hb); err != nil {
		logger.Warnf("heartbeat send failed: %v", err)
	}
}

func (m *Manager) dispatch(msg protocol.Message) {
	switch f := msg.(type) {
	case protocol.SetRelay:
		if err := m.driver.Set(f.RelayID, f.State == protocol.RelayOn); err != nil {
			logger.Errorf("set_relay %d failed: %v", f.RelayID, err)
			return
		}
		m.sched.NotifyManual(f.RelayID, f.State == protocol.RelayOn)
		// Report the new state right away so the hub can ack the command
		// without waiting out a heartbeat interval.
		m.sendHeartbeat()

	case protocol.UpdateSchedule:
		m.sched.SetSchedule(f.Schedules, f.Version)
		if m.local != nil {
			if err := m.local.SaveSchedule(f.Schedules, f.Version); err != nil {
				logger.Warnf("schedule persist failed: %v", err)
			}
		}

	case protocol.UpdateCameras:
		m.cams.Apply(f.Cameras)
		if m.local != nil {
			if err := m.local.SaveCameras(f.Cameras); err != nil {
				logger.Warnf("camera config persist failed: %v", err)
			}
		}

	case protocol.CameraFrameRequest:
		// Snapshot fetches block on the local camera endpoint; answer off
		// the read loop so heartbeats and commands keep flowing.
		go func(req protocol.CameraFrameRequest) {
			frame := m.cams.HandleRequest(req)
			if err := m.Send(frame); err != nil {
				logger.Warnf("camera frame send failed: %v", err)
			}
		}(f)

	default:
		logger.Warnf("unexpected frame type %q from hub", msg.Kind())
	}
}
