package socket

import (
	"errors"
	"sync"
	"time"

	"github.com/AndrewArto/laundropi-control-sub000/backend/global"
	"github.com/AndrewArto/laundropi-control-sub000/protocol"
)

// ErrAgentOffline is returned by Send when no live connection exists.
var ErrAgentOffline = errors.New("agent not connected")

// writeWait bounds a single frame write. A wedged agent socket must not
// hold the write mutex forever.
const writeWait = 10 * time.Second

// Conn is the subset of *websocket.Conn the hub needs. Tests substitute
// fakes; comparisons rely on the dynamic value being a pointer.
type Conn interface {
	WriteJSON(v any) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type agentConn struct {
	conn          Conn
	wmu           sync.Mutex // serializes frames on one socket
	lastHeartbeat time.Time
}

// Hub holds the live connection per agent. Exactly one connection may exist
// per agent id; a newer connection silently supersedes an older one.
type Hub struct {
	mu         sync.RWMutex
	byID       map[string]*agentConn
	staleAfter time.Duration
}

func NewHub(staleAfter time.Duration) *Hub {
	if staleAfter <= 0 {
		staleAfter = 90 * time.Second
	}
	return &Hub{byID: make(map[string]*agentConn), staleAfter: staleAfter}
}

// Register stores the connection, superseding any prior one for the same
// agent. The superseded socket is left to close on its own; its close
// handler will fail the Unregister identity check.
func (h *Hub) Register(agentID string, c Conn) {
	h.mu.Lock()
	h.byID[agentID] = &agentConn{conn: c, lastHeartbeat: time.Now()}
	h.mu.Unlock()
	global.Logger.Info().Str("agent", agentID).Msg("agent registered")
}

// Unregister removes the entry only if the closing connection is still the
// one on record. A stale slow-closing socket must not evict its successor.
func (h *Hub) Unregister(agentID string, c Conn) {
	h.mu.Lock()
	if cur, ok := h.byID[agentID]; ok && cur.conn == c {
		delete(h.byID, agentID)
		global.Logger.Info().Str("agent", agentID).Msg("agent unregistered")
	}
	h.mu.Unlock()
}

func (h *Hub) IsConnected(agentID string) bool {
	h.mu.RLock()
	_, ok := h.byID[agentID]
	h.mu.RUnlock()
	return ok
}

// IsOnline additionally requires a recent heartbeat. A silent agent is
// reported offline but keeps its registry entry until the socket closes.
func (h *Hub) IsOnline(agentID string) bool {
	h.mu.RLock()
	ac, ok := h.byID[agentID]
	h.mu.RUnlock()
	return ok && time.Since(ac.lastHeartbeat) <= h.staleAfter
}

// Touch records heartbeat arrival.
func (h *Hub) Touch(agentID string) {
	h.mu.Lock()
	if ac, ok := h.byID[agentID]; ok {
		ac.lastHeartbeat = time.Now()
	}
	h.mu.Unlock()
}

// Send writes one frame to the agent's live connection.
func (h *Hub) Send(agentID string, msg protocol.Message) error {
	h.mu.RLock()
	ac, ok := h.byID[agentID]
	h.mu.RUnlock()
	if !ok {
		return ErrAgentOffline
	}
	ac.wmu.Lock()
	_ = ac.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := ac.conn.WriteJSON(msg)
	ac.wmu.Unlock()
	if err != nil {
		global.Logger.Warn().Err(err).Str("agent", agentID).Str("msg", string(msg.Kind())).Msg("send to agent failed")
		return err
	}
	global.Logger.Debug().Str("agent", agentID).Str("msg", string(msg.Kind())).Msg("sent frame to agent")
	return nil
}
