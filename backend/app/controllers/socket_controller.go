package controllers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/AndrewArto/laundropi-control-sub000/backend/app/services"
	"github.com/AndrewArto/laundropi-control-sub000/backend/app/socket"
	"github.com/AndrewArto/laundropi-control-sub000/backend/global"
	"github.com/AndrewArto/laundropi-control-sub000/protocol"

	"github.com/gorilla/websocket"
)

const (
	helloTimeout   = 10 * time.Second
	maxFrameSize   = 1 << 20 // camera frames ride the same socket
	agentReadLimit = maxFrameSize
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Agents are not browsers; origin checks do not apply.
	CheckOrigin: func(*http.Request) bool { return true },
}

// SocketController owns the agent-facing websocket endpoint: handshake,
// registration and the per-connection read loop.
type SocketController struct {
	Hub       *socket.Hub
	Agents    *services.AgentService
	Reconcile *services.ReconcileService
	Schedules *services.ScheduleService
	Frames    *services.FrameProxy
	Machines  *services.MachineService
	Status    *services.StatusCache
}

func NewSocketController(hub *socket.Hub, agents *services.AgentService, reconcile *services.ReconcileService, schedules *services.ScheduleService, frames *services.FrameProxy, machines *services.MachineService, status *services.StatusCache) *SocketController {
	return &SocketController{
		Hub:       hub,
		Agents:    agents,
		Reconcile: reconcile,
		Schedules: schedules,
		Frames:    frames,
		Machines:  machines,
		Status:    status,
	}
}

// HandleAgent upgrades the connection, authenticates the hello frame and
// runs the read loop until the socket closes.
func (c *SocketController) HandleAgent(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		global.Logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(agentReadLimit)

	agentID, err := c.handshake(conn)
	if err != nil {
		global.Logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("agent handshake rejected")
		_ = conn.Close()
		return
	}

	c.Hub.Register(agentID, conn)
	// The identity check inside Unregister keeps a slow-closing old socket
	// from evicting a newer registration.
	defer func() {
		c.Hub.Unregister(agentID, conn)
		_ = conn.Close()
	}()

	// A freshly (re)connected agent's state is unknown: resend desired
	// state and the current schedule/camera configuration.
	c.Reconcile.ReconcileOnConnect(agentID)
	if err := c.Schedules.PushToAgent(agentID); err != nil {
		global.Logger.Warn().Err(err).Str("agent", agentID).Msg("initial schedule push failed")
	}
	if err := c.Frames.PushConfig(agentID); err != nil {
		global.Logger.Warn().Err(err).Str("agent", agentID).Msg("initial camera push failed")
	}

	c.readLoop(r.Context(), agentID, conn)
}

// handshake reads exactly one frame, which must be a valid hello.
func (c *SocketController) handshake(conn *websocket.Conn) (string, error) {
	if err := conn.SetReadDeadline(time.Now().Add(helloTimeout)); err != nil {
		return "", err
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		return "", fmt.Errorf("read hello: %w", err)
	}
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		return "", err
	}
	msg, err := protocol.Decode(data)
	if err != nil {
		return "", fmt.Errorf("decode hello: %w", err)
	}
	hello, ok := msg.(protocol.Hello)
	if !ok {
		return "", fmt.Errorf("first frame was %s, want hello", msg.Kind())
	}
	if _, err := c.Agents.Authenticate(hello); err != nil {
		return "", err
	}
	c.Agents.RecordHello(hello)
	return hello.AgentID, nil
}

func (c *SocketController) readLoop(ctx context.Context, agentID string, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				global.Logger.Warn().Err(err).Str("agent", agentID).Msg("agent socket closed unexpectedly")
			}
			return
		}
		msg, err := protocol.Decode(data)
		if err != nil {
			global.Logger.Warn().Err(err).Str("agent", agentID).Msg("bad frame from agent")
			continue
		}
		switch m := msg.(type) {
		case protocol.Heartbeat:
			c.handleHeartbeat(ctx, agentID, m.Status)
		case protocol.CameraFrame:
			c.Frames.HandleFrame(m)
		case protocol.MachineStatus:
			// Trust the connection identity, not the frame's agentId.
			c.Machines.Record(agentID, m.Machines)
		case protocol.Hello:
			global.Logger.Warn().Str("agent", agentID).Msg("duplicate hello ignored")
		default:
			global.Logger.Warn().Str("agent", agentID).Str("msg", string(msg.Kind())).Msg("unexpected frame direction")
		}
	}
}

// handleHeartbeat is the per-agent reconciliation entry point. All passes
// for one agent run from its own read loop, so they never overlap.
func (c *SocketController) handleHeartbeat(ctx context.Context, agentID string, status protocol.HeartbeatStatus) {
	now := time.Now()
	c.Hub.Touch(agentID)
	if err := c.Agents.RecordHeartbeat(agentID, status, now); err != nil {
		global.Logger.Error().Err(err).Str("agent", agentID).Msg("persist heartbeat failed")
	}
	c.Reconcile.HandleHeartbeat(agentID, status.Relays)
	c.Schedules.CheckOnHeartbeat(agentID, status.ScheduleVersion)
	c.Status.PublishHeartbeat(ctx, agentID, status)
}
