// Package protocol defines the wire messages exchanged between the hub and
// field agents. Every frame is a single JSON object carrying a "type" tag;
// unknown tags are rejected rather than ignored.
package protocol

import (
	"encoding/json"
	"fmt"
)

type Type string

const (
	TypeHello              Type = "hello"
	TypeHeartbeat          Type = "heartbeat"
	TypeSetRelay           Type = "set_relay"
	TypeUpdateSchedule     Type = "update_schedule"
	TypeUpdateCameras      Type = "update_cameras"
	TypeCameraFrameRequest Type = "camera_frame_request"
	TypeCameraFrame        Type = "camera_frame"
	TypeMachineStatus      Type = "machine_status"
)

// RelayValue is the on/off value carried by set_relay and desired state.
type RelayValue string

const (
	RelayOn  RelayValue = "on"
	RelayOff RelayValue = "off"
)

func (v RelayValue) Valid() bool { return v == RelayOn || v == RelayOff }

// Message is the tagged union of every wire frame.
type Message interface {
	Kind() Type
}

// RelayConfig is the static relay inventory an agent echoes in its hello.
type RelayConfig struct {
	ID   int    `json:"id"`
	Name string `json:"name,omitempty"`
}

// RelayState is one relay's reported value inside a heartbeat.
type RelayState struct {
	ID    int        `json:"id"`
	State RelayValue `json:"state"`
}

// ScheduleEntry is a single day/time window. From/To are "HH:mm"; an entry
// with From > To wraps past midnight.
type ScheduleEntry struct {
	Days []string `json:"days"`
	From string   `json:"from"`
	To   string   `json:"to"`
}

// RelaySchedule groups the entries governing one relay.
type RelaySchedule struct {
	RelayID int             `json:"relayId"`
	Entries []ScheduleEntry `json:"entries"`
}

// CameraConfig describes one camera pushed to an agent.
type CameraConfig struct {
	ID         int     `json:"id"`
	StreamKey  string  `json:"streamKey"`
	SourceType string  `json:"sourceType"`
	Enabled    bool    `json:"enabled"`
	RTSPURL    *string `json:"rtspUrl"`
}

// Machine is one third-party washer/dryer telemetry row.
type Machine struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	LastUpdated int64  `json:"lastUpdated"`
}

type Hello struct {
	Type    Type          `json:"type"`
	AgentID string        `json:"agentId"`
	Secret  string        `json:"secret"`
	Version string        `json:"version"`
	Relays  []RelayConfig `json:"relays,omitempty"`
}

func (Hello) Kind() Type { return TypeHello }

// HeartbeatStatus is the agent's periodic self-report.
type HeartbeatStatus struct {
	Relays          []RelayState   `json:"relays"`
	Time            int64          `json:"time"`
	ScheduleVersion string         `json:"scheduleVersion"`
	Meta            map[string]any `json:"meta,omitempty"`
}

type Heartbeat struct {
	Type   Type            `json:"type"`
	Status HeartbeatStatus `json:"status"`
}

func (Heartbeat) Kind() Type { return TypeHeartbeat }

type SetRelay struct {
	Type    Type       `json:"type"`
	RelayID int        `json:"relayId"`
	State   RelayValue `json:"state"`
}

func (SetRelay) Kind() Type { return TypeSetRelay }

type UpdateSchedule struct {
	Type      Type            `json:"type"`
	Schedules []RelaySchedule `json:"schedules"`
	Version   string          `json:"version"`
}

func (UpdateSchedule) Kind() Type { return TypeUpdateSchedule }

type UpdateCameras struct {
	Type    Type           `json:"type"`
	Cameras []CameraConfig `json:"cameras"`
}

func (UpdateCameras) Kind() Type { return TypeUpdateCameras }

type CameraFrameRequest struct {
	Type      Type   `json:"type"`
	CameraID  int    `json:"cameraId"`
	RequestID string `json:"requestId"`
}

func (CameraFrameRequest) Kind() Type { return TypeCameraFrameRequest }

// CameraFrame answers a CameraFrameRequest. Data is base64 on the wire
// (encoding/json does this for []byte).
type CameraFrame struct {
	Type        Type   `json:"type"`
	RequestID   string `json:"requestId"`
	OK          bool   `json:"ok"`
	ContentType string `json:"contentType,omitempty"`
	Data        []byte `json:"data,omitempty"`
	Error       string `json:"error,omitempty"`
}

func (CameraFrame) Kind() Type { return TypeCameraFrame }

type MachineStatus struct {
	Type     Type      `json:"type"`
	AgentID  string    `json:"agentId"`
	Machines []Machine `json:"machines"`
}

func (MachineStatus) Kind() Type { return TypeMachineStatus }

// NewHello and friends fill in the type tag so callers cannot forget it.
func NewHello(agentID, secret, version string, relays []RelayConfig) Hello {
	return Hello{Type: TypeHello, AgentID: agentID, Secret: secret, Version: version, Relays: relays}
}

func NewHeartbeat(status HeartbeatStatus) Heartbeat {
	return Heartbeat{Type: TypeHeartbeat, Status: status}
}

func NewSetRelay(relayID int, state RelayValue) SetRelay {
	return SetRelay{Type: TypeSetRelay, RelayID: relayID, State: state}
}

func NewUpdateSchedule(schedules []RelaySchedule, version string) UpdateSchedule {
	return UpdateSchedule{Type: TypeUpdateSchedule, Schedules: schedules, Version: version}
}

func NewUpdateCameras(cameras []CameraConfig) UpdateCameras {
	return UpdateCameras{Type: TypeUpdateCameras, Cameras: cameras}
}

func NewCameraFrameRequest(cameraID int, requestID string) CameraFrameRequest {
	return CameraFrameRequest{Type: TypeCameraFrameRequest, CameraID: cameraID, RequestID: requestID}
}

func NewCameraFrame(requestID string, contentType string, data []byte) CameraFrame {
	return CameraFrame{Type: TypeCameraFrame, RequestID: requestID, OK: true, ContentType: contentType, Data: data}
}

func NewCameraFrameError(requestID, errMsg string) CameraFrame {
	return CameraFrame{Type: TypeCameraFrame, RequestID: requestID, OK: false, Error: errMsg}
}

func NewMachineStatus(agentID string, machines []Machine) MachineStatus {
	return MachineStatus{Type: TypeMachineStatus, AgentID: agentID, Machines: machines}
}

// Encode marshals a message to its wire form.
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses one frame and returns the concrete message. Frames with a
// missing or unknown type tag fail with an explicit error.
func Decode(data []byte) (Message, error) {
	var env struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	switch env.Type {
	case TypeHello:
		var m Hello
		return m, json.Unmarshal(data, &m)
	case TypeHeartbeat:
		var m Heartbeat
		return m, json.Unmarshal(data, &m)
	case TypeSetRelay:
		var m SetRelay
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		if !m.State.Valid() {
			return nil, fmt.Errorf("set_relay: invalid state %q", m.State)
		}
		return m, nil
	case TypeUpdateSchedule:
		var m UpdateSchedule
		return m, json.Unmarshal(data, &m)
	case TypeUpdateCameras:
		var m UpdateCameras
		return m, json.Unmarshal(data, &m)
	case TypeCameraFrameRequest:
		var m CameraFrameRequest
		return m, json.Unmarshal(data, &m)
	case TypeCameraFrame:
		var m CameraFrame
		return m, json.Unmarshal(data, &m)
	case TypeMachineStatus:
		var m MachineStatus
		return m, json.Unmarshal(data, &m)
	case "":
		return nil, fmt.Errorf("frame missing type tag")
	default:
		return nil, fmt.Errorf("unknown message type %q", env.Type)
	}
}
