package dto

import "time"

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
	Role  string `json:"role"`
}

type RelayStateRequest struct {
	State string `json:"state"` // "on" | "off"
}

type RelayStateResponse struct {
	OK   bool `json:"ok"`
	Sent bool `json:"sent"`
}

type AgentSummary struct {
	AgentID         string     `json:"agentId"`
	Version         string     `json:"version"`
	Online          bool       `json:"online"`
	LastHeartbeat   *time.Time `json:"lastHeartbeat"`
	ScheduleVersion string     `json:"scheduleVersion"`
}

type ProvisionAgentRequest struct {
	AgentID string `json:"agentId"`
	Secret  string `json:"secret"`
}

type ScheduleRuleRequest struct {
	RelayID  int    `json:"relayId"`
	Days     string `json:"days"` // "mon,tue,..."
	FromTime string `json:"from"`
	ToTime   string `json:"to"`
	Active   *bool  `json:"active,omitempty"`
}

type GroupRuleRequest struct {
	Name     string `json:"name"`
	RelayIDs []int  `json:"relayIds"`
	OnTime   string `json:"onTime"`
	OffTime  string `json:"offTime"`
	Days     string `json:"days"`
	Active   *bool  `json:"active,omitempty"`
}

type CameraRequest struct {
	CameraID   int     `json:"cameraId"`
	StreamKey  string  `json:"streamKey"`
	SourceType string  `json:"sourceType"` // "http" | "rtsp"
	Enabled    *bool   `json:"enabled,omitempty"`
	RTSPURL    *string `json:"rtspUrl,omitempty"`
}

type CommandEntry struct {
	ID           uint      `json:"id"`
	RelayID      int       `json:"relayId"`
	DesiredState string    `json:"desiredState"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

type MachineSummary struct {
	MachineID   string    `json:"id"`
	Label       string    `json:"label"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	LastUpdated time.Time `json:"lastUpdated"`
}
