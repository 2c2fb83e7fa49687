package models

import "time"

// Agent is the durable record for one field device. DesiredState and
// ReportedState hold JSON maps of relayId -> on|off.
type Agent struct {
	ID              uint   `gorm:"primaryKey"`
	AgentID         string `gorm:"uniqueIndex;size:191;not null"`
	Secret          string `gorm:"size:255"`
	Version         string `gorm:"size:64"`
	LastHeartbeat   *time.Time
	LastStatus      string `gorm:"type:longtext"`
	LastMeta        string `gorm:"type:longtext"`
	DesiredState    string `gorm:"type:longtext"`
	ReportedState   string `gorm:"type:longtext"`
	ScheduleVersion string `gorm:"size:128"`
	// CameraCacheTTL overrides the server-wide frame cache TTL, in
	// seconds. Zero means use the default.
	CameraCacheTTL int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
