package models

import "time"

// Machine mirrors the last third-party washer/dryer telemetry an agent
// reported via machine_status.
type Machine struct {
	ID          uint   `gorm:"primaryKey"`
	AgentID     string `gorm:"size:191;index:idx_agent_machine,unique"`
	MachineID   string `gorm:"size:191;index:idx_agent_machine,unique"`
	Label       string `gorm:"size:255"`
	Type        string `gorm:"size:32"`
	Status      string `gorm:"size:64"`
	LastUpdated time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
