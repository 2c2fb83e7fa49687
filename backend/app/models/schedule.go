package models

import "time"

// ScheduleRule is one per-agent relay time window. Days is a comma separated
// list of weekday codes ("mon,tue,..."). FromTime/ToTime are "HH:mm"; a rule
// whose FromTime is later than its ToTime wraps past midnight.
type ScheduleRule struct {
	ID        uint   `gorm:"primaryKey"`
	AgentID   string `gorm:"size:191;index"`
	RelayID   int
	Days      string `gorm:"size:64"`
	FromTime  string `gorm:"size:8"`
	ToTime    string `gorm:"size:8"`
	Active    bool   `gorm:"default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GroupRule fans one on/off window out to several relays on one agent. Rows
// sharing a Name form a cross-agent group.
type GroupRule struct {
	ID        uint   `gorm:"primaryKey"`
	AgentID   string `gorm:"size:191;index"`
	Name      string `gorm:"size:255;index"`
	RelayIDs  string `gorm:"size:255"` // JSON array of relay ids
	OnTime    string `gorm:"size:8"`
	OffTime   string `gorm:"size:8"`
	Days      string `gorm:"size:64"`
	Active    bool   `gorm:"default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
