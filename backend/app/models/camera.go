package models

import "time"

// Camera is one snapshot source on an agent. SourceType is "http" or "rtsp".
type Camera struct {
	ID         uint   `gorm:"primaryKey"`
	AgentID    string `gorm:"size:191;index"`
	CameraID   int
	StreamKey  string `gorm:"size:255"`
	SourceType string `gorm:"size:32"`
	Enabled    bool   `gorm:"default:true"`
	RTSPURL    *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
