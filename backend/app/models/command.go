package models

import "time"

// Command statuses. Acked and failed are terminal.
const (
	CommandPending = "pending"
	CommandSent    = "sent"
	CommandAcked   = "acked"
	CommandFailed  = "failed"
)

// Command journals one relay-state delivery attempt. The desired-state map
// on the agent row is the source of truth; these rows exist for
// observability and retry bookkeeping only.
type Command struct {
	ID           uint   `gorm:"primaryKey"`
	AgentID      string `gorm:"size:191;index"`
	RelayID      int
	DesiredState string `gorm:"size:8"`
	Status       string `gorm:"size:32;index"`
	CreatedAt    time.Time
	ExpiresAt    time.Time
}
