package repo

import (
	"time"

	"github.com/AndrewArto/laundropi-control-sub000/backend/app/models"

	"gorm.io/gorm"
)

type CommandRepository struct {
	db *gorm.DB
}

func NewCommandRepository(db *gorm.DB) *CommandRepository {
	return &CommandRepository{db: db}
}

func (r *CommandRepository) Create(cmd *models.Command) error {
	return r.db.Create(cmd).Error
}

// AckInFlight marks every pending/sent entry for one relay acked. Called
// when a heartbeat reports the relay at its desired value.
func (r *CommandRepository) AckInFlight(agentID string, relayID int) error {
	return r.db.Model(&models.Command{}).
		Where("agent_id = ? AND relay_id = ? AND status IN ?", agentID, relayID, []string{models.CommandPending, models.CommandSent}).
		Update("status", models.CommandAcked).Error
}

// SweepExpired fails every pending/sent entry whose expiry has passed. The
// desired-state map is untouched; the next heartbeat retries regardless.
func (r *CommandRepository) SweepExpired(agentID string, now time.Time) error {
	return r.db.Model(&models.Command{}).
		Where("agent_id = ? AND status IN ? AND expires_at < ?", agentID, []string{models.CommandPending, models.CommandSent}, now).
		Update("status", models.CommandFailed).Error
}

func (r *CommandRepository) ListByAgent(agentID string, limit int) ([]models.Command, error) {
	if limit <= 0 {
		limit = 100
	}
	var cmds []models.Command
	if err := r.db.Where("agent_id = ?", agentID).Order("id DESC").Limit(limit).Find(&cmds).Error; err != nil {
		return nil, err
	}
	return cmds, nil
}

// Prune deletes terminal entries older than the cutoff.
func (r *CommandRepository) Prune(cutoff time.Time) error {
	return r.db.
		Where("status IN ? AND created_at < ?", []string{models.CommandAcked, models.CommandFailed}, cutoff).
		Delete(&models.Command{}).Error
}
