package repo

import (
	"time"

	"github.com/AndrewArto/laundropi-control-sub000/backend/app/models"

	"gorm.io/gorm"
)

type AgentRepository struct {
	db *gorm.DB
}

func NewAgentRepository(db *gorm.DB) *AgentRepository {
	return &AgentRepository{db: db}
}

func (r *AgentRepository) FindByAgentID(agentID string) (*models.Agent, error) {
	var a models.Agent
	if err := r.db.Where("agent_id = ?", agentID).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AgentRepository) Create(a *models.Agent) error {
	return r.db.Create(a).Error
}

func (r *AgentRepository) ListAll() ([]models.Agent, error) {
	var agents []models.Agent
	if err := r.db.Order("agent_id ASC").Find(&agents).Error; err != nil {
		return nil, err
	}
	return agents, nil
}

func (r *AgentRepository) DeleteByAgentID(agentID string) error {
	return r.db.Where("agent_id = ?", agentID).Delete(&models.Agent{}).Error
}

// UpdateHeartbeat records the latest self-report from a heartbeat frame.
func (r *AgentRepository) UpdateHeartbeat(agentID, lastStatus, lastMeta, reportedState string, at time.Time) error {
	return r.db.Model(&models.Agent{}).
		Where("agent_id = ?", agentID).
		Updates(map[string]any{
			"last_heartbeat": at,
			"last_status":    lastStatus,
			"last_meta":      lastMeta,
			"reported_state": reportedState,
		}).Error
}

func (r *AgentRepository) UpdateSecret(agentID, secret string) error {
	return r.db.Model(&models.Agent{}).
		Where("agent_id = ?", agentID).
		Update("secret", secret).Error
}

func (r *AgentRepository) UpdateDesiredState(agentID, desiredState string) error {
	return r.db.Model(&models.Agent{}).
		Where("agent_id = ?", agentID).
		Update("desired_state", desiredState).Error
}

func (r *AgentRepository) UpdateScheduleVersion(agentID, version string) error {
	return r.db.Model(&models.Agent{}).
		Where("agent_id = ?", agentID).
		Update("schedule_version", version).Error
}

func (r *AgentRepository) UpdateVersion(agentID, version string) error {
	return r.db.Model(&models.Agent{}).
		Where("agent_id = ?", agentID).
		Update("version", version).Error
}
