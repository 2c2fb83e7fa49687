package repo

import (
	"github.com/AndrewArto/laundropi-control-sub000/backend/app/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MachineRepository struct {
	db *gorm.DB
}

func NewMachineRepository(db *gorm.DB) *MachineRepository {
	return &MachineRepository{db: db}
}

// Upsert replaces the last known telemetry for one machine.
func (r *MachineRepository) Upsert(m *models.Machine) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "agent_id"}, {Name: "machine_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"label", "type", "status", "last_updated", "updated_at"}),
	}).Create(m).Error
}

func (r *MachineRepository) ListByAgent(agentID string) ([]models.Machine, error) {
	var machines []models.Machine
	if err := r.db.Where("agent_id = ?", agentID).Order("machine_id ASC").Find(&machines).Error; err != nil {
		return nil, err
	}
	return machines, nil
}
