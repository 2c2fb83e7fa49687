package services

import (
	"time"

	"github.com/AndrewArto/laundropi-control-sub000/backend/app/models"
	"github.com/AndrewArto/laundropi-control-sub000/backend/app/repo"
	"github.com/AndrewArto/laundropi-control-sub000/backend/global"
	"github.com/AndrewArto/laundropi-control-sub000/protocol"
)

// MachineService stores the washer/dryer telemetry agents relay from the
// third-party vendor API.
type MachineService struct {
	machines *repo.MachineRepository
}

func NewMachineService(machines *repo.MachineRepository) *MachineService {
	return &MachineService{machines: machines}
}

func (s *MachineService) Record(agentID string, machines []protocol.Machine) {
	for _, m := range machines {
		row := &models.Machine{
			AgentID:     agentID,
			MachineID:   m.ID,
			Label:       m.Label,
			Type:        m.Type,
			Status:      m.Status,
			LastUpdated: time.Unix(m.LastUpdated, 0),
		}
		if err := s.machines.Upsert(row); err != nil {
			global.Logger.Warn().Err(err).Str("agent", agentID).Str("machine", m.ID).Msg("machine telemetry upsert failed")
		}
	}
}

func (s *MachineService) ListByAgent(agentID string) ([]models.Machine, error) {
	return s.machines.ListByAgent(agentID)
}
