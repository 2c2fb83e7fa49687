package repo

import (
	"github.com/AndrewArto/laundropi-control-sub000/backend/app/models"

	"gorm.io/gorm"
)

type ScheduleRepository struct {
	db *gorm.DB
}

func NewScheduleRepository(db *gorm.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

func (r *ScheduleRepository) Create(rule *models.ScheduleRule) error {
	return r.db.Create(rule).Error
}

func (r *ScheduleRepository) Update(rule *models.ScheduleRule) error {
	return r.db.Save(rule).Error
}

func (r *ScheduleRepository) Delete(id uint) error {
	return r.db.Delete(&models.ScheduleRule{}, id).Error
}

func (r *ScheduleRepository) FindByID(id uint) (*models.ScheduleRule, error) {
	var rule models.ScheduleRule
	if err := r.db.First(&rule, id).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *ScheduleRepository) ListActiveByAgent(agentID string) ([]models.ScheduleRule, error) {
	var rules []models.ScheduleRule
	if err := r.db.Where("agent_id = ? AND active = ?", agentID, true).Order("relay_id ASC, id ASC").Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

type GroupRepository struct {
	db *gorm.DB
}

func NewGroupRepository(db *gorm.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

func (r *GroupRepository) Create(g *models.GroupRule) error {
	return r.db.Create(g).Error
}

func (r *GroupRepository) Update(g *models.GroupRule) error {
	return r.db.Save(g).Error
}

func (r *GroupRepository) Delete(id uint) error {
	return r.db.Delete(&models.GroupRule{}, id).Error
}

func (r *GroupRepository) FindByID(id uint) (*models.GroupRule, error) {
	var g models.GroupRule
	if err := r.db.First(&g, id).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *GroupRepository) ListActiveByAgent(agentID string) ([]models.GroupRule, error) {
	var groups []models.GroupRule
	if err := r.db.Where("agent_id = ? AND active = ?", agentID, true).Order("id ASC").Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}
