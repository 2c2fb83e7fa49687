package repo

import (
	"github.com/AndrewArto/laundropi-control-sub000/backend/app/models"

	"gorm.io/gorm"
)

type CameraRepository struct {
	db *gorm.DB
}

func NewCameraRepository(db *gorm.DB) *CameraRepository {
	return &CameraRepository{db: db}
}

func (r *CameraRepository) Create(c *models.Camera) error {
	return r.db.Create(c).Error
}

func (r *CameraRepository) Update(c *models.Camera) error {
	return r.db.Save(c).Error
}

func (r *CameraRepository) Delete(id uint) error {
	return r.db.Delete(&models.Camera{}, id).Error
}

func (r *CameraRepository) ListByAgent(agentID string) ([]models.Camera, error) {
	var cams []models.Camera
	if err := r.db.Where("agent_id = ?", agentID).Order("camera_id ASC").Find(&cams).Error; err != nil {
		return nil, err
	}
	return cams, nil
}
