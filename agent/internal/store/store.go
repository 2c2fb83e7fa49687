// Package store persists the last pushed schedule and camera configuration
// in a local sqlite file, so a rebooted agent enforces its windows before
// the hub connection comes back.
package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/AndrewArto/laundropi-control-sub000/protocol"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type snapshot struct {
	ID        uint   `gorm:"primaryKey"`
	Kind      string `gorm:"uniqueIndex;size:32"`
	Version   string `gorm:"size:128"`
	Payload   string `gorm:"type:text"`
	UpdatedAt time.Time
}

const (
	kindSchedule = "schedule"
	kindCameras  = "cameras"
)

type Store struct {
	db *gorm.DB
}

func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&snapshot{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) save(kind, version string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	var row snapshot
	err = s.db.Where("kind = ?", kind).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.db.Create(&snapshot{Kind: kind, Version: version, Payload: string(raw)}).Error
	}
	if err != nil {
		return err
	}
	row.Version = version
	row.Payload = string(raw)
	return s.db.Save(&row).Error
}

func (s *Store) load(kind string, out any) (string, error) {
	var row snapshot
	if err := s.db.Where("kind = ?", kind).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	if err := json.Unmarshal([]byte(row.Payload), out); err != nil {
		return "", err
	}
	return row.Version, nil
}

func (s *Store) SaveSchedule(schedules []protocol.RelaySchedule, version string) error {
	return s.save(kindSchedule, version, schedules)
}

// LoadSchedule returns the stored schedule and its version. A missing row
// yields an empty schedule with no error.
func (s *Store) LoadSchedule() ([]protocol.RelaySchedule, string, error) {
	var schedules []protocol.RelaySchedule
	version, err := s.load(kindSchedule, &schedules)
	return schedules, version, err
}

func (s *Store) SaveCameras(cameras []protocol.CameraConfig) error {
	return s.save(kindCameras, "", cameras)
}

func (s *Store) LoadCameras() ([]protocol.CameraConfig, error) {
	var cameras []protocol.CameraConfig
	_, err := s.load(kindCameras, &cameras)
	return cameras, err
}
