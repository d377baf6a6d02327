package repository

import (
	"time"

	"clinic-queue/internal/domain/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ScreenRepository interface {
	Create(db *gorm.DB, screen *entity.Screen) error
	Save(db *gorm.DB, screen *entity.Screen) error
	Count(db *gorm.DB) (int64, error)
	FindAll(db *gorm.DB) ([]entity.Screen, error)
	FindByID(db *gorm.DB, id uuid.UUID) (*entity.Screen, error)
	FindByIDForUpdate(db *gorm.DB, id uuid.UUID) (*entity.Screen, error)
	FindByDevice(db *gorm.DB, deviceID string) (*entity.Screen, error)
	// AcquireAvailable locks the lowest-numbered available screen, skipping rows held by other transactions
	AcquireAvailable(db *gorm.DB) (*entity.Screen, error)
	TouchLastSeen(db *gorm.DB, id uuid.UUID, at time.Time) error
	ReleaseStalePending(db *gorm.DB, seenBefore time.Time) (int64, error)
}
