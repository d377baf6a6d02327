package repository

import (
	"errors"
	"time"

	"clinic-queue/internal/domain/entity"
	domainRepo "clinic-queue/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type screenRepository struct{}

func NewScreenRepository() domainRepo.ScreenRepository {
	return &screenRepository{}
}

func (r *screenRepository) Create(db *gorm.DB, screen *entity.Screen) error {
	return db.Create(screen).Error
}

func (r *screenRepository) Save(db *gorm.DB, screen *entity.Screen) error {
	return db.Omit("Receptionist").Save(screen).Error
}

func (r *screenRepository) Count(db *gorm.DB) (int64, error) {
	var count int64
	err := db.Model(&entity.Screen{}).Count(&count).Error
	return count, err
}

func (r *screenRepository) FindAll(db *gorm.DB) ([]entity.Screen, error) {
	var screens []entity.Screen
	if err := db.Preload("Receptionist").Order("numero ASC").Find(&screens).Error; err != nil {
		return nil, err
	}
	return screens, nil
}

func (r *screenRepository) FindByID(db *gorm.DB, id uuid.UUID) (*entity.Screen, error) {
	return r.first(db.Preload("Receptionist").Where("id = ?", id))
}

func (r *screenRepository) FindByIDForUpdate(db *gorm.DB, id uuid.UUID) (*entity.Screen, error) {
	return r.first(db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id))
}

func (r *screenRepository) FindByDevice(db *gorm.DB, deviceID string) (*entity.Screen, error) {
	return r.first(db.Preload("Receptionist").Where("device_id = ?", deviceID))
}

func (r *screenRepository) AcquireAvailable(db *gorm.DB) (*entity.Screen, error) {
	return r.first(db.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("estado = ?", entity.ScreenStateAvailable).
		Order("numero ASC"))
}

func (r *screenRepository) TouchLastSeen(db *gorm.DB, id uuid.UUID, at time.Time) error {
	return db.Model(&entity.Screen{}).Where("id = ?", id).UpdateColumn("ultima_conexion", at).Error
}

// ReleaseStalePending frees pending screens whose device stopped polling
func (r *screenRepository) ReleaseStalePending(db *gorm.DB, seenBefore time.Time) (int64, error) {
	result := db.Model(&entity.Screen{}).
		Where("estado = ? AND (ultima_conexion IS NULL OR ultima_conexion < ?)", entity.ScreenStatePending, seenBefore).
		Updates(map[string]interface{}{
			"estado":             entity.ScreenStateAvailable,
			"device_id":          nil,
			"codigo_vinculacion": nil,
			"vinculada_at":       nil,
		})
	return result.RowsAffected, result.Error
}

func (r *screenRepository) first(query *gorm.DB) (*entity.Screen, error) {
	var screen entity.Screen
	if err := query.First(&screen).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &screen, nil
}
