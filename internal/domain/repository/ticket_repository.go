package repository

import (
	"time"

	"clinic-queue/internal/domain/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TicketRepository interface {
	Create(db *gorm.DB, ticket *entity.Ticket) error
	Save(db *gorm.DB, ticket *entity.Ticket) error
	FindByID(db *gorm.DB, id uuid.UUID) (*entity.Ticket, error)
	// FindByIDForUpdate locks the row until the transaction ends
	FindByIDForUpdate(db *gorm.DB, id uuid.UUID) (*entity.Ticket, error)
	FindOpenByIdentity(db *gorm.DB, doctorID uuid.UUID, identityKey string) (*entity.Ticket, error)
	FindOpenByCode(db *gorm.DB, code string) (*entity.Ticket, error)
	FindByStatus(db *gorm.DB, status entity.TicketStatus) ([]entity.Ticket, error)
	FindActiveByDoctor(db *gorm.DB, doctorID uuid.UUID) ([]entity.Ticket, error)
	FindCreatedBetween(db *gorm.DB, from, to time.Time) ([]entity.Ticket, error)
	CountActiveByDoctor(db *gorm.DB, doctorID uuid.UUID) (int64, error)
	PurgeDeletedBefore(db *gorm.DB, before time.Time) (int64, error)
}
