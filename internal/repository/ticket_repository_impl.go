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

type ticketRepository struct{}

func NewTicketRepository() domainRepo.TicketRepository {
	return &ticketRepository{}
}

func (r *ticketRepository) Create(db *gorm.DB, ticket *entity.Ticket) error {
	return db.Create(ticket).Error
}

func (r *ticketRepository) Save(db *gorm.DB, ticket *entity.Ticket) error {
	return db.Omit("Doctor").Save(ticket).Error
}

func (r *ticketRepository) FindByID(db *gorm.DB, id uuid.UUID) (*entity.Ticket, error) {
	return r.first(db.Preload("Doctor").Where("id = ?", id))
}

func (r *ticketRepository) FindByIDForUpdate(db *gorm.DB, id uuid.UUID) (*entity.Ticket, error) {
	return r.first(db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id))
}

func (r *ticketRepository) FindOpenByIdentity(db *gorm.DB, doctorID uuid.UUID, identityKey string) (*entity.Ticket, error) {
	return r.first(db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("doctor_id = ? AND identity_key = ? AND status <> ?", doctorID, identityKey, entity.TicketStatusDeleted))
}

// FindOpenByCode matches either the active turn code or the stable patient code
func (r *ticketRepository) FindOpenByCode(db *gorm.DB, code string) (*entity.Ticket, error) {
	return r.first(db.Preload("Doctor").
		Where("(codigo_turno = ? OR codigo_paciente = ?) AND status <> ?", code, code, entity.TicketStatusDeleted).
		Order("updated_at DESC"))
}

func (r *ticketRepository) FindActiveByDoctor(db *gorm.DB, doctorID uuid.UUID) ([]entity.Ticket, error) {
	var tickets []entity.Ticket
	err := db.Where("doctor_id = ? AND status = ?", doctorID, entity.TicketStatusActive).
		Order("code_seq ASC, codigo_turno ASC").
		Find(&tickets).Error
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

func (r *ticketRepository) FindByStatus(db *gorm.DB, status entity.TicketStatus) ([]entity.Ticket, error) {
	var tickets []entity.Ticket
	err := db.Preload("Doctor").
		Where("status = ?", status).
		Order("doctor_id ASC, code_seq ASC, codigo_turno ASC").
		Find(&tickets).Error
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

func (r *ticketRepository) FindCreatedBetween(db *gorm.DB, from, to time.Time) ([]entity.Ticket, error) {
	var tickets []entity.Ticket
	err := db.Preload("Doctor").
		Where("created_at >= ? AND created_at < ?", from, to).
		Order("created_at ASC").
		Find(&tickets).Error
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

func (r *ticketRepository) CountActiveByDoctor(db *gorm.DB, doctorID uuid.UUID) (int64, error) {
	var count int64
	err := db.Model(&entity.Ticket{}).
		Where("doctor_id = ? AND status = ?", doctorID, entity.TicketStatusActive).
		Count(&count).Error
	return count, err
}

// PurgeDeletedBefore hard-deletes tombstones and their turn history.
// Returns the number of tickets removed.
func (r *ticketRepository) PurgeDeletedBefore(db *gorm.DB, before time.Time) (int64, error) {
	expired := db.Model(&entity.Ticket{}).
		Select("id").
		Where("status = ? AND deleted_at < ?", entity.TicketStatusDeleted, before)

	if err := db.Where("ticket_id IN (?)", expired).Delete(&entity.Turn{}).Error; err != nil {
		return 0, err
	}

	result := db.Where("status = ? AND deleted_at < ?", entity.TicketStatusDeleted, before).Delete(&entity.Ticket{})
	return result.RowsAffected, result.Error
}

func (r *ticketRepository) first(query *gorm.DB) (*entity.Ticket, error) {
	var ticket entity.Ticket
	if err := query.First(&ticket).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ticket, nil
}
