package repository

import (
	"time"

	"clinic-queue/internal/domain/entity"
	domainRepo "clinic-queue/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type turnRepository struct{}

func NewTurnRepository() domainRepo.TurnRepository {
	return &turnRepository{}
}

func (r *turnRepository) Create(db *gorm.DB, turn *entity.Turn) error {
	return db.Create(turn).Error
}

// MarkPending moves the ticket's pending turn to status
func (r *turnRepository) MarkPending(db *gorm.DB, ticketID uuid.UUID, status entity.TurnStatus) error {
	return db.Model(&entity.Turn{}).
		Where("ticket_id = ? AND estado = ?", ticketID, entity.TurnStatusPending).
		Update("estado", status).Error
}

func (r *turnRepository) FindByTicket(db *gorm.DB, ticketID uuid.UUID) ([]entity.Turn, error) {
	var turns []entity.Turn
	err := db.Where("ticket_id = ?", ticketID).Order("id DESC").Find(&turns).Error
	if err != nil {
		return nil, err
	}
	return turns, nil
}

// PruneHistory keeps the newest keep turns of a ticket
func (r *turnRepository) PruneHistory(db *gorm.DB, ticketID uuid.UUID, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	newest := db.Model(&entity.Turn{}).
		Select("id").
		Where("ticket_id = ?", ticketID).
		Order("id DESC").
		Limit(keep)

	result := db.Where("ticket_id = ? AND id NOT IN (?)", ticketID, newest).Delete(&entity.Turn{})
	return result.RowsAffected, result.Error
}

func (r *turnRepository) MaxSeqByDoctor(db *gorm.DB) ([]domainRepo.DoctorSeq, error) {
	var rows []domainRepo.DoctorSeq
	err := db.Model(&entity.Turn{}).
		Select("doctor_id, COALESCE(MAX(seq), 0) AS max_seq").
		Group("doctor_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *turnRepository) CountByDoctorBetween(db *gorm.DB, from, to time.Time) ([]domainRepo.TurnCounts, error) {
	var rows []domainRepo.TurnCounts
	err := db.Model(&entity.Turn{}).
		Select(`
			doctor_id,
			COUNT(*) AS issued,
			COUNT(CASE WHEN estado = ? THEN 1 END) AS replaced,
			COUNT(CASE WHEN estado = ? THEN 1 END) AS cancelled
		`, entity.TurnStatusReplaced, entity.TurnStatusCancelled).
		Where("created_at >= ? AND created_at < ?", from, to).
		Group("doctor_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
