package repository

import (
	"time"

	"clinic-queue/internal/domain/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DoctorSeq is the highest code sequence issued for a doctor
type DoctorSeq struct {
	DoctorID uuid.UUID
	MaxSeq   int64
}

// TurnCounts aggregates issued turns per doctor over a period
type TurnCounts struct {
	DoctorID  uuid.UUID
	Issued    int64
	Replaced  int64
	Cancelled int64
}

type TurnRepository interface {
	Create(db *gorm.DB, turn *entity.Turn) error
	MarkPending(db *gorm.DB, ticketID uuid.UUID, status entity.TurnStatus) error
	FindByTicket(db *gorm.DB, ticketID uuid.UUID) ([]entity.Turn, error)
	PruneHistory(db *gorm.DB, ticketID uuid.UUID, keep int) (int64, error)
	MaxSeqByDoctor(db *gorm.DB) ([]DoctorSeq, error)
	CountByDoctorBetween(db *gorm.DB, from, to time.Time) ([]TurnCounts, error)
}
