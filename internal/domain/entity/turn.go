package entity

import (
	"time"

	"github.com/google/uuid"
)

type TurnStatus string

const (
	TurnStatusPending   TurnStatus = "pendiente"
	TurnStatusReplaced  TurnStatus = "reemplazado"
	TurnStatusCancelled TurnStatus = "cancelado"
)

// Turn is one issued code in a ticket's history
type Turn struct {
	ID        int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	TicketID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"ticket_id"`
	DoctorID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"doctor_id"`
	Code      string     `gorm:"column:codigo_turno;type:varchar(50);not null" json:"codigo_turno"`
	Seq       int64      `gorm:"not null" json:"seq"`
	Status    TurnStatus `gorm:"column:estado;type:varchar(20);not null;default:'pendiente'" json:"estado"`
	CreatedAt time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
}

func (Turn) TableName() string {
	return "turns"
}
