package entity

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// TicketStatus is the lifecycle state of a ticket; trashed tickets are recoverable
type TicketStatus string

const (
	TicketStatusActive  TicketStatus = "active"
	TicketStatusTrashed TicketStatus = "trashed"
	TicketStatusDeleted TicketStatus = "deleted"
)

// Registration result discriminators consumed by dashboards
const (
	RegistrationNew     = "nuevo"
	RegistrationReissue = "reimpresion"
)

// Ticket is a patient's queued visit under one doctor
type Ticket struct {
	ID           uuid.UUID    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Name         string       `gorm:"column:nombre;type:varchar(120);not null" json:"nombre"`
	IdentityKey  string       `gorm:"type:varchar(200);not null" json:"-"`
	Document     string       `gorm:"column:documento;type:varchar(40)" json:"documento,omitempty"`
	Motive       string       `gorm:"column:motivo;type:varchar(40);not null" json:"motivo"`
	DoctorID     uuid.UUID    `gorm:"type:uuid;not null;index" json:"doctor_id"`
	Code         string       `gorm:"column:codigo_turno;type:varchar(50);not null" json:"codigo_turno"`
	PatientCode  string       `gorm:"column:codigo_paciente;type:varchar(50);not null" json:"codigo_paciente"`
	PreviousCode *string      `gorm:"column:codigo_anterior;type:varchar(50)" json:"codigo_anterior,omitempty"`
	CodeSeq      int64        `gorm:"not null" json:"-"`
	Status       TicketStatus `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	Version      int64        `gorm:"not null;default:1" json:"version"`
	RegisteredBy *uuid.UUID   `gorm:"type:uuid" json:"registered_by,omitempty"`
	TrashedAt    *time.Time   `json:"trashed_at,omitempty"`
	TrashedBy    *uuid.UUID   `gorm:"type:uuid" json:"trashed_by,omitempty"`
	DeletedAt    *time.Time   `gorm:"column:deleted_at" json:"deleted_at,omitempty"`
	CreatedAt    time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	Doctor *Doctor `gorm:"foreignKey:DoctorID" json:"doctor,omitempty"`
}

func (Ticket) TableName() string {
	return "patients"
}

func (t *Ticket) IsActive() bool {
	return t.Status == TicketStatusActive
}

func (t *Ticket) IsTrashed() bool {
	return t.Status == TicketStatusTrashed
}

func (t *Ticket) IsDeleted() bool {
	return t.Status == TicketStatusDeleted
}

// IdentityKey builds the key that identifies the same patient across registrations.
// Case and repeated whitespace are ignored; a document number, when given, is appended.
func IdentityKey(name, document string) string {
	fields := strings.FieldsFunc(strings.ToLower(name), unicode.IsSpace)
	key := strings.Join(fields, " ")
	if doc := strings.ToUpper(strings.TrimSpace(document)); doc != "" {
		key += "#" + doc
	}
	return key
}

// CleanName trims and collapses whitespace in a display name
func CleanName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}
