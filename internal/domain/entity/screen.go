package entity

import (
	"time"

	"github.com/google/uuid"
)

type ScreenState string

const (
	ScreenStateAvailable ScreenState = "disponible"
	ScreenStatePending   ScreenState = "pendiente"
	ScreenStateLinked    ScreenState = "vinculada"
)

// ScreenStateUnlinked is reported to a device whose fingerprint is no longer bound
const ScreenStateUnlinked ScreenState = "desvinculada"

// PairingCodeLength is the number of digits in a pairing code
const PairingCodeLength = 6

// Screen is a logical display slot bound to a physical device
type Screen struct {
	ID             uuid.UUID   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Number         int         `gorm:"column:numero;uniqueIndex;not null" json:"numero"`
	Name           string      `gorm:"column:nombre;type:varchar(100);not null" json:"nombre"`
	State          ScreenState `gorm:"column:estado;type:varchar(20);not null;default:'disponible';index" json:"estado"`
	PairingCode    *string     `gorm:"column:codigo_vinculacion;type:varchar(6)" json:"codigo_vinculacion,omitempty"`
	DeviceID       *string     `gorm:"type:varchar(255);uniqueIndex" json:"device_id,omitempty"`
	ReceptionistID *uuid.UUID  `gorm:"column:recepcionista_id;type:uuid" json:"recepcionista_id,omitempty"`
	LinkedAt       *time.Time  `gorm:"column:vinculada_at" json:"vinculada_at,omitempty"`
	LastSeenAt     *time.Time  `gorm:"column:ultima_conexion" json:"ultima_conexion,omitempty"`
	CreatedAt      time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time   `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	Receptionist *User `gorm:"foreignKey:ReceptionistID" json:"recepcionista,omitempty"`
}

func (Screen) TableName() string {
	return "screens"
}

func (s *Screen) IsAvailable() bool {
	return s.State == ScreenStateAvailable
}

func (s *Screen) IsPending() bool {
	return s.State == ScreenStatePending
}

func (s *Screen) IsLinked() bool {
	return s.State == ScreenStateLinked
}

// Release returns the screen to the available pool, dropping device and code
func (s *Screen) Release() {
	s.State = ScreenStateAvailable
	s.DeviceID = nil
	s.PairingCode = nil
	s.LinkedAt = nil
}
