package entity

import (
	"time"

	"github.com/google/uuid"
)

type DoctorType string

const (
	DoctorTypeInformation  DoctorType = "informacion"
	DoctorTypeConsultation DoctorType = "consulta"
)

// Letter is the single-letter tag used in turn code prefixes
func (t DoctorType) Letter() string {
	if t == DoctorTypeInformation {
		return "I"
	}
	return "C"
}

func (t DoctorType) IsValid() bool {
	return t == DoctorTypeInformation || t == DoctorTypeConsultation
}

type DoctorStatus string

const (
	DoctorStatusAvailable   DoctorStatus = "disponible"
	DoctorStatusBusy        DoctorStatus = "ocupado"
	DoctorStatusPaused      DoctorStatus = "pausado"
	DoctorStatusUnavailable DoctorStatus = "no_disponible"
)

func (s DoctorStatus) IsValid() bool {
	switch s {
	case DoctorStatusAvailable, DoctorStatusBusy, DoctorStatusPaused, DoctorStatusUnavailable:
		return true
	}
	return false
}

// Doctor owns a queue of tickets identified by its code prefix
type Doctor struct {
	ID         uuid.UUID    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	FullName   string       `gorm:"column:nombre;type:varchar(200);not null" json:"nombre"`
	Initial    string       `gorm:"column:inicial;type:varchar(4);not null" json:"inicial"`
	Type       DoctorType   `gorm:"column:tipo;type:varchar(20);not null" json:"tipo"`
	CodePrefix string       `gorm:"type:varchar(20);uniqueIndex;not null" json:"code_prefix"`
	Status     DoctorStatus `gorm:"type:varchar(20);not null;default:'disponible'" json:"status"`
	IsActive   bool         `gorm:"not null;default:true;index" json:"is_active"`
	UserID     *uuid.UUID   `gorm:"type:uuid;uniqueIndex" json:"user_id,omitempty"`
	CreatedAt  time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Doctor) TableName() string {
	return "doctors"
}
