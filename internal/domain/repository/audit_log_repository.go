package repository

import (
	"time"

	"clinic-queue/internal/domain/entity"

	"gorm.io/gorm"
)

// AuditLogFilter narrows an audit trail search. Zero fields match everything.
type AuditLogFilter struct {
	// ActionPrefix matches "ticket." style families as well as exact actions
	ActionPrefix string
	Entity       string
	EntityID     string
	Since        *time.Time
	Limit        int
}

type AuditLogRepository interface {
	Create(db *gorm.DB, log *entity.AuditLog) error
	Search(db *gorm.DB, filter AuditLogFilter) ([]entity.AuditLog, error)
	FindByID(db *gorm.DB, id int64) (*entity.AuditLog, error)
}
