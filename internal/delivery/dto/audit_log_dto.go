package dto

import (
	"time"

	"clinic-queue/internal/domain/entity"

	"github.com/google/uuid"
)

// Request DTOs

// AuditLogQuery is parsed from ?accion=&entidad=&entidad_id=&desde=&limit=
type AuditLogQuery struct {
	Action   string
	Entity   string
	EntityID string
	Since    *time.Time
	Limit    int
}

// Response DTOs

type AuditLogResponse struct {
	ID        int64         `json:"id"`
	UserID    *uuid.UUID    `json:"user_id,omitempty"`
	User      *UserResponse `json:"user,omitempty"`
	Action    string        `json:"action"`
	Entity    string        `json:"entity,omitempty"`
	EntityID  string        `json:"entity_id,omitempty"`
	Metadata  entity.JSON   `json:"metadata"`
	CreatedAt time.Time     `json:"created_at"`
}

type AuditLogListResponse struct {
	Logs  []AuditLogResponse `json:"logs"`
	Total int                `json:"total"`
	Limit int                `json:"limit"`
}
