package dto

import (
	"time"

	"github.com/google/uuid"
)

// Request DTOs

type DeviceRequest struct {
	DeviceFingerprint string `json:"device_fingerprint" validate:"required,notblank,max=255"`
}

type ConfirmPairingRequest struct {
	Code string `json:"codigo" validate:"required,pairingcode"`
}

type AssignReceptionistRequest struct {
	ReceptionistID *uuid.UUID `json:"recepcionista_id"`
}

// Response DTOs

type ScreenResponse struct {
	ID             uuid.UUID     `json:"id"`
	Number         int           `json:"numero"`
	Name           string        `json:"nombre"`
	State          string        `json:"estado"`
	PairingCode    *string       `json:"codigo_vinculacion,omitempty"`
	LinkedAt       *time.Time    `json:"vinculada_at,omitempty"`
	LastSeenAt     *time.Time    `json:"ultima_conexion,omitempty"`
	ReceptionistID *uuid.UUID    `json:"recepcionista_id,omitempty"`
	Receptionist   *UserResponse `json:"recepcionista,omitempty"`
}

type ScreenListResponse struct {
	Screens []ScreenResponse `json:"pantallas"`
	Total   int              `json:"total"`
}

// DeviceStatusResponse is what a display device polls for
type DeviceStatusResponse struct {
	Status string          `json:"status"`
	Screen *ScreenResponse `json:"pantalla,omitempty"`
}
