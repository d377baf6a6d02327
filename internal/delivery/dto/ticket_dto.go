package dto

import (
	"time"

	"github.com/google/uuid"
)

// Request DTOs

// RegisterTicketRequest accepts the doctor as doctor_id or medico_id
type RegisterTicketRequest struct {
	Name     string     `json:"nombre" validate:"required,notblank,max=120"`
	LastName string     `json:"apellido" validate:"omitempty,max=120"`
	Document string     `json:"documento" validate:"omitempty,max=40"`
	DoctorID *uuid.UUID `json:"doctor_id"`
	MedicoID *uuid.UUID `json:"medico_id"`
	Motive   string     `json:"motivo" validate:"required,motive"`
}

// Doctor returns whichever doctor field was sent
func (r *RegisterTicketRequest) Doctor() (uuid.UUID, bool) {
	if r.DoctorID != nil && *r.DoctorID != uuid.Nil {
		return *r.DoctorID, true
	}
	if r.MedicoID != nil && *r.MedicoID != uuid.Nil {
		return *r.MedicoID, true
	}
	return uuid.Nil, false
}

// FullName joins nombre and apellido the way dashboards display it
func (r *RegisterTicketRequest) FullName() string {
	if r.LastName == "" {
		return r.Name
	}
	return r.Name + " " + r.LastName
}

// Response DTOs

type TicketPatientResponse struct {
	ID          uuid.UUID `json:"id"`
	PatientCode string    `json:"codigo_paciente"`
	Name        string    `json:"nombre"`
	DoctorID    uuid.UUID `json:"medico_id"`
	Doctor      string    `json:"medico"`
	Motive      string    `json:"motivo"`
}

type RegisterTicketResponse struct {
	Type         string                `json:"tipo"`
	Code         string                `json:"codigo_turno"`
	PreviousCode *string               `json:"codigo_anterior,omitempty"`
	Patient      TicketPatientResponse `json:"paciente"`
}

type BoardPatientResponse struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"nombre"`
	Code         string    `json:"codigo"`
	Seq          int64     `json:"code_seq"`
	Motive       string    `json:"motivo"`
	PreviousCode *string   `json:"codigo_anterior,omitempty"`
	Version      int64     `json:"version"`
	CreatedAt    time.Time `json:"created_at"`
}

type BoardDoctorResponse struct {
	ID       uuid.UUID              `json:"id"`
	FullName string                 `json:"nombre"`
	Initial  string                 `json:"inicial"`
	Type     string                 `json:"tipo"`
	Status   string                 `json:"status"`
	Patients []BoardPatientResponse `json:"pacientes"`
}

type BoardResponse struct {
	Doctors     []BoardDoctorResponse `json:"medicos"`
	GeneratedAt time.Time             `json:"generated_at"`
}

type TurnResponse struct {
	Code      string    `json:"codigo_turno"`
	Seq       int64     `json:"seq"`
	Status    string    `json:"estado"`
	CreatedAt time.Time `json:"created_at"`
}

type TicketResponse struct {
	ID           uuid.UUID      `json:"id"`
	Name         string         `json:"nombre"`
	Code         string         `json:"codigo_turno"`
	PatientCode  string         `json:"codigo_paciente"`
	PreviousCode *string        `json:"codigo_anterior,omitempty"`
	Motive       string         `json:"motivo"`
	DoctorID     uuid.UUID      `json:"medico_id"`
	Doctor       string         `json:"medico,omitempty"`
	Status       string         `json:"status"`
	Version      int64          `json:"version"`
	TrashedAt    *time.Time     `json:"trashed_at,omitempty"`
	TrashedBy    *uuid.UUID     `json:"trashed_by,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	History      []TurnResponse `json:"historial,omitempty"`
}

type TicketListResponse struct {
	Tickets []TicketResponse `json:"pacientes"`
	Total   int              `json:"total"`
}

type DeleteTicketResponse struct {
	ID      uuid.UUID `json:"id"`
	Deleted bool      `json:"deleted"`
}

type PurgeFailure struct {
	ID    uuid.UUID `json:"id"`
	Error string    `json:"error"`
}

type PurgeAllResponse struct {
	Purged []uuid.UUID    `json:"purged"`
	Failed []PurgeFailure `json:"failed"`
}
