package realtime

import (
	"time"

	"clinic-queue/internal/domain/entity"

	"github.com/google/uuid"
)

type Room string

const (
	RoomReception Room = "recepcion"
	RoomRegistry  Room = "registro"
)

// Event names delivered to dashboards
const (
	EventNewCode  = "nuevo_codigo"
	EventTrashed  = "paciente_papelera"
	EventRestored = "paciente_restaurado"
	EventDeleted  = "paciente_eliminado"
)

type PatientPayload struct {
	ID          uuid.UUID `json:"id"`
	PatientCode string    `json:"codigo_paciente"`
	Name        string    `json:"nombre"`
	DoctorID    uuid.UUID `json:"medico_id"`
	Doctor      string    `json:"medico"`
	Motive      string    `json:"motivo"`
}

// Event is the envelope pushed to every subscribed connection
type Event struct {
	Event        string          `json:"event"`
	Type         string          `json:"tipo,omitempty"`
	TicketID     uuid.UUID       `json:"ticket_id"`
	DoctorID     uuid.UUID       `json:"doctor_id"`
	Version      int64           `json:"version"`
	Code         string          `json:"codigo_turno"`
	Seq          int64           `json:"code_seq"`
	PreviousCode *string         `json:"codigo_anterior,omitempty"`
	Patient      *PatientPayload `json:"paciente,omitempty"`
	EmittedAt    time.Time       `json:"emitted_at"`
}

// Rooms returns the rooms an event fans out to
func (e Event) Rooms() []Room {
	if e.Event == EventNewCode {
		return []Room{RoomReception, RoomRegistry}
	}
	return []Room{RoomReception}
}

// NewTicketEvent snapshots a committed ticket into an event
func NewTicketEvent(name string, ticket *entity.Ticket) Event {
	event := Event{
		Event:        name,
		TicketID:     ticket.ID,
		DoctorID:     ticket.DoctorID,
		Version:      ticket.Version,
		Code:         ticket.Code,
		Seq:          ticket.CodeSeq,
		PreviousCode: ticket.PreviousCode,
		EmittedAt:    time.Now().UTC(),
	}

	patient := &PatientPayload{
		ID:          ticket.ID,
		PatientCode: ticket.PatientCode,
		Name:        ticket.Name,
		DoctorID:    ticket.DoctorID,
		Motive:      ticket.Motive,
	}
	if ticket.Doctor != nil {
		patient.Doctor = ticket.Doctor.FullName
	}
	event.Patient = patient

	return event
}

// CanJoin reports whether a staff role may subscribe to room
func CanJoin(role string, room Room) bool {
	switch room {
	case RoomReception:
		return role == entity.RoleAdmin || role == entity.RoleReception
	case RoomRegistry:
		return role == entity.RoleAdmin || role == entity.RoleRegistry
	}
	return false
}
