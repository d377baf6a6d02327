package queueclient

import (
	"sort"
	"sync"
	"time"

	"clinic-queue/internal/delivery/dto"
	"clinic-queue/internal/realtime"

	"github.com/google/uuid"
)

// Outcome reports what Board.Apply did with an event
type Outcome int

const (
	Applied Outcome = iota
	// Stale events carry a version the board has already seen for that ticket
	Stale
	// NeedsRefresh means the event references a doctor group the board has not loaded
	NeedsRefresh
	Ignored
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Stale:
		return "stale"
	case NeedsRefresh:
		return "needs_refresh"
	default:
		return "ignored"
	}
}

// CodeChange is a ticket whose active code was replaced between two observations
type CodeChange struct {
	TicketID uuid.UUID
	DoctorID uuid.UUID
	Previous string
	Current  string
}

type location struct {
	doctorID uuid.UUID
	code     string
}

// Board is the dashboard's local copy of the active queue.
// The server stays authoritative: Replace overwrites the board with a fetched snapshot
// and Apply folds pushed events in between polls.
type Board struct {
	mu          sync.RWMutex
	doctors     map[uuid.UUID]*dto.BoardDoctorResponse
	order       []uuid.UUID
	tickets     map[uuid.UUID]location
	versions    map[uuid.UUID]int64
	loaded      bool
	refreshedAt time.Time
}

func NewBoard() *Board {
	return &Board{
		doctors:  make(map[uuid.UUID]*dto.BoardDoctorResponse),
		tickets:  make(map[uuid.UUID]location),
		versions: make(map[uuid.UUID]int64),
	}
}

// Replace installs a fetched snapshot and returns the codes that changed since the previous one
func (b *Board) Replace(snapshot *dto.BoardResponse) []CodeChange {
	b.mu.Lock()
	defer b.mu.Unlock()

	previous := b.tickets
	b.doctors = make(map[uuid.UUID]*dto.BoardDoctorResponse, len(snapshot.Doctors))
	b.order = b.order[:0]
	b.tickets = make(map[uuid.UUID]location)

	var changes []CodeChange
	for _, doctor := range snapshot.Doctors {
		group := doctor
		group.Patients = append([]dto.BoardPatientResponse(nil), doctor.Patients...)
		b.doctors[doctor.ID] = &group
		b.order = append(b.order, doctor.ID)

		for _, p := range group.Patients {
			b.tickets[p.ID] = location{doctorID: doctor.ID, code: p.Code}
			if p.Version > b.versions[p.ID] {
				b.versions[p.ID] = p.Version
			}
			if old, ok := previous[p.ID]; ok && b.loaded && old.code != p.Code {
				changes = append(changes, CodeChange{TicketID: p.ID, DoctorID: doctor.ID, Previous: old.code, Current: p.Code})
			}
		}
	}

	b.loaded = true
	b.refreshedAt = snapshot.GeneratedAt
	return changes
}

// Apply folds one realtime event into the board
func (b *Board) Apply(event realtime.Event) (Outcome, *CodeChange) {
	if event.TicketID == uuid.Nil {
		return Ignored, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if event.Version <= b.versions[event.TicketID] {
		return Stale, nil
	}

	switch event.Event {
	case realtime.EventNewCode, realtime.EventRestored:
		group, ok := b.doctors[event.DoctorID]
		if !ok {
			return NeedsRefresh, nil
		}
		b.versions[event.TicketID] = event.Version

		var change *CodeChange
		if old, ok := b.tickets[event.TicketID]; ok {
			if old.code != event.Code {
				change = &CodeChange{TicketID: event.TicketID, DoctorID: event.DoctorID, Previous: old.code, Current: event.Code}
			}
			b.removeLocked(event.TicketID)
		}
		group.Patients = insertBySeq(group.Patients, patientFromEvent(event))
		b.tickets[event.TicketID] = location{doctorID: event.DoctorID, code: event.Code}
		return Applied, change

	case realtime.EventTrashed, realtime.EventDeleted:
		b.versions[event.TicketID] = event.Version
		b.removeLocked(event.TicketID)
		return Applied, nil
	}

	return Ignored, nil
}

func (b *Board) removeLocked(ticketID uuid.UUID) {
	loc, ok := b.tickets[ticketID]
	if !ok {
		return
	}
	delete(b.tickets, ticketID)

	group := b.doctors[loc.doctorID]
	if group == nil {
		return
	}
	for i, p := range group.Patients {
		if p.ID == ticketID {
			group.Patients = append(group.Patients[:i], group.Patients[i+1:]...)
			return
		}
	}
}

// insertBySeq keeps a doctor group ordered by code_seq then code, the order the server lists it in.
// Patients without a sequence go last.
func insertBySeq(patients []dto.BoardPatientResponse, p dto.BoardPatientResponse) []dto.BoardPatientResponse {
	if p.Seq <= 0 {
		return append(patients, p)
	}
	i := sort.Search(len(patients), func(i int) bool {
		q := patients[i]
		switch {
		case q.Seq <= 0 || q.Seq > p.Seq:
			return true
		case q.Seq < p.Seq:
			return false
		default:
			return q.Code > p.Code
		}
	})
	patients = append(patients, dto.BoardPatientResponse{})
	copy(patients[i+1:], patients[i:])
	patients[i] = p
	return patients
}

func patientFromEvent(event realtime.Event) dto.BoardPatientResponse {
	p := dto.BoardPatientResponse{
		ID:           event.TicketID,
		Code:         event.Code,
		Seq:          event.Seq,
		PreviousCode: event.PreviousCode,
		Version:      event.Version,
		CreatedAt:    event.EmittedAt,
	}
	if event.Patient != nil {
		p.Name = event.Patient.Name
		p.Motive = event.Patient.Motive
	}
	return p
}

// Snapshot returns a copy of the board in doctor order
func (b *Board) Snapshot() dto.BoardResponse {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := dto.BoardResponse{GeneratedAt: b.refreshedAt, Doctors: make([]dto.BoardDoctorResponse, 0, len(b.order))}
	for _, id := range b.order {
		group := *b.doctors[id]
		group.Patients = append([]dto.BoardPatientResponse(nil), group.Patients...)
		out.Doctors = append(out.Doctors, group)
	}
	return out
}

// Code returns the active code the board holds for a ticket
func (b *Board) Code(ticketID uuid.UUID) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	loc, ok := b.tickets[ticketID]
	return loc.code, ok
}

func (b *Board) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.tickets)
}

func (b *Board) Loaded() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.loaded
}
