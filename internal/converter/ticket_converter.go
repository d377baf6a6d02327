package converter

import (
	"clinic-queue/internal/delivery/dto"
	"clinic-queue/internal/domain/entity"
)

func TicketToPatientResponse(ticket *entity.Ticket) dto.TicketPatientResponse {
	resp := dto.TicketPatientResponse{
		ID:          ticket.ID,
		PatientCode: ticket.PatientCode,
		Name:        ticket.Name,
		DoctorID:    ticket.DoctorID,
		Motive:      ticket.Motive,
	}
	if ticket.Doctor != nil {
		resp.Doctor = ticket.Doctor.FullName
	}
	return resp
}

func TicketToBoardPatient(ticket *entity.Ticket) dto.BoardPatientResponse {
	return dto.BoardPatientResponse{
		ID:           ticket.ID,
		Name:         ticket.Name,
		Code:         ticket.Code,
		Seq:          ticket.CodeSeq,
		Motive:       ticket.Motive,
		PreviousCode: ticket.PreviousCode,
		Version:      ticket.Version,
		CreatedAt:    ticket.CreatedAt,
	}
}

// TicketToResponse includes the turn history when turns is non-empty
func TicketToResponse(ticket *entity.Ticket, turns []entity.Turn) *dto.TicketResponse {
	if ticket == nil {
		return nil
	}

	resp := &dto.TicketResponse{
		ID:           ticket.ID,
		Name:         ticket.Name,
		Code:         ticket.Code,
		PatientCode:  ticket.PatientCode,
		PreviousCode: ticket.PreviousCode,
		Motive:       ticket.Motive,
		DoctorID:     ticket.DoctorID,
		Status:       string(ticket.Status),
		Version:      ticket.Version,
		TrashedAt:    ticket.TrashedAt,
		TrashedBy:    ticket.TrashedBy,
		CreatedAt:    ticket.CreatedAt,
		UpdatedAt:    ticket.UpdatedAt,
	}
	if ticket.Doctor != nil {
		resp.Doctor = ticket.Doctor.FullName
	}
	for _, turn := range turns {
		resp.History = append(resp.History, dto.TurnResponse{
			Code:      turn.Code,
			Seq:       turn.Seq,
			Status:    string(turn.Status),
			CreatedAt: turn.CreatedAt,
		})
	}
	return resp
}

func TicketsToResponses(tickets []entity.Ticket) []dto.TicketResponse {
	responses := make([]dto.TicketResponse, len(tickets))
	for i := range tickets {
		responses[i] = *TicketToResponse(&tickets[i], nil)
	}
	return responses
}
