package converter

import (
	"clinic-queue/internal/delivery/dto"
	"clinic-queue/internal/domain/entity"
)

// ScreenToResponse hides the pairing code unless withCode is set;
// only the device itself displays it.
func ScreenToResponse(screen *entity.Screen, withCode bool) *dto.ScreenResponse {
	if screen == nil {
		return nil
	}

	resp := &dto.ScreenResponse{
		ID:             screen.ID,
		Number:         screen.Number,
		Name:           screen.Name,
		State:          string(screen.State),
		LinkedAt:       screen.LinkedAt,
		LastSeenAt:     screen.LastSeenAt,
		ReceptionistID: screen.ReceptionistID,
		Receptionist:   UserToResponse(screen.Receptionist),
	}
	if withCode {
		resp.PairingCode = screen.PairingCode
	}
	return resp
}

func ScreensToResponses(screens []entity.Screen) []dto.ScreenResponse {
	responses := make([]dto.ScreenResponse, len(screens))
	for i := range screens {
		responses[i] = *ScreenToResponse(&screens[i], false)
	}
	return responses
}
