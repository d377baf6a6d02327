package handler

import (
	"net/http"

	"clinic-queue/internal/usecase"
	"clinic-queue/pkg/response"
)

type TrashHandler struct {
	trashUsecase usecase.TrashUsecase
}

func NewTrashHandler(trashUsecase usecase.TrashUsecase) *TrashHandler {
	return &TrashHandler{
		trashUsecase: trashUsecase,
	}
}

func (h *TrashHandler) List(w http.ResponseWriter, r *http.Request) {
	trashed, err := h.trashUsecase.List(r.Context())
	if err != nil {
		response.FromError(w, err, "Failed to get trash")
		return
	}

	response.SuccessWithMeta(w, http.StatusOK, "Trash retrieved successfully", trashed.Tickets, &response.Meta{Total: int64(trashed.Total)})
}

func (h *TrashHandler) MoveToTrash(w http.ResponseWriter, r *http.Request) {
	ticketID, ok := pathID(w, r, "patient")
	if !ok {
		return
	}

	ticket, err := h.trashUsecase.MoveToTrash(r.Context(), ticketID)
	if err != nil {
		response.FromError(w, err, "Failed to move patient to trash")
		return
	}

	response.Success(w, http.StatusOK, "Patient moved to trash", ticket)
}

func (h *TrashHandler) Restore(w http.ResponseWriter, r *http.Request) {
	ticketID, ok := pathID(w, r, "patient")
	if !ok {
		return
	}

	ticket, err := h.trashUsecase.Restore(r.Context(), ticketID)
	if err != nil {
		response.FromError(w, err, "Failed to restore patient")
		return
	}

	response.Success(w, http.StatusOK, "Patient restored", ticket)
}

func (h *TrashHandler) Purge(w http.ResponseWriter, r *http.Request) {
	ticketID, ok := pathID(w, r, "patient")
	if !ok {
		return
	}

	result, err := h.trashUsecase.Purge(r.Context(), ticketID)
	if err != nil {
		response.FromError(w, err, "Failed to delete patient")
		return
	}

	response.Success(w, http.StatusOK, "Patient deleted successfully", result)
}

// PurgeAll reports per-ticket failures in the body; it only fails as a whole
// when the trash cannot be listed.
func (h *TrashHandler) PurgeAll(w http.ResponseWriter, r *http.Request) {
	result, err := h.trashUsecase.PurgeAll(r.Context())
	if err != nil {
		response.FromError(w, err, "Failed to empty trash")
		return
	}

	response.Success(w, http.StatusOK, "Trash emptied", result)
}
