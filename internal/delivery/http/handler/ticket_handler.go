package handler

import (
	"bytes"
	"net/http"
	"strconv"

	"clinic-queue/internal/delivery/dto"
	"clinic-queue/internal/usecase"
	"clinic-queue/pkg/response"
	"clinic-queue/pkg/validator"

	"github.com/gorilla/mux"
)

type TicketHandler struct {
	ticketUsecase usecase.TicketUsecase
	validator     *validator.CustomValidator
}

func NewTicketHandler(ticketUsecase usecase.TicketUsecase, validator *validator.CustomValidator) *TicketHandler {
	return &TicketHandler{
		ticketUsecase: ticketUsecase,
		validator:     validator,
	}
}

// RegisterTicket registers a patient with a doctor, or reissues the code of
// a patient who is already waiting.
func (h *TicketHandler) RegisterTicket(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterTicketRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	ticket, err := h.ticketUsecase.RegisterTicket(r.Context(), &req)
	if err != nil {
		response.FromError(w, err, "Failed to register patient")
		return
	}

	status, message := http.StatusCreated, "Patient registered successfully"
	if ticket.PreviousCode != nil {
		status, message = http.StatusOK, "Turn code reissued successfully"
	}
	response.Success(w, status, message, ticket)
}

// ListActive returns the board: active tickets grouped by doctor
func (h *TicketHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	board, err := h.ticketUsecase.ListActiveByDoctor(r.Context())
	if err != nil {
		response.FromError(w, err, "Failed to get patients")
		return
	}

	response.Success(w, http.StatusOK, "Patients retrieved successfully", board)
}

func (h *TicketHandler) FindByCode(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.ticketUsecase.FindByCode(r.Context(), mux.Vars(r)["codigo"])
	if err != nil {
		if err == usecase.ErrTicketNotFound {
			response.NotFound(w, "Patient not found")
			return
		}
		response.FromError(w, err, "Failed to find patient")
		return
	}

	response.Success(w, http.StatusOK, "Patient retrieved successfully", ticket)
}

func (h *TicketHandler) GetTicket(w http.ResponseWriter, r *http.Request) {
	ticketID, ok := pathID(w, r, "patient")
	if !ok {
		return
	}

	ticket, err := h.ticketUsecase.GetTicket(r.Context(), ticketID)
	if err != nil {
		response.FromError(w, err, "Failed to get patient")
		return
	}

	response.Success(w, http.StatusOK, "Patient retrieved successfully", ticket)
}

// PermanentlyDelete succeeds for unknown or already deleted tickets with deleted=false
func (h *TicketHandler) PermanentlyDelete(w http.ResponseWriter, r *http.Request) {
	ticketID, ok := pathID(w, r, "patient")
	if !ok {
		return
	}

	result, err := h.ticketUsecase.PermanentlyDelete(r.Context(), ticketID)
	if err != nil {
		response.FromError(w, err, "Failed to delete patient")
		return
	}

	message := "Patient deleted successfully"
	if !result.Deleted {
		message = "Patient was already deleted"
	}
	response.Success(w, http.StatusOK, message, result)
}

// Slip renders the printable turn slip as PDF
func (h *TicketHandler) Slip(w http.ResponseWriter, r *http.Request) {
	ticketID, ok := pathID(w, r, "patient")
	if !ok {
		return
	}

	// Render fully before writing so errors still get a JSON response
	var buf bytes.Buffer
	if err := h.ticketUsecase.RenderSlip(r.Context(), ticketID, &buf); err != nil {
		response.FromError(w, err, "Failed to render ticket")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="ticket-`+ticketID.String()+`.pdf"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}
