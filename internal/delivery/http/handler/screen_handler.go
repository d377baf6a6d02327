package handler

import (
	"net/http"

	"clinic-queue/internal/delivery/dto"
	"clinic-queue/internal/usecase"
	"clinic-queue/pkg/response"
	"clinic-queue/pkg/validator"
)

type ScreenHandler struct {
	screenUsecase usecase.ScreenUsecase
	validator     *validator.CustomValidator
}

func NewScreenHandler(screenUsecase usecase.ScreenUsecase, validator *validator.CustomValidator) *ScreenHandler {
	return &ScreenHandler{
		screenUsecase: screenUsecase,
		validator:     validator,
	}
}

// Device endpoints are public: the display identifies itself by fingerprint only

func (h *ScreenHandler) InitDevice(w http.ResponseWriter, r *http.Request) {
	var req dto.DeviceRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	status, err := h.screenUsecase.InitDevice(r.Context(), &req)
	if err != nil {
		response.FromError(w, err, "Failed to initialize screen")
		return
	}

	response.Success(w, http.StatusOK, "Screen initialized", status)
}

func (h *ScreenHandler) DeviceStatus(w http.ResponseWriter, r *http.Request) {
	var req dto.DeviceRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	status, err := h.screenUsecase.DeviceStatus(r.Context(), &req)
	if err != nil {
		response.FromError(w, err, "Failed to get screen status")
		return
	}

	response.Success(w, http.StatusOK, "Screen status retrieved", status)
}

func (h *ScreenHandler) DeviceBoard(w http.ResponseWriter, r *http.Request) {
	var req dto.DeviceRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	board, err := h.screenUsecase.DeviceBoard(r.Context(), &req)
	if err != nil {
		response.FromError(w, err, "Failed to get board")
		return
	}

	response.Success(w, http.StatusOK, "Board retrieved successfully", board)
}

func (h *ScreenHandler) GetAllScreens(w http.ResponseWriter, r *http.Request) {
	screens, err := h.screenUsecase.GetAllScreens(r.Context())
	if err != nil {
		response.FromError(w, err, "Failed to get screens")
		return
	}

	response.SuccessWithMeta(w, http.StatusOK, "Screens retrieved successfully", screens.Screens, &response.Meta{Total: int64(screens.Total)})
}

func (h *ScreenHandler) ConfirmPairing(w http.ResponseWriter, r *http.Request) {
	screenID, ok := pathID(w, r, "screen")
	if !ok {
		return
	}

	var req dto.ConfirmPairingRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	screen, err := h.screenUsecase.ConfirmPairing(r.Context(), screenID, &req)
	if err != nil {
		response.FromError(w, err, "Failed to link screen")
		return
	}

	response.Success(w, http.StatusOK, "Screen linked successfully", screen)
}

func (h *ScreenHandler) Unpair(w http.ResponseWriter, r *http.Request) {
	screenID, ok := pathID(w, r, "screen")
	if !ok {
		return
	}

	screen, err := h.screenUsecase.Unpair(r.Context(), screenID)
	if err != nil {
		response.FromError(w, err, "Failed to unlink screen")
		return
	}

	response.Success(w, http.StatusOK, "Screen unlinked successfully", screen)
}

func (h *ScreenHandler) AssignReceptionist(w http.ResponseWriter, r *http.Request) {
	screenID, ok := pathID(w, r, "screen")
	if !ok {
		return
	}

	var req dto.AssignReceptionistRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	screen, err := h.screenUsecase.AssignReceptionist(r.Context(), screenID, &req)
	if err != nil {
		response.FromError(w, err, "Failed to assign receptionist")
		return
	}

	response.Success(w, http.StatusOK, "Receptionist assigned successfully", screen)
}
