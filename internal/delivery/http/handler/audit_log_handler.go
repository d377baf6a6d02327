package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"clinic-queue/internal/delivery/dto"
	"clinic-queue/internal/usecase"
	"clinic-queue/pkg/response"

	"github.com/gorilla/mux"
)

type AuditLogHandler struct {
	auditLogUsecase usecase.AuditLogUsecase
}

func NewAuditLogHandler(auditLogUsecase usecase.AuditLogUsecase) *AuditLogHandler {
	return &AuditLogHandler{
		auditLogUsecase: auditLogUsecase,
	}
}

func (h *AuditLogHandler) GetAuditLog(w http.ResponseWriter, r *http.Request) {
	auditLogID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid audit log ID", nil)
		return
	}

	auditLog, err := h.auditLogUsecase.GetAuditLog(r.Context(), auditLogID)
	if err != nil {
		if errors.Is(err, usecase.ErrAuditLogNotFound) {
			response.NotFound(w, "Audit log not found")
			return
		}
		response.FromError(w, err, "Failed to get audit log")
		return
	}

	response.Success(w, http.StatusOK, "Audit log retrieved successfully", auditLog)
}

// SearchAuditLogs filters by ?accion= (prefix), ?entidad=, ?entidad_id=, ?desde= (date or RFC3339) and ?limit=
func (h *AuditLogHandler) SearchAuditLogs(w http.ResponseWriter, r *http.Request) {
	query, err := parseAuditQuery(r.URL.Query())
	if err != nil {
		response.Error(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	auditLogs, err := h.auditLogUsecase.SearchAuditLogs(r.Context(), query)
	if err != nil {
		response.FromError(w, err, "Failed to get audit logs")
		return
	}

	response.SuccessWithMeta(w, http.StatusOK, "Audit logs retrieved successfully", auditLogs.Logs,
		&response.Meta{Total: int64(auditLogs.Total), Limit: auditLogs.Limit})
}

func parseAuditQuery(values url.Values) (*dto.AuditLogQuery, error) {
	query := &dto.AuditLogQuery{
		Action:   values.Get("accion"),
		Entity:   values.Get("entidad"),
		EntityID: values.Get("entidad_id"),
	}

	if raw := values.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return nil, errors.New("invalid limit")
		}
		query.Limit = n
	}

	if raw := values.Get("desde"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			since, err = time.Parse(time.DateOnly, raw)
		}
		if err != nil {
			return nil, errors.New("invalid desde, expected YYYY-MM-DD or RFC3339")
		}
		query.Since = &since
	}

	return query, nil
}
