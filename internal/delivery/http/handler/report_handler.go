package handler

import (
	"bytes"
	"net/http"
	"strconv"

	"clinic-queue/internal/usecase"
	"clinic-queue/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ReportHandler struct {
	reportUsecase usecase.ReportUsecase
}

func NewReportHandler(reportUsecase usecase.ReportUsecase) *ReportHandler {
	return &ReportHandler{
		reportUsecase: reportUsecase,
	}
}

// DailyStats returns counters for ?fecha=YYYY-MM-DD, today when omitted
func (h *ReportHandler) DailyStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.reportUsecase.DailyStats(r.Context(), r.URL.Query().Get("fecha"))
	if err != nil {
		response.FromError(w, err, "Failed to compute statistics")
		return
	}

	response.Success(w, http.StatusOK, "Statistics retrieved successfully", stats)
}

func (h *ReportHandler) ExportDaily(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("fecha")

	var buf bytes.Buffer
	if err := h.reportUsecase.ExportDaily(r.Context(), date, &buf); err != nil {
		response.FromError(w, err, "Failed to export report")
		return
	}

	name := "turnos.xlsx"
	if date != "" {
		name = "turnos-" + date + ".xlsx"
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}
