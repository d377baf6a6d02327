package handler

import (
	"context"
	"net/http"
	"time"

	"clinic-queue/pkg/response"

	"github.com/sirupsen/logrus"
)

const (
	healthOK       = "ok"
	healthDegraded = "degraded"
	healthError    = "error"
)

// PingFunc reports whether a dependency answers
type PingFunc func(ctx context.Context) error

type HealthHandler struct {
	log       *logrus.Logger
	pingDB    PingFunc
	pingRedis PingFunc
	timeout   time.Duration
}

func NewHealthHandler(log *logrus.Logger, pingDB, pingRedis PingFunc, timeout time.Duration) *HealthHandler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthHandler{
		log:       log,
		pingDB:    pingDB,
		pingRedis: pingRedis,
		timeout:   timeout,
	}
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	CheckedAt time.Time         `json:"checked_at"`
}

func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, HealthResponse{Status: healthOK, CheckedAt: time.Now().UTC()})
}

// Ready is "error" (503) without the database and "degraded" without Redis.
// Registration needs Redis, so a degraded instance still reports 503.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{"postgres": healthOK, "redis": healthOK}
	status := healthOK

	if err := h.pingRedis(ctx); err != nil {
		h.log.Warnf("Readiness: redis unavailable: %+v", err)
		checks["redis"] = healthError
		status = healthDegraded
	}
	if err := h.pingDB(ctx); err != nil {
		h.log.Warnf("Readiness: database unavailable: %+v", err)
		checks["postgres"] = healthError
		status = healthError
	}

	code := http.StatusOK
	if status != healthOK {
		code = http.StatusServiceUnavailable
	}
	response.JSON(w, code, HealthResponse{Status: status, Checks: checks, CheckedAt: time.Now().UTC()})
}
