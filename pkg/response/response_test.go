package response

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"clinic-queue/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
		retryAfter bool
	}{
		{"validation", apperror.Validation("motivo is invalid"), http.StatusBadRequest, "motivo is invalid", false},
		{"wrapped not found", fmt.Errorf("lookup: %w", apperror.NotFound("doctor not found")), http.StatusNotFound, "doctor not found", false},
		{"conflict", apperror.Conflict("no screens available"), http.StatusConflict, "no screens available", false},
		{"transient", apperror.Transient("store unavailable", errors.New("dial tcp")), http.StatusServiceUnavailable, "store unavailable", true},
		{"deadline", context.DeadlineExceeded, http.StatusServiceUnavailable, "fallback", true},
		{"internal hides cause", errors.New("pq: secret detail"), http.StatusInternalServerError, "fallback", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			FromError(rec, tt.err, "fallback")

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.Equal(t, tt.wantMsg, body.Message)
			if tt.retryAfter {
				assert.Equal(t, "2", rec.Header().Get("Retry-After"))
			} else {
				assert.Empty(t, rec.Header().Get("Retry-After"))
			}
		})
	}
}
