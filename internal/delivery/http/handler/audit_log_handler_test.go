package handler

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAuditQuery(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
		since   time.Time
		limit   int
	}{
		{name: "empty", raw: ""},
		{name: "date only", raw: "desde=2026-10-01&limit=50", since: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), limit: 50},
		{name: "rfc3339", raw: "desde=2026-10-01T08:30:00Z", since: time.Date(2026, 10, 1, 8, 30, 0, 0, time.UTC)},
		{name: "bad date", raw: "desde=ayer", wantErr: true},
		{name: "bad limit", raw: "limit=muchos", wantErr: true},
		{name: "negative limit", raw: "limit=-1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := url.ParseQuery(tt.raw)
			require.NoError(t, err)

			query, err := parseAuditQuery(values)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.limit, query.Limit)
			if tt.since.IsZero() {
				assert.Nil(t, query.Since)
			} else {
				require.NotNil(t, query.Since)
				assert.True(t, tt.since.Equal(*query.Since))
			}
		})
	}
}

func TestParseAuditQueryCopiesFilters(t *testing.T) {
	values := url.Values{"accion": {"ticket."}, "entidad": {"ticket"}, "entidad_id": {"abc"}}
	query, err := parseAuditQuery(values)
	require.NoError(t, err)
	assert.Equal(t, "ticket.", query.Action)
	assert.Equal(t, "ticket", query.Entity)
	assert.Equal(t, "abc", query.EntityID)
}
