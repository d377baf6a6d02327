package queueclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"clinic-queue/internal/realtime"
	"clinic-queue/internal/testutil"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type observed struct {
	event   realtime.Event
	outcome Outcome
}

func TestListenerAppliesEvents(t *testing.T) {
	doctorID, ticketID := uuid.New(), uuid.New()
	joins := make(chan controlMessage, 2)
	var authHeader string

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws" {
			http.NotFound(w, r)
			return
		}
		authHeader = r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var join controlMessage
		if err := conn.ReadJSON(&join); err != nil {
			return
		}
		joins <- join
		_ = conn.WriteJSON(map[string]interface{}{"event": "joined", "room": join.Room})
		_ = conn.WriteJSON(newCodeEvent(ticketID, doctorID, 1, "A-C-001", nil))
		_ = conn.WriteJSON(newCodeEvent(uuid.New(), uuid.New(), 1, "B-I-001", nil))

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL}, testutil.NewLogger())
	client.SetToken("tok-1")
	board := NewBoard()
	board.Replace(snapshotOf(doctorID))
	reconciler := NewReconciler(&scriptedSource{}, board, ReconcilerConfig{}, testutil.NewLogger())

	var mu sync.Mutex
	var seen []observed
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listener := NewListener(client, board, reconciler, ListenerConfig{
		OnEvent: func(e realtime.Event, o Outcome, _ *CodeChange) {
			mu.Lock()
			seen = append(seen, observed{event: e, outcome: o})
			mu.Unlock()
		},
	}, testutil.NewLogger())

	done := make(chan error, 1)
	go func() { done <- listener.Run(ctx) }()

	select {
	case join := <-joins:
		assert.Equal(t, "join", join.Action)
		assert.Equal(t, realtime.RoomReception, join.Room)
	case <-time.After(2 * time.Second):
		t.Fatal("no join message")
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, Applied, seen[0].outcome)
	assert.Equal(t, NeedsRefresh, seen[1].outcome)
	mu.Unlock()

	code, ok := board.Code(ticketID)
	require.True(t, ok)
	assert.Equal(t, "A-C-001", code)
	assert.Equal(t, "Bearer tok-1", authHeader)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop")
	}
}

func TestListenerEndpoint(t *testing.T) {
	tests := map[string]string{
		"http://localhost:8080":     "ws://localhost:8080/ws",
		"https://turnos.example":    "wss://turnos.example/ws",
		"https://turnos.example/qa": "wss://turnos.example/qa/ws",
	}
	for base, want := range tests {
		l := NewListener(New(Config{BaseURL: base}, testutil.NewLogger()), NewBoard(), nil, ListenerConfig{}, testutil.NewLogger())
		got, err := l.endpoint()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

var (
	_ BoardSource = (*Client)(nil)
	_ DeviceAPI   = (*Client)(nil)
)
