package realtime

import (
	"encoding/json"
	"io"
	"testing"

	"clinic-queue/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub() *Hub {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewHub(log)
}

func joined(t *testing.T, h *Hub, role string, rooms ...Room) *Client {
	t.Helper()
	client := NewClient(uuid.New(), role, 8)
	h.Register(client)
	for _, room := range rooms {
		require.NoError(t, h.Join(client, room))
	}
	return client
}

func drain(c *Client) []Event {
	var out []Event
	for {
		select {
		case msg := <-c.Send:
			var e Event
			_ = json.Unmarshal(msg, &e)
			out = append(out, e)
		default:
			return out
		}
	}
}

func TestBroadcastRoutesByRoom(t *testing.T) {
	h := newTestHub()
	reception := joined(t, h, entity.RoleReception, RoomReception)
	registry := joined(t, h, entity.RoleRegistry, RoomRegistry)
	idle := joined(t, h, entity.RoleAdmin)

	ticket := uuid.New()
	h.Broadcast(Event{Event: EventNewCode, Type: entity.RegistrationNew, TicketID: ticket, Version: 1, Code: "A-C-001"})
	h.Broadcast(Event{Event: EventTrashed, TicketID: ticket, Version: 2, Code: "A-C-001"})

	got := drain(reception)
	require.Len(t, got, 2)
	assert.Equal(t, EventNewCode, got[0].Event)
	assert.Equal(t, EventTrashed, got[1].Event)

	got = drain(registry)
	require.Len(t, got, 1)
	assert.Equal(t, EventNewCode, got[0].Event)

	assert.Empty(t, drain(idle))
}

func TestBroadcastDropsStaleVersions(t *testing.T) {
	h := newTestHub()
	c := joined(t, h, entity.RoleAdmin, RoomReception)
	ticket := uuid.New()

	h.Broadcast(Event{Event: EventNewCode, TicketID: ticket, Version: 3, Code: "A-C-003"})
	h.Broadcast(Event{Event: EventNewCode, TicketID: ticket, Version: 2, Code: "A-C-002"})
	h.Broadcast(Event{Event: EventNewCode, TicketID: ticket, Version: 3, Code: "A-C-003"})
	h.Broadcast(Event{Event: EventNewCode, TicketID: uuid.New(), Version: 1, Code: "B-C-001"})

	got := drain(c)
	require.Len(t, got, 2)
	assert.Equal(t, "A-C-003", got[0].Code)
	assert.Equal(t, "B-C-001", got[1].Code)
}

func TestBroadcastDropsWhenBufferFull(t *testing.T) {
	h := newTestHub()
	c := NewClient(uuid.New(), entity.RoleAdmin, 1)
	h.Register(c)
	require.NoError(t, h.Join(c, RoomReception))

	ticket := uuid.New()
	h.Broadcast(Event{Event: EventNewCode, TicketID: ticket, Version: 1})
	h.Broadcast(Event{Event: EventNewCode, TicketID: ticket, Version: 2})

	got := drain(c)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].Version)

	h.Broadcast(Event{Event: EventNewCode, TicketID: ticket, Version: 2})
	got = drain(c)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].Version)
}

func TestJoinEnforcesRoles(t *testing.T) {
	h := newTestHub()
	c := NewClient(uuid.New(), entity.RoleRegistry, 1)
	h.Register(c)

	assert.ErrorIs(t, h.Join(c, RoomReception), ErrRoomForbidden)
	assert.ErrorIs(t, h.Join(c, Room("lobby")), ErrUnknownRoom)
	assert.NoError(t, h.Join(c, RoomRegistry))
}

func TestHandleControl(t *testing.T) {
	h := newTestHub()
	c := NewClient(uuid.New(), entity.RoleReception, 4)
	h.Register(c)

	var ackMsg map[string]interface{}
	require.NoError(t, json.Unmarshal(h.HandleControl(c, []byte(`{"action":"join","room":"recepcion"}`)), &ackMsg))
	assert.Equal(t, "joined", ackMsg["event"])
	assert.True(t, c.rooms[RoomReception])

	require.NoError(t, json.Unmarshal(h.HandleControl(c, []byte(`{"action":"leave","room":"recepcion"}`)), &ackMsg))
	assert.Equal(t, "left", ackMsg["event"])
	assert.False(t, c.rooms[RoomReception])

	require.NoError(t, json.Unmarshal(h.HandleControl(c, []byte(`not json`)), &ackMsg))
	assert.Equal(t, "error", ackMsg["event"])
}

func TestUnregisterIsIdempotent(t *testing.T) {
	h := newTestHub()
	c := NewClient(uuid.New(), entity.RoleAdmin, 1)
	h.Register(c)
	assert.Equal(t, 1, h.Count())

	h.Unregister(c)
	h.Unregister(c)
	assert.Equal(t, 0, h.Count())
}
