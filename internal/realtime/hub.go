package realtime

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnknownRoom   = errors.New("unknown room")
	ErrRoomForbidden = errors.New("role cannot join room")
)

// Client is one realtime connection, regardless of transport
type Client struct {
	ID     string
	UserID uuid.UUID
	Role   string
	Send   chan []byte

	rooms       map[Room]bool
	lastVersion map[uuid.UUID]int64
}

func NewClient(userID uuid.UUID, role string, buffer int) *Client {
	if buffer <= 0 {
		buffer = 16
	}
	return &Client{
		ID:          uuid.NewString(),
		UserID:      userID,
		Role:        role,
		Send:        make(chan []byte, buffer),
		rooms:       make(map[Room]bool),
		lastVersion: make(map[uuid.UUID]int64),
	}
}

// Hub fans events out to the connections joined to each room.
// Per ticket, a connection only receives versions newer than the last one it was sent.
type Hub struct {
	mu      sync.Mutex
	clients map[string]*Client
	log     *logrus.Logger
}

func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		log:     log,
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	delete(h.clients, client.ID)
	close(client.Send)
}

func (h *Hub) Join(client *Client, room Room) error {
	if room != RoomReception && room != RoomRegistry {
		return ErrUnknownRoom
	}
	if !CanJoin(client.Role, room) {
		return ErrRoomForbidden
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	client.rooms[room] = true
	return nil
}

func (h *Hub) Leave(client *Client, room Room) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(client.rooms, room)
}

// Count returns the number of registered connections
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast delivers event to every client in one of its rooms.
// Slow clients with a full buffer lose the message.
func (h *Hub) Broadcast(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Warnf("Failed to encode realtime event: %+v", err)
		return
	}
	rooms := event.Rooms()

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		if !client.inAny(rooms) {
			continue
		}
		if event.Version <= client.lastVersion[event.TicketID] {
			h.log.WithFields(logrus.Fields{
				"client":  client.ID,
				"ticket":  event.TicketID,
				"version": event.Version,
			}).Debug("Skipping stale realtime event")
			continue
		}

		select {
		case client.Send <- payload:
			client.lastVersion[event.TicketID] = event.Version
		default:
			h.log.WithField("client", client.ID).Warn("Dropping realtime event for slow client")
		}
	}
}

func (c *Client) inAny(rooms []Room) bool {
	for _, room := range rooms {
		if c.rooms[room] {
			return true
		}
	}
	return false
}

// ControlMessage is sent by clients to join or leave a room
type ControlMessage struct {
	Action string `json:"action"`
	Room   Room   `json:"room"`
}

func ParseControl(data []byte) (ControlMessage, bool) {
	var msg ControlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ControlMessage{}, false
	}
	if msg.Action != "join" && msg.Action != "leave" {
		return ControlMessage{}, false
	}
	return msg, true
}

// HandleControl applies a join/leave message and returns the acknowledgement to send back
func (h *Hub) HandleControl(client *Client, data []byte) []byte {
	msg, ok := ParseControl(data)
	if !ok {
		return ack("error", "", "unsupported message")
	}

	if msg.Action == "leave" {
		h.Leave(client, msg.Room)
		return ack("left", msg.Room, "")
	}
	if err := h.Join(client, msg.Room); err != nil {
		return ack("error", msg.Room, err.Error())
	}
	return ack("joined", msg.Room, "")
}

func ack(status string, room Room, message string) []byte {
	out, _ := json.Marshal(map[string]interface{}{
		"event":   status,
		"room":    room,
		"message": message,
	})
	return out
}
