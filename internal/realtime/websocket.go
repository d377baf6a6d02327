package realtime

import (
	"net/http"
	"time"

	"clinic-queue/config"
	"clinic-queue/pkg/response"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const maxControlMessageSize = 4096

// Authenticator resolves the staff identity behind a realtime handshake
type Authenticator interface {
	AuthenticateRequest(r *http.Request) (uuid.UUID, string, error)
}

type WebSocketHandler struct {
	hub      *Hub
	auth     Authenticator
	cfg      config.RealtimeConfig
	log      *logrus.Logger
	upgrader websocket.Upgrader
}

func NewWebSocketHandler(hub *Hub, auth Authenticator, cfg config.RealtimeConfig, allowedOrigins []string, log *logrus.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:  hub,
		auth: auth,
		cfg:  cfg,
		log:  log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, role, err := h.auth.AuthenticateRequest(r)
	if err != nil {
		response.Unauthorized(w, "Invalid or expired token")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnf("Failed to upgrade websocket: %+v", err)
		return
	}

	client := NewClient(userID, role, h.cfg.SendBuffer)
	h.hub.Register(client)
	h.log.WithFields(logrus.Fields{"client": client.ID, "role": role}).Info("Realtime client connected")

	go h.writePump(conn, client)
	h.readPump(conn, client)
}

func (h *WebSocketHandler) readPump(conn *websocket.Conn, client *Client) {
	defer func() {
		h.hub.Unregister(client)
		conn.Close()
		h.log.WithField("client", client.ID).Info("Realtime client disconnected")
	}()

	pongWait := h.cfg.PingInterval * 2
	conn.SetReadLimit(maxControlMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warnf("Realtime read error: %+v", err)
			}
			return
		}

		select {
		case client.Send <- h.hub.HandleControl(client, data):
		default:
		}
	}
}

func (h *WebSocketHandler) writePump(conn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.Send:
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}
