package queueclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"clinic-queue/internal/realtime"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultReadTimeout      = 60 * time.Second
	DefaultReconnectMin     = time.Second
	DefaultReconnectMax     = 30 * time.Second
	writeWait               = 10 * time.Second
)

type ListenerConfig struct {
	Rooms            []realtime.Room
	HandshakeTimeout time.Duration
	// ReadTimeout must exceed the server ping interval
	ReadTimeout  time.Duration
	ReconnectMin time.Duration
	ReconnectMax time.Duration
	// OnEvent observes every decoded event after it was applied to the board
	OnEvent func(realtime.Event, Outcome, *CodeChange)
}

// Listener keeps a WebSocket subscription open and folds events into the board.
// Every (re)connection and every event for an unknown doctor asks the reconciler for a poll.
type Listener struct {
	client     *Client
	board      *Board
	reconciler *Reconciler
	cfg        ListenerConfig
	log        *logrus.Logger
	dialer     *websocket.Dialer
}

type controlMessage struct {
	Action string        `json:"action"`
	Room   realtime.Room `json:"room"`
}

func NewListener(client *Client, board *Board, reconciler *Reconciler, cfg ListenerConfig, log *logrus.Logger) *Listener {
	if len(cfg.Rooms) == 0 {
		cfg.Rooms = []realtime.Room{realtime.RoomReception}
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = DefaultReconnectMin
	}
	if cfg.ReconnectMax < cfg.ReconnectMin {
		cfg.ReconnectMax = DefaultReconnectMax
	}
	return &Listener{
		client:     client,
		board:      board,
		reconciler: reconciler,
		cfg:        cfg,
		log:        log,
		dialer:     &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
	}
}

// Run reconnects with exponential backoff until ctx is done
func (l *Listener) Run(ctx context.Context) error {
	wait := l.cfg.ReconnectMin
	for {
		connected, err := l.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			wait = l.cfg.ReconnectMin
		}
		l.log.Warnf("Realtime connection lost, retrying in %s: %v", wait, err)
		l.reconciler.Refresh()

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
		if wait *= 2; wait > l.cfg.ReconnectMax {
			wait = l.cfg.ReconnectMax
		}
	}
}

func (l *Listener) endpoint() (string, error) {
	u, err := url.Parse(l.client.BaseURL())
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path += "/ws"
	return u.String(), nil
}

// session runs one connection and reports whether the handshake succeeded
func (l *Listener) session(ctx context.Context) (bool, error) {
	endpoint, err := l.endpoint()
	if err != nil {
		return false, err
	}

	header := http.Header{}
	if token := l.client.Token(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := l.dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			return false, fmt.Errorf("dial %s: %s: %w", endpoint, resp.Status, err)
		}
		return false, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			conn.Close()
		case <-done:
		}
	}()

	for _, room := range l.cfg.Rooms {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(controlMessage{Action: "join", Room: room}); err != nil {
			return true, fmt.Errorf("join %s: %w", room, err)
		}
	}

	_ = conn.SetReadDeadline(time.Now().Add(l.cfg.ReadTimeout))
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(l.cfg.ReadTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	// Events published while disconnected are gone; a poll catches up
	l.reconciler.Refresh()
	l.log.WithField("rooms", l.cfg.Rooms).Info("Realtime connection established")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		_ = conn.SetReadDeadline(time.Now().Add(l.cfg.ReadTimeout))
		l.handle(data)
	}
}

func (l *Listener) handle(data []byte) {
	var event realtime.Event
	if err := json.Unmarshal(data, &event); err != nil {
		l.log.Warnf("Failed to decode realtime message: %+v", err)
		return
	}

	switch event.Event {
	case "joined", "left":
		return
	case "error":
		l.log.Warnf("Realtime server rejected a control message: %s", data)
		return
	}

	outcome, change := l.board.Apply(event)
	if outcome == NeedsRefresh {
		l.reconciler.Refresh()
	}
	if l.cfg.OnEvent != nil {
		l.cfg.OnEvent(event, outcome, change)
	}
}
