package realtime

import (
	"net/http"

	"clinic-queue/config"

	"github.com/igm/sockjs-go/sockjs"
	"github.com/sirupsen/logrus"
)

// NewSockJSHandler serves the SockJS fallback transport under prefix
func NewSockJSHandler(prefix string, hub *Hub, auth Authenticator, cfg config.RealtimeConfig, log *logrus.Logger) http.Handler {
	return sockjs.NewHandler(prefix, sockjs.DefaultOptions, func(session sockjs.Session) {
		userID, role, err := auth.AuthenticateRequest(session.Request())
		if err != nil {
			_ = session.Close(4001, "unauthorized")
			return
		}

		client := NewClient(userID, role, cfg.SendBuffer)
		hub.Register(client)
		defer hub.Unregister(client)
		log.WithFields(logrus.Fields{"client": client.ID, "role": role, "transport": "sockjs"}).Info("Realtime client connected")

		go func() {
			for msg := range client.Send {
				if err := session.Send(string(msg)); err != nil {
					return
				}
			}
		}()

		for {
			msg, err := session.Recv()
			if err != nil {
				return
			}
			select {
			case client.Send <- hub.HandleControl(client, []byte(msg)):
			default:
			}
		}
	})
}
