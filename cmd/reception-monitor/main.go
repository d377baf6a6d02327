// Command reception-monitor follows the live queue the way a reception dashboard does:
// a realtime subscription plus the reconciling poll, re-authenticating after persistent failures.
// With -screen it acts as a display device going through pairing instead.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clinic-queue/internal/delivery/dto"
	"clinic-queue/internal/realtime"
	"clinic-queue/pkg/queueclient"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "server base URL")
	username := flag.String("user", "recepcion", "staff username")
	password := flag.String("password", os.Getenv("MONITOR_PASSWORD"), "staff password")
	poll := flag.Duration("poll", queueclient.DefaultPollInterval, "reconciling poll interval")
	timeout := flag.Duration("timeout", queueclient.DefaultTimeout, "per request timeout")
	fingerprint := flag.String("screen", "", "run as a display device with this fingerprint")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := queueclient.New(queueclient.Config{BaseURL: *baseURL, Timeout: *timeout}, log)

	if *fingerprint != "" {
		if err := watchScreen(ctx, client, log, *fingerprint); err != nil {
			log.Fatalf("Screen watcher stopped: %v", err)
		}
		return
	}

	if *password == "" {
		log.Fatal("staff password is required (-password or MONITOR_PASSWORD)")
	}
	if _, err := client.Login(ctx, *username, *password); err != nil {
		log.Fatalf("Failed to login: %v", err)
	}
	logTrash(ctx, client, log)

	board := queueclient.NewBoard()
	reconciler := queueclient.NewReconciler(client, board, queueclient.ReconcilerConfig{
		Interval: *poll,
		OnChange: func(changes []queueclient.CodeChange) {
			for _, c := range changes {
				log.WithFields(logrus.Fields{"ticket_id": c.TicketID, "previous": c.Previous, "current": c.Current}).Info("Turn code replaced")
			}
		},
		OnReset: func(err error) {
			log.Warnf("Resetting session: %v", err)
			if _, err := client.Login(ctx, *username, *password); err != nil {
				log.Errorf("Failed to login again: %v", err)
			}
		},
	}, log)

	listener := queueclient.NewListener(client, board, reconciler, queueclient.ListenerConfig{
		Rooms: []realtime.Room{realtime.RoomReception},
		OnEvent: func(e realtime.Event, outcome queueclient.Outcome, _ *queueclient.CodeChange) {
			log.WithFields(logrus.Fields{
				"event":     e.Event,
				"tipo":      e.Type,
				"code":      e.Code,
				"version":   e.Version,
				"outcome":   outcome.String(),
				"on_board":  board.Len(),
				"ticket_id": e.TicketID,
			}).Info("Realtime event")
			if e.Event == realtime.EventTrashed || e.Event == realtime.EventRestored {
				logTrash(ctx, client, log)
			}
		},
	}, log)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return reconciler.Run(ctx) })
	g.Go(func() error { return listener.Run(ctx) })
	if err := g.Wait(); err != nil {
		log.Errorf("Monitor stopped: %v", err)
	}
}

// logTrash reports the shared trash; failures are logged and ignored
func logTrash(ctx context.Context, client *queueclient.Client, log *logrus.Logger) {
	trashed, err := client.ListTrash(ctx)
	if err != nil {
		log.Warnf("Failed to list trash: %v", err)
		return
	}
	codes := make([]string, 0, len(trashed))
	for _, t := range trashed {
		codes = append(codes, t.Code)
	}
	log.WithFields(logrus.Fields{"count": len(trashed), "codes": codes}).Info("Trash")
}

func watchScreen(ctx context.Context, client *queueclient.Client, log *logrus.Logger, fingerprint string) error {
	for {
		watcher := queueclient.NewScreenWatcher(client, fingerprint, queueclient.ScreenWatcherConfig{
			OnPending: func(screen *dto.ScreenResponse) {
				if screen != nil && screen.PairingCode != nil {
					log.WithFields(logrus.Fields{"pantalla": screen.Name, "codigo": *screen.PairingCode}).Info("Waiting for pairing")
				}
			},
			OnLinked: func(screen *dto.ScreenResponse) {
				if screen != nil {
					log.WithField("pantalla", screen.Name).Info("Screen linked")
				}
			},
			OnUnlinked: func() { log.Warn("Screen unlinked, starting over") },
		}, log)

		err := watcher.Run(ctx)
		if !errors.Is(err, queueclient.ErrUnlinked) {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Second):
		}
	}
}
