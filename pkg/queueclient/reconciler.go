package queueclient

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"clinic-queue/internal/delivery/dto"

	"github.com/sirupsen/logrus"
)

const (
	DefaultPollInterval = 15 * time.Second
	DefaultMaxFailures  = 5
)

// ErrPersistentFailure is passed to the reset hook after too many consecutive failed polls
var ErrPersistentFailure = errors.New("board refresh keeps failing")

type BoardSource interface {
	ListActive(ctx context.Context) (*dto.BoardResponse, error)
}

type ReconcilerConfig struct {
	Interval    time.Duration
	MaxFailures int
	// OnChange receives codes replaced since the previous snapshot
	OnChange func([]CodeChange)
	// OnReset fires once every MaxFailures consecutive failures; dashboards re-authenticate or reload here
	OnReset func(error)
}

// Reconciler polls the board on a fixed interval and on demand.
// It is the safety net for events the realtime channel missed.
type Reconciler struct {
	source   BoardSource
	board    *Board
	cfg      ReconcilerConfig
	log      *logrus.Logger
	refresh  chan struct{}
	failures atomic.Int32
}

func NewReconciler(source BoardSource, board *Board, cfg ReconcilerConfig, log *logrus.Logger) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = DefaultMaxFailures
	}
	return &Reconciler{
		source:  source,
		board:   board,
		cfg:     cfg,
		log:     log,
		refresh: make(chan struct{}, 1),
	}
}

// Refresh asks Run for an immediate poll. Requests coalesce while one is pending.
func (r *Reconciler) Refresh() {
	select {
	case r.refresh <- struct{}{}:
	default:
	}
}

// Failures is the current count of consecutive failed polls
func (r *Reconciler) Failures() int {
	return int(r.failures.Load())
}

// Sync fetches one snapshot into the board
func (r *Reconciler) Sync(ctx context.Context) error {
	snapshot, err := r.source.ListActive(ctx)
	if err != nil {
		n := r.failures.Add(1)
		r.log.WithField("consecutive_failures", n).Debugf("Board refresh failed: %v", err)
		if int(n) >= r.cfg.MaxFailures {
			r.failures.Store(0)
			r.log.Warnf("Board refresh failed %d times in a row: %+v", n, err)
			if r.cfg.OnReset != nil {
				r.cfg.OnReset(fmt.Errorf("%w: %w", ErrPersistentFailure, err))
			}
		}
		return err
	}

	r.failures.Store(0)
	if changes := r.board.Replace(snapshot); len(changes) > 0 && r.cfg.OnChange != nil {
		r.cfg.OnChange(changes)
	}
	return nil
}

// Run polls until ctx is done. Isolated failures are swallowed.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		_ = r.Sync(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-r.refresh:
		}
	}
}
