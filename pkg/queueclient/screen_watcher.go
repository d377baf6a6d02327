package queueclient

import (
	"context"
	"errors"
	"time"

	"clinic-queue/internal/delivery/dto"
	"clinic-queue/internal/domain/entity"

	"github.com/sirupsen/logrus"
)

const (
	DefaultPendingInterval = 3 * time.Second
	DefaultLinkedInterval  = 10 * time.Second
)

// ErrUnlinked is returned by ScreenWatcher.Run once the server confirms the device lost its screen
var ErrUnlinked = errors.New("screen was unlinked")

type DeviceAPI interface {
	InitDevice(ctx context.Context, fingerprint string) (*dto.DeviceStatusResponse, error)
	DeviceStatus(ctx context.Context, fingerprint string) (*dto.DeviceStatusResponse, error)
}

type ScreenWatcherConfig struct {
	PendingInterval time.Duration
	LinkedInterval  time.Duration
	MaxFailures     int
	OnPending       func(*dto.ScreenResponse)
	OnLinked        func(*dto.ScreenResponse)
	// OnUnlinked fires before Run returns ErrUnlinked; the device re-fingerprints here
	OnUnlinked func()
	OnReset    func(error)
}

// ScreenWatcher runs the display device side of pairing: init once, then poll status.
// An unlinked answer is acted on only when the next poll repeats it, so a
// cancel racing a poll does not raise a false alarm.
type ScreenWatcher struct {
	api         DeviceAPI
	fingerprint string
	cfg         ScreenWatcherConfig
	log         *logrus.Logger

	state       entity.ScreenState
	unlinkedHit bool
	failures    int
}

func NewScreenWatcher(api DeviceAPI, fingerprint string, cfg ScreenWatcherConfig, log *logrus.Logger) *ScreenWatcher {
	if cfg.PendingInterval <= 0 {
		cfg.PendingInterval = DefaultPendingInterval
	}
	if cfg.LinkedInterval <= 0 {
		cfg.LinkedInterval = DefaultLinkedInterval
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = DefaultMaxFailures
	}
	return &ScreenWatcher{api: api, fingerprint: fingerprint, cfg: cfg, log: log}
}

func (w *ScreenWatcher) State() entity.ScreenState {
	return w.state
}

// Run blocks until ctx is done or the screen is unlinked
func (w *ScreenWatcher) Run(ctx context.Context) error {
	status, err := w.api.InitDevice(ctx, w.fingerprint)
	if err != nil {
		return err
	}
	if done := w.observe(status); done {
		return ErrUnlinked
	}

	for {
		interval := w.cfg.PendingInterval
		if w.state == entity.ScreenStateLinked {
			interval = w.cfg.LinkedInterval
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}

		if done := w.Tick(ctx); done {
			return ErrUnlinked
		}
	}
}

// Tick performs one status poll and reports whether the device is now unlinked
func (w *ScreenWatcher) Tick(ctx context.Context) bool {
	status, err := w.api.DeviceStatus(ctx, w.fingerprint)
	if err != nil {
		w.failures++
		w.log.Debugf("Screen status poll failed: %v", err)
		if w.failures >= w.cfg.MaxFailures {
			w.failures = 0
			if w.cfg.OnReset != nil {
				w.cfg.OnReset(err)
			}
		}
		return false
	}
	w.failures = 0
	return w.observe(status)
}

func (w *ScreenWatcher) observe(status *dto.DeviceStatusResponse) bool {
	next := entity.ScreenState(status.Status)

	if next == entity.ScreenStateUnlinked {
		if !w.unlinkedHit {
			w.unlinkedHit = true
			return false
		}
		w.state = next
		if w.cfg.OnUnlinked != nil {
			w.cfg.OnUnlinked()
		}
		return true
	}
	w.unlinkedHit = false

	switch next {
	case entity.ScreenStatePending:
		if w.state != entity.ScreenStatePending && w.state != entity.ScreenStateLinked && w.cfg.OnPending != nil {
			w.cfg.OnPending(status.Screen)
		}
		// A linked screen briefly seen as pending keeps its state until the server settles
		if w.state != entity.ScreenStateLinked {
			w.state = next
		}
	case entity.ScreenStateLinked:
		if w.state != entity.ScreenStateLinked && w.cfg.OnLinked != nil {
			w.cfg.OnLinked(status.Screen)
		}
		w.state = next
	}
	return false
}
