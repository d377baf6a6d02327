package queueclient

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"clinic-queue/internal/delivery/dto"
	"clinic-queue/internal/domain/entity"
	"clinic-queue/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedDevice struct {
	mu       sync.Mutex
	init     string
	statuses []string
	errs     map[int]error
	polls    int
}

func (d *scriptedDevice) InitDevice(ctx context.Context, fingerprint string) (*dto.DeviceStatusResponse, error) {
	return &dto.DeviceStatusResponse{Status: d.init, Screen: &dto.ScreenResponse{Number: 1}}, nil
}

func (d *scriptedDevice) DeviceStatus(ctx context.Context, fingerprint string) (*dto.DeviceStatusResponse, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.polls
	d.polls++
	if err := d.errs[i]; err != nil {
		return nil, err
	}
	if i >= len(d.statuses) {
		i = len(d.statuses) - 1
	}
	return &dto.DeviceStatusResponse{Status: d.statuses[i]}, nil
}

func TestScreenWatcherTransitions(t *testing.T) {
	tests := []struct {
		name        string
		init        string
		statuses    []string
		wantStates  []entity.ScreenState
		wantUnlinks []bool
	}{
		{
			name:        "pending then linked",
			init:        "pendiente",
			statuses:    []string{"pendiente", "vinculada", "vinculada"},
			wantStates:  []entity.ScreenState{"pendiente", "vinculada", "vinculada"},
			wantUnlinks: []bool{false, false, false},
		},
		{
			name:        "unlink needs confirmation",
			init:        "vinculada",
			statuses:    []string{"desvinculada", "vinculada", "desvinculada", "desvinculada"},
			wantStates:  []entity.ScreenState{"vinculada", "vinculada", "vinculada", "desvinculada"},
			wantUnlinks: []bool{false, false, false, true},
		},
		{
			name:        "linked screen seen pending stays linked",
			init:        "vinculada",
			statuses:    []string{"pendiente", "vinculada"},
			wantStates:  []entity.ScreenState{"vinculada", "vinculada"},
			wantUnlinks: []bool{false, false},
		},
		{
			name:        "released pending reservation",
			init:        "pendiente",
			statuses:    []string{"desvinculada", "desvinculada"},
			wantStates:  []entity.ScreenState{"pendiente", "desvinculada"},
			wantUnlinks: []bool{false, true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			device := &scriptedDevice{init: tt.init, statuses: tt.statuses}
			w := NewScreenWatcher(device, "tv-lobby-0001", ScreenWatcherConfig{}, testutil.NewLogger())
			init, err := device.InitDevice(context.Background(), "tv-lobby-0001")
			require.NoError(t, err)
			require.False(t, w.observe(init))

			for i := range tt.statuses {
				unlinked := w.Tick(context.Background())
				assert.Equal(t, tt.wantUnlinks[i], unlinked, "tick %d", i)
				assert.Equal(t, tt.wantStates[i], w.State(), "tick %d", i)
			}
		})
	}
}

func TestScreenWatcherCallbacksAndFailures(t *testing.T) {
	boom := errors.New("timeout")
	device := &scriptedDevice{
		init:     "pendiente",
		statuses: []string{"pendiente", "pendiente", "pendiente", "pendiente", "pendiente", "pendiente", "vinculada"},
		errs:     map[int]error{0: boom, 1: boom, 2: boom, 3: boom, 4: boom},
	}

	var pending, linked, resets int
	w := NewScreenWatcher(device, "tv-lobby-0001", ScreenWatcherConfig{
		OnPending: func(*dto.ScreenResponse) { pending++ },
		OnLinked:  func(*dto.ScreenResponse) { linked++ },
		OnReset:   func(error) { resets++ },
	}, testutil.NewLogger())

	require.False(t, w.observe(&dto.DeviceStatusResponse{Status: "pendiente"}))
	for i := 0; i < 7; i++ {
		assert.False(t, w.Tick(context.Background()))
	}

	assert.Equal(t, 1, pending)
	assert.Equal(t, 1, linked)
	assert.Equal(t, 1, resets)
	assert.Equal(t, entity.ScreenStateLinked, w.State())
}

func TestScreenWatcherRunReturnsOnUnlink(t *testing.T) {
	device := &scriptedDevice{init: "vinculada", statuses: []string{"desvinculada"}}
	unlinked := false
	w := NewScreenWatcher(device, "tv-lobby-0001", ScreenWatcherConfig{
		PendingInterval: time.Millisecond,
		LinkedInterval:  time.Millisecond,
		OnUnlinked:      func() { unlinked = true },
	}, testutil.NewLogger())

	err := w.Run(context.Background())
	assert.ErrorIs(t, err, ErrUnlinked)
	assert.True(t, unlinked)
}
