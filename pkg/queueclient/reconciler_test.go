package queueclient

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"clinic-queue/internal/delivery/dto"
	"clinic-queue/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedSource struct {
	mu     sync.Mutex
	calls  int
	script []func() (*dto.BoardResponse, error)
}

func (s *scriptedSource) ListActive(ctx context.Context) (*dto.BoardResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i >= len(s.script) {
		i = len(s.script) - 1
	}
	return s.script[i]()
}

func (s *scriptedSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func failing() (*dto.BoardResponse, error) { return nil, errors.New("connection refused") }

func TestSyncResetsAfterConsecutiveFailures(t *testing.T) {
	doctorID := uuid.New()
	ok := func() (*dto.BoardResponse, error) { return snapshotOf(doctorID), nil }
	source := &scriptedSource{script: []func() (*dto.BoardResponse, error){
		failing, failing, failing, failing, ok, failing, failing, failing, failing, failing,
	}}

	var resets []error
	r := NewReconciler(source, NewBoard(), ReconcilerConfig{OnReset: func(err error) { resets = append(resets, err) }}, testutil.NewLogger())
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		assert.Error(t, r.Sync(ctx))
	}
	assert.Equal(t, 4, r.Failures())
	assert.Empty(t, resets)

	require.NoError(t, r.Sync(ctx))
	assert.Equal(t, 0, r.Failures(), "a success clears the streak")

	for i := 0; i < 5; i++ {
		assert.Error(t, r.Sync(ctx))
	}
	require.Len(t, resets, 1)
	assert.ErrorIs(t, resets[0], ErrPersistentFailure)
	assert.Equal(t, 0, r.Failures())
}

func TestSyncReportsChanges(t *testing.T) {
	doctorID, ticketID := uuid.New(), uuid.New()
	source := &scriptedSource{script: []func() (*dto.BoardResponse, error){
		func() (*dto.BoardResponse, error) {
			return snapshotOf(doctorID, dto.BoardPatientResponse{ID: ticketID, Code: "A-C-001", Version: 1}), nil
		},
		func() (*dto.BoardResponse, error) {
			return snapshotOf(doctorID, dto.BoardPatientResponse{ID: ticketID, Code: "A-C-005", Version: 2}), nil
		},
	}}

	var got []CodeChange
	board := NewBoard()
	r := NewReconciler(source, board, ReconcilerConfig{OnChange: func(c []CodeChange) { got = append(got, c...) }}, testutil.NewLogger())

	require.NoError(t, r.Sync(context.Background()))
	require.NoError(t, r.Sync(context.Background()))
	require.Len(t, got, 1)
	assert.Equal(t, "A-C-005", got[0].Current)
}

func TestRunPollsOnIntervalAndRefresh(t *testing.T) {
	doctorID := uuid.New()
	source := &scriptedSource{script: []func() (*dto.BoardResponse, error){
		func() (*dto.BoardResponse, error) { return snapshotOf(doctorID), nil },
	}}
	r := NewReconciler(source, NewBoard(), ReconcilerConfig{Interval: time.Hour}, testutil.NewLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return source.Calls() == 1 }, time.Second, 5*time.Millisecond)
	r.Refresh()
	require.Eventually(t, func() bool { return source.Calls() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestDefaults(t *testing.T) {
	r := NewReconciler(&scriptedSource{}, NewBoard(), ReconcilerConfig{}, testutil.NewLogger())
	assert.Equal(t, 15*time.Second, r.cfg.Interval)
	assert.Equal(t, 5, r.cfg.MaxFailures)

	c := New(Config{BaseURL: "http://localhost:8080/"}, testutil.NewLogger())
	assert.Equal(t, 10*time.Second, c.Timeout())
	assert.Equal(t, "http://localhost:8080", c.BaseURL())
}
