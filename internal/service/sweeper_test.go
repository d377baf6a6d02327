package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"clinic-queue/internal/testutil"

	"github.com/stretchr/testify/assert"
)

func TestSweeperRunsJobsUntilStopped(t *testing.T) {
	var ok, failing atomic.Int32
	sweeper := NewSweeper(testutil.NewLogger(),
		SweepJob{Name: "ok", Interval: 5 * time.Millisecond, Run: func(ctx context.Context) (int64, error) {
			ok.Add(1)
			return 1, nil
		}},
		SweepJob{Name: "failing", Interval: 5 * time.Millisecond, Run: func(ctx context.Context) (int64, error) {
			failing.Add(1)
			return 0, errors.New("db down")
		}},
		SweepJob{Name: "disabled", Run: func(ctx context.Context) (int64, error) {
			t.Error("job without interval must not run")
			return 0, nil
		}},
	)

	sweeper.Start()
	assert.Eventually(t, func() bool { return ok.Load() >= 2 && failing.Load() >= 2 }, time.Second, 5*time.Millisecond)
	sweeper.Stop()
	sweeper.Stop()

	after := ok.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, ok.Load())
}
