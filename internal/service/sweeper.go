package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

const sweepTimeout = 30 * time.Second

// SweepJob is a periodic cleanup that reports how many rows it touched
type SweepJob struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) (int64, error)
}

// Sweeper runs each job on its own ticker until stopped
type Sweeper struct {
	log  *logrus.Logger
	jobs []SweepJob

	stopChan chan struct{}
	wg       sync.WaitGroup
	started  atomic.Bool
	stopped  atomic.Bool
}

func NewSweeper(log *logrus.Logger, jobs ...SweepJob) *Sweeper {
	return &Sweeper{
		log:      log,
		jobs:     jobs,
		stopChan: make(chan struct{}),
	}
}

func (s *Sweeper) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	for _, job := range s.jobs {
		if job.Interval <= 0 {
			s.log.Warnf("Sweep job %s has no interval, not scheduled", job.Name)
			continue
		}
		s.wg.Add(1)
		go s.loop(job)
	}
}

// Stop waits for running jobs to return. Safe to call multiple times.
func (s *Sweeper) Stop() {
	if s.stopped.CompareAndSwap(false, true) {
		close(s.stopChan)
		s.wg.Wait()
		s.log.Info("Sweeper stopped")
	}
}

func (s *Sweeper) loop(job SweepJob) {
	defer s.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.runOnce(job)
		}
	}
}

func (s *Sweeper) runOnce(job SweepJob) {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	n, err := job.Run(ctx)
	if err != nil {
		s.log.Warnf("Failed sweep job %s: %+v", job.Name, err)
		return
	}
	if n > 0 {
		s.log.WithFields(logrus.Fields{"job": job.Name, "rows": n}).Info("Sweep job completed")
	}
}
