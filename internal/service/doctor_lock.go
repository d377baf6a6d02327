package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"clinic-queue/config"
	"clinic-queue/pkg/apperror"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ErrLockNotAcquired is returned when a doctor's queue stays locked through every retry
var ErrLockNotAcquired = apperror.Conflict("doctor queue is busy, please retry")

const (
	lockKeyPrefix        = "lock:doctor:"
	mutexCleanupInterval = 10 * time.Minute
	mutexStaleThreshold  = 10 * time.Minute
)

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

// DoctorLocker serializes registrations for one doctor across all instances
type DoctorLocker interface {
	WithDoctorLock(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context) error) error
	Stop()
}

// redisDoctorLocker pairs an in-process mutex with a Redis SET NX lock.
// The local mutex keeps requests on the same instance from spinning on Redis.
type redisDoctorLocker struct {
	client    *redis.Client
	log       *logrus.Logger
	ttl       time.Duration
	retries   int
	retryWait time.Duration

	local sync.Map // map[uuid.UUID]*mutexWithTimestamp

	stopChan chan struct{}
	wg       sync.WaitGroup
	stopped  atomic.Bool
}

type mutexWithTimestamp struct {
	mu       sync.Mutex
	lastUsed atomic.Int64
}

func NewDoctorLocker(client *redis.Client, log *logrus.Logger, cfg config.QueueConfig) DoctorLocker {
	l := &redisDoctorLocker{
		client:    client,
		log:       log,
		ttl:       cfg.LockTTL,
		retries:   cfg.LockRetries,
		retryWait: cfg.LockRetryWait,
		stopChan:  make(chan struct{}),
	}
	if l.ttl <= 0 {
		l.ttl = 5 * time.Second
	}

	l.wg.Add(1)
	go l.cleanupLoop()

	return l
}

func (l *redisDoctorLocker) WithDoctorLock(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context) error) error {
	mt := l.localMutex(doctorID)
	mt.mu.Lock()
	defer mt.mu.Unlock()

	key := lockKeyPrefix + doctorID.String()
	token := uuid.NewString()

	if err := l.acquire(ctx, key, token); err != nil {
		return err
	}
	defer func() {
		if err := l.release(context.WithoutCancel(ctx), key, token); err != nil {
			l.log.Warnf("Failed to release doctor lock %s: %+v", doctorID, err)
		}
	}()

	lockCtx, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(lockCtx)
}

func (l *redisDoctorLocker) acquire(ctx context.Context, key, token string) error {
	for attempt := 0; ; attempt++ {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return apperror.Transient("queue lock unavailable", fmt.Errorf("acquire doctor lock: %w", err))
		}
		if ok {
			return nil
		}
		if attempt >= l.retries {
			return ErrLockNotAcquired
		}

		wait := l.retryWait * time.Duration(attempt+1)
		select {
		case <-ctx.Done():
			return apperror.Transient("queue lock wait cancelled", ctx.Err())
		case <-time.After(wait):
		}
	}
}

func (l *redisDoctorLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release doctor lock: %w", err)
	}
	return nil
}

// Stop ends the cleanup goroutine. Safe to call multiple times.
func (l *redisDoctorLocker) Stop() {
	if l.stopped.CompareAndSwap(false, true) {
		close(l.stopChan)
		l.wg.Wait()
		l.log.Info("Doctor locker stopped")
	}
}

func (l *redisDoctorLocker) localMutex(doctorID uuid.UUID) *mutexWithTimestamp {
	mt, _ := l.local.LoadOrStore(doctorID, &mutexWithTimestamp{})
	result := mt.(*mutexWithTimestamp)
	result.lastUsed.Store(time.Now().Unix())
	return result
}

func (l *redisDoctorLocker) cleanupLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(mutexCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopChan:
			return
		case <-ticker.C:
			l.cleanupStaleMutexes()
		}
	}
}

// cleanupStaleMutexes removes idle mutexes; TryLock skips ones in use
func (l *redisDoctorLocker) cleanupStaleMutexes() {
	cutoff := time.Now().Add(-mutexStaleThreshold).Unix()
	var cleaned int

	l.local.Range(func(key, value any) bool {
		mt, ok := value.(*mutexWithTimestamp)
		if !ok {
			return true
		}
		if !mt.mu.TryLock() {
			return true
		}
		if mt.lastUsed.Load() < cutoff {
			l.local.Delete(key)
			cleaned++
		}
		mt.mu.Unlock()
		return true
	})

	if cleaned > 0 {
		l.log.Debugf("Cleaned up %d stale doctor mutexes", cleaned)
	}
}
