package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"clinic-queue/config"
	"clinic-queue/internal/domain/repository"
	"clinic-queue/pkg/apperror"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RedisSeqKeyPrefix prefixes the per-doctor turn sequence counter
const RedisSeqKeyPrefix = "turno:seq:"

// raiseSeqScript moves a counter forward to ARGV[1] and never back.
// Returns the resulting value.
var raiseSeqScript = redis.NewScript(`
	local current = tonumber(redis.call('GET', KEYS[1]) or '0')
	local target = tonumber(ARGV[1])
	if target > current then
		redis.call('SET', KEYS[1], target)
		return target
	end
	return current
`)

// CodeGenerator issues per-doctor monotonic sequence numbers and formats them as turn codes.
// Redis holds the counters; the database is the source they are seeded from.
type CodeGenerator struct {
	db          *gorm.DB
	redisClient *redis.Client
	log         *logrus.Logger
	turnRepo    repository.TurnRepository
	pattern     string
	pad         int
}

func NewCodeGenerator(db *gorm.DB, redisClient *redis.Client, log *logrus.Logger, turnRepo repository.TurnRepository, cfg config.QueueConfig) *CodeGenerator {
	pattern := cfg.CodePattern
	if pattern == "" {
		pattern = "{prefix}-{seq}"
	}
	return &CodeGenerator{
		db:          db,
		redisClient: redisClient,
		log:         log,
		turnRepo:    turnRepo,
		pattern:     pattern,
		pad:         cfg.CodePad,
	}
}

// SyncOnStartup raises every doctor's counter to the highest sequence already issued.
// Should run before accepting traffic.
func (g *CodeGenerator) SyncOnStartup(ctx context.Context) error {
	g.log.Info("Starting turn sequence sync from database...")
	startTime := time.Now()

	if err := g.redisClient.Ping(ctx).Err(); err != nil {
		g.log.Warnf("Redis is not available, skipping sequence sync: %+v", err)
		return fmt.Errorf("redis ping failed: %w", err)
	}

	rows, err := g.turnRepo.MaxSeqByDoctor(g.db.WithContext(ctx))
	if err != nil {
		g.log.Errorf("Failed to query max sequences: %+v", err)
		return fmt.Errorf("query max sequences: %w", err)
	}
	if len(rows) == 0 {
		g.log.Info("No issued turns found for sync")
		return nil
	}

	pipe := g.redisClient.TxPipeline()
	for _, row := range rows {
		raiseSeqScript.Eval(ctx, pipe, []string{seqKey(row.DoctorID)}, row.MaxSeq)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		g.log.Errorf("Failed to execute sequence sync pipeline: %+v", err)
		return fmt.Errorf("sequence sync pipeline: %w", err)
	}

	g.log.Infof("Turn sequence sync completed: %d doctors synced in %v", len(rows), time.Since(startTime))
	return nil
}

// Next returns the next sequence number for a doctor
func (g *CodeGenerator) Next(ctx context.Context, doctorID uuid.UUID) (int64, error) {
	seq, err := g.redisClient.Incr(ctx, seqKey(doctorID)).Result()
	if err != nil {
		g.log.Warnf("Failed to increment sequence for doctor %s: %+v", doctorID, err)
		return 0, apperror.Transient("turn sequence unavailable", err)
	}
	return seq, nil
}

// RaiseTo moves a doctor's counter forward to at least seq
func (g *CodeGenerator) RaiseTo(ctx context.Context, doctorID uuid.UUID, seq int64) error {
	if err := raiseSeqScript.Run(ctx, g.redisClient, []string{seqKey(doctorID)}, seq).Err(); err != nil {
		g.log.Warnf("Failed to raise sequence for doctor %s: %+v", doctorID, err)
		return apperror.Transient("turn sequence unavailable", err)
	}
	return nil
}

// Resync raises one doctor's counter to the highest sequence recorded in the database.
// Used after a code collision reveals Redis lost its counter.
func (g *CodeGenerator) Resync(ctx context.Context, doctorID uuid.UUID) error {
	rows, err := g.turnRepo.MaxSeqByDoctor(g.db.WithContext(ctx))
	if err != nil {
		g.log.Warnf("Failed to query max sequences: %+v", err)
		return err
	}
	for _, row := range rows {
		if row.DoctorID == doctorID {
			return g.RaiseTo(ctx, doctorID, row.MaxSeq)
		}
	}
	return nil
}

// Reset drops a doctor's counter, used when the doctor is removed
func (g *CodeGenerator) Reset(ctx context.Context, doctorID uuid.UUID) error {
	return g.redisClient.Del(ctx, seqKey(doctorID)).Err()
}

// Format renders a code from the configured pattern
func (g *CodeGenerator) Format(prefix string, seq int64) string {
	return FormatCode(g.pattern, g.pad, prefix, seq)
}

// FormatCode replaces {prefix} and {seq} in pattern; seq is zero padded to pad digits
func FormatCode(pattern string, pad int, prefix string, seq int64) string {
	digits := strconv.FormatInt(seq, 10)
	if len(digits) < pad {
		digits = strings.Repeat("0", pad-len(digits)) + digits
	}
	return strings.NewReplacer("{prefix}", prefix, "{seq}", digits).Replace(pattern)
}

func seqKey(doctorID uuid.UUID) string {
	return RedisSeqKeyPrefix + doctorID.String()
}
