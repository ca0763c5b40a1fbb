package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/jobs"
)

// LockoutSweepJob resets failure counters for accounts whose lockout window
// has passed, so stale counters never linger into the next login attempt.
type LockoutSweepJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLockoutSweepJob wires dependencies for the sweep handler.
func NewLockoutSweepJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *LockoutSweepJob {
	return &LockoutSweepJob{Pool: pool, Logger: logger, Metrics: metrics}
}

// Handle processes TaskTypeLockoutSweep tasks.
func (j *LockoutSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("lockout sweep: handler not configured")
	}

	tracker := j.metrics().Track(TaskTypeLockoutSweep)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	tag, err := j.Pool.Exec(ctx, `
		UPDATE users
		SET failed_attempts = 0, lock_until = NULL
		WHERE lock_until IS NOT NULL AND lock_until <= now()`)
	if err != nil {
		resultErr = err
		j.logger().Error("lockout sweep", slog.Any("error", err))
		return resultErr
	}
	if tag.RowsAffected() > 0 {
		j.logger().Info("lockout sweep", slog.Int64("cleared", tag.RowsAffected()))
	}
	return resultErr
}

func (j *LockoutSweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *LockoutSweepJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
