package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/jobs"
)

// SecurityDigestJob persists security events observed at the edge to the
// worker log, giving operators a durable record outside request latency.
type SecurityDigestJob struct {
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewSecurityDigestJob wires dependencies for the digest handler.
func NewSecurityDigestJob(logger *slog.Logger, metrics *jobmetrics.Metrics) *SecurityDigestJob {
	return &SecurityDigestJob{Logger: logger, Metrics: metrics}
}

// Handle processes TaskTypeSecurityEvent tasks.
func (j *SecurityDigestJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("security digest: handler not configured")
	}
	var payload SecurityEventPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskTypeSecurityEvent)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	j.logger().Warn("security event",
		slog.String("kind", payload.Kind),
		slog.String("path", payload.Path),
		slog.String("client_ip", payload.ClientIP),
		slog.Time("observed_at", payload.At))
	return resultErr
}

func (j *SecurityDigestJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *SecurityDigestJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
