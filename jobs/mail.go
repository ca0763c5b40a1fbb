package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// MailJob delivers transactional email. Delivery is logged until an SMTP
// relay is provisioned.
type MailJob struct {
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewMailJob wires dependencies for the mail handler.
func NewMailJob(logger *slog.Logger, metrics *jobmetrics.Metrics) *MailJob {
	return &MailJob{Logger: logger, Metrics: metrics}
}

// Handle processes TaskTypeSendEmail tasks.
func (j *MailJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("mail: handler not configured")
	}
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskTypeSendEmail)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	// TODO: deliver through the SMTP relay once MAIL_DSN is provisioned.
	j.logger().Info("send email",
		slog.String("to", payload.To),
		slog.String("subject", payload.Subject))
	return resultErr
}

func (j *MailJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *MailJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
