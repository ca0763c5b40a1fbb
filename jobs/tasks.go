package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeSecurityEvent records a suspicious request or repeated auth
	// failure for out-of-band aggregation.
	TaskTypeSecurityEvent = "security:event"
	// TaskTypeLockoutSweep clears expired account lockouts.
	TaskTypeLockoutSweep = "auth:lockout_sweep"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// SecurityEventPayload carries one observed security event.
type SecurityEventPayload struct {
	Kind     string    `json:"kind"`
	Path     string    `json:"path"`
	ClientIP string    `json:"clientIp"`
	At       time.Time `json:"at"`
}

// NewSecurityEventTask constructs an Asynq task for a security event.
func NewSecurityEventTask(payload SecurityEventPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSecurityEvent, data), nil
}

// NewLockoutSweepTask constructs the periodic lockout sweep task.
func NewLockoutSweepTask() *asynq.Task {
	return asynq.NewTask(TaskTypeLockoutSweep, nil)
}
