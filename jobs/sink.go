package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/observability"
)

// SecurityEventSink fans observed security events out to the metrics
// registry and the job queue. Enqueueing happens off the request path.
type SecurityEventSink struct {
	Client  *Client
	Metrics *observability.Metrics
	Logger  *slog.Logger
	// EnqueueTimeout bounds the background enqueue. Defaults to 5s.
	EnqueueTimeout time.Duration
}

// NewSecurityEventSink constructs a sink. client may be nil, in which case
// events are counted but not queued.
func NewSecurityEventSink(client *Client, metrics *observability.Metrics, logger *slog.Logger) *SecurityEventSink {
	return &SecurityEventSink{Client: client, Metrics: metrics, Logger: logger}
}

// SuspiciousRequest records a matched request pattern.
func (s *SecurityEventSink) SuspiciousRequest(kind, path, clientIP string) {
	if s.Metrics != nil {
		s.Metrics.ObserveSecurityEvent(kind)
	}
	s.enqueue(SecurityEventPayload{Kind: kind, Path: path, ClientIP: clientIP, At: time.Now().UTC()})
}

// AuthFailure records a failed authentication response.
func (s *SecurityEventSink) AuthFailure(path, clientIP string) {
	if s.Metrics != nil {
		s.Metrics.ObserveAuthFailure(path)
	}
	s.enqueue(SecurityEventPayload{Kind: "auth-failure", Path: path, ClientIP: clientIP, At: time.Now().UTC()})
}

func (s *SecurityEventSink) enqueue(payload SecurityEventPayload) {
	if s.Client == nil {
		return
	}
	timeout := s.EnqueueTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if _, err := s.Client.EnqueueSecurityEvent(ctx, payload); err != nil && s.Logger != nil {
			s.Logger.Warn("enqueue security event", slog.Any("error", err))
		}
	}()
}
