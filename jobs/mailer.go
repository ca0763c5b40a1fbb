package jobs

import (
	"context"
	"fmt"
)

// AuthMailer queues account emails through the asynq client. It satisfies
// the auth handler's Mailer interface without that package importing jobs.
type AuthMailer struct {
	client  *Client
	baseURL string
}

// NewAuthMailer constructs an AuthMailer. baseURL is the public origin used
// to build verification and reset links.
func NewAuthMailer(client *Client, baseURL string) *AuthMailer {
	return &AuthMailer{client: client, baseURL: baseURL}
}

// SendEmailVerification enqueues the verification mail for a new account.
func (m *AuthMailer) SendEmailVerification(ctx context.Context, to, token string) error {
	_, err := m.client.EnqueueSendEmail(ctx, SendEmailPayload{
		To:      to,
		Subject: "Verify your AWIBI account",
		Body:    fmt.Sprintf("Confirm your email address: %s/verify-email?token=%s", m.baseURL, token),
	})
	return err
}

// SendPasswordReset enqueues the reset mail.
func (m *AuthMailer) SendPasswordReset(ctx context.Context, to, token string) error {
	_, err := m.client.EnqueueSendEmail(ctx, SendEmailPayload{
		To:      to,
		Subject: "Reset your AWIBI password",
		Body:    fmt.Sprintf("Choose a new password: %s/reset-password?token=%s", m.baseURL, token),
	})
	return err
}
