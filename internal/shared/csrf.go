package shared

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

const (
	// CSRFSessionKey is the key used to persist tokens in the session store.
	CSRFSessionKey = "csrf_token"
	// CSRFFormField is the form field name carrying the CSRF token.
	CSRFFormField = "csrf_token"
	// CSRFHeader is the request header carrying the CSRF token.
	CSRFHeader = "X-CSRF-Token"
)

// CSRFManager issues and verifies CSRF tokens bound to a session.
type CSRFManager struct {
	tokenBytes int
}

// NewCSRFManager returns a CSRFManager issuing tokens of tokenBytes random
// bytes. Anything below 32 bytes is raised to 32 to keep at least 256 bits
// of entropy.
func NewCSRFManager(tokenBytes int) *CSRFManager {
	if tokenBytes < 32 {
		tokenBytes = 32
	}
	return &CSRFManager{tokenBytes: tokenBytes}
}

// EnsureToken retrieves or generates a CSRF token for the session. The token
// is stable for the session's lifetime.
func (m *CSRFManager) EnsureToken(ctx context.Context, sess *Session) (string, error) {
	if sess == nil {
		return "", errors.New("session missing")
	}
	if token := sess.Get(CSRFSessionKey); token != "" {
		return token, nil
	}
	token, err := m.generateToken()
	if err != nil {
		return "", err
	}
	sess.Set(CSRFSessionKey, token)
	return token, nil
}

// VerifyToken compares the supplied token with the session token in constant
// time.
func (m *CSRFManager) VerifyToken(ctx context.Context, sess *Session, token string) error {
	if sess == nil {
		return ErrCSRFTokenMissing
	}
	expected := sess.Get(CSRFSessionKey)
	if expected == "" {
		return ErrCSRFTokenMissing
	}
	if token == "" {
		return ErrCSRFTokenMissing
	}
	if !hmac.Equal([]byte(expected), []byte(token)) {
		return ErrCSRFTokenMismatch
	}
	return nil
}

func (m *CSRFManager) generateToken() (string, error) {
	b := make([]byte, m.tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("shared: generate csrf token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
