package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Token purposes. Access tokens authenticate requests; the other purposes
// are single-use links and are never accepted by the identity resolver.
const (
	PurposeAccess        = "access"
	PurposeEmailVerify   = "email-verify"
	PurposePasswordReset = "password-reset"
)

// ErrInvalidToken covers malformed, mis-signed and expired tokens.
var ErrInvalidToken = errors.New("auth: invalid token")

// Claims is the platform's JWT claim set.
type Claims struct {
	Purpose string `json:"purpose,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies HS256 identity tokens.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenManager constructs a TokenManager.
func NewTokenManager(secret string, issuer string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), issuer: issuer, ttl: ttl}
}

// TTL exposes the configured token lifetime.
func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

// Sign issues an access token for the user.
func (m *TokenManager) Sign(userID int64) (string, time.Time, error) {
	return m.SignPurpose(userID, PurposeAccess, m.ttl)
}

// SignPurpose issues a token with an explicit purpose and lifetime.
func (m *TokenManager) SignPurpose(userID int64, purpose string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := Claims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses and validates a token, restricting the accepted signing
// method to HMAC.
func (m *TokenManager) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyPurpose validates a token and requires it to carry the purpose.
func (m *TokenManager) VerifyPurpose(tokenString, purpose string) (*Claims, error) {
	claims, err := m.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != purpose {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// SubjectID extracts the numeric subject id.
func (c *Claims) SubjectID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidToken
	}
	return id, nil
}
