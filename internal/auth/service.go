package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/authz"
	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/shared"
	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/users"
)

// Service wraps authentication business rules.
type Service struct {
	repo   users.Repository
	guard  *Guard
	tokens *TokenManager
}

// NewService constructs a Service.
func NewService(repo users.Repository, guard *Guard, tokens *TokenManager) *Service {
	return &Service{repo: repo, guard: guard, tokens: tokens}
}

// Tokens exposes the token manager for handlers issuing refresh tokens.
func (s *Service) Tokens() *TokenManager {
	return s.tokens
}

// Authenticate validates email/password credentials against the lockout
// state machine. The lock check happens before the password is ever
// compared. Failures are reported with deliberately uniform messaging so an
// attacker cannot distinguish a wrong password from a missing account; the
// lockout response is the one documented exception.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*users.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := s.guard.Check(user, time.Now()); err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		if lockErr := s.guard.OnFailure(ctx, email); lockErr != nil {
			var locked *AccountLockedError
			if errors.As(lockErr, &locked) {
				return nil, locked
			}
			// Counter update failed; the attempt still reads as a failure.
		}
		return nil, shared.ErrInvalidCredentials
	}

	if err := s.guard.OnSuccess(ctx, user.ID); err != nil {
		return nil, err
	}
	user.FailedAttempts = 0
	user.LockUntil = nil
	return user, nil
}

// RegisterParams carries a registration request.
type RegisterParams struct {
	Email    string
	Name     string
	Password string
}

// Register creates a member account with a bcrypt password hash.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*users.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, users.CreateParams{
		Email:        strings.ToLower(strings.TrimSpace(params.Email)),
		Name:         strings.TrimSpace(params.Name),
		PasswordHash: string(hash),
		Role:         authz.RoleMember,
	})
}

// IssueToken signs an access token for the user.
func (s *Service) IssueToken(user *users.User) (string, time.Time, error) {
	return s.tokens.Sign(user.ID)
}

// VerifyEmailToken validates an email-verification token and marks the
// subject's email as verified.
func (s *Service) VerifyEmailToken(ctx context.Context, token string) error {
	claims, err := s.tokens.VerifyPurpose(token, PurposeEmailVerify)
	if err != nil {
		return shared.ErrUnauthenticated
	}
	id, err := claims.SubjectID()
	if err != nil {
		return shared.ErrUnauthenticated
	}
	return s.repo.MarkEmailVerified(ctx, id)
}

// RequestPasswordReset issues a reset token when the account exists. The
// empty-token success for unknown accounts keeps responses uniform; the
// caller answers identically either way.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	user, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	token, _, err := s.tokens.SignPurpose(user.ID, PurposePasswordReset, time.Hour)
	return token, err
}
