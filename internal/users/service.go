package users

import (
	"context"
	"fmt"

	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/authz"
)

// Service wraps account management rules.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get fetches a single account.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.repo.FindByID(ctx, id)
}

// List returns every account.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

// ChangeRole assigns a new role after validating it exists in the hierarchy.
func (s *Service) ChangeRole(ctx context.Context, id int64, role authz.Role) error {
	if !authz.KnownRole(role) {
		return fmt.Errorf("users: unknown role %q", role)
	}
	return s.repo.UpdateRole(ctx, id, role)
}

// Deactivate soft-deletes an account.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	return s.repo.Deactivate(ctx, id)
}

// VerifyEmail marks the account's email address as confirmed.
func (s *Service) VerifyEmail(ctx context.Context, id int64) error {
	return s.repo.MarkEmailVerified(ctx, id)
}
