package chapters

import (
	"context"
	"errors"
	"strings"
)

// Service wraps chapter business rules.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns all chapters.
func (s *Service) List(ctx context.Context) ([]Chapter, error) {
	return s.repo.List(ctx)
}

// Get fetches one chapter.
func (s *Service) Get(ctx context.Context, id int64) (*Chapter, error) {
	return s.repo.Get(ctx, id)
}

// Create validates and inserts a chapter.
func (s *Service) Create(ctx context.Context, params UpdateParams) (*Chapter, error) {
	params.Name = strings.TrimSpace(params.Name)
	params.Region = strings.TrimSpace(params.Region)
	if params.Name == "" {
		return nil, errors.New("chapters: name required")
	}
	return s.repo.Create(ctx, params)
}

// Update validates and rewrites a chapter.
func (s *Service) Update(ctx context.Context, id int64, params UpdateParams) (*Chapter, error) {
	params.Name = strings.TrimSpace(params.Name)
	params.Region = strings.TrimSpace(params.Region)
	if params.Name == "" {
		return nil, errors.New("chapters: name required")
	}
	return s.repo.Update(ctx, id, params)
}

// MembershipIDs returns the chapters the user belongs to.
func (s *Service) MembershipIDs(ctx context.Context, userID int64) ([]int64, error) {
	return s.repo.ChapterMembershipIDs(ctx, userID)
}

// Join adds the user to the chapter.
func (s *Service) Join(ctx context.Context, chapterID, userID int64) error {
	if _, err := s.repo.Get(ctx, chapterID); err != nil {
		return err
	}
	return s.repo.Join(ctx, chapterID, userID)
}

// AddDelegate grants chapter management.
func (s *Service) AddDelegate(ctx context.Context, chapterID, userID int64) error {
	if _, err := s.repo.Get(ctx, chapterID); err != nil {
		return err
	}
	return s.repo.AddDelegate(ctx, chapterID, userID)
}

// RemoveDelegate revokes chapter management.
func (s *Service) RemoveDelegate(ctx context.Context, chapterID, userID int64) error {
	return s.repo.RemoveDelegate(ctx, chapterID, userID)
}
