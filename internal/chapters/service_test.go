package chapters

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/shared"
	_ "github.com/doctorpentagon/enhanced-awibi-medtech-sub000/testing"
)

type mockRepository struct {
	chapters map[int64]*Chapter
	joins    map[int64][]int64
	grants   map[int64][]int64
	nextID   int64

	getError error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		chapters: make(map[int64]*Chapter),
		joins:    make(map[int64][]int64),
		grants:   make(map[int64][]int64),
		nextID:   1,
	}
}

func (m *mockRepository) List(ctx context.Context) ([]Chapter, error) {
	out := make([]Chapter, 0, len(m.chapters))
	for _, ch := range m.chapters {
		out = append(out, *ch)
	}
	return out, nil
}

func (m *mockRepository) Get(ctx context.Context, id int64) (*Chapter, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	ch, ok := m.chapters[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return ch, nil
}

func (m *mockRepository) Create(ctx context.Context, params UpdateParams) (*Chapter, error) {
	ch := &Chapter{ID: m.nextID, Name: params.Name, Region: params.Region, Description: params.Description}
	m.nextID++
	m.chapters[ch.ID] = ch
	return ch, nil
}

func (m *mockRepository) Update(ctx context.Context, id int64, params UpdateParams) (*Chapter, error) {
	ch, ok := m.chapters[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	ch.Name = params.Name
	ch.Region = params.Region
	ch.Description = params.Description
	return ch, nil
}

func (m *mockRepository) Join(ctx context.Context, chapterID, userID int64) error {
	m.joins[userID] = append(m.joins[userID], chapterID)
	return nil
}

func (m *mockRepository) AddDelegate(ctx context.Context, chapterID, userID int64) error {
	m.grants[userID] = append(m.grants[userID], chapterID)
	return nil
}

func (m *mockRepository) RemoveDelegate(ctx context.Context, chapterID, userID int64) error {
	kept := m.grants[userID][:0]
	for _, id := range m.grants[userID] {
		if id != chapterID {
			kept = append(kept, id)
		}
	}
	m.grants[userID] = kept
	return nil
}

func (m *mockRepository) DelegatedChapterIDs(ctx context.Context, userID int64) ([]int64, error) {
	return m.grants[userID], nil
}

func (m *mockRepository) ChapterMembershipIDs(ctx context.Context, userID int64) ([]int64, error) {
	return m.joins[userID], nil
}

func TestServiceCreateTrimsAndValidates(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo)
	ctx := context.Background()

	ch, err := svc.Create(ctx, UpdateParams{Name: "  Lagos  ", Region: " Nigeria "})
	require.NoError(t, err)
	assert.Equal(t, "Lagos", ch.Name)
	assert.Equal(t, "Nigeria", ch.Region)

	_, err = svc.Create(ctx, UpdateParams{Name: "   ", Region: "Nigeria"})
	require.Error(t, err)
	assert.Len(t, repo.chapters, 1)
}

func TestServiceUpdateRejectsEmptyName(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo)
	ctx := context.Background()

	ch, err := svc.Create(ctx, UpdateParams{Name: "Lagos", Region: "Nigeria"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, ch.ID, UpdateParams{Name: "", Region: "Nigeria"})
	require.Error(t, err)
	assert.Equal(t, "Lagos", repo.chapters[ch.ID].Name)

	updated, err := svc.Update(ctx, ch.ID, UpdateParams{Name: "Lagos Mainland", Region: "Nigeria"})
	require.NoError(t, err)
	assert.Equal(t, "Lagos Mainland", updated.Name)
}

func TestServiceJoinRequiresExistingChapter(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo)
	ctx := context.Background()

	ch, err := svc.Create(ctx, UpdateParams{Name: "Lagos", Region: "Nigeria"})
	require.NoError(t, err)

	err = svc.Join(ctx, 42, 9)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrNotFound))
	assert.Empty(t, repo.joins[9])

	require.NoError(t, svc.Join(ctx, ch.ID, 9))
	assert.Equal(t, []int64{ch.ID}, repo.joins[9])
}

func TestServiceAddDelegateChecksChapter(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo)
	ctx := context.Background()

	ch, err := svc.Create(ctx, UpdateParams{Name: "Lagos", Region: "Nigeria"})
	require.NoError(t, err)

	require.Error(t, svc.AddDelegate(ctx, 42, 7))
	require.NoError(t, svc.AddDelegate(ctx, ch.ID, 7))

	ids, err := repo.DelegatedChapterIDs(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, []int64{ch.ID}, ids)

	require.NoError(t, svc.RemoveDelegate(ctx, ch.ID, 7))
	ids, err = repo.DelegatedChapterIDs(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
