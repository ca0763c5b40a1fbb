package chapters

import "context"

// Repository defines persistence operations for chapters, memberships and
// delegation grants. DelegatedChapterIDs and ChapterMembershipIDs are the
// two reads the authorization engine depends on.
type Repository interface {
	List(ctx context.Context) ([]Chapter, error)
	Get(ctx context.Context, id int64) (*Chapter, error)
	Create(ctx context.Context, params UpdateParams) (*Chapter, error)
	Update(ctx context.Context, id int64, params UpdateParams) (*Chapter, error)
	Join(ctx context.Context, chapterID, userID int64) error
	AddDelegate(ctx context.Context, chapterID, userID int64) error
	RemoveDelegate(ctx context.Context, chapterID, userID int64) error
	DelegatedChapterIDs(ctx context.Context, userID int64) ([]int64, error)
	ChapterMembershipIDs(ctx context.Context, userID int64) ([]int64, error)
}
