package queries

import (
	"context"
	"time"

	"loyalty-core/internal/pkg/errs"

	"github.com/google/uuid"
)

var ErrInvalidCursor = errs.New("invalid history cursor")

// HistoryQueries serves the member's reverse-chronological audit feed.
// Reads take no locks and may trail the newest committed write.
type HistoryQueries interface {
	ListByMember(ctx context.Context, memberID uuid.UUID, after *Cursor, limit int, kind string) ([]*LedgerEntryView, *Cursor, error)
}

// LedgerViewRepo is the keyset-paginated read store. A zero afterTime means
// the first page. kind filters entries when non-empty.
type LedgerViewRepo interface {
	ListByMember(ctx context.Context, memberID uuid.UUID, kind string, afterTime time.Time, afterID uuid.UUID, limit int32) ([]*LedgerEntryView, error)
}

type historyQueriesImpl struct {
	repo     LedgerViewRepo
	pageSize int
}

// NewHistoryQueries builds the history read side. defaultPageSize is the page
// served when the caller omits a limit; non-positive falls back to DefaultLimit.
func NewHistoryQueries(repo LedgerViewRepo, defaultPageSize int) HistoryQueries {
	if defaultPageSize <= 0 || defaultPageSize > MaxListLimit {
		defaultPageSize = DefaultLimit
	}
	return &historyQueriesImpl{repo: repo, pageSize: defaultPageSize}
}

func (q *historyQueriesImpl) ListByMember(ctx context.Context, memberID uuid.UUID, after *Cursor, limit int, kind string) ([]*LedgerEntryView, *Cursor, error) {
	if limit <= 0 {
		limit = q.pageSize
	}
	limit = ValidateLimit(limit)

	var (
		afterTime time.Time
		afterID   uuid.UUID
	)
	if after != nil && after.After != "" {
		var err error
		afterTime, afterID, err = DecodeAfterCursor(after.After)
		if err != nil {
			return nil, nil, errs.Mark(err, ErrInvalidCursor)
		}
	}

	// Fetch one extra row to decide whether a next page exists.
	views, err := q.repo.ListByMember(ctx, memberID, kind, afterTime, afterID, int32(limit+1))
	if err != nil {
		return nil, nil, err
	}

	var next *Cursor
	if len(views) > limit {
		views = views[:limit]
		last := views[len(views)-1]
		next = &Cursor{After: EncodeAfterCursor(last.CreatedAt, last.ID)}
	}

	return views, next, nil
}
