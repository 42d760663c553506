package queries

import (
	"context"

	"loyalty-core/internal/domain/balance"
	"loyalty-core/internal/infra"
	"loyalty-core/internal/pkg/clock"
	"loyalty-core/internal/pkg/errs"

	"github.com/google/uuid"
)

type BalanceQueries interface {
	GetByMember(ctx context.Context, memberID uuid.UUID) (*BalanceView, error)
}

type BalanceViewRepo interface {
	FindByMember(ctx context.Context, memberID uuid.UUID) (*balance.Balance, error)
}

type balanceQueriesImpl struct {
	repo  BalanceViewRepo
	clock clock.Clock
}

func NewBalanceQueries(repo BalanceViewRepo, clock clock.Clock) BalanceQueries {
	return &balanceQueriesImpl{repo: repo, clock: clock}
}

// GetByMember never 404s: balances are created lazily, so an absent row is
// simply the zero balance.
func (q *balanceQueriesImpl) GetByMember(ctx context.Context, memberID uuid.UUID) (*BalanceView, error) {
	b, err := q.repo.FindByMember(ctx, memberID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return NewBalanceView(memberID, balance.Snapshot{}, q.clock.Now()), nil
		}
		return nil, errs.Wrap(err, "failed to find balance")
	}

	return NewBalanceView(b.MemberID, b.Snapshot, b.UpdatedAt), nil
}
