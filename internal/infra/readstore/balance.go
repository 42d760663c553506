package readstore

import (
	"context"
	"errors"

	"loyalty-core/internal/domain/balance"
	"loyalty-core/internal/infra"
	"loyalty-core/internal/infra/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type BalanceReadStore struct {
	db db.DBTX
}

func NewBalanceReadStore(dbtx db.DBTX) *BalanceReadStore {
	return &BalanceReadStore{db: dbtx}
}

const findBalanceSQL = `
SELECT member_id, bank_points, wealth_points, insurance_points, total_points, created_at, updated_at
FROM balances
WHERE member_id = $1
`

func (r *BalanceReadStore) FindByMember(ctx context.Context, memberID uuid.UUID) (*balance.Balance, error) {
	var b balance.Balance
	err := r.db.QueryRow(ctx, findBalanceSQL, memberID).Scan(
		&b.MemberID,
		&b.Snapshot.Bank, &b.Snapshot.Wealth, &b.Snapshot.Insurance, &b.Snapshot.Total,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr("balance not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to find balance", err)
	}
	return &b, nil
}

func (r *BalanceReadStore) SnapshotByMember(ctx context.Context, memberID uuid.UUID) (*balance.Snapshot, error) {
	b, err := r.FindByMember(ctx, memberID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			// Lazily created rows: absence means the zero balance.
			return &balance.Snapshot{}, nil
		}
		return nil, err
	}
	return &b.Snapshot, nil
}
