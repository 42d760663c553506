package repository

import (
	"context"
	"errors"

	"loyalty-core/internal/domain/balance"
	"loyalty-core/internal/infra"
	"loyalty-core/internal/infra/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type BalanceRepository struct {
	db db.DBTX
}

func NewBalanceRepository(dbtx db.DBTX) *BalanceRepository {
	return &BalanceRepository{db: dbtx}
}

const getOrCreateBalanceSQL = `
INSERT INTO balances (member_id, bank_points, wealth_points, insurance_points, total_points)
VALUES ($1, 0, 0, 0, 0)
ON CONFLICT (member_id) DO NOTHING
`

const selectBalanceSQL = `
SELECT bank_points, wealth_points, insurance_points, total_points
FROM balances
WHERE member_id = $1
`

func (r *BalanceRepository) GetOrCreate(ctx context.Context, memberID uuid.UUID) (balance.Snapshot, error) {
	if _, err := r.db.Exec(ctx, getOrCreateBalanceSQL, memberID); err != nil {
		return balance.Snapshot{}, infra.WrapRepoErr("failed to ensure balance row", err)
	}

	var snap balance.Snapshot
	err := r.db.QueryRow(ctx, selectBalanceSQL, memberID).
		Scan(&snap.Bank, &snap.Wealth, &snap.Insurance, &snap.Total)
	if err != nil {
		return balance.Snapshot{}, infra.WrapRepoErr("failed to read balance", err)
	}
	return snap, nil
}

// adjustBalanceSQL applies the deltas, recomputes the total and enforces the
// non-negative invariant in one statement. A concurrent adjustment cannot
// slip between check and write; under insufficient funds the update simply
// matches no row.
const adjustBalanceSQL = `
UPDATE balances
SET bank_points      = bank_points + $2,
    wealth_points    = wealth_points + $3,
    insurance_points = insurance_points + $4,
    total_points     = bank_points + $2 + wealth_points + $3 + insurance_points + $4,
    updated_at       = now()
WHERE member_id = $1
  AND bank_points + $2 >= 0
  AND wealth_points + $3 >= 0
  AND insurance_points + $4 >= 0
RETURNING bank_points, wealth_points, insurance_points, total_points
`

func (r *BalanceRepository) Adjust(ctx context.Context, memberID uuid.UUID, d balance.Deltas) (balance.Snapshot, error) {
	var snap balance.Snapshot
	err := r.db.QueryRow(ctx, adjustBalanceSQL, memberID, d.Bank, d.Wealth, d.Insurance).
		Scan(&snap.Bank, &snap.Wealth, &snap.Insurance, &snap.Total)
	if err == nil {
		return snap, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return balance.Snapshot{}, infra.WrapRepoErr("failed to adjust balance", err)
	}

	// No row matched: missing member or a bucket would go negative.
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM balances WHERE member_id = $1)`, memberID).Scan(&exists); err != nil {
		return balance.Snapshot{}, infra.WrapRepoErr("failed to classify rejected adjustment", err)
	}
	if !exists {
		return balance.Snapshot{}, infra.WrapRepoErr("balance not found", nil, infra.KindNotFound)
	}
	return balance.Snapshot{}, infra.WrapRepoErr("balance would go negative", nil, infra.KindInsufficientBalance)
}
