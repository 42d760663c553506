package repository

import (
	"context"

	"loyalty-core/internal/domain/ledger"
	"loyalty-core/internal/infra"
	"loyalty-core/internal/infra/db"
)

// LedgerRepository only inserts. The entries table is append-only; reads go
// through the readstore.
type LedgerRepository struct {
	db db.DBTX
}

func NewLedgerRepository(dbtx db.DBTX) *LedgerRepository {
	return &LedgerRepository{db: dbtx}
}

const appendEntrySQL = `
INSERT INTO ledger_entries (
    id, member_id, kind, outcome,
    bank_delta, wealth_delta, insurance_delta,
    bank_after, wealth_after, insurance_after, total_after,
    instance_id, description, correlation_ref, created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
`

func (r *LedgerRepository) Append(ctx context.Context, e *ledger.Entry) error {
	_, err := r.db.Exec(ctx, appendEntrySQL,
		e.ID, e.MemberID, string(e.Kind), string(e.Outcome),
		e.Deltas.Bank, e.Deltas.Wealth, e.Deltas.Insurance,
		e.BalanceAfter.Bank, e.BalanceAfter.Wealth, e.BalanceAfter.Insurance, e.BalanceAfter.Total,
		e.InstanceID, e.Description, e.CorrelationRef, e.CreatedAt,
	)
	if err != nil {
		return infra.WrapRepoErr("failed to append ledger entry", err)
	}
	return nil
}
