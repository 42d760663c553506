package readstore

import (
	"context"
	"time"

	"loyalty-core/internal/domain/ledger"
	"loyalty-core/internal/infra"
	"loyalty-core/internal/infra/db"
	"loyalty-core/internal/usecase/queries"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type LedgerReadStore struct {
	db db.DBTX
}

func NewLedgerReadStore(dbtx db.DBTX) *LedgerReadStore {
	return &LedgerReadStore{db: dbtx}
}

const ledgerColumns = `
    id, member_id, kind, outcome,
    bank_delta, wealth_delta, insurance_delta,
    bank_after, wealth_after, insurance_after, total_after,
    instance_id, description, correlation_ref, created_at
`

// Keyset pagination over (created_at DESC, id DESC); the composite index on
// (member_id, created_at, id) keeps every page a range scan. The kind filter
// is optional.
const listLedgerFirstPageSQL = `
SELECT ` + ledgerColumns + `
FROM ledger_entries
WHERE member_id = $1
  AND ($2 = '' OR kind = $2)
ORDER BY created_at DESC, id DESC
LIMIT $3
`

const listLedgerKeysetSQL = `
SELECT ` + ledgerColumns + `
FROM ledger_entries
WHERE member_id = $1
  AND ($2 = '' OR kind = $2)
  AND (created_at, id) < ($3, $4)
ORDER BY created_at DESC, id DESC
LIMIT $5
`

func (r *LedgerReadStore) ListByMember(ctx context.Context, memberID uuid.UUID, kind string, afterTime time.Time, afterID uuid.UUID, limit int32) ([]*queries.LedgerEntryView, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if afterTime.IsZero() {
		rows, err = r.db.Query(ctx, listLedgerFirstPageSQL, memberID, kind, limit)
	} else {
		rows, err = r.db.Query(ctx, listLedgerKeysetSQL, memberID, kind, afterTime, afterID, limit)
	}
	if err != nil {
		return nil, infra.WrapRepoErr("failed to list ledger entries", err)
	}
	defer rows.Close()

	var views []*queries.LedgerEntryView
	for rows.Next() {
		entry, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, infra.WrapRepoErr("failed to scan ledger entry", err)
		}
		views = append(views, queries.NewLedgerEntryView(entry))
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr("failed to iterate ledger entries", err)
	}
	return views, nil
}

func scanLedgerEntry(row pgx.Row) (*ledger.Entry, error) {
	var e ledger.Entry
	var kind, outcome string
	err := row.Scan(
		&e.ID, &e.MemberID, &kind, &outcome,
		&e.Deltas.Bank, &e.Deltas.Wealth, &e.Deltas.Insurance,
		&e.BalanceAfter.Bank, &e.BalanceAfter.Wealth, &e.BalanceAfter.Insurance, &e.BalanceAfter.Total,
		&e.InstanceID, &e.Description, &e.CorrelationRef, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Kind = ledger.Kind(kind)
	e.Outcome = ledger.Outcome(outcome)
	return &e, nil
}
