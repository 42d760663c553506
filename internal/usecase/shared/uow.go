package shared

import (
	"context"
	"time"

	"loyalty-core/internal/domain/balance"
	"loyalty-core/internal/domain/coupon"
	"loyalty-core/internal/domain/ledger"
	"loyalty-core/internal/domain/reward"

	"github.com/google/uuid"
)

type UnitOfWork interface {
	// Within: full read-committed transaction with conflict retry for the
	// orchestrators' compound writes.
	Within(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// Journal: pool-bound ledger access for the best-effort failed-outcome
	// entries written after a transaction aborted.
	Journal() LedgerRepository
	// CommandReads: validation reads outside any transaction.
	CommandReads() CommandReads
}

// Tx exposes tx-scoped repository handles. Every mutation of balances,
// stock, instances or the ledger goes through these; nothing else writes.
type Tx interface {
	Balances() BalanceRepository
	Templates() TemplateRepository
	Instances() InstanceRepository
	Ledger() LedgerRepository
}

type BalanceRepository interface {
	// GetOrCreate lazily creates the zero balance on first access.
	GetOrCreate(ctx context.Context, memberID uuid.UUID) (balance.Snapshot, error)
	// Adjust applies deltas in one conditional update: every bucket must stay
	// non-negative and total is recomputed in the same statement. Rejection
	// surfaces as KindInsufficientBalance with no mutation.
	Adjust(ctx context.Context, memberID uuid.UUID, d balance.Deltas) (balance.Snapshot, error)
}

type TemplateRepository interface {
	// Ensure materializes the template from its static definition if absent
	// (idempotent upsert guarded by the reward_key uniqueness constraint).
	Ensure(ctx context.Context, def *reward.Definition) (*coupon.Template, error)
	// ReserveStock atomically checks active+stocked+unexpired, decrements
	// stock and increments issued_count. Never lets stock go negative.
	ReserveStock(ctx context.Context, templateID uuid.UUID, now time.Time) (*coupon.Template, error)
	// IncrementUsed bumps the best-effort used_count audit counter.
	IncrementUsed(ctx context.Context, templateID uuid.UUID) error
}

type InstanceRepository interface {
	Create(ctx context.Context, inst *coupon.Instance) error
	// ExpireStale persists derived expiry for the member's stale instances of
	// one reward, freeing the one-active-instance uniqueness slot.
	ExpireStale(ctx context.Context, memberID uuid.UUID, rewardKey string, now time.Time) error
	// FindNonTerminal returns the member's redeemed/active instance for a
	// reward, if any (the idempotency short-circuit source).
	FindNonTerminal(ctx context.Context, memberID uuid.UUID, rewardKey string) (*coupon.Instance, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*coupon.Instance, error)
	GetByCodeForUpdate(ctx context.Context, code string) (*coupon.Instance, error)
	// SaveStatus writes status, activation/use timestamps and window.
	SaveStatus(ctx context.Context, inst *coupon.Instance) error
}

type LedgerRepository interface {
	// Append inserts one immutable entry. No update/delete exists.
	Append(ctx context.Context, e *ledger.Entry) error
}

// CommandReads are the pre-transaction validation reads.
type CommandReads interface {
	TemplateByRewardKey(ctx context.Context, rewardKey string) (*coupon.Template, error)
	NonTerminalInstance(ctx context.Context, memberID uuid.UUID, rewardKey string) (*coupon.Instance, error)
	BalanceByMember(ctx context.Context, memberID uuid.UUID) (*balance.Snapshot, error)
}
