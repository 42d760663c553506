package ledger

import (
	"time"

	"loyalty-core/internal/domain/balance"

	"github.com/google/uuid"
)

type Kind string

const (
	KindEarn        Kind = "earn"
	KindSpend       Kind = "spend"
	KindRedeem      Kind = "redeem"
	KindUse         Kind = "use"
	KindTransferIn  Kind = "transfer_in"
	KindTransferOut Kind = "transfer_out"
)

type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeFailed    Outcome = "failed"
	OutcomePending   Outcome = "pending"
	OutcomeCancelled Outcome = "cancelled"
)

// Entry is one immutable audit record. Entries are append-only: nothing in
// this codebase issues an UPDATE or DELETE against them. Balances are a
// derived cache; folding entries from genesis must reproduce the snapshot.
type Entry struct {
	ID           uuid.UUID
	MemberID     uuid.UUID
	Kind         Kind
	Outcome      Outcome
	Deltas       balance.Deltas
	BalanceAfter balance.Snapshot
	// InstanceID links the issuance and use entries of a coupon.
	InstanceID     *uuid.UUID
	Description    string
	CorrelationRef *uuid.UUID
	CreatedAt      time.Time
}

// Replay folds successful entries oldest-first from a zero balance.
// Failed/pending/cancelled entries carry zero effect by definition.
func Replay(entries []Entry) (balance.Snapshot, error) {
	var snap balance.Snapshot
	for _, e := range entries {
		if e.Outcome != OutcomeSuccess {
			continue
		}
		next, err := snap.Apply(e.Deltas)
		if err != nil {
			return balance.Snapshot{}, err
		}
		snap = next
	}
	return snap, nil
}
