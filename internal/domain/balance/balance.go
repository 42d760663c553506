package balance

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUnknownCategory    = errors.New("unknown balance category")
	ErrNegativeBalance    = errors.New("balance would go negative")
	ErrInvariantViolation = errors.New("total does not equal sum of categories")
)

// Category is one of the program's point buckets. A member holds points in
// each business line independently; the external partner program is a
// transfer sink, never a category.
type Category string

const (
	CategoryBank      Category = "bank"
	CategoryWealth    Category = "wealth"
	CategoryInsurance Category = "insurance"

	// CategoryAny marks templates payable from any bucket.
	CategoryAny Category = "any"
)

func NewCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryBank, CategoryWealth, CategoryInsurance:
		return Category(s), nil
	}
	return "", ErrUnknownCategory
}

func (c Category) String() string { return string(c) }

// Deltas is a signed per-category change. Zero means untouched.
type Deltas struct {
	Bank      int64
	Wealth    int64
	Insurance int64
}

func (d Deltas) IsZero() bool {
	return d.Bank == 0 && d.Wealth == 0 && d.Insurance == 0
}

// Single returns deltas affecting one category only.
func Single(c Category, amount int64) Deltas {
	var d Deltas
	switch c {
	case CategoryBank:
		d.Bank = amount
	case CategoryWealth:
		d.Wealth = amount
	case CategoryInsurance:
		d.Insurance = amount
	}
	return d
}

// Snapshot is a member's committed balance at a point in time.
type Snapshot struct {
	Bank      int64
	Wealth    int64
	Insurance int64
	Total     int64
}

func (s Snapshot) Get(c Category) int64 {
	switch c {
	case CategoryBank:
		return s.Bank
	case CategoryWealth:
		return s.Wealth
	case CategoryInsurance:
		return s.Insurance
	}
	return 0
}

// Apply folds deltas onto the snapshot, rejecting any bucket going negative.
// The storage layer performs the same check atomically; this copy serves the
// domain tests and the ledger replay invariant.
func (s Snapshot) Apply(d Deltas) (Snapshot, error) {
	next := Snapshot{
		Bank:      s.Bank + d.Bank,
		Wealth:    s.Wealth + d.Wealth,
		Insurance: s.Insurance + d.Insurance,
	}
	if next.Bank < 0 || next.Wealth < 0 || next.Insurance < 0 {
		return Snapshot{}, ErrNegativeBalance
	}
	next.Total = next.Bank + next.Wealth + next.Insurance
	return next, nil
}

// Validate checks the total invariant.
func (s Snapshot) Validate() error {
	if s.Total != s.Bank+s.Wealth+s.Insurance {
		return ErrInvariantViolation
	}
	if s.Bank < 0 || s.Wealth < 0 || s.Insurance < 0 {
		return ErrNegativeBalance
	}
	return nil
}

// Balance is the per-member mutable record. Created lazily with zero
// counters, mutated only by the orchestrators, never deleted.
type Balance struct {
	MemberID  uuid.UUID
	Snapshot  Snapshot
	CreatedAt time.Time
	UpdatedAt time.Time
}
