package coupon

import (
	"errors"
	"time"

	"loyalty-core/internal/domain/balance"

	"github.com/google/uuid"
)

var (
	ErrTemplateInactive = errors.New("coupon template is not active")
	ErrTemplateExpired  = errors.New("coupon template has expired")
	ErrOutOfStock       = errors.New("coupon template is out of stock")
)

type TemplateStatus string

const (
	TemplateActive    TemplateStatus = "active"
	TemplateInactive  TemplateStatus = "inactive"
	TemplateExpired   TemplateStatus = "expired"
	TemplateSuspended TemplateStatus = "suspended"
)

// Template is the shared catalog entry behind a redeemable reward.
// Materialized lazily from the static reward definition on first redemption,
// or pre-provisioned by back-office. Mutated only through the redemption
// orchestrator; issued/used counters are monotonic audit counters.
type Template struct {
	ID               uuid.UUID
	RewardKey        string
	Title            string
	Description      string
	ImageURL         string
	Stock            int64
	Status           TemplateStatus
	ExpiresAt        time.Time
	PointCost        int64
	EligibleCategory balance.Category
	IssuedCount      int64
	UsedCount        int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CheckRedeemable mirrors the conditions the storage layer enforces
// atomically in reserveStock, so callers get a typed reason when the
// conditional update matches no row.
func (t *Template) CheckRedeemable(now time.Time) error {
	if t.Status != TemplateActive {
		return ErrTemplateInactive
	}
	if !now.Before(t.ExpiresAt) {
		return ErrTemplateExpired
	}
	if t.Stock <= 0 {
		return ErrOutOfStock
	}
	return nil
}
