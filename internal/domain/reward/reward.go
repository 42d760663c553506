package reward

import (
	"context"
	"errors"
	"time"

	"loyalty-core/internal/domain/balance"
)

var (
	ErrNotFound  = errors.New("reward not found")
	ErrNotCoupon = errors.New("reward is not a coupon type")
)

type Kind string

const (
	KindCoupon Kind = "coupon"
	KindBadge  Kind = "badge" // display-only rewards, never redeemable
)

// Definition is the static, read-only description of a reward. It lives in
// back-office reference data; the engine copies from it when materializing a
// coupon template.
type Definition struct {
	Key              string
	LegacyID         int64 // numeric id still used by older clients, alias only
	Kind             Kind
	Title            string
	Description      string
	ImageURL         string
	PointCost        int64
	EligibleCategory balance.Category // CategoryAny when any bucket may pay
	InitialStock     int64
	ExpiresAt        time.Time
}

func (d Definition) IsCoupon() bool { return d.Kind == KindCoupon }

// Catalog resolves static reward definitions. The legacy numeric id is
// accepted only as a lookup alias at the API edge; everything past the
// boundary speaks the stable key.
type Catalog interface {
	FindByKey(ctx context.Context, key string) (*Definition, error)
	FindByLegacyID(ctx context.Context, id int64) (*Definition, error)
}
