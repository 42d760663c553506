package coupon

import (
	"errors"
	"time"

	"loyalty-core/internal/domain/balance"

	"github.com/google/uuid"
)

var (
	ErrInvalidTransition = errors.New("invalid coupon state transition")
	ErrExpired           = errors.New("coupon has expired")
	ErrNotOwner          = errors.New("coupon belongs to another member")
)

type Status string

const (
	// StatusHeld is reserved for a future staged checkout; the current flow
	// collapses it into redeemed/active inside the issuing transaction and it
	// is never observable.
	StatusHeld Status = "held"

	StatusRedeemed  Status = "redeemed" // in wallet, not yet activated
	StatusActive    Status = "active"   // activated, short usage window running
	StatusUsed      Status = "used"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

func (s Status) Terminal() bool {
	switch s {
	case StatusUsed, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

type RedeemMode string

const (
	ModeNow   RedeemMode = "now"   // activate immediately on issuance
	ModeLater RedeemMode = "later" // keep in wallet as redeemed
)

func NewRedeemMode(s string) (RedeemMode, error) {
	switch RedeemMode(s) {
	case ModeNow, ModeLater:
		return RedeemMode(s), nil
	}
	return "", errors.New("redeem mode must be \"now\" or \"later\"")
}

// Instance is one member's redeemed copy of a template. Reward metadata is
// denormalized at issuance time and must not change retroactively. Instances
// are never physically deleted; they soft-expire.
type Instance struct {
	ID           uuid.UUID
	MemberID     uuid.UUID
	TemplateID   uuid.UUID
	RewardKey    string
	Title        string
	Description  string
	ImageURL     string
	CategoryUsed balance.Category
	CostPaid     int64
	Status       Status
	Code         string
	QRPayload    string
	IssuedAt     time.Time
	ActivatedAt  *time.Time
	UsedAt       *time.Time
	// ActiveExpiresAt is set only while active; ValidUntil is inherited from
	// the template at issuance and bounds the redeemed state.
	ActiveExpiresAt *time.Time
	ValidUntil      time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EffectiveStatus derives expiry at read time. Persisted status flips to
// expired lazily at mutation entry points, so persisted and derived status
// never diverge observably.
func (i *Instance) EffectiveStatus(now time.Time) Status {
	switch i.Status {
	case StatusRedeemed:
		if !now.Before(i.ValidUntil) {
			return StatusExpired
		}
	case StatusActive:
		if i.ActiveExpiresAt != nil && !now.Before(*i.ActiveExpiresAt) {
			return StatusExpired
		}
	}
	return i.Status
}

// CheckOwner rejects mutations by anyone but the issuing member. Policy:
// ownership mismatch surfaces as a forbidden error, not not-found.
func (i *Instance) CheckOwner(memberID uuid.UUID) error {
	if i.MemberID != memberID {
		return ErrNotOwner
	}
	return nil
}

// Activate moves redeemed -> active and opens the usage window.
func (i *Instance) Activate(now time.Time, window time.Duration) error {
	switch i.EffectiveStatus(now) {
	case StatusRedeemed:
		// legal
	case StatusExpired:
		return ErrExpired
	default:
		return ErrInvalidTransition
	}

	expiresAt := now.Add(window)
	i.Status = StatusActive
	i.ActivatedAt = &now
	i.ActiveExpiresAt = &expiresAt
	return nil
}

// Use moves active -> used. Re-use of a used coupon is an invalid
// transition, which doubles as the double-scan guard.
func (i *Instance) Use(now time.Time) error {
	switch i.EffectiveStatus(now) {
	case StatusActive:
		// legal
	case StatusExpired:
		return ErrExpired
	default:
		return ErrInvalidTransition
	}

	i.Status = StatusUsed
	i.UsedAt = &now
	return nil
}

// MarkExpired persists a derived expiry observation.
func (i *Instance) MarkExpired(now time.Time) bool {
	if i.Status.Terminal() {
		return false
	}
	if i.EffectiveStatus(now) != StatusExpired {
		return false
	}
	i.Status = StatusExpired
	return true
}
