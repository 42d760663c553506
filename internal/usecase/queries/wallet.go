package queries

import (
	"context"

	"loyalty-core/internal/domain/coupon"
	"loyalty-core/internal/infra"
	"loyalty-core/internal/pkg/clock"
	"loyalty-core/internal/pkg/errs"

	"github.com/google/uuid"
)

var (
	ErrCouponNotFound  = errs.New("coupon not found")
	ErrCouponForbidden = errs.New("coupon belongs to another member")
)

// WalletQueries lists a member's coupon instances with expiry derived at
// read time (soft expiry: persisted status is only flipped at mutation
// entry points).
type WalletQueries interface {
	ListByMember(ctx context.Context, memberID uuid.UUID, statusFilter string) ([]*CouponView, error)
	GetByID(ctx context.Context, memberID uuid.UUID, id uuid.UUID) (*CouponView, error)
}

type InstanceViewRepo interface {
	FindByMember(ctx context.Context, memberID uuid.UUID) ([]*coupon.Instance, error)
	FindByID(ctx context.Context, id uuid.UUID) (*coupon.Instance, error)
}

type walletQueriesImpl struct {
	repo  InstanceViewRepo
	clock clock.Clock
}

func NewWalletQueries(repo InstanceViewRepo, clock clock.Clock) WalletQueries {
	return &walletQueriesImpl{repo: repo, clock: clock}
}

func (q *walletQueriesImpl) ListByMember(ctx context.Context, memberID uuid.UUID, statusFilter string) ([]*CouponView, error) {
	instances, err := q.repo.FindByMember(ctx, memberID)
	if err != nil {
		return nil, errs.Wrap(err, "failed to list member coupons")
	}

	now := q.clock.Now()
	views := make([]*CouponView, 0, len(instances))
	for _, inst := range instances {
		view := NewCouponView(inst, now)
		if statusFilter != "" && view.Status != statusFilter {
			continue
		}
		views = append(views, view)
	}
	return views, nil
}

func (q *walletQueriesImpl) GetByID(ctx context.Context, memberID uuid.UUID, id uuid.UUID) (*CouponView, error) {
	inst, err := q.repo.FindByID(ctx, id)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, ErrCouponNotFound
		}
		return nil, errs.Wrap(err, "failed to find coupon")
	}

	// Same policy as the mutating calls: mismatched owner is forbidden, not
	// hidden as not-found.
	if inst.MemberID != memberID {
		return nil, ErrCouponForbidden
	}

	return NewCouponView(inst, q.clock.Now()), nil
}
