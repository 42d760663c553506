package commands

import (
	"context"
	"errors"
	"time"

	"loyalty-core/internal/domain/balance"
	"loyalty-core/internal/domain/coupon"
	"loyalty-core/internal/domain/ledger"
	"loyalty-core/internal/infra"
	"loyalty-core/internal/pkg/clock"
	"loyalty-core/internal/pkg/errs"
	"loyalty-core/internal/usecase/queries"
	"loyalty-core/internal/usecase/shared"

	"github.com/google/uuid"
)

var (
	ErrInstanceNotFound  = errs.New("coupon instance not found")
	ErrForbidden         = errs.New("coupon belongs to another member")
	ErrInvalidTransition = errs.New("invalid coupon state transition")
	ErrCouponExpired     = errs.New("coupon has expired")
)

// CouponCommands drives the wallet-side instance lifecycle:
// redeemed -> active -> used, with lazy-persisted expiry.
type CouponCommands interface {
	Activate(ctx context.Context, memberID uuid.UUID, instanceID uuid.UUID) (*queries.CouponView, error)
	Use(ctx context.Context, memberID uuid.UUID, code string) (*queries.CouponView, error)
}

type couponUseCaseImpl struct {
	uow              shared.UnitOfWork
	clock            clock.Clock
	activationWindow time.Duration
}

func NewCouponUseCase(uow shared.UnitOfWork, clock clock.Clock, activationWindow time.Duration) CouponCommands {
	return &couponUseCaseImpl{
		uow:              uow,
		clock:            clock,
		activationWindow: activationWindow,
	}
}

func (c *couponUseCaseImpl) Activate(ctx context.Context, memberID uuid.UUID, instanceID uuid.UUID) (*queries.CouponView, error) {
	now := c.clock.Now()

	var (
		view    *queries.CouponView
		expired bool
	)
	err := c.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		inst, err := tx.Instances().GetForUpdate(ctx, instanceID)
		if err != nil {
			if infra.IsKind(err, infra.KindNotFound) {
				return ErrInstanceNotFound
			}
			return errs.Mark(err, ErrDatabaseOperationFailed)
		}

		if err := inst.CheckOwner(memberID); err != nil {
			return ErrForbidden
		}

		expired, err = c.transition(ctx, tx, inst, func() error {
			return inst.Activate(now, c.activationWindow)
		}, now)
		if err != nil || expired {
			return err
		}

		view = queries.NewCouponView(inst, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, ErrCouponExpired
	}
	return view, nil
}

func (c *couponUseCaseImpl) Use(ctx context.Context, memberID uuid.UUID, code string) (*queries.CouponView, error) {
	now := c.clock.Now()

	var (
		view    *queries.CouponView
		expired bool
	)
	err := c.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		inst, err := tx.Instances().GetByCodeForUpdate(ctx, code)
		if err != nil {
			if infra.IsKind(err, infra.KindNotFound) {
				return ErrInstanceNotFound
			}
			return errs.Mark(err, ErrDatabaseOperationFailed)
		}

		if err := inst.CheckOwner(memberID); err != nil {
			return ErrForbidden
		}

		expired, err = c.transition(ctx, tx, inst, func() error {
			return inst.Use(now)
		}, now)
		if err != nil || expired {
			return err
		}

		// Best-effort reporting counter; never reduced, not safety-critical.
		if err := tx.Templates().IncrementUsed(ctx, inst.TemplateID); err != nil {
			return errs.Mark(err, ErrDatabaseOperationFailed)
		}

		snap, err := tx.Balances().GetOrCreate(ctx, inst.MemberID)
		if err != nil {
			return errs.Mark(err, ErrDatabaseOperationFailed)
		}

		instID := inst.ID
		entry := &ledger.Entry{
			ID:           uuid.New(),
			MemberID:     inst.MemberID,
			Kind:         ledger.KindUse,
			Outcome:      ledger.OutcomeSuccess,
			Deltas:       balance.Deltas{},
			BalanceAfter: snap,
			InstanceID:   &instID,
			Description:  "use " + inst.Title,
			CreatedAt:    now,
		}
		if err := tx.Ledger().Append(ctx, entry); err != nil {
			return errs.Mark(err, ErrDatabaseOperationFailed)
		}

		view = queries.NewCouponView(inst, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, ErrCouponExpired
	}
	return view, nil
}

// transition applies a state-machine move and persists it. An observed
// derived expiry is persisted too, so the uniqueness slot frees up and later
// calls fail fast on the stored status. The expired flag signals the caller
// to commit the transaction (keeping the persisted flip) and still report
// the coupon as expired.
func (c *couponUseCaseImpl) transition(ctx context.Context, tx shared.Tx, inst *coupon.Instance, move func() error, now time.Time) (bool, error) {
	if err := move(); err != nil {
		if errors.Is(err, coupon.ErrExpired) {
			if inst.MarkExpired(now) {
				if saveErr := tx.Instances().SaveStatus(ctx, inst); saveErr != nil {
					return false, errs.Mark(saveErr, ErrDatabaseOperationFailed)
				}
			}
			return true, nil
		}
		return false, errs.Mark(err, ErrInvalidTransition)
	}

	if err := tx.Instances().SaveStatus(ctx, inst); err != nil {
		return false, errs.Mark(err, ErrDatabaseOperationFailed)
	}
	return false, nil
}
