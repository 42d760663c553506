package commands

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"loyalty-core/internal/domain/balance"
	"loyalty-core/internal/domain/coupon"
	"loyalty-core/internal/domain/ledger"
	"loyalty-core/internal/domain/reward"
	"loyalty-core/internal/infra"
	"loyalty-core/internal/pkg/clock"
	"loyalty-core/internal/pkg/errs"
	"loyalty-core/internal/pkg/token"
	"loyalty-core/internal/usecase/queries"
	"loyalty-core/internal/usecase/shared"

	"github.com/google/uuid"
)

var (
	ErrRewardNotFound          = errs.New("reward not found")
	ErrWrongRewardType         = errs.New("reward is not a coupon reward")
	ErrTemplateInactive        = errs.New("coupon template is inactive")
	ErrCatalogExpired          = errs.New("coupon template has expired")
	ErrOutOfStock              = errs.New("coupon template is out of stock")
	ErrInsufficientPoints      = errs.New("insufficient points")
	ErrStoreConflict           = errs.New("storage conflict, retry the request")
	ErrDatabaseOperationFailed = errs.New("database operation failed")
)

type RedeemResult struct {
	Coupon  *queries.CouponView
	Balance balance.Snapshot
	// Replayed is true when an existing non-terminal instance short-circuited
	// the request; no stock or points moved.
	Replayed bool
}

type RedemptionCommands interface {
	Redeem(ctx context.Context, memberID uuid.UUID, rewardKey string, mode coupon.RedeemMode) (*RedeemResult, error)
}

type redemptionUseCaseImpl struct {
	catalog          reward.Catalog
	uow              shared.UnitOfWork
	clock            clock.Clock
	activationWindow time.Duration
}

func NewRedemptionUseCase(
	catalog reward.Catalog,
	uow shared.UnitOfWork,
	clock clock.Clock,
	activationWindow time.Duration,
) RedemptionCommands {
	return &redemptionUseCaseImpl{
		catalog:          catalog,
		uow:              uow,
		clock:            clock,
		activationWindow: activationWindow,
	}
}

func (r *redemptionUseCaseImpl) Redeem(
	ctx context.Context,
	memberID uuid.UUID,
	rewardKey string,
	mode coupon.RedeemMode,
) (*RedeemResult, error) {
	def, err := r.resolveReward(ctx, rewardKey)
	if err != nil {
		return nil, err
	}

	// Idempotency short-circuit: a live instance for this (member, reward)
	// means a previous request already paid. Return it unchanged.
	if existing, err := r.findLiveInstance(ctx, memberID, rewardKey); err != nil {
		return nil, err
	} else if existing != nil {
		bal, err := r.uow.CommandReads().BalanceByMember(ctx, memberID)
		if err != nil {
			return nil, errs.Mark(err, ErrDatabaseOperationFailed)
		}
		return &RedeemResult{
			Coupon:   queries.NewCouponView(existing, r.clock.Now()),
			Balance:  *bal,
			Replayed: true,
		}, nil
	}

	result, err := r.executeRedemption(ctx, memberID, def, mode)
	if err != nil {
		if errors.Is(err, ErrInsufficientPoints) {
			// Audit trail for the rejected attempt; the aborted transaction
			// rolled everything else back.
			r.recordFailedAttempt(ctx, memberID, def)
		}
		return nil, err
	}
	return result, nil
}

func (r *redemptionUseCaseImpl) resolveReward(ctx context.Context, rewardKey string) (*reward.Definition, error) {
	def, err := r.catalog.FindByKey(ctx, rewardKey)
	if err != nil {
		return nil, errs.Mark(err, ErrRewardNotFound)
	}
	if !def.IsCoupon() {
		return nil, ErrWrongRewardType
	}
	return def, nil
}

func (r *redemptionUseCaseImpl) findLiveInstance(ctx context.Context, memberID uuid.UUID, rewardKey string) (*coupon.Instance, error) {
	inst, err := r.uow.CommandReads().NonTerminalInstance(ctx, memberID, rewardKey)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, nil
		}
		return nil, errs.Mark(err, ErrDatabaseOperationFailed)
	}
	// A row that only *looks* live: derived expiry makes it terminal, and the
	// transaction below will persist that before issuing a fresh instance.
	if inst.EffectiveStatus(r.clock.Now()) != inst.Status {
		return nil, nil
	}
	return inst, nil
}

// executeRedemption runs the all-or-nothing block: reserve stock, debit the
// balance, create the instance, journal the result.
func (r *redemptionUseCaseImpl) executeRedemption(
	ctx context.Context,
	memberID uuid.UUID,
	def *reward.Definition,
	mode coupon.RedeemMode,
) (*RedeemResult, error) {
	now := r.clock.Now()

	code, err := token.NewCouponCode()
	if err != nil {
		return nil, errs.Mark(err, ErrDatabaseOperationFailed)
	}
	qrPayload, err := token.NewQRPayload()
	if err != nil {
		return nil, errs.Mark(err, ErrDatabaseOperationFailed)
	}

	var result *RedeemResult
	txErr := r.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		tpl, err := tx.Templates().Ensure(ctx, def)
		if err != nil {
			return errs.Mark(err, ErrDatabaseOperationFailed)
		}

		// Free the uniqueness slot held by a stale instance before checking
		// for a live one inside the transaction (closes the race with the
		// pre-transaction read).
		if err := tx.Instances().ExpireStale(ctx, memberID, def.Key, now); err != nil {
			return errs.Mark(err, ErrDatabaseOperationFailed)
		}

		tpl, err = tx.Templates().ReserveStock(ctx, tpl.ID, now)
		if err != nil {
			switch {
			case infra.IsKind(err, infra.KindOutOfStock):
				return ErrOutOfStock
			case infra.IsKind(err, infra.KindInactive):
				return ErrTemplateInactive
			case infra.IsKind(err, infra.KindExpired):
				return ErrCatalogExpired
			}
			return errs.Mark(err, ErrDatabaseOperationFailed)
		}

		snap, err := r.debit(ctx, tx, memberID, tpl)
		if err != nil {
			return err
		}

		inst := newInstance(memberID, tpl, mode, code, qrPayload, now, r.activationWindow)
		if err := tx.Instances().Create(ctx, inst); err != nil {
			if infra.IsKind(err, infra.KindDuplicateKey) {
				// A concurrent request won the uniqueness race. Abort our
				// effects; the caller re-reads the winner's instance.
				return errs.Mark(err, ErrStoreConflict)
			}
			return errs.Mark(err, ErrDatabaseOperationFailed)
		}

		instID := inst.ID
		entry := &ledger.Entry{
			ID:           uuid.New(),
			MemberID:     memberID,
			Kind:         ledger.KindRedeem,
			Outcome:      ledger.OutcomeSuccess,
			Deltas:       balance.Single(inst.CategoryUsed, -tpl.PointCost),
			BalanceAfter: snap,
			InstanceID:   &instID,
			Description:  "redeem " + tpl.Title,
			CreatedAt:    now,
		}
		if err := tx.Ledger().Append(ctx, entry); err != nil {
			return errs.Mark(err, ErrDatabaseOperationFailed)
		}

		result = &RedeemResult{
			Coupon:  queries.NewCouponView(inst, now),
			Balance: snap,
		}
		return nil
	})

	if txErr != nil {
		if errors.Is(txErr, ErrStoreConflict) {
			// Idempotent replay of the race winner.
			if existing, err := r.findLiveInstance(ctx, memberID, def.Key); err == nil && existing != nil {
				bal, err := r.uow.CommandReads().BalanceByMember(ctx, memberID)
				if err != nil {
					return nil, errs.Mark(err, ErrDatabaseOperationFailed)
				}
				return &RedeemResult{
					Coupon:   queries.NewCouponView(existing, r.clock.Now()),
					Balance:  *bal,
					Replayed: true,
				}, nil
			}
		}
		return nil, txErr
	}
	return result, nil
}

func (r *redemptionUseCaseImpl) debit(ctx context.Context, tx shared.Tx, memberID uuid.UUID, tpl *coupon.Template) (balance.Snapshot, error) {
	if tpl.PointCost == 0 {
		snap, err := tx.Balances().GetOrCreate(ctx, memberID)
		if err != nil {
			return balance.Snapshot{}, errs.Mark(err, ErrDatabaseOperationFailed)
		}
		return snap, nil
	}

	if _, err := tx.Balances().GetOrCreate(ctx, memberID); err != nil {
		return balance.Snapshot{}, errs.Mark(err, ErrDatabaseOperationFailed)
	}

	snap, err := tx.Balances().Adjust(ctx, memberID, balance.Single(payingCategory(tpl), -tpl.PointCost))
	if err != nil {
		if infra.IsKind(err, infra.KindInsufficientBalance) {
			return balance.Snapshot{}, ErrInsufficientPoints
		}
		return balance.Snapshot{}, errs.Mark(err, ErrDatabaseOperationFailed)
	}
	return snap, nil
}

// payingCategory picks the bucket that pays: the template's eligible
// category, defaulting to the bank line for templates payable from any.
func payingCategory(tpl *coupon.Template) balance.Category {
	if tpl.EligibleCategory == balance.CategoryAny {
		return balance.CategoryBank
	}
	return tpl.EligibleCategory
}

func newInstance(
	memberID uuid.UUID,
	tpl *coupon.Template,
	mode coupon.RedeemMode,
	code, qrPayload string,
	now time.Time,
	window time.Duration,
) *coupon.Instance {
	inst := &coupon.Instance{
		ID:           uuid.New(),
		MemberID:     memberID,
		TemplateID:   tpl.ID,
		RewardKey:    tpl.RewardKey,
		Title:        tpl.Title,
		Description:  tpl.Description,
		ImageURL:     tpl.ImageURL,
		CategoryUsed: payingCategory(tpl),
		CostPaid:     tpl.PointCost,
		Status:       coupon.StatusRedeemed,
		Code:         code,
		QRPayload:    qrPayload,
		IssuedAt:     now,
		ValidUntil:   tpl.ExpiresAt,
	}
	if mode == coupon.ModeNow {
		activatedAt := now
		expiresAt := now.Add(window)
		inst.Status = coupon.StatusActive
		inst.ActivatedAt = &activatedAt
		inst.ActiveExpiresAt = &expiresAt
	}
	return inst
}

// recordFailedAttempt journals the rejected debit with the unchanged balance.
// Runs outside the aborted transaction; failure here only loses audit detail.
func (r *redemptionUseCaseImpl) recordFailedAttempt(ctx context.Context, memberID uuid.UUID, def *reward.Definition) {
	bal, err := r.uow.CommandReads().BalanceByMember(ctx, memberID)
	if err != nil {
		slog.Warn("failed to read balance for failed-redeem ledger entry", "error", err.Error())
		return
	}

	entry := &ledger.Entry{
		ID:           uuid.New(),
		MemberID:     memberID,
		Kind:         ledger.KindRedeem,
		Outcome:      ledger.OutcomeFailed,
		Deltas:       balance.Deltas{},
		BalanceAfter: *bal,
		Description:  "redeem " + def.Title + ": insufficient points",
		CreatedAt:    r.clock.Now(),
	}

	if err := r.uow.Journal().Append(ctx, entry); err != nil {
		slog.Warn("failed to record failed-redeem ledger entry", "error", err.Error())
	}
}
