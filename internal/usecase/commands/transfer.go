package commands

import (
	"context"
	"errors"
	"log/slog"

	"loyalty-core/internal/domain/balance"
	"loyalty-core/internal/domain/ledger"
	"loyalty-core/internal/infra"
	"loyalty-core/internal/pkg/clock"
	"loyalty-core/internal/pkg/errs"
	"loyalty-core/internal/usecase/shared"

	"github.com/google/uuid"
)

// ExternalSink is the transfer destination for points leaving the program.
// It is not a balance category; points sent there are simply debited.
const ExternalSink = "partner"

var (
	ErrSameCategory        = errs.New("transfer source and destination are the same")
	ErrInvalidAmount       = errs.New("transfer amount must be positive")
	ErrInvalidCategory     = errs.New("unknown balance category")
	ErrInsufficientBalance = errs.New("insufficient balance for transfer")
)

type TransferResult struct {
	Balance        balance.Snapshot
	CorrelationRef uuid.UUID
}

type TransferCommands interface {
	Transfer(ctx context.Context, memberID uuid.UUID, from, to string, amount int64) (*TransferResult, error)
}

type transferUseCaseImpl struct {
	uow   shared.UnitOfWork
	clock clock.Clock
}

func NewTransferUseCase(uow shared.UnitOfWork, clock clock.Clock) TransferCommands {
	return &transferUseCaseImpl{uow: uow, clock: clock}
}

func (t *transferUseCaseImpl) Transfer(
	ctx context.Context,
	memberID uuid.UUID,
	from, to string,
	amount int64,
) (*TransferResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if from == to {
		return nil, ErrSameCategory
	}

	src, err := balance.NewCategory(from)
	if err != nil || src == balance.CategoryAny {
		return nil, ErrInvalidCategory
	}

	external := to == ExternalSink
	var dst balance.Category
	if !external {
		dst, err = balance.NewCategory(to)
		if err != nil || dst == balance.CategoryAny {
			return nil, ErrInvalidCategory
		}
	}

	deltas := balance.Single(src, -amount)
	if !external {
		deltas = sumDeltas(deltas, balance.Single(dst, amount))
	}

	result, err := t.execute(ctx, memberID, src, dst, external, amount, deltas)
	if err != nil {
		if errors.Is(err, ErrInsufficientBalance) {
			t.recordFailedTransfer(ctx, memberID, deltas)
		}
		return nil, err
	}
	return result, nil
}

func (t *transferUseCaseImpl) execute(
	ctx context.Context,
	memberID uuid.UUID,
	src, dst balance.Category,
	external bool,
	amount int64,
	deltas balance.Deltas,
) (*TransferResult, error) {
	now := t.clock.Now()
	correlationRef := uuid.New()

	var result *TransferResult
	err := t.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		if _, err := tx.Balances().GetOrCreate(ctx, memberID); err != nil {
			return errs.Mark(err, ErrDatabaseOperationFailed)
		}

		snap, err := tx.Balances().Adjust(ctx, memberID, deltas)
		if err != nil {
			if infra.IsKind(err, infra.KindInsufficientBalance) {
				return ErrInsufficientBalance
			}
			return errs.Mark(err, ErrDatabaseOperationFailed)
		}

		out := &ledger.Entry{
			ID:             uuid.New(),
			MemberID:       memberID,
			Kind:           ledger.KindTransferOut,
			Outcome:        ledger.OutcomeSuccess,
			Deltas:         balance.Single(src, -amount),
			BalanceAfter:   snap,
			Description:    transferDescription(src.String(), transferTarget(dst, external)),
			CorrelationRef: &correlationRef,
			CreatedAt:      now,
		}
		if err := tx.Ledger().Append(ctx, out); err != nil {
			return errs.Mark(err, ErrDatabaseOperationFailed)
		}

		if !external {
			in := &ledger.Entry{
				ID:             uuid.New(),
				MemberID:       memberID,
				Kind:           ledger.KindTransferIn,
				Outcome:        ledger.OutcomeSuccess,
				Deltas:         balance.Single(dst, amount),
				BalanceAfter:   snap,
				Description:    transferDescription(src.String(), dst.String()),
				CorrelationRef: &correlationRef,
				CreatedAt:      now,
			}
			if err := tx.Ledger().Append(ctx, in); err != nil {
				return errs.Mark(err, ErrDatabaseOperationFailed)
			}
		}

		result = &TransferResult{Balance: snap, CorrelationRef: correlationRef}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// recordFailedTransfer journals the rejected move with the unchanged balance.
// Runs outside the aborted transaction; failure here only loses audit detail.
func (t *transferUseCaseImpl) recordFailedTransfer(ctx context.Context, memberID uuid.UUID, deltas balance.Deltas) {
	bal, err := t.uow.CommandReads().BalanceByMember(ctx, memberID)
	if err != nil {
		slog.Warn("failed to read balance for failed-transfer ledger entry", "error", err.Error())
		return
	}

	entry := &ledger.Entry{
		ID:           uuid.New(),
		MemberID:     memberID,
		Kind:         ledger.KindTransferOut,
		Outcome:      ledger.OutcomeFailed,
		Deltas:       deltas,
		BalanceAfter: *bal,
		Description:  "insufficient balance for transfer",
		CreatedAt:    t.clock.Now(),
	}
	if err := t.uow.Journal().Append(ctx, entry); err != nil {
		slog.Warn("failed to append failed-transfer ledger entry", "error", err.Error())
	}
}

func transferTarget(dst balance.Category, external bool) string {
	if external {
		return ExternalSink
	}
	return dst.String()
}

func transferDescription(from, to string) string {
	return "transfer " + from + " -> " + to
}

func sumDeltas(a, b balance.Deltas) balance.Deltas {
	return balance.Deltas{
		Bank:      a.Bank + b.Bank,
		Wealth:    a.Wealth + b.Wealth,
		Insurance: a.Insurance + b.Insurance,
	}
}
