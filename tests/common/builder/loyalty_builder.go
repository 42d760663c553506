//go:build unit || e2e

package builder

import (
	"time"

	reqdto "loyalty-core/internal/handler/dto/request"
	"loyalty-core/internal/usecase/queries"

	"github.com/google/uuid"
)

// CouponBuilder produces coupon fixtures with sensible defaults; override
// fields through With before calling a Build method.
type CouponBuilder struct {
	ID           uuid.UUID
	MemberID     uuid.UUID
	RewardKey    string
	Title        string
	CategoryUsed string
	CostPaid     int64
	Status       string
	Code         string
	IssuedAt     time.Time
	ValidUntil   time.Time
}

func NewCouponBuilder() *CouponBuilder {
	now := time.Now()
	return &CouponBuilder{
		ID:           uuid.New(),
		MemberID:     uuid.New(),
		RewardKey:    "coffee-voucher",
		Title:        "Coffee Voucher",
		CategoryUsed: "bank",
		CostPaid:     10,
		Status:       "redeemed",
		Code:         "CP-TEST0001",
		IssuedAt:     now,
		ValidUntil:   now.Add(30 * 24 * time.Hour),
	}
}

func (b *CouponBuilder) With(mutate func(*CouponBuilder)) *CouponBuilder {
	mutate(b)
	return b
}

func (b *CouponBuilder) BuildView() *queries.CouponView {
	return &queries.CouponView{
		ID:           b.ID,
		RewardKey:    b.RewardKey,
		Title:        b.Title,
		CategoryUsed: b.CategoryUsed,
		CostPaid:     b.CostPaid,
		Status:       b.Status,
		Code:         b.Code,
		QRPayload:    "loyalty://coupon/" + b.Code,
		IssuedAt:     b.IssuedAt,
		ValidUntil:   b.ValidUntil,
	}
}

func (b *CouponBuilder) BuildUseRequestDTO() reqdto.UseCouponRequest {
	return reqdto.UseCouponRequest{Code: b.Code}
}

// BalanceBuilder produces balance view fixtures.
type BalanceBuilder struct {
	MemberID  uuid.UUID
	Bank      int64
	Wealth    int64
	Insurance int64
	UpdatedAt time.Time
}

func NewBalanceBuilder() *BalanceBuilder {
	return &BalanceBuilder{
		MemberID:  uuid.New(),
		Bank:      100,
		Wealth:    50,
		Insurance: 25,
		UpdatedAt: time.Now(),
	}
}

func (b *BalanceBuilder) With(mutate func(*BalanceBuilder)) *BalanceBuilder {
	mutate(b)
	return b
}

func (b *BalanceBuilder) BuildView() *queries.BalanceView {
	return &queries.BalanceView{
		MemberID:  b.MemberID,
		Bank:      b.Bank,
		Wealth:    b.Wealth,
		Insurance: b.Insurance,
		Total:     b.Bank + b.Wealth + b.Insurance,
		UpdatedAt: b.UpdatedAt,
	}
}

// TransferBuilder produces transfer request fixtures.
type TransferBuilder struct {
	From   string
	To     string
	Amount int64
}

func NewTransferBuilder() *TransferBuilder {
	return &TransferBuilder{From: "bank", To: "wealth", Amount: 30}
}

func (b *TransferBuilder) With(mutate func(*TransferBuilder)) *TransferBuilder {
	mutate(b)
	return b
}

func (b *TransferBuilder) BuildRequestDTO() reqdto.TransferRequest {
	return reqdto.TransferRequest{From: b.From, To: b.To, Amount: b.Amount}
}

// LedgerEntryBuilder produces history view fixtures.
type LedgerEntryBuilder struct {
	ID        uuid.UUID
	Kind      string
	Outcome   string
	BankDelta int64
	CreatedAt time.Time
}

func NewLedgerEntryBuilder() *LedgerEntryBuilder {
	return &LedgerEntryBuilder{
		ID:        uuid.New(),
		Kind:      "redeem",
		Outcome:   "success",
		BankDelta: -10,
		CreatedAt: time.Now(),
	}
}

func (b *LedgerEntryBuilder) With(mutate func(*LedgerEntryBuilder)) *LedgerEntryBuilder {
	mutate(b)
	return b
}

func (b *LedgerEntryBuilder) BuildView() *queries.LedgerEntryView {
	return &queries.LedgerEntryView{
		ID:          b.ID,
		Kind:        b.Kind,
		Outcome:     b.Outcome,
		BankDelta:   b.BankDelta,
		BankAfter:   100 + b.BankDelta,
		TotalAfter:  100 + b.BankDelta,
		Description: "test entry",
		CreatedAt:   b.CreatedAt,
	}
}
