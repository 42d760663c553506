package queries

import (
	"time"

	"loyalty-core/internal/domain/balance"
	"loyalty-core/internal/domain/coupon"
	"loyalty-core/internal/domain/ledger"

	"github.com/google/uuid"
)

// Read models (DTO for read side)

type BalanceView struct {
	MemberID  uuid.UUID `json:"member_id"`
	Bank      int64     `json:"bank"`
	Wealth    int64     `json:"wealth"`
	Insurance int64     `json:"insurance"`
	Total     int64     `json:"total"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewBalanceView(memberID uuid.UUID, snap balance.Snapshot, updatedAt time.Time) *BalanceView {
	return &BalanceView{
		MemberID:  memberID,
		Bank:      snap.Bank,
		Wealth:    snap.Wealth,
		Insurance: snap.Insurance,
		Total:     snap.Total,
		UpdatedAt: updatedAt,
	}
}

type CouponView struct {
	ID              uuid.UUID  `json:"id"`
	RewardKey       string     `json:"reward_key"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	ImageURL        string     `json:"image_url,omitempty"`
	CategoryUsed    string     `json:"category_used"`
	CostPaid        int64      `json:"cost_paid"`
	Status          string     `json:"status"`
	Code            string     `json:"code"`
	QRPayload       string     `json:"qr_payload"`
	IssuedAt        time.Time  `json:"issued_at"`
	ActivatedAt     *time.Time `json:"activated_at,omitempty"`
	UsedAt          *time.Time `json:"used_at,omitempty"`
	ActiveExpiresAt *time.Time `json:"active_expires_at,omitempty"`
	ValidUntil      time.Time  `json:"valid_until"`
}

// NewCouponView projects an instance with its status derived at read time.
func NewCouponView(inst *coupon.Instance, now time.Time) *CouponView {
	return &CouponView{
		ID:              inst.ID,
		RewardKey:       inst.RewardKey,
		Title:           inst.Title,
		Description:     inst.Description,
		ImageURL:        inst.ImageURL,
		CategoryUsed:    inst.CategoryUsed.String(),
		CostPaid:        inst.CostPaid,
		Status:          string(inst.EffectiveStatus(now)),
		Code:            inst.Code,
		QRPayload:       inst.QRPayload,
		IssuedAt:        inst.IssuedAt,
		ActivatedAt:     inst.ActivatedAt,
		UsedAt:          inst.UsedAt,
		ActiveExpiresAt: inst.ActiveExpiresAt,
		ValidUntil:      inst.ValidUntil,
	}
}

type LedgerEntryView struct {
	ID             uuid.UUID  `json:"id"`
	Kind           string     `json:"kind"`
	Outcome        string     `json:"outcome"`
	BankDelta      int64      `json:"bank_delta"`
	WealthDelta    int64      `json:"wealth_delta"`
	InsuranceDelta int64      `json:"insurance_delta"`
	BankAfter      int64      `json:"bank_after"`
	WealthAfter    int64      `json:"wealth_after"`
	InsuranceAfter int64      `json:"insurance_after"`
	TotalAfter     int64      `json:"total_after"`
	InstanceID     *uuid.UUID `json:"coupon_instance_id,omitempty"`
	Description    string     `json:"description,omitempty"`
	CorrelationRef *uuid.UUID `json:"correlation_ref,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func NewLedgerEntryView(e *ledger.Entry) *LedgerEntryView {
	return &LedgerEntryView{
		ID:             e.ID,
		Kind:           string(e.Kind),
		Outcome:        string(e.Outcome),
		BankDelta:      e.Deltas.Bank,
		WealthDelta:    e.Deltas.Wealth,
		InsuranceDelta: e.Deltas.Insurance,
		BankAfter:      e.BalanceAfter.Bank,
		WealthAfter:    e.BalanceAfter.Wealth,
		InsuranceAfter: e.BalanceAfter.Insurance,
		TotalAfter:     e.BalanceAfter.Total,
		InstanceID:     e.InstanceID,
		Description:    e.Description,
		CorrelationRef: e.CorrelationRef,
		CreatedAt:      e.CreatedAt,
	}
}
