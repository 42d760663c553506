package response

import (
	"time"

	"loyalty-core/internal/domain/balance"
	"loyalty-core/internal/usecase/commands"
	"loyalty-core/internal/usecase/queries"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
)

type BalanceResponse struct {
	MemberID  uuid.UUID `json:"memberId"`
	Bank      int64     `json:"bank"`
	Wealth    int64     `json:"wealth"`
	Insurance int64     `json:"insurance"`
	Total     int64     `json:"total"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type CouponResponse struct {
	ID              uuid.UUID  `json:"id"`
	RewardKey       string     `json:"rewardKey"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	ImageURL        string     `json:"imageUrl,omitempty"`
	CategoryUsed    string     `json:"categoryUsed"`
	CostPaid        int64      `json:"costPaid"`
	Status          string     `json:"status"`
	Code            string     `json:"code"`
	QRPayload       string     `json:"qrPayload"`
	IssuedAt        time.Time  `json:"issuedAt"`
	ActivatedAt     *time.Time `json:"activatedAt,omitempty"`
	UsedAt          *time.Time `json:"usedAt,omitempty"`
	ActiveExpiresAt *time.Time `json:"activeExpiresAt,omitempty"`
	ValidUntil      time.Time  `json:"validUntil"`
}

type RedeemResponse struct {
	Coupon   *CouponResponse  `json:"coupon"`
	Balance  *BalanceSnapshot `json:"balance"`
	Replayed bool             `json:"replayed"`
}

type BalanceSnapshot struct {
	Bank      int64 `json:"bank"`
	Wealth    int64 `json:"wealth"`
	Insurance int64 `json:"insurance"`
	Total     int64 `json:"total"`
}

type TransferResponse struct {
	Balance        *BalanceSnapshot `json:"balance"`
	CorrelationRef uuid.UUID        `json:"correlationRef"`
}

type LedgerEntryResponse struct {
	ID             uuid.UUID  `json:"id"`
	Kind           string     `json:"kind"`
	Outcome        string     `json:"outcome"`
	BankDelta      int64      `json:"bankDelta"`
	WealthDelta    int64      `json:"wealthDelta"`
	InsuranceDelta int64      `json:"insuranceDelta"`
	TotalAfter     int64      `json:"totalAfter"`
	InstanceID     *uuid.UUID `json:"couponInstanceId,omitempty"`
	Description    string     `json:"description,omitempty"`
	CorrelationRef *uuid.UUID `json:"correlationRef,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

type HistoryResponse struct {
	Entries    []*LedgerEntryResponse `json:"entries"`
	NextCursor string                 `json:"nextCursor,omitempty"`
}

func FromBalanceView(v *queries.BalanceView) *BalanceResponse {
	var resp BalanceResponse
	_ = copier.Copy(&resp, v)
	return &resp
}

func FromCouponView(v *queries.CouponView) *CouponResponse {
	var resp CouponResponse
	_ = copier.Copy(&resp, v)
	return &resp
}

func FromCouponViews(views []*queries.CouponView) []*CouponResponse {
	resps := make([]*CouponResponse, 0, len(views))
	for _, v := range views {
		resps = append(resps, FromCouponView(v))
	}
	return resps
}

func FromRedeemResult(r *commands.RedeemResult) *RedeemResponse {
	return &RedeemResponse{
		Coupon:   FromCouponView(r.Coupon),
		Balance:  fromSnapshot(r.Balance),
		Replayed: r.Replayed,
	}
}

func FromTransferResult(r *commands.TransferResult) *TransferResponse {
	return &TransferResponse{
		Balance:        fromSnapshot(r.Balance),
		CorrelationRef: r.CorrelationRef,
	}
}

func FromLedgerEntryView(v *queries.LedgerEntryView) *LedgerEntryResponse {
	var resp LedgerEntryResponse
	_ = copier.Copy(&resp, v)
	return &resp
}

func FromLedgerEntryViews(views []*queries.LedgerEntryView, next *queries.Cursor) *HistoryResponse {
	resp := &HistoryResponse{
		Entries: make([]*LedgerEntryResponse, 0, len(views)),
	}
	for _, v := range views {
		resp.Entries = append(resp.Entries, FromLedgerEntryView(v))
	}
	if next != nil {
		resp.NextCursor = next.After
	}
	return resp
}

func fromSnapshot(s balance.Snapshot) *BalanceSnapshot {
	return &BalanceSnapshot{
		Bank:      s.Bank,
		Wealth:    s.Wealth,
		Insurance: s.Insurance,
		Total:     s.Total,
	}
}
