package request

import (
	"strings"

	"loyalty-core/internal/domain/coupon"
)

type RedeemRequest struct {
	// Mode defaults to "later" (keep in wallet); "now" activates on issue.
	Mode string `json:"mode,omitempty"`
}

func (r RedeemRequest) RedeemMode() (coupon.RedeemMode, error) {
	if strings.TrimSpace(r.Mode) == "" {
		return coupon.ModeLater, nil
	}
	return coupon.NewRedeemMode(strings.TrimSpace(r.Mode))
}

type UseCouponRequest struct {
	Code string `json:"code" binding:"required"`
}

func (r UseCouponRequest) TrimmedCode() string {
	return strings.TrimSpace(r.Code)
}

type TransferRequest struct {
	From   string `json:"from" binding:"required"`
	To     string `json:"to" binding:"required"`
	Amount int64  `json:"amount" binding:"required"`
}
