package transport

import (
	"time"

	"plumbing_backend/internal/vouchers/repository"
)

// RedeemRequest is the body of POST /api/vouchers/redeem. JobAmount is in cents.
type RedeemRequest struct {
	Code      string `json:"code" validate:"required,max=32"`
	JobAmount int64  `json:"jobAmount" validate:"min=0"`
}

// VoucherResponse is the staff-facing voucher view.
type VoucherResponse struct {
	Code                   string     `json:"code"`
	VoucherType            string     `json:"voucherType"`
	CustomerID             *int64     `json:"customerId,omitempty"`
	CustomerName           string     `json:"customerName"`
	DiscountAmount         int64      `json:"discountAmount"`
	MinimumJobAmount       int64      `json:"minimumJobAmount"`
	Status                 string     `json:"status"`
	ExpiresAt              time.Time  `json:"expiresAt"`
	RedeemedAt             *time.Time `json:"redeemedAt,omitempty"`
	RedeemedJobAmountCents *int64     `json:"redeemedJobAmount,omitempty"`
}

// LookupResponse wraps a voucher.
type LookupResponse struct {
	Voucher VoucherResponse `json:"voucher"`
}

// FromVoucher maps a voucher row.
func FromVoucher(v repository.Voucher) VoucherResponse {
	return VoucherResponse{
		Code:                   v.Code,
		VoucherType:            v.VoucherType,
		CustomerID:             v.CustomerID,
		CustomerName:           v.CustomerName,
		DiscountAmount:         v.DiscountAmountCents,
		MinimumJobAmount:       v.MinimumJobAmountCents,
		Status:                 v.Status,
		ExpiresAt:              v.ExpiresAt,
		RedeemedAt:             v.RedeemedAt,
		RedeemedJobAmountCents: v.RedeemedJobAmountCents,
	}
}
