package transport

import (
	"time"

	"plumbing_backend/internal/referrals/repository"
	vouchertransport "plumbing_backend/internal/vouchers/transport"

	"github.com/google/uuid"
)

// LandingRequest carries optional referee details from the landing form.
type LandingRequest struct {
	RefereeName  string `json:"refereeName" validate:"max=200"`
	RefereeEmail string `json:"refereeEmail" validate:"omitempty,email"`
	RefereePhone string `json:"refereePhone" validate:"max=32"`
}

// LandingResponse returns the tracking token also set as a cookie.
type LandingResponse struct {
	Token        string `json:"token"`
	ReferrerName string `json:"referrerName"`
}

// SubmitRequest is a manual referral submission.
type SubmitRequest struct {
	ReferralCode string `json:"referralCode" validate:"required,max=64"`
	RefereeName  string `json:"refereeName" validate:"required,max=200"`
	RefereePhone string `json:"refereePhone" validate:"max=32"`
	RefereeEmail string `json:"refereeEmail" validate:"omitempty,email"`
}

// SubmitResponse is returned after a manual submission.
type SubmitResponse struct {
	ReferralID uuid.UUID `json:"referralId"`
	Token      string    `json:"token"`
}

// JobCompletedRequest is the ServiceTitan job completion webhook payload.
type JobCompletedRequest struct {
	JobID       int64     `json:"jobId" validate:"required,gt=0"`
	TotalCents  int64     `json:"totalCents" validate:"gte=0"`
	CompletedOn time.Time `json:"completedOn"`
}

// JobCompletedResponse reports whether the job belonged to a referral.
type JobCompletedResponse struct {
	Matched    bool       `json:"matched"`
	ReferralID *uuid.UUID `json:"referralId,omitempty"`
}

// CreditRequest credits a referral. AmountCents defaults to the configured credit.
type CreditRequest struct {
	AmountCents *int64 `json:"amountCents" validate:"omitempty,gt=0"`
	Notes       string `json:"notes" validate:"max=2000"`
}

// IneligibleRequest rules a referral out.
type IneligibleRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

// CreditResponse returns the credited referral and its voucher.
type CreditResponse struct {
	Referral ReferralResponse                 `json:"referral"`
	Voucher  vouchertransport.VoucherResponse `json:"voucher"`
}

// ReferralResponse is the admin view of a referral.
type ReferralResponse struct {
	ID                 uuid.UUID  `json:"id"`
	ReferrerName       string     `json:"referrerName"`
	ReferrerPhone      string     `json:"referrerPhone"`
	ReferrerCustomerID *int64     `json:"referrerCustomerId,omitempty"`
	RefereeName        string     `json:"refereeName"`
	RefereePhone       string     `json:"refereePhone"`
	RefereeEmail       *string    `json:"refereeEmail,omitempty"`
	RefereeCustomerID  *int64     `json:"refereeCustomerId,omitempty"`
	Status             string     `json:"status"`
	FirstJobID         *int64     `json:"firstJobId,omitempty"`
	FirstJobDate       *time.Time `json:"firstJobDate,omitempty"`
	JobAmountCents     *int64     `json:"jobAmount,omitempty"`
	CreditStatus       *string    `json:"creditStatus,omitempty"`
	CreditAmountCents  *int64     `json:"creditAmount,omitempty"`
	CreditIssuedAt     *time.Time `json:"creditIssuedAt,omitempty"`
	CreditNotes        *string    `json:"creditNotes,omitempty"`
	SubmittedAt        time.Time  `json:"submittedAt"`
	ContactedAt        *time.Time `json:"contactedAt,omitempty"`
	JobCompletedAt     *time.Time `json:"jobCompletedAt,omitempty"`
}

// ListResponse wraps the admin listing.
type ListResponse struct {
	Items []ReferralResponse `json:"items"`
}

// FromReferral maps a referral row to its response.
func FromReferral(r repository.Referral) ReferralResponse {
	return ReferralResponse{
		ID:                 r.ID,
		ReferrerName:       r.ReferrerName,
		ReferrerPhone:      r.ReferrerPhone,
		ReferrerCustomerID: r.ReferrerCustomerID,
		RefereeName:        r.RefereeName,
		RefereePhone:       r.RefereePhone,
		RefereeEmail:       r.RefereeEmail,
		RefereeCustomerID:  r.RefereeCustomerID,
		Status:             r.Status,
		FirstJobID:         r.FirstJobID,
		FirstJobDate:       r.FirstJobDate,
		JobAmountCents:     r.JobAmountCents,
		CreditStatus:       r.CreditStatus,
		CreditAmountCents:  r.CreditAmountCents,
		CreditIssuedAt:     r.CreditIssuedAt,
		CreditNotes:        r.CreditNotes,
		SubmittedAt:        r.SubmittedAt,
		ContactedAt:        r.ContactedAt,
		JobCompletedAt:     r.JobCompletedAt,
	}
}
