// Package events provides domain event definitions for decoupled
// communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"plumbing_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Booking Domain Events
// =============================================================================

// BookingConfirmed is published after ServiceTitan accepted the job.
type BookingConfirmed struct {
	BaseEvent
	RequestID        uuid.UUID  `json:"requestId"`
	JobID            int64      `json:"jobId"`
	JobNumber        string     `json:"jobNumber"`
	CustomerName     string     `json:"customerName"`
	CustomerEmail    string     `json:"customerEmail"`
	RequestedService string     `json:"requestedService"`
	AppointmentStart *time.Time `json:"appointmentStart,omitempty"`
	ArrivalStart     *time.Time `json:"arrivalStart,omitempty"`
	ArrivalEnd       *time.Time `json:"arrivalEnd,omitempty"`
}

func (e BookingConfirmed) EventName() string { return "booking.confirmed" }

// =============================================================================
// Referral Domain Events
// =============================================================================

// ReferralConverted is published when a pending referral became a tracked referral at booking.
type ReferralConverted struct {
	BaseEvent
	ReferralID        uuid.UUID `json:"referralId"`
	PendingReferralID uuid.UUID `json:"pendingReferralId"`
	JobID             int64     `json:"jobId"`
	Created           bool      `json:"created"`
}

func (e ReferralConverted) EventName() string { return "referrals.referral.converted" }

// ReferralCompleted is published when the referee's first job is completed.
type ReferralCompleted struct {
	BaseEvent
	ReferralID        uuid.UUID `json:"referralId"`
	JobID             int64     `json:"jobId"`
	JobAmountCents    int64     `json:"jobAmountCents"`
	RefereeCustomerID *int64    `json:"refereeCustomerId,omitempty"`
	RefereeName       string    `json:"refereeName"`
	RefereeEmail      string    `json:"refereeEmail,omitempty"`
}

func (e ReferralCompleted) EventName() string { return "referrals.referral.completed" }

// ReferralCredited is published after staff credited a referrer and a voucher was issued.
type ReferralCredited struct {
	BaseEvent
	ReferralID          uuid.UUID `json:"referralId"`
	ReferrerCustomerID  *int64    `json:"referrerCustomerId,omitempty"`
	ReferrerName        string    `json:"referrerName"`
	ReferrerPhone       string    `json:"referrerPhone"`
	CreditAmountCents   int64     `json:"creditAmountCents"`
	VoucherCode         string    `json:"voucherCode,omitempty"`
	VoucherMinimumCents int64     `json:"voucherMinimumCents"`
	VoucherExpiresAt    time.Time `json:"voucherExpiresAt"`
}

func (e ReferralCredited) EventName() string { return "referrals.referral.credited" }

// =============================================================================
// Voucher Domain Events
// =============================================================================

// VoucherRedeemed is published when a voucher was applied to a job.
type VoucherRedeemed struct {
	BaseEvent
	VoucherID      uuid.UUID `json:"voucherId"`
	Code           string    `json:"code"`
	JobAmountCents int64     `json:"jobAmountCents"`
}

func (e VoucherRedeemed) EventName() string { return "vouchers.voucher.redeemed" }

// =============================================================================
// Review Domain Events
// =============================================================================

// ReviewReceived is published for newly synced positive reviews.
type ReviewReceived struct {
	BaseEvent
	ReviewID   string `json:"reviewId"`
	AuthorName string `json:"authorName"`
	Rating     int    `json:"rating"`
}

func (e ReviewReceived) EventName() string { return "reviews.review.received" }
