package service

import (
	"context"
	"strings"
	"time"

	"plumbing_backend/internal/events"
	"plumbing_backend/internal/referrals/repository"
	"plumbing_backend/platform/apperr"
	"plumbing_backend/platform/phone"

	"github.com/google/uuid"
)

// OutcomeStatus describes what a conversion attempt did.
type OutcomeStatus string

const (
	OutcomeConverted        OutcomeStatus = "converted"
	OutcomeNoToken          OutcomeStatus = "no_token"
	OutcomeNotFound         OutcomeStatus = "not_found"
	OutcomeAlreadyConverted OutcomeStatus = "already_converted"
	OutcomeNoReferrerPhone  OutcomeStatus = "no_referrer_phone"
	OutcomeFailed           OutcomeStatus = "failed"
)

// ConversionInput is the booking data a conversion needs. RefereePhone is the
// phone just verified by the booking form.
type ConversionInput struct {
	Token             string
	RefereeName       string
	RefereePhone      string
	RefereeEmail      string
	RefereeCustomerID int64
	JobID             int64
	JobDate           time.Time
}

// ConversionOutcome is the result of a conversion attempt. Conversion never
// returns an error to the booking; failures are reported here.
type ConversionOutcome struct {
	Status     OutcomeStatus
	ReferralID uuid.UUID
	Created    bool
	Err        error
}

// ConvertForBooking turns the pending referral identified by the booking's
// referral token into a contacted referral. The whole conversion runs in one
// transaction and is a no-op for a token that was already converted.
func (s *Service) ConvertForBooking(ctx context.Context, in ConversionInput) ConversionOutcome {
	token := strings.TrimSpace(in.Token)
	if token == "" {
		return ConversionOutcome{Status: OutcomeNoToken}
	}

	var out ConversionOutcome
	var pendingID uuid.UUID
	err := s.store.RunConversion(ctx, func(tx repository.ConversionTx) error {
		out = ConversionOutcome{}
		p, err := tx.LockPending(ctx, token)
		if err != nil {
			return err
		}
		pendingID = p.ID
		if p.ConvertedAt != nil {
			return errAlreadyConverted
		}

		referrerPhone, err := tx.ReferrerPhone(ctx, p.ReferrerCustomerID)
		if err != nil {
			return err
		}
		if referrerPhone == "" {
			out.Status = OutcomeNoReferrerPhone
			return nil
		}

		now := s.now()
		fields := conversionFields(in, p, now)

		referralID := uuid.Nil
		if p.ReferralID != nil {
			updated, err := tx.UpdateForConversion(ctx, *p.ReferralID, fields)
			if err != nil {
				return err
			}
			if updated {
				referralID = *p.ReferralID
			}
		}
		if referralID == uuid.Nil {
			referrerCustomerID := p.ReferrerCustomerID
			created, err := tx.InsertReferral(ctx, repository.Referral{
				ID:                 uuid.New(),
				PendingReferralID:  &p.ID,
				ReferrerName:       p.ReferrerName,
				ReferrerPhone:      referrerPhone,
				ReferrerCustomerID: &referrerCustomerID,
				RefereeName:        fields.RefereeName,
				RefereePhone:       fields.RefereePhone,
				RefereeEmail:       fields.RefereeEmail,
				RefereeCustomerID:  fields.RefereeCustomerID,
				Status:             repository.StatusContacted,
				FirstJobID:         &fields.FirstJobID,
				FirstJobDate:       &fields.FirstJobDate,
				ContactedAt:        &now,
			})
			if err != nil {
				return err
			}
			referralID = created.ID
			out.Created = true
		}

		marked, err := tx.MarkPendingConverted(ctx, p.ID, referralID, now)
		if err != nil {
			return err
		}
		if !marked {
			return errAlreadyConverted
		}
		out.Status = OutcomeConverted
		out.ReferralID = referralID
		return nil
	})

	switch {
	case err == nil:
	case isAlreadyConverted(err):
		s.log.Info("referral already converted", "pendingReferralId", pendingID, "jobId", in.JobID)
		return ConversionOutcome{Status: OutcomeAlreadyConverted}
	case apperr.Is(err, apperr.KindNotFound):
		s.log.Info("no pending referral for token", "jobId", in.JobID)
		return ConversionOutcome{Status: OutcomeNotFound}
	default:
		s.log.Warn("referral conversion failed", "error", err, "jobId", in.JobID)
		return ConversionOutcome{Status: OutcomeFailed, Err: err}
	}

	if out.Status == OutcomeNoReferrerPhone {
		s.log.Warn("referrer phone not found, skipping referral conversion", "pendingReferralId", pendingID)
		return out
	}

	s.log.Info("referral converted", "referralId", out.ReferralID, "pendingReferralId", pendingID,
		"created", out.Created, "jobId", in.JobID)
	s.eventBus.Publish(ctx, events.ReferralConverted{
		BaseEvent:         events.NewBaseEvent(),
		ReferralID:        out.ReferralID,
		PendingReferralID: pendingID,
		JobID:             in.JobID,
		Created:           out.Created,
	})
	return out
}

func conversionFields(in ConversionInput, p repository.PendingReferral, now time.Time) repository.ConversionFields {
	name := strings.TrimSpace(in.RefereeName)
	if name == "" {
		name = p.RefereeName
	}
	email := optional(strings.ToLower(strings.TrimSpace(in.RefereeEmail)))
	if email == nil {
		email = p.RefereeEmail
	}
	var customerID *int64
	if in.RefereeCustomerID > 0 {
		id := in.RefereeCustomerID
		customerID = &id
	}
	jobDate := in.JobDate
	if jobDate.IsZero() {
		jobDate = now
	}
	return repository.ConversionFields{
		RefereeName:       name,
		RefereePhone:      phone.Normalize(in.RefereePhone),
		RefereeEmail:      email,
		RefereeCustomerID: customerID,
		FirstJobID:        in.JobID,
		FirstJobDate:      jobDate,
		ContactedAt:       now,
	}
}

// IsConverted reports whether the outcome produced or updated a referral.
func (o ConversionOutcome) IsConverted() bool { return o.Status == OutcomeConverted }
