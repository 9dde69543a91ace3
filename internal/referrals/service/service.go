// Package service implements the referral lifecycle: landing capture, manual
// submission, conversion at booking, job completion and staff crediting.
package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"plumbing_backend/internal/events"
	"plumbing_backend/internal/referrals/repository"
	settingsservice "plumbing_backend/internal/settings/service"
	voucherrepo "plumbing_backend/internal/vouchers/repository"
	voucherservice "plumbing_backend/internal/vouchers/service"
	"plumbing_backend/platform/apperr"
	"plumbing_backend/platform/db"
	"plumbing_backend/platform/logger"
	"plumbing_backend/platform/phone"

	"github.com/google/uuid"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	tokenBytes       = 24
)

// Store is the persistence port.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (repository.Referral, error)
	List(ctx context.Context, f repository.ListFilter) ([]repository.Referral, error)
	GetReferralCode(ctx context.Context, code string) (repository.ReferralCode, error)
	ReferrerPhone(ctx context.Context, customerID int64) (string, error)
	CreatePending(ctx context.Context, p repository.PendingReferral) (repository.PendingReferral, error)
	Submit(ctx context.Context, ref repository.Referral, pending repository.PendingReferral) (repository.Referral, error)
	RunConversion(ctx context.Context, fn func(tx repository.ConversionTx) error) error
	CompleteByJob(ctx context.Context, jobID, amountCents int64, completedAt time.Time) (repository.Referral, bool, error)
	RunCredit(ctx context.Context, fn func(tx repository.CreditTx) error) error
	MarkIneligible(ctx context.Context, id uuid.UUID, notes *string) (repository.Referral, bool, error)
}

// VoucherIssuer issues the reward voucher for a credited referral.
type VoucherIssuer interface {
	IssueForReferral(ctx context.Context, q db.DBTX, in voucherservice.IssueInput) (voucherrepo.Voucher, error)
}

// SettingsReader provides credit defaults.
type SettingsReader interface {
	Load(ctx context.Context) (settingsservice.Settings, error)
}

// Service is the referral service.
type Service struct {
	store    Store
	vouchers VoucherIssuer
	settings SettingsReader
	eventBus events.Bus
	log      *logger.Logger
	now      func() time.Time
}

// New creates a new referral service.
func New(store Store, vouchers VoucherIssuer, settings SettingsReader, eventBus events.Bus, log *logger.Logger) *Service {
	return &Service{
		store:    store,
		vouchers: vouchers,
		settings: settings,
		eventBus: eventBus,
		log:      log,
		now:      time.Now,
	}
}

// LandingInput is a referral link visit, optionally with the referee's details.
type LandingInput struct {
	Code         string
	RefereeName  string
	RefereeEmail string
	RefereePhone string
}

// CaptureLanding records a pending referral for a referral code and returns
// it; its tracking cookie is what the booking later presents.
func (s *Service) CaptureLanding(ctx context.Context, in LandingInput) (repository.PendingReferral, error) {
	code := NormalizeCode(in.Code)
	if code == "" {
		return repository.PendingReferral{}, apperr.Validation("referral code is required")
	}
	rc, err := s.store.GetReferralCode(ctx, code)
	if err != nil {
		return repository.PendingReferral{}, err
	}

	token, err := newToken()
	if err != nil {
		return repository.PendingReferral{}, err
	}
	p, err := s.store.CreatePending(ctx, repository.PendingReferral{
		ID:                 uuid.New(),
		TrackingCookie:     token,
		ReferrerCustomerID: rc.CustomerID,
		ReferrerName:       rc.CustomerName,
		RefereeName:        strings.TrimSpace(in.RefereeName),
		RefereeEmail:       optional(strings.ToLower(strings.TrimSpace(in.RefereeEmail))),
		RefereePhone:       optional(phone.Normalize(in.RefereePhone)),
	})
	if err != nil {
		return repository.PendingReferral{}, err
	}
	s.log.Info("referral landing captured", "pendingReferralId", p.ID, "referrerCustomerId", rc.CustomerID)
	return p, nil
}

// SubmitInput is a referral entered by the referrer or staff.
type SubmitInput struct {
	Code         string
	RefereeName  string
	RefereePhone string
	RefereeEmail string
}

// Submit creates a pending referral row plus a tracking token so that the
// referee's first booking converts this referral instead of creating another.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (repository.Referral, string, error) {
	code := NormalizeCode(in.Code)
	name := strings.TrimSpace(in.RefereeName)
	if code == "" || name == "" {
		return repository.Referral{}, "", apperr.Validation("referral code and referee name are required")
	}
	if in.RefereePhone != "" && !phone.IsTenDigit(in.RefereePhone) {
		return repository.Referral{}, "", apperr.Validation("referee phone must be a 10-digit US number")
	}

	rc, err := s.store.GetReferralCode(ctx, code)
	if err != nil {
		return repository.Referral{}, "", err
	}
	token, err := newToken()
	if err != nil {
		return repository.Referral{}, "", err
	}

	email := optional(strings.ToLower(strings.TrimSpace(in.RefereeEmail)))
	refereePhone := phone.Normalize(in.RefereePhone)
	customerID := rc.CustomerID
	ref, err := s.store.Submit(ctx, repository.Referral{
		ID:                 uuid.New(),
		ReferrerName:       rc.CustomerName,
		ReferrerPhone:      rc.CustomerPhone,
		ReferrerCustomerID: &customerID,
		RefereeName:        name,
		RefereePhone:       refereePhone,
		RefereeEmail:       email,
		Status:             repository.StatusPending,
	}, repository.PendingReferral{
		ID:                 uuid.New(),
		TrackingCookie:     token,
		ReferrerCustomerID: rc.CustomerID,
		ReferrerName:       rc.CustomerName,
		RefereeName:        name,
		RefereeEmail:       email,
		RefereePhone:       optional(refereePhone),
	})
	if err != nil {
		return repository.Referral{}, "", err
	}
	s.log.Info("referral submitted", "referralId", ref.ID, "referrerCustomerId", rc.CustomerID)
	return ref, token, nil
}

// CompleteJob is called when ServiceTitan reports a completed job. Jobs that
// are not the first job of a contacted referral are ignored (ok=false).
func (s *Service) CompleteJob(ctx context.Context, jobID, amountCents int64, completedAt time.Time) (repository.Referral, bool, error) {
	if jobID <= 0 {
		return repository.Referral{}, false, apperr.Validation("jobId is required")
	}
	if amountCents < 0 {
		return repository.Referral{}, false, apperr.Validation("job amount cannot be negative")
	}
	if completedAt.IsZero() {
		completedAt = s.now()
	}

	ref, ok, err := s.store.CompleteByJob(ctx, jobID, amountCents, completedAt)
	if err != nil || !ok {
		return ref, ok, err
	}

	s.log.Info("referral job completed", "referralId", ref.ID, "jobId", jobID, "jobAmountCents", amountCents)
	var email string
	if ref.RefereeEmail != nil {
		email = *ref.RefereeEmail
	}
	s.eventBus.Publish(ctx, events.ReferralCompleted{
		BaseEvent:         events.NewBaseEvent(),
		ReferralID:        ref.ID,
		JobID:             jobID,
		JobAmountCents:    amountCents,
		RefereeCustomerID: ref.RefereeCustomerID,
		RefereeName:       ref.RefereeName,
		RefereeEmail:      email,
	})
	return ref, true, nil
}

// CreditInput overrides the default credit amount and records staff notes.
type CreditInput struct {
	AmountCents *int64
	Notes       string
}

// errCreditRejected rolls back a credit whose guarded update matched no row.
var errCreditRejected = errors.New("credit rejected")

// Credit marks a referral credited and issues the referrer's voucher in one
// transaction. The credit is a conditional write that succeeds at most once,
// and a failed voucher insert undoes it, so a voucher exists exactly when the
// referral is credited.
func (s *Service) Credit(ctx context.Context, id uuid.UUID, in CreditInput) (repository.Referral, voucherrepo.Voucher, error) {
	ref, err := s.store.GetByID(ctx, id)
	if err != nil {
		return repository.Referral{}, voucherrepo.Voucher{}, err
	}
	if err := checkCreditable(ref); err != nil {
		return repository.Referral{}, voucherrepo.Voucher{}, err
	}

	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return repository.Referral{}, voucherrepo.Voucher{}, err
	}
	amount := cfg.ReferralCreditDefaultCents
	if in.AmountCents != nil {
		amount = *in.AmountCents
	}
	if amount <= 0 {
		return repository.Referral{}, voucherrepo.Voucher{}, apperr.Validation("credit amount must be positive")
	}

	var (
		credited repository.Referral
		voucher  voucherrepo.Voucher
	)
	err = s.store.RunCredit(ctx, func(tx repository.CreditTx) error {
		marked, ok, err := tx.MarkCredited(ctx, id, amount, optional(strings.TrimSpace(in.Notes)), s.now())
		if err != nil {
			return err
		}
		if !ok {
			return errCreditRejected
		}
		v, err := s.vouchers.IssueForReferral(ctx, tx, voucherservice.IssueInput{
			ReferralID:   marked.ID,
			CustomerID:   marked.ReferrerCustomerID,
			CustomerName: marked.ReferrerName,
			AmountCents:  amount,
			MinimumCents: cfg.VoucherMinimumJobCents,
			ValidDays:    cfg.VoucherExpiryDays,
		})
		if err != nil {
			return fmt.Errorf("issue referral voucher: %w", err)
		}
		credited, voucher = marked, v
		return nil
	})
	if errors.Is(err, errCreditRejected) {
		current, err := s.store.GetByID(ctx, id)
		if err != nil {
			return repository.Referral{}, voucherrepo.Voucher{}, err
		}
		if err := checkCreditable(current); err != nil {
			return repository.Referral{}, voucherrepo.Voucher{}, err
		}
		return repository.Referral{}, voucherrepo.Voucher{}, apperr.Conflict("referral could not be credited")
	}
	if err != nil {
		return repository.Referral{}, voucherrepo.Voucher{}, err
	}

	referrerPhone := s.referrerPhone(ctx, credited)
	s.log.Info("referral credited", "referralId", credited.ID, "amountCents", amount, "voucherCode", voucher.Code)
	s.eventBus.Publish(ctx, events.ReferralCredited{
		BaseEvent:           events.NewBaseEvent(),
		ReferralID:          credited.ID,
		ReferrerCustomerID:  credited.ReferrerCustomerID,
		ReferrerName:        credited.ReferrerName,
		ReferrerPhone:       referrerPhone,
		CreditAmountCents:   amount,
		VoucherCode:         voucher.Code,
		VoucherMinimumCents: voucher.MinimumJobAmountCents,
		VoucherExpiresAt:    voucher.ExpiresAt,
	})
	return credited, voucher, nil
}

// referrerPhone prefers the phone on the referrer's referral code, which is
// kept current, over the copy taken when the referral was created.
func (s *Service) referrerPhone(ctx context.Context, ref repository.Referral) string {
	if ref.ReferrerCustomerID != nil {
		p, err := s.store.ReferrerPhone(ctx, *ref.ReferrerCustomerID)
		if err != nil {
			s.log.Warn("failed to load referrer phone", "error", err, "referralId", ref.ID)
		} else if p != "" {
			return p
		}
	}
	return ref.ReferrerPhone
}

func checkCreditable(ref repository.Referral) error {
	if ref.Status == repository.StatusIneligible || isCredit(ref, repository.CreditIneligible) {
		return apperr.Conflict("referral is ineligible")
	}
	if isCredit(ref, repository.CreditCredited) {
		return apperr.Conflict("referral already credited").WithDetails(map[string]interface{}{
			"creditIssuedAt": ref.CreditIssuedAt,
		})
	}
	return nil
}

func isCredit(ref repository.Referral, status string) bool {
	return ref.CreditStatus != nil && *ref.CreditStatus == status
}

// MarkIneligible rules a referral out of crediting.
func (s *Service) MarkIneligible(ctx context.Context, id uuid.UUID, notes string) (repository.Referral, error) {
	ref, ok, err := s.store.MarkIneligible(ctx, id, optional(strings.TrimSpace(notes)))
	if err != nil {
		return repository.Referral{}, err
	}
	if !ok {
		current, err := s.store.GetByID(ctx, id)
		if err != nil {
			return repository.Referral{}, err
		}
		if isCredit(current, repository.CreditCredited) {
			return repository.Referral{}, apperr.Conflict("referral already credited")
		}
		return repository.Referral{}, apperr.Conflict("referral could not be updated")
	}
	s.log.Info("referral marked ineligible", "referralId", id)
	return ref, nil
}

// List returns referrals for the admin view.
func (s *Service) List(ctx context.Context, f repository.ListFilter) ([]repository.Referral, error) {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.store.List(ctx, f)
}

// NormalizeCode uppercases and trims a referral code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate referral token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

var errAlreadyConverted = errors.New("pending referral already converted")

func isAlreadyConverted(err error) bool {
	return errors.Is(err, errAlreadyConverted) || db.IsUniqueViolation(err, "referrals_pending_referral_id_key")
}
