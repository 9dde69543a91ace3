// Package service implements voucher lookup, single-use redemption and
// issuance of referral reward vouchers.
package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"plumbing_backend/internal/events"
	"plumbing_backend/internal/vouchers/repository"
	"plumbing_backend/platform/apperr"
	"plumbing_backend/platform/db"
	"plumbing_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
)

const (
	codeAlphabet   = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength     = 8
	codePrefix     = "REF-"
	maxCodeRetries = 5
	qrSize         = 256
)

// Store is the persistence port.
type Store interface {
	GetByCode(ctx context.Context, code string) (repository.Voucher, error)
	GetByReferralID(ctx context.Context, q db.DBTX, referralID uuid.UUID) (repository.Voucher, error)
	Insert(ctx context.Context, q db.DBTX, v repository.Voucher) (repository.Voucher, bool, error)
	Redeem(ctx context.Context, code string, jobAmountCents int64, now time.Time) (repository.Voucher, bool, error)
	MarkExpired(ctx context.Context, id uuid.UUID, now time.Time) error
}

// Service is the voucher service.
type Service struct {
	store    Store
	eventBus events.Bus
	baseURL  string
	log      *logger.Logger
	now      func() time.Time
}

// New creates a new voucher service. baseURL is the public site used in QR codes.
func New(store Store, eventBus events.Bus, baseURL string, log *logger.Logger) *Service {
	return &Service{
		store:    store,
		eventBus: eventBus,
		baseURL:  strings.TrimRight(baseURL, "/"),
		log:      log,
		now:      time.Now,
	}
}

// NormalizeCode uppercases and trims a voucher code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Lookup returns the voucher with its status as of now. An active voucher past
// its expiry is reported, and persisted, as expired.
func (s *Service) Lookup(ctx context.Context, code string) (repository.Voucher, error) {
	code = NormalizeCode(code)
	if code == "" {
		return repository.Voucher{}, apperr.Validation("code is required")
	}

	v, err := s.store.GetByCode(ctx, code)
	if err != nil {
		return repository.Voucher{}, err
	}
	return s.effective(ctx, v), nil
}

func (s *Service) effective(ctx context.Context, v repository.Voucher) repository.Voucher {
	now := s.now()
	if v.Status == repository.StatusActive && !v.ExpiresAt.After(now) {
		v.Status = repository.StatusExpired
		if err := s.store.MarkExpired(ctx, v.ID, now); err != nil {
			s.log.Warn("failed to persist voucher expiry", "error", err, "voucherId", v.ID)
		}
	}
	return v
}

// Redeem applies a voucher to a job. The write is a single conditional update,
// so a duplicated request can never redeem twice.
func (s *Service) Redeem(ctx context.Context, code string, jobAmountCents int64) (repository.Voucher, error) {
	v, err := s.Lookup(ctx, code)
	if err != nil {
		return repository.Voucher{}, err
	}
	if err := checkRedeemable(v, jobAmountCents); err != nil {
		return repository.Voucher{}, err
	}

	redeemed, ok, err := s.store.Redeem(ctx, v.Code, jobAmountCents, s.now())
	if err != nil {
		return repository.Voucher{}, apperr.Unavailable("failed to redeem voucher", err)
	}
	if !ok {
		// Lost a race with another redemption or expiry; report the current state.
		current, err := s.Lookup(ctx, v.Code)
		if err != nil {
			return repository.Voucher{}, err
		}
		if err := checkRedeemable(current, jobAmountCents); err != nil {
			return repository.Voucher{}, err
		}
		return repository.Voucher{}, apperr.Conflict("voucher could not be redeemed")
	}

	s.log.Info("voucher redeemed", "voucherId", redeemed.ID, "jobAmountCents", jobAmountCents)
	s.eventBus.Publish(ctx, events.VoucherRedeemed{
		BaseEvent:      events.NewBaseEvent(),
		VoucherID:      redeemed.ID,
		Code:           redeemed.Code,
		JobAmountCents: jobAmountCents,
	})
	return redeemed, nil
}

func checkRedeemable(v repository.Voucher, jobAmountCents int64) error {
	switch v.Status {
	case repository.StatusRedeemed:
		return apperr.Conflict("voucher already redeemed").WithDetails(map[string]interface{}{
			"redeemedAt": v.RedeemedAt,
		})
	case repository.StatusExpired:
		return apperr.Gone("voucher expired").WithDetails(map[string]interface{}{
			"expiresAt": v.ExpiresAt,
		})
	}
	if jobAmountCents < v.MinimumJobAmountCents {
		return apperr.Validation(fmt.Sprintf("job amount must be at least %s", formatCents(v.MinimumJobAmountCents))).
			WithDetails(map[string]interface{}{"minimumJobAmount": v.MinimumJobAmountCents})
	}
	return nil
}

// IssueInput describes a referral reward voucher.
type IssueInput struct {
	ReferralID   uuid.UUID
	CustomerID   *int64
	CustomerName string
	AmountCents  int64
	MinimumCents int64
	ValidDays    int
}

// IssueForReferral creates the reward voucher for a referral inside q, the
// caller's transaction. A referral has at most one voucher; a second call
// returns the existing one.
func (s *Service) IssueForReferral(ctx context.Context, q db.DBTX, in IssueInput) (repository.Voucher, error) {
	if in.AmountCents <= 0 {
		return repository.Voucher{}, apperr.Validation("voucher amount must be positive")
	}
	if in.ValidDays <= 0 {
		in.ValidDays = 365
	}

	referralID := in.ReferralID
	for attempt := 0; attempt < maxCodeRetries; attempt++ {
		code, err := generateCode()
		if err != nil {
			return repository.Voucher{}, fmt.Errorf("generate voucher code: %w", err)
		}

		v, inserted, err := s.store.Insert(ctx, q, repository.Voucher{
			ID:                    uuid.New(),
			Code:                  code,
			VoucherType:           repository.TypeReferralCredit,
			CustomerID:            in.CustomerID,
			CustomerName:          in.CustomerName,
			ReferralID:            &referralID,
			DiscountAmountCents:   in.AmountCents,
			MinimumJobAmountCents: in.MinimumCents,
			ExpiresAt:             s.now().AddDate(0, 0, in.ValidDays),
		})
		if err != nil {
			return repository.Voucher{}, err
		}
		if inserted {
			return v, nil
		}

		existing, err := s.store.GetByReferralID(ctx, q, referralID)
		if err == nil {
			return existing, nil
		}
		if !apperr.Is(err, apperr.KindNotFound) {
			return repository.Voucher{}, err
		}
		// code collision
	}
	return repository.Voucher{}, fmt.Errorf("could not allocate a unique voucher code")
}

// RedeemURL returns the public page a QR code points to.
func (s *Service) RedeemURL(code string) string {
	return s.baseURL + "/redeem?code=" + NormalizeCode(code)
}

// QRCode renders a PNG QR code for an existing voucher.
func (s *Service) QRCode(ctx context.Context, code string) ([]byte, error) {
	v, err := s.store.GetByCode(ctx, NormalizeCode(code))
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(s.RedeemURL(v.Code), qrcode.Medium, qrSize)
	if err != nil {
		return nil, fmt.Errorf("encode voucher qr: %w", err)
	}
	return png, nil
}

func generateCode() (string, error) {
	var b strings.Builder
	b.WriteString(codePrefix)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < codeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

func formatCents(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
