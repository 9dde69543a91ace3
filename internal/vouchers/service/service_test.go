package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"plumbing_backend/internal/events"
	"plumbing_backend/internal/vouchers/repository"
	"plumbing_backend/platform/apperr"
	"plumbing_backend/platform/db"
	"plumbing_backend/platform/logger"

	"github.com/google/uuid"
)

type recordingBus struct{ published []events.Event }

func (b *recordingBus) Publish(_ context.Context, e events.Event) {
	b.published = append(b.published, e)
}
func (b *recordingBus) PublishSync(ctx context.Context, e events.Event) error {
	b.Publish(ctx, e)
	return nil
}
func (b *recordingBus) Subscribe(string, events.Handler) {}

type memoryStore struct {
	byCode      map[string]repository.Voucher
	collisions  int
	expired     int
	redeemCalls int
}

func newMemoryStore(vs ...repository.Voucher) *memoryStore {
	m := &memoryStore{byCode: map[string]repository.Voucher{}}
	for _, v := range vs {
		m.byCode[v.Code] = v
	}
	return m
}

func (m *memoryStore) GetByCode(_ context.Context, code string) (repository.Voucher, error) {
	v, ok := m.byCode[code]
	if !ok {
		return repository.Voucher{}, apperr.NotFound("voucher not found")
	}
	return v, nil
}

func (m *memoryStore) GetByReferralID(_ context.Context, _ db.DBTX, id uuid.UUID) (repository.Voucher, error) {
	for _, v := range m.byCode {
		if v.ReferralID != nil && *v.ReferralID == id {
			return v, nil
		}
	}
	return repository.Voucher{}, apperr.NotFound("voucher not found")
}

// Insert mirrors ON CONFLICT DO NOTHING on code and referral_id.
func (m *memoryStore) Insert(_ context.Context, _ db.DBTX, v repository.Voucher) (repository.Voucher, bool, error) {
	if m.collisions > 0 {
		m.collisions--
		return repository.Voucher{}, false, nil
	}
	if _, taken := m.byCode[v.Code]; taken {
		return repository.Voucher{}, false, nil
	}
	for _, existing := range m.byCode {
		if existing.ReferralID != nil && v.ReferralID != nil && *existing.ReferralID == *v.ReferralID {
			return repository.Voucher{}, false, nil
		}
	}
	v.Status = repository.StatusActive
	m.byCode[v.Code] = v
	return v, true, nil
}

func (m *memoryStore) Redeem(_ context.Context, code string, job int64, now time.Time) (repository.Voucher, bool, error) {
	m.redeemCalls++
	v, ok := m.byCode[code]
	if !ok || v.Status != repository.StatusActive || !v.ExpiresAt.After(now) || job < v.MinimumJobAmountCents {
		return repository.Voucher{}, false, nil
	}
	v.Status = repository.StatusRedeemed
	v.RedeemedAt = &now
	v.RedeemedJobAmountCents = &job
	m.byCode[code] = v
	return v, true, nil
}

func (m *memoryStore) MarkExpired(_ context.Context, id uuid.UUID, _ time.Time) error {
	m.expired++
	return nil
}

var fixedNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func newService(store Store) (*Service, *recordingBus) {
	bus := &recordingBus{}
	svc := New(store, bus, "https://plumbing.example.com/", logger.Nop())
	svc.now = func() time.Time { return fixedNow }
	return svc, bus
}

func activeVoucher(code string) repository.Voucher {
	return repository.Voucher{
		ID: uuid.New(), Code: code, Status: repository.StatusActive,
		DiscountAmountCents: 2500, MinimumJobAmountCents: 10000,
		ExpiresAt: fixedNow.Add(24 * time.Hour),
	}
}

func TestRedeemRejectsBelowMinimum(t *testing.T) {
	svc, _ := newService(newMemoryStore(activeVoucher("REF-AAAA")))
	_, err := svc.Redeem(context.Background(), "ref-aaaa", 9999)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected minimum amount validation error, got %v", err)
	}
}

func TestRedeemOnceThenConflictWithRedeemedAt(t *testing.T) {
	store := newMemoryStore(activeVoucher("REF-AAAA"))
	svc, bus := newService(store)

	v, err := svc.Redeem(context.Background(), "REF-AAAA", 15000)
	if err != nil {
		t.Fatalf("Redeem returned error: %v", err)
	}
	if v.Status != repository.StatusRedeemed || len(bus.published) != 1 {
		t.Fatalf("expected redeemed voucher and one event, got %+v", v)
	}

	_, err = svc.Redeem(context.Background(), "REF-AAAA", 15000)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict on second redemption, got %v", err)
	}
	appErr := err.(*apperr.Error)
	details, _ := appErr.Details.(map[string]interface{})
	if details["redeemedAt"] == nil {
		t.Fatalf("expected redeemedAt in details, got %+v", appErr.Details)
	}
	if store.redeemCalls != 1 {
		t.Fatalf("second redemption must not reach the write, got %d writes", store.redeemCalls)
	}
}

func TestLookupReportsExpiry(t *testing.T) {
	v := activeVoucher("REF-OLD")
	v.ExpiresAt = fixedNow.Add(-time.Minute)
	store := newMemoryStore(v)
	svc, _ := newService(store)

	got, err := svc.Lookup(context.Background(), "REF-OLD")
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if got.Status != repository.StatusExpired || store.expired != 1 {
		t.Fatalf("expected expired voucher persisted, got %s", got.Status)
	}

	if _, err := svc.Redeem(context.Background(), "REF-OLD", 20000); !apperr.Is(err, apperr.KindGone) {
		t.Fatalf("expected gone for expired voucher, got %v", err)
	}
}

func TestLookupUnknownCode(t *testing.T) {
	svc, _ := newService(newMemoryStore())
	if _, err := svc.Lookup(context.Background(), "nope"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.Lookup(context.Background(), "  "); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for blank code, got %v", err)
	}
}

func TestIssueForReferralRetriesCodeCollisions(t *testing.T) {
	store := newMemoryStore()
	store.collisions = 2
	svc, _ := newService(store)

	v, err := svc.IssueForReferral(context.Background(), nil, IssueInput{ReferralID: uuid.New(), AmountCents: 2500, MinimumCents: 10000, ValidDays: 30})
	if err != nil {
		t.Fatalf("IssueForReferral returned error: %v", err)
	}
	if len(v.Code) != len(codePrefix)+codeLength || !v.ExpiresAt.Equal(fixedNow.AddDate(0, 0, 30)) {
		t.Fatalf("unexpected voucher %+v", v)
	}
	if len(store.byCode) != 1 {
		t.Fatalf("expected one stored voucher, got %d", len(store.byCode))
	}
}

func TestIssueForReferralReturnsExisting(t *testing.T) {
	referralID := uuid.New()
	existing := activeVoucher("REF-EXIST")
	existing.ReferralID = &referralID
	store := newMemoryStore(existing)
	svc, _ := newService(store)

	v, err := svc.IssueForReferral(context.Background(), nil, IssueInput{ReferralID: referralID, AmountCents: 2500})
	if err != nil {
		t.Fatalf("IssueForReferral returned error: %v", err)
	}
	if v.Code != "REF-EXIST" {
		t.Fatalf("expected existing voucher, got %s", v.Code)
	}
}

func TestQRCodeIsPNG(t *testing.T) {
	svc, _ := newService(newMemoryStore(activeVoucher("REF-QR")))
	png, err := svc.QRCode(context.Background(), "ref-qr")
	if err != nil {
		t.Fatalf("QRCode returned error: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Fatalf("expected PNG output")
	}
	if got := svc.RedeemURL("ref-qr"); got != "https://plumbing.example.com/redeem?code=REF-QR" {
		t.Fatalf("unexpected redeem url %q", got)
	}
}
