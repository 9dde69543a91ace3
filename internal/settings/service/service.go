package service

import (
	"context"
	"strconv"
	"strings"

	"plumbing_backend/internal/settings/transport"
	"plumbing_backend/platform/apperr"
)

// Keys of the system_settings table.
const (
	KeyEmailMasterEnabled         = "email_master_enabled"
	KeyReviewDripEnabled          = "review_drip_enabled"
	KeyReferralNurturePhone       = "referral_nurture_phone"
	KeyCompanyName                = "company_name"
	KeyWebsiteURL                 = "website_url"
	KeyVoucherMinimumJobCents     = "voucher_minimum_job_cents"
	KeyVoucherExpiryDays          = "voucher_expiry_days"
	KeyReferralCreditDefaultCents = "referral_credit_default_cents"
)

// Settings is a typed snapshot of system_settings.
type Settings struct {
	EmailMasterEnabled         bool   `json:"emailMasterEnabled"`
	ReviewDripEnabled          bool   `json:"reviewDripEnabled"`
	ReferralNurturePhone       string `json:"referralNurturePhone"`
	CompanyName                string `json:"companyName"`
	WebsiteURL                 string `json:"websiteUrl"`
	VoucherMinimumJobCents     int64  `json:"voucherMinimumJobCents"`
	VoucherExpiryDays          int    `json:"voucherExpiryDays"`
	ReferralCreditDefaultCents int64  `json:"referralCreditDefaultCents"`
}

// Store is the persistence port of the settings service.
type Store interface {
	All(ctx context.Context) (map[string]string, error)
	SetMany(ctx context.Context, values map[string]string) error
}

// Service converts raw system_settings rows into typed settings.
type Service struct {
	store Store
}

// New creates a new settings service.
func New(store Store) *Service {
	return &Service{store: store}
}

// Load returns the current settings. Missing or malformed values fall back to
// safe defaults (email disabled, empty phone).
func (s *Service) Load(ctx context.Context) (Settings, error) {
	raw, err := s.store.All(ctx)
	if err != nil {
		return Settings{}, apperr.Unavailable("failed to load settings", err)
	}
	return parse(raw), nil
}

// Update applies a partial update and returns the new snapshot.
func (s *Service) Update(ctx context.Context, req transport.UpdateSettingsRequest) (Settings, error) {
	values := make(map[string]string)
	if req.EmailMasterEnabled != nil {
		values[KeyEmailMasterEnabled] = strconv.FormatBool(*req.EmailMasterEnabled)
	}
	if req.ReviewDripEnabled != nil {
		values[KeyReviewDripEnabled] = strconv.FormatBool(*req.ReviewDripEnabled)
	}
	if req.ReferralNurturePhone != nil {
		values[KeyReferralNurturePhone] = strings.TrimSpace(*req.ReferralNurturePhone)
	}
	if req.CompanyName != nil {
		values[KeyCompanyName] = strings.TrimSpace(*req.CompanyName)
	}
	if req.WebsiteURL != nil {
		values[KeyWebsiteURL] = strings.TrimSpace(*req.WebsiteURL)
	}
	if req.VoucherMinimumJobCents != nil {
		values[KeyVoucherMinimumJobCents] = strconv.FormatInt(*req.VoucherMinimumJobCents, 10)
	}
	if req.VoucherExpiryDays != nil {
		values[KeyVoucherExpiryDays] = strconv.Itoa(*req.VoucherExpiryDays)
	}
	if req.ReferralCreditDefaultCents != nil {
		values[KeyReferralCreditDefaultCents] = strconv.FormatInt(*req.ReferralCreditDefaultCents, 10)
	}
	if len(values) == 0 {
		return Settings{}, apperr.Validation("no settings to update")
	}

	if err := s.store.SetMany(ctx, values); err != nil {
		return Settings{}, apperr.Unavailable("failed to update settings", err)
	}
	return s.Load(ctx)
}

func parse(raw map[string]string) Settings {
	return Settings{
		EmailMasterEnabled:         parseBool(raw[KeyEmailMasterEnabled]),
		ReviewDripEnabled:          parseBool(raw[KeyReviewDripEnabled]),
		ReferralNurturePhone:       strings.TrimSpace(raw[KeyReferralNurturePhone]),
		CompanyName:                strings.TrimSpace(raw[KeyCompanyName]),
		WebsiteURL:                 strings.TrimRight(strings.TrimSpace(raw[KeyWebsiteURL]), "/"),
		VoucherMinimumJobCents:     parseInt64(raw[KeyVoucherMinimumJobCents], 0),
		VoucherExpiryDays:          int(parseInt64(raw[KeyVoucherExpiryDays], 365)),
		ReferralCreditDefaultCents: parseInt64(raw[KeyReferralCreditDefaultCents], 0),
	}
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && b
}

func parseInt64(v string, fallback int64) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
