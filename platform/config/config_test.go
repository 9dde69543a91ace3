package config

import "testing"

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/plumbing")
	t.Setenv("JWT_ACCESS_SECRET", "access-secret")
	t.Setenv("UNSUBSCRIBE_SECRET", "unsubscribe-secret")
	t.Setenv("CORS_ALLOW_ALL", "false")
	t.Setenv("CORS_ORIGINS", "http://localhost:3000")
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	setRequired(t)
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when DATABASE_URL is empty")
	}
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("REFERRAL_COOKIE_SECURE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.GetReferralCookieName() != "referralToken" {
		t.Fatalf("expected default referral cookie name, got %q", cfg.GetReferralCookieName())
	}
	if !cfg.GetReferralCookieSecure() {
		t.Fatalf("expected secure cookies in production")
	}
	if cfg.IsServiceTitanEnabled() {
		t.Fatalf("expected ServiceTitan disabled without credentials")
	}
	if cfg.GetNurtureCron() == "" {
		t.Fatalf("expected a default nurture cron spec")
	}
}

func TestLoadRejectsWildcardCORSWithCredentials(t *testing.T) {
	setRequired(t)
	t.Setenv("CORS_ORIGINS", "*")
	t.Setenv("CORS_ALLOW_CREDENTIALS", "true")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for wildcard CORS with credentials")
	}
}
