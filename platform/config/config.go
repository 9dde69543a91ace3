// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// AuthServiceConfig provides settings needed by the admin auth service.
type AuthServiceConfig interface {
	JWTConfig
	GetAccessTokenTTL() time.Duration
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
	GetPublicRateLimit() float64
	GetPublicRateBurst() int
}

// SchedulerConfig provides settings for the asynq worker and periodic jobs.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetNurtureCron() string
	GetReviewSyncCron() string
}

// EmailConfig provides settings for email delivery.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetResendAPIKey() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
}

// UnsubscribeConfig provides settings for signed opt-out links.
type UnsubscribeConfig interface {
	GetUnsubscribeSecret() string
	GetPublicBaseURL() string
}

// ServiceTitanConfig provides credentials for the ServiceTitan API.
type ServiceTitanConfig interface {
	GetServiceTitanTenantID() string
	GetServiceTitanClientID() string
	GetServiceTitanClientSecret() string
	GetServiceTitanAppKey() string
	GetServiceTitanBaseURL() string
	GetServiceTitanAuthURL() string
	IsServiceTitanEnabled() bool
}

// OpenAIConfig provides settings for AI content generation.
type OpenAIConfig interface {
	GetOpenAIAPIKey() string
	GetOpenAIBaseURL() string
	GetOpenAIModel() string
	IsOpenAIEnabled() bool
}

// SerpAPIConfig provides settings for review aggregation.
type SerpAPIConfig interface {
	GetSerpAPIKey() string
	GetSerpAPIPlaceID() string
	GetReviewCacheTTL() time.Duration
	IsSerpAPIEnabled() bool
}

// TwilioConfig provides settings for SMS notifications.
type TwilioConfig interface {
	GetTwilioAccountSID() string
	GetTwilioAuthToken() string
	GetTwilioFromNumber() string
	IsTwilioEnabled() bool
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinIOMaxFileSize() int64
	GetMinioBucketCustomerImports() string
	IsMinIOEnabled() bool
}

// WebhookConfig provides shared secrets for inbound provider webhooks.
type WebhookConfig interface {
	GetServiceTitanWebhookSecret() string
	GetResendWebhookSecret() string
}

// ReferralConfig provides settings for the referral landing flow.
type ReferralConfig interface {
	GetReferralCookieName() string
	GetReferralCookieTTL() time.Duration
	GetReferralCookieSecure() bool
	GetPublicBaseURL() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                       string
	HTTPAddr                  string
	DatabaseURL               string
	JWTAccessSecret           string
	AccessTokenTTL            time.Duration
	CORSAllowAll              bool
	CORSOrigins               []string
	CORSAllowCreds            bool
	PublicRateLimit           float64
	PublicRateBurst           int
	PublicBaseURL             string
	RedisURL                  string
	RedisTLSInsecure          bool
	AsynqQueueName            string
	AsynqConcurrency          int
	NurtureCron               string
	ReviewSyncCron            string
	EmailEnabled              bool
	ResendAPIKey              string
	EmailFromName             string
	EmailFromAddress          string
	SMTPHost                  string
	SMTPPort                  int
	SMTPUsername              string
	SMTPPassword              string
	UnsubscribeSecret         string
	ServiceTitanTenantID      string
	ServiceTitanClientID      string
	ServiceTitanClientSecret  string
	ServiceTitanAppKey        string
	ServiceTitanBaseURL       string
	ServiceTitanAuthURL       string
	OpenAIAPIKey              string
	OpenAIBaseURL             string
	OpenAIModel               string
	SerpAPIKey                string
	SerpAPIPlaceID            string
	ReviewCacheTTL            time.Duration
	TwilioAccountSID          string
	TwilioAuthToken           string
	TwilioFromNumber          string
	MinIOEndpoint             string
	MinIOAccessKey            string
	MinIOSecretKey            string
	MinIOUseSSL               bool
	MinIOMaxFileSize          int64
	MinioBucketCustomerImport string
	ServiceTitanWebhookSecret string
	ResendWebhookSecret       string
	ReferralCookieName        string
	ReferralCookieTTL         time.Duration
	ReferralCookieSecure      bool
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig / AuthServiceConfig implementation
func (c *Config) GetJWTAccessSecret() string       { return c.JWTAccessSecret }
func (c *Config) GetAccessTokenTTL() time.Duration { return c.AccessTokenTTL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string         { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool       { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string    { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool     { return c.CORSAllowCreds }
func (c *Config) GetPublicRateLimit() float64 { return c.PublicRateLimit }
func (c *Config) GetPublicRateBurst() int     { return c.PublicRateBurst }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }
func (c *Config) GetNurtureCron() string    { return c.NurtureCron }
func (c *Config) GetReviewSyncCron() string { return c.ReviewSyncCron }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetResendAPIKey() string     { return c.ResendAPIKey }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }

// UnsubscribeConfig implementation
func (c *Config) GetUnsubscribeSecret() string { return c.UnsubscribeSecret }
func (c *Config) GetPublicBaseURL() string     { return c.PublicBaseURL }

// ServiceTitanConfig implementation
func (c *Config) GetServiceTitanTenantID() string     { return c.ServiceTitanTenantID }
func (c *Config) GetServiceTitanClientID() string     { return c.ServiceTitanClientID }
func (c *Config) GetServiceTitanClientSecret() string { return c.ServiceTitanClientSecret }
func (c *Config) GetServiceTitanAppKey() string       { return c.ServiceTitanAppKey }
func (c *Config) GetServiceTitanBaseURL() string      { return c.ServiceTitanBaseURL }
func (c *Config) GetServiceTitanAuthURL() string      { return c.ServiceTitanAuthURL }
func (c *Config) IsServiceTitanEnabled() bool {
	return c.ServiceTitanTenantID != "" && c.ServiceTitanClientID != "" && c.ServiceTitanClientSecret != ""
}

// OpenAIConfig implementation
func (c *Config) GetOpenAIAPIKey() string  { return c.OpenAIAPIKey }
func (c *Config) GetOpenAIBaseURL() string { return c.OpenAIBaseURL }
func (c *Config) GetOpenAIModel() string   { return c.OpenAIModel }
func (c *Config) IsOpenAIEnabled() bool    { return c.OpenAIAPIKey != "" }

// SerpAPIConfig implementation
func (c *Config) GetSerpAPIKey() string            { return c.SerpAPIKey }
func (c *Config) GetSerpAPIPlaceID() string        { return c.SerpAPIPlaceID }
func (c *Config) GetReviewCacheTTL() time.Duration { return c.ReviewCacheTTL }
func (c *Config) IsSerpAPIEnabled() bool           { return c.SerpAPIKey != "" && c.SerpAPIPlaceID != "" }

// TwilioConfig implementation
func (c *Config) GetTwilioAccountSID() string { return c.TwilioAccountSID }
func (c *Config) GetTwilioAuthToken() string  { return c.TwilioAuthToken }
func (c *Config) GetTwilioFromNumber() string { return c.TwilioFromNumber }
func (c *Config) IsTwilioEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFromNumber != ""
}

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string              { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string             { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string             { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool                  { return c.MinIOUseSSL }
func (c *Config) GetMinIOMaxFileSize() int64            { return c.MinIOMaxFileSize }
func (c *Config) GetMinioBucketCustomerImports() string { return c.MinioBucketCustomerImport }
func (c *Config) IsMinIOEnabled() bool                  { return c.MinIOEndpoint != "" }

// WebhookConfig implementation
func (c *Config) GetServiceTitanWebhookSecret() string { return c.ServiceTitanWebhookSecret }
func (c *Config) GetResendWebhookSecret() string       { return c.ResendWebhookSecret }

// ReferralConfig implementation
func (c *Config) GetReferralCookieName() string       { return c.ReferralCookieName }
func (c *Config) GetReferralCookieTTL() time.Duration { return c.ReferralCookieTTL }
func (c *Config) GetReferralCookieSecure() bool       { return c.ReferralCookieSecure }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	env := getEnv("APP_ENV", "development")
	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "false"), "true")

	cookieSecure := strings.EqualFold(getEnv("REFERRAL_COOKIE_SECURE", ""), "true")
	if getEnv("REFERRAL_COOKIE_SECURE", "") == "" {
		cookieSecure = strings.EqualFold(env, "production")
	}

	cfg := &Config{
		Env:                       env,
		HTTPAddr:                  getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:               getEnv("DATABASE_URL", ""),
		JWTAccessSecret:           getEnv("JWT_ACCESS_SECRET", ""),
		AccessTokenTTL:            mustDuration(getEnv("JWT_ACCESS_TTL", "12h")),
		CORSAllowAll:              corsAllowAll,
		CORSOrigins:               corsOrigins,
		CORSAllowCreds:            strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		PublicRateLimit:           mustFloat(getEnv("PUBLIC_RATE_LIMIT_PER_SEC", "0.5")),
		PublicRateBurst:           mustInt(getEnv("PUBLIC_RATE_LIMIT_BURST", "10")),
		PublicBaseURL:             strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),
		RedisURL:                  getEnv("REDIS_URL", ""),
		RedisTLSInsecure:          strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:            getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:          mustInt(getEnv("ASYNQ_CONCURRENCY", "5")),
		NurtureCron:               getEnv("NURTURE_CRON", "0 15 * * *"),
		ReviewSyncCron:            getEnv("REVIEW_SYNC_CRON", "0 */6 * * *"),
		EmailEnabled:              emailEnabled,
		ResendAPIKey:              getEnv("RESEND_API_KEY", ""),
		EmailFromName:             getEnv("EMAIL_FROM_NAME", "Plumbing Co."),
		EmailFromAddress:          getEnv("EMAIL_FROM_ADDRESS", ""),
		SMTPHost:                  getEnv("SMTP_HOST", ""),
		SMTPPort:                  mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:              getEnv("SMTP_USERNAME", ""),
		SMTPPassword:              getEnv("SMTP_PASSWORD", ""),
		UnsubscribeSecret:         getEnv("UNSUBSCRIBE_SECRET", ""),
		ServiceTitanTenantID:      getEnv("SERVICETITAN_TENANT_ID", ""),
		ServiceTitanClientID:      getEnv("SERVICETITAN_CLIENT_ID", ""),
		ServiceTitanClientSecret:  getEnv("SERVICETITAN_CLIENT_SECRET", ""),
		ServiceTitanAppKey:        getEnv("SERVICETITAN_APP_KEY", ""),
		ServiceTitanBaseURL:       getEnv("SERVICETITAN_BASE_URL", "https://api.servicetitan.io"),
		ServiceTitanAuthURL:       getEnv("SERVICETITAN_AUTH_URL", "https://auth.servicetitan.io/connect/token"),
		OpenAIAPIKey:              getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:             getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:               getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		SerpAPIKey:                getEnv("SERPAPI_KEY", ""),
		SerpAPIPlaceID:            getEnv("SERPAPI_PLACE_ID", ""),
		ReviewCacheTTL:            mustDuration(getEnv("REVIEW_CACHE_TTL", "1h")),
		TwilioAccountSID:          getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:           getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber:          getEnv("TWILIO_FROM_NUMBER", ""),
		MinIOEndpoint:             getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:            getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:            getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:               strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinIOMaxFileSize:          mustInt64(getEnv("MINIO_MAX_FILE_SIZE", "20971520")),
		MinioBucketCustomerImport: getEnv("MINIO_BUCKET_CUSTOMER_IMPORTS", "customer-imports"),
		ServiceTitanWebhookSecret: getEnv("SERVICETITAN_WEBHOOK_SECRET", ""),
		ResendWebhookSecret:       getEnv("RESEND_WEBHOOK_SECRET", ""),
		ReferralCookieName:        getEnv("REFERRAL_COOKIE_NAME", "referralToken"),
		ReferralCookieTTL:         mustDuration(getEnv("REFERRAL_COOKIE_TTL", "2160h")),
		ReferralCookieSecure:      cookieSecure,
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.UnsubscribeSecret == "" {
		return nil, fmt.Errorf("UNSUBSCRIBE_SECRET is required")
	}
	if cfg.EmailEnabled && cfg.EmailFromAddress == "" && (cfg.ResendAPIKey != "" || cfg.SMTPHost != "") {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when an email provider is configured")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
