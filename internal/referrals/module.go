// Package referrals tracks referrals from the landing link through booking
// conversion, job completion and staff crediting.
package referrals

import (
	"plumbing_backend/internal/events"
	apphttp "plumbing_backend/internal/http"
	"plumbing_backend/internal/referrals/handler"
	"plumbing_backend/internal/referrals/repository"
	"plumbing_backend/internal/referrals/service"
	"plumbing_backend/platform/config"
	"plumbing_backend/platform/httpkit"
	"plumbing_backend/platform/logger"
	"plumbing_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

const webhookSecretHeader = "X-Webhook-Secret"

// Module represents the referrals module.
type Module struct {
	handler       *handler.Handler
	service       *service.Service
	webhookSecret string
}

// NewModule creates the referrals module with all dependencies wired.
func NewModule(
	pool *pgxpool.Pool,
	vouchers service.VoucherIssuer,
	settings service.SettingsReader,
	eventBus events.Bus,
	cfg interface {
		config.ReferralConfig
		config.WebhookConfig
	},
	val *validator.Validator,
	log *logger.Logger,
) *Module {
	svc := service.New(repository.New(pool), vouchers, settings, eventBus, log)
	return &Module{
		handler:       handler.New(svc, val, cfg),
		service:       svc,
		webhookSecret: cfg.GetServiceTitanWebhookSecret(),
	}
}

// Service exposes referral conversion to the booking module.
func (m *Module) Service() *service.Service { return m.service }

// Name returns the module name for logging.
func (m *Module) Name() string { return "referrals" }

// RegisterRoutes registers the referral routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	public := ctx.Public.Group("/referrals", ctx.PublicRateLimit)
	public.GET("/r/:code", m.handler.Landing)
	public.POST("/r/:code", m.handler.Visit)
	public.POST("", m.handler.Submit)

	ctx.Webhooks.POST("/servicetitan/job-completed",
		httpkit.SharedSecret(webhookSecretHeader, m.webhookSecret), m.handler.JobCompleted)

	admin := ctx.Admin.Group("/referrals")
	admin.GET("", m.handler.List)
	admin.POST("/:id/credit", m.handler.Credit)
	admin.POST("/:id/ineligible", m.handler.MarkIneligible)
}

var _ apphttp.Module = (*Module)(nil)
