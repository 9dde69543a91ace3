// Package nurture runs the referral nurture drip: four time-gated emails per
// customer, paused on suppression, opt-out or low engagement.
package nurture

import (
	"context"

	"plumbing_backend/internal/ai"
	"plumbing_backend/internal/email"
	"plumbing_backend/internal/events"
	apphttp "plumbing_backend/internal/http"
	"plumbing_backend/internal/nurture/handler"
	"plumbing_backend/internal/nurture/repository"
	"plumbing_backend/internal/nurture/service"
	"plumbing_backend/platform/logger"
	"plumbing_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the nurture module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	log     *logger.Logger
}

// NewModule creates the nurture module. Stored templates are preferred;
// generator is only asked when a slot has no template.
func NewModule(
	pool *pgxpool.Pool,
	settings service.SettingsReader,
	prefs service.Preferences,
	sender email.Sender,
	generator *ai.Client,
	resendWebhookSecret string,
	val *validator.Validator,
	log *logger.Logger,
) *Module {
	repo := repository.New(pool)
	var generated service.ContentSource
	if generator != nil && generator.Configured() {
		generated = service.NewGeneratedSource(generator)
	}
	content := service.NewFallbackSource(service.NewTemplateSource(repo), generated)
	svc := service.New(repo, settings, prefs, sender, content, log)
	return &Module{
		handler: handler.New(svc, val, resendWebhookSecret, log),
		service: svc,
		log:     log,
	}
}

// Service exposes the nurture scheduler to reviews and background jobs.
func (m *Module) Service() *service.Service { return m.service }

// Name returns the module name for logging.
func (m *Module) Name() string { return "nurture" }

// RegisterRoutes registers the nurture routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	admin := ctx.Admin.Group("/nurture")
	admin.GET("/campaigns", m.handler.List)
	admin.POST("/campaigns", m.handler.Create)
	admin.GET("/campaigns/:id", m.handler.Get)
	admin.POST("/campaigns/:id/pause", m.handler.Pause)
	admin.POST("/campaigns/:id/resume", m.handler.Resume)
	admin.POST("/campaigns/:id/send", m.handler.Send)
	admin.POST("/process", m.handler.Process)
	admin.GET("/templates", m.handler.ListTemplates)
	admin.PUT("/templates/:number", m.handler.SaveTemplate)

	ctx.Webhooks.POST("/resend", m.handler.ResendWebhook)
}

// RegisterHandlers subscribes to referral events.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.ReferralCompleted{}.EventName(), m)
}

// Handle starts a nurture campaign for referees whose first job completed.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.ReferralCompleted:
		if e.RefereeCustomerID == nil || e.RefereeEmail == "" {
			m.log.Debug("referee has no customer id or email, no nurture campaign", "referralId", e.ReferralID)
			return nil
		}
		_, _, err := m.service.CreateCampaignForReviewer(ctx, service.CreateInput{
			CustomerID: *e.RefereeCustomerID,
			Email:      e.RefereeEmail,
			Name:       e.RefereeName,
		})
		return err
	}
	return nil
}

var _ apphttp.Module = (*Module)(nil)
