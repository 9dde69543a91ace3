// Package booking handles public scheduler bookings and their ServiceTitan
// job creation.
package booking

import (
	"plumbing_backend/internal/booking/handler"
	"plumbing_backend/internal/booking/repository"
	"plumbing_backend/internal/booking/service"
	"plumbing_backend/internal/events"
	apphttp "plumbing_backend/internal/http"
	"plumbing_backend/internal/servicetitan"
	"plumbing_backend/platform/logger"
	"plumbing_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the booking module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates the booking module. crm is nil when ServiceTitan is not configured.
func NewModule(
	pool *pgxpool.Pool,
	crm *servicetitan.Client,
	referrals service.ReferralConverter,
	eventBus events.Bus,
	referralCookie string,
	val *validator.Validator,
	log *logger.Logger,
) *Module {
	var port service.CRM
	if crm != nil {
		port = crm
	}
	svc := service.New(repository.New(pool), port, referrals, eventBus, log)
	return &Module{handler: handler.New(svc, crm, val, referralCookie), service: svc}
}

// Service exposes the booking service.
func (m *Module) Service() *service.Service { return m.service }

// Name returns the module name for logging.
func (m *Module) Name() string { return "booking" }

// RegisterRoutes registers the booking routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Public.POST("/scheduler/book", ctx.PublicRateLimit, m.handler.Book)

	ctx.Admin.GET("/scheduler-requests", m.handler.ListRequests)
	ctx.Admin.GET("/tracking-numbers", m.handler.ListTrackingNumbers)
	ctx.Admin.PUT("/tracking-numbers", m.handler.SaveTrackingNumber)
	ctx.Admin.GET("/servicetitan/reference", m.handler.ReferenceData)
}

var _ apphttp.Module = (*Module)(nil)
