// Package settings provides the runtime settings module backed by system_settings.
package settings

import (
	apphttp "plumbing_backend/internal/http"
	"plumbing_backend/internal/settings/handler"
	"plumbing_backend/internal/settings/repository"
	"plumbing_backend/internal/settings/service"
	"plumbing_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the settings module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates the settings module with all dependencies wired.
func NewModule(pool *pgxpool.Pool, val *validator.Validator) *Module {
	svc := service.New(repository.New(pool))
	return &Module{handler: handler.New(svc, val), service: svc}
}

// Service exposes the typed settings loader to other modules.
func (m *Module) Service() *service.Service { return m.service }

// Name returns the module name for logging.
func (m *Module) Name() string { return "settings" }

// RegisterRoutes registers the admin settings routes under /api/v1/admin/settings.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Admin.Group("/settings"))
}

var _ apphttp.Module = (*Module)(nil)
