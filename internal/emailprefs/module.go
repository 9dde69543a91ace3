// Package emailprefs owns the suppression list, recipient opt-outs and the
// email send log.
package emailprefs

import (
	"plumbing_backend/internal/emailprefs/handler"
	"plumbing_backend/internal/emailprefs/repository"
	"plumbing_backend/internal/emailprefs/service"
	apphttp "plumbing_backend/internal/http"
	"plumbing_backend/platform/config"
	"plumbing_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the email preferences module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates the module with all dependencies wired.
func NewModule(pool *pgxpool.Pool, cfg config.UnsubscribeConfig, log *logger.Logger) *Module {
	svc := service.New(repository.New(pool), cfg, log)
	return &Module{handler: handler.New(svc), service: svc}
}

// Service exposes the preferences service to the nurture scheduler.
func (m *Module) Service() *service.Service { return m.service }

// Name returns the module name for logging.
func (m *Module) Name() string { return "emailprefs" }

// RegisterRoutes registers /api/email/unsubscribe.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Public.Group("/email"))
}

var _ apphttp.Module = (*Module)(nil)
