// Package auth signs back-office staff in and issues the access tokens the
// admin API requires.
package auth

import (
	"plumbing_backend/internal/auth/handler"
	"plumbing_backend/internal/auth/repository"
	"plumbing_backend/internal/auth/service"
	apphttp "plumbing_backend/internal/http"
	"plumbing_backend/platform/config"
	"plumbing_backend/platform/logger"
	"plumbing_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the auth bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the auth module with all its dependencies.
func NewModule(pool *pgxpool.Pool, cfg config.AuthServiceConfig, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, cfg, log)
	return &Module{handler: handler.New(svc, val), service: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "auth"
}

// Service returns the auth service for the operator CLI.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts auth routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	authGroup := ctx.V1.Group("/auth")
	authGroup.POST("/login", ctx.AuthRateLimiter.RateLimit(), m.handler.SignIn)
	authGroup.GET("/me", ctx.AuthMiddleware, m.handler.Me)
}

var _ apphttp.Module = (*Module)(nil)
