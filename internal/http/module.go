// Package http provides HTTP server infrastructure including the Module interface
// that all domain modules must implement for route registration.
package http

import (
	"plumbing_backend/platform/config"
	"plumbing_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Module represents a bounded context that can register its HTTP routes.
// Each domain module implements this interface to encapsulate its own
// route setup, keeping the main router decoupled from specific endpoints.
type Module interface {
	// Name returns the module's identifier for logging purposes.
	Name() string
	// RegisterRoutes mounts the module's routes on the provided router groups.
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext provides shared dependencies for module route registration.
type RouterContext struct {
	// Engine is the root Gin engine for modules that need engine-level access.
	Engine *gin.Engine
	// Public is the unauthenticated /api group used by the marketing site.
	Public *gin.RouterGroup
	// PublicRateLimit throttles public write endpoints per client IP.
	PublicRateLimit gin.HandlerFunc
	// V1 is the /api/v1 route group.
	V1 *gin.RouterGroup
	// Admin is the staff-only group under /api/v1/admin (JWT + admin role).
	Admin *gin.RouterGroup
	// AuthMiddleware validates staff access tokens for non-admin protected routes.
	AuthMiddleware gin.HandlerFunc
	// Webhooks is the /api/webhooks group; modules attach their own secret checks.
	Webhooks *gin.RouterGroup
	// Config is the JWT configuration for auth middleware (scoped access).
	Config config.JWTConfig
	// AuthRateLimiter is the stricter rate limiter for login.
	AuthRateLimiter *httpkit.IPRateLimiter
}
