// Package vouchers provides referral reward vouchers: issuance, lookup and
// single-use redemption.
package vouchers

import (
	"plumbing_backend/internal/events"
	apphttp "plumbing_backend/internal/http"
	"plumbing_backend/internal/vouchers/handler"
	"plumbing_backend/internal/vouchers/repository"
	"plumbing_backend/internal/vouchers/service"
	"plumbing_backend/platform/logger"
	"plumbing_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the vouchers module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates the vouchers module with all dependencies wired.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, publicBaseURL string, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(repository.New(pool), eventBus, publicBaseURL, log)
	return &Module{handler: handler.New(svc, val), service: svc}
}

// Service exposes voucher issuance to the referrals module.
func (m *Module) Service() *service.Service { return m.service }

// Name returns the module name for logging.
func (m *Module) Name() string { return "vouchers" }

// RegisterRoutes registers the voucher routes. Lookup and redemption are staff
// actions; the QR image is public so it can be embedded in emails.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	vouchers := ctx.Public.Group("/vouchers")
	vouchers.GET("/lookup", ctx.AuthMiddleware, m.handler.Lookup)
	vouchers.POST("/redeem", ctx.AuthMiddleware, m.handler.Redeem)
	vouchers.GET("/:code/qr.png", ctx.PublicRateLimit, m.handler.QRCode)
}

var _ apphttp.Module = (*Module)(nil)
