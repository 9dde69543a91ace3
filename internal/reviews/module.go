// Package reviews syncs Google reviews and turns happy reviewers into
// referral nurture campaigns.
package reviews

import (
	"plumbing_backend/internal/events"
	apphttp "plumbing_backend/internal/http"
	"plumbing_backend/internal/reviews/handler"
	"plumbing_backend/internal/reviews/repository"
	"plumbing_backend/internal/reviews/serpapi"
	"plumbing_backend/internal/reviews/service"
	"plumbing_backend/platform/config"
	"plumbing_backend/platform/logger"
	"plumbing_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Module represents the reviews module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule wires the reviews module. rdb may be nil, which disables the
// response cache.
func NewModule(
	pool *pgxpool.Pool,
	cfg config.SerpAPIConfig,
	rdb *redis.Client,
	customers service.CustomerFinder,
	campaigns service.CampaignCreator,
	eventBus events.Bus,
	val *validator.Validator,
	log *logger.Logger,
) *Module {
	var cache serpapi.Cache
	if rdb != nil {
		cache = serpapi.NewRedisCache(rdb)
	}
	source := serpapi.NewClient(cfg, cache, log)
	svc := service.New(repository.New(pool), source, customers, campaigns, eventBus, log)
	return &Module{handler: handler.New(svc, val), service: svc}
}

// Service exposes review sync to background jobs.
func (m *Module) Service() *service.Service { return m.service }

// Name returns the module name for logging.
func (m *Module) Name() string { return "reviews" }

// RegisterRoutes registers the review admin routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	admin := ctx.Admin.Group("/reviews")
	admin.GET("", m.handler.List)
	admin.POST("/sync", m.handler.Sync)
	admin.POST("/:id/link", m.handler.Link)
}

var _ apphttp.Module = (*Module)(nil)
