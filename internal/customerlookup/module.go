// Package customerlookup resolves customer identities across the imported
// spreadsheet cache and ServiceTitan.
package customerlookup

import (
	"plumbing_backend/internal/adapters/storage"
	"plumbing_backend/internal/customerlookup/adapters"
	"plumbing_backend/internal/customerlookup/handler"
	"plumbing_backend/internal/customerlookup/importer"
	"plumbing_backend/internal/customerlookup/repository"
	"plumbing_backend/internal/customerlookup/service"
	apphttp "plumbing_backend/internal/http"
	"plumbing_backend/internal/servicetitan"
	"plumbing_backend/platform/logger"
	"plumbing_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the customer lookup module.
type Module struct {
	handler  *handler.Handler
	service  *service.Service
	importer *importer.Importer
	repo     *repository.Repository
}

// NewModule wires the lookup service. crm and store may be nil.
func NewModule(pool *pgxpool.Pool, crm *servicetitan.Client, store storage.StorageService, bucket string, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)

	var crmAdapter service.Adapter
	var placeholder service.PlaceholderCreator
	if crm != nil {
		st := adapters.NewServiceTitanAdapter(crm)
		crmAdapter, placeholder = st, st
	}

	svc := service.New(adapters.NewXlsxAdapter(repo), crmAdapter, placeholder, log)
	imp := importer.New(repo, store, bucket, log)

	return &Module{handler: handler.New(svc, imp, val), service: svc, importer: imp, repo: repo}
}

// Service returns the lookup service for other modules.
func (m *Module) Service() *service.Service { return m.service }

// Importer returns the spreadsheet importer (used by the CLI).
func (m *Module) Importer() *importer.Importer { return m.importer }

// Contacts returns the imported customer cache for contact lookups by id.
func (m *Module) Contacts() *repository.Repository { return m.repo }

// Name returns the module name for logging.
func (m *Module) Name() string { return "customerlookup" }

// RegisterRoutes registers the lookup and import routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Public.POST("/customers/lookup", ctx.PublicRateLimit, m.handler.Lookup)
	ctx.Admin.POST("/customers/import", m.handler.Import)
	ctx.Admin.GET("/customers/imports", m.handler.ListImports)
	ctx.Admin.POST("/customers/imports/reimport", m.handler.Reimport)
}

var _ apphttp.Module = (*Module)(nil)
