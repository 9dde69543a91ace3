package handler

import (
	"net/http"

	"plumbing_backend/internal/settings/service"
	"plumbing_backend/internal/settings/transport"
	"plumbing_backend/platform/httpkit"
	"plumbing_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests for system settings.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new settings handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the settings routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.Get)
	rg.PUT("", h.Update)
}

// Get handles GET /api/v1/admin/settings
func (h *Handler) Get(c *gin.Context) {
	s, err := h.svc.Load(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, s)
}

// Update handles PUT /api/v1/admin/settings
func (h *Handler) Update(c *gin.Context) {
	var req transport.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	s, err := h.svc.Update(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, s)
}
