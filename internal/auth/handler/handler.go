package handler

import (
	"net/http"

	"plumbing_backend/internal/auth/service"
	"plumbing_backend/internal/auth/transport"
	"plumbing_backend/platform/httpkit"
	"plumbing_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// Handler handles staff sign-in.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new auth handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// SignIn handles POST /api/v1/auth/login
func (h *Handler) SignIn(c *gin.Context) {
	var req transport.SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	session, err := h.svc.SignIn(c.Request.Context(), req.Email, req.Password)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.SignInResponse{
		AccessToken: session.AccessToken,
		ExpiresAt:   session.ExpiresAt,
		Email:       session.Email,
		Roles:       session.Roles,
	})
}

// Me handles GET /api/v1/auth/me
func (h *Handler) Me(c *gin.Context) {
	id := httpkit.GetIdentity(c)
	if !id.IsAuthenticated() {
		httpkit.Error(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	httpkit.OK(c, transport.MeResponse{ID: id.UserID().String(), Email: id.Email(), Roles: id.Roles()})
}
