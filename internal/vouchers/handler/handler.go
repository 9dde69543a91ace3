package handler

import (
	"net/http"

	"plumbing_backend/internal/vouchers/service"
	"plumbing_backend/internal/vouchers/transport"
	"plumbing_backend/platform/httpkit"
	"plumbing_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// Handler handles voucher lookup and redemption.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new voucher handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// Lookup handles GET /api/vouchers/lookup?code=
func (h *Handler) Lookup(c *gin.Context) {
	v, err := h.svc.Lookup(c.Request.Context(), c.Query("code"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.LookupResponse{Voucher: transport.FromVoucher(v)})
}

// Redeem handles POST /api/vouchers/redeem
func (h *Handler) Redeem(c *gin.Context) {
	var req transport.RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	v, err := h.svc.Redeem(c.Request.Context(), req.Code, req.JobAmount)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.LookupResponse{Voucher: transport.FromVoucher(v)})
}

// QRCode handles GET /api/vouchers/:code/qr.png
func (h *Handler) QRCode(c *gin.Context) {
	png, err := h.svc.QRCode(c.Request.Context(), c.Param("code"))
	if httpkit.HandleError(c, err) {
		return
	}
	c.Header("Cache-Control", "private, max-age=3600")
	c.Data(http.StatusOK, "image/png", png)
}
