package handler

import (
	"net/http"
	"strconv"

	"plumbing_backend/internal/reviews/service"
	"plumbing_backend/internal/reviews/transport"
	"plumbing_backend/platform/httpkit"
	"plumbing_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// Handler handles review admin endpoints.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new reviews handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// List handles GET /api/v1/admin/reviews
func (h *Handler) List(c *gin.Context) {
	minRating, _ := strconv.Atoi(c.Query("minRating"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	items, err := h.svc.List(c.Request.Context(), minRating, limit, offset)
	if httpkit.HandleError(c, err) {
		return
	}
	resp := transport.ReviewListResponse{Items: make([]transport.ReviewResponse, 0, len(items))}
	for _, item := range items {
		resp.Items = append(resp.Items, transport.FromReview(item))
	}
	httpkit.OK(c, resp)
}

// Sync handles POST /api/v1/admin/reviews/sync
func (h *Handler) Sync(c *gin.Context) {
	summary, err := h.svc.Sync(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, summary)
}

// Link handles POST /api/v1/admin/reviews/:id/link
func (h *Handler) Link(c *gin.Context) {
	var req transport.LinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	res, err := h.svc.Link(c.Request.Context(), c.Param("id"), service.LinkInput{Phone: req.Phone, Email: req.Email})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.LinkResponse{
		Review:     transport.FromReview(res.Review),
		CustomerID: res.Customer.CustomerID,
		Source:     res.Customer.Source,
		CampaignID: res.CampaignID,
		Created:    res.Created,
	})
}
