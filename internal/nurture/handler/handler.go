package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"plumbing_backend/internal/nurture/repository"
	"plumbing_backend/internal/nurture/service"
	"plumbing_backend/internal/nurture/transport"
	"plumbing_backend/platform/httpkit"
	"plumbing_backend/platform/logger"
	"plumbing_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxWebhookBody = 1 << 20

// Handler handles nurture HTTP endpoints.
type Handler struct {
	svc           *service.Service
	val           *validator.Validator
	webhookSecret string
	log           *logger.Logger
	now           func() time.Time
}

// New creates a new nurture handler.
func New(svc *service.Service, val *validator.Validator, webhookSecret string, log *logger.Logger) *Handler {
	return &Handler{svc: svc, val: val, webhookSecret: webhookSecret, log: log, now: time.Now}
}

// List handles GET /api/v1/admin/nurture/campaigns
func (h *Handler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	items, err := h.svc.List(c.Request.Context(), c.Query("status"), limit, offset)
	if httpkit.HandleError(c, err) {
		return
	}
	resp := transport.CampaignListResponse{Items: make([]transport.CampaignResponse, 0, len(items))}
	for _, item := range items {
		resp.Items = append(resp.Items, transport.FromCampaign(item))
	}
	httpkit.OK(c, resp)
}

// Get handles GET /api/v1/admin/nurture/campaigns/:id
func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	campaign, err := h.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromCampaign(campaign))
}

// Create handles POST /api/v1/admin/nurture/campaigns
func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateCampaignRequest
	if !h.bind(c, &req) {
		return
	}
	id, created, err := h.svc.CreateCampaignForReviewer(c.Request.Context(), service.CreateInput{
		CustomerID: req.CustomerID,
		Email:      req.Email,
		Name:       req.Name,
		ReviewID:   req.ReviewID,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httpkit.JSON(c, status, transport.CreateCampaignResponse{CampaignID: id, Created: created})
}

// Pause handles POST /api/v1/admin/nurture/campaigns/:id/pause
func (h *Handler) Pause(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req transport.PauseRequest
	if c.Request.ContentLength > 0 && !h.bind(c, &req) {
		return
	}
	campaign, err := h.svc.Pause(c.Request.Context(), id, req.Reason)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromCampaign(campaign))
}

// Resume handles POST /api/v1/admin/nurture/campaigns/:id/resume
func (h *Handler) Resume(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	campaign, err := h.svc.Resume(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromCampaign(campaign))
}

// Send handles POST /api/v1/admin/nurture/campaigns/:id/send
func (h *Handler) Send(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req transport.SendRequest
	if !h.bind(c, &req) {
		return
	}
	out := h.svc.SendReferralEmail(c.Request.Context(), id, req.EmailNumber)
	httpkit.OK(c, transport.SendResponse{
		Sent:              out.Sent,
		Reason:            out.Reason,
		Status:            out.Status,
		ProviderMessageID: out.ProviderMessageID,
	})
}

// Process handles POST /api/v1/admin/nurture/process
func (h *Handler) Process(c *gin.Context) {
	summary, err := h.svc.ProcessPendingEmails(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, summary)
}

// ListTemplates handles GET /api/v1/admin/nurture/templates
func (h *Handler) ListTemplates(c *gin.Context) {
	items, err := h.svc.ListTemplates(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	resp := transport.TemplateListResponse{Items: make([]transport.TemplateResponse, 0, len(items))}
	for _, item := range items {
		resp.Items = append(resp.Items, transport.FromTemplate(item))
	}
	httpkit.OK(c, resp)
}

// SaveTemplate handles PUT /api/v1/admin/nurture/templates/:number
func (h *Handler) SaveTemplate(c *gin.Context) {
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid email number", nil)
		return
	}
	var req transport.TemplateRequest
	if !h.bind(c, &req) {
		return
	}
	saved, err := h.svc.SaveTemplate(c.Request.Context(), repository.Template{
		CampaignType: req.CampaignType,
		EmailNumber:  number,
		Subject:      req.Subject,
		Preheader:    req.Preheader,
		HTMLBody:     req.HTMLBody,
		PlainBody:    req.PlainBody,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromTemplate(saved))
}

// ResendWebhook handles POST /api/webhooks/resend
func (h *Handler) ResendWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if h.webhookSecret == "" {
		httpkit.Error(c, http.StatusServiceUnavailable, "webhook not configured", nil)
		return
	}
	if err := verifySignature(h.webhookSecret, c.Request.Header, body, h.now()); err != nil {
		h.log.Warn("rejected resend webhook", "error", err)
		httpkit.Error(c, http.StatusUnauthorized, "invalid signature", nil)
		return
	}

	var payload transport.ResendWebhook
	if err := json.Unmarshal(body, &payload); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid payload", err.Error())
		return
	}
	err = h.svc.HandleResendEvent(c.Request.Context(), service.ResendEvent{
		Type:      payload.Type,
		EmailID:   payload.Data.EmailID,
		CreatedAt: payload.CreatedAt,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"received": true})
}

func (h *Handler) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", err.Error())
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return false
	}
	return true
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid id", nil)
		return uuid.Nil, false
	}
	return id, true
}
