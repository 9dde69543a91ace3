package handler

import (
	"net/http"
	"strconv"

	"plumbing_backend/internal/referrals/repository"
	"plumbing_backend/internal/referrals/service"
	"plumbing_backend/internal/referrals/transport"
	vouchertransport "plumbing_backend/internal/vouchers/transport"
	"plumbing_backend/platform/config"
	"plumbing_backend/platform/httpkit"
	"plumbing_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles referral HTTP endpoints.
type Handler struct {
	svc    *service.Service
	val    *validator.Validator
	cookie config.ReferralConfig
}

// New creates a new referral handler.
func New(svc *service.Service, val *validator.Validator, cookie config.ReferralConfig) *Handler {
	return &Handler{svc: svc, val: val, cookie: cookie}
}

// Landing handles GET /api/referrals/r/:code
func (h *Handler) Landing(c *gin.Context) {
	h.capture(c, transport.LandingRequest{})
}

// Visit handles POST /api/referrals/r/:code with referee details from the landing form.
func (h *Handler) Visit(c *gin.Context) {
	var req transport.LandingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}
	h.capture(c, req)
}

func (h *Handler) capture(c *gin.Context, req transport.LandingRequest) {
	p, err := h.svc.CaptureLanding(c.Request.Context(), service.LandingInput{
		Code:         c.Param("code"),
		RefereeName:  req.RefereeName,
		RefereeEmail: req.RefereeEmail,
		RefereePhone: req.RefereePhone,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	h.setCookie(c, p.TrackingCookie)
	httpkit.OK(c, transport.LandingResponse{Token: p.TrackingCookie, ReferrerName: p.ReferrerName})
}

// Submit handles POST /api/referrals
func (h *Handler) Submit(c *gin.Context) {
	var req transport.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	ref, token, err := h.svc.Submit(c.Request.Context(), service.SubmitInput{
		Code:         req.ReferralCode,
		RefereeName:  req.RefereeName,
		RefereePhone: req.RefereePhone,
		RefereeEmail: req.RefereeEmail,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	h.setCookie(c, token)
	httpkit.JSON(c, http.StatusCreated, transport.SubmitResponse{ReferralID: ref.ID, Token: token})
}

func (h *Handler) setCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.GetReferralCookieName(), token, int(h.cookie.GetReferralCookieTTL().Seconds()),
		"/", "", h.cookie.GetReferralCookieSecure(), true)
}

// JobCompleted handles POST /api/webhooks/servicetitan/job-completed
func (h *Handler) JobCompleted(c *gin.Context) {
	var req transport.JobCompletedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	ref, ok, err := h.svc.CompleteJob(c.Request.Context(), req.JobID, req.TotalCents, req.CompletedOn)
	if httpkit.HandleError(c, err) {
		return
	}
	resp := transport.JobCompletedResponse{Matched: ok}
	if ok {
		resp.ReferralID = &ref.ID
	}
	httpkit.OK(c, resp)
}

// List handles GET /api/v1/admin/referrals
func (h *Handler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	refs, err := h.svc.List(c.Request.Context(), repository.ListFilter{
		Status:       c.Query("status"),
		CreditStatus: c.Query("creditStatus"),
		Limit:        limit,
		Offset:       offset,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	items := make([]transport.ReferralResponse, 0, len(refs))
	for _, r := range refs {
		items = append(items, transport.FromReferral(r))
	}
	httpkit.OK(c, transport.ListResponse{Items: items})
}

// Credit handles POST /api/v1/admin/referrals/:id/credit
func (h *Handler) Credit(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req transport.CreditRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	ref, voucher, err := h.svc.Credit(c.Request.Context(), id, service.CreditInput{AmountCents: req.AmountCents, Notes: req.Notes})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.CreditResponse{
		Referral: transport.FromReferral(ref),
		Voucher:  vouchertransport.FromVoucher(voucher),
	})
}

// MarkIneligible handles POST /api/v1/admin/referrals/:id/ineligible
func (h *Handler) MarkIneligible(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req transport.IneligibleRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	ref, err := h.svc.MarkIneligible(c.Request.Context(), id, req.Notes)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromReferral(ref))
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid referral id", nil)
		return uuid.Nil, false
	}
	return id, true
}
