package handler

import (
	"errors"
	"net/http"
	"strconv"

	"plumbing_backend/internal/booking/repository"
	"plumbing_backend/internal/booking/service"
	"plumbing_backend/internal/booking/transport"
	"plumbing_backend/internal/servicetitan"
	"plumbing_backend/platform/apperr"
	"plumbing_backend/platform/httpkit"
	"plumbing_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles scheduler booking endpoints.
type Handler struct {
	svc        *service.Service
	crm        *servicetitan.Client
	val        *validator.Validator
	cookieName string
}

// New creates a new booking handler. crm may be nil.
func New(svc *service.Service, crm *servicetitan.Client, val *validator.Validator, cookieName string) *Handler {
	return &Handler{svc: svc, crm: crm, val: val, cookieName: cookieName}
}

// Book handles POST /api/scheduler/book
func (h *Handler) Book(c *gin.Context) {
	var req transport.BookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bookError(c, http.StatusBadRequest, "invalid request", err.Error(), nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		bookError(c, http.StatusBadRequest, "validation failed", err.Error(), nil)
		return
	}

	token := req.ReferralToken
	if token == "" && h.cookieName != "" {
		token, _ = c.Cookie(h.cookieName)
	}

	res, err := h.svc.Book(c.Request.Context(), service.Input{
		Name:                req.Name,
		Email:               req.Email,
		Phone:               req.Phone,
		Street:              req.Address,
		Unit:                req.Unit,
		City:                req.City,
		State:               req.State,
		Zip:                 req.Zip,
		RequestedService:    req.RequestedService,
		SpecialInstructions: req.SpecialInstructions,
		GrouponCode:         req.GrouponCode,
		Notes:               req.Notes,
		UTMSource:           req.UTMSource,
		ReferralToken:       token,
		ArrivalWindowStart:  req.ArrivalWindowStart,
		ArrivalWindowEnd:    req.ArrivalWindowEnd,
		AppointmentStart:    req.AppointmentStart,
		AppointmentEnd:      req.AppointmentEnd,
		CustomerID:          req.ServiceTitanID,
		LocationID:          req.LocationID,
		TechnicianID:        req.TechnicianID,
	})
	if err != nil {
		writeBookError(c, err)
		return
	}

	httpkit.OK(c, transport.BookResponse{
		Success:       true,
		RequestID:     res.RequestID,
		JobNumber:     res.JobNumber,
		JobID:         res.JobID,
		AppointmentID: res.AppointmentID,
		Message:       res.Message,
	})
}

// writeBookError keeps the scheduler's {success:false} envelope: validation
// problems are 400, everything after the request row exists is 500.
func writeBookError(c *gin.Context, err error) {
	var requestID *uuid.UUID
	var failure *service.Failure
	if errors.As(err, &failure) {
		requestID = &failure.RequestID
	}

	var domainErr *apperr.Error
	if !errors.As(err, &domainErr) {
		_ = c.Error(err)
		bookError(c, http.StatusInternalServerError, "booking failed", nil, requestID)
		return
	}

	status := http.StatusInternalServerError
	if failure == nil && domainErr.HTTPStatus() < http.StatusInternalServerError {
		status = http.StatusBadRequest
	}
	if domainErr.Err != nil {
		_ = c.Error(domainErr.Err)
	}
	bookError(c, status, domainErr.Message, domainErr.Details, requestID)
}

func bookError(c *gin.Context, status int, message string, details interface{}, requestID *uuid.UUID) {
	c.JSON(status, transport.BookErrorResponse{Success: false, Error: message, Details: details, RequestID: requestID})
}

// ListRequests handles GET /api/v1/admin/scheduler-requests
func (h *Handler) ListRequests(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	reqs, err := h.svc.ListRequests(c.Request.Context(), c.Query("status"), limit, offset)
	if httpkit.HandleError(c, err) {
		return
	}
	items := make([]transport.SchedulerRequestResponse, 0, len(reqs))
	for _, r := range reqs {
		items = append(items, transport.FromRequest(r))
	}
	httpkit.OK(c, transport.SchedulerRequestListResponse{Items: items})
}

// ListTrackingNumbers handles GET /api/v1/admin/tracking-numbers
func (h *Handler) ListTrackingNumbers(c *gin.Context) {
	numbers, err := h.svc.ListTrackingNumbers(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	items := make([]transport.TrackingNumberResponse, 0, len(numbers))
	for _, n := range numbers {
		items = append(items, transport.FromTrackingNumber(n))
	}
	httpkit.OK(c, gin.H{"items": items})
}

// SaveTrackingNumber handles PUT /api/v1/admin/tracking-numbers
func (h *Handler) SaveTrackingNumber(c *gin.Context) {
	var req transport.TrackingNumberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	saved, err := h.svc.SaveTrackingNumber(c.Request.Context(), repository.TrackingNumber{
		UTMSource:              req.UTMSource,
		PhoneNumber:            req.PhoneNumber,
		Label:                  req.Label,
		ServiceTitanCampaignID: req.ServiceTitanCampaignID,
		Active:                 active,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromTrackingNumber(saved))
}

// ReferenceData handles GET /api/v1/admin/servicetitan/reference
func (h *Handler) ReferenceData(c *gin.Context) {
	if h.crm == nil {
		httpkit.Error(c, http.StatusServiceUnavailable, "ServiceTitan is not configured", nil)
		return
	}
	data, err := h.crm.GetReferenceData(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		httpkit.Error(c, http.StatusBadGateway, "failed to load ServiceTitan reference data", nil)
		return
	}
	httpkit.OK(c, data)
}
