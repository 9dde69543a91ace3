// Package service orchestrates a website booking into a ServiceTitan job:
// campaign, job type, business unit, customer and location, technician, then
// the job itself, followed by referral conversion.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"plumbing_backend/internal/booking/repository"
	"plumbing_backend/internal/events"
	referralservice "plumbing_backend/internal/referrals/service"
	"plumbing_backend/internal/servicetitan"
	"plumbing_backend/platform/apperr"
	"plumbing_backend/platform/logger"
	"plumbing_backend/platform/phone"

	"github.com/google/uuid"
)

const (
	websiteCampaign  = "website"
	technicianRole   = "technician"
	successMessage   = "Your appointment has been scheduled."
	defaultListLimit = 50
	maxListLimit     = 200
)

// CRM is the ServiceTitan surface the booking needs.
type CRM interface {
	GetCampaigns(ctx context.Context) ([]servicetitan.Campaign, error)
	FindJobTypeByName(ctx context.Context, name string) (*servicetitan.JobType, error)
	GetBusinessUnits(ctx context.Context) ([]servicetitan.BusinessUnit, error)
	GetTechnicians(ctx context.Context) ([]servicetitan.Technician, error)
	EnsureCustomer(ctx context.Context, in servicetitan.CustomerInput) (*servicetitan.Customer, error)
	EnsureLocation(ctx context.Context, customerID int64, name string, addr servicetitan.Address) (*servicetitan.Location, error)
	CreateJob(ctx context.Context, in servicetitan.CreateJobInput) (*servicetitan.Job, error)
}

// Store is the persistence port.
type Store interface {
	CreateRequest(ctx context.Context, req repository.Request) error
	MarkConfirmed(ctx context.Context, id uuid.UUID, c repository.Confirmation) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
	List(ctx context.Context, status string, limit, offset int) ([]repository.Request, error)
	CampaignForSource(ctx context.Context, utmSource string) (*int64, error)
	ListTrackingNumbers(ctx context.Context) ([]repository.TrackingNumber, error)
	UpsertTrackingNumber(ctx context.Context, t repository.TrackingNumber) (repository.TrackingNumber, error)
}

// ReferralConverter converts a pending referral once the job exists.
type ReferralConverter interface {
	ConvertForBooking(ctx context.Context, in referralservice.ConversionInput) referralservice.ConversionOutcome
}

// Service is the booking service.
type Service struct {
	store     Store
	crm       CRM
	referrals ReferralConverter
	eventBus  events.Bus
	log       *logger.Logger
	newID     func() uuid.UUID
}

// New creates a new booking service. crm may be nil when ServiceTitan is not
// configured; every booking then fails as unavailable.
func New(store Store, crm CRM, referrals ReferralConverter, eventBus events.Bus, log *logger.Logger) *Service {
	return &Service{
		store:     store,
		crm:       crm,
		referrals: referrals,
		eventBus:  eventBus,
		log:       log,
		newID:     uuid.New,
	}
}

// Input is a booking from the public scheduler.
type Input struct {
	Name                string
	Email               string
	Phone               string
	Street              string
	Unit                string
	City                string
	State               string
	Zip                 string
	RequestedService    string
	SpecialInstructions string
	GrouponCode         string
	Notes               string
	UTMSource           string
	ReferralToken       string
	ArrivalWindowStart  *time.Time
	ArrivalWindowEnd    *time.Time
	AppointmentStart    *time.Time
	AppointmentEnd      *time.Time
	CustomerID          int64
	LocationID          int64
	TechnicianID        int64
}

// Result is returned for a confirmed booking.
type Result struct {
	RequestID     uuid.UUID
	JobID         int64
	JobNumber     string
	AppointmentID int64
	Message       string
	Referral      referralservice.ConversionOutcome
}

// Failure is a booking that failed after its request row was recorded.
type Failure struct {
	RequestID uuid.UUID
	Err       error
}

func (f *Failure) Error() string { return f.Err.Error() }
func (f *Failure) Unwrap() error { return f.Err }

type schedule struct {
	windowStart, windowEnd time.Time
	start, end             time.Time
}

// Book runs the booking pipeline. Validation errors are returned before any
// row is written; later failures mark the request failed and come back as a
// *Failure carrying the request id.
func (s *Service) Book(ctx context.Context, in Input) (Result, error) {
	in = normalize(in)
	sched, err := validate(in)
	if err != nil {
		return Result{}, err
	}

	requestID := s.newID()
	instructions := BuildInstructions(in.SpecialInstructions, in.GrouponCode, in.Notes)
	if err := s.store.CreateRequest(ctx, toRequest(requestID, in, instructions, sched)); err != nil {
		return Result{}, apperr.Unavailable("failed to record booking", err)
	}

	res, err := s.createJob(ctx, requestID, in, instructions, sched)
	if err != nil {
		s.log.Warn("booking failed", "error", err, "requestId", requestID)
		if markErr := s.store.MarkFailed(ctx, requestID, err.Error()); markErr != nil {
			s.log.Warn("failed to mark scheduler request failed", "error", markErr, "requestId", requestID)
		}
		return Result{}, &Failure{RequestID: requestID, Err: err}
	}

	res.Referral = s.referrals.ConvertForBooking(ctx, referralservice.ConversionInput{
		Token:             in.ReferralToken,
		RefereeName:       in.Name,
		RefereePhone:      in.Phone,
		RefereeEmail:      in.Email,
		RefereeCustomerID: res.customerID,
		JobID:             res.JobID,
		JobDate:           sched.start,
	})

	s.eventBus.Publish(ctx, events.BookingConfirmed{
		BaseEvent:        events.NewBaseEvent(),
		RequestID:        requestID,
		JobID:            res.JobID,
		JobNumber:        res.JobNumber,
		CustomerName:     in.Name,
		CustomerEmail:    in.Email,
		RequestedService: in.RequestedService,
		AppointmentStart: &sched.start,
		ArrivalStart:     &sched.windowStart,
		ArrivalEnd:       &sched.windowEnd,
	})
	return res.Result, nil
}

type jobResult struct {
	Result
	customerID int64
}

func (s *Service) createJob(ctx context.Context, requestID uuid.UUID, in Input, instructions string, sched schedule) (jobResult, error) {
	if s.crm == nil {
		return jobResult{}, apperr.Unavailable("ServiceTitan is not configured", nil)
	}

	campaignID, err := s.resolveCampaign(ctx, in.UTMSource)
	if err != nil {
		return jobResult{}, err
	}

	jobType, err := s.crm.FindJobTypeByName(ctx, in.RequestedService)
	if err != nil {
		return jobResult{}, upstream("failed to load ServiceTitan job types", err)
	}
	if jobType == nil {
		return jobResult{}, apperr.BusinessRule(fmt.Sprintf(
			"No ServiceTitan job type matches %q. Create a matching job type in ServiceTitan.", in.RequestedService))
	}

	businessUnitID, err := s.resolveBusinessUnit(ctx, *jobType)
	if err != nil {
		return jobResult{}, err
	}

	customerID, locationID, err := s.resolveCustomer(ctx, in)
	if err != nil {
		return jobResult{}, err
	}

	technicianIDs := s.resolveTechnician(ctx, in.TechnicianID)

	summary := instructions
	if summary == "" {
		summary = in.RequestedService
	}
	job, err := s.crm.CreateJob(ctx, servicetitan.CreateJobInput{
		CustomerID:     customerID,
		LocationID:     locationID,
		BusinessUnitID: businessUnitID,
		JobTypeID:      jobType.ID,
		CampaignID:     campaignID,
		Summary:        summary,
		Appointments: []servicetitan.AppointmentInput{{
			Start:              sched.start,
			End:                sched.end,
			ArrivalWindowStart: sched.windowStart,
			ArrivalWindowEnd:   sched.windowEnd,
			TechnicianIDs:      technicianIDs,
		}},
	})
	if err != nil {
		return jobResult{}, upstream("failed to create ServiceTitan job", err)
	}

	var appointmentID *int64
	if job.FirstAppointmentID != 0 {
		appointmentID = &job.FirstAppointmentID
	}
	if err := s.store.MarkConfirmed(ctx, requestID, repository.Confirmation{
		CustomerID:    customerID,
		LocationID:    locationID,
		JobID:         job.ID,
		AppointmentID: appointmentID,
		JobNumber:     job.JobNumber,
	}); err != nil {
		// The job exists in ServiceTitan; losing the bookkeeping must not report a failed booking.
		s.log.Warn("failed to mark scheduler request confirmed", "error", err, "requestId", requestID, "jobId", job.ID)
	}

	s.log.Info("booking confirmed", "requestId", requestID, "jobId", job.ID, "jobNumber", job.JobNumber,
		"campaignId", campaignID, "jobTypeId", jobType.ID, "technicians", len(technicianIDs))
	return jobResult{
		Result: Result{
			RequestID:     requestID,
			JobID:         job.ID,
			JobNumber:     job.JobNumber,
			AppointmentID: job.FirstAppointmentID,
			Message:       successMessage,
		},
		customerID: customerID,
	}, nil
}

func (s *Service) resolveCampaign(ctx context.Context, utmSource string) (int64, error) {
	if utmSource != "" {
		id, err := s.store.CampaignForSource(ctx, utmSource)
		if err != nil {
			return 0, apperr.Unavailable("failed to load tracking numbers", err)
		}
		if id != nil && *id > 0 {
			return *id, nil
		}
	}

	campaigns, err := s.crm.GetCampaigns(ctx)
	if err != nil {
		return 0, upstream("failed to load ServiceTitan campaigns", err)
	}
	for _, c := range campaigns {
		if strings.EqualFold(strings.TrimSpace(c.Name), websiteCampaign) ||
			strings.EqualFold(strings.TrimSpace(c.Source), websiteCampaign) {
			return c.ID, nil
		}
	}
	return 0, apperr.BusinessRule(
		"No ServiceTitan campaign found. Map this tracking source to a campaign or create a campaign named \"website\" in ServiceTitan.")
}

func (s *Service) resolveBusinessUnit(ctx context.Context, jobType servicetitan.JobType) (int64, error) {
	if id, ok := jobType.DefaultBusinessUnitID(); ok {
		return id, nil
	}
	units, err := s.crm.GetBusinessUnits(ctx)
	if err != nil {
		return 0, upstream("failed to load ServiceTitan business units", err)
	}
	for _, u := range units {
		if u.Active {
			return u.ID, nil
		}
	}
	return 0, apperr.BusinessRule("No active ServiceTitan business unit found. Activate a business unit in ServiceTitan.")
}

func (s *Service) resolveCustomer(ctx context.Context, in Input) (int64, int64, error) {
	if in.CustomerID > 0 && in.LocationID > 0 {
		return in.CustomerID, in.LocationID, nil
	}

	addr := servicetitan.Address{Street: in.Street, Unit: in.Unit, City: in.City, State: in.State, Zip: in.Zip}
	customerID := in.CustomerID
	if customerID == 0 {
		customer, err := s.crm.EnsureCustomer(ctx, servicetitan.CustomerInput{
			Name:    in.Name,
			Phone:   in.Phone,
			Email:   in.Email,
			Address: addr,
		})
		if err != nil {
			return 0, 0, upstream("failed to resolve ServiceTitan customer", err)
		}
		customerID = customer.ID
	}

	location, err := s.crm.EnsureLocation(ctx, customerID, in.Name, addr)
	if err != nil {
		return 0, 0, upstream("failed to resolve ServiceTitan location", err)
	}
	return customerID, location.ID, nil
}

// resolveTechnician never fails the booking; an unassigned appointment is
// dispatched manually.
func (s *Service) resolveTechnician(ctx context.Context, explicit int64) []int64 {
	if explicit > 0 {
		return []int64{explicit}
	}
	techs, err := s.crm.GetTechnicians(ctx)
	if err != nil {
		s.log.Warn("failed to load technicians, booking unassigned", "error", err)
		return nil
	}
	for _, t := range techs {
		if t.Active && strings.Contains(strings.ToLower(t.Role), technicianRole) {
			return []int64{t.ID}
		}
	}
	s.log.Info("no technician available, booking unassigned")
	return nil
}

func upstream(message string, err error) error {
	var domainErr *apperr.Error
	if errors.As(err, &domainErr) {
		return err
	}
	return apperr.Unavailable(message, err)
}

// BuildInstructions joins customer text, the Groupon code and any existing
// instructions, in that order, separated by blank lines.
func BuildInstructions(customerText, grouponCode, existing string) string {
	var parts []string
	if t := strings.TrimSpace(customerText); t != "" {
		parts = append(parts, t)
	}
	if g := strings.TrimSpace(grouponCode); g != "" {
		parts = append(parts, "Groupon voucher: "+g)
	}
	if e := strings.TrimSpace(existing); e != "" {
		parts = append(parts, e)
	}
	return strings.Join(parts, "\n\n")
}

func normalize(in Input) Input {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Street = strings.TrimSpace(in.Street)
	in.Unit = strings.TrimSpace(in.Unit)
	in.City = strings.TrimSpace(in.City)
	in.State = strings.ToUpper(strings.TrimSpace(in.State))
	in.Zip = strings.TrimSpace(in.Zip)
	in.RequestedService = strings.TrimSpace(in.RequestedService)
	in.UTMSource = strings.ToLower(strings.TrimSpace(in.UTMSource))
	in.ReferralToken = strings.TrimSpace(in.ReferralToken)
	return in
}

func validate(in Input) (schedule, error) {
	var missing []string
	if in.Name == "" {
		missing = append(missing, "name")
	}
	if in.Phone == "" {
		missing = append(missing, "phone")
	}
	if in.RequestedService == "" {
		missing = append(missing, "requestedService")
	}
	if len(missing) > 0 {
		return schedule{}, apperr.Validation("missing required fields").WithDetails(map[string]interface{}{"fields": missing})
	}
	if !phone.IsTenDigit(in.Phone) {
		return schedule{}, apperr.Validation("phone must be a 10-digit US number")
	}
	if in.CustomerID == 0 || in.LocationID == 0 {
		addr := servicetitan.Address{Street: in.Street, City: in.City, State: in.State, Zip: in.Zip}
		if !addr.IsComplete() {
			return schedule{}, apperr.Validation("a complete address (street, city, state and zip) is required")
		}
	}
	return ValidateSchedule(in.ArrivalWindowStart, in.ArrivalWindowEnd, in.AppointmentStart, in.AppointmentEnd)
}

// ValidateSchedule checks the arrival window and appointment slot. Either may
// be omitted, but each must be given as a pair, and a slot given together with
// a window must lie fully inside it.
func ValidateSchedule(windowStart, windowEnd, start, end *time.Time) (schedule, error) {
	if (start == nil) != (end == nil) {
		return schedule{}, apperr.Validation("appointmentStart and appointmentEnd must be provided together")
	}
	if (windowStart == nil) != (windowEnd == nil) {
		return schedule{}, apperr.Validation("arrivalWindowStart and arrivalWindowEnd must be provided together")
	}
	if start == nil && windowStart == nil {
		return schedule{}, apperr.Validation("an arrival window or appointment time is required")
	}
	if start != nil && !end.After(*start) {
		return schedule{}, apperr.Validation("appointmentEnd must be after appointmentStart")
	}
	if windowStart != nil && !windowEnd.After(*windowStart) {
		return schedule{}, apperr.Validation("arrivalWindowEnd must be after arrivalWindowStart")
	}

	switch {
	case start != nil && windowStart != nil:
		if start.Before(*windowStart) || end.After(*windowEnd) {
			return schedule{}, apperr.Validation("appointment must fall within the arrival window").WithDetails(map[string]interface{}{
				"arrivalWindowStart": windowStart,
				"arrivalWindowEnd":   windowEnd,
			})
		}
		return schedule{windowStart: *windowStart, windowEnd: *windowEnd, start: *start, end: *end}, nil
	case start != nil:
		return schedule{windowStart: *start, windowEnd: *end, start: *start, end: *end}, nil
	default:
		return schedule{windowStart: *windowStart, windowEnd: *windowEnd, start: *windowStart, end: *windowEnd}, nil
	}
}

func toRequest(id uuid.UUID, in Input, instructions string, sched schedule) repository.Request {
	req := repository.Request{
		ID:                  id,
		CustomerName:        in.Name,
		CustomerEmail:       in.Email,
		CustomerPhone:       phone.Normalize(in.Phone),
		Address:             strings.TrimSpace(strings.Join([]string{in.Street, in.Unit}, " ")),
		City:                in.City,
		State:               in.State,
		Zip:                 in.Zip,
		RequestedService:    in.RequestedService,
		SpecialInstructions: instructions,
		ArrivalWindowStart:  &sched.windowStart,
		ArrivalWindowEnd:    &sched.windowEnd,
		AppointmentStart:    &sched.start,
		AppointmentEnd:      &sched.end,
	}
	if in.UTMSource != "" {
		req.UTMSource = &in.UTMSource
	}
	if in.ReferralToken != "" {
		req.ReferralToken = &in.ReferralToken
	}
	return req
}

// ListRequests returns recent scheduler requests for the admin view.
func (s *Service) ListRequests(ctx context.Context, status string, limit, offset int) ([]repository.Request, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.List(ctx, status, limit, offset)
}

// ListTrackingNumbers returns every utm_source mapping.
func (s *Service) ListTrackingNumbers(ctx context.Context) ([]repository.TrackingNumber, error) {
	return s.store.ListTrackingNumbers(ctx)
}

// SaveTrackingNumber creates or replaces a utm_source mapping.
func (s *Service) SaveTrackingNumber(ctx context.Context, t repository.TrackingNumber) (repository.TrackingNumber, error) {
	t.UTMSource = strings.ToLower(strings.TrimSpace(t.UTMSource))
	if t.UTMSource == "" {
		return repository.TrackingNumber{}, apperr.Validation("utmSource is required")
	}
	if t.PhoneNumber != "" {
		t.PhoneNumber = phone.Normalize(t.PhoneNumber)
	}
	return s.store.UpsertTrackingNumber(ctx, t)
}
