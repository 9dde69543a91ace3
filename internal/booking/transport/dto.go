package transport

import (
	"time"

	"plumbing_backend/internal/booking/repository"

	"github.com/google/uuid"
)

// BookRequest is the public scheduler booking payload.
type BookRequest struct {
	Name                string     `json:"name" validate:"required,max=200"`
	Email               string     `json:"email" validate:"omitempty,email,max=254"`
	Phone               string     `json:"phone" validate:"required,max=32"`
	Address             string     `json:"address" validate:"max=300"`
	Unit                string     `json:"unit" validate:"max=50"`
	City                string     `json:"city" validate:"max=100"`
	State               string     `json:"state" validate:"max=50"`
	Zip                 string     `json:"zip" validate:"max=20"`
	RequestedService    string     `json:"requestedService" validate:"required,max=200"`
	SpecialInstructions string     `json:"specialInstructions" validate:"max=2000"`
	GrouponCode         string     `json:"grouponCode" validate:"max=100"`
	Notes               string     `json:"notes" validate:"max=2000"`
	UTMSource           string     `json:"utmSource" validate:"max=100"`
	ReferralToken       string     `json:"referralToken" validate:"max=200"`
	ArrivalWindowStart  *time.Time `json:"arrivalWindowStart"`
	ArrivalWindowEnd    *time.Time `json:"arrivalWindowEnd"`
	AppointmentStart    *time.Time `json:"appointmentStart"`
	AppointmentEnd      *time.Time `json:"appointmentEnd"`
	ServiceTitanID      int64      `json:"serviceTitanId" validate:"gte=0"`
	LocationID          int64      `json:"locationId" validate:"gte=0"`
	TechnicianID        int64      `json:"technicianId" validate:"gte=0"`
}

// BookResponse is the success envelope.
type BookResponse struct {
	Success       bool      `json:"success"`
	RequestID     uuid.UUID `json:"requestId"`
	JobNumber     string    `json:"jobNumber"`
	JobID         int64     `json:"jobId"`
	AppointmentID int64     `json:"appointmentId,omitempty"`
	Message       string    `json:"message"`
}

// BookErrorResponse is the failure envelope.
type BookErrorResponse struct {
	Success   bool        `json:"success"`
	Error     string      `json:"error"`
	Details   interface{} `json:"details,omitempty"`
	RequestID *uuid.UUID  `json:"requestId,omitempty"`
}

// SchedulerRequestResponse is the admin view of a booking attempt.
type SchedulerRequestResponse struct {
	ID                        uuid.UUID  `json:"id"`
	CustomerName              string     `json:"customerName"`
	CustomerEmail             string     `json:"customerEmail"`
	CustomerPhone             string     `json:"customerPhone"`
	Address                   string     `json:"address"`
	City                      string     `json:"city"`
	State                     string     `json:"state"`
	Zip                       string     `json:"zip"`
	RequestedService          string     `json:"requestedService"`
	SpecialInstructions       string     `json:"specialInstructions"`
	UTMSource                 *string    `json:"utmSource,omitempty"`
	ArrivalWindowStart        *time.Time `json:"arrivalWindowStart,omitempty"`
	ArrivalWindowEnd          *time.Time `json:"arrivalWindowEnd,omitempty"`
	AppointmentStart          *time.Time `json:"appointmentStart,omitempty"`
	AppointmentEnd            *time.Time `json:"appointmentEnd,omitempty"`
	Status                    string     `json:"status"`
	ServiceTitanCustomerID    *int64     `json:"serviceTitanCustomerId,omitempty"`
	ServiceTitanJobID         *int64     `json:"serviceTitanJobId,omitempty"`
	ServiceTitanAppointmentID *int64     `json:"serviceTitanAppointmentId,omitempty"`
	JobNumber                 *string    `json:"jobNumber,omitempty"`
	ErrorMessage              *string    `json:"errorMessage,omitempty"`
	CreatedAt                 time.Time  `json:"createdAt"`
}

// SchedulerRequestListResponse wraps the admin listing.
type SchedulerRequestListResponse struct {
	Items []SchedulerRequestResponse `json:"items"`
}

// FromRequest maps a scheduler request row.
func FromRequest(r repository.Request) SchedulerRequestResponse {
	return SchedulerRequestResponse{
		ID:                        r.ID,
		CustomerName:              r.CustomerName,
		CustomerEmail:             r.CustomerEmail,
		CustomerPhone:             r.CustomerPhone,
		Address:                   r.Address,
		City:                      r.City,
		State:                     r.State,
		Zip:                       r.Zip,
		RequestedService:          r.RequestedService,
		SpecialInstructions:       r.SpecialInstructions,
		UTMSource:                 r.UTMSource,
		ArrivalWindowStart:        r.ArrivalWindowStart,
		ArrivalWindowEnd:          r.ArrivalWindowEnd,
		AppointmentStart:          r.AppointmentStart,
		AppointmentEnd:            r.AppointmentEnd,
		Status:                    r.Status,
		ServiceTitanCustomerID:    r.ServiceTitanCustomerID,
		ServiceTitanJobID:         r.ServiceTitanJobID,
		ServiceTitanAppointmentID: r.ServiceTitanAppointmentID,
		JobNumber:                 r.JobNumber,
		ErrorMessage:              r.ErrorMessage,
		CreatedAt:                 r.CreatedAt,
	}
}

// TrackingNumberRequest creates or replaces a utm_source mapping.
type TrackingNumberRequest struct {
	UTMSource              string `json:"utmSource" validate:"required,max=100"`
	PhoneNumber            string `json:"phoneNumber" validate:"max=32"`
	Label                  string `json:"label" validate:"max=200"`
	ServiceTitanCampaignID *int64 `json:"serviceTitanCampaignId" validate:"omitempty,gt=0"`
	Active                 *bool  `json:"active"`
}

// TrackingNumberResponse is a utm_source mapping.
type TrackingNumberResponse struct {
	ID                     uuid.UUID `json:"id"`
	UTMSource              string    `json:"utmSource"`
	PhoneNumber            string    `json:"phoneNumber"`
	Label                  string    `json:"label"`
	ServiceTitanCampaignID *int64    `json:"serviceTitanCampaignId,omitempty"`
	Active                 bool      `json:"active"`
}

// FromTrackingNumber maps a tracking number row.
func FromTrackingNumber(t repository.TrackingNumber) TrackingNumberResponse {
	return TrackingNumberResponse{
		ID:                     t.ID,
		UTMSource:              t.UTMSource,
		PhoneNumber:            t.PhoneNumber,
		Label:                  t.Label,
		ServiceTitanCampaignID: t.ServiceTitanCampaignID,
		Active:                 t.Active,
	}
}
