package servicetitan

import (
	"strings"
	"time"
)

// Address is a ServiceTitan street address.
type Address struct {
	Street  string `json:"street"`
	Unit    string `json:"unit,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Country string `json:"country,omitempty"`
}

// IsComplete reports whether every part needed to dispatch a technician is present.
func (a Address) IsComplete() bool {
	return strings.TrimSpace(a.Street) != "" &&
		strings.TrimSpace(a.City) != "" &&
		strings.TrimSpace(a.State) != "" &&
		strings.TrimSpace(a.Zip) != ""
}

// Contact is a phone or email record attached to a customer.
type Contact struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Customer is a ServiceTitan CRM customer.
type Customer struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	Type     string    `json:"type,omitempty"`
	Active   bool      `json:"active"`
	Address  Address   `json:"address"`
	Contacts []Contact `json:"contacts,omitempty"`
}

// Phone returns the first phone contact.
func (c Customer) Phone() string {
	for _, ct := range c.Contacts {
		if strings.Contains(strings.ToLower(ct.Type), "phone") {
			return ct.Value
		}
	}
	return ""
}

// Email returns the first email contact.
func (c Customer) Email() string {
	for _, ct := range c.Contacts {
		if strings.EqualFold(ct.Type, "Email") {
			return ct.Value
		}
	}
	return ""
}

// CustomerInput describes a customer to find or create.
type CustomerInput struct {
	Name    string
	Phone   string
	Email   string
	Address Address
}

// CustomerQuery filters a customer search.
type CustomerQuery struct {
	Phone           string
	Email           string
	IncludeInactive bool
}

// Location is a service location belonging to a customer.
type Location struct {
	ID         int64   `json:"id"`
	CustomerID int64   `json:"customerId"`
	Name       string  `json:"name"`
	Address    Address `json:"address"`
	Active     bool    `json:"active"`
}

// Campaign is a marketing campaign; every job must reference one.
type Campaign struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Source   string `json:"source,omitempty"`
	Active   bool   `json:"active"`
	Category *struct {
		Name string `json:"name"`
	} `json:"category,omitempty"`
}

// JobType is a ServiceTitan job type.
type JobType struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	Active          bool    `json:"active"`
	BusinessUnitIDs []int64 `json:"businessUnitIds"`
}

// DefaultBusinessUnitID returns the job type's first configured business unit.
func (j JobType) DefaultBusinessUnitID() (int64, bool) {
	if len(j.BusinessUnitIDs) == 0 {
		return 0, false
	}
	return j.BusinessUnitIDs[0], true
}

// BusinessUnit is a ServiceTitan business unit.
type BusinessUnit struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// Technician is an employee that can be dispatched.
type Technician struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Active bool   `json:"active"`
}

// AppointmentInput is the first appointment created with a job.
type AppointmentInput struct {
	Start              time.Time `json:"start"`
	End                time.Time `json:"end"`
	ArrivalWindowStart time.Time `json:"arrivalWindowStart"`
	ArrivalWindowEnd   time.Time `json:"arrivalWindowEnd"`
	TechnicianIDs      []int64   `json:"technicianIds,omitempty"`
}

// CreateJobInput is the payload for job creation.
type CreateJobInput struct {
	CustomerID     int64              `json:"customerId"`
	LocationID     int64              `json:"locationId"`
	BusinessUnitID int64              `json:"businessUnitId"`
	JobTypeID      int64              `json:"jobTypeId"`
	CampaignID     int64              `json:"campaignId"`
	Priority       string             `json:"priority"`
	Summary        string             `json:"summary"`
	Appointments   []AppointmentInput `json:"appointments"`
}

// Job is the result of a successful job creation.
type Job struct {
	ID                 int64  `json:"id"`
	JobNumber          string `json:"jobNumber"`
	FirstAppointmentID int64  `json:"firstAppointmentId"`
}

type page[T any] struct {
	Page     int  `json:"page"`
	PageSize int  `json:"pageSize"`
	HasMore  bool `json:"hasMore"`
	Data     []T  `json:"data"`
}
