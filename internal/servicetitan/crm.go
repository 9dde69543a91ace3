package servicetitan

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"plumbing_backend/platform/phone"
)

// SearchCustomers finds customers by phone and/or email. Inactive customers are
// dropped unless the query asks for them.
func (c *Client) SearchCustomers(ctx context.Context, q CustomerQuery) ([]Customer, error) {
	query := url.Values{}
	if q.Phone != "" {
		query.Set("phone", phone.Normalize(q.Phone))
	}
	if q.Email != "" {
		query.Set("email", strings.ToLower(strings.TrimSpace(q.Email)))
	}
	if !q.IncludeInactive {
		query.Set("active", "True")
	}

	customers, err := listAll[Customer](ctx, c, c.tenantPath("crm", "customers"), query)
	if err != nil {
		return nil, err
	}
	if q.IncludeInactive {
		return customers, nil
	}

	active := customers[:0]
	for _, cust := range customers {
		if cust.Active {
			active = append(active, cust)
		}
	}
	return active, nil
}

type createCustomerRequest struct {
	Name      string                  `json:"name"`
	Type      string                  `json:"type"`
	Address   Address                 `json:"address"`
	Locations []createLocationRequest `json:"locations"`
	Contacts  []Contact               `json:"contacts,omitempty"`
}

type createLocationRequest struct {
	CustomerID int64   `json:"customerId,omitempty"`
	Name       string  `json:"name"`
	Address    Address `json:"address"`
}

// CreateCustomer creates a residential customer with one service location at
// the billing address.
func (c *Client) CreateCustomer(ctx context.Context, in CustomerInput) (*Customer, error) {
	addr := withCountry(in.Address)
	req := createCustomerRequest{
		Name:      strings.TrimSpace(in.Name),
		Type:      "Residential",
		Address:   addr,
		Locations: []createLocationRequest{{Name: strings.TrimSpace(in.Name), Address: addr}},
	}
	if p := phone.Normalize(in.Phone); p != "" {
		req.Contacts = append(req.Contacts, Contact{Type: "MobilePhone", Value: p})
	}
	if e := strings.TrimSpace(in.Email); e != "" {
		req.Contacts = append(req.Contacts, Contact{Type: "Email", Value: e})
	}

	var out Customer
	if err := c.do(ctx, http.MethodPost, c.tenantPath("crm", "customers"), nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EnsureCustomer returns the first active customer matching the phone, or
// creates one.
func (c *Client) EnsureCustomer(ctx context.Context, in CustomerInput) (*Customer, error) {
	if phone.Normalize(in.Phone) != "" {
		found, err := c.SearchCustomers(ctx, CustomerQuery{Phone: in.Phone})
		if err != nil {
			return nil, err
		}
		if len(found) > 0 {
			return &found[0], nil
		}
	}
	return c.CreateCustomer(ctx, in)
}

// GetLocations lists a customer's service locations.
func (c *Client) GetLocations(ctx context.Context, customerID int64) ([]Location, error) {
	query := url.Values{}
	query.Set("customerId", strconv.FormatInt(customerID, 10))
	return listAll[Location](ctx, c, c.tenantPath("crm", "locations"), query)
}

// EnsureLocation returns the customer's location at addr, creating it when no
// existing location shares the street and zip.
func (c *Client) EnsureLocation(ctx context.Context, customerID int64, name string, addr Address) (*Location, error) {
	locations, err := c.GetLocations(ctx, customerID)
	if err != nil {
		return nil, err
	}
	for i := range locations {
		if sameAddress(locations[i].Address, addr) {
			return &locations[i], nil
		}
	}

	req := createLocationRequest{CustomerID: customerID, Name: strings.TrimSpace(name), Address: withCountry(addr)}
	var out Location
	if err := c.do(ctx, http.MethodPost, c.tenantPath("crm", "locations"), nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func sameAddress(a, b Address) bool {
	return strings.EqualFold(strings.TrimSpace(a.Street), strings.TrimSpace(b.Street)) &&
		strings.TrimSpace(a.Zip) == strings.TrimSpace(b.Zip)
}

func withCountry(a Address) Address {
	if a.Country == "" {
		a.Country = "USA"
	}
	return a
}

// CreateJob books a job with its first appointment.
func (c *Client) CreateJob(ctx context.Context, in CreateJobInput) (*Job, error) {
	if in.Priority == "" {
		in.Priority = "Normal"
	}
	var out Job
	if err := c.do(ctx, http.MethodPost, c.tenantPath("jpm", "jobs"), nil, in, &out); err != nil {
		return nil, err
	}
	if out.ID == 0 {
		return nil, fmt.Errorf("servicetitan returned a job without an id")
	}
	return &out, nil
}
