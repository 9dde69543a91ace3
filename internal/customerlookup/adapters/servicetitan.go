package adapters

import (
	"context"

	"plumbing_backend/internal/customerlookup/service"
	"plumbing_backend/internal/servicetitan"
)

// CRMCustomers is the subset of the ServiceTitan client used for lookups.
type CRMCustomers interface {
	SearchCustomers(ctx context.Context, q servicetitan.CustomerQuery) ([]servicetitan.Customer, error)
	CreateCustomer(ctx context.Context, in servicetitan.CustomerInput) (*servicetitan.Customer, error)
}

// ServiceTitanAdapter searches CRM customers by phone and by email.
type ServiceTitanAdapter struct {
	crm CRMCustomers
}

// NewServiceTitanAdapter creates an adapter over the ServiceTitan client.
func NewServiceTitanAdapter(crm CRMCustomers) *ServiceTitanAdapter {
	return &ServiceTitanAdapter{crm: crm}
}

func (a *ServiceTitanAdapter) Name() string { return "servicetitan" }

// Search implements service.Adapter. Phone and email are separate CRM
// queries; results are merged by customer id.
func (a *ServiceTitanAdapter) Search(ctx context.Context, q service.Query) ([]service.Match, error) {
	seen := make(map[int64]bool)
	var matches []service.Match

	collect := func(query servicetitan.CustomerQuery) error {
		customers, err := a.crm.SearchCustomers(ctx, query)
		if err != nil {
			return err
		}
		for _, c := range customers {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			matches = append(matches, toMatch(c))
		}
		return nil
	}

	if q.Phone != "" {
		if err := collect(servicetitan.CustomerQuery{Phone: q.Phone, IncludeInactive: q.IncludeInactive}); err != nil {
			return nil, err
		}
	}
	if q.Email != "" {
		if err := collect(servicetitan.CustomerQuery{Email: q.Email, IncludeInactive: q.IncludeInactive}); err != nil {
			return nil, err
		}
	}
	return matches, nil
}

// CreatePlaceholder implements service.PlaceholderCreator.
func (a *ServiceTitanAdapter) CreatePlaceholder(ctx context.Context, name, phone, email string) (service.Match, error) {
	c, err := a.crm.CreateCustomer(ctx, servicetitan.CustomerInput{Name: name, Phone: phone, Email: email})
	if err != nil {
		return service.Match{}, err
	}
	m := toMatch(*c)
	if m.Phone == "" {
		m.Phone = phone
	}
	if m.Email == "" {
		m.Email = email
	}
	return m, nil
}

func toMatch(c servicetitan.Customer) service.Match {
	return service.Match{
		Source:     "servicetitan",
		CustomerID: c.ID,
		Name:       c.Name,
		Phone:      c.Phone(),
		Email:      c.Email(),
		Address: service.Address{
			Street: c.Address.Street,
			City:   c.Address.City,
			State:  c.Address.State,
			Zip:    c.Address.Zip,
		},
		Active: c.Active,
	}
}

var (
	_ service.Adapter            = (*ServiceTitanAdapter)(nil)
	_ service.PlaceholderCreator = (*ServiceTitanAdapter)(nil)
)
