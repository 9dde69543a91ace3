package adapters

import (
	"context"
	"testing"

	"plumbing_backend/internal/customerlookup/service"
	"plumbing_backend/internal/servicetitan"
)

type fakeCRM struct {
	byPhone []servicetitan.Customer
	byEmail []servicetitan.Customer
	queries []servicetitan.CustomerQuery
}

func (f *fakeCRM) SearchCustomers(_ context.Context, q servicetitan.CustomerQuery) ([]servicetitan.Customer, error) {
	f.queries = append(f.queries, q)
	if q.Phone != "" {
		return f.byPhone, nil
	}
	return f.byEmail, nil
}

func (f *fakeCRM) CreateCustomer(_ context.Context, in servicetitan.CustomerInput) (*servicetitan.Customer, error) {
	return &servicetitan.Customer{ID: 42, Name: in.Name, Active: true}, nil
}

func TestServiceTitanAdapterMergesByID(t *testing.T) {
	shared := servicetitan.Customer{ID: 1, Name: "Ann", Active: true,
		Contacts: []servicetitan.Contact{{Type: "MobilePhone", Value: "5125550123"}, {Type: "Email", Value: "ann@example.com"}}}
	crm := &fakeCRM{
		byPhone: []servicetitan.Customer{shared},
		byEmail: []servicetitan.Customer{shared, {ID: 2, Name: "Bob"}},
	}
	a := NewServiceTitanAdapter(crm)

	matches, err := a.Search(context.Background(), service.Query{Phone: "5125550123", Email: "ann@example.com", IncludeInactive: true})
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 merged matches, got %d", len(matches))
	}
	if matches[0].Phone != "5125550123" || matches[0].Email != "ann@example.com" {
		t.Fatalf("contacts not mapped: %+v", matches[0])
	}
	for _, q := range crm.queries {
		if !q.IncludeInactive {
			t.Fatalf("includeInactive must pass through")
		}
	}
}

func TestCreatePlaceholderKeepsSuppliedContacts(t *testing.T) {
	a := NewServiceTitanAdapter(&fakeCRM{})
	m, err := a.CreatePlaceholder(context.Background(), "Website Customer", "5125550123", "")
	if err != nil {
		t.Fatalf("CreatePlaceholder returned error: %v", err)
	}
	if m.CustomerID != 42 || m.Phone != "5125550123" {
		t.Fatalf("unexpected placeholder %+v", m)
	}
}
