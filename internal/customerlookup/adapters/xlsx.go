// Package adapters connects the lookup service to its two customer sources.
package adapters

import (
	"context"

	"plumbing_backend/internal/customerlookup/repository"
	"plumbing_backend/internal/customerlookup/service"
)

// CustomerFinder is the subset of the cache repository the adapter needs.
type CustomerFinder interface {
	Find(ctx context.Context, phone, email string, includeInactive bool) ([]repository.Customer, error)
}

// XlsxAdapter searches the customers_xlsx cache filled by the spreadsheet importer.
type XlsxAdapter struct {
	finder CustomerFinder
}

// NewXlsxAdapter creates an adapter over the imported customer cache.
func NewXlsxAdapter(finder CustomerFinder) *XlsxAdapter {
	return &XlsxAdapter{finder: finder}
}

func (a *XlsxAdapter) Name() string { return "xlsx" }

// Search implements service.Adapter.
func (a *XlsxAdapter) Search(ctx context.Context, q service.Query) ([]service.Match, error) {
	rows, err := a.finder.Find(ctx, q.Phone, q.Email, q.IncludeInactive)
	if err != nil {
		return nil, err
	}

	matches := make([]service.Match, 0, len(rows))
	for _, r := range rows {
		matches = append(matches, service.Match{
			Source:     a.Name(),
			CustomerID: r.CustomerID,
			Name:       r.Name,
			Phone:      r.Phone,
			Email:      r.Email,
			Address:    service.Address{Street: r.Street, City: r.City, State: r.State, Zip: r.Zip},
			Active:     r.Active,
		})
	}
	return matches, nil
}

var _ service.Adapter = (*XlsxAdapter)(nil)
