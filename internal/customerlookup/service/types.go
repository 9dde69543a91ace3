package service

import (
	"context"
	"fmt"
	"strings"
)

// Source selects which data sources a search consults and in which order.
type Source string

const (
	SourceXlsxOnly                 Source = "xlsx-only"
	SourceServiceTitanOnly         Source = "servicetitan-only"
	SourceHybridPreferXlsx         Source = "hybrid-prefer-xlsx"
	SourceHybridPreferServiceTitan Source = "hybrid-prefer-servicetitan"
)

// ParseSource validates a source string.
func ParseSource(s string) (Source, error) {
	switch Source(strings.TrimSpace(s)) {
	case SourceXlsxOnly, SourceServiceTitanOnly, SourceHybridPreferXlsx, SourceHybridPreferServiceTitan:
		return Source(strings.TrimSpace(s)), nil
	case "":
		return SourceHybridPreferXlsx, nil
	}
	return "", fmt.Errorf("unknown lookup source %q", s)
}

// Address is a customer address as known by either source.
type Address struct {
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
}

// IsComplete reports whether street, city, state and zip are all present.
func (a Address) IsComplete() bool {
	return strings.TrimSpace(a.Street) != "" &&
		strings.TrimSpace(a.City) != "" &&
		strings.TrimSpace(a.State) != "" &&
		strings.TrimSpace(a.Zip) != ""
}

// Match is one candidate customer.
type Match struct {
	Source     string  `json:"source"`
	CustomerID int64   `json:"customerId"`
	Name       string  `json:"name"`
	Phone      string  `json:"phone"`
	Email      string  `json:"email"`
	Address    Address `json:"address"`
	Active     bool    `json:"active"`
	Score      int     `json:"score"`
}

// Query is what adapters receive; phone and email are already normalized.
type Query struct {
	Phone           string
	Email           string
	IncludeInactive bool
}

// Adapter is one customer data source.
type Adapter interface {
	Name() string
	Search(ctx context.Context, q Query) ([]Match, error)
}

// PlaceholderCreator creates a minimal CRM customer when nothing matched.
type PlaceholderCreator interface {
	CreatePlaceholder(ctx context.Context, name, phone, email string) (Match, error)
}

// Options controls a single search.
type Options struct {
	Phone                      string
	Email                      string
	Name                       string
	Source                     Source
	CreatePlaceholderIfMissing bool
	IncludeInactive            bool
}

// Result is the outcome of a search. Matches are ordered best first.
type Result struct {
	Found         bool    `json:"found"`
	Matches       []Match `json:"matches"`
	BestMatch     *Match  `json:"bestMatch,omitempty"`
	IsPlaceholder bool    `json:"isPlaceholder,omitempty"`
}
