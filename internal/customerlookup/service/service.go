// Package service resolves customer identities across the local spreadsheet
// cache and the CRM.
package service

import (
	"context"
	"sort"
	"strings"

	"plumbing_backend/platform/apperr"
	"plumbing_backend/platform/logger"
	"plumbing_backend/platform/phone"
)

// Service searches customers with a configurable source strategy.
type Service struct {
	xlsx        Adapter
	crm         Adapter
	placeholder PlaceholderCreator
	log         *logger.Logger
}

// New creates a lookup service. crm and placeholder may be nil when the CRM
// is not configured; strategies that need it then fail as unavailable.
func New(xlsx, crm Adapter, placeholder PlaceholderCreator, log *logger.Logger) *Service {
	return &Service{xlsx: xlsx, crm: crm, placeholder: placeholder, log: log}
}

// Search resolves a customer by phone and/or email. An adapter error is
// returned as is; the secondary source is consulted only after a clean miss.
func (s *Service) Search(ctx context.Context, opts Options) (*Result, error) {
	normPhone := phone.Normalize(opts.Phone)
	normEmail := NormalizeEmail(opts.Email)
	if normPhone == "" && normEmail == "" {
		return nil, apperr.Validation("phone or email is required")
	}
	if normPhone != "" && len(normPhone) != 10 {
		s.log.Warn("customer lookup with malformed phone", "digits", len(normPhone))
	}
	if normEmail != "" && !strings.Contains(normEmail, "@") {
		s.log.Warn("customer lookup with malformed email")
	}

	primary, secondary, err := s.order(opts.Source)
	if err != nil {
		return nil, err
	}

	q := Query{Phone: normPhone, Email: normEmail, IncludeInactive: opts.IncludeInactive}
	matches, err := primary.Search(ctx, q)
	if err != nil {
		return nil, apperr.Unavailable(primary.Name()+" lookup failed", err)
	}
	if len(matches) == 0 && secondary != nil {
		matches, err = secondary.Search(ctx, q)
		if err != nil {
			return nil, apperr.Unavailable(secondary.Name()+" lookup failed", err)
		}
	}

	if len(matches) == 0 {
		if !opts.CreatePlaceholderIfMissing {
			return &Result{Found: false, Matches: []Match{}}, nil
		}
		return s.createPlaceholder(ctx, opts)
	}

	for i := range matches {
		matches[i].Score = ScoreMatch(matches[i], normPhone, normEmail)
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })

	return &Result{
		Found:     true,
		Matches:   matches,
		BestMatch: GetBestMatch(matches, normPhone, normEmail),
	}, nil
}

func (s *Service) order(source Source) (Adapter, Adapter, error) {
	if source == "" {
		source = SourceHybridPreferXlsx
	}

	var primary, secondary Adapter
	switch source {
	case SourceXlsxOnly:
		primary = s.xlsx
	case SourceServiceTitanOnly:
		primary = s.crm
	case SourceHybridPreferXlsx:
		primary, secondary = s.xlsx, s.crm
	case SourceHybridPreferServiceTitan:
		primary, secondary = s.crm, s.xlsx
	default:
		return nil, nil, apperr.Validation("unknown lookup source")
	}

	if primary == nil {
		return nil, nil, apperr.Unavailable("customer source for "+string(source)+" is not configured", nil)
	}
	return primary, secondary, nil
}

func (s *Service) createPlaceholder(ctx context.Context, opts Options) (*Result, error) {
	if !phone.IsTenDigit(opts.Phone) {
		return nil, apperr.Validation("a 10-digit phone number is required to create a customer")
	}
	if s.placeholder == nil {
		return nil, apperr.Unavailable("CRM is not configured", nil)
	}

	name := strings.TrimSpace(opts.Name)
	if name == "" {
		name = "Website Customer"
	}

	match, err := s.placeholder.CreatePlaceholder(ctx, name, phone.Normalize(opts.Phone), NormalizeEmail(opts.Email))
	if err != nil {
		return nil, apperr.Unavailable("failed to create placeholder customer", err)
	}
	s.log.Info("created placeholder customer", "customerId", match.CustomerID)

	return &Result{Found: true, Matches: []Match{match}, BestMatch: &match, IsPlaceholder: true}, nil
}

// ScoreMatch ranks a candidate: +100 for an exact normalized phone match, +100
// for an exact normalized email match, +10 for a complete address.
func ScoreMatch(m Match, normPhone, normEmail string) int {
	score := 0
	if normPhone != "" && phone.Normalize(m.Phone) == normPhone {
		score += 100
	}
	if normEmail != "" && NormalizeEmail(m.Email) == normEmail {
		score += 100
	}
	if m.Address.IsComplete() {
		score += 10
	}
	return score
}

// GetBestMatch returns the only match unchanged, or the highest scored one.
// The earliest candidate wins ties.
func GetBestMatch(matches []Match, normPhone, normEmail string) *Match {
	switch len(matches) {
	case 0:
		return nil
	case 1:
		m := matches[0]
		return &m
	}

	best := 0
	bestScore := ScoreMatch(matches[0], normPhone, normEmail)
	for i := 1; i < len(matches); i++ {
		if score := ScoreMatch(matches[i], normPhone, normEmail); score > bestScore {
			best, bestScore = i, score
		}
	}
	m := matches[best]
	return &m
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
