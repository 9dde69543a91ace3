package service

import (
	"context"
	"errors"
	"testing"

	"plumbing_backend/platform/apperr"
	"plumbing_backend/platform/logger"
)

type fakeAdapter struct {
	name    string
	matches []Match
	err     error
	calls   int
	lastQ   Query
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Search(_ context.Context, q Query) ([]Match, error) {
	f.calls++
	f.lastQ = q
	if f.err != nil {
		return nil, f.err
	}
	out := make([]Match, len(f.matches))
	copy(out, f.matches)
	return out, nil
}

type fakePlaceholder struct {
	calls int
	phone string
}

func (f *fakePlaceholder) CreatePlaceholder(_ context.Context, name, phone, email string) (Match, error) {
	f.calls++
	f.phone = phone
	return Match{Source: "servicetitan", CustomerID: 99, Name: name, Phone: phone, Email: email, Active: true}, nil
}

var completeAddress = Address{Street: "1 Main St", City: "Austin", State: "TX", Zip: "78701"}

func TestScoreMatch(t *testing.T) {
	both := Match{Phone: "+1 (512) 555-0123", Email: "A@Example.com", Address: completeAddress}
	if got := ScoreMatch(both, "5125550123", "a@example.com"); got != 210 {
		t.Fatalf("expected 210, got %d", got)
	}

	phoneOnly := Match{Phone: "512-555-0123"}
	if got := ScoreMatch(phoneOnly, "5125550123", "a@example.com"); got != 100 {
		t.Fatalf("expected 100, got %d", got)
	}

	none := Match{Phone: "5125559999", Email: "b@example.com"}
	if got := ScoreMatch(none, "5125550123", "a@example.com"); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestGetBestMatch(t *testing.T) {
	if GetBestMatch(nil, "", "") != nil {
		t.Fatalf("expected nil for no matches")
	}

	single := []Match{{CustomerID: 1}}
	if got := GetBestMatch(single, "5125550123", ""); got == nil || got.CustomerID != 1 {
		t.Fatalf("single match must be returned unchanged")
	}

	many := []Match{
		{CustomerID: 1, Phone: "5125550123"},
		{CustomerID: 2, Phone: "5125550123", Email: "a@example.com"},
		{CustomerID: 3, Email: "a@example.com"},
	}
	if got := GetBestMatch(many, "5125550123", "a@example.com"); got.CustomerID != 2 {
		t.Fatalf("expected customer 2, got %d", got.CustomerID)
	}
}

func TestSearchRequiresPhoneOrEmail(t *testing.T) {
	svc := New(&fakeAdapter{name: "xlsx"}, nil, nil, logger.Nop())
	_, err := svc.Search(context.Background(), Options{Phone: "abc"})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestHybridFallsBackOnlyOnCleanMiss(t *testing.T) {
	xlsx := &fakeAdapter{name: "xlsx"}
	crm := &fakeAdapter{name: "servicetitan", matches: []Match{{CustomerID: 7, Phone: "5125550123"}}}
	svc := New(xlsx, crm, nil, logger.Nop())

	res, err := svc.Search(context.Background(), Options{Phone: "1-512-555-0123", Source: SourceHybridPreferXlsx})
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if !res.Found || res.BestMatch.CustomerID != 7 {
		t.Fatalf("expected CRM match, got %+v", res)
	}
	if xlsx.lastQ.Phone != "5125550123" {
		t.Fatalf("expected normalized phone passed to adapter, got %q", xlsx.lastQ.Phone)
	}
	if res.BestMatch.Score != 100 {
		t.Fatalf("expected score 100, got %d", res.BestMatch.Score)
	}
}

func TestHybridDoesNotMaskAdapterError(t *testing.T) {
	xlsx := &fakeAdapter{name: "xlsx", err: errors.New("db down")}
	crm := &fakeAdapter{name: "servicetitan", matches: []Match{{CustomerID: 7}}}
	svc := New(xlsx, crm, nil, logger.Nop())

	_, err := svc.Search(context.Background(), Options{Phone: "5125550123", Source: SourceHybridPreferXlsx})
	if !apperr.Is(err, apperr.KindUnavailable) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
	if crm.calls != 0 {
		t.Fatalf("secondary adapter must not be consulted after an error")
	}
}

func TestHybridPreferServiceTitanOrder(t *testing.T) {
	xlsx := &fakeAdapter{name: "xlsx", matches: []Match{{CustomerID: 1}}}
	crm := &fakeAdapter{name: "servicetitan", matches: []Match{{CustomerID: 2}}}
	svc := New(xlsx, crm, nil, logger.Nop())

	res, err := svc.Search(context.Background(), Options{Email: "a@example.com", Source: SourceHybridPreferServiceTitan})
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if res.BestMatch.CustomerID != 2 || xlsx.calls != 0 {
		t.Fatalf("expected CRM-only hit, got %+v (xlsx calls %d)", res.BestMatch, xlsx.calls)
	}
}

func TestSingleSourceDoesNotFallBack(t *testing.T) {
	xlsx := &fakeAdapter{name: "xlsx"}
	crm := &fakeAdapter{name: "servicetitan", matches: []Match{{CustomerID: 2}}}
	svc := New(xlsx, crm, nil, logger.Nop())

	res, err := svc.Search(context.Background(), Options{Phone: "5125550123", Source: SourceXlsxOnly})
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if res.Found || crm.calls != 0 {
		t.Fatalf("xlsx-only must not consult the CRM")
	}
}

func TestPlaceholderRequiresTenDigitPhone(t *testing.T) {
	creator := &fakePlaceholder{}
	svc := New(&fakeAdapter{name: "xlsx"}, &fakeAdapter{name: "servicetitan"}, creator, logger.Nop())

	_, err := svc.Search(context.Background(), Options{Phone: "555-0123", CreatePlaceholderIfMissing: true})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if creator.calls != 0 {
		t.Fatalf("placeholder must not be created for a short phone")
	}

	res, err := svc.Search(context.Background(), Options{Phone: "+1 512 555 0123", CreatePlaceholderIfMissing: true})
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if !res.IsPlaceholder || creator.phone != "5125550123" {
		t.Fatalf("expected placeholder for normalized phone, got %+v", res)
	}
}

func TestUnconfiguredCRMIsUnavailable(t *testing.T) {
	svc := New(&fakeAdapter{name: "xlsx"}, nil, nil, logger.Nop())
	_, err := svc.Search(context.Background(), Options{Phone: "5125550123", Source: SourceServiceTitanOnly})
	if !apperr.Is(err, apperr.KindUnavailable) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}
