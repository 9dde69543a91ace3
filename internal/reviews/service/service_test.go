package service

import (
	"context"
	"testing"
	"time"

	lookup "plumbing_backend/internal/customerlookup/service"
	"plumbing_backend/internal/events"
	nurtureservice "plumbing_backend/internal/nurture/service"
	"plumbing_backend/internal/reviews/repository"
	"plumbing_backend/internal/reviews/serpapi"
	"plumbing_backend/platform/apperr"
	"plumbing_backend/platform/logger"

	"github.com/google/uuid"
)

type recordingBus struct {
	published []events.Event
}

func (b *recordingBus) Publish(_ context.Context, e events.Event) {
	b.published = append(b.published, e)
}
func (b *recordingBus) PublishSync(_ context.Context, e events.Event) error {
	b.published = append(b.published, e)
	return nil
}
func (b *recordingBus) Subscribe(string, events.Handler) {}

type memoryStore struct {
	reviews map[string]repository.Review
}

func (m *memoryStore) UpsertMany(_ context.Context, rows []repository.Review) ([]string, error) {
	var created []string
	for _, r := range rows {
		if _, ok := m.reviews[r.ID]; !ok {
			created = append(created, r.ID)
		}
		m.reviews[r.ID] = r
	}
	return created, nil
}

func (m *memoryStore) Get(_ context.Context, id string) (repository.Review, error) {
	r, ok := m.reviews[id]
	if !ok {
		return repository.Review{}, apperr.NotFound("review not found")
	}
	return r, nil
}

func (m *memoryStore) List(context.Context, int, int, int) ([]repository.Review, error) {
	return nil, nil
}

func (m *memoryStore) LinkCustomer(_ context.Context, id string, customerID int64) error {
	r := m.reviews[id]
	r.CustomerID = &customerID
	m.reviews[id] = r
	return nil
}

type staticSource struct {
	reviews []serpapi.Review
	err     error
}

func (s staticSource) LatestReviews(context.Context) ([]serpapi.Review, error) {
	return s.reviews, s.err
}

type fakeFinder struct {
	result *lookup.Result
	opts   lookup.Options
}

func (f *fakeFinder) Search(_ context.Context, opts lookup.Options) (*lookup.Result, error) {
	f.opts = opts
	return f.result, nil
}

type fakeCampaigns struct {
	inputs []nurtureservice.CreateInput
}

func (f *fakeCampaigns) CreateCampaignForReviewer(_ context.Context, in nurtureservice.CreateInput) (uuid.UUID, bool, error) {
	f.inputs = append(f.inputs, in)
	return uuid.New(), true, nil
}

func TestSyncPublishesOnlyNewPositiveReviews(t *testing.T) {
	store := &memoryStore{reviews: map[string]repository.Review{"old": {ID: "old", Rating: 5}}}
	now := time.Now()
	source := staticSource{reviews: []serpapi.Review{
		{ID: "old", Rating: 5},
		{ID: "new-good", Rating: 5, AuthorName: "Dana", ReviewedAt: &now},
		{ID: "new-meh", Rating: 3},
		{ID: "new-good", Rating: 5},
	}}
	bus := &recordingBus{}
	svc := New(store, source, &fakeFinder{}, &fakeCampaigns{}, bus, logger.Nop())

	summary, err := svc.Sync(context.Background())
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if summary.Fetched != 3 || summary.New != 2 || summary.Positive != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if len(bus.published) != 1 {
		t.Fatalf("expected one event, got %d", len(bus.published))
	}
	ev, ok := bus.published[0].(events.ReviewReceived)
	if !ok || ev.ReviewID != "new-good" || ev.AuthorName != "Dana" {
		t.Fatalf("unexpected event %#v", bus.published[0])
	}
}

func TestSyncWithoutSourceIsUnavailable(t *testing.T) {
	svc := New(&memoryStore{reviews: map[string]repository.Review{}}, staticSource{err: serpapi.ErrNotConfigured},
		&fakeFinder{}, &fakeCampaigns{}, &recordingBus{}, logger.Nop())
	if _, err := svc.Sync(context.Background()); !apperr.Is(err, apperr.KindUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestLinkCreatesCampaignForMatchedCustomer(t *testing.T) {
	store := &memoryStore{reviews: map[string]repository.Review{"r1": {ID: "r1", Rating: 5, AuthorName: "Dana R"}}}
	finder := &fakeFinder{result: &lookup.Result{Found: true, BestMatch: &lookup.Match{CustomerID: 42, Name: "Dana Reyes", Email: "dana@example.com"}}}
	campaigns := &fakeCampaigns{}
	svc := New(store, staticSource{}, finder, campaigns, &recordingBus{}, logger.Nop())

	res, err := svc.Link(context.Background(), "r1", LinkInput{Phone: "512-555-0100"})
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	if finder.opts.Source != lookup.SourceHybridPreferXlsx || finder.opts.Name != "Dana R" {
		t.Fatalf("unexpected lookup options %+v", finder.opts)
	}
	if len(campaigns.inputs) != 1 {
		t.Fatalf("expected one campaign")
	}
	in := campaigns.inputs[0]
	if in.CustomerID != 42 || in.Email != "dana@example.com" || in.ReviewID != "r1" || in.Name != "Dana Reyes" {
		t.Fatalf("unexpected campaign input %+v", in)
	}
	if !res.Created || *store.reviews["r1"].CustomerID != 42 {
		t.Fatalf("expected review linked to customer 42")
	}
}

func TestLinkFallsBackToSuppliedEmail(t *testing.T) {
	store := &memoryStore{reviews: map[string]repository.Review{"r1": {ID: "r1", Rating: 4}}}
	finder := &fakeFinder{result: &lookup.Result{Found: true, BestMatch: &lookup.Match{CustomerID: 7}}}
	campaigns := &fakeCampaigns{}
	svc := New(store, staticSource{}, finder, campaigns, &recordingBus{}, logger.Nop())

	if _, err := svc.Link(context.Background(), "r1", LinkInput{Email: "pat@example.com"}); err != nil {
		t.Fatalf("link: %v", err)
	}
	if campaigns.inputs[0].Email != "pat@example.com" {
		t.Fatalf("expected supplied email, got %q", campaigns.inputs[0].Email)
	}
}

func TestLinkRejects(t *testing.T) {
	cases := []struct {
		name   string
		review repository.Review
		result *lookup.Result
		kind   apperr.Kind
	}{
		{"negative review", repository.Review{ID: "r1", Rating: 2}, &lookup.Result{}, apperr.KindValidation},
		{"no match", repository.Review{ID: "r1", Rating: 5}, &lookup.Result{Found: false}, apperr.KindNotFound},
		{"no email", repository.Review{ID: "r1", Rating: 5}, &lookup.Result{Found: true, BestMatch: &lookup.Match{CustomerID: 1}}, apperr.KindValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &memoryStore{reviews: map[string]repository.Review{"r1": tc.review}}
			campaigns := &fakeCampaigns{}
			svc := New(store, staticSource{}, &fakeFinder{result: tc.result}, campaigns, &recordingBus{}, logger.Nop())
			_, err := svc.Link(context.Background(), "r1", LinkInput{Phone: "5125550100"})
			if !apperr.Is(err, tc.kind) {
				t.Fatalf("expected %v, got %v", tc.kind, err)
			}
			if len(campaigns.inputs) != 0 {
				t.Fatalf("no campaign should be created")
			}
		})
	}
}

func TestLinkUnknownReview(t *testing.T) {
	svc := New(&memoryStore{reviews: map[string]repository.Review{}}, staticSource{}, &fakeFinder{}, &fakeCampaigns{}, &recordingBus{}, logger.Nop())
	if _, err := svc.Link(context.Background(), "missing", LinkInput{}); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
