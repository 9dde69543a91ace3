// Package service syncs Google reviews and links reviewers to nurture
// campaigns.
package service

import (
	"context"
	"errors"
	"strings"

	lookup "plumbing_backend/internal/customerlookup/service"
	"plumbing_backend/internal/events"
	nurtureservice "plumbing_backend/internal/nurture/service"
	"plumbing_backend/internal/reviews/repository"
	"plumbing_backend/internal/reviews/serpapi"
	"plumbing_backend/platform/apperr"
	"plumbing_backend/platform/logger"

	"github.com/google/uuid"
)

// PositiveRating is the lowest rating announced as a new positive review.
const PositiveRating = 4

// Store is the persistence port of the reviews service.
type Store interface {
	UpsertMany(ctx context.Context, reviews []repository.Review) ([]string, error)
	Get(ctx context.Context, id string) (repository.Review, error)
	List(ctx context.Context, minRating, limit, offset int) ([]repository.Review, error)
	LinkCustomer(ctx context.Context, id string, customerID int64) error
}

// Source fetches the latest reviews.
type Source interface {
	LatestReviews(ctx context.Context) ([]serpapi.Review, error)
}

// CustomerFinder resolves a reviewer to a customer.
type CustomerFinder interface {
	Search(ctx context.Context, opts lookup.Options) (*lookup.Result, error)
}

// CampaignCreator starts a nurture campaign.
type CampaignCreator interface {
	CreateCampaignForReviewer(ctx context.Context, in nurtureservice.CreateInput) (uuid.UUID, bool, error)
}

// Service syncs reviews and links them to customers.
type Service struct {
	store     Store
	source    Source
	customers CustomerFinder
	campaigns CampaignCreator
	eventBus  events.Bus
	log       *logger.Logger
}

// New creates a reviews service.
func New(store Store, source Source, customers CustomerFinder, campaigns CampaignCreator, eventBus events.Bus, log *logger.Logger) *Service {
	return &Service{store: store, source: source, customers: customers, campaigns: campaigns, eventBus: eventBus, log: log}
}

// SyncSummary describes one review sync.
type SyncSummary struct {
	Fetched  int `json:"fetched"`
	New      int `json:"new"`
	Positive int `json:"positive"`
}

// Sync pulls the latest reviews, stores them and announces new positive ones.
func (s *Service) Sync(ctx context.Context) (SyncSummary, error) {
	fetched, err := s.source.LatestReviews(ctx)
	if errors.Is(err, serpapi.ErrNotConfigured) {
		return SyncSummary{}, apperr.Unavailable("review source is not configured", err)
	}
	if err != nil {
		s.log.ProviderError("serpapi", "latest reviews", err)
		return SyncSummary{}, apperr.Unavailable("failed to fetch reviews", err)
	}

	rows := make([]repository.Review, 0, len(fetched))
	byID := make(map[string]serpapi.Review, len(fetched))
	for _, r := range fetched {
		if _, dup := byID[r.ID]; dup {
			continue
		}
		byID[r.ID] = r
		rows = append(rows, repository.Review{
			ID:         r.ID,
			AuthorName: r.AuthorName,
			Rating:     r.Rating,
			Body:       r.Body,
			ReviewedAt: r.ReviewedAt,
		})
	}

	created, err := s.store.UpsertMany(ctx, rows)
	if err != nil {
		return SyncSummary{}, apperr.Unavailable("failed to store reviews", err)
	}

	summary := SyncSummary{Fetched: len(rows), New: len(created)}
	for _, id := range created {
		r := byID[id]
		if r.Rating < PositiveRating {
			continue
		}
		summary.Positive++
		s.eventBus.Publish(ctx, events.ReviewReceived{
			BaseEvent:  events.NewBaseEvent(),
			ReviewID:   r.ID,
			AuthorName: r.AuthorName,
			Rating:     r.Rating,
		})
	}
	s.log.Info("reviews synced", "fetched", summary.Fetched, "new", summary.New, "positive", summary.Positive)
	return summary, nil
}

// List returns stored reviews.
func (s *Service) List(ctx context.Context, minRating, limit, offset int) ([]repository.Review, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	items, err := s.store.List(ctx, minRating, limit, offset)
	if err != nil {
		return nil, apperr.Unavailable("failed to list reviews", err)
	}
	return items, nil
}

// LinkInput is the contact staff matched to a reviewer.
type LinkInput struct {
	Phone string
	Email string
}

// LinkResult is the outcome of linking a review.
type LinkResult struct {
	Review     repository.Review
	Customer   lookup.Match
	CampaignID uuid.UUID
	Created    bool
}

// Link resolves the reviewer, records the customer on the review and starts
// their nurture campaign.
func (s *Service) Link(ctx context.Context, reviewID string, in LinkInput) (LinkResult, error) {
	review, err := s.store.Get(ctx, reviewID)
	if err != nil {
		return LinkResult{}, err
	}
	if review.Rating < PositiveRating {
		return LinkResult{}, apperr.Validation("only positive reviews start a nurture campaign")
	}

	res, err := s.customers.Search(ctx, lookup.Options{
		Phone:  in.Phone,
		Email:  in.Email,
		Name:   review.AuthorName,
		Source: lookup.SourceHybridPreferXlsx,
	})
	if err != nil {
		return LinkResult{}, err
	}
	if res == nil || res.BestMatch == nil {
		return LinkResult{}, apperr.NotFound("no customer matches the reviewer")
	}
	match := *res.BestMatch

	addr := strings.TrimSpace(match.Email)
	if addr == "" {
		addr = strings.TrimSpace(in.Email)
	}
	if addr == "" {
		return LinkResult{}, apperr.Validation("matched customer has no email address")
	}

	if err := s.store.LinkCustomer(ctx, review.ID, match.CustomerID); err != nil {
		return LinkResult{}, err
	}
	review.CustomerID = &match.CustomerID

	name := match.Name
	if name == "" {
		name = review.AuthorName
	}
	id, created, err := s.campaigns.CreateCampaignForReviewer(ctx, nurtureservice.CreateInput{
		CustomerID: match.CustomerID,
		Email:      addr,
		Name:       name,
		ReviewID:   review.ID,
	})
	if err != nil {
		return LinkResult{}, err
	}
	return LinkResult{Review: review, Customer: match, CampaignID: id, Created: created}, nil
}
