// Package serpapi fetches Google Maps reviews through SerpAPI.
package serpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"plumbing_backend/platform/config"
	"plumbing_backend/platform/logger"

	search "github.com/serpapi/google-search-results-golang"
)

const (
	reviewsEngine  = "google_maps_reviews"
	requestTimeout = 30 * time.Second
	maxPages       = 3
	cachePrefix    = "serpapi:reviews:"
)

// ErrNotConfigured is returned when no API key or place id is set.
var ErrNotConfigured = errors.New("serpapi is not configured")

// Review is one Google review.
type Review struct {
	ID         string     `json:"id"`
	AuthorName string     `json:"authorName"`
	Rating     int        `json:"rating"`
	Body       string     `json:"body"`
	ReviewedAt *time.Time `json:"reviewedAt,omitempty"`
}

// Cache stores raw review pages.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Client calls the google_maps_reviews engine through the SerpApi SDK.
type Client struct {
	apiKey    string
	placeID   string
	ttl       time.Duration
	cache     Cache
	transport http.RoundTripper
	log       *logger.Logger
}

// NewClient creates a SerpAPI client. cache may be nil.
func NewClient(cfg config.SerpAPIConfig, cache Cache, log *logger.Logger) *Client {
	return &Client{
		apiKey:  cfg.GetSerpAPIKey(),
		placeID: cfg.GetSerpAPIPlaceID(),
		ttl:     cfg.GetReviewCacheTTL(),
		cache:   cache,
		log:     log,
	}
}

// Configured reports whether reviews can be fetched.
func (c *Client) Configured() bool { return c.apiKey != "" && c.placeID != "" }

type reviewsResponse struct {
	Reviews []struct {
		ReviewID string  `json:"review_id"`
		Rating   float64 `json:"rating"`
		Snippet  string  `json:"snippet"`
		ISODate  string  `json:"iso_date"`
		User     struct {
			Name string `json:"name"`
		} `json:"user"`
	} `json:"reviews"`
	Pagination struct {
		NextPageToken string `json:"next_page_token"`
	} `json:"serpapi_pagination"`
}

// LatestReviews returns the newest reviews, following pagination for a few
// pages. Each page is cached for the configured TTL.
func (c *Client) LatestReviews(ctx context.Context) ([]Review, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	var out []Review
	token := ""
	for page := 0; page < maxPages; page++ {
		resp, err := c.page(ctx, token)
		if err != nil {
			return nil, err
		}
		for _, r := range resp.Reviews {
			if r.ReviewID == "" {
				continue
			}
			review := Review{
				ID:         r.ReviewID,
				AuthorName: strings.TrimSpace(r.User.Name),
				Rating:     int(r.Rating + 0.5),
				Body:       strings.TrimSpace(r.Snippet),
			}
			if t, err := time.Parse(time.RFC3339, r.ISODate); err == nil {
				review.ReviewedAt = &t
			}
			out = append(out, review)
		}
		token = resp.Pagination.NextPageToken
		if token == "" {
			break
		}
	}
	return out, nil
}

func (c *Client) page(ctx context.Context, token string) (reviewsResponse, error) {
	key := cachePrefix + c.placeID + ":" + token
	if c.cache != nil {
		data, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			c.log.Warn("review cache read failed", "error", err)
		} else if ok {
			var resp reviewsResponse
			if err := json.Unmarshal(data, &resp); err == nil {
				return resp, nil
			}
		}
	}

	params := map[string]string{
		"place_id": c.placeID,
		"sort_by":  "newestFirst",
	}
	if token != "" {
		params["next_page_token"] = token
	}
	s := search.NewSearch(reviewsEngine, params, c.apiKey)
	s.HttpSearch = &http.Client{Timeout: requestTimeout, Transport: contextTransport{ctx: ctx, base: c.transport}}

	result, err := s.GetJSON()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return reviewsResponse{}, ctxErr
		}
		return reviewsResponse{}, fmt.Errorf("serpapi: %w", err)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return reviewsResponse{}, fmt.Errorf("encode serpapi result: %w", err)
	}
	var resp reviewsResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return reviewsResponse{}, fmt.Errorf("decode serpapi result: %w", err)
	}

	if c.cache != nil && c.ttl > 0 {
		if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
			c.log.Warn("review cache write failed", "error", err)
		}
	}
	return resp, nil
}

// contextTransport binds the SDK's context-free GET to the caller's context.
type contextTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req.WithContext(t.ctx))
}
