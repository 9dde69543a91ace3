// Package servicetitan is a thin REST client for the ServiceTitan CRM, JPM,
// marketing and settings APIs used by booking and customer lookup.
package servicetitan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"plumbing_backend/platform/config"
	"plumbing_backend/platform/logger"

	"golang.org/x/sync/singleflight"
)

const (
	maxPages        = 20
	defaultPageSize = 200
	tokenLeeway     = time.Minute
)

// APIError is a non-2xx response from ServiceTitan.
type APIError struct {
	Status int
	Path   string
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("servicetitan %s returned %d: %s", e.Path, e.Status, e.Body)
}

// Client talks to the ServiceTitan v2 APIs for a single tenant.
type Client struct {
	baseURL      string
	authURL      string
	tenantID     string
	clientID     string
	clientSecret string
	appKey       string
	http         *http.Client
	log          *logger.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
	tokenGroup  singleflight.Group
	now         func() time.Time
}

// NewClient returns nil when ServiceTitan is not configured.
func NewClient(cfg config.ServiceTitanConfig, log *logger.Logger) *Client {
	if !cfg.IsServiceTitanEnabled() {
		return nil
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.GetServiceTitanBaseURL(), "/"),
		authURL:      cfg.GetServiceTitanAuthURL(),
		tenantID:     cfg.GetServiceTitanTenantID(),
		clientID:     cfg.GetServiceTitanClientID(),
		clientSecret: cfg.GetServiceTitanClientSecret(),
		appKey:       cfg.GetServiceTitanAppKey(),
		http:         &http.Client{Timeout: 20 * time.Second},
		log:          log,
		now:          time.Now,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// accessToken returns the cached token or fetches a new one; concurrent
// callers share a single in-flight refresh.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.token != "" && c.now().Before(c.tokenExpiry) {
		token := c.token
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	v, err, _ := c.tokenGroup.Do("token", func() (interface{}, error) {
		c.mu.Lock()
		if c.token != "" && c.now().Before(c.tokenExpiry) {
			token := c.token
			c.mu.Unlock()
			return token, nil
		}
		c.mu.Unlock()

		form := url.Values{}
		form.Set("grant_type", "client_credentials")
		form.Set("client_id", c.clientID)
		form.Set("client_secret", c.clientSecret)

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL, strings.NewReader(form.Encode()))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := c.http.Do(req)
		if err != nil {
			return "", fmt.Errorf("servicetitan token request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= http.StatusBadRequest {
			data, _ := io.ReadAll(resp.Body)
			return "", &APIError{Status: resp.StatusCode, Path: "token", Body: strings.TrimSpace(string(data))}
		}

		var tr tokenResponse
		if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
			return "", fmt.Errorf("decode servicetitan token: %w", err)
		}

		c.mu.Lock()
		c.token = tr.AccessToken
		c.tokenExpiry = c.now().Add(time.Duration(tr.ExpiresIn)*time.Second - tokenLeeway)
		c.mu.Unlock()
		c.log.Debug("servicetitan token refreshed", "expiresIn", tr.ExpiresIn)
		return tr.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) tenantPath(api, resource string) string {
	return fmt.Sprintf("/%s/v2/tenant/%s/%s", api, c.tenantID, resource)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal servicetitan payload: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("ST-App-Key", c.appKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("servicetitan request %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return &APIError{Status: resp.StatusCode, Path: path, Body: strings.TrimSpace(string(data))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode servicetitan %s: %w", path, err)
	}
	return nil
}

func listAll[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("pageSize", strconv.Itoa(defaultPageSize))

	var all []T
	for p := 1; p <= maxPages; p++ {
		query.Set("page", strconv.Itoa(p))
		var pg page[T]
		if err := c.do(ctx, http.MethodGet, path, query, nil, &pg); err != nil {
			return nil, err
		}
		all = append(all, pg.Data...)
		if !pg.HasMore {
			break
		}
	}
	return all, nil
}
