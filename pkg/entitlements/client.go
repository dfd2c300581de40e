// Package entitlements is a client for the entitlement snapshot API.
// Frontends and internal tools use it to decide what to render: hide a
// locked feature, show "3 of 5 seats used", surface the trial countdown.
// It holds no authority; the server re-checks every mutating request,
// so a stale snapshot can never widen access.
package entitlements

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

const defaultCacheTTL = 30 * time.Second

// Usage mirrors the server's usage read model. Limit of -1 means
// unlimited.
type Usage struct {
	Metric     string `json:"metric"`
	Current    int    `json:"current"`
	Limit      int    `json:"limit"`
	CanAddMore bool   `json:"can_add_more"`
}

type Snapshot struct {
	OrganizationID     string     `json:"organization_id"`
	Tier               string     `json:"tier"`
	Features           []string   `json:"features"`
	Bookings           Usage      `json:"bookings"`
	TeamMembers        Usage      `json:"team_members"`
	SubscriptionStatus string     `json:"subscription_status"`
	TrialEndsAt        *time.Time `json:"trial_ends_at,omitempty"`
	GeneratedAt        time.Time  `json:"generated_at"`
}

// HasFeature reports whether the snapshot licenses the named feature.
func (s *Snapshot) HasFeature(feature string) bool {
	for _, f := range s.Features {
		if f == feature {
			return true
		}
	}
	return false
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
	Code   string          `json:"code"`
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) { c.cacheTTL = ttl }
}

// Client fetches and caches entitlement snapshots. Safe for concurrent
// use.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	cacheTTL   time.Duration
	now        func() time.Time

	mu        sync.Mutex
	snapshot  *Snapshot
	fetchedAt time.Time
}

func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cacheTTL:   defaultCacheTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns the current entitlement view, fetching when the
// cached copy is missing or older than the TTL.
func (c *Client) Snapshot(ctx context.Context) (*Snapshot, error) {
	c.mu.Lock()
	if c.snapshot != nil && c.now().Sub(c.fetchedAt) < c.cacheTTL {
		snap := c.snapshot
		c.mu.Unlock()
		return snap, nil
	}
	c.mu.Unlock()

	return c.fetch(ctx, false)
}

// Refresh bypasses both the client cache and the server's snapshot
// cache. Call it after checkout completes so the UI unlocks promptly.
func (c *Client) Refresh(ctx context.Context) (*Snapshot, error) {
	return c.fetch(ctx, true)
}

// CanAccess reports whether the plan licenses a feature. Errors report
// false: an unreachable API must not unlock anything.
func (c *Client) CanAccess(ctx context.Context, feature string) (bool, error) {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	return snap.HasFeature(feature), nil
}

// CheckBookingLimit returns this period's booking usage.
func (c *Client) CheckBookingLimit(ctx context.Context) (Usage, error) {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return Usage{}, err
	}
	return snap.Bookings, nil
}

// CheckTeamMemberLimit returns seat usage.
func (c *Client) CheckTeamMemberLimit(ctx context.Context) (Usage, error) {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return Usage{}, err
	}
	return snap.TeamMembers, nil
}

func (c *Client) IsTrialing(ctx context.Context) (bool, error) {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	return snap.SubscriptionStatus == "trialing" && snap.TrialEndsAt != nil && snap.TrialEndsAt.After(c.now()), nil
}

// DaysLeftInTrial counts whole or partial days remaining, zero once the
// trial has ended.
func (c *Client) DaysLeftInTrial(ctx context.Context) (int, error) {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return 0, err
	}
	if snap.TrialEndsAt == nil {
		return 0, nil
	}
	remaining := snap.TrialEndsAt.Sub(c.now())
	if remaining <= 0 {
		return 0, nil
	}
	days := int(remaining / (24 * time.Hour))
	if remaining%(24*time.Hour) > 0 {
		days++
	}
	return days, nil
}

func (c *Client) fetch(ctx context.Context, refresh bool) (*Snapshot, error) {
	url := c.baseURL + "/api/v1/entitlements"
	if refresh {
		url += "?refresh=true"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch entitlements: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Code: env.Code, Message: env.Error}
	}

	var snap Snapshot
	if err := json.Unmarshal(env.Data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	c.mu.Lock()
	c.snapshot = &snap
	c.fetchedAt = c.now()
	c.mu.Unlock()
	return &snap, nil
}

// APIError is a non-2xx response from the entitlement API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("entitlements API: %d %s: %s", e.StatusCode, e.Code, e.Message)
}
