// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package glow is a client for the Glowmarkt smart-meter API. It manages one
// authenticated session against one account and exposes the electricity and
// gas consumption streams, tariffs, meter reads and derived cost figures.
//
// Every accessor is a fresh, blocking network round trip; the derived
// current-usage accessors issue two or three sequential round trips each.
// Nothing is cached between calls except the access token and the resource
// IDs recorded by the listing fetch.
package glow

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	gerrors "github.com/soothill/glow-data-logger/pkg/errors"
	"github.com/soothill/glow-data-logger/pkg/logger"
	"github.com/soothill/glow-data-logger/pkg/metrics"
)

const (
	// DefaultBaseURL is the production API root.
	DefaultBaseURL = "https://api.glowmarkt.com/api/v0-1"

	// DefaultTimeout bounds every round trip. A timeout elapsing is the only
	// way an in-flight call terminates early and it surfaces as a failure.
	DefaultTimeout = 10 * time.Second
)

// Client is an authenticated session against the metering service. It is safe
// for concurrent use; the token refresh path is serialised internally.
type Client struct {
	baseURL    string
	creds      Credentials
	httpClient *http.Client
	limiter    *rate.Limiter
	now        func() time.Time

	mu             sync.Mutex
	session        Session
	elecResourceID string
	gasResourceID  string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root, e.g. to point at a test server.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the round-trip timeout on the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithRateLimit throttles outgoing requests to r per second with the given
// burst. Zero r disables throttling.
func WithRateLimit(r float64, burst int) Option {
	return func(c *Client) {
		if r > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(r), burst)
		}
	}
}

// New constructs a client and performs the initial authentication. An empty
// or rejected auth response yields an *errors.AuthError and no client.
//
// Successful authentication also fetches the account's resource listing so
// the electricity and gas consumption IDs are current; a listing failure is
// logged but not fatal.
func New(ctx context.Context, creds Credentials, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:    DefaultBaseURL,
		creds:      creds,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.authenticateLocked(ctx, "login"); err != nil {
		return nil, err
	}
	return c, nil
}

// Token returns a valid access token. If the cached token has expired it
// performs exactly one synchronous re-authentication, replacing every session
// field, before returning the new token. The call may block on network I/O.
func (c *Client) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokenLocked(ctx)
}

// Session returns a copy of the current session state.
func (c *Client) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// AccountID returns the authenticated account identifier.
func (c *Client) AccountID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.AccountID
}

func (c *Client) tokenLocked(ctx context.Context) (string, error) {
	if c.session.Token != "" && c.now().Before(c.session.Expiry) {
		return c.session.Token, nil
	}

	metrics.TokenRefreshes.Inc()
	logger.Debug().Time("expired_at", c.session.Expiry).Msg("Access token expired, re-authenticating")
	if err := c.authenticateLocked(ctx, "token refresh"); err != nil {
		return "", err
	}
	return c.session.Token, nil
}

// authenticateLocked posts the stored credentials to the auth endpoint and
// replaces the session wholesale. Callers must hold c.mu.
func (c *Client) authenticateLocked(ctx context.Context, op string) error {
	body := map[string]string{
		"username": c.creds.Username,
		"password": c.creds.Password,
	}

	data, contentType := c.post(ctx, "auth", c.baseURL+"/auth", "", body)
	if len(data) == 0 {
		return gerrors.NewAuthError(op, nil)
	}

	var resp authResponse
	if err := decodeJSON("auth", data, contentType, &resp); err != nil {
		return gerrors.NewAuthError(op, err)
	}
	if resp.Token == "" || resp.AccountID == "" || resp.Exp == 0 {
		return gerrors.NewAuthError(op, gerrors.ErrMalformedResponse)
	}

	c.session = Session{
		Token:                   resp.Token,
		Expiry:                  time.Unix(resp.Exp, 0),
		AccountID:               resp.AccountID,
		FunctionalGroupAccounts: resp.FunctionalGroupAccounts,
		UserGroups:              resp.UserGroups,
	}

	logger.Info().
		Str("account_id", resp.AccountID).
		Time("expiry", c.session.Expiry).
		Msg("Authenticated")

	// Keep the recorded resource IDs current across re-authentication.
	// The original behaviour: every auth triggers a listing fetch.
	resources, err := c.fetchResources(ctx, c.session.Token)
	if err != nil {
		logger.Warn().Err(err).Msg("Resource listing after authentication failed")
		return nil
	}
	c.recordResourcesLocked(resources)
	return nil
}
