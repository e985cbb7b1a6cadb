package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/singleflight"

	"github.com/petshop-dev/petshop/internal/session"
)

const (
	csrfHeader      = "X-CSRF-Token"
	requestIDHeader = "X-Request-ID"
	csrfTokenPath   = "/csrf-token"

	sessionExpiredMessage = "Session expired. Please login again."

	// DefaultRateLimitDelay is how long a rate-limited call waits before its retry
	DefaultRateLimitDelay = time.Second
)

// Navigator sends the user back to the login entry point after the
// session has been cleared.
type Navigator interface {
	RedirectToLogin(reason string)
}

// NavigatorFunc adapts a function to Navigator
type NavigatorFunc func(reason string)

func (f NavigatorFunc) RedirectToLogin(reason string) { f(reason) }

// Client is the single request pipeline for the storefront API. Every call
// gets the bearer token, CSRF handling and the 401/403/429 policy, so
// callers never repeat that logic.
type Client struct {
	baseURL        *url.URL
	httpClient     *http.Client
	session        *session.Store
	navigator      Navigator
	log            zerolog.Logger
	userAgent      string
	rateLimitDelay time.Duration
	sleep          func(ctx context.Context, d time.Duration) error

	csrfGroup singleflight.Group
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client. A cookie jar is added if the
// client has none, since the CSRF token is paired with a cookie, and the
// jar is wrapped so that cookie survives across processes.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithNavigator sets what happens after a forced logout
func WithNavigator(n Navigator) Option {
	return func(c *Client) {
		c.navigator = n
	}
}

// WithLogger sets the logger
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// WithRateLimitDelay sets the wait before retrying a 429
func WithRateLimitDelay(d time.Duration) Option {
	return func(c *Client) {
		c.rateLimitDelay = d
	}
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New creates a new API client for the API rooted at baseURL, e.g.
// http://localhost:8080/api.
func New(baseURL string, sess *session.Store, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid API URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid API URL %q: scheme must be http or https", baseURL)
	}
	if sess == nil {
		return nil, fmt.Errorf("session store is required")
	}

	c := &Client{
		baseURL:        u,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		session:        sess,
		navigator:      NavigatorFunc(func(string) {}),
		log:            zerolog.Nop(),
		userAgent:      "petshop-cli",
		rateLimitDelay: DefaultRateLimitDelay,
		sleep:          sleepContext,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.log = c.log.With().Str("component", "api").Logger()

	inner := c.httpClient.Jar
	if inner == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		inner = jar
	}
	jar := &sessionJar{CookieJar: inner, session: sess, log: c.log}
	jar.restore(u, time.Now())

	hc := *c.httpClient
	hc.Jar = jar
	c.httpClient = &hc

	return c, nil
}

// BaseURL returns the API root
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Session returns the session store the client decorates requests from
func (c *Client) Session() *session.Store {
	return c.session
}

// Request describes one API call. Path is relative to the API root.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any // JSON-encoded when non-nil
}

// Response is a completed API call with a 2xx/3xx status
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Decode unmarshals the raw response body into v
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// envelope is the canonical {success, message, data} response shape
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// DecodeData unmarshals the envelope's data field into v
func (r *Response) DecodeData(v any) error {
	var env envelope
	if err := json.Unmarshal(r.Body, &env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("failed to decode response: missing data")
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}

// Message returns the envelope's message field, if any
func (r *Response) Message() string {
	var env envelope
	if err := json.Unmarshal(r.Body, &env); err != nil {
		return ""
	}
	return env.Message
}

const (
	retryCSRF      = "csrf"
	retryRateLimit = "rate_limit"
)

// attempt carries retry state alongside a request. Each recovery, the CSRF
// refresh and the rate-limit wait, happens at most once per call.
type attempt struct {
	number           int
	reason           string
	csrfRetried      bool
	rateLimitRetried bool
}

func (a attempt) retry(reason string) attempt {
	next := a
	next.number++
	next.reason = reason
	switch reason {
	case retryCSRF:
		next.csrfRetried = true
	case retryRateLimit:
		next.rateLimitRetried = true
	}
	return next
}

// Do sends req through the pipeline.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	req.Method = strings.ToUpper(req.Method)
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	var body []byte
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = data
	}

	return c.do(ctx, req, body, attempt{number: 1})
}

func (c *Client) do(ctx context.Context, req Request, body []byte, at attempt) (*Response, error) {
	resp, err := c.send(ctx, req, body, at)
	if err != nil {
		return nil, err
	}

	if resp.Status < http.StatusBadRequest {
		return resp, nil
	}

	apiErr := newAPIError(req, resp)

	switch {
	case resp.Status == http.StatusUnauthorized:
		c.forceLogout(req)
		return nil, apiErr

	case apiErr.IsCSRF() && !at.csrfRetried && !isCSRFExemptPath(req.Path):
		c.log.Warn().Str("method", req.Method).Str("path", req.Path).Str("error", apiErr.Message).Msg("CSRF token rejected, refreshing")
		if _, err := c.fetchCSRFToken(ctx); err != nil {
			if errors.Is(err, ErrUnauthenticated) {
				return nil, err
			}
			c.log.Warn().Err(err).Msg("CSRF token refresh failed")
			return nil, apiErr
		}
		return c.do(ctx, req, body, at.retry(retryCSRF))

	case resp.Status == http.StatusTooManyRequests && !at.rateLimitRetried:
		c.log.Warn().Str("method", req.Method).Str("path", req.Path).Dur("delay", c.rateLimitDelay).Msg("Rate limited, retrying")
		if err := c.sleep(ctx, c.rateLimitDelay); err != nil {
			return nil, err
		}
		return c.do(ctx, req, body, at.retry(retryRateLimit))
	}

	return nil, apiErr
}

// send performs one HTTP exchange with full request decoration
func (c *Client) send(ctx context.Context, req Request, body []byte, at attempt) (*Response, error) {
	httpReq, err := c.newHTTPRequest(ctx, req.Method, req.Path, req.Query, body)
	if err != nil {
		return nil, err
	}

	if RequiresCSRF(req.Method, req.Path) {
		token := c.session.CSRFToken()
		if token == "" {
			token, err = c.fetchCSRFToken(ctx)
			if errors.Is(err, ErrUnauthenticated) {
				return nil, err
			}
			if err != nil {
				// Send anyway and let the server decide
				c.log.Warn().Err(err).Str("path", req.Path).Msg("Failed to fetch CSRF token")
			}
		}
		if token != "" {
			httpReq.Header.Set(csrfHeader, token)
		}
	}

	return c.roundTrip(httpReq, at)
}

func (c *Client) newHTTPRequest(ctx context.Context, method, path string, query url.Values, body []byte) (*http.Request, error) {
	u := c.resolve(path, query)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set(requestIDHeader, ulid.Make().String())
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token := c.session.Token(); token != "" {
		httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	}

	return httpReq, nil
}

func (c *Client) resolve(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(c.baseURL.Path, "/") + "/" + strings.TrimLeft(path, "/")
	u.RawQuery = ""
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) roundTrip(httpReq *http.Request, at attempt) (*Response, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.log.Debug().
		Str("method", httpReq.Method).
		Str("path", httpReq.URL.Path).
		Int("status", resp.StatusCode).
		Int("attempt", at.number).
		Str("retry_reason", at.reason).
		Str("request_id", httpReq.Header.Get(requestIDHeader)).
		Dur("latency", time.Since(start)).
		Msg("API request")

	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// fetchCSRFToken asks the backend for a fresh token and caches it.
// Concurrent callers share one request. A 401 ends the session like any
// other 401 and is returned as an *APIError.
func (c *Client) fetchCSRFToken(ctx context.Context) (string, error) {
	v, err, _ := c.csrfGroup.Do("csrf", func() (any, error) {
		httpReq, err := c.newHTTPRequest(ctx, http.MethodGet, csrfTokenPath, nil, nil)
		if err != nil {
			return "", err
		}

		resp, err := c.roundTrip(httpReq, attempt{number: 1})
		if err != nil {
			return "", err
		}
		if resp.Status != http.StatusOK {
			fetch := Request{Method: http.MethodGet, Path: csrfTokenPath}
			if resp.Status == http.StatusUnauthorized {
				c.forceLogout(fetch)
			}
			return "", newAPIError(fetch, resp)
		}

		var payload struct {
			CSRFToken string `json:"csrf_token"`
		}
		if err := resp.Decode(&payload); err != nil {
			return "", err
		}
		if payload.CSRFToken == "" {
			return "", fmt.Errorf("CSRF token response was empty")
		}

		if err := c.session.SetCSRFToken(payload.CSRFToken); err != nil {
			c.log.Warn().Err(err).Msg("Failed to persist CSRF token")
		}

		return payload.CSRFToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// forceLogout ends the session after the server rejected our credentials
func (c *Client) forceLogout(req Request) {
	wasAuthenticated := c.session.IsAuthenticated()

	if err := c.session.Logout(); err != nil {
		c.log.Error().Err(err).Msg("Failed to clear session")
	}

	c.log.Warn().
		Str("method", req.Method).
		Str("path", req.Path).
		Bool("was_authenticated", wasAuthenticated).
		Msg("Unauthenticated response, session cleared")

	c.navigator.RedirectToLogin(sessionExpiredMessage)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
