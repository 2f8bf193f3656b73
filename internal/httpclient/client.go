// Package httpclient wraps HTTP access to the catalog services with
// credential injection, retry with exponential backoff, and a single point
// of interception for authentication failures.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"pathways/internal/config"
	"pathways/pkg/logging"
)

// DefaultTimeout is the per-attempt HTTP timeout.
const DefaultTimeout = 30 * time.Second

// DefaultRetries is the total number of attempts for transient failures.
const DefaultRetries = 3

// AuthFailureHandler is invoked once when a request receives HTTP 401.
// It should attempt a token refresh and return nil on success; a non-nil
// return means the session could not be recovered (the handler is expected
// to have forced a logout).
type AuthFailureHandler func(ctx context.Context) error

// Client issues requests with the session credential attached, retrying
// transient failures with exponential backoff. Authentication failures are
// routed to the failure handler exactly once, out of band of the retry loop.
type Client struct {
	httpClient    *http.Client
	source        oauth2.TokenSource
	mode          config.CredentialMode
	cookieName    string
	retries       int
	onAuthFailure AuthFailureHandler
	newBackOff    func() backoff.BackOff
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTokenSource sets the credential source consulted on every attempt.
func WithTokenSource(source oauth2.TokenSource) Option {
	return func(c *Client) {
		c.source = source
	}
}

// WithCredentialMode selects header or cookie credential injection.
func WithCredentialMode(mode config.CredentialMode, cookieName string) Option {
	return func(c *Client) {
		c.mode = mode
		c.cookieName = cookieName
	}
}

// WithRetries sets the total number of attempts for transient failures.
func WithRetries(retries int) Option {
	return func(c *Client) {
		if retries > 0 {
			c.retries = retries
		}
	}
}

// WithAuthFailureHandler sets the hook invoked on HTTP 401.
func WithAuthFailureHandler(handler AuthFailureHandler) Option {
	return func(c *Client) {
		c.onAuthFailure = handler
	}
}

// WithBackOffFactory replaces the backoff schedule. Tests use this to avoid
// real waits.
func WithBackOffFactory(factory func() backoff.BackOff) Option {
	return func(c *Client) {
		c.newBackOff = factory
	}
}

// New creates a client with the default exponential schedule
// (1s, 2s, 4s, ... between attempts).
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		mode:       config.CredentialModeHeader,
		retries:    DefaultRetries,
		newBackOff: defaultBackOff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	return b
}

// Do performs the request described by method, url, header and body.
// The response body is the caller's to close on success.
func (c *Client) Do(ctx context.Context, method, url string, header http.Header, body []byte) (*http.Response, error) {
	requestID := uuid.NewString()
	authHandled := false

	var resp *http.Response
	operation := func() error {
		r, err := c.attempt(ctx, method, url, header, body, requestID)
		if err != nil {
			return err
		}

		if r.StatusCode == http.StatusUnauthorized {
			drain(r)
			if !authHandled && c.onAuthFailure != nil {
				authHandled = true
				logging.Debug("HTTP", "Got 401 from %s, invoking auth failure handler", url)
				if herr := c.onAuthFailure(ctx); herr == nil {
					// Session recovered; replay the request once with the
					// fresh credential.
					r, err = c.attempt(ctx, method, url, header, body, requestID)
					if err != nil {
						return err
					}
					if r.StatusCode != http.StatusUnauthorized {
						return c.accept(r, url, &resp)
					}
					drain(r)
				}
			}
			return backoff.Permanent(fmt.Errorf("%w: %s", ErrAuthExpired, url))
		}

		return c.accept(r, url, &resp)
	}

	schedule := backoff.WithContext(
		backoff.WithMaxRetries(c.newBackOff(), uint64(c.retries-1)), ctx)

	if err := backoff.Retry(operation, schedule); err != nil {
		if errors.Is(err, ErrAuthExpired) || errors.Is(err, context.Canceled) ||
			errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w after %d attempts: %v", ErrExhausted, c.retries, err)
	}
	return resp, nil
}

// accept classifies a non-401 response: 2xx resolves the request, anything
// else is a transient failure eligible for retry.
func (c *Client) accept(r *http.Response, url string, out **http.Response) error {
	if r.StatusCode >= 200 && r.StatusCode < 300 {
		*out = r
		return nil
	}
	drain(r)
	return &StatusError{StatusCode: r.StatusCode, URL: url}
}

func (c *Client) attempt(ctx context.Context, method, url string, header http.Header, body []byte, requestID string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Accept", "application/json")

	c.injectCredentials(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", url, err)
	}
	return resp, nil
}

// injectCredentials attaches the current session token. Requests proceed
// unauthenticated when no token is available.
func (c *Client) injectCredentials(req *http.Request) {
	if c.source == nil {
		return
	}
	tok, err := c.source.Token()
	if err != nil || tok == nil {
		return
	}
	switch c.mode {
	case config.CredentialModeCookie:
		req.AddCookie(&http.Cookie{Name: c.cookieName, Value: tok.AccessToken})
	default:
		tok.SetAuthHeader(req)
	}
}

// GetJSON performs a GET and decodes the response body into out.
func (c *Client) GetJSON(ctx context.Context, url string, header http.Header, out interface{}) error {
	resp, err := c.Do(ctx, http.MethodGet, url, header, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response from %s: %w", url, err)
	}
	return nil
}

// PostJSON performs a POST with a JSON body, decoding any response into out.
func (c *Client) PostJSON(ctx context.Context, url string, in, out interface{}) error {
	var body []byte
	header := http.Header{}
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		body = encoded
		header.Set("Content-Type", "application/json")
	}

	resp, err := c.Do(ctx, http.MethodPost, url, header, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response from %s: %w", url, err)
	}
	return nil
}

func drain(r *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(r.Body, 4096))
	_ = r.Body.Close()
}
