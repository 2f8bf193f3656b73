package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pathways/internal/config"
	"pathways/internal/token"
	"pathways/pkg/logging"
)

// ErrStateMismatch indicates a callback whose state parameter did not match
// the nonce issued for the outbound redirect. The callback is rejected and
// no token is persisted.
var ErrStateMismatch = errors.New("callback state does not match login nonce")

// CallbackError is a failure reported by the identity provider on the
// redirect back (e.g. "access_denied").
type CallbackError struct {
	Reason string
}

// Error implements the error interface.
func (e *CallbackError) Error() string {
	return e.Reason
}

// Gateway performs the identity service protocol. All dependencies are
// injected so tests can run against httptest servers with an in-memory
// store and a fixed clock.
type Gateway struct {
	cfg        config.AuthConfig
	tokens     *token.Store
	nonces     *NonceStore
	httpClient *http.Client
	open       func(url string) error
	onAuthURL  func(url string)
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) GatewayOption {
	return func(g *Gateway) {
		g.httpClient = httpClient
	}
}

// WithBrowserOpener replaces how the authorization URL is opened.
func WithBrowserOpener(open func(url string) error) GatewayOption {
	return func(g *Gateway) {
		g.open = open
	}
}

// WithAuthURLHandler sets a hook receiving the authorization URL, so the
// CLI can print it for users whose browser does not open.
func WithAuthURLHandler(handler func(url string)) GatewayOption {
	return func(g *Gateway) {
		g.onAuthURL = handler
	}
}

// NewGateway creates a gateway for the configured identity service.
func NewGateway(cfg config.AuthConfig, tokens *token.Store, nonces *NonceStore, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		cfg:        cfg,
		tokens:     tokens,
		nonces:     nonces,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		open:       OpenBrowser,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// LoginURL issues a fresh nonce and builds the provider authorization URL
// the browser should be sent to.
func (g *Gateway) LoginURL(provider, redirectURI string) (string, error) {
	if !ValidProvider(provider) {
		return "", fmt.Errorf("unsupported identity provider %q", provider)
	}

	nonce, err := g.nonces.Issue()
	if err != nil {
		return "", err
	}

	authURL, err := url.Parse(g.endpoint("/" + provider))
	if err != nil {
		return "", fmt.Errorf("invalid auth base URL: %w", err)
	}

	query := authURL.Query()
	query.Set("state", nonce)
	query.Set("redirect_uri", redirectURI)
	authURL.RawQuery = query.Encode()

	logging.Debug("Identity", "Built login URL for provider=%s", provider)
	return authURL.String(), nil
}

// InitiateLogin runs the full browser login: it starts the local callback
// server, navigates the browser to the provider redirect, waits for the
// callback, and completes it. This is a navigation side effect followed by
// callback handling, bounded by the configured login timeout.
func (g *Gateway) InitiateLogin(ctx context.Context, provider string) (*User, error) {
	timeout := g.cfg.LoginTimeout()
	if timeout <= 0 {
		timeout = CallbackTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	server := NewCallbackServer(g.cfg.CallbackPort)
	redirectURI, err := server.Start(ctx)
	if err != nil {
		return nil, err
	}
	defer server.Stop()

	authURL, err := g.LoginURL(provider, redirectURI)
	if err != nil {
		return nil, err
	}

	if g.onAuthURL != nil {
		g.onAuthURL(authURL)
	}
	if err := g.open(authURL); err != nil {
		// Not fatal: the URL has been surfaced for manual navigation.
		logging.Warn("Identity", "Could not open browser: %v", err)
	}

	result, err := server.WaitForCallback(ctx)
	if err != nil {
		g.nonces.Clear()
		return nil, fmt.Errorf("login did not complete: %w", err)
	}

	if result.IsError() {
		g.nonces.Clear()
		return nil, &CallbackError{Reason: result.Error}
	}

	return g.CompleteCallback(ctx, result.Token, result.State)
}

// CompleteCallback validates and persists a login callback. The nonce is
// consumed on every path; when a state value is present it must match the
// nonce or the callback is rejected with ErrStateMismatch and nothing is
// stored. On success the resolved User is returned, degrading to
// claims-derived identity when the lookup is unreachable.
func (g *Gateway) CompleteCallback(ctx context.Context, raw, state string) (*User, error) {
	nonce, hadNonce := g.nonces.Consume()

	if state != "" {
		if !hadNonce || state != nonce {
			logging.Warn("Identity", "Rejected callback with mismatched state")
			return nil, ErrStateMismatch
		}
	}

	claims, err := token.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("callback token rejected: %w", err)
	}

	if err := g.tokens.Set(raw); err != nil {
		return nil, fmt.Errorf("failed to persist session token: %w", err)
	}

	// Confirm the session server-side. Best effort: a failure here does not
	// invalidate the token we just received.
	if err := g.verify(ctx); err != nil {
		logging.Debug("Identity", "Session verify after callback failed: %v", err)
	}

	user, status, err := g.fetchUser(ctx)
	if err != nil {
		logging.Warn("Identity", "User lookup after callback failed (status=%d): %v", status, err)
		return userFromClaims(claims), nil
	}

	logging.Info("Identity", "Login completed for provider=%s", claims.Provider)
	return user, nil
}

// CurrentUser resolves the user for the stored session. It returns nil
// without any network call when no valid token exists. A 401 from the
// lookup invalidates the session (token cleared, nil returned); other
// failures degrade to claims-derived identity.
func (g *Gateway) CurrentUser(ctx context.Context) (*User, error) {
	if !g.tokens.IsValid() {
		return nil, nil
	}

	user, status, err := g.fetchUser(ctx)
	if err == nil {
		return user, nil
	}

	if status == http.StatusUnauthorized {
		logging.Info("Identity", "Session rejected by identity service, clearing token")
		if cerr := g.tokens.Clear(); cerr != nil {
			logging.Warn("Identity", "Failed to clear rejected token: %v", cerr)
		}
		return nil, nil
	}

	if claims := g.tokens.Claims(); claims != nil {
		logging.Debug("Identity", "User lookup unreachable, using claims fallback: %v", err)
		return userFromClaims(claims), nil
	}
	return nil, err
}

// Refresh exchanges the current token for a new one. On any failure the
// stored token is cleared and an error returned; callers must treat that
// as "log the user out".
func (g *Gateway) Refresh(ctx context.Context) (string, error) {
	var result struct {
		Token string `json:"token"`
	}

	if err := g.doJSON(ctx, http.MethodPost, "/refresh", &result); err != nil {
		if cerr := g.tokens.Clear(); cerr != nil {
			logging.Warn("Identity", "Failed to clear token after refresh failure: %v", cerr)
		}
		return "", fmt.Errorf("token refresh failed: %w", err)
	}
	if result.Token == "" {
		_ = g.tokens.Clear()
		return "", errors.New("token refresh failed: empty token in response")
	}

	if err := g.tokens.Set(result.Token); err != nil {
		return "", fmt.Errorf("failed to persist refreshed token: %w", err)
	}

	logging.Debug("Identity", "Session token refreshed")
	return result.Token, nil
}

// Logout invalidates the session server-side (best effort; failures are
// logged and swallowed) and unconditionally clears local token and nonce
// state.
func (g *Gateway) Logout(ctx context.Context) error {
	if _, ok := g.tokens.Get(); ok {
		if err := g.doJSON(ctx, http.MethodPost, "/logout", nil); err != nil {
			logging.Warn("Identity", "Server-side logout failed: %v", err)
		}
	}

	g.nonces.Clear()
	if err := g.tokens.Clear(); err != nil {
		return fmt.Errorf("failed to clear local session: %w", err)
	}
	logging.Info("Identity", "Logged out")
	return nil
}

// verify calls GET /verify to confirm the session after a callback.
func (g *Gateway) verify(ctx context.Context) error {
	return g.doJSON(ctx, http.MethodGet, "/verify", nil)
}

// fetchUser performs the authenticated GET /me lookup. The HTTP status is
// returned alongside the error so callers can distinguish 401 from
// transport failures.
func (g *Gateway) fetchUser(ctx context.Context) (*User, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint("/me"), nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	g.addCredential(req)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("user lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("user lookup failed with status %d", resp.StatusCode)
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to parse user response: %w", err)
	}
	return &user, resp.StatusCode, nil
}

// doJSON performs an authenticated request against the identity service,
// optionally decoding a JSON response into out.
func (g *Gateway) doJSON(ctx context.Context, method, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, g.endpoint(path), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	g.addCredential(req)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Don't expose response bodies in errors; they may carry hints.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		logging.Debug("Identity", "%s %s failed: status=%d body=%s", method, path, resp.StatusCode, string(body))
		return fmt.Errorf("%s failed with status %d", path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response from %s: %w", path, err)
	}
	return nil
}

// addCredential attaches the stored token per the configured mode.
func (g *Gateway) addCredential(req *http.Request) {
	record := g.tokens.Record()
	if record == nil {
		return
	}
	if g.cfg.CredentialMode == config.CredentialModeCookie {
		req.AddCookie(&http.Cookie{Name: g.cfg.CookieName, Value: record.AccessToken})
		return
	}
	record.SetAuthHeader(req)
}

func (g *Gateway) endpoint(path string) string {
	return strings.TrimSuffix(g.cfg.BaseURL, "/") + path
}
