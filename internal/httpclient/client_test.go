package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/oauth2"

	"pathways/internal/config"
)

func newTestClient(opts ...Option) *Client {
	base := []Option{
		WithBackOffFactory(func() backoff.BackOff {
			return backoff.NewConstantBackOff(0)
		}),
	}
	return New(append(base, opts...)...)
}

func TestDo_TransientFailuresThenSuccess(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(WithRetries(3))
	resp, err := client.Do(context.Background(), http.MethodGet, server.URL, nil, nil)
	if err != nil {
		t.Fatalf("Expected success after 2 transient failures, got %v", err)
	}
	resp.Body.Close()

	if got := calls.Load(); got != 3 {
		t.Errorf("Expected 3 attempts, got %d", got)
	}
}

func TestDo_ExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(WithRetries(3))
	_, err := client.Do(context.Background(), http.MethodGet, server.URL, nil, nil)

	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("Expected ErrExhausted, got %v", err)
	}
	if errors.Is(err, ErrAuthExpired) {
		t.Error("Terminal error must be distinguishable from an auth error")
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("Expected exactly 3 attempts, got %d", got)
	}
}

func TestDo_NetworkErrorRetried(t *testing.T) {
	// Point at a closed server to force transport-level failures.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := newTestClient(WithRetries(2))
	_, err := client.Do(context.Background(), http.MethodGet, url, nil, nil)
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("Expected ErrExhausted for repeated network failures, got %v", err)
	}
}

func TestDo_AuthFailureNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	var handlerCalls atomic.Int32
	client := newTestClient(
		WithRetries(3),
		WithAuthFailureHandler(func(ctx context.Context) error {
			handlerCalls.Add(1)
			return errors.New("refresh failed")
		}),
	)

	_, err := client.Do(context.Background(), http.MethodGet, server.URL, nil, nil)
	if !errors.Is(err, ErrAuthExpired) {
		t.Fatalf("Expected ErrAuthExpired, got %v", err)
	}
	if got := handlerCalls.Load(); got != 1 {
		t.Errorf("Auth failure handler should run exactly once, got %d", got)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("A 401 must not enter the retry loop, got %d attempts", got)
	}
}

func TestDo_AuthRecoveryReplaysOnce(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	var handlerCalls atomic.Int32
	client := newTestClient(
		WithAuthFailureHandler(func(ctx context.Context) error {
			handlerCalls.Add(1)
			return nil
		}),
	)

	resp, err := client.Do(context.Background(), http.MethodGet, server.URL, nil, nil)
	if err != nil {
		t.Fatalf("Expected success after refresh, got %v", err)
	}
	resp.Body.Close()

	if got := calls.Load(); got != 2 {
		t.Errorf("Expected original attempt plus one replay, got %d", got)
	}
	if got := handlerCalls.Load(); got != 1 {
		t.Errorf("Expected one handler invocation, got %d", got)
	}
}

func TestDo_PersistentUnauthorizedAfterRecovery(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	var handlerCalls atomic.Int32
	client := newTestClient(
		WithAuthFailureHandler(func(ctx context.Context) error {
			handlerCalls.Add(1)
			return nil
		}),
	)

	_, err := client.Do(context.Background(), http.MethodGet, server.URL, nil, nil)
	if !errors.Is(err, ErrAuthExpired) {
		t.Fatalf("Expected ErrAuthExpired, got %v", err)
	}
	if got := handlerCalls.Load(); got != 1 {
		t.Errorf("Handler must only run once per request, got %d", got)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("Expected exactly 2 attempts (original + replay), got %d", got)
	}
}

func TestDo_HeaderCredentialInjection(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok-123", TokenType: "Bearer"})
	client := newTestClient(WithTokenSource(source))

	resp, err := client.Do(context.Background(), http.MethodGet, server.URL, nil, nil)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	resp.Body.Close()

	if gotAuth != "Bearer tok-123" {
		t.Errorf("Expected bearer header, got %q", gotAuth)
	}
}

func TestDo_CookieCredentialInjection(t *testing.T) {
	var gotCookie string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("pathways_session"); err == nil {
			gotCookie = c.Value
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok-456"})
	client := newTestClient(
		WithTokenSource(source),
		WithCredentialMode(config.CredentialModeCookie, "pathways_session"),
	)

	resp, err := client.Do(context.Background(), http.MethodGet, server.URL, nil, nil)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	resp.Body.Close()

	if gotCookie != "tok-456" {
		t.Errorf("Expected session cookie, got %q", gotCookie)
	}
}

func TestDo_RequestIDStableAcrossAttempts(t *testing.T) {
	var ids []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids = append(ids, r.Header.Get("X-Request-ID"))
		if len(ids) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(WithRetries(3))
	resp, err := client.Do(context.Background(), http.MethodGet, server.URL, nil, nil)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	resp.Body.Close()

	if len(ids) != 2 {
		t.Fatalf("Expected 2 attempts, got %d", len(ids))
	}
	if ids[0] == "" || ids[0] != ids[1] {
		t.Errorf("Request ID should be set and stable across attempts: %v", ids)
	}
}

func TestGetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"go-basics"}`))
	}))
	defer server.Close()

	var out struct {
		Name string `json:"name"`
	}
	client := newTestClient()
	if err := client.GetJSON(context.Background(), server.URL, nil, &out); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if out.Name != "go-basics" {
		t.Errorf("Unexpected decoded value: %q", out.Name)
	}
}
