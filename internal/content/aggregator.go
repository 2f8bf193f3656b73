package content

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"pathways/internal/config"
	"pathways/internal/httpclient"
	"pathways/pkg/logging"
)

//go:embed fallback/data.json
var fallbackJSON []byte

// Aggregator fetches the catalog content bundle with a staleness-aware
// cache and an embedded fallback for total backend outages.
type Aggregator struct {
	baseURL string
	client  *httpclient.Client
	fresh   time.Duration
	stale   time.Duration
	now     func() time.Time

	mu        sync.Mutex
	cached    *ContentBundle
	fetchedAt time.Time
	lastErr   error
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) AggregatorOption {
	return func(a *Aggregator) {
		a.now = now
	}
}

// NewAggregator creates an aggregator for the given backend.
func NewAggregator(backend config.BackendConfig, contentCfg config.ContentConfig, client *httpclient.Client, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		baseURL: strings.TrimSuffix(backend.BaseURL, "/"),
		client:  client,
		fresh:   contentCfg.Fresh(),
		stale:   contentCfg.Stale(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Bundle returns the content bundle. A cached bundle is served as-is while
// fresh; within the stale window a refetch is attempted but the cached copy
// is served if it fails; past the stale window a refetch is forced, with
// the embedded fallback as the last resort. Bundle never returns an error
// for backend unavailability.
func (a *Aggregator) Bundle(ctx context.Context) (*ContentBundle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	age := a.now().Sub(a.fetchedAt)
	if a.cached != nil && age < a.fresh {
		return a.cached, nil
	}

	bundle, err := a.fetch(ctx)
	if err == nil {
		a.cached = bundle
		a.fetchedAt = a.now()
		a.lastErr = nil
		return bundle, nil
	}
	a.lastErr = err

	if a.cached != nil && age < a.stale {
		logging.Warn("Content", "Refetch failed, serving stale bundle (age=%s): %v", age.Round(time.Second), err)
		return a.cached, nil
	}

	logging.Warn("Content", "Backend unavailable, serving embedded fallback: %v", err)
	fallback, ferr := loadFallback()
	if ferr != nil {
		return nil, ferr
	}
	return fallback, nil
}

// Refetch bypasses the cache entirely. Unlike Bundle it propagates fetch
// failures to the caller.
func (a *Aggregator) Refetch(ctx context.Context) (*ContentBundle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	bundle, err := a.fetch(ctx)
	if err != nil {
		a.lastErr = err
		return nil, err
	}
	a.cached = bundle
	a.fetchedAt = a.now()
	a.lastErr = nil
	return bundle, nil
}

// LastError returns the most recent fetch failure, nil after a success.
func (a *Aggregator) LastError() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastErr
}

// LabContent fetches rendered lab material for the given lab URL.
func (a *Aggregator) LabContent(ctx context.Context, labURL string) (string, error) {
	header := http.Header{}
	header.Set("X-Lab-Url", labURL)

	resp, err := a.client.Do(ctx, http.MethodGet, a.baseURL+"/api/v1/lab/content", header, nil)
	if err != nil {
		return "", fmt.Errorf("failed to fetch lab content: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to parse lab content: %w", err)
	}
	return result.Content, nil
}

// Progress fetches the signed-in user's progress records.
func (a *Aggregator) Progress(ctx context.Context) ([]ProgressItem, error) {
	var items []ProgressItem
	if err := a.client.GetJSON(ctx, a.baseURL+"/api/v1/user/progress", nil, &items); err != nil {
		return nil, fmt.Errorf("failed to fetch progress: %w", err)
	}
	if items == nil {
		items = []ProgressItem{}
	}
	return items, nil
}

// SaveProgress uploads progress records for the signed-in user.
func (a *Aggregator) SaveProgress(ctx context.Context, items []ProgressItem) error {
	if err := a.client.PostJSON(ctx, a.baseURL+"/api/v1/user/progress", items, nil); err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	return nil
}

func (a *Aggregator) fetch(ctx context.Context) (*ContentBundle, error) {
	var bundle ContentBundle
	if err := a.client.GetJSON(ctx, a.baseURL+"/api/v1/data", nil, &bundle); err != nil {
		return nil, err
	}
	bundle.normalize()
	logging.Debug("Content", "Fetched bundle: %d paths, %d courses, %d projects",
		len(bundle.LearningPaths), len(bundle.Courses), len(bundle.Projects))
	return &bundle, nil
}

func loadFallback() (*ContentBundle, error) {
	var bundle ContentBundle
	if err := json.Unmarshal(fallbackJSON, &bundle); err != nil {
		return nil, fmt.Errorf("embedded fallback content is invalid: %w", err)
	}
	bundle.normalize()
	return &bundle, nil
}
