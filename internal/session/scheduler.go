package session

import (
	"context"
	"sync"
	"time"

	"pathways/internal/config"
	"pathways/internal/token"
	"pathways/pkg/logging"
)

// RefreshFunc performs a token refresh on behalf of the scheduler.
type RefreshFunc func(ctx context.Context) error

// RefreshScheduler periodically inspects the stored token and triggers a
// refresh once its remaining lifetime drops below the configured
// threshold. Starting an already running scheduler re-arms it: the
// previous loop is stopped first, so at most one loop runs at a time.
type RefreshScheduler struct {
	mu        sync.Mutex
	interval  time.Duration
	threshold time.Duration
	tokens    *token.Store
	refresh   RefreshFunc
	now       func() time.Time
	running   bool
	stopCh    chan struct{}
}

// SchedulerOption configures a RefreshScheduler.
type SchedulerOption func(*RefreshScheduler)

// WithClock sets the time source used for expiry checks, for tests.
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *RefreshScheduler) {
		s.now = now
	}
}

// NewRefreshScheduler creates a scheduler using the configured interval
// and expiry threshold.
func NewRefreshScheduler(cfg config.AuthConfig, tokens *token.Store, refresh RefreshFunc, opts ...SchedulerOption) *RefreshScheduler {
	s := &RefreshScheduler{
		interval:  cfg.RefreshInterval(),
		threshold: cfg.RefreshThreshold(),
		tokens:    tokens,
		refresh:   refresh,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the checking loop. The first check runs immediately, then
// on every interval tick until Stop or context cancellation.
func (s *RefreshScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.Stop()
		s.mu.Lock()
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	logging.Debug("Session", "Refresh scheduler armed (interval=%s threshold=%s)", s.interval, s.threshold)

	go func() {
		s.check(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.check(ctx)
			case <-stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the checking loop. Safe to call when not running.
func (s *RefreshScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)
}

// Running reports whether the loop is active.
func (s *RefreshScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *RefreshScheduler) check(ctx context.Context) {
	claims := s.tokens.Claims()
	if claims == nil {
		return
	}

	remaining := claims.ExpiresIn(s.now())
	if remaining > s.threshold {
		return
	}

	logging.Info("Session", "Token expires in %s, refreshing", remaining.Round(time.Second))
	if err := s.refresh(ctx); err != nil {
		logging.Warn("Session", "Scheduled refresh failed: %v", err)
	}
}
