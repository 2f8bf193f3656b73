package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"pathways/internal/config"
	"pathways/internal/storage"
	"pathways/internal/token"
)

func newSchedulerFixture(t *testing.T, intervalSeconds, thresholdSeconds int, refresh RefreshFunc) (*RefreshScheduler, *token.Store) {
	t.Helper()
	cfg := config.AuthConfig{
		RefreshIntervalSeconds:  intervalSeconds,
		RefreshThresholdSeconds: thresholdSeconds,
	}
	tokens := token.NewStore(storage.NewMemStore(), config.DefaultTokenKey)
	scheduler := NewRefreshScheduler(cfg, tokens, refresh)
	t.Cleanup(scheduler.Stop)
	return scheduler, tokens
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Condition not met before timeout")
}

func TestSchedulerRefreshesExpiringToken(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	scheduler, tokens := newSchedulerFixture(t, 3600, 300, func(ctx context.Context) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil
	})

	// Expires within the threshold: the immediate first check fires.
	if err := tokens.Set(tokenExpiringAt(t, time.Now().Add(2*time.Minute))); err != nil {
		t.Fatalf("Failed to seed token: %v", err)
	}

	scheduler.Start(context.Background())
	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 1
	})
}

func TestSchedulerLeavesFreshTokenAlone(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	scheduler, tokens := newSchedulerFixture(t, 3600, 300, func(ctx context.Context) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil
	})

	if err := tokens.Set(tokenExpiringAt(t, time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("Failed to seed token: %v", err)
	}

	scheduler.Start(context.Background())
	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Errorf("Fresh token should not trigger a refresh, got %d calls", calls)
	}
}

func TestSchedulerIgnoresMissingToken(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	scheduler, _ := newSchedulerFixture(t, 3600, 300, func(ctx context.Context) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil
	})

	scheduler.Start(context.Background())
	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Errorf("Missing token should not trigger a refresh, got %d calls", calls)
	}
}

func TestSchedulerCheckWithInjectedClock(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	cfg := config.AuthConfig{
		RefreshIntervalSeconds:  3600,
		RefreshThresholdSeconds: 300,
	}
	tokens := token.NewStore(storage.NewMemStore(), config.DefaultTokenKey)

	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	scheduler := NewRefreshScheduler(cfg, tokens, func(ctx context.Context) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil
	}, WithClock(func() time.Time { return now }))

	if err := tokens.Set(tokenExpiringAt(t, now.Add(10*time.Minute))); err != nil {
		t.Fatalf("Failed to seed token: %v", err)
	}

	// Ten minutes of lifetime left is above the five-minute threshold.
	scheduler.check(context.Background())
	mu.Lock()
	if calls != 0 {
		t.Errorf("Expected no refresh above the threshold, got %d calls", calls)
	}
	mu.Unlock()

	// Advance past the threshold without any real timers.
	now = now.Add(6 * time.Minute)
	scheduler.check(context.Background())
	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("Expected one refresh below the threshold, got %d calls", calls)
	}
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	scheduler, _ := newSchedulerFixture(t, 3600, 300, func(ctx context.Context) error { return nil })

	scheduler.Start(context.Background())
	if !scheduler.Running() {
		t.Fatal("Scheduler should be running after Start")
	}

	scheduler.Stop()
	scheduler.Stop()
	if scheduler.Running() {
		t.Error("Scheduler should not be running after Stop")
	}
}

func TestSchedulerRestartReplacesLoop(t *testing.T) {
	scheduler, _ := newSchedulerFixture(t, 3600, 300, func(ctx context.Context) error { return nil })

	scheduler.Start(context.Background())
	scheduler.Start(context.Background())
	if !scheduler.Running() {
		t.Fatal("Scheduler should be running after restart")
	}
	scheduler.Stop()
	if scheduler.Running() {
		t.Error("Scheduler should stop cleanly after restart")
	}
}
