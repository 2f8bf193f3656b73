package session

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"

	"pathways/internal/config"
	"pathways/internal/identity"
	"pathways/internal/token"
	"pathways/pkg/logging"
)

// Phase represents where the session lifecycle currently stands.
type Phase int

const (
	// PhaseUninitialized means Start has not been called yet.
	PhaseUninitialized Phase = iota

	// PhaseInitializing means the stored session is being resolved.
	PhaseInitializing

	// PhaseAuthenticated means a user is signed in.
	PhaseAuthenticated

	// PhaseUnauthenticated means no user is signed in.
	PhaseUnauthenticated

	// PhaseError means the last lifecycle operation failed. The session
	// is treated as unauthenticated until the error is cleared.
	PhaseError
)

// String returns the string representation of a phase.
func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseInitializing:
		return "initializing"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseUnauthenticated:
		return "unauthenticated"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time view of the session handed to listeners.
type Snapshot struct {
	Phase         Phase
	User          *identity.User
	Authenticated bool
	Loading       bool
	Err           error
}

// Listener receives session snapshots after every state change.
type Listener func(Snapshot)

// ErrRedirectAlreadyHandled indicates a second redirect callback arriving
// after one has already been processed in this run.
var ErrRedirectAlreadyHandled = errors.New("login redirect already handled")

// Manager owns the session lifecycle: initialization from stored state,
// login and logout orchestration, redirect handling, and proactive token
// refresh. All public methods are safe for concurrent use.
type Manager struct {
	cfg     config.AuthConfig
	gateway *identity.Gateway
	tokens  *token.Store

	mu        sync.RWMutex
	phase     Phase
	user      *identity.User
	lastErr   error
	listeners []Listener

	// group collapses concurrent refresh and login attempts into one
	// in-flight call.
	group singleflight.Group

	redirectHandled bool

	scheduler *RefreshScheduler

	watchPath string
	watcher   *TokenWatcher
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithScheduler replaces the default refresh scheduler.
func WithScheduler(scheduler *RefreshScheduler) ManagerOption {
	return func(m *Manager) {
		m.scheduler = scheduler
	}
}

// WithTokenWatchPath enables watching the token file at path, so a login or
// logout performed by another process is picked up while this one runs.
func WithTokenWatchPath(path string) ManagerOption {
	return func(m *Manager) {
		m.watchPath = path
	}
}

// NewManager creates a session manager. Call Start to begin the lifecycle.
func NewManager(cfg config.AuthConfig, gateway *identity.Gateway, tokens *token.Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		cfg:     cfg,
		gateway: gateway,
		tokens:  tokens,
		phase:   PhaseUninitialized,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.scheduler == nil {
		m.scheduler = NewRefreshScheduler(cfg, tokens, m.Refresh)
	}
	return m
}

// Subscribe registers a listener for session changes. The listener is
// invoked synchronously with the current snapshot and on every change
// after that.
func (m *Manager) Subscribe(listener Listener) {
	m.mu.Lock()
	m.listeners = append(m.listeners, listener)
	snapshot := m.snapshotLocked()
	m.mu.Unlock()
	listener(snapshot)
}

// Snapshot returns the current session view.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	return Snapshot{
		Phase:         m.phase,
		User:          m.user,
		Authenticated: m.phase == PhaseAuthenticated,
		Loading:       m.phase == PhaseUninitialized || m.phase == PhaseInitializing,
		Err:           m.lastErr,
	}
}

// Start resolves any stored session and arms the refresh scheduler. When
// authentication is disabled by configuration it settles directly into the
// unauthenticated phase without any network traffic.
func (m *Manager) Start(ctx context.Context) error {
	if !m.cfg.Enabled {
		logging.Info("Session", "Authentication disabled, starting unauthenticated")
		m.setState(PhaseUnauthenticated, nil, nil)
		return nil
	}

	m.setState(PhaseInitializing, nil, nil)

	user, err := m.gateway.CurrentUser(ctx)
	if err != nil {
		logging.Error("Session", err, "Session initialization failed")
		m.setState(PhaseError, nil, err)
		return err
	}

	if user != nil {
		logging.Info("Session", "Restored session for %s", user.String())
		m.setState(PhaseAuthenticated, user, nil)
		m.scheduler.Start(ctx)
	} else {
		m.setState(PhaseUnauthenticated, nil, nil)
	}

	m.startWatcher(ctx)
	return nil
}

// startWatcher arms the token-file watcher when a watch path is configured.
// Watch failures are not fatal: the session still works, it just cannot see
// external logins.
func (m *Manager) startWatcher(ctx context.Context) {
	if m.watchPath == "" {
		return
	}
	watcher := NewTokenWatcher(m.watchPath, func() {
		if err := m.Resync(ctx); err != nil {
			logging.Warn("Session", "Resync after token file change failed: %v", err)
		}
	})
	if err := watcher.Start(ctx); err != nil {
		logging.Warn("Session", "Could not watch token file: %v", err)
		return
	}
	m.mu.Lock()
	m.watcher = watcher
	m.mu.Unlock()
}

// Resync re-resolves the session from stored state, picking up a login or
// logout performed by another process.
func (m *Manager) Resync(ctx context.Context) error {
	user, err := m.gateway.CurrentUser(ctx)
	if err != nil {
		logging.Warn("Session", "Resync failed: %v", err)
		return err
	}
	if user != nil {
		m.setState(PhaseAuthenticated, user, nil)
	} else {
		m.setState(PhaseUnauthenticated, nil, nil)
	}
	return nil
}

// Login runs the interactive browser login for the given provider.
// Concurrent calls share a single in-flight login.
func (m *Manager) Login(ctx context.Context, provider string) error {
	_, err, _ := m.group.Do("login", func() (interface{}, error) {
		user, err := m.gateway.InitiateLogin(ctx, provider)
		if err != nil {
			var cbErr *identity.CallbackError
			if errors.As(err, &cbErr) {
				m.setState(PhaseError, nil, err)
			} else {
				m.setState(PhaseUnauthenticated, nil, nil)
			}
			return nil, err
		}
		m.setState(PhaseAuthenticated, user, nil)
		m.scheduler.Start(ctx)
		return user, nil
	})
	return err
}

// HandleRedirect consumes a login redirect received out of band, e.g. when
// the callback parameters were captured by another surface. It processes
// at most one redirect per run; later calls fail with
// ErrRedirectAlreadyHandled.
func (m *Manager) HandleRedirect(ctx context.Context, rawToken, state, errParam string) error {
	m.mu.Lock()
	if m.redirectHandled {
		m.mu.Unlock()
		return ErrRedirectAlreadyHandled
	}
	m.redirectHandled = true
	m.mu.Unlock()

	if errParam != "" {
		err := &identity.CallbackError{Reason: errParam}
		logging.Warn("Session", "Login redirect reported an error: %s", errParam)
		m.setState(PhaseError, nil, err)
		return err
	}

	user, err := m.gateway.CompleteCallback(ctx, rawToken, state)
	if err != nil {
		logging.Warn("Session", "Login redirect rejected: %v", err)
		m.setState(PhaseError, nil, err)
		return err
	}

	m.setState(PhaseAuthenticated, user, nil)
	m.scheduler.Start(ctx)
	return nil
}

// Refresh exchanges the current token for a fresh one. Concurrent calls
// collapse into one request. On failure the session drops to
// unauthenticated.
func (m *Manager) Refresh(ctx context.Context) error {
	_, err, _ := m.group.Do("refresh", func() (interface{}, error) {
		raw, err := m.gateway.Refresh(ctx)
		if err != nil {
			logging.Warn("Session", "Refresh failed, session ended: %v", err)
			m.setState(PhaseUnauthenticated, nil, nil)
			return nil, err
		}

		// The fresh token may carry updated identity; merge the
		// re-resolved user into the authenticated state.
		user, uerr := m.gateway.CurrentUser(ctx)
		if uerr != nil || user == nil {
			if uerr != nil {
				logging.Warn("Session", "User lookup after refresh failed: %v", uerr)
			}
			m.setState(PhaseUnauthenticated, nil, nil)
			return nil, uerr
		}
		m.setState(PhaseAuthenticated, user, nil)
		return raw, nil
	})
	return err
}

// Logout ends the session. The local state always clears even when the
// server-side invalidation fails, and the refresh scheduler is disarmed.
func (m *Manager) Logout(ctx context.Context) error {
	err := m.gateway.Logout(ctx)
	m.scheduler.Stop()
	m.setState(PhaseUnauthenticated, nil, nil)
	return err
}

// ClearError leaves the error phase and settles into unauthenticated.
func (m *Manager) ClearError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseError {
		return
	}
	m.phase = PhaseUnauthenticated
	m.lastErr = nil
	m.notifyLocked()
}

// Stop halts the refresh scheduler and the token-file watcher.
func (m *Manager) Stop() {
	m.scheduler.Stop()
	m.mu.Lock()
	watcher := m.watcher
	m.mu.Unlock()
	if watcher != nil {
		watcher.Stop()
	}
}

func (m *Manager) setState(phase Phase, user *identity.User, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phase = phase
	m.user = user
	m.lastErr = err
	logging.Debug("Session", "Session phase -> %s", phase)
	m.notifyLocked()
}

func (m *Manager) notifyLocked() {
	snapshot := m.snapshotLocked()
	for _, listener := range m.listeners {
		listener(snapshot)
	}
}
