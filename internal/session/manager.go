// Package session is the client-side custodian of authentication state. A
// Manager restores a persisted token on start, validates it against the
// server, and exposes the current user and a role-permission predicate.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/alecgard/ekklesia/internal/role"
)

var (
	// ErrValidation is returned by Login, before any network call, when
	// email or password is empty.
	ErrValidation = errors.New("email and password are required")

	// ErrSuperseded is returned by a Login whose result arrived after a
	// later Login or Logout. Its token is discarded.
	ErrSuperseded = errors.New("login superseded by a later session change")
)

// Status is the session's position in its state machine.
type Status int

const (
	StatusLoading Status = iota
	StatusAuthenticated
	StatusUnauthenticated
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// State is a snapshot of the session.
type State struct {
	Status Status
	User   *User
}

func (s State) IsLoading() bool       { return s.Status == StatusLoading }
func (s State) IsAuthenticated() bool { return s.Status == StatusAuthenticated }

// Authenticator is the server surface the Manager depends on. *Client
// satisfies it.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, *User, error)
	Me(ctx context.Context, token string) (*User, error)
	Logout(ctx context.Context, token string) error
}

// Manager owns the session state. It is safe for concurrent use.
//
// Every Bootstrap, Login and Logout takes a new generation number. A call
// applies its result only if its generation is still the latest, so a
// Logout issued while a Login is in flight always wins. A Login that fails
// while Bootstrap is pending hands the current generation back to it.
type Manager struct {
	api   Authenticator
	store TokenStore

	mu           sync.Mutex
	status       Status
	user         *User
	token        string
	gen          uint64
	bootstrapped bool
	bootPending  bool
	bootGen      uint64
	listeners    []func(State)
}

// NewManager returns a Manager in the loading state.
func NewManager(api Authenticator, store TokenStore) *Manager {
	return &Manager{
		api:    api,
		store:  store,
		status: StatusLoading,
	}
}

// Bootstrap restores the persisted token and validates it with the server.
// It runs once; later calls return the current state. Any validation
// failure clears the session, so Bootstrap never leaves the manager loading.
func (m *Manager) Bootstrap(ctx context.Context) State {
	m.mu.Lock()
	if m.bootstrapped {
		s := m.snapshotLocked()
		m.mu.Unlock()
		return s
	}
	m.bootstrapped = true
	m.gen++
	m.bootPending = true
	m.bootGen = m.gen
	m.mu.Unlock()

	token, err := m.store.Load()
	if err != nil {
		slog.WarnContext(ctx, "reading persisted token failed", "error", err)
	}
	if token == "" {
		return m.settle(func() {
			m.status = StatusUnauthenticated
		})
	}

	user, err := m.api.Me(ctx, token)
	if err != nil {
		slog.InfoContext(ctx, "persisted session rejected", "error", err)
		return m.settle(func() {
			m.clearLocked(ctx)
		})
	}

	return m.settle(func() {
		m.token = token
		m.user = user
		m.status = StatusAuthenticated
	})
}

// settle applies a Bootstrap result if it still owns the current generation
// and notifies listeners. A stale Bootstrap leaves the state to whichever
// call superseded it.
func (m *Manager) settle(fn func()) State {
	m.mu.Lock()
	current := m.bootPending && m.bootGen == m.gen
	m.bootPending = false
	if !current {
		s := m.snapshotLocked()
		m.mu.Unlock()
		return s
	}
	fn()
	s := m.snapshotLocked()
	listeners := m.listeners
	m.mu.Unlock()

	notify(listeners, s)
	return s
}

// Login authenticates with the server and, on success, persists the token
// and marks the session authenticated. Server errors are returned as is.
func (m *Manager) Login(ctx context.Context, email, password string) (*User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, ErrValidation
	}

	m.mu.Lock()
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	token, user, err := m.api.Login(ctx, email, password)

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return nil, ErrSuperseded
	}

	if err != nil {
		// A failed login only resolves a session that was still loading;
		// an existing session is kept. A pending Bootstrap resolves it instead.
		if m.bootPending {
			m.bootGen = m.gen
		}
		if m.status != StatusLoading || m.bootPending {
			m.mu.Unlock()
			return nil, err
		}
		m.status = StatusUnauthenticated
		s := m.snapshotLocked()
		listeners := m.listeners
		m.mu.Unlock()
		notify(listeners, s)
		return nil, err
	}

	if perr := m.store.Save(token); perr != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("persisting session token: %w", perr)
	}
	m.bootPending = false
	m.token = token
	m.user = user
	m.status = StatusAuthenticated
	s := m.snapshotLocked()
	listeners := m.listeners
	m.mu.Unlock()

	notify(listeners, s)
	cp := *user
	return &cp, nil
}

// Logout clears the session and the persisted token. It is idempotent. The
// server is notified on a best-effort basis; its answer does not matter
// since tokens are not revoked server-side.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	m.gen++
	m.bootPending = false
	token := m.token
	err := m.clearLocked(ctx)
	s := m.snapshotLocked()
	listeners := m.listeners
	m.mu.Unlock()

	notify(listeners, s)

	if token != "" {
		if nerr := m.api.Logout(ctx, token); nerr != nil {
			slog.DebugContext(ctx, "server logout notification failed", "error", nerr)
		}
	}
	return err
}

// clearLocked drops the in-memory session and the persisted token.
func (m *Manager) clearLocked(ctx context.Context) error {
	m.user = nil
	m.token = ""
	m.status = StatusUnauthenticated
	if err := m.store.Clear(); err != nil {
		slog.WarnContext(ctx, "clearing persisted token failed", "error", err)
		return fmt.Errorf("clearing session token: %w", err)
	}
	return nil
}

// HasPermission reports whether the current user's role ranks at or above
// required. It is false when no user is signed in.
func (m *Manager) HasPermission(required role.Role) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return false
	}
	return m.user.Role.Allows(required)
}

// State returns a snapshot of the session.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Token returns the credential while authenticated, or "".
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusAuthenticated {
		return ""
	}
	return m.token
}

// OnChange registers fn to receive the state after every transition.
// Listeners run on the goroutine that caused the change.
func (m *Manager) OnChange(fn func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

func (m *Manager) snapshotLocked() State {
	s := State{Status: m.status}
	if m.user != nil {
		cp := *m.user
		s.User = &cp
	}
	return s
}

func notify(listeners []func(State), s State) {
	for _, fn := range listeners {
		fn(s)
	}
}

// Transport wraps base so requests carry the session credential while the
// manager is authenticated. A nil base uses http.DefaultTransport.
func (m *Manager) Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &bearerTransport{m: m, base: base}
}

type bearerTransport struct {
	m    *Manager
	base http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token := t.m.Token()
	if token == "" {
		return t.base.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+token)
	return t.base.RoundTrip(r)
}
