package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/jsalmi/mytgo/internal/log"
)

// Lifecycle states.
const (
	StateUninitialized = "uninitialized"
	StateValid         = "valid"
	StateNeedsLogin    = "needs_login"
)

// Lifecycle events.
const (
	EventRestored = "restored"  // persisted session loaded and usable
	EventIssued   = "issued"    // refresh or login produced a new session
	EventExpired  = "expired"   // access token lifetime passed
	EventRejected = "rejected"  // upstream refused the token
	EventNotFound = "not_found" // no persisted session to restore
)

// Authenticator abstracts the network half of authentication so the
// manager can be tested without a live identity provider.
type Authenticator interface {
	Login(ctx context.Context) (*Session, error)
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
}

// Manager owns the mutable session value and its lifecycle. It is the
// single writer: fetchers hold a reference and only read headers from it.
type Manager struct {
	dir     string
	flow    Authenticator
	current *Session
	machine *fsm.FSM
	now     func() time.Time

	// forcedLogin is set by Invalidate so the next EnsureValid skips the
	// refresh grant: a rejected token's sibling refresh token is not
	// trusted either.
	forcedLogin bool
}

// NewManager returns a Manager that persists sessions under dir and uses
// flow for network authentication.
func NewManager(dir string, flow Authenticator) *Manager {
	m := &Manager{
		dir:  dir,
		flow: flow,
		now:  time.Now,
	}
	m.machine = fsm.NewFSM(
		StateUninitialized,
		fsm.Events{
			{Name: EventRestored, Src: []string{StateUninitialized}, Dst: StateValid},
			{Name: EventNotFound, Src: []string{StateUninitialized}, Dst: StateNeedsLogin},
			{Name: EventIssued, Src: []string{StateUninitialized, StateValid, StateNeedsLogin}, Dst: StateValid},
			{Name: EventExpired, Src: []string{StateValid}, Dst: StateNeedsLogin},
			{Name: EventRejected, Src: []string{StateUninitialized, StateValid, StateNeedsLogin}, Dst: StateNeedsLogin},
		},
		fsm.Callbacks{
			"after_event": func(_ context.Context, e *fsm.Event) {
				if e.Src != e.Dst {
					log.Debug("session state changed", zap.String("from", e.Src), zap.String("to", e.Dst), zap.String("event", e.Event))
				}
			},
		},
	)
	return m
}

// State returns the current lifecycle state.
func (m *Manager) State() string { return m.machine.Current() }

// Current returns the session, which may be nil.
func (m *Manager) Current() *Session { return m.current }

func (m *Manager) event(ctx context.Context, name string) {
	if err := m.machine.Event(ctx, name); err != nil {
		// Transition table violations are programming errors.
		panic(fmt.Sprintf("session: illegal transition %s from %s: %s", name, m.machine.Current(), err))
	}
}

// EnsureValid returns a complete, unexpired session, performing whatever
// transition is needed: restore from disk, silent refresh, or the full
// interactive login. Every issued session is persisted before this method
// returns. Failure is an *AuthenticationError.
func (m *Manager) EnsureValid(ctx context.Context) (*Session, error) {
	if m.machine.Current() == StateUninitialized {
		m.restore(ctx)
	}

	if m.machine.Current() == StateValid {
		if !m.current.Expired(m.now()) {
			return m.current, nil
		}
		m.event(ctx, EventExpired)
	}

	// Silent renewal first, but only when the manager was not forced
	// through needs-login by a rejection and a refresh token exists.
	if m.current != nil && m.current.Refreshable() && !m.forcedLogin {
		log.Info("access token expired, attempting refresh")
		s, err := m.flow.Refresh(ctx, m.current.RefreshToken)
		if err == nil {
			return m.install(ctx, s)
		}
		log.Warn("token refresh failed, falling back to interactive login", zap.Error(err))
	}

	log.Info("performing interactive login")
	s, err := m.flow.Login(ctx)
	if err != nil {
		var authErr *AuthenticationError
		if errors.As(err, &authErr) {
			return nil, err
		}
		return nil, &AuthenticationError{Step: "login", Err: err}
	}
	m.forcedLogin = false
	return m.install(ctx, s)
}

// restore loads a persisted session, if any.
func (m *Manager) restore(ctx context.Context) {
	s, err := load(m.dir)
	if err != nil {
		log.Warn("could not read persisted session", zap.Error(err))
	}
	if s == nil {
		m.event(ctx, EventNotFound)
		return
	}
	m.current = s
	m.event(ctx, EventRestored)
	log.Debug("restored persisted session", zap.Time("expiration", s.Expiration))
}

// install replaces the session wholesale and persists it synchronously.
// The new session is not used until persistence succeeds.
func (m *Manager) install(ctx context.Context, s *Session) (*Session, error) {
	if err := save(m.dir, s); err != nil {
		return nil, &AuthenticationError{Step: "persist", Err: err}
	}
	m.current = s
	m.event(ctx, EventIssued)
	return s, nil
}

// Invalidate forces the manager through interactive login on the next
// EnsureValid call. Called when a resource request is rejected as
// unauthorized despite a structurally valid session.
func (m *Manager) Invalidate(ctx context.Context) {
	m.forcedLogin = true
	if m.machine.Current() != StateNeedsLogin {
		m.event(ctx, EventRejected)
	}
}

// Headers returns the authentication header projection of the current
// session. It must not be called before EnsureValid has succeeded;
// violating that is a programming error.
func (m *Manager) Headers() Headers {
	if m.machine.Current() != StateValid || !m.current.Complete() {
		panic("session: Headers called without a valid session")
	}
	return Headers{
		Token:   m.current.AccessToken,
		Subject: m.current.Subject,
	}
}

// Headers is the per-request authentication material. Fetchers decide
// which fields each endpoint wants.
type Headers struct {
	Token   string
	Subject string
}
