package session

import (
	"context"
	"errors"
	"sync"
)

// State is the authentication state of a Session.
type State string

// Session states.
const (
	StateUnauthenticated State = "unauthenticated"
	StateAuthenticating  State = "authenticating"
	StateAuthenticated   State = "authenticated"
)

// AuthenticatedChannel is the live authenticated connection handed back by
// the credential exchange. It reports remote auth-state transitions and can
// be torn down locally.
type AuthenticatedChannel interface {
	// OnAuthStateChange registers a callback invoked whenever the remote
	// side reports a transition. true means authenticated.
	OnAuthStateChange(fn func(authenticated bool))

	// SignOut tears the channel down locally. It does not invalidate the
	// credential remotely.
	SignOut() error

	// AccessToken returns the access token issued by the exchange.
	AccessToken() string
}

// AuthTransport exchanges a long-lived credential for an authenticated
// channel against the remote store.
type AuthTransport interface {
	ExchangeCredential(ctx context.Context, credential string) (AuthenticatedChannel, error)
}

// RevocationTransport invalidates a credential remotely.
type RevocationTransport interface {
	Revoke(ctx context.Context, credential string) error
}

// Logger is the minimal logging interface used by the Session.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Session owns one access credential and the authenticated channel derived
// from it. It is the single serialization point guarding all remote access:
// every subscription setup and every write calls Authenticate first.
//
// All methods are safe for concurrent use. Concurrent Authenticate calls
// while an exchange is in flight coalesce onto that exchange rather than
// issuing duplicates.
type Session struct {
	auth    AuthTransport
	revoker RevocationTransport
	logger  Logger

	mu         sync.Mutex
	credential string
	state      State
	channel    AuthenticatedChannel

	// inflight is non-nil while a credential exchange is running; it is
	// closed when the exchange settles and inflightErr holds the outcome.
	inflight    chan struct{}
	inflightErr error

	listeners []func(State)
}

// New creates a Session using the given transports. The credential may be
// empty; it can be supplied later through Authenticate.
func New(auth AuthTransport, revoker RevocationTransport, credential string) *Session {
	return &Session{
		auth:       auth,
		revoker:    revoker,
		credential: credential,
		state:      StateUnauthenticated,
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the session.
func (s *Session) SetLogger(logger Logger) {
	s.mu.Lock()
	s.logger = logger
	s.mu.Unlock()
}

// State returns the current authentication state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Channel returns the current authenticated channel, or nil when the session
// is not authenticated.
func (s *Session) Channel() AuthenticatedChannel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel
}

// OnStateChange registers a listener invoked on every state transition.
// Listeners are called without internal locks held and must not block.
func (s *Session) OnStateChange(fn func(State)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Authenticate ensures the session is authenticated. It is idempotent: if
// already authenticated it returns immediately; if an exchange is in flight
// it waits for that exchange's outcome instead of starting another.
//
// A non-empty credential replaces the stored one before the check. With no
// credential stored or supplied it fails with ErrNoCredential. A remote
// rejection is returned as *AuthError.
func (s *Session) Authenticate(ctx context.Context, credential string) error {
	s.mu.Lock()
	if credential != "" {
		s.credential = credential
	}

	switch s.state {
	case StateAuthenticated:
		s.mu.Unlock()
		return nil

	case StateAuthenticating:
		// Coalesce onto the in-flight exchange.
		wait := s.inflight
		s.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wait:
		}
		s.mu.Lock()
		err := s.inflightErr
		s.mu.Unlock()
		return err

	default:
	}

	if s.credential == "" {
		s.mu.Unlock()
		return ErrNoCredential
	}

	cred := s.credential
	done := make(chan struct{})
	s.inflight = done
	s.setStateLocked(StateAuthenticating)
	s.mu.Unlock()

	channel, err := s.auth.ExchangeCredential(ctx, cred)

	s.mu.Lock()
	s.inflight = nil
	if err != nil {
		authErr := &AuthError{Err: err}
		s.inflightErr = authErr
		s.setStateLocked(StateUnauthenticated)
		close(done)
		s.mu.Unlock()
		return authErr
	}

	s.channel = channel
	s.inflightErr = nil
	s.setStateLocked(StateAuthenticated)
	close(done)
	s.mu.Unlock()

	// Observe remote auth-state transitions for the life of the channel.
	channel.OnAuthStateChange(s.handleAuthState)
	return nil
}

// Revoke tears down the authenticated channel locally and invalidates the
// credential remotely. Local teardown always runs first, so repeated calls
// are safe. A failed remote call is returned as *RevocationError.
func (s *Session) Revoke(ctx context.Context) error {
	s.mu.Lock()
	channel := s.channel
	cred := s.credential
	s.channel = nil
	s.setStateLocked(StateUnauthenticated)
	s.mu.Unlock()

	if channel != nil {
		if err := channel.SignOut(); err != nil {
			s.logger.Warn("local sign-out failed", "error", err)
		}
	}

	if cred == "" {
		return nil
	}

	if err := s.revoker.Revoke(ctx, cred); err != nil {
		var revErr *RevocationError
		if errors.As(err, &revErr) {
			return err
		}
		return &RevocationError{Err: err}
	}

	// The credential is dead remotely; forget it.
	s.mu.Lock()
	s.credential = ""
	s.mu.Unlock()
	return nil
}

// handleAuthState receives remote transitions reported by the channel.
func (s *Session) handleAuthState(authenticated bool) {
	s.mu.Lock()
	if authenticated {
		s.setStateLocked(StateAuthenticated)
	} else {
		s.channel = nil
		s.setStateLocked(StateUnauthenticated)
	}
	s.mu.Unlock()
}

// setStateLocked transitions the state and schedules listener notification.
// Callers must hold s.mu. Listeners run on a separate goroutine so they can
// call back into the session without deadlocking.
func (s *Session) setStateLocked(state State) {
	if s.state == state {
		return
	}
	s.state = state
	s.logger.Debug("session state changed", "state", state)

	listeners := make([]func(State), len(s.listeners))
	copy(listeners, s.listeners)
	go func() {
		for _, fn := range listeners {
			fn(state)
		}
	}()
}
