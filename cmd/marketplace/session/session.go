package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vendorlink/marketplace/cmd/marketplace/auth"
	"github.com/vendorlink/marketplace/cmd/marketplace/compare"
	"github.com/vendorlink/marketplace/cmd/marketplace/errs"
	"github.com/vendorlink/marketplace/models/market"
)

type State string

const (
	StateAnonymous      State = "anonymous"
	StateAuthenticating State = "authenticating"
	StateAuthenticated  State = "authenticated"
	StateSignedOut      State = "signed-out"
)

// Provider performs the credential checks behind a session.
type Provider interface {
	Register(ctx context.Context, reg auth.Registration) (*market.Account, error)
	Login(ctx context.Context, email, password string) (*market.Account, error)
	Logout(ctx context.Context, accountID string) error
}

// Event is published to subscribers on every state change.
type Event struct {
	SessionID string          `json:"sessionId"`
	State     State           `json:"state"`
	Account   *market.Account `json:"account,omitempty"`
	At        time.Time       `json:"at"`
}

const subscriberBuffer = 8

// Session tracks who is signed in for one client and owns that client's
// compare selection.
type Session struct {
	id        string
	provider  Provider
	selection *compare.Selection
	log       zerolog.Logger
	now       func() time.Time

	mu          sync.Mutex
	state       State
	account     *market.Account
	generation  uint64
	lastSeen    time.Time
	closed      bool
	done        chan struct{}
	subscribers map[int]chan Event
	nextSub     int
	watchers    sync.WaitGroup
}

func New(id string, provider Provider, log zerolog.Logger) *Session {
	return &Session{
		id:          id,
		provider:    provider,
		selection:   compare.NewSelection(),
		log:         log.With().Str("component", "session").Str("session_id", id).Logger(),
		now:         time.Now,
		state:       StateAnonymous,
		lastSeen:    time.Now(),
		done:        make(chan struct{}),
		subscribers: map[int]chan Event{},
	}
}

func (s *Session) touch(at time.Time) {
	s.mu.Lock()
	s.lastSeen = at
	s.mu.Unlock()
}

// idle reports whether the session went unused for timeout. A session with
// an open subscription is never idle.
func (s *Session) idle(now time.Time, timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers) == 0 && now.Sub(s.lastSeen) >= timeout
}

func (s *Session) ID() string {
	return s.id
}

// Selection returns the suppliers picked for comparison in this session.
func (s *Session) Selection() *compare.Selection {
	return s.selection
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Account returns the signed-in account, or nil.
func (s *Session) Account() *market.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAuthenticated {
		return nil
	}
	acct := *s.account
	return &acct
}

// RequireAccount returns the signed-in account or an unauthenticated error.
func (s *Session) RequireAccount() (*market.Account, error) {
	if acct := s.Account(); acct != nil {
		return acct, nil
	}
	return nil, errs.Unauthenticated("sign in required")
}

func (s *Session) Login(ctx context.Context, email, password string) (*market.Account, error) {
	return s.authenticate(ctx, "login", func(ctx context.Context) (*market.Account, error) {
		return s.provider.Login(ctx, email, password)
	})
}

// Register creates an account and signs it in.
func (s *Session) Register(ctx context.Context, reg auth.Registration) (*market.Account, error) {
	return s.authenticate(ctx, "register", func(ctx context.Context) (*market.Account, error) {
		return s.provider.Register(ctx, reg)
	})
}

func (s *Session) authenticate(ctx context.Context, action string, call func(context.Context) (*market.Account, error)) (*market.Account, error) {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return nil, errs.New(errs.KindStale, "session is closed")
	case s.state == StateAuthenticated:
		s.mu.Unlock()
		return nil, errs.Validation("session", "already signed in")
	case s.state == StateAuthenticating:
		s.mu.Unlock()
		return nil, errs.Validation("session", "sign-in already in progress")
	}
	previous := s.state
	gen := s.generation
	s.setState(StateAuthenticating, nil)
	s.mu.Unlock()

	acct, err := call(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.generation != gen {
		s.log.Info().
			Str("action", action).
			Bool("succeeded", err == nil).
			Msg("Discarding result of superseded sign-in")
		return nil, errs.New(errs.KindStale, "session changed while signing in")
	}
	if err != nil {
		s.setState(previous, nil)
		s.log.Debug().Err(err).Str("action", action).Msg("Sign-in failed")
		return nil, err
	}

	s.setState(StateAuthenticated, acct)
	out := *acct
	return &out, nil
}

// Logout signs the session out. Any sign-in still in flight is discarded.
// Logging out of a session that is not signed in is a no-op.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	var accountID string
	switch s.state {
	case StateAuthenticated:
		accountID = s.account.ID
	case StateAuthenticating:
	default:
		s.mu.Unlock()
		return nil
	}
	s.generation++
	s.setState(StateSignedOut, nil)
	s.mu.Unlock()

	if accountID == "" {
		return nil
	}
	if err := s.provider.Logout(ctx, accountID); err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}
	return nil
}

// Subscribe streams state changes until ctx is done or the session is
// closed, then closes the channel. Events are dropped for a subscriber that
// is not keeping up.
func (s *Session) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, subscriberBuffer)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch
	}
	key := s.nextSub
	s.nextSub++
	s.subscribers[key] = ch
	s.watchers.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.watchers.Done()
		select {
		case <-ctx.Done():
		case <-s.done:
		}
		s.mu.Lock()
		delete(s.subscribers, key)
		s.mu.Unlock()
		close(ch)
	}()

	return ch
}

// Close ends the session. In-flight sign-ins are discarded and every
// subscription is closed.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.generation++
	close(s.done)
	s.mu.Unlock()

	s.watchers.Wait()
	s.log.Debug().Msg("Session closed")
}

// setState must be called with mu held.
func (s *Session) setState(state State, acct *market.Account) {
	s.state = state
	s.account = acct

	ev := Event{SessionID: s.id, State: state, At: s.now()}
	if acct != nil {
		copied := *acct
		ev.Account = &copied
	}

	for key, ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			s.log.Warn().
				Int("subscriber", key).
				Str("state", string(state)).
				Msg("Subscriber not keeping up, dropping event")
		}
	}
}
