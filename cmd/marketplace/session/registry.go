package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vendorlink/marketplace/cmd/marketplace/errs"
)

const defaultSweepInterval = time.Minute

type RegistryConfig struct {
	// IdleTimeout closes sessions that were not used for this long. Zero
	// disables expiry.
	IdleTimeout   time.Duration
	SweepInterval time.Duration
}

// Registry holds the live sessions of the server, keyed by id.
type Registry struct {
	provider Provider
	config   RegistryConfig
	log      zerolog.Logger
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session

	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{}
}

// NewRegistry creates an empty registry and starts the idle sweep if an
// idle timeout is configured.
func NewRegistry(provider Provider, config RegistryConfig, log zerolog.Logger) *Registry {
	return newRegistry(provider, config, time.Now, log)
}

func newRegistry(provider Provider, config RegistryConfig, now func() time.Time, log zerolog.Logger) *Registry {
	if config.SweepInterval <= 0 {
		config.SweepInterval = defaultSweepInterval
	}
	r := &Registry{
		provider: provider,
		config:   config,
		log:      log,
		now:      now,
		sessions: map[string]*Session{},
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}

	if config.IdleTimeout > 0 {
		go r.startSweepRoutine()
		r.log.Info().
			Dur("idle_timeout", config.IdleTimeout).
			Dur("interval", config.SweepInterval).
			Msg("Started session sweep routine")
	} else {
		close(r.done)
	}
	return r
}

func (r *Registry) startSweepRoutine() {
	defer close(r.done)

	ticker := time.NewTicker(r.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep()
		case <-r.stopChan:
			r.log.Info().Msg("Stopping session sweep routine")
			return
		}
	}
}

// sweep closes the sessions that have been idle for the configured timeout.
// The session goes as a whole, its compare selection included.
func (r *Registry) sweep() {
	if r.config.IdleTimeout <= 0 {
		return
	}
	now := r.now()

	var expired []*Session
	r.mu.Lock()
	for id, s := range r.sessions {
		if s.idle(now, r.config.IdleTimeout) {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	remaining := len(r.sessions)
	r.mu.Unlock()

	for _, s := range expired {
		s.Close()
	}
	if len(expired) > 0 {
		r.log.Info().
			Int("expired", len(expired)).
			Int("remaining", remaining).
			Msg("Closed idle sessions")
	}
}

// Create starts a new anonymous session.
func (r *Registry) Create() *Session {
	s := New(uuid.NewString(), r.provider, r.log)
	s.touch(r.now())

	r.mu.Lock()
	r.sessions[s.ID()] = s
	count := len(r.sessions)
	r.mu.Unlock()

	r.log.Debug().
		Str("session_id", s.ID()).
		Int("sessions", count).
		Msg("Created session")
	return s
}

// Get returns the session and marks it as used.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, errs.NotFound("session", id)
	}
	s.touch(r.now())
	return s, nil
}

// Close removes and closes the session with the given id.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return errs.NotFound("session", id)
	}
	s.Close()
	return nil
}

// Stop ends the sweep routine. Sessions stay open.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopChan)
		<-r.done
	})
}

// CloseAll stops the sweep and closes every session, e.g. on shutdown.
func (r *Registry) CloseAll() {
	r.Stop()

	r.mu.Lock()
	sessions := r.sessions
	r.sessions = map[string]*Session{}
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	r.log.Info().Int("sessions", len(sessions)).Msg("Closed all sessions")
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
