// Package session tracks the signed-in session for the whole application.
package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/thislinkplease/midterm-cross-platform/internal/backend"
)

// State is a snapshot of the store. Loading is true until the first session
// fetch completes.
type State struct {
	Session *backend.Session
	Loading bool
}

// Email is the signed-in email or "".
func (s State) Email() string { return s.Session.Email() }

// Store mirrors the auth provider's session. It is created explicitly and
// passed to whoever needs it.
type Store struct {
	auth   backend.Auth
	logger *zap.SugaredLogger

	mu          sync.Mutex
	state       State
	started     bool
	closed      bool
	eventSeen   bool
	unsubscribe func()
	listeners   map[int]func(State)
	nextID      int
	ready       chan struct{}
	readyOnce   sync.Once
}

func NewStore(auth backend.Auth, logger *zap.SugaredLogger) *Store {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Store{
		auth:      auth,
		logger:    logger,
		state:     State{Loading: true},
		listeners: map[int]func(State){},
		ready:     make(chan struct{}),
	}
}

// Start subscribes to auth-state changes and fetches the current session in
// the background. It is a no-op after the first call.
func (s *Store) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	unsubscribe := s.auth.OnAuthStateChange(s.onEvent)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		unsubscribe()
		return
	}
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	go s.fetch(ctx)
}

func (s *Store) fetch(ctx context.Context) {
	sess, err := s.auth.GetSession(ctx)
	if err != nil {
		s.logger.Warnw("get session failed", "err", err)
		sess = nil
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	// an event that arrived meanwhile is newer than what the fetch saw
	if !s.eventSeen {
		s.state.Session = sess
	}
	s.state.Loading = false
	s.notifyLocked()
	s.readyOnce.Do(func() { close(s.ready) })
}

func (s *Store) onEvent(ev backend.AuthEvent) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.eventSeen = true
	s.state.Session = ev.Session
	s.logger.Debugw("auth state changed", "event", ev.Kind, "email", ev.Session.Email())
	s.notifyLocked()
}

// notifyLocked releases s.mu and calls the listeners with the new state.
func (s *Store) notifyLocked() {
	st := s.state
	fns := make([]func(State), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(st)
	}
}

// Close stops tracking. Later fetch results and events are discarded.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.ready) })
	if unsubscribe != nil {
		unsubscribe()
	}
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe calls fn after every change until the returned func is called.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// Ready is closed once the initial fetch has completed or the store is
// closed.
func (s *Store) Ready() <-chan struct{} { return s.ready }
