package nav

import (
	"maps"
	"sync"

	"github.com/thislinkplease/midterm-cross-platform/internal/role"
	"github.com/thislinkplease/midterm-cross-platform/internal/session"
)

// Destination is a route plus its parameters.
type Destination struct {
	Route  Route
	Params map[string]string
}

// Param returns a parameter or "".
func (d Destination) Param(key string) string { return d.Params[key] }

// Navigator moves between screens.
type Navigator interface {
	// Replace makes r the only entry. Replacing with the active destination
	// does nothing.
	Replace(r Route, params map[string]string)
	Push(r Route, params map[string]string)
	// Back pops the top entry and reports whether it did.
	Back() bool
	Current() Destination
}

// Stack is an in-memory Navigator.
type Stack struct {
	mu        sync.Mutex
	entries   []Destination
	listeners map[int]func(Destination)
	nextID    int
}

func NewStack() *Stack {
	return &Stack{listeners: map[int]func(Destination){}}
}

func (s *Stack) Replace(r Route, params map[string]string) {
	s.mu.Lock()
	if n := len(s.entries); n == 1 && s.entries[0].Route == r && maps.Equal(s.entries[0].Params, params) {
		s.mu.Unlock()
		return
	}
	s.entries = []Destination{{Route: r, Params: params}}
	s.notifyLocked()
}

func (s *Stack) Push(r Route, params map[string]string) {
	s.mu.Lock()
	s.entries = append(s.entries, Destination{Route: r, Params: params})
	s.notifyLocked()
}

func (s *Stack) Back() bool {
	s.mu.Lock()
	if len(s.entries) < 2 {
		s.mu.Unlock()
		return false
	}
	s.entries = s.entries[:len(s.entries)-1]
	s.notifyLocked()
	return true
}

func (s *Stack) Current() Destination {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentLocked()
}

// Depth is the number of entries on the stack.
func (s *Stack) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// OnChange calls fn with the new top entry after every move.
func (s *Stack) OnChange(fn func(Destination)) func() {
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

func (s *Stack) currentLocked() Destination {
	if len(s.entries) == 0 {
		return Destination{}
	}
	return s.entries[len(s.entries)-1]
}

// notifyLocked releases s.mu before calling listeners.
func (s *Stack) notifyLocked() {
	d := s.currentLocked()
	fns := make([]func(Destination), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(d)
	}
}

// Watch applies the entry point of the active screen group on every session
// change, and once immediately. It returns the unsubscribe func.
func Watch(store *session.Store, n Navigator, c role.Classifier) func() {
	apply := func(st session.State) {
		cur := n.Current().Route
		if to, ok := EntryFor(cur)(cur, st, c); ok {
			n.Replace(to, nil)
		}
	}
	unsubscribe := store.Subscribe(apply)
	apply(store.State())
	return unsubscribe
}
