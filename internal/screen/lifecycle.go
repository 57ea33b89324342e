package screen

import (
	"errors"
	"sync"
)

// ErrBusy is returned when an action is submitted again while it is still
// running, the way a disabled button would ignore the tap.
var ErrBusy = errors.New("operation already in progress")

// Lifecycle tracks whether a screen is mounted. Each Mount starts a new
// generation; results of work started in an older generation are dropped.
type Lifecycle struct {
	mu      sync.Mutex
	gen     uint64
	mounted bool
	running map[string]bool
}

// Ticket identifies the generation an operation was started in.
type Ticket struct {
	l   *Lifecycle
	gen uint64
}

func (l *Lifecycle) Mount() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	l.mounted = true
}

func (l *Lifecycle) Unmount() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	l.mounted = false
}

// Ticket returns a ticket for the current generation.
func (l *Lifecycle) Ticket() Ticket {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Ticket{l: l, gen: l.gen}
}

// Live reports whether the screen is still mounted in the ticket's
// generation.
func (t Ticket) Live() bool {
	t.l.mu.Lock()
	defer t.l.mu.Unlock()
	return t.l.mounted && t.l.gen == t.gen
}

// Begin marks action as running until done is called.
func (l *Lifecycle) Begin(action string) (done func(), err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running == nil {
		l.running = map[string]bool{}
	}
	if l.running[action] {
		return nil, ErrBusy
	}
	l.running[action] = true
	return func() {
		l.mu.Lock()
		delete(l.running, action)
		l.mu.Unlock()
	}, nil
}

// Running reports whether action is in flight.
func (l *Lifecycle) Running(action string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running[action]
}
