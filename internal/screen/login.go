package screen

import (
	"context"
	"strings"
	"sync"

	"github.com/thislinkplease/midterm-cross-platform/internal/user/entity"
)

// AuthView is the state of the login and signup forms. Error is shown inline.
type AuthView struct {
	Error string
	Busy  bool
}

type Login struct {
	d  Deps
	lc Lifecycle

	mu   sync.Mutex
	view AuthView
}

func NewLogin(d Deps) *Login { return &Login{d: d} }

func (l *Login) Mount() {
	l.lc.Mount()
	l.setView(AuthView{})
}

func (l *Login) Unmount() { l.lc.Unmount() }

func (l *Login) View() AuthView {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.view
}

// Submit signs in, mirrors the account into the table and moves to the
// screen for the account's role. Provider errors are shown verbatim.
func (l *Login) Submit(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if err := ValidateLogin(email, password); err != nil {
		l.setView(AuthView{Error: err.Error()})
		return err
	}
	done, err := l.lc.Begin("submit")
	if err != nil {
		return err
	}
	defer done()
	t := l.lc.Ticket()
	l.setView(AuthView{Busy: true})

	s, err := l.d.Auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		if t.Live() {
			l.setView(AuthView{Error: err.Error()})
		}
		return err
	}

	username, _, _ := strings.Cut(email, "@")
	if err := l.d.Accounts.MirrorAuthUser(ctx, entity.User{Username: username, Email: s.Email()}); err != nil {
		l.d.logger().Warnw("mirror user after login failed", "email", s.Email(), "err", err)
	}
	if t.Live() {
		l.setView(AuthView{})
		l.d.goHome(s)
	}
	return nil
}

func (l *Login) setView(v AuthView) {
	l.mu.Lock()
	l.view = v
	l.mu.Unlock()
}
