package screen

import (
	"context"
	"strings"
	"sync"

	"github.com/thislinkplease/midterm-cross-platform/internal/avatar"
	"github.com/thislinkplease/midterm-cross-platform/internal/nav"
	"github.com/thislinkplease/midterm-cross-platform/internal/user/entity"
)

// SignupForm is the input of the signup screen.
type SignupForm struct {
	Username string
	Email    string
	Password string
	Confirm  string
}

type Signup struct {
	d  Deps
	lc Lifecycle

	mu   sync.Mutex
	view AuthView
}

func NewSignup(d Deps) *Signup { return &Signup{d: d} }

func (s *Signup) Mount() {
	s.lc.Mount()
	s.setView(AuthView{})
}

func (s *Signup) Unmount() { s.lc.Unmount() }

func (s *Signup) View() AuthView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Submit registers the account and mirrors it into the table with the
// placeholder image. A failed mirror is reported but does not stop the flow.
func (s *Signup) Submit(ctx context.Context, f SignupForm) error {
	f.Username = strings.TrimSpace(f.Username)
	f.Email = strings.TrimSpace(f.Email)
	if err := ValidateSignup(f.Username, f.Email, f.Password, f.Confirm); err != nil {
		s.setView(AuthView{Error: err.Error()})
		return err
	}
	done, err := s.lc.Begin("submit")
	if err != nil {
		return err
	}
	defer done()
	t := s.lc.Ticket()
	s.setView(AuthView{Busy: true})

	sess, err := s.d.Auth.SignUp(ctx, f.Email, f.Password, map[string]any{"username": f.Username})
	if err != nil {
		if t.Live() {
			s.setView(AuthView{Error: err.Error()})
		}
		return err
	}

	row := entity.User{Username: f.Username, Email: f.Email, Image: avatar.DefaultImage}
	if sess != nil {
		row.Email = sess.Email()
	}
	if err := s.d.Accounts.MirrorAuthUser(ctx, row); err != nil {
		s.d.logger().Warnw("mirror user after signup failed", "email", row.Email, "err", err)
		s.d.alert("Error", err.Error())
	}
	if !t.Live() {
		return nil
	}
	s.setView(AuthView{})
	if sess == nil {
		s.d.alert("Check your email", "Please confirm your email address, then log in.")
		s.d.Nav.Replace(nav.Login, nil)
		return nil
	}
	s.d.goHome(sess)
	return nil
}

func (s *Signup) setView(v AuthView) {
	s.mu.Lock()
	s.view = v
	s.mu.Unlock()
}
