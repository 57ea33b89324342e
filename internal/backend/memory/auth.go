package memory

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/thislinkplease/midterm-cross-platform/internal/backend"
)

const refreshMargin = 60 * time.Second

var errInvalidCredentials = &backend.APIError{Status: http.StatusBadRequest, Code: "invalid_credentials", Message: "Invalid login credentials"}

// Auth is one client's view of the project's auth service. It holds that
// client's session and notifies its subscribers.
type Auth struct {
	p *Project

	mu        sync.Mutex
	session   *backend.Session
	listeners map[int]func(backend.AuthEvent)
	nextID    int
}

func (au *Auth) SignInWithPassword(_ context.Context, email, password string) (*backend.Session, error) {
	p := au.p
	p.mu.Lock()
	a := p.findLocked(email)
	if a == nil || bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)) != nil {
		p.mu.Unlock()
		return nil, errInvalidCredentials
	}
	if !a.confirmed {
		p.mu.Unlock()
		return nil, &backend.APIError{Status: http.StatusBadRequest, Code: "email_not_confirmed", Message: "Email not confirmed"}
	}
	s, err := p.issueLocked(a)
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}
	au.set(s, backend.EventSignedIn)
	return s, nil
}

func (au *Auth) SignUp(_ context.Context, email, password string, metadata map[string]any) (*backend.Session, error) {
	p := au.p
	p.mu.Lock()
	if p.findLocked(email) != nil {
		p.mu.Unlock()
		return nil, &backend.APIError{Status: http.StatusUnprocessableEntity, Code: "user_already_exists", Message: "User already registered"}
	}
	a, err := p.createLocked(email, password, metadata, !p.requireConfirm)
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}
	if !a.confirmed {
		p.mu.Unlock()
		p.logger.Debugw("signup awaiting confirmation", "uid", a.id)
		return nil, nil
	}
	s, err := p.issueLocked(a)
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}
	au.set(s, backend.EventSignedIn)
	return s, nil
}

// GetSession returns the current session, refreshing it when it is about to
// expire.
func (au *Auth) GetSession(_ context.Context) (*backend.Session, error) {
	au.mu.Lock()
	s := au.session
	au.mu.Unlock()
	if s == nil || !s.ExpiresWithin(au.p.now(), refreshMargin) {
		return s, nil
	}

	p := au.p
	p.mu.Lock()
	id, ok := p.refresh[s.RefreshToken]
	delete(p.refresh, s.RefreshToken)
	var a *account
	if ok {
		a = p.byIDLocked(id)
	}
	if a == nil {
		p.mu.Unlock()
		au.set(nil, backend.EventSignedOut)
		return nil, &backend.APIError{Status: http.StatusBadRequest, Code: "refresh_token_not_found", Message: "Invalid Refresh Token: Refresh Token Not Found"}
	}
	refreshed, err := p.issueLocked(a)
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}
	au.set(refreshed, backend.EventTokenRefreshed)
	return refreshed, nil
}

func (au *Auth) OnAuthStateChange(fn func(backend.AuthEvent)) func() {
	au.mu.Lock()
	id := au.nextID
	au.nextID++
	au.listeners[id] = fn
	au.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			au.mu.Lock()
			delete(au.listeners, id)
			au.mu.Unlock()
		})
	}
}

func (au *Auth) SignOut(_ context.Context) error {
	au.mu.Lock()
	s := au.session
	au.mu.Unlock()
	if s != nil {
		au.p.mu.Lock()
		delete(au.p.refresh, s.RefreshToken)
		au.p.mu.Unlock()
	}
	au.set(nil, backend.EventSignedOut)
	return nil
}

// UpdateUser changes the password immediately. A new email is held as
// pending until Project.ConfirmEmailChange; the returned user keeps the old
// address until then.
func (au *Auth) UpdateUser(ctx context.Context, attrs backend.UserAttributes) (*backend.User, error) {
	s, err := au.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, backend.ErrNotAuthenticated
	}

	p := au.p
	p.mu.Lock()
	a := p.byIDLocked(s.User.ID)
	if a == nil {
		p.mu.Unlock()
		return nil, &backend.APIError{Status: http.StatusUnauthorized, Code: "user_not_found", Message: "User not found"}
	}
	if attrs.Password != "" {
		if len(attrs.Password) < minPasswordLen {
			p.mu.Unlock()
			return nil, &backend.APIError{Status: http.StatusUnprocessableEntity, Code: "weak_password", Message: "Password should be at least 6 characters."}
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(attrs.Password), p.bcryptCost)
		if err != nil {
			p.mu.Unlock()
			return nil, err
		}
		a.passwordHash = hash
	}
	if email := backend.NormalizeEmail(attrs.Email); email != "" && email != a.email {
		if p.emailTakenLocked(email, a.id) {
			p.mu.Unlock()
			return nil, &backend.APIError{Status: http.StatusUnprocessableEntity, Code: "email_exists", Message: "A user with this email address has already been registered"}
		}
		a.pendingEmail = email
	}
	u := a.user()
	p.mu.Unlock()

	updated := *s
	updated.User = u
	au.set(&updated, backend.EventUserUpdated)
	return &u, nil
}

// AccessToken returns the current access token or "".
func (au *Auth) AccessToken(ctx context.Context) string {
	s, err := au.GetSession(ctx)
	if err != nil || s == nil {
		return ""
	}
	return s.AccessToken
}

// accountChanged reissues the session of a signed-in client after its
// account changed server-side.
func (au *Auth) accountChanged(u backend.User) {
	au.mu.Lock()
	s := au.session
	au.mu.Unlock()
	if s == nil || s.User.ID != u.ID {
		return
	}
	p := au.p
	p.mu.Lock()
	a := p.byIDLocked(u.ID)
	if a == nil {
		p.mu.Unlock()
		return
	}
	delete(p.refresh, s.RefreshToken)
	next, err := p.issueLocked(a)
	p.mu.Unlock()
	if err != nil {
		p.logger.Warnw("reissue session failed", "uid", u.ID, "err", err)
		return
	}
	au.set(next, backend.EventUserUpdated)
}

func (au *Auth) set(s *backend.Session, kind backend.EventKind) {
	au.mu.Lock()
	au.session = s
	fns := make([]func(backend.AuthEvent), 0, len(au.listeners))
	for _, fn := range au.listeners {
		fns = append(fns, fn)
	}
	au.mu.Unlock()
	ev := backend.AuthEvent{Kind: kind, Session: s}
	for _, fn := range fns {
		fn(ev)
	}
}
