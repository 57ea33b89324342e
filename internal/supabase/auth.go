package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/thislinkplease/midterm-cross-platform/internal/backend"
	"github.com/thislinkplease/midterm-cross-platform/internal/token"
)

// refreshMargin is how close to expiry a session is refreshed on read.
const refreshMargin = 60 * time.Second

// SessionStore persists the current session between process runs.
type SessionStore interface {
	Load() (*backend.Session, error)
	Save(s *backend.Session) error
}

// FileSessionStore keeps the session as JSON in a single file. A nil session
// removes the file.
type FileSessionStore struct {
	Path string
}

func (f FileSessionStore) Load() (*backend.Session, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s backend.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session file: %w", err)
	}
	return &s, nil
}

func (f FileSessionStore) Save(s *backend.Session) error {
	if s == nil {
		if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(f.Path, data, 0o600)
}

// Auth is the end-user auth client. It owns the current session and fans
// auth-state changes out to subscribers.
type Auth struct {
	c     *Client
	store SessionStore
	now   func() time.Time

	mu        sync.Mutex
	session   *backend.Session
	loaded    bool
	listeners map[int]func(backend.AuthEvent)
	nextID    int
}

type AuthOption func(*Auth)

// WithSessionStore persists sessions across runs.
func WithSessionStore(s SessionStore) AuthOption {
	return func(a *Auth) { a.store = s }
}

func WithClock(now func() time.Time) AuthOption {
	return func(a *Auth) { a.now = now }
}

func NewAuth(c *Client, opts ...AuthOption) *Auth {
	a := &Auth{c: c, now: time.Now, listeners: map[int]func(backend.AuthEvent){}}
	for _, o := range opts {
		o(a)
	}
	return a
}

// sessionResponse covers both a full session and the bare user object the
// signup endpoint returns while email confirmation is pending.
type sessionResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	User         backend.User `json:"user"`
}

func (r sessionResponse) session(now time.Time) *backend.Session {
	if r.AccessToken == "" {
		return nil
	}
	s := &backend.Session{AccessToken: r.AccessToken, RefreshToken: r.RefreshToken, User: r.User}
	switch {
	case r.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(r.ExpiresAt, 0)
	case r.ExpiresIn > 0:
		s.ExpiresAt = now.Add(time.Duration(r.ExpiresIn) * time.Second)
	default:
		s.ExpiresAt = token.ExpiresAt(r.AccessToken)
	}
	return s
}

func (a *Auth) SignInWithPassword(ctx context.Context, email, password string) (*backend.Session, error) {
	var resp sessionResponse
	err := a.c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token?grant_type=password",
		json:   map[string]string{"email": email, "password": password},
	}, &resp)
	if err != nil {
		return nil, err
	}
	s := resp.session(a.now())
	if s == nil {
		return nil, errors.New("sign in returned no session")
	}
	a.setSession(s, backend.EventSignedIn)
	return s, nil
}

func (a *Auth) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*backend.Session, error) {
	body := map[string]any{"email": email, "password": password}
	if len(metadata) > 0 {
		body["data"] = metadata
	}
	var resp sessionResponse
	if err := a.c.do(ctx, request{method: http.MethodPost, path: "/auth/v1/signup", json: body}, &resp); err != nil {
		return nil, err
	}
	s := resp.session(a.now())
	if s != nil {
		a.setSession(s, backend.EventSignedIn)
	}
	return s, nil
}

// GetSession returns the cached session, loading it from the store on first
// use and refreshing it when it is about to expire.
func (a *Auth) GetSession(ctx context.Context) (*backend.Session, error) {
	s := a.current()
	if s == nil || !s.ExpiresWithin(a.now(), refreshMargin) {
		return s, nil
	}
	if s.RefreshToken == "" {
		a.setSession(nil, backend.EventSignedOut)
		return nil, nil
	}
	refreshed, err := a.refresh(ctx, s.RefreshToken)
	if err != nil {
		if backend.IsStatus(err, http.StatusBadRequest) || backend.IsStatus(err, http.StatusUnauthorized) {
			a.setSession(nil, backend.EventSignedOut)
		}
		return nil, err
	}
	return refreshed, nil
}

// current returns the cached session without refreshing it.
func (a *Auth) current() *backend.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.loaded {
		a.loaded = true
		if a.store != nil {
			s, err := a.store.Load()
			if err != nil {
				a.c.logger.Warnw("load persisted session failed", "err", err)
			}
			a.session = s
		}
	}
	return a.session
}

func (a *Auth) refresh(ctx context.Context, refreshToken string) (*backend.Session, error) {
	var resp sessionResponse
	err := a.c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token?grant_type=refresh_token",
		json:   map[string]string{"refresh_token": refreshToken},
	}, &resp)
	if err != nil {
		return nil, err
	}
	s := resp.session(a.now())
	if s == nil {
		return nil, errors.New("refresh returned no session")
	}
	a.setSession(s, backend.EventTokenRefreshed)
	return s, nil
}

// AccessToken returns the current access token or "" when signed out, in
// which case callers fall back to the anon key.
func (a *Auth) AccessToken(ctx context.Context) string {
	s, err := a.GetSession(ctx)
	if err != nil || s == nil {
		return ""
	}
	return s.AccessToken
}

func (a *Auth) OnAuthStateChange(fn func(backend.AuthEvent)) func() {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	a.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			delete(a.listeners, id)
			a.mu.Unlock()
		})
	}
}

// SignOut revokes the session server-side and always clears it locally.
func (a *Auth) SignOut(ctx context.Context) error {
	s := a.current()
	var err error
	if s != nil {
		err = a.c.do(ctx, request{method: http.MethodPost, path: "/auth/v1/logout", bearer: s.AccessToken}, nil)
		// an already revoked or expired token is as good as signed out
		if backend.IsStatus(err, http.StatusUnauthorized) || backend.IsStatus(err, http.StatusNotFound) || backend.IsStatus(err, http.StatusForbidden) {
			err = nil
		}
	}
	a.setSession(nil, backend.EventSignedOut)
	return err
}

// UpdateUser changes the signed-in user's email or password. An email change
// only takes effect once the user confirms it; until then the returned user
// keeps the old address.
func (a *Auth) UpdateUser(ctx context.Context, attrs backend.UserAttributes) (*backend.User, error) {
	s, err := a.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, backend.ErrNotAuthenticated
	}
	var u backend.User
	if err := a.c.do(ctx, request{method: http.MethodPut, path: "/auth/v1/user", bearer: s.AccessToken, json: attrs}, &u); err != nil {
		return nil, err
	}
	updated := *s
	updated.User = u
	a.setSession(&updated, backend.EventUserUpdated)
	return &u, nil
}

func (a *Auth) setSession(s *backend.Session, kind backend.EventKind) {
	a.mu.Lock()
	a.session = s
	a.loaded = true
	fns := make([]func(backend.AuthEvent), 0, len(a.listeners))
	for _, fn := range a.listeners {
		fns = append(fns, fn)
	}
	a.mu.Unlock()

	if a.store != nil {
		if err := a.store.Save(s); err != nil {
			a.c.logger.Warnw("persist session failed", "err", err)
		}
	}
	ev := backend.AuthEvent{Kind: kind, Session: s}
	for _, fn := range fns {
		fn(ev)
	}
}

// Admin is the service-role auth client used by server code.
type Admin struct {
	c *Client
}

// NewAdmin expects a client built with the service-role key.
func NewAdmin(c *Client) *Admin {
	return &Admin{c: c}
}

func (a *Admin) CreateUser(ctx context.Context, params backend.AdminUserParams) (*backend.User, error) {
	var u backend.User
	if err := a.c.do(ctx, request{method: http.MethodPost, path: "/auth/v1/admin/users", json: params}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUser resolves an end-user access token to its account.
func (a *Admin) GetUser(ctx context.Context, accessToken string) (*backend.User, error) {
	var u backend.User
	if err := a.c.do(ctx, request{method: http.MethodGet, path: "/auth/v1/user", bearer: accessToken}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
