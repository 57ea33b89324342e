// Package memory is an in-process implementation of the hosted platform. It
// keeps accounts, the users table, stored objects and functions in memory and
// issues real HS256 access tokens, so client code runs unchanged against it.
package memory

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/thislinkplease/midterm-cross-platform/internal/backend"
	"github.com/thislinkplease/midterm-cross-platform/internal/token"
	"github.com/thislinkplease/midterm-cross-platform/internal/user/entity"
	"github.com/thislinkplease/midterm-cross-platform/pkg/utilities"
)

const minPasswordLen = 6

type account struct {
	id           string
	email        string
	passwordHash []byte
	metadata     map[string]any
	confirmed    bool
	pendingEmail string
}

func (a *account) user() backend.User {
	md := make(map[string]any, len(a.metadata))
	for k, v := range a.metadata {
		md[k] = v
	}
	return backend.User{ID: a.id, Email: a.email, Metadata: md}
}

type tableRow struct {
	entity.User
	passwordHash string
}

type object struct {
	data        []byte
	contentType string
}

// Project is one in-memory platform project shared by any number of clients.
type Project struct {
	secret         []byte
	ttl            time.Duration
	now            func() time.Time
	baseURL        string
	requireConfirm bool
	bcryptCost     int
	logger         *zap.SugaredLogger

	mu        sync.Mutex
	accounts  []*account
	refresh   map[string]string // refresh token -> account id
	rows      []tableRow
	objects   map[string]object
	functions map[string]http.Handler
	clients   []*Auth
}

type Option func(*Project)

func WithClock(now func() time.Time) Option {
	return func(p *Project) { p.now = now }
}

// WithTokenTTL sets the lifetime of issued access tokens (default one hour).
func WithTokenTTL(d time.Duration) Option {
	return func(p *Project) { p.ttl = d }
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(p *Project) { p.logger = l }
}

// WithBaseURL sets the host used for public object URLs.
func WithBaseURL(u string) Option {
	return func(p *Project) { p.baseURL = u }
}

// RequireEmailConfirmation makes signups wait for ConfirmSignup before the
// first sign-in, like a project with confirmations enabled.
func RequireEmailConfirmation() Option {
	return func(p *Project) { p.requireConfirm = true }
}

// NewProject creates an empty project whose tokens are signed with secret.
func NewProject(secret string, opts ...Option) *Project {
	p := &Project{
		secret:     []byte(secret),
		ttl:        time.Hour,
		now:        time.Now,
		baseURL:    "http://localhost:54321",
		bcryptCost: bcrypt.MinCost,
		logger:     zap.NewNop().Sugar(),
		refresh:    map[string]string{},
		objects:    map[string]object{},
		functions:  map[string]http.Handler{},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Secret is the JWT secret, for verifiers that check tokens locally.
func (p *Project) Secret() string { return string(p.secret) }

// NewClient returns the client-side services bound to a fresh session, the
// way an app instance holds one client.
func (p *Project) NewClient() (backend.Platform, *Auth) {
	a := &Auth{p: p, listeners: map[int]func(backend.AuthEvent){}}
	p.mu.Lock()
	p.clients = append(p.clients, a)
	p.mu.Unlock()
	return backend.Platform{
		Auth:      a,
		Table:     &Table{p: p},
		Storage:   &Storage{p: p, auth: a},
		Functions: &Functions{p: p, auth: a},
	}, a
}

// Handle registers a function reachable through Functions.Invoke.
func (p *Project) Handle(name string, h http.Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.functions[name] = h
}

// Admin returns the service-role auth API.
func (p *Project) Admin() *Admin { return &Admin{p: p} }

// Rows returns the server-side writer of the users table.
func (p *Project) Rows() *Rows { return &Rows{p: p} }

// ConfirmSignup marks a pending signup as confirmed.
func (p *Project) ConfirmSignup(email string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	a := p.findLocked(email)
	if a == nil {
		return notFound("User not found")
	}
	a.confirmed = true
	return nil
}

// ConfirmEmailChange applies the pending email change of the account that
// currently owns email, as if the user clicked the confirmation link. Signed-in
// clients of that account receive USER_UPDATED with the new address.
func (p *Project) ConfirmEmailChange(email string) error {
	p.mu.Lock()
	a := p.findLocked(email)
	if a == nil || a.pendingEmail == "" {
		p.mu.Unlock()
		return notFound("No pending email change")
	}
	a.email = a.pendingEmail
	a.pendingEmail = ""
	u := a.user()
	clients := append([]*Auth(nil), p.clients...)
	p.mu.Unlock()

	p.logger.Debugw("email change confirmed", "uid", u.ID)
	for _, c := range clients {
		c.accountChanged(u)
	}
	return nil
}

// Object returns a stored object.
func (p *Project) Object(bucket, key string) (data []byte, contentType string, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.objects[bucket+"/"+key]
	return o.data, o.contentType, ok
}

// PasswordHash returns the server-only hash stored with a table row.
func (p *Project) PasswordHash(email string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i := p.rowIndexLocked(email); i >= 0 {
		return p.rows[i].passwordHash
	}
	return ""
}

func (p *Project) findLocked(email string) *account {
	email = backend.NormalizeEmail(email)
	for _, a := range p.accounts {
		if backend.NormalizeEmail(a.email) == email {
			return a
		}
	}
	return nil
}

func (p *Project) byIDLocked(id string) *account {
	for _, a := range p.accounts {
		if a.id == id {
			return a
		}
	}
	return nil
}

func (p *Project) emailTakenLocked(email, exceptID string) bool {
	email = backend.NormalizeEmail(email)
	for _, a := range p.accounts {
		if a.id == exceptID {
			continue
		}
		if backend.NormalizeEmail(a.email) == email || backend.NormalizeEmail(a.pendingEmail) == email {
			return true
		}
	}
	return false
}

func (p *Project) createLocked(email, password string, metadata map[string]any, confirmed bool) (*account, error) {
	email = backend.NormalizeEmail(email)
	if email == "" {
		return nil, validationFailed("Email is required")
	}
	if len(password) < minPasswordLen {
		return nil, &backend.APIError{Status: http.StatusUnprocessableEntity, Code: "weak_password", Message: "Password should be at least 6 characters."}
	}
	if p.emailTakenLocked(email, "") {
		return nil, &backend.APIError{Status: http.StatusUnprocessableEntity, Code: "email_exists", Message: "A user with this email address has already been registered"}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.bcryptCost)
	if err != nil {
		return nil, err
	}
	md := map[string]any{}
	for k, v := range metadata {
		md[k] = v
	}
	a := &account{
		id:           utilities.NewUserID(),
		email:        email,
		passwordHash: hash,
		metadata:     md,
		confirmed:    confirmed,
	}
	p.accounts = append(p.accounts, a)
	return a, nil
}

// issueLocked starts a new session for a.
func (p *Project) issueLocked(a *account) (*backend.Session, error) {
	u := a.user()
	access, exp, err := token.Issue(p.secret, u, p.ttl, p.now())
	if err != nil {
		return nil, err
	}
	rt := utilities.NewRequestID()
	p.refresh[rt] = a.id
	return &backend.Session{AccessToken: access, RefreshToken: rt, ExpiresAt: exp, User: u}, nil
}

// Admin implements backend.AdminAuth for the project.
type Admin struct {
	p *Project
}

func (ad *Admin) CreateUser(_ context.Context, params backend.AdminUserParams) (*backend.User, error) {
	ad.p.mu.Lock()
	defer ad.p.mu.Unlock()
	a, err := ad.p.createLocked(params.Email, params.Password, params.UserMetadata, params.EmailConfirm || !ad.p.requireConfirm)
	if err != nil {
		return nil, err
	}
	u := a.user()
	return &u, nil
}

func (ad *Admin) GetUser(ctx context.Context, accessToken string) (*backend.User, error) {
	claimed, err := token.NewJWTVerifier(string(ad.p.secret)).Verify(ctx, accessToken)
	if err != nil {
		return nil, &backend.APIError{Status: http.StatusUnauthorized, Code: "bad_jwt", Message: "invalid JWT"}
	}
	ad.p.mu.Lock()
	defer ad.p.mu.Unlock()
	a := ad.p.byIDLocked(claimed.ID)
	if a == nil {
		return nil, &backend.APIError{Status: http.StatusUnauthorized, Code: "user_not_found", Message: "User from sub claim in JWT does not exist"}
	}
	u := a.user()
	return &u, nil
}

// Rows writes table rows together with their server-only password hash.
type Rows struct {
	p *Project
}

func (r *Rows) UpsertAccount(_ context.Context, u entity.User, passwordHash string) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()
	r.p.upsertLocked(u, passwordHash, true)
	return nil
}

func notFound(msg string) error {
	return &backend.APIError{Status: http.StatusNotFound, Code: "not_found", Message: msg}
}

func validationFailed(msg string) error {
	return &backend.APIError{Status: http.StatusBadRequest, Code: "validation_failed", Message: msg}
}
