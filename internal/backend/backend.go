// Package backend declares the hosted platform the application runs on:
// authentication, the users table, blob storage and serverless functions.
// Screens and services depend only on these interfaces.
package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/thislinkplease/midterm-cross-platform/internal/user/entity"
)

// ErrNotAuthenticated is returned by operations that need a signed-in user.
var ErrNotAuthenticated = errors.New("not authenticated")

// User is the auth provider's view of an account.
type User struct {
	ID       string         `json:"id"`
	Email    string         `json:"email"`
	Metadata map[string]any `json:"user_metadata,omitempty"`
}

// MetadataString returns a string metadata value or "".
func (u User) MetadataString(key string) string {
	if v, ok := u.Metadata[key].(string); ok {
		return v
	}
	return ""
}

// Session is a read-only copy of the provider's session.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Email returns the session user's email; nil-safe.
func (s *Session) Email() string {
	if s == nil {
		return ""
	}
	return s.User.Email
}

// ExpiresWithin reports whether the access token expires before now+d.
// A zero ExpiresAt never expires.
func (s *Session) ExpiresWithin(now time.Time, d time.Duration) bool {
	if s == nil || s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(d).Before(s.ExpiresAt)
}

type EventKind string

const (
	EventSignedIn       EventKind = "SIGNED_IN"
	EventSignedOut      EventKind = "SIGNED_OUT"
	EventTokenRefreshed EventKind = "TOKEN_REFRESHED"
	EventUserUpdated    EventKind = "USER_UPDATED"
)

// AuthEvent is one entry of the auth-state-change stream. Session is nil on
// sign-out.
type AuthEvent struct {
	Kind    EventKind
	Session *Session
}

// UserAttributes is the patch accepted by Auth.UpdateUser. Empty fields are
// left unchanged.
type UserAttributes struct {
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
}

// AdminUserParams creates an auth account with the service role.
type AdminUserParams struct {
	Email        string         `json:"email"`
	Password     string         `json:"password"`
	EmailConfirm bool           `json:"email_confirm"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
}

// Auth is the authentication service as seen by the client.
type Auth interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	// SignUp returns a nil session when the project requires email
	// confirmation before the first sign-in.
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*Session, error)
	GetSession(ctx context.Context) (*Session, error)
	OnAuthStateChange(fn func(AuthEvent)) (unsubscribe func())
	SignOut(ctx context.Context) error
	UpdateUser(ctx context.Context, attrs UserAttributes) (*User, error)
}

// AdminAuth is the service-role part of the auth service, used server-side.
type AdminAuth interface {
	CreateUser(ctx context.Context, params AdminUserParams) (*User, error)
	GetUser(ctx context.Context, accessToken string) (*User, error)
}

// Table is the `users` table keyed by email.
type Table interface {
	// SearchByUsername returns rows whose username contains query,
	// case-insensitively, in store order.
	SearchByUsername(ctx context.Context, query string) ([]entity.User, error)
	// GetByEmail returns nil, nil when no row matches.
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	Update(ctx context.Context, email string, row entity.User) error
	Upsert(ctx context.Context, row entity.User) error
	Delete(ctx context.Context, email string) error
}

// Storage is the blob store.
type Storage interface {
	Upload(ctx context.Context, bucket, path string, data []byte, contentType string) error
	PublicURL(bucket, path string) string
}

// Functions invokes serverless functions with the caller's credentials.
type Functions interface {
	// Invoke posts body as JSON and decodes a 2xx response into out (when
	// out is non-nil).
	Invoke(ctx context.Context, name string, body, out any) error
}

// Platform bundles the client-side services.
type Platform struct {
	Auth      Auth
	Table     Table
	Storage   Storage
	Functions Functions
}

// APIError is an error reported by the platform. Message is the provider's
// text and is meant to be shown to the user as is.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// NormalizeEmail trims and lower-cases an address for comparisons.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
