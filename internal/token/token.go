// Package token handles the platform's HS256 access tokens: issuing them for
// the in-process platform and resolving a bearer token to a user.
package token

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/thislinkplease/midterm-cross-platform/internal/backend"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// Claims is the payload of a platform access token.
type Claims struct {
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	Role         string         `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Verifier resolves a bearer token to the user it was issued for.
type Verifier interface {
	Verify(ctx context.Context, accessToken string) (*backend.User, error)
}

// JWTVerifier checks the signature locally with the project's JWT secret.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(_ context.Context, accessToken string) (*backend.User, error) {
	if accessToken == "" {
		return nil, ErrMissingToken
	}
	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(accessToken, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tkn.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &backend.User{ID: claims.Subject, Email: claims.Email, Metadata: claims.UserMetadata}, nil
}

// RemoteVerifier asks the auth service who owns the token.
type RemoteVerifier struct {
	auth backend.AdminAuth
}

func NewRemoteVerifier(auth backend.AdminAuth) *RemoteVerifier {
	return &RemoteVerifier{auth: auth}
}

func (v *RemoteVerifier) Verify(ctx context.Context, accessToken string) (*backend.User, error) {
	if accessToken == "" {
		return nil, ErrMissingToken
	}
	u, err := v.auth.GetUser(ctx, accessToken)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	return u, nil
}

// Issue signs an access token for u valid for ttl.
func Issue(secret []byte, u backend.User, ttl time.Duration, now time.Time) (string, time.Time, error) {
	exp := now.Add(ttl)
	claims := &Claims{
		Email:        u.Email,
		UserMetadata: u.Metadata,
		Role:         "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// ExpiresAt reads the exp claim without verifying the signature. It returns
// the zero time when the token carries no readable expiry.
func ExpiresAt(accessToken string) time.Time {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// FromHeader extracts the token from an "Authorization: Bearer ..." value.
func FromHeader(h string) string {
	const prefix = "bearer "
	if len(h) < len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}
