package supabase

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/thislinkplease/midterm-cross-platform/internal/backend"
)

// Storage uploads objects to storage buckets as the signed-in user.
type Storage struct {
	c      *Client
	tokens TokenSource
}

func NewStorage(c *Client, tokens TokenSource) *Storage {
	return &Storage{c: c, tokens: tokens}
}

// Upload overwrites an existing object with the same key.
func (s *Storage) Upload(ctx context.Context, bucket, path string, data []byte, contentType string) error {
	bearer := ""
	if s.tokens != nil {
		bearer = s.tokens.AccessToken(ctx)
	}
	if bearer == "" {
		return backend.ErrNotAuthenticated
	}
	return s.c.do(ctx, request{
		method: http.MethodPost,
		path:   "/storage/v1/object/" + url.PathEscape(bucket) + "/" + escapeKey(path),
		bearer: bearer,
		header: http.Header{"Content-Type": {contentType}, "X-Upsert": {"true"}},
		body:   bytes.NewReader(data),
	}, nil)
}

// PublicURL is the unauthenticated address of an object in a public bucket.
func (s *Storage) PublicURL(bucket, path string) string {
	return s.c.baseURL + "/storage/v1/object/public/" + url.PathEscape(bucket) + "/" + escapeKey(path)
}

// escapeKey escapes each segment but keeps the folder separators.
func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
