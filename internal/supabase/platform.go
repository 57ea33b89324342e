package supabase

import (
	"github.com/thislinkplease/midterm-cross-platform/internal/backend"
)

// NewPlatform wires the four service clients around one auth session.
func NewPlatform(c *Client, authOpts ...AuthOption) (backend.Platform, *Auth) {
	auth := NewAuth(c, authOpts...)
	return backend.Platform{
		Auth:      auth,
		Table:     NewTable(c, auth),
		Storage:   NewStorage(c, auth),
		Functions: NewFunctions(c, auth),
	}, auth
}
