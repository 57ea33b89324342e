package supabase

import (
	"context"
	"net/http"
	"net/url"
)

// Functions invokes edge functions with the signed-in user's token.
type Functions struct {
	c      *Client
	tokens TokenSource
}

func NewFunctions(c *Client, tokens TokenSource) *Functions {
	return &Functions{c: c, tokens: tokens}
}

func (f *Functions) Invoke(ctx context.Context, name string, body, out any) error {
	bearer := ""
	if f.tokens != nil {
		bearer = f.tokens.AccessToken(ctx)
	}
	return f.c.do(ctx, request{
		method: http.MethodPost,
		path:   "/functions/v1/" + url.PathEscape(name),
		bearer: bearer,
		json:   body,
	}, out)
}
