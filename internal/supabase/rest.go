package supabase

import (
	"context"
	"net/http"
	"net/url"

	"github.com/thislinkplease/midterm-cross-platform/internal/user/entity"
)

// userColumns never includes the server-only password hash.
const userColumns = "username,email,image"

// TokenSource yields the bearer used for row-level security; "" means anon.
type TokenSource interface {
	AccessToken(ctx context.Context) string
}

// Table talks to the `users` table through PostgREST.
type Table struct {
	c      *Client
	tokens TokenSource
	name   string
}

func NewTable(c *Client, tokens TokenSource) *Table {
	return &Table{c: c, tokens: tokens, name: "users"}
}

func (t *Table) bearer(ctx context.Context) string {
	if t.tokens == nil {
		return ""
	}
	return t.tokens.AccessToken(ctx)
}

func (t *Table) path(q url.Values) string {
	return "/rest/v1/" + t.name + "?" + q.Encode()
}

// row decodes nullable columns as empty strings.
type row struct {
	Username *string `json:"username"`
	Email    string  `json:"email"`
	Image    *string `json:"image"`
}

func (r row) entity() entity.User {
	u := entity.User{Email: r.Email}
	if r.Username != nil {
		u.Username = *r.Username
	}
	if r.Image != nil {
		u.Image = *r.Image
	}
	return u
}

func (t *Table) SearchByUsername(ctx context.Context, query string) ([]entity.User, error) {
	q := url.Values{}
	q.Set("select", userColumns)
	q.Set("username", "ilike.*"+query+"*")
	var rows []row
	if err := t.c.do(ctx, request{method: http.MethodGet, path: t.path(q), bearer: t.bearer(ctx)}, &rows); err != nil {
		return nil, err
	}
	out := make([]entity.User, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.entity())
	}
	return out, nil
}

func (t *Table) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	q := url.Values{}
	q.Set("select", userColumns)
	q.Set("email", "eq."+email)
	q.Set("limit", "1")
	var rows []row
	if err := t.c.do(ctx, request{method: http.MethodGet, path: t.path(q), bearer: t.bearer(ctx)}, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	u := rows[0].entity()
	return &u, nil
}

func (t *Table) Update(ctx context.Context, email string, u entity.User) error {
	q := url.Values{}
	q.Set("email", "eq."+email)
	return t.c.do(ctx, request{
		method: http.MethodPatch,
		path:   t.path(q),
		bearer: t.bearer(ctx),
		header: http.Header{"Prefer": {"return=minimal"}},
		json:   u,
	}, nil)
}

func (t *Table) Upsert(ctx context.Context, u entity.User) error {
	q := url.Values{}
	q.Set("on_conflict", "email")
	return t.c.do(ctx, request{
		method: http.MethodPost,
		path:   t.path(q),
		bearer: t.bearer(ctx),
		header: http.Header{"Prefer": {"resolution=merge-duplicates,return=minimal"}},
		json:   u,
	}, nil)
}

func (t *Table) Delete(ctx context.Context, email string) error {
	q := url.Values{}
	q.Set("email", "eq."+email)
	return t.c.do(ctx, request{method: http.MethodDelete, path: t.path(q), bearer: t.bearer(ctx)}, nil)
}
