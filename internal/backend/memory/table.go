package memory

import (
	"context"
	"net/http"
	"strings"

	"github.com/thislinkplease/midterm-cross-platform/internal/backend"
	"github.com/thislinkplease/midterm-cross-platform/internal/user/entity"
)

var errDuplicateEmail = &backend.APIError{
	Status:  http.StatusConflict,
	Code:    "23505",
	Message: `duplicate key value violates unique constraint "users_email_key"`,
}

// Table is the users table in insertion order. Email comparisons are exact,
// as in the hosted table.
type Table struct {
	p *Project
}

func (t *Table) SearchByUsername(_ context.Context, query string) ([]entity.User, error) {
	q := strings.ToLower(query)
	t.p.mu.Lock()
	defer t.p.mu.Unlock()
	out := []entity.User{}
	for _, r := range t.p.rows {
		if strings.Contains(strings.ToLower(r.Username), q) {
			out = append(out, r.User)
		}
	}
	return out, nil
}

func (t *Table) GetByEmail(_ context.Context, email string) (*entity.User, error) {
	t.p.mu.Lock()
	defer t.p.mu.Unlock()
	i := t.p.rowIndexLocked(email)
	if i < 0 {
		return nil, nil
	}
	u := t.p.rows[i].User
	return &u, nil
}

// Update rewrites the row keyed by email. No matching row is not an error.
func (t *Table) Update(_ context.Context, email string, u entity.User) error {
	t.p.mu.Lock()
	defer t.p.mu.Unlock()
	i := t.p.rowIndexLocked(email)
	if i < 0 {
		return nil
	}
	if j := t.p.rowIndexLocked(u.Email); j >= 0 && j != i {
		return errDuplicateEmail
	}
	t.p.rows[i].User = u
	return nil
}

func (t *Table) Upsert(_ context.Context, u entity.User) error {
	t.p.mu.Lock()
	defer t.p.mu.Unlock()
	t.p.upsertLocked(u, "", false)
	return nil
}

func (t *Table) Delete(_ context.Context, email string) error {
	t.p.mu.Lock()
	defer t.p.mu.Unlock()
	if i := t.p.rowIndexLocked(email); i >= 0 {
		t.p.rows = append(t.p.rows[:i], t.p.rows[i+1:]...)
	}
	return nil
}

func (p *Project) rowIndexLocked(email string) int {
	for i, r := range p.rows {
		if r.Email == email {
			return i
		}
	}
	return -1
}

// upsertLocked replaces the visible columns of the row with the same email or
// appends a new row. The password hash is only replaced when setHash is true.
func (p *Project) upsertLocked(u entity.User, passwordHash string, setHash bool) {
	if i := p.rowIndexLocked(u.Email); i >= 0 {
		p.rows[i].User = u
		if setHash {
			p.rows[i].passwordHash = passwordHash
		}
		return
	}
	p.rows = append(p.rows, tableRow{User: u, passwordHash: passwordHash})
}
