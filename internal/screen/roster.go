package screen

import (
	"context"
	"fmt"
	"sync"

	"github.com/thislinkplease/midterm-cross-platform/internal/nav"
	"github.com/thislinkplease/midterm-cross-platform/internal/user/entity"
)

// RosterView is the state of the admin user list.
type RosterView struct {
	Query   string
	Rows    []entity.User
	Loading bool
	// Empty is set when nothing matched and no fetch is in flight.
	Empty bool
}

// Roster is the administrator's searchable user list.
type Roster struct {
	d  Deps
	lc Lifecycle

	mu      sync.Mutex
	query   string
	rows    []entity.User
	seq     uint64
	pending int
}

func NewRoster(d Deps) *Roster { return &Roster{d: d} }

// Mount loads the rows matching the current query.
func (r *Roster) Mount(ctx context.Context) error {
	r.lc.Mount()
	r.mu.Lock()
	r.pending = 0
	r.mu.Unlock()
	return r.Refresh(ctx)
}

func (r *Roster) Unmount() {
	r.lc.Unmount()
	r.mu.Lock()
	r.pending = 0
	r.mu.Unlock()
}

// SetQuery changes the search text and fetches again.
func (r *Roster) SetQuery(ctx context.Context, q string) error {
	r.mu.Lock()
	r.query = q
	r.mu.Unlock()
	return r.Refresh(ctx)
}

// Refresh fetches rows for the current query. Only the newest fetch of the
// current mount updates the list.
func (r *Roster) Refresh(ctx context.Context) error {
	t := r.lc.Ticket()
	if !t.Live() {
		return nil
	}
	r.mu.Lock()
	r.seq++
	seq := r.seq
	q := r.query
	r.pending++
	r.mu.Unlock()

	rows, err := r.d.Accounts.Search(ctx, q)

	r.mu.Lock()
	if !t.Live() {
		r.mu.Unlock()
		return err
	}
	r.pending--
	latest := seq == r.seq
	if latest && err == nil {
		r.rows = rows
	}
	r.mu.Unlock()

	if err != nil && latest {
		r.d.alert("Error", err.Error())
	}
	return err
}

func (r *Roster) View() RosterView {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows := append([]entity.User(nil), r.rows...)
	loading := r.pending > 0
	return RosterView{
		Query:   r.query,
		Rows:    rows,
		Loading: loading,
		Empty:   !loading && len(rows) == 0,
	}
}

// Delete asks for confirmation, removes the row and refreshes the list. It
// reports whether the row was deleted.
func (r *Roster) Delete(ctx context.Context, row entity.User) (bool, error) {
	msg := fmt.Sprintf(`Are you sure you want to delete "%s"?`, row.Username)
	if r.d.Confirmer == nil || !r.d.Confirmer.Confirm("Delete user", msg, "Delete") {
		return false, nil
	}
	done, err := r.lc.Begin("delete:" + row.Email)
	if err != nil {
		return false, err
	}
	defer done()

	if err := r.d.Accounts.Delete(ctx, row.Email); err != nil {
		r.d.alert("Error", err.Error())
		return false, err
	}
	return true, r.Refresh(ctx)
}

// Edit opens the edit form for row.
func (r *Roster) Edit(row entity.User) {
	r.d.Nav.Push(nav.AdminEditUser, map[string]string{"email": row.Email})
}

// Create opens an empty edit form.
func (r *Roster) Create() {
	r.d.Nav.Push(nav.AdminEditUser, nil)
}

func (r *Roster) SignOut(ctx context.Context) error { return r.d.SignOut(ctx) }
