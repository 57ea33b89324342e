package screen

import (
	"context"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/thislinkplease/midterm-cross-platform/internal/avatar"
	"github.com/thislinkplease/midterm-cross-platform/internal/user/entity"
)

// ProfileView is the state of the self-profile screen.
type ProfileView struct {
	Row              entity.User
	Loading          bool
	Saving           bool
	ChangingPassword bool
	// Stored is false when Row was made up from the session because the
	// table has no row for the user yet.
	Stored bool
}

// Profile lets a signed-in user edit their own row and password.
type Profile struct {
	d  Deps
	lc Lifecycle

	mu      sync.Mutex
	row     entity.User
	loading bool
	stored  bool
}

func NewProfile(d Deps) *Profile { return &Profile{d: d} }

// Mount loads the row of the signed-in user. Without a row the form is filled
// from the session, nothing is written.
func (p *Profile) Mount(ctx context.Context) error {
	p.lc.Mount()
	t := p.lc.Ticket()
	p.mu.Lock()
	p.row = entity.User{}
	p.loading = true
	p.stored = false
	p.mu.Unlock()

	row, stored, err := p.load(ctx)
	if !t.Live() {
		return err
	}
	p.mu.Lock()
	p.loading = false
	if err == nil {
		p.row = row
		p.stored = stored
	}
	p.mu.Unlock()
	if err != nil {
		p.d.alert("Error", err.Error())
	}
	return err
}

func (p *Profile) load(ctx context.Context) (entity.User, bool, error) {
	sess, err := p.d.Auth.GetSession(ctx)
	if err != nil {
		return entity.User{}, false, err
	}
	email := sess.Email()
	if email == "" {
		return entity.User{}, false, nil
	}
	u, err := p.d.Accounts.Get(ctx, email)
	if err != nil {
		return entity.User{}, false, err
	}
	if u == nil {
		return entity.User{Username: sess.User.MetadataString("username"), Email: email}, false, nil
	}
	row := *u
	if row.Email == "" {
		row.Email = email
	}
	return row, true, nil
}

func (p *Profile) Unmount() { p.lc.Unmount() }

// SetRow replaces the form values. Image may be a local file to upload.
func (p *Profile) SetRow(u entity.User) {
	p.mu.Lock()
	p.row = u
	p.mu.Unlock()
}

func (p *Profile) View() ProfileView {
	p.mu.Lock()
	defer p.mu.Unlock()
	return ProfileView{
		Row:              p.row,
		Loading:          p.loading,
		Saving:           p.lc.Running("save"),
		ChangingPassword: p.lc.Running("password"),
		Stored:           p.stored,
	}
}

// Initials is the avatar placeholder: the first letter of the username, else
// of the email, else "U".
func (p *Profile) Initials() string {
	p.mu.Lock()
	row := p.row
	p.mu.Unlock()
	return Initials(row)
}

func Initials(u entity.User) string {
	base := strings.TrimSpace(u.Username)
	if base == "" {
		base = strings.TrimSpace(u.Email)
	}
	if base == "" {
		return "U"
	}
	r, _ := utf8.DecodeRuneInString(base)
	return string(unicode.ToUpper(r))
}

// Save uploads a newly picked image, writes the row and, when the email
// changed, asks the provider to confirm the new address.
func (p *Profile) Save(ctx context.Context) error {
	p.mu.Lock()
	row := p.row
	p.mu.Unlock()
	row.Username = strings.TrimSpace(row.Username)
	row.Email = strings.TrimSpace(row.Email)
	if err := ValidateProfile(row.Username, row.Email); err != nil {
		p.d.alert("Attention", err.Error())
		return err
	}
	done, err := p.lc.Begin("save")
	if err != nil {
		return err
	}
	defer done()
	t := p.lc.Ticket()

	image, upErr := p.d.Uploader.Resolve(ctx, row.Image, avatar.SelfPolicy)
	if upErr != nil {
		p.d.alert("Upload Error", upErr.Error())
	}
	row.Image = image

	res, err := p.d.Accounts.SaveSelf(ctx, row)
	if err != nil {
		p.d.alert("Error", err.Error())
		return err
	}
	if res.EmailChangeRequested {
		p.d.alert("Confirmation Sent", "Please check your new email to confirm the change.")
	}
	if t.Live() {
		p.mu.Lock()
		p.row = row
		p.stored = true
		p.mu.Unlock()
	}
	p.d.alert("Success", "Profile has been saved.")
	return nil
}

// ChangePassword updates the account password; the table row is untouched.
func (p *Profile) ChangePassword(ctx context.Context, password, confirm string) error {
	if err := ValidatePasswordChange(password, confirm); err != nil {
		p.d.alert("Attention", err.Error())
		return err
	}
	done, err := p.lc.Begin("password")
	if err != nil {
		return err
	}
	defer done()

	if err := p.d.Accounts.ChangePassword(ctx, password); err != nil {
		p.d.alert("Change Password Error", err.Error())
		return err
	}
	p.d.alert("Success", "Password has been updated.")
	return nil
}

func (p *Profile) SignOut(ctx context.Context) error { return p.d.SignOut(ctx) }
