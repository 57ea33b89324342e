package screen

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/thislinkplease/midterm-cross-platform/internal/avatar"
	"github.com/thislinkplease/midterm-cross-platform/internal/user/entity"
)

var ErrUserNotFound = errors.New("user not found")

// UserForm is the admin edit form. Image is a URL or a local file picked
// for upload. Password is only used when creating.
type UserForm struct {
	Username string
	Email    string
	Password string
	Image    string
}

// EditUserView is the state of the edit form.
type EditUserView struct {
	Form     UserForm
	Creating bool
	Loading  bool
	Saving   bool
}

// EditUser creates a user or edits an existing row.
type EditUser struct {
	d  Deps
	lc Lifecycle

	mu       sync.Mutex
	original string
	form     UserForm
	loading  bool
}

func NewEditUser(d Deps) *EditUser { return &EditUser{d: d} }

// Mount opens the form. With an "email" param the row is loaded by a fresh
// fetch; without one the form starts empty for a new user.
func (e *EditUser) Mount(ctx context.Context, params map[string]string) error {
	e.lc.Mount()
	t := e.lc.Ticket()
	original := strings.TrimSpace(params["email"])
	e.mu.Lock()
	e.original = original
	e.form = UserForm{}
	e.loading = original != ""
	e.mu.Unlock()
	if original == "" {
		return nil
	}

	u, err := e.d.Accounts.Get(ctx, original)
	if err == nil && u == nil {
		err = ErrUserNotFound
	}
	if !t.Live() {
		return err
	}
	e.mu.Lock()
	e.loading = false
	if err == nil {
		e.form = UserForm{Username: u.Username, Email: u.Email, Image: u.Image}
	}
	e.mu.Unlock()
	if err != nil {
		e.d.alert("Error", err.Error())
	}
	return err
}

// Unmount clears the form.
func (e *EditUser) Unmount() {
	e.lc.Unmount()
	e.mu.Lock()
	e.form = UserForm{}
	e.loading = false
	e.mu.Unlock()
}

func (e *EditUser) SetForm(f UserForm) {
	e.mu.Lock()
	e.form = f
	e.mu.Unlock()
}

func (e *EditUser) View() EditUserView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return EditUserView{
		Form:     e.form,
		Creating: e.original == "",
		Loading:  e.loading,
		Saving:   e.lc.Running("save"),
	}
}

// Save validates the form, resolves the image and either creates the user
// through the function or updates the row keyed by its pre-edit email. On
// success it goes back to the list.
func (e *EditUser) Save(ctx context.Context) error {
	e.mu.Lock()
	f := e.form
	original := e.original
	e.mu.Unlock()
	creating := original == ""

	f.Username = strings.TrimSpace(f.Username)
	f.Email = strings.TrimSpace(f.Email)
	if err := ValidateUserForm(f, creating); err != nil {
		e.d.alert("Error", err.Error())
		return err
	}
	done, err := e.lc.Begin("save")
	if err != nil {
		return err
	}
	defer done()
	t := e.lc.Ticket()

	image, upErr := e.d.Uploader.Resolve(ctx, f.Image, avatar.AdminPolicy)
	if upErr != nil {
		e.d.alert("Upload Error", upErr.Error())
	}

	if creating {
		_, err = e.d.Accounts.AdminCreate(ctx, entity.CreateUserRequest{
			Email:    f.Email,
			Password: f.Password,
			Username: f.Username,
			Image:    image,
		})
	} else {
		err = e.d.Accounts.AdminUpdate(ctx, original, entity.User{Username: f.Username, Email: f.Email, Image: image})
	}
	if err != nil {
		e.d.alert("Error saving", err.Error())
		return err
	}

	e.d.alert("Success", "User saved successfully!")
	if t.Live() {
		e.d.Nav.Back()
	}
	return nil
}
