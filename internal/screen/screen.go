// Package screen holds the controllers behind each screen of the app. They
// keep view state, validate input and call the account service; rendering
// is left to whatever drives them.
package screen

import (
	"context"

	"go.uber.org/zap"

	"github.com/thislinkplease/midterm-cross-platform/internal/account"
	"github.com/thislinkplease/midterm-cross-platform/internal/avatar"
	"github.com/thislinkplease/midterm-cross-platform/internal/backend"
	"github.com/thislinkplease/midterm-cross-platform/internal/nav"
	"github.com/thislinkplease/midterm-cross-platform/internal/role"
	"github.com/thislinkplease/midterm-cross-platform/internal/session"
)

// Alerter shows a blocking message.
type Alerter interface {
	Alert(title, message string)
}

// Confirmer asks the user to confirm a destructive action.
type Confirmer interface {
	Confirm(title, message, action string) bool
}

// Deps is what every screen needs from the application.
type Deps struct {
	Auth      backend.Auth
	Accounts  *account.Service
	Uploader  *avatar.Uploader
	Store     *session.Store
	Nav       nav.Navigator
	Roles     role.Classifier
	Alerter   Alerter
	Confirmer Confirmer
	Logger    *zap.SugaredLogger
}

func (d Deps) logger() *zap.SugaredLogger {
	if d.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return d.Logger
}

func (d Deps) alert(title, message string) {
	if d.Alerter != nil {
		d.Alerter.Alert(title, message)
	}
}

// goHome replaces the stack with the screen the guard picks for s.
func (d Deps) goHome(s *backend.Session) {
	if to, ok := nav.RootEntry("", session.State{Session: s}, d.Roles); ok {
		d.Nav.Replace(to, nil)
	}
}

// SignOut ends the session and returns to the login screen.
func (d Deps) SignOut(ctx context.Context) error {
	err := d.Auth.SignOut(ctx)
	if err != nil {
		d.logger().Warnw("sign out failed", "err", err)
	}
	d.Nav.Replace(nav.Login, nil)
	return err
}
