package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"maps"
	"strings"

	"github.com/thislinkplease/midterm-cross-platform/internal/app"
	"github.com/thislinkplease/midterm-cross-platform/internal/backend/memory"
	"github.com/thislinkplease/midterm-cross-platform/internal/nav"
	"github.com/thislinkplease/midterm-cross-platform/internal/screen"
	"github.com/thislinkplease/midterm-cross-platform/internal/user/entity"
)

// shell drives the screens from stdin. The active screen follows the
// navigation stack; it is remounted whenever the destination changes.
type shell struct {
	app     *app.App
	project *memory.Project // demo only
	in      *bufio.Scanner
	out     io.Writer

	login   *screen.Login
	signup  *screen.Signup
	roster  *screen.Roster
	edit    *screen.EditUser
	profile *screen.Profile

	mounted nav.Destination
	active  bool
}

func newShell(a *app.App, project *memory.Project, in *bufio.Scanner, out io.Writer) *shell {
	s := &shell{app: a, project: project, in: in, out: out}
	d := a.Deps(s, s)
	s.login = screen.NewLogin(d)
	s.signup = screen.NewSignup(d)
	s.roster = screen.NewRoster(d)
	s.edit = screen.NewEditUser(d)
	s.profile = screen.NewProfile(d)
	return s
}

func (s *shell) Alert(title, message string) {
	fmt.Fprintf(s.out, "[%s] %s\n", title, message)
}

func (s *shell) Confirm(title, message, action string) bool {
	fmt.Fprintf(s.out, "%s\n%s\nType %q to continue, anything else cancels: ", title, message, strings.ToLower(action))
	if !s.in.Scan() {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(s.in.Text()), action)
}

func (s *shell) Run(ctx context.Context) error {
	for {
		s.sync(ctx)
		fmt.Fprintf(s.out, "%s> ", s.prompt())
		if !s.in.Scan() {
			return s.in.Err()
		}
		line := strings.TrimSpace(s.in.Text())
		switch line {
		case "":
			continue
		case "quit", "exit":
			return nil
		}
		s.exec(ctx, line)
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func (s *shell) prompt() string {
	if r := s.app.Nav.Current().Route; r != "" {
		return string(r)
	}
	return "loading"
}

// sync mounts the screen for the current destination.
func (s *shell) sync(ctx context.Context) {
	cur := s.app.Nav.Current()
	if s.active && cur.Route == s.mounted.Route && maps.Equal(cur.Params, s.mounted.Params) {
		return
	}
	if s.active {
		s.unmount(s.mounted.Route)
	}
	s.mounted, s.active = cur, true

	switch cur.Route {
	case nav.Login:
		s.login.Mount()
	case nav.Signup:
		s.signup.Mount()
	case nav.AdminHome:
		if s.roster.Mount(ctx) == nil {
			s.showRoster()
		}
	case nav.AdminEditUser:
		if err := s.edit.Mount(ctx, cur.Params); err != nil {
			s.app.Nav.Back()
			return
		}
		s.showForm()
	case nav.UserProfile:
		if s.profile.Mount(ctx) == nil {
			s.showProfile()
		}
	}
}

func (s *shell) unmount(r nav.Route) {
	switch r {
	case nav.Login:
		s.login.Unmount()
	case nav.Signup:
		s.signup.Unmount()
	case nav.AdminHome:
		s.roster.Unmount()
	case nav.AdminEditUser:
		s.edit.Unmount()
	case nav.UserProfile:
		s.profile.Unmount()
	}
}

func (s *shell) exec(ctx context.Context, line string) {
	cmd, rest, _ := strings.Cut(line, " ")
	args := strings.Fields(rest)

	if cmd == "help" {
		s.help()
		return
	}
	if s.project != nil && s.demoCommand(cmd, args) {
		return
	}

	switch s.app.Nav.Current().Route.Group() {
	case nav.GroupAuth:
		s.execAuth(ctx, cmd, args)
	case nav.GroupAdmin:
		s.execAdmin(ctx, cmd, rest, args)
	case nav.GroupUser:
		s.execUser(ctx, cmd, rest, args)
	default:
		fmt.Fprintln(s.out, "still loading")
	}
}

func (s *shell) execAuth(ctx context.Context, cmd string, args []string) {
	switch cmd {
	case "login":
		if len(args) != 2 {
			fmt.Fprintln(s.out, "usage: login <email> <password>")
			return
		}
		s.app.Nav.Replace(nav.Login, nil)
		s.sync(ctx)
		if s.login.Submit(ctx, args[0], args[1]) != nil {
			fmt.Fprintln(s.out, "!", s.login.View().Error)
		}
	case "signup":
		if len(args) != 4 {
			fmt.Fprintln(s.out, "usage: signup <username> <email> <password> <confirm>")
			return
		}
		s.app.Nav.Replace(nav.Signup, nil)
		s.sync(ctx)
		err := s.signup.Submit(ctx, screen.SignupForm{Username: args[0], Email: args[1], Password: args[2], Confirm: args[3]})
		if err != nil {
			fmt.Fprintln(s.out, "!", s.signup.View().Error)
		}
	default:
		s.unknown(cmd)
	}
}

func (s *shell) execAdmin(ctx context.Context, cmd, rest string, args []string) {
	if s.app.Nav.Current().Route == nav.AdminEditUser {
		s.execForm(ctx, cmd, rest)
		return
	}
	switch cmd {
	case "list", "show":
		_ = s.roster.Refresh(ctx)
		s.showRoster()
	case "search":
		_ = s.roster.SetQuery(ctx, strings.TrimSpace(rest))
		s.showRoster()
	case "new":
		s.roster.Create()
	case "edit", "delete":
		if len(args) != 1 {
			fmt.Fprintf(s.out, "usage: %s <email>\n", cmd)
			return
		}
		row, ok := s.findRow(args[0])
		if !ok {
			fmt.Fprintln(s.out, "no such user in the list")
			return
		}
		if cmd == "edit" {
			s.roster.Edit(row)
			return
		}
		if deleted, _ := s.roster.Delete(ctx, row); deleted {
			s.showRoster()
		}
	case "logout":
		_ = s.roster.SignOut(ctx)
	default:
		s.unknown(cmd)
	}
}

func (s *shell) execForm(ctx context.Context, cmd, rest string) {
	switch cmd {
	case "show":
		s.showForm()
	case "set":
		field, value, _ := strings.Cut(strings.TrimSpace(rest), " ")
		f := s.edit.View().Form
		switch field {
		case "username":
			f.Username = value
		case "email":
			f.Email = value
		case "password":
			f.Password = value
		case "image":
			f.Image = value
		default:
			fmt.Fprintln(s.out, "usage: set username|email|password|image <value>")
			return
		}
		s.edit.SetForm(f)
	case "save":
		_ = s.edit.Save(ctx)
	case "back", "cancel":
		s.app.Nav.Back()
	default:
		s.unknown(cmd)
	}
}

func (s *shell) execUser(ctx context.Context, cmd, rest string, args []string) {
	switch cmd {
	case "show":
		s.showProfile()
	case "set":
		field, value, _ := strings.Cut(strings.TrimSpace(rest), " ")
		row := s.profile.View().Row
		switch field {
		case "username":
			row.Username = value
		case "email":
			row.Email = value
		case "image":
			row.Image = value
		default:
			fmt.Fprintln(s.out, "usage: set username|email|image <value>")
			return
		}
		s.profile.SetRow(row)
	case "save":
		_ = s.profile.Save(ctx)
	case "passwd":
		if len(args) != 2 {
			fmt.Fprintln(s.out, "usage: passwd <new password> <confirm>")
			return
		}
		_ = s.profile.ChangePassword(ctx, args[0], args[1])
	case "logout":
		_ = s.profile.SignOut(ctx)
	default:
		s.unknown(cmd)
	}
}

// demoCommand handles the actions a real project performs through emailed
// links.
func (s *shell) demoCommand(cmd string, args []string) bool {
	var err error
	switch cmd {
	case "confirm-signup":
		if len(args) != 1 {
			fmt.Fprintln(s.out, "usage: confirm-signup <email>")
			return true
		}
		err = s.project.ConfirmSignup(args[0])
	case "confirm-email":
		if len(args) != 1 {
			fmt.Fprintln(s.out, "usage: confirm-email <current email>")
			return true
		}
		err = s.project.ConfirmEmailChange(args[0])
	default:
		return false
	}
	if err != nil {
		fmt.Fprintln(s.out, "!", err)
	} else {
		fmt.Fprintln(s.out, "confirmed")
	}
	return true
}

func (s *shell) findRow(email string) (entity.User, bool) {
	for _, r := range s.roster.View().Rows {
		if strings.EqualFold(r.Email, email) {
			return r, true
		}
	}
	return entity.User{}, false
}

func (s *shell) showRoster() {
	v := s.roster.View()
	if v.Query != "" {
		fmt.Fprintf(s.out, "search: %q\n", v.Query)
	}
	if v.Empty {
		fmt.Fprintln(s.out, "No users found.")
		return
	}
	for _, r := range v.Rows {
		fmt.Fprintf(s.out, "  %-20s %-30s %s\n", r.Username, r.Email, r.Image)
	}
}

func (s *shell) showForm() {
	v := s.edit.View()
	title := "Edit user"
	if v.Creating {
		title = "Create user"
	}
	fmt.Fprintf(s.out, "%s\n  username: %s\n  email:    %s\n  image:    %s\n", title, v.Form.Username, v.Form.Email, v.Form.Image)
}

func (s *shell) showProfile() {
	v := s.profile.View()
	fmt.Fprintf(s.out, "(%s) %s <%s>\n", s.profile.Initials(), v.Row.Username, v.Row.Email)
	if v.Row.Image != "" {
		fmt.Fprintf(s.out, "  image: %s\n", v.Row.Image)
	}
}

func (s *shell) unknown(cmd string) {
	fmt.Fprintf(s.out, "unknown command %q, try help\n", cmd)
}

func (s *shell) help() {
	var lines []string
	switch s.app.Nav.Current().Route {
	case nav.Login, nav.Signup:
		lines = []string{"login <email> <password>", "signup <username> <email> <password> <confirm>"}
	case nav.AdminHome:
		lines = []string{"list", "search <text>", "new", "edit <email>", "delete <email>", "logout"}
	case nav.AdminEditUser:
		lines = []string{"show", "set username|email|password|image <value>", "save", "back"}
	case nav.UserProfile:
		lines = []string{"show", "set username|email|image <value>", "save", "passwd <new> <confirm>", "logout"}
	}
	if s.project != nil {
		lines = append(lines, "confirm-signup <email>", "confirm-email <current email>")
	}
	lines = append(lines, "help", "quit")
	for _, l := range lines {
		fmt.Fprintln(s.out, " ", l)
	}
}

var _ screen.Alerter = (*shell)(nil)
var _ screen.Confirmer = (*shell)(nil)
