package screen_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/thislinkplease/midterm-cross-platform/internal/account"
	"github.com/thislinkplease/midterm-cross-platform/internal/avatar"
	"github.com/thislinkplease/midterm-cross-platform/internal/backend"
	"github.com/thislinkplease/midterm-cross-platform/internal/backend/memory"
	"github.com/thislinkplease/midterm-cross-platform/internal/nav"
	"github.com/thislinkplease/midterm-cross-platform/internal/role"
	"github.com/thislinkplease/midterm-cross-platform/internal/screen"
	"github.com/thislinkplease/midterm-cross-platform/internal/session"
	"github.com/thislinkplease/midterm-cross-platform/internal/token"
	"github.com/thislinkplease/midterm-cross-platform/internal/user"
	"github.com/thislinkplease/midterm-cross-platform/internal/user/entity"
)

type recordedAlerts struct {
	mu  sync.Mutex
	got []string
}

func (a *recordedAlerts) Alert(title, message string) {
	a.mu.Lock()
	a.got = append(a.got, title+": "+message)
	a.mu.Unlock()
}

func (a *recordedAlerts) has(s string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, g := range a.got {
		if g == s {
			return true
		}
	}
	return false
}

type scriptedConfirmer struct {
	answer bool
	asked  []string
}

func (c *scriptedConfirmer) Confirm(title, message, action string) bool {
	c.asked = append(c.asked, title+"|"+message+"|"+action)
	return c.answer
}

type env struct {
	project *memory.Project
	auth    *memory.Auth
	stack   *nav.Stack
	alerts  *recordedAlerts
	confirm *scriptedConfirmer
	deps    screen.Deps
}

const adminPassword = "admin-pass"

func newEnv(t *testing.T, opts ...memory.Option) env {
	t.Helper()
	p := memory.NewProject("screen-secret", opts...)
	svc := user.NewService(token.NewJWTVerifier(p.Secret()), p.Admin(), p.Rows(), user.BcryptHasher{Cost: bcrypt.MinCost}, role.Default, nil)
	p.Handle(account.CreateUserFunction, user.NewHandler(svc, nil))
	if _, err := p.Admin().CreateUser(context.Background(), backend.AdminUserParams{
		Email: role.DefaultAdminEmail, Password: adminPassword, EmailConfirm: true,
	}); err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	platform, auth := p.NewClient()
	e := env{
		project: p,
		auth:    auth,
		stack:   nav.NewStack(),
		alerts:  &recordedAlerts{},
		confirm: &scriptedConfirmer{answer: true},
	}
	e.deps = screen.Deps{
		Auth:      platform.Auth,
		Accounts:  account.NewService(platform, nil),
		Uploader:  avatar.NewUploader(platform.Storage, nil),
		Store:     session.NewStore(platform.Auth, nil),
		Nav:       e.stack,
		Roles:     role.Default,
		Alerter:   e.alerts,
		Confirmer: e.confirm,
	}
	return e
}

func (e env) login(t *testing.T, email, password string) {
	t.Helper()
	l := screen.NewLogin(e.deps)
	l.Mount()
	defer l.Unmount()
	if err := l.Submit(context.Background(), email, password); err != nil {
		t.Fatalf("login %s: %v", email, err)
	}
}

func TestSignupValidatesBeforeNetwork(t *testing.T) {
	e := newEnv(t)
	s := screen.NewSignup(e.deps)
	s.Mount()

	cases := []struct {
		name string
		form screen.SignupForm
		want string
	}{
		{"blank", screen.SignupForm{Email: "bob@x.com", Password: "secret1", Confirm: "secret1"}, "Please fill in all fields"},
		{"mismatch", screen.SignupForm{Username: "bob", Email: "bob@x.com", Password: "secret1", Confirm: "secret2"}, "Passwords do not match"},
		{"short", screen.SignupForm{Username: "bob", Email: "bob@x.com", Password: "12345", Confirm: "12345"}, "Password must be at least 6 characters"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := s.Submit(context.Background(), tc.form)
			var ve *screen.ValidationError
			if !errors.As(err, &ve) || ve.Message != tc.want {
				t.Fatalf("err = %v, want %q", err, tc.want)
			}
			if got := s.View().Error; got != tc.want {
				t.Errorf("inline error = %q", got)
			}
		})
	}

	if _, err := e.auth.SignInWithPassword(context.Background(), "bob@x.com", "12345"); err == nil {
		t.Fatal("no account should have been created")
	}
}

func TestSignupMirrorsRowAndGoesHome(t *testing.T) {
	e := newEnv(t)
	s := screen.NewSignup(e.deps)
	s.Mount()
	err := s.Submit(context.Background(), screen.SignupForm{Username: "jane", Email: "jane@x.com", Password: "secret1", Confirm: "secret1"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	row, _ := e.deps.Accounts.Get(context.Background(), "jane@x.com")
	if row == nil || row.Username != "jane" || row.Image != avatar.DefaultImage {
		t.Fatalf("row = %+v", row)
	}
	if got := e.stack.Current().Route; got != nav.UserProfile {
		t.Errorf("route = %q", got)
	}
}

func TestSignupAwaitingConfirmation(t *testing.T) {
	e := newEnv(t, memory.RequireEmailConfirmation())
	s := screen.NewSignup(e.deps)
	s.Mount()
	err := s.Submit(context.Background(), screen.SignupForm{Username: "jane", Email: "jane@x.com", Password: "secret1", Confirm: "secret1"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !e.alerts.has("Check your email: Please confirm your email address, then log in.") {
		t.Errorf("alerts = %v", e.alerts.got)
	}
	if got := e.stack.Current().Route; got != nav.Login {
		t.Errorf("route = %q", got)
	}
}

func TestLoginMirrorsAccount(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	if _, err := e.project.Admin().CreateUser(ctx, backend.AdminUserParams{Email: "jane@x.com", Password: "secret1", EmailConfirm: true}); err != nil {
		t.Fatal(err)
	}

	l := screen.NewLogin(e.deps)
	l.Mount()
	err := l.Submit(ctx, "jane@x.com", "wrong-pass")
	if err == nil || l.View().Error != "Invalid login credentials" {
		t.Fatalf("err = %v view = %+v", err, l.View())
	}

	if err := l.Submit(ctx, " jane@x.com ", "secret1"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	row, _ := e.deps.Accounts.Get(ctx, "jane@x.com")
	if row == nil || row.Username != "jane" {
		t.Fatalf("row = %+v", row)
	}
	if got := e.stack.Current().Route; got != nav.UserProfile {
		t.Errorf("route = %q", got)
	}
}

func TestAdminCreatesAndDeletesUser(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.login(t, role.DefaultAdminEmail, adminPassword)
	if got := e.stack.Current().Route; got != nav.AdminHome {
		t.Fatalf("route = %q", got)
	}

	roster := screen.NewRoster(e.deps)
	if err := roster.Mount(ctx); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	roster.Create()
	if got := e.stack.Current(); got.Route != nav.AdminEditUser || got.Param("email") != "" {
		t.Fatalf("destination = %+v", got)
	}

	edit := screen.NewEditUser(e.deps)
	if err := edit.Mount(ctx, e.stack.Current().Params); err != nil {
		t.Fatalf("Mount edit: %v", err)
	}
	if !edit.View().Creating {
		t.Fatal("form should be in create mode")
	}
	edit.SetForm(screen.UserForm{Username: "bob", Email: "bob@x.com", Password: "secret1"})
	if err := edit.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !e.alerts.has("Success: User saved successfully!") {
		t.Errorf("alerts = %v", e.alerts.got)
	}
	if got := e.stack.Current().Route; got != nav.AdminHome {
		t.Errorf("after save route = %q", got)
	}

	row, _ := e.deps.Accounts.Get(ctx, "bob@x.com")
	if row == nil || row.Username != "bob" || row.Image != avatar.DefaultImage {
		t.Fatalf("row = %+v", row)
	}
	if h := e.project.PasswordHash("bob@x.com"); h == "" || h == "secret1" {
		t.Errorf("password hash = %q", h)
	}

	if err := roster.SetQuery(ctx, "BO"); err != nil {
		t.Fatal(err)
	}
	if v := roster.View(); len(v.Rows) != 1 || v.Rows[0].Email != "bob@x.com" {
		t.Fatalf("search rows = %+v", v.Rows)
	}

	deleted, err := roster.Delete(ctx, *row)
	if err != nil || !deleted {
		t.Fatalf("Delete = %v, %v", deleted, err)
	}
	if want := `Delete user|Are you sure you want to delete "bob"?|Delete`; len(e.confirm.asked) != 1 || e.confirm.asked[0] != want {
		t.Errorf("confirm = %v", e.confirm.asked)
	}
	if v := roster.View(); len(v.Rows) != 0 || !v.Empty {
		t.Errorf("after delete view = %+v", v)
	}
}

func TestRosterDeleteCancelled(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.confirm.answer = false
	if err := e.deps.Accounts.MirrorAuthUser(ctx, entity.User{Username: "bob", Email: "bob@x.com"}); err != nil {
		t.Fatal(err)
	}
	roster := screen.NewRoster(e.deps)
	_ = roster.Mount(ctx)
	deleted, err := roster.Delete(ctx, entity.User{Username: "bob", Email: "bob@x.com"})
	if deleted || err != nil {
		t.Fatalf("Delete = %v, %v", deleted, err)
	}
	if row, _ := e.deps.Accounts.Get(ctx, "bob@x.com"); row == nil {
		t.Error("row removed without confirmation")
	}
}

func TestEditUserMissingRow(t *testing.T) {
	e := newEnv(t)
	edit := screen.NewEditUser(e.deps)
	err := edit.Mount(context.Background(), map[string]string{"email": "ghost@x.com"})
	if !errors.Is(err, screen.ErrUserNotFound) {
		t.Fatalf("err = %v", err)
	}
	if !e.alerts.has("Error: user not found") {
		t.Errorf("alerts = %v", e.alerts.got)
	}
}

func TestEditUserRequiresFields(t *testing.T) {
	e := newEnv(t)
	edit := screen.NewEditUser(e.deps)
	_ = edit.Mount(context.Background(), nil)
	edit.SetForm(screen.UserForm{Username: "bob", Email: "bob@x.com"})
	if err := edit.Save(context.Background()); err == nil {
		t.Fatal("expected validation error")
	}
	if !e.alerts.has("Error: Please fill in all fields!") {
		t.Errorf("alerts = %v", e.alerts.got)
	}
}

func TestProfileEmailChange(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	if _, err := e.project.Admin().CreateUser(ctx, backend.AdminUserParams{Email: "a@x.com", Password: "secret1", EmailConfirm: true}); err != nil {
		t.Fatal(err)
	}
	e.login(t, "a@x.com", "secret1")

	p := screen.NewProfile(e.deps)
	if err := p.Mount(ctx); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	v := p.View()
	if !v.Stored || v.Row.Email != "a@x.com" || p.Initials() != "A" {
		t.Fatalf("view = %+v initials = %q", v, p.Initials())
	}

	p.SetRow(entity.User{Username: "alice", Email: "b@x.com"})
	if err := p.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !e.alerts.has("Confirmation Sent: Please check your new email to confirm the change.") || !e.alerts.has("Success: Profile has been saved.") {
		t.Errorf("alerts = %v", e.alerts.got)
	}
	if old, _ := e.deps.Accounts.Get(ctx, "a@x.com"); old != nil {
		t.Errorf("old row still present: %+v", old)
	}
	if row, _ := e.deps.Accounts.Get(ctx, "b@x.com"); row == nil || row.Username != "alice" {
		t.Errorf("new row = %+v", row)
	}

	sess, _ := e.auth.GetSession(ctx)
	if sess.Email() != "a@x.com" {
		t.Errorf("session changed before confirmation: %q", sess.Email())
	}
	if err := e.project.ConfirmEmailChange("a@x.com"); err != nil {
		t.Fatal(err)
	}
	sess, _ = e.auth.GetSession(ctx)
	if sess.Email() != "b@x.com" {
		t.Errorf("session email = %q after confirmation", sess.Email())
	}
}

func TestProfileWithoutRowUsesSession(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	if _, err := e.auth.SignUp(ctx, "c@x.com", "secret1", map[string]any{"username": "carol"}); err != nil {
		t.Fatal(err)
	}
	p := screen.NewProfile(e.deps)
	if err := p.Mount(ctx); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	v := p.View()
	if v.Stored || v.Row.Username != "carol" || v.Row.Email != "c@x.com" {
		t.Errorf("view = %+v", v)
	}
}

func TestProfilePasswordChange(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	if _, err := e.auth.SignUp(ctx, "c@x.com", "secret1", nil); err != nil {
		t.Fatal(err)
	}
	p := screen.NewProfile(e.deps)
	_ = p.Mount(ctx)

	if err := p.ChangePassword(ctx, "newpass", "other"); err == nil || !e.alerts.has("Attention: Password confirmation does not match.") {
		t.Fatalf("err = %v alerts = %v", err, e.alerts.got)
	}
	if err := p.ChangePassword(ctx, "newpass", "newpass"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, err := e.auth.SignInWithPassword(ctx, "c@x.com", "newpass"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}
}

// gatedTable holds every search until the test releases it.
type gatedTable struct {
	backend.Table
	calls chan search
}

type search struct {
	query   string
	release chan []entity.User
}

func (g *gatedTable) SearchByUsername(_ context.Context, q string) ([]entity.User, error) {
	s := search{query: q, release: make(chan []entity.User)}
	g.calls <- s
	return <-s.release, nil
}

func gatedRoster() (*screen.Roster, *gatedTable) {
	g := &gatedTable{calls: make(chan search)}
	deps := screen.Deps{Accounts: account.NewService(backend.Platform{Table: g}, nil)}
	return screen.NewRoster(deps), g
}

func TestRosterKeepsNewestSearch(t *testing.T) {
	r, g := gatedRoster()
	ctx := context.Background()

	mounted := make(chan error)
	go func() { mounted <- r.Mount(ctx) }()
	(<-g.calls).release <- nil
	<-mounted

	doneA, doneB := make(chan error), make(chan error)
	go func() { doneA <- r.SetQuery(ctx, "a") }()
	first := <-g.calls
	go func() { doneB <- r.SetQuery(ctx, "ab") }()
	second := <-g.calls
	if first.query != "a" || second.query != "ab" {
		t.Fatalf("queries = %q, %q", first.query, second.query)
	}
	if !r.View().Loading {
		t.Error("view should be loading")
	}

	second.release <- []entity.User{{Username: "abby", Email: "abby@x.com"}}
	<-doneB
	first.release <- []entity.User{{Username: "al", Email: "al@x.com"}}
	<-doneA

	v := r.View()
	if len(v.Rows) != 1 || v.Rows[0].Username != "abby" {
		t.Errorf("rows = %+v", v.Rows)
	}
	if v.Loading || v.Empty {
		t.Errorf("view = %+v", v)
	}
}

func TestRosterDropsResultsAfterUnmount(t *testing.T) {
	r, g := gatedRoster()
	mounted := make(chan error)
	go func() { mounted <- r.Mount(context.Background()) }()
	call := <-g.calls
	r.Unmount()
	call.release <- []entity.User{{Username: "late", Email: "late@x.com"}}
	<-mounted

	if v := r.View(); len(v.Rows) != 0 || v.Loading {
		t.Errorf("view = %+v", v)
	}
}

func TestLifecycle(t *testing.T) {
	var lc screen.Lifecycle
	lc.Mount()
	tk := lc.Ticket()

	done, err := lc.Begin("save")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := lc.Begin("save"); !errors.Is(err, screen.ErrBusy) {
		t.Fatalf("second Begin err = %v", err)
	}
	if !lc.Running("save") {
		t.Error("save should be running")
	}
	done()
	if _, err := lc.Begin("save"); err != nil {
		t.Errorf("Begin after done: %v", err)
	}

	if !tk.Live() {
		t.Error("ticket should be live")
	}
	lc.Unmount()
	lc.Mount()
	if tk.Live() {
		t.Error("ticket from an earlier mount must not be live")
	}
}
