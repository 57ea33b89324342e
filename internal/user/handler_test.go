package user_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/thislinkplease/midterm-cross-platform/internal/backend/memory"
	"github.com/thislinkplease/midterm-cross-platform/internal/role"
	"github.com/thislinkplease/midterm-cross-platform/internal/token"
	"github.com/thislinkplease/midterm-cross-platform/internal/user"
)

type fixture struct {
	project *memory.Project
	handler *user.Handler
	admin   string
	member  string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	p := memory.NewProject("fn-secret")
	ctx := context.Background()

	signUp := func(email string) string {
		_, auth := p.NewClient()
		s, err := auth.SignUp(ctx, email, "secret1", nil)
		if err != nil {
			t.Fatalf("sign up %s: %v", email, err)
		}
		return s.AccessToken
	}
	admin := signUp("admin@gmail.com")
	member := signUp("alice@x.com")

	svc := user.NewService(token.NewJWTVerifier(p.Secret()), p.Admin(), p.Rows(), user.BcryptHasher{Cost: bcrypt.MinCost}, role.Default, nil)
	return fixture{project: p, handler: user.NewHandler(svc, nil), admin: admin, member: member}
}

func (f fixture) post(bearer, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/admin-create-user", strings.NewReader(body))
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestCreateUserAuthorization(t *testing.T) {
	f := newFixture(t)
	body := `{"email":"bob@x.com","password":"secret1","username":"bob"}`

	cases := []struct {
		name   string
		bearer string
	}{
		{"no token", ""},
		{"garbage token", "not-a-jwt"},
		{"non-admin", f.member},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.post(tc.bearer, body)
			if rec.Code != http.StatusForbidden {
				t.Fatalf("status = %d, want 403", rec.Code)
			}
			if got := strings.TrimSpace(rec.Body.String()); got != `{"error":"Forbidden"}` {
				t.Errorf("body = %s", got)
			}
		})
	}
	if f.project.PasswordHash("bob@x.com") != "" {
		t.Error("rejected call must not write a row")
	}
}

func TestCreateUserBadRequests(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name string
		body string
		want string
	}{
		{"malformed json", `{"email":`, "invalid payload"},
		{"missing password", `{"email":"bob@x.com"}`, user.ErrInvalidRequest.Error()},
		{"weak password", `{"email":"bob@x.com","password":"123"}`, "Password should be at least 6 characters."},
		{"existing email", `{"email":"alice@x.com","password":"secret1"}`, "A user with this email address has already been registered"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.post(f.admin, tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			var resp map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp["error"] != tc.want {
				t.Errorf("error = %q, want %q", resp["error"], tc.want)
			}
		})
	}
}

func TestCreateUserSuccess(t *testing.T) {
	f := newFixture(t)
	rec := f.post(f.admin, `{"email":"bob@x.com","password":"secret1","username":"bob","image":"https://img/bob.png"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		OK  bool   `json:"ok"`
		UID string `json:"uid"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.OK || resp.UID == "" {
		t.Fatalf("unexpected response %+v", resp)
	}

	platform, auth := f.project.NewClient()
	ctx := context.Background()
	if _, err := auth.SignInWithPassword(ctx, "bob@x.com", "secret1"); err != nil {
		t.Fatalf("created account cannot sign in: %v", err)
	}
	row, err := platform.Table.GetByEmail(ctx, "bob@x.com")
	if err != nil || row == nil {
		t.Fatalf("row missing: %v", err)
	}
	if row.Username != "bob" || row.Image != "https://img/bob.png" {
		t.Errorf("row = %+v", row)
	}
	hash := f.project.PasswordHash("bob@x.com")
	if hash == "" || hash == "secret1" {
		t.Fatalf("password hash not stored: %q", hash)
	}
	if !(user.BcryptHasher{}).Verify(hash, "secret1") {
		t.Error("stored hash does not match the password")
	}
}
