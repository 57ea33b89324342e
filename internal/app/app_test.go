package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/thislinkplease/midterm-cross-platform/internal/app"
	"github.com/thislinkplease/midterm-cross-platform/internal/backend/memory"
	"github.com/thislinkplease/midterm-cross-platform/internal/config"
	"github.com/thislinkplease/midterm-cross-platform/internal/nav"
)

func waitRoute(t *testing.T, a *app.App, want nav.Route) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if a.Nav.Current().Route == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("route = %q, want %q", a.Nav.Current().Route, want)
}

func TestStartFollowsSession(t *testing.T) {
	p := memory.NewProject("app-secret")
	platform, auth := p.NewClient()
	a := app.New(config.Client{AdminEmail: "root@x.com"}, platform, nil)
	ctx := context.Background()

	a.Start(ctx)
	defer a.Close()
	<-a.Store.Ready()
	waitRoute(t, a, nav.Login)

	if _, err := auth.SignUp(ctx, "Root@x.com", "secret1", nil); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	waitRoute(t, a, nav.AdminHome)

	if err := auth.SignOut(ctx); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	waitRoute(t, a, nav.Login)

	if _, err := auth.SignUp(ctx, "jane@x.com", "secret1", nil); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	waitRoute(t, a, nav.UserProfile)
}
