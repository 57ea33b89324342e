package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/thislinkplease/midterm-cross-platform/internal/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"EXPO_PUBLIC_SUPABASE_URL", "EXPO_PUBLIC_SUPABASE_ANON_KEY",
		"SUPABASE_URL", "SUPABASE_ANON_KEY", "ADMIN_EMAIL", "SESSION_FILE", "HTTP_TIMEOUT",
		"MY_SUPABASE_URL", "MY_SUPABASE_SERVICE_ROLE_KEY", "MY_SUPABASE_ANON_KEY",
		"SUPABASE_SERVICE_ROLE_KEY", "SUPABASE_JWT_SECRET", "DATABASE_URL", "ADDR",
		"CORS_ORIGINS", "RATE_LIMIT", "RATE_BURST",
	} {
		t.Setenv(k, "")
	}
}

func writeManifest(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "app.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadClientFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("SUPABASE_URL", "https://env.supabase.co")
	t.Setenv("EXPO_PUBLIC_SUPABASE_ANON_KEY", "env-key")
	t.Setenv("HTTP_TIMEOUT", "3s")

	c, err := config.LoadClient("")
	if err != nil {
		t.Fatalf("LoadClient: %v", err)
	}
	if c.SupabaseURL != "https://env.supabase.co" || c.AnonKey != "env-key" {
		t.Errorf("unexpected %+v", c)
	}
	if c.HTTPTimeout != 3*time.Second {
		t.Errorf("timeout = %v", c.HTTPTimeout)
	}
	if c.AdminEmail != "admin@gmail.com" {
		t.Errorf("admin = %q", c.AdminEmail)
	}
}

func TestLoadClientManifestFallback(t *testing.T) {
	clearEnv(t)
	path := writeManifest(t, `
expo:
  name: user-manager
  extra:
    EXPO_PUBLIC_SUPABASE_URL: https://file.supabase.co
    EXPO_PUBLIC_SUPABASE_ANON_KEY: file-key
`)
	t.Setenv("SUPABASE_ANON_KEY", "env-key")

	c, err := config.LoadClient(path)
	if err != nil {
		t.Fatalf("LoadClient: %v", err)
	}
	if c.SupabaseURL != "https://file.supabase.co" {
		t.Errorf("url = %q", c.SupabaseURL)
	}
	if c.AnonKey != "env-key" {
		t.Errorf("env should win, key = %q", c.AnonKey)
	}
}

func TestLoadClientJSONManifest(t *testing.T) {
	clearEnv(t)
	path := writeManifest(t, `{"expo":{"extra":{"EXPO_PUBLIC_SUPABASE_URL":"https://json.supabase.co","EXPO_PUBLIC_SUPABASE_ANON_KEY":"json-key"}}}`)
	c, err := config.LoadClient(path)
	if err != nil {
		t.Fatalf("LoadClient: %v", err)
	}
	if c.SupabaseURL != "https://json.supabase.co" || c.AnonKey != "json-key" {
		t.Errorf("unexpected %+v", c)
	}
}

func TestLoadClientMissing(t *testing.T) {
	clearEnv(t)
	t.Setenv("SUPABASE_URL", "https://only-url.supabase.co")
	_, err := config.LoadClient(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, config.ErrMissingBackend) {
		t.Fatalf("err = %v, want ErrMissingBackend", err)
	}
}

func TestLoadServer(t *testing.T) {
	clearEnv(t)
	if _, err := config.LoadServer(); err == nil {
		t.Fatal("expected error without project URL")
	}

	t.Setenv("SUPABASE_URL", "https://fallback.supabase.co")
	t.Setenv("MY_SUPABASE_URL", "https://my.supabase.co")
	t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "service")
	t.Setenv("CORS_ORIGINS", "http://a.test/, http://b.test")
	t.Setenv("RATE_BURST", "3")

	s, err := config.LoadServer()
	if err != nil {
		t.Fatalf("LoadServer: %v", err)
	}
	if s.SupabaseURL != "https://my.supabase.co" || s.ServiceRoleKey != "service" {
		t.Errorf("unexpected %+v", s)
	}
	if len(s.CORSOrigins) != 2 || s.CORSOrigins[0] != "http://a.test" {
		t.Errorf("origins = %v", s.CORSOrigins)
	}
	if s.RateBurst != 3 || s.RateLimit != 5 || s.Addr != "0.0.0.0:8431" {
		t.Errorf("limits/addr = %v %v %q", s.RateLimit, s.RateBurst, s.Addr)
	}
}
