// Package config reads the settings of the shell and of the function server
// from the environment, with a bundled app manifest as fallback for the
// client's project URL and anon key.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/thislinkplease/midterm-cross-platform/internal/role"
)

// ErrMissingBackend is returned when the project URL or anon key is unknown.
var ErrMissingBackend = errors.New("Supabase URL/Anon key not found. Check app.yaml -> expo.extra.* or the environment")

// Client configures the shell.
type Client struct {
	SupabaseURL string
	AnonKey     string
	AdminEmail  string
	// SessionFile persists the session between runs when set.
	SessionFile string
	HTTPTimeout time.Duration
}

// manifest is the subset of an Expo app manifest we read. JSON manifests
// parse as well since JSON is YAML.
type manifest struct {
	Expo struct {
		Extra map[string]any `yaml:"extra"`
	} `yaml:"expo"`
}

// LoadClient resolves the client settings. Environment values win over the
// manifest at manifestPath; a missing manifest file is not an error.
func LoadClient(manifestPath string) (Client, error) {
	extra, err := readExtra(manifestPath)
	if err != nil {
		return Client{}, err
	}
	pick := func(keys ...string) string {
		for _, k := range keys {
			if v := strings.TrimSpace(os.Getenv(k)); v != "" {
				return v
			}
		}
		for _, k := range keys {
			if v, ok := extra[k].(string); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
		return ""
	}

	c := Client{
		SupabaseURL: pick("EXPO_PUBLIC_SUPABASE_URL", "SUPABASE_URL"),
		AnonKey:     pick("EXPO_PUBLIC_SUPABASE_ANON_KEY", "SUPABASE_ANON_KEY"),
		AdminEmail:  envOr("ADMIN_EMAIL", role.DefaultAdminEmail),
		SessionFile: os.Getenv("SESSION_FILE"),
		HTTPTimeout: durationEnv("HTTP_TIMEOUT", 15*time.Second),
	}
	if c.SupabaseURL == "" || c.AnonKey == "" {
		return c, ErrMissingBackend
	}
	return c, nil
}

func readExtra(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return m.Expo.Extra, nil
}

// Server configures the admin-create-user function server.
type Server struct {
	SupabaseURL    string
	ServiceRoleKey string
	AnonKey        string
	// JWTSecret enables local token verification; without it callers are
	// resolved through the auth service.
	JWTSecret   string
	DatabaseURL string
	Addr        string
	AdminEmail  string
	CORSOrigins []string
	RateLimit   float64
	RateBurst   int
}

// LoadServer reads the function server settings.
func LoadServer() (Server, error) {
	s := Server{
		SupabaseURL:    firstEnv("MY_SUPABASE_URL", "SUPABASE_URL"),
		ServiceRoleKey: firstEnv("MY_SUPABASE_SERVICE_ROLE_KEY", "SUPABASE_SERVICE_ROLE_KEY"),
		AnonKey:        firstEnv("MY_SUPABASE_ANON_KEY", "SUPABASE_ANON_KEY"),
		JWTSecret:      os.Getenv("SUPABASE_JWT_SECRET"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		Addr:           envOr("ADDR", "0.0.0.0:8431"),
		AdminEmail:     envOr("ADMIN_EMAIL", role.DefaultAdminEmail),
		CORSOrigins:    splitList(envOr("CORS_ORIGINS", "*")),
		RateLimit:      floatEnv("RATE_LIMIT", 5),
		RateBurst:      intEnv("RATE_BURST", 10),
	}
	switch {
	case s.SupabaseURL == "":
		return s, errors.New("MY_SUPABASE_URL is empty")
	case s.ServiceRoleKey == "":
		return s, errors.New("MY_SUPABASE_SERVICE_ROLE_KEY is empty")
	}
	return s, nil
}

func envOr(k, d string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return d
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if o := strings.TrimRight(strings.TrimSpace(p), "/"); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func durationEnv(k string, d time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(k)); err == nil && v > 0 {
		return v
	}
	return d
}

func floatEnv(k string, d float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(k), 64); err == nil && v > 0 {
		return v
	}
	return d
}

func intEnv(k string, d int) int {
	if v, err := strconv.Atoi(os.Getenv(k)); err == nil && v > 0 {
		return v
	}
	return d
}
