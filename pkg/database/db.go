package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// ErrMissingDSN is returned when DATABASE_URL is not set.
var ErrMissingDSN = errors.New("DATABASE_URL is empty")

type Config struct {
	DSN      string
	MaxConns int
	Timeout  time.Duration
}

// ConfigFromEnv reads DB config from environment variables. The project's
// Postgres connection string is required; there is no local default because
// the users table lives in the hosted project.
func ConfigFromEnv() Config {
	dsn := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	// local only: allow sslmode=disable if using localhost
	if strings.Contains(dsn, "localhost") && !strings.Contains(dsn, "sslmode=") {
		if strings.Contains(dsn, "?") {
			dsn += "&sslmode=disable"
		} else {
			dsn += "?sslmode=disable"
		}
	}
	return Config{DSN: dsn, MaxConns: 5, Timeout: 5 * time.Second}
}

// Connect opens a pooled *sqlx.DB and verifies connectivity with a ping.
func Connect(cfg Config) (*sqlx.DB, error) {
	if cfg.DSN == "" {
		return nil, ErrMissingDSN
	}
	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MaxConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}
