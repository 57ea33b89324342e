package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/thislinkplease/midterm-cross-platform/internal/config"
	"github.com/thislinkplease/midterm-cross-platform/internal/role"
	"github.com/thislinkplease/midterm-cross-platform/internal/router"
	"github.com/thislinkplease/midterm-cross-platform/internal/supabase"
	"github.com/thislinkplease/midterm-cross-platform/internal/token"
	"github.com/thislinkplease/midterm-cross-platform/internal/user"
	"github.com/thislinkplease/midterm-cross-platform/internal/user/repo"
	"github.com/thislinkplease/midterm-cross-platform/pkg/database"
	"github.com/thislinkplease/midterm-cross-platform/pkg/utilities"
)

func main() {
	// best-effort: real env wins when no .env exists
	_ = godotenv.Load()

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()
	sugar := lg.Sugar()

	cfg, err := config.LoadServer()
	if err != nil {
		sugar.Fatalf("config: %v", err)
	}
	sugar.Infow("starting admin-create-user", "addr", cfg.Addr, "project", cfg.SupabaseURL)

	db, err := database.Connect(database.ConfigFromEnv())
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	users := repo.NewUserRepo(db)
	if err := users.EnsureTable(context.Background()); err != nil {
		sugar.Fatalf("ensure users table: %v", err)
	}

	admin := supabase.NewAdmin(supabase.NewClient(cfg.SupabaseURL, cfg.ServiceRoleKey, supabase.WithLogger(sugar)))
	var verifier token.Verifier = token.NewRemoteVerifier(admin)
	if cfg.JWTSecret != "" {
		verifier = token.NewJWTVerifier(cfg.JWTSecret)
	}

	svc := user.NewService(verifier, admin, users, nil, role.New(cfg.AdminEmail), sugar)
	handler := router.New(router.Options{
		Logger:      sugar,
		CORSOrigins: cfg.CORSOrigins,
		RateLimit:   cfg.RateLimit,
		RateBurst:   cfg.RateBurst,
	}, user.NewHandler(svc, sugar))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()

	<-ctx.Done()
	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}
	sugar.Info("goodbye")
}
