package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/thislinkplease/midterm-cross-platform/internal/account"
	"github.com/thislinkplease/midterm-cross-platform/internal/app"
	"github.com/thislinkplease/midterm-cross-platform/internal/backend"
	"github.com/thislinkplease/midterm-cross-platform/internal/backend/memory"
	"github.com/thislinkplease/midterm-cross-platform/internal/config"
	"github.com/thislinkplease/midterm-cross-platform/internal/role"
	"github.com/thislinkplease/midterm-cross-platform/internal/token"
	"github.com/thislinkplease/midterm-cross-platform/internal/user"
	"github.com/thislinkplease/midterm-cross-platform/pkg/utilities"
)

const demoAdminPassword = "admin123"

func main() {
	demo := flag.Bool("demo", false, "run against an in-process project instead of Supabase")
	manifest := flag.String("manifest", "app.yaml", "app manifest with expo.extra settings")
	flag.Parse()

	_ = godotenv.Load()

	logCfg := utilities.ConfigFromEnv()
	if os.Getenv("LOG_LEVEL") == "" && !logCfg.Dev {
		logCfg.Level = "warn"
	}
	lg, err := utilities.Init(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()
	sugar := lg.Sugar()

	cfg, err := config.LoadClient(*manifest)
	if err != nil && !(*demo && errors.Is(err, config.ErrMissingBackend)) {
		sugar.Fatalf("config: %v", err)
	}

	var (
		a       *app.App
		project *memory.Project
	)
	if *demo {
		project = newDemoProject(cfg, sugar)
		platform, _ := project.NewClient()
		a = app.New(cfg, platform, sugar)
		fmt.Printf("demo mode: sign in as %s / %s\n", role.New(cfg.AdminEmail).AdminEmail(), demoAdminPassword)
	} else {
		a = app.NewSupabase(cfg, sugar)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.Start(ctx)
	defer a.Close()
	select {
	case <-a.Store.Ready():
	case <-ctx.Done():
		return
	}

	in := bufio.NewScanner(os.Stdin)
	sh := newShell(a, project, in, os.Stdout)
	if err := sh.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		sugar.Fatalf("shell: %v", err)
	}
}

// newDemoProject builds an in-process project with the create-user function
// registered and the administrator account seeded.
func newDemoProject(cfg config.Client, logger *zap.SugaredLogger) *memory.Project {
	p := memory.NewProject(utilities.NewRequestID(), memory.WithLogger(logger))
	roles := role.New(cfg.AdminEmail)
	svc := user.NewService(token.NewJWTVerifier(p.Secret()), p.Admin(), p.Rows(), nil, roles, logger)
	p.Handle(account.CreateUserFunction, user.NewHandler(svc, logger))

	if _, err := p.Admin().CreateUser(context.Background(), backend.AdminUserParams{
		Email:        roles.AdminEmail(),
		Password:     demoAdminPassword,
		EmailConfirm: true,
		UserMetadata: map[string]any{"username": "admin"},
	}); err != nil {
		logger.Fatalf("seed admin: %v", err)
	}
	return p
}
