// Package app assembles the client: platform clients, session store,
// navigation and the services the screens share.
package app

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/thislinkplease/midterm-cross-platform/internal/account"
	"github.com/thislinkplease/midterm-cross-platform/internal/avatar"
	"github.com/thislinkplease/midterm-cross-platform/internal/backend"
	"github.com/thislinkplease/midterm-cross-platform/internal/config"
	"github.com/thislinkplease/midterm-cross-platform/internal/nav"
	"github.com/thislinkplease/midterm-cross-platform/internal/role"
	"github.com/thislinkplease/midterm-cross-platform/internal/screen"
	"github.com/thislinkplease/midterm-cross-platform/internal/session"
	"github.com/thislinkplease/midterm-cross-platform/internal/supabase"
)

type App struct {
	Config   config.Client
	Logger   *zap.SugaredLogger
	Platform backend.Platform
	Roles    role.Classifier
	Store    *session.Store
	Nav      *nav.Stack
	Accounts *account.Service
	Uploader *avatar.Uploader

	stopWatch func()
}

// New builds the app on an existing platform.
func New(cfg config.Client, platform backend.Platform, logger *zap.SugaredLogger) *App {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &App{
		Config:   cfg,
		Logger:   logger,
		Platform: platform,
		Roles:    role.New(cfg.AdminEmail),
		Store:    session.NewStore(platform.Auth, logger),
		Nav:      nav.NewStack(),
		Accounts: account.NewService(platform, logger),
		Uploader: avatar.NewUploader(platform.Storage, logger),
	}
}

// NewSupabase builds the app against the hosted project in cfg.
func NewSupabase(cfg config.Client, logger *zap.SugaredLogger) *App {
	c := supabase.NewClient(cfg.SupabaseURL, cfg.AnonKey,
		supabase.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		supabase.WithLogger(logger),
	)
	var opts []supabase.AuthOption
	if cfg.SessionFile != "" {
		opts = append(opts, supabase.WithSessionStore(supabase.FileSessionStore{Path: cfg.SessionFile}))
	}
	platform, _ := supabase.NewPlatform(c, opts...)
	return New(cfg, platform, logger)
}

// Start loads the session and keeps navigation in line with it. The first
// screen is chosen once the initial fetch completes.
func (a *App) Start(ctx context.Context) {
	a.Store.Start(ctx)
	a.stopWatch = nav.Watch(a.Store, a.Nav, a.Roles)
}

// Close stops the watch and the session store.
func (a *App) Close() {
	if a.stopWatch != nil {
		a.stopWatch()
		a.stopWatch = nil
	}
	a.Store.Close()
}

// Deps hands the screens what they need, with the given UI hooks.
func (a *App) Deps(alerter screen.Alerter, confirmer screen.Confirmer) screen.Deps {
	return screen.Deps{
		Auth:      a.Platform.Auth,
		Accounts:  a.Accounts,
		Uploader:  a.Uploader,
		Store:     a.Store,
		Nav:       a.Nav,
		Roles:     a.Roles,
		Alerter:   alerter,
		Confirmer: confirmer,
		Logger:    a.Logger,
	}
}
