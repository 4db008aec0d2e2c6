// Package app wires the account services together and manages their
// lifecycle.
package app

import (
	"context"

	"github.com/shopfront/accounts/internal/app/httpapi"
	"github.com/shopfront/accounts/internal/app/services/auth"
	"github.com/shopfront/accounts/internal/app/services/cleanup"
	"github.com/shopfront/accounts/internal/app/services/users"
	"github.com/shopfront/accounts/internal/app/storage"
	"github.com/shopfront/accounts/internal/app/storage/memory"
	"github.com/shopfront/accounts/internal/notify"
	"github.com/shopfront/accounts/pkg/logger"
)

// Stores groups the persistence backends. Nil fields fall back to a shared
// in-memory store, which keeps local development and tests dependency-free.
type Stores struct {
	Users       storage.UserStore
	ResetTokens storage.ResetTokenStore
	Sessions    storage.SessionStore
}

// Config carries application-level settings.
type Config struct {
	Auth            auth.Config
	CleanupSchedule string
	AdminAllowlist  string
}

// Application owns the services and their background workers.
type Application struct {
	Users *users.Service
	Auth  *auth.Service
	API   *httpapi.API

	janitor *cleanup.Janitor
	log     *logger.Logger
}

// New wires the application. A nil notifier logs mail instead of sending it.
func New(stores Stores, notifier notify.Notifier, cfg Config, log *logger.Logger) *Application {
	if log == nil {
		log = logger.NewDefault("app")
	}

	var fallback *memory.Store
	mem := func() *memory.Store {
		if fallback == nil {
			fallback = memory.New()
		}
		return fallback
	}
	if stores.Users == nil {
		stores.Users = mem()
	}
	if stores.ResetTokens == nil {
		stores.ResetTokens = mem()
	}
	if stores.Sessions == nil {
		stores.Sessions = mem()
	}

	userSvc := users.New(stores.Users, notifier, log)
	authSvc := auth.New(userSvc, stores.ResetTokens, stores.Sessions, notifier, cfg.Auth, log)
	api := httpapi.NewAPI(userSvc, authSvc, httpapi.NewRoles(cfg.AdminAllowlist), log)
	janitor := cleanup.New(stores.ResetTokens, stores.Sessions, cfg.CleanupSchedule, log)

	return &Application{
		Users:   userSvc,
		Auth:    authSvc,
		API:     api,
		janitor: janitor,
		log:     log,
	}
}

// Start launches the background workers.
func (a *Application) Start(ctx context.Context) error {
	if err := a.janitor.Start(ctx); err != nil {
		return err
	}
	a.log.Info("application started")
	return nil
}

// Stop shuts the background workers down.
func (a *Application) Stop(ctx context.Context) error {
	if err := a.janitor.Stop(ctx); err != nil {
		return err
	}
	a.log.Info("application stopped")
	return nil
}
