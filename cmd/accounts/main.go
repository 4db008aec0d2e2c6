package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/shopfront/accounts/internal/app"
	"github.com/shopfront/accounts/internal/app/httpapi"
	"github.com/shopfront/accounts/internal/app/services/auth"
	"github.com/shopfront/accounts/internal/app/storage/postgres"
	"github.com/shopfront/accounts/internal/app/storage/redis"
	"github.com/shopfront/accounts/internal/config"
	"github.com/shopfront/accounts/internal/notify"
	"github.com/shopfront/accounts/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New("accounts", logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	stores, closeStores, err := buildStores(cfg, log)
	if err != nil {
		return err
	}
	defer closeStores()

	application := app.New(stores, buildNotifier(cfg, log), app.Config{
		Auth: auth.Config{
			Secret:     []byte(cfg.Auth.Secret),
			Issuer:     cfg.Auth.Issuer,
			AccessTTL:  cfg.Auth.AccessTTL,
			RefreshTTL: cfg.Auth.RefreshTTL,
		},
		CleanupSchedule: cfg.Cleanup.Schedule,
		AdminAllowlist:  os.Getenv("ADMIN_USERNAMES"),
	}, log)

	ctx := context.Background()
	if err := application.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := application.Stop(stopCtx); err != nil {
			log.WithError(err).Warn("application stop failed")
		}
	}()

	seedSuperuser(ctx, application, log)

	router := httpapi.NewRouter(application.API, application.Auth, httpapi.RouterConfig{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	}, log)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", server.Addr).Info("http server listening")
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}

// buildStores connects persistence from configuration. Without a database DSN
// everything stays in memory; with Redis configured, sessions move there.
func buildStores(cfg *config.Config, log *logger.Logger) (app.Stores, func(), error) {
	var stores app.Stores
	closers := []func(){}
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.Database.DSN != "" {
		db, err := sqlx.Connect("postgres", cfg.Database.DSN)
		if err != nil {
			return app.Stores{}, nil, fmt.Errorf("connect database: %w", err)
		}
		closers = append(closers, func() { _ = db.Close() })

		pg := postgres.New(db)
		stores.Users = pg
		stores.ResetTokens = pg
		stores.Sessions = pg
		log.Info("using postgres storage")
	} else {
		log.Warn("DATABASE_URL not set; using in-memory storage")
	}

	if cfg.Redis.Addr != "" {
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			log.WithError(err).Warn("redis unreachable; keeping default session store")
			_ = client.Close()
		} else {
			closers = append(closers, func() { _ = client.Close() })
			stores.Sessions = redis.NewSessionStore(client)
			log.Info("using redis session store")
		}
	}

	return stores, closeAll, nil
}

func buildNotifier(cfg *config.Config, log *logger.Logger) notify.Notifier {
	if cfg.Mail.Host == "" {
		log.Warn("MAIL_HOST not set; mail will be logged, not sent")
		return notify.NewLogNotifier(log)
	}
	sender := notify.NewSMTPSender(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.Username, cfg.Mail.Password)
	return notify.NewMailer(sender, cfg.Mail.From, cfg.Mail.AssetsHost, log)
}

// seedSuperuser creates the bootstrap superuser when the environment asks for
// one and the account does not exist yet.
func seedSuperuser(ctx context.Context, application *app.Application, log *logger.Logger) {
	email := os.Getenv("SUPERUSER_EMAIL")
	username := os.Getenv("SUPERUSER_USERNAME")
	password := os.Getenv("SUPERUSER_PASSWORD")
	if email == "" || username == "" || password == "" {
		return
	}

	if _, err := application.Users.GetByUsername(ctx, username); err == nil {
		return
	}
	if _, err := application.Users.CreateSuperuser(ctx, email, username, password); err != nil {
		log.WithError(err).Warn("superuser seed failed")
		return
	}
	log.WithField("username", username).Info("superuser seeded")
}
