// Package cleanup purges expired password reset tokens and sessions on a cron
// schedule.
package cleanup

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shopfront/accounts/internal/app/storage"
	"github.com/shopfront/accounts/pkg/logger"
)

// DefaultSchedule runs the purge hourly.
const DefaultSchedule = "@hourly"

// Janitor deletes expired reset tokens and sessions.
type Janitor struct {
	tokens   storage.ResetTokenStore
	sessions storage.SessionStore
	schedule string
	cron     *cron.Cron
	log      *logger.Logger
}

// New constructs a janitor. An empty schedule uses DefaultSchedule.
func New(tokens storage.ResetTokenStore, sessions storage.SessionStore, schedule string, log *logger.Logger) *Janitor {
	if log == nil {
		log = logger.NewDefault("cleanup")
	}
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Janitor{tokens: tokens, sessions: sessions, schedule: schedule, log: log}
}

// Name identifies the janitor to the lifecycle manager.
func (j *Janitor) Name() string { return "cleanup" }

// Start registers the cron entry and begins scheduling.
func (j *Janitor) Start(ctx context.Context) error {
	j.cron = cron.New()
	if _, err := j.cron.AddFunc(j.schedule, func() { j.Purge(context.Background()) }); err != nil {
		return err
	}
	j.cron.Start()
	j.log.WithField("schedule", j.schedule).Info("cleanup janitor started")
	return nil
}

// Stop halts scheduling and waits for a running purge to finish.
func (j *Janitor) Stop(ctx context.Context) error {
	if j.cron == nil {
		return nil
	}
	stopped := j.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// Purge removes everything past its lifetime. Called by cron; exported so
// operators and tests can force a pass.
func (j *Janitor) Purge(ctx context.Context) {
	now := time.Now().UTC()

	tokens, err := j.tokens.DeleteExpiredResetTokens(ctx, now)
	if err != nil {
		j.log.WithError(err).Warn("purge reset tokens failed")
	}
	sessions, err := j.sessions.DeleteExpiredSessions(ctx, now)
	if err != nil {
		j.log.WithError(err).Warn("purge sessions failed")
	}

	if tokens > 0 || sessions > 0 {
		j.log.WithField("reset_tokens", tokens).
			WithField("sessions", sessions).
			Info("expired records purged")
	}
}
