package main

import (
	"context"
	"fmt"

	"github.com/jmylchreest/nudge/internal/config"
	"github.com/jmylchreest/nudge/internal/engine"
	"github.com/jmylchreest/nudge/internal/feed"
	"github.com/jmylchreest/nudge/internal/feed/file"
	"github.com/jmylchreest/nudge/internal/feed/firestore"
	"github.com/jmylchreest/nudge/internal/feed/redis"
	"github.com/jmylchreest/nudge/internal/router"
)

// openBackend connects to the configured backend.
func openBackend(ctx context.Context, c *config.Config) (feed.Backend, error) {
	var (
		backend feed.Backend
		err     error
	)
	switch c.Feed.Backend {
	case feed.BackendFile:
		backend, err = file.Open(c.FileDir(), logger)
	case feed.BackendRedis:
		backend, err = redis.New(ctx, redis.Config{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
			Prefix:   c.Redis.Prefix,
		}, logger)
	case feed.BackendFirestore:
		backend, err = firestore.New(ctx, firestore.Config{
			ProjectID:        c.Firestore.ProjectID,
			CredentialsFile:  c.CredentialsPath(),
			Collection:       c.Firestore.Collection,
			ClaimsCollection: c.Firestore.ClaimsCollection,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown backend %q", c.Feed.Backend)
	}
	if err != nil {
		return nil, err
	}
	return backend, nil
}

// sessionConfig maps the [engine] section onto engine.Config.
func sessionConfig(c *config.Config, userID string) engine.Config {
	return engine.Config{
		UserID:              userID,
		Countdown:           c.Engine.Countdown.Duration(),
		ProgressInterval:    c.Engine.ProgressInterval.Duration(),
		ExitDuration:        c.Engine.ExitDuration.Duration(),
		CelebrationDuration: c.Engine.Celebration.Duration(),
		RecentDismissTTL:    c.Engine.RecentDismissTTL.Duration(),
	}
}

// feedOptions maps the [feed] section onto engine.FeedOptions.
func feedOptions(c *config.Config) engine.FeedOptions {
	return engine.FeedOptions{
		MinBackoff: c.Feed.MinBackoff.Duration(),
		MaxBackoff: c.Feed.MaxBackoff.Duration(),
		Factor:     c.Feed.BackoffFactor,
		Jitter:     c.Feed.Jitter,
	}
}

// newRouter opens URLs when a base URL is configured and otherwise logs.
func newRouter(c *config.Config) engine.Router {
	if c.Routes.BaseURL == "" && c.Routes.Opener == "" {
		return router.NewLog(logger)
	}
	return router.NewOpener(c.Routes.BaseURL, c.Routes.Opener, logger)
}

// app bundles a running session with the collaborators it was built from.
type app struct {
	backend     feed.Backend
	session     *engine.Session
	coordinator *engine.Coordinator
}

// newApp opens the backend and builds a session wired to it.
func newApp(ctx context.Context, c *config.Config, userID string) (*app, error) {
	backend, err := openBackend(ctx, c)
	if err != nil {
		return nil, err
	}

	coordinator := engine.NewCoordinator(backend, c.Engine.DismissTimeout.Duration(), logger)
	dispatcher := engine.NewDispatcher(newRouter(c), backend, engine.RoutePaths{
		ToolsPrefix: c.Routes.ToolsPrefix,
		Referral:    c.Routes.Referral,
	}, logger)

	session, err := engine.NewSession(sessionConfig(c, userID), engine.Options{
		Clock:     engine.RealClock{},
		Dismisser: coordinator,
		Actions:   dispatcher,
		Logger:    logger,
	})
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	return &app{backend: backend, session: session, coordinator: coordinator}, nil
}

// Close tears the session down, waits for pending dismissals and closes
// the backend.
func (a *app) Close() error {
	_ = a.session.Close()
	a.coordinator.Wait()
	return a.backend.Close()
}
