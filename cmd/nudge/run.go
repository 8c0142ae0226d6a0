package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/nudge/internal/audio"
	"github.com/jmylchreest/nudge/internal/desktop"
	"github.com/jmylchreest/nudge/internal/engine"
	"github.com/jmylchreest/nudge/internal/metrics"
	"github.com/jmylchreest/nudge/internal/presenter"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Present notifications headless",
	Long: `Run the presenter without a terminal UI.

Session events are written to the log. When [desktop] enabled is set, the
displayed notification is mirrored as a desktop notification whose buttons
open or dismiss it. When [celebration] sound is set, the sound plays for
achievements and rewards. When [metrics] addr is set, Prometheus metrics
and a health check are served on that address.

Stop with SIGINT or SIGTERM.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	userID, err := requireUser()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, userID)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("failed to close backend", "error", err)
		}
	}()

	logger.Info("starting nudge", "version", version, "user", userID, "backend", cfg.Feed.Backend)

	var wg sync.WaitGroup
	startPresenters(ctx, &wg, a.session)

	if cfg.Metrics.Addr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, logger); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	err = engine.RunFeed(ctx, a.session, a.backend, feedOptions(cfg), logger)
	stop()
	_ = a.session.Close()
	wg.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("nudge stopped")
	return nil
}

// startPresenters attaches the log, desktop and chime presenters to s.
func startPresenters(ctx context.Context, wg *sync.WaitGroup, s *engine.Session) {
	logEvents := s.Subscribe()
	wg.Add(1)
	go func() {
		defer wg.Done()
		presenter.NewLog(logger).Run(ctx, logEvents)
	}()

	startCompanions(ctx, wg, s)
}

// startCompanions attaches the presenters shared by run and tui.
func startCompanions(ctx context.Context, wg *sync.WaitGroup, s *engine.Session) {
	if cfg.Desktop.Enabled {
		bus, err := desktop.Connect(logger)
		if err != nil {
			logger.Warn("desktop notifications unavailable", "error", err)
		} else {
			p := desktop.NewPresenter(bus, cfg.Desktop.AppName, cfg.Desktop.Icon, logger)
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { _ = bus.Close() }()
				_ = p.Run(ctx, s, bus.Signals())
			}()
		}
	}

	if sound := cfg.SoundPath(); sound != "" {
		player := audio.NewPlayer(logger)
		player.SetVolume(cfg.Celebration.Volume)
		if err := player.Preload(sound); err != nil {
			logger.Warn("celebration sound unavailable", "path", sound, "error", err)
			return
		}
		events := s.Subscribe()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer player.Close()
			audio.NewChime(player, sound, logger).Run(ctx, events)
		}()
	}
}
