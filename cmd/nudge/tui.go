package main

import (
	"context"
	"errors"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/nudge/internal/engine"
	"github.com/jmylchreest/nudge/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Present notifications in the terminal",
	Long: `Launch the terminal presenter.

Notifications are shown one at a time, oldest first, with a countdown bar.
Achievements and rewards are celebrated.

Key bindings:
  enter       Perform the notification's action and dismiss it
  d, esc      Dismiss
  ?           Show help
  q           Quit`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	userID, err := requireUser()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := newApp(ctx, cfg, userID)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("failed to close backend", "error", err)
		}
	}()

	var wg sync.WaitGroup
	startCompanions(ctx, &wg, a.session)

	feedErr := make(chan error, 1)
	go func() {
		feedErr <- engine.RunFeed(ctx, a.session, a.backend, feedOptions(cfg), logger)
	}()

	m := tui.New(ctx, a.session)
	_, err = tea.NewProgram(m).Run()
	m.Close()

	cancel()
	_ = a.session.Close()
	wg.Wait()

	if ferr := <-feedErr; ferr != nil && !errors.Is(ferr, context.Canceled) && err == nil {
		err = ferr
	}
	return err
}
