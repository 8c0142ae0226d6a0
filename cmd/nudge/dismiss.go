package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/nudge/internal/feed"
	"github.com/jmylchreest/nudge/internal/feed/file"
)

var dismissCmd = &cobra.Command{
	Use:   "dismiss <id>...",
	Short: "Mark notifications dismissed on the backend",
	Long: `Mark one or more notifications dismissed on the configured backend.
Dismissing an already dismissed notification is harmless.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDismiss,
}

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Rewrite the file backend without superseded records",
	Long: `Rewrite the file backend's notification log keeping only the latest
record of each notification. A .bak copy is kept if the rewrite fails.`,
	Args: cobra.NoArgs,
	RunE: runCompact,
}

func init() {
	rootCmd.AddCommand(dismissCmd)
	rootCmd.AddCommand(compactCmd)
}

func runDismiss(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()

	var failed int
	for _, id := range args {
		if err := backend.Dismiss(ctx, id); err != nil {
			failed++
			if errors.Is(err, feed.ErrNotFound) {
				logger.Warn("notification not found", "id", id)
				continue
			}
			logger.Error("dismiss failed", "id", id, "error", err)
			continue
		}
		logger.Debug("dismissed", "id", id)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d dismissals failed", failed, len(args))
	}
	return nil
}

func runCompact(cmd *cobra.Command, args []string) error {
	if cfg.Feed.Backend != feed.BackendFile {
		return fmt.Errorf("compact only applies to the %s backend, configured backend is %s",
			feed.BackendFile, cfg.Feed.Backend)
	}

	store, err := file.Open(cfg.FileDir(), logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	removed, err := store.Compact(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %d superseded records from %s\n", removed, store.Path())
	return nil
}
