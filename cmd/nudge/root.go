// Package main provides the CLI entrypoint for nudge.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/nudge/internal/config"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// Global configuration and state
var (
	cfg        *config.Config
	globalOpts struct {
		verbose    bool
		configPath string
		user       string
		backend    string
		fileDir    string
	}
	logger *slog.Logger
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "nudge",
	Short: "Engagement notification presenter",
	Long: `nudge presents engagement notifications (achievements, rewards, streaks,
referrals, suggestions, milestones and challenges) one at a time.

Notifications are read from a live feed, shown oldest first with an
auto-dismiss countdown, and dismissed on the remote store when they leave
the screen.

Running nudge without a subcommand launches the interactive TUI.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogger()

		var err error
		cfg, err = config.Load(globalOpts.configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if globalOpts.user != "" {
			cfg.User.ID = globalOpts.user
		}
		if globalOpts.backend != "" {
			cfg.Feed.Backend = globalOpts.backend
		}
		if globalOpts.fileDir != "" {
			cfg.File.Dir = globalOpts.fileDir
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.verbose, "verbose", "v", false,
		"Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&globalOpts.configPath, "config", "",
		"Path to config file (default: ~/.config/nudge/nudge.toml)")
	rootCmd.PersistentFlags().StringVarP(&globalOpts.user, "user", "u", "",
		"User whose notifications are presented (overrides config and "+config.UserEnv+")")
	rootCmd.PersistentFlags().StringVar(&globalOpts.backend, "backend", "",
		"Notification backend (file, redis, firestore)")
	rootCmd.PersistentFlags().StringVar(&globalOpts.fileDir, "dir", "",
		"Directory for the file backend (default: ~/.local/share/nudge)")
}

// setupLogger configures the global slog logger.
func setupLogger() {
	level := slog.LevelWarn
	if globalOpts.verbose {
		level = slog.LevelDebug
	}

	// Log to stderr so stdout is clean for output
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// requireUser returns the configured user id or an error naming how to set it.
func requireUser() (string, error) {
	if cfg.User.ID == "" {
		return "", fmt.Errorf("no user configured: use --user, %s or [user] id in %s",
			config.UserEnv, config.ConfigPath())
	}
	return cfg.User.ID, nil
}
