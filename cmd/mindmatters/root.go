// ABOUTME: Root command and shared setup for the mindmatters foreground CLI
// ABOUTME: Loads config, opens the entry store and builds the worker message client

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/2389/mindmatters/internal/config"
	"github.com/2389/mindmatters/internal/messaging"
	"github.com/2389/mindmatters/internal/store"
)

// messageTimeout bounds how long the CLI waits for the worker.
const messageTimeout = 5 * time.Second

var (
	configPath string
	verbose    bool
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "mindmatters",
		Short:         "MindMatters - a private mood journal that works offline",
		Long:          "mindmatters records mood entries locally and hands them to the background worker for sync and reminders.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $MINDMATTERS_CONFIG or XDG config dir)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log diagnostics to stderr")

	cmd.AddCommand(newEntryCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newReminderCmd())
	cmd.AddCommand(newNotificationsCmd())
	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newQuoteCmd())
	cmd.AddCommand(newLocationCmd())
	cmd.AddCommand(newResetCmd())
	return cmd
}

// app holds what every command needs.
type app struct {
	cfg    *config.Config
	store  store.Store
	worker *messaging.Client
	logger *slog.Logger
	out    io.Writer
}

func newApp(cmd *cobra.Command) (*app, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	return &app{
		cfg:    cfg,
		store:  store.NewLazySQLiteStore(cfg.Database.Path),
		worker: messaging.NewClient(cfg.WorkerURL(), messageTimeout),
		logger: logger,
		out:    cmd.OutOrStdout(),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing store", "error", err)
	}
}

// withApp wraps a RunE body with app setup and teardown.
func withApp(run func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return run(cmd, a, args)
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// version is set via ldflags during build
var version = "dev"
