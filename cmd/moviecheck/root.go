package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/movie-api/moviecheck/internal/bootstrap"
	"github.com/movie-api/moviecheck/internal/config"
	"github.com/movie-api/moviecheck/internal/safego"
	"github.com/movie-api/moviecheck/internal/telemetry"
)

// app carries what every command needs once the configuration is loaded
type app struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	cfg        *config.Config

	// commander runs the container CLI; nil means the real binary
	commander bootstrap.Commander
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{stdout: stdout, stderr: stderr}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "moviecheck",
		Short: "Verify a movie CRUD API end to end",
		Long: `moviecheck drives a movie API through a fixed script of HTTP calls:
health, create, duplicate rejection, fetch, update, delete and the 404s that
must follow. Each step prints a PASS or FAIL line; the first failure ends the
run with exit code 1. Without a subcommand it behaves as "run".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runVerification(cmd.Context())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default is ./moviecheck.yaml, ./config/moviecheck.yaml or /etc/moviecheck/moviecheck.yaml)")
	pf.String("base-url", "", "root URL of the movie API (default http://localhost:8080)")
	pf.String("path-prefix", "", `route prefix, "/movies" or "" for bare routes`)
	pf.String("id-mode", "", "who assigns movie ids: server or client")
	pf.Duration("timeout", 0, "per-request timeout, 0 for none")
	pf.String("log-level", "", "log level: debug, info, warn or error")
	pf.String("log-format", "", "log format: text or json")
	addRunFlags(root)

	root.AddCommand(newRunCmd(a), newHealthCmd(a), newBootstrapCmd(a), newTranscriptCmd(a), newVersionCmd(a))
	return root
}

// addRunFlags registers the flags shared by the root command and "run"
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("bootstrap", false, "recreate the Redis container before the run")
	cmd.Flags().BoolP("verbose", "v", false, "pretty-print bodies of passing health and fetch steps")
}

// loadConfig reads file, environment and explicitly set flags, then installs
// the logger. Logs go to stderr; stdout carries the PASS/FAIL transcript.
func (a *app) loadConfig(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath, cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	a.cfg = cfg

	telemetry.SetupLogger(a.stderr, cfg.Logging.Format, cfg.Logging.Level)
	slog.Debug("configuration loaded",
		"base_url", cfg.Target.BaseURL,
		"path_prefix", cfg.Target.PathPrefix,
		"id_mode", cfg.Target.IDMode,
	)
	return nil
}

// withSignals returns a context cancelled on SIGINT or SIGTERM
func withSignals(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	safego.Go("signal-watcher", func() {
		defer signal.Stop(quit)
		select {
		case sig := <-quit:
			slog.Warn("received signal, aborting run", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	})

	return ctx, cancel
}
