package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/movie-api/moviecheck/internal/bootstrap"
	"github.com/movie-api/moviecheck/internal/movieapi"
	"github.com/movie-api/moviecheck/internal/report"
	"github.com/movie-api/moviecheck/internal/storage"
	"github.com/movie-api/moviecheck/internal/telemetry"
	"github.com/movie-api/moviecheck/internal/verify"
)

// postRunTimeout bounds shipping, archiving and metric export after a run,
// which may happen after the run context was cancelled.
const postRunTimeout = 30 * time.Second

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full verification script",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runVerification(cmd.Context())
		},
	}
	addRunFlags(cmd)
	return cmd
}

// runVerification optionally recreates the Redis container, then runs the
// whole plan. Shipping, archiving and metrics never change the outcome.
func (a *app) runVerification(parent context.Context) error {
	ctx, cancel := withSignals(parent)
	defer cancel()

	cfg := a.cfg
	runID := uuid.NewString()
	slog.Info("starting verification", "run_id", runID, "base_url", cfg.Target.BaseURL)

	if cfg.Bootstrap.Enabled {
		if err := a.recreateContainer(ctx); err != nil {
			return err
		}
	}

	console := report.NewConsole(a.stdout, cfg.Report.Verbose, cfg.Report.Color)

	shippers, err := report.NewMultiShipper(cfg.Report.Shippers)
	if err != nil {
		return fmt.Errorf("failed to create result shippers: %w", err)
	}
	var transcript *report.Transcript
	if cfg.Artifacts.Enabled {
		transcript = &report.Transcript{}
		shippers.Add("transcript", transcript)
	}

	var shipReporter verify.Reporter
	if shippers.Len() > 0 {
		shipReporter = report.NewShipReporter(ctx, shippers)
	}

	client := movieapi.NewClient(cfg.Target.BaseURL, cfg.Target.PathPrefix, cfg.Target.Timeout)
	steps := verify.Plan(verify.OptionsFromConfig(cfg))
	runner := verify.NewRunner(client, steps, report.NewGroup(console, shipReporter), runID)

	runErr := runner.Run(ctx)
	if runErr == nil {
		console.Done()
	}

	if err := shippers.Close(); err != nil {
		slog.Warn("failed to close result shippers", "error", err)
	}

	postCtx, postCancel := context.WithTimeout(context.WithoutCancel(ctx), postRunTimeout)
	defer postCancel()

	if transcript != nil {
		if err := a.archiveTranscript(postCtx, runID, transcript.Bytes()); err != nil {
			slog.Warn("transcript not archived", "error", err)
		}
	}
	a.exportMetrics(postCtx, runID)

	return runErr
}

// recreateContainer runs the bootstrap sequence and reports it on the console
func (a *app) recreateContainer(ctx context.Context) error {
	cfg := a.cfg
	console := report.NewConsole(a.stdout, cfg.Report.Verbose, cfg.Report.Color)
	console.Section(fmt.Sprintf("Recreating Redis container (%s)...", cfg.Bootstrap.ContainerName))

	id, err := bootstrap.New(cfg.Bootstrap, a.commander).Recreate(ctx)
	if err != nil {
		detail := err.Error()
		var berr *bootstrap.Error
		if errors.As(err, &berr) && berr.Stderr != "" {
			detail = berr.Stderr
		}
		console.Fail("Failed to restart Redis container:\n" + detail)
		return fmt.Errorf("failed to recreate %s container: %w", cfg.Bootstrap.ContainerName, err)
	}
	console.Pass("Redis container recreated: " + id)
	return nil
}

// openStore creates the configured artifact backend. The returned func
// releases it.
func (a *app) openStore() (storage.Storage, func(), error) {
	artifacts := &a.cfg.Artifacts

	store, err := storage.NewStorage(artifacts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s storage: %w", artifacts.Backend, err)
	}
	release := func() {}
	if c, ok := store.(io.Closer); ok {
		release = func() { _ = c.Close() }
	}
	return store, release, nil
}

func (a *app) archiveTranscript(ctx context.Context, runID string, transcript []byte) error {
	store, release, err := a.openStore()
	if err != nil {
		return err
	}
	defer release()

	artifacts := &a.cfg.Artifacts
	_, err = storage.Archive(ctx, store, artifacts.Backend, artifacts.Prefix, runID, transcript)
	return err
}

// exportMetrics writes and pushes run metrics when configured. Failures are
// logged only.
func (a *app) exportMetrics(ctx context.Context, runID string) {
	m := a.cfg.Telemetry.Metrics

	if m.Textfile != "" {
		if err := telemetry.WriteTextfile(m.Textfile, nil); err != nil {
			slog.Warn("failed to write metrics textfile", "path", m.Textfile, "error", err)
		}
	}

	if m.PushgatewayURL != "" {
		if err := telemetry.Push(ctx, m.PushgatewayURL, m.Job, runID, nil); err != nil {
			slog.Warn("failed to push metrics", "url", m.PushgatewayURL, "error", err)
		}
	}
}
