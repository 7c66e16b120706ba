package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/movie-api/moviecheck/internal/movieapi"
	"github.com/movie-api/moviecheck/internal/report"
	"github.com/movie-api/moviecheck/internal/verify"
)

// healthModes maps the --mode values to the query modes that get checked.
// "" is the bare /health request.
var healthModes = map[string][]string{
	"all":   {"", "full", "light"},
	"bare":  {""},
	"light": {"light"},
	"full":  {"full"},
}

func newHealthCmd(a *app) *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check only the health endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			modes, ok := healthModes[mode]
			if !ok {
				return fmt.Errorf("invalid --mode %q (must be all, bare, light or full)", mode)
			}

			ctx, cancel := withSignals(cmd.Context())
			defer cancel()

			cfg := a.cfg
			console := report.NewConsole(a.stdout, cfg.Report.Verbose, cfg.Report.Color)
			client := movieapi.NewClient(cfg.Target.BaseURL, cfg.Target.PathPrefix, cfg.Target.Timeout)

			if err := verify.NewRunner(client, verify.HealthSteps(modes...), console, uuid.NewString()).Run(ctx); err != nil {
				return err
			}
			console.Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "all", "health mode to check: all, bare (no query string), light or full")
	cmd.Flags().BoolP("verbose", "v", false, "pretty-print health response bodies")
	return cmd
}
