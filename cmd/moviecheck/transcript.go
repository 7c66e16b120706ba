package main

import (
	"github.com/spf13/cobra"

	"github.com/movie-api/moviecheck/internal/storage"
)

func newTranscriptCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "transcript <run-id>",
		Short: "Print the archived results of a previous run",
		Long: `transcript reads <prefix>/<run-id>.jsonl back from the configured artifact
backend and prints it as JSON lines, one result per step.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withSignals(cmd.Context())
			defer cancel()

			store, release, err := a.openStore()
			if err != nil {
				return err
			}
			defer release()

			data, err := storage.Fetch(ctx, store, a.cfg.Artifacts.Prefix, args[0])
			if err != nil {
				return err
			}
			_, err = a.stdout.Write(data)
			return err
		},
	}
}
