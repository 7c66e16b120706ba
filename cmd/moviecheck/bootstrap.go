package main

import (
	"github.com/spf13/cobra"
)

func newBootstrapCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap",
		Short: "Recreate the Redis container without running any checks",
		Long: `bootstrap force-removes the configured container, starts a fresh one from
the configured image with the port mapping, and waits the ready delay.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withSignals(cmd.Context())
			defer cancel()
			return a.recreateContainer(ctx)
		},
	}
}
