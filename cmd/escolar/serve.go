package main

import (
	"github.com/smallbiznis/escolar/internal/scheduler"
	"github.com/smallbiznis/escolar/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the admin HTTP server and the billing ticker",
		Long: `Starts the admin HTTP API on HTTP_ADDR and, when SCHEDULER_ENABLED is
true, the in-process ticker that runs billing on the configured day.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := fx.New(
				modules(),
				server.Module,
				scheduler.Ticker,
			)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}
