package main

import (
	"github.com/smallbiznis/escolar/internal/snapshot"
	"github.com/spf13/cobra"
)

func newBackfillCmd() *cobra.Command {
	var req snapshot.BackfillRequest
	cmd := &cobra.Command{
		Use:   "backfill-snapshots",
		Short: "Capture party snapshots on invoices that have none",
		Long: `Invoices created before snapshots existed get one built from the
current school data. Invoices that already carry a snapshot are never
touched, so the command can be re-run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var backfiller *snapshot.Backfiller
			stop, err := startApp(cmd.Context(), &backfiller)
			if err != nil {
				return err
			}
			defer stop()

			result, err := backfiller.Run(cmd.Context(), req)
			if printErr := printJSON(cmd.OutOrStdout(), result); printErr != nil && err == nil {
				err = printErr
			}
			return err
		},
	}
	cmd.Flags().IntVar(&req.BatchSize, "batch", 0, "invoices per page (default 200)")
	cmd.Flags().BoolVar(&req.DryRun, "dry-run", false, "report without writing")
	return cmd
}
