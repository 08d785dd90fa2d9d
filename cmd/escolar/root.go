package main

import (
	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "escolar",
		Short: "School billing: recurring invoices, SEPA batches and backups",
		Long: `escolar bills enrollments and employees every month, exports SEPA
payment batches (Cuaderno 19.14/34.14, pain.008/pain.001, xlsx) and
backs up or restores the school dataset.

Configuration comes from the environment (and .env); the billing
schedule is read from billing.yml under BILLING_CONFIG_PATH.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCmd(),
		newBillingCmd(),
		newExportCmd(),
		newBackfillCmd(),
		newBackupCmd(),
		newRestoreCmd(),
		newSeedCmd(),
	)
	return root
}
