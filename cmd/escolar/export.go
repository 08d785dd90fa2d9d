package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	exportdomain "github.com/smallbiznis/escolar/internal/export/domain"
	invoicedomain "github.com/smallbiznis/escolar/internal/invoice/domain"
	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	var (
		req      exportdomain.Request
		format   string
		kind     string
		statuses []string
		outDir   string
	)
	now := time.Now()
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Build the SEPA batch archive for a month",
		Long: `Selects invoices whose expiration date falls in the given month and
writes sepa_batch_{type}_{year}_{MM}.zip to --out, or uploads it to the
configured blob store with --upload.`,
		Example: `  escolar export --year 2024 --month 3 --format cuaderno --type enrollment
  escolar export --year 2024 --month 3 --format xml --type employee --status unpaid
  escolar export --year 2024 --month 3 --format xlsx --upload`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req.Format = exportdomain.Format(format)
			req.Type = exportdomain.Type(kind)
			for _, st := range statuses {
				req.Statuses = append(req.Statuses, invoicedomain.Status(st))
			}

			var svc exportdomain.Service
			stop, err := startApp(cmd.Context(), &svc)
			if err != nil {
				return err
			}
			defer stop()

			result, err := svc.Export(cmd.Context(), req)
			if err != nil {
				return err
			}
			if !req.Upload {
				path := filepath.Join(outDir, result.FileName)
				if err := os.WriteFile(path, result.Data, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", path, err)
				}
				result.URL = path
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().IntVar(&req.Year, "year", now.Year(), "expiration year")
	cmd.Flags().IntVar(&req.Month, "month", int(now.Month()), "expiration month")
	cmd.Flags().StringVar(&format, "format", string(exportdomain.FormatCuaderno), "cuaderno, xml or xlsx")
	cmd.Flags().StringVar(&kind, "type", string(exportdomain.TypeEnrollment), "enrollment or employee")
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "invoice statuses to include (repeatable), defaults to all but canceled")
	cmd.Flags().BoolVar(&req.Upload, "upload", false, "upload the archive to the blob store instead of writing it")
	cmd.Flags().StringVar(&outDir, "out", ".", "directory for the archive")
	return cmd
}
