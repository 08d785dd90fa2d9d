package main

import (
	"fmt"
	"os"
	"time"

	"github.com/smallbiznis/escolar/internal/backup"
	"github.com/spf13/cobra"
)

func newBackupCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write every entity and uploaded asset to a zip archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if out == "" {
				out = fmt.Sprintf("escolar_backup_%s.zip", time.Now().UTC().Format("20060102_150405"))
			}

			var svc *backup.Service
			stop, err := startApp(cmd.Context(), &svc)
			if err != nil {
				return err
			}
			defer stop()

			f, err := os.Create(out)
			if err != nil {
				return err
			}
			manifest, err := svc.Backup(cmd.Context(), f)
			if closeErr := f.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				_ = os.Remove(out)
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "backup written to %s\n", out)
			return printJSON(cmd.OutOrStdout(), manifest)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "archive path (default escolar_backup_<timestamp>.zip)")
	return cmd
}

func newRestoreCmd() *cobra.Command {
	var opts backup.RestoreOptions
	cmd := &cobra.Command{
		Use:   "restore <archive>",
		Short: "Restore a backup archive, matching rows by documentId",
		Long: `Rows present in the archive are created or overwritten; relations are
re-linked to the ids of the target database. Rows and asset files that are
not in the archive are kept and reported unless --prune is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			info, err := f.Stat()
			if err != nil {
				return err
			}

			var svc *backup.Service
			stop, err := startApp(cmd.Context(), &svc)
			if err != nil {
				return err
			}
			defer stop()

			report, err := svc.Restore(cmd.Context(), f, info.Size(), opts)
			if report != nil {
				if printErr := printJSON(cmd.OutOrStdout(), report); printErr != nil && err == nil {
					err = printErr
				}
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&opts.Prune, "prune", false, "delete rows and asset files absent from the archive")
	return cmd
}
