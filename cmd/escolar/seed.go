package main

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/escolar/internal/seed"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func newSeedCmd() *cobra.Command {
	var year int
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a demo company, course, family and employee",
		Long: `Inserts a small demo school for the course starting in September of
--year. Rows already present are left as they are.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				db   *gorm.DB
				node *snowflake.Node
			)
			stop, err := startApp(cmd.Context(), &db, &node)
			if err != nil {
				return err
			}
			defer stop()

			res, err := seed.EnsureDemoSchool(cmd.Context(), db, node, year)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().IntVar(&year, "year", time.Now().Year(), "first calendar year of the course")
	return cmd
}
