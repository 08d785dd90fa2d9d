package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/escolar/internal/scheduler"
	"github.com/spf13/cobra"
)

func newBillingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "billing",
		Short: "Trigger billing runs and simulations",
	}
	cmd.AddCommand(newBillingRunCmd(), newBillingSimulateCmd())
	return cmd
}

func newBillingRunCmd() *cobra.Command {
	var (
		mode string
		at   string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Bill every due enrollment and employee now",
		Example: `  escolar billing run
  escolar billing run --mode employees
  escolar billing run --at 2024-03-01T06:00:00+01:00`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := scheduler.RunRequest{Mode: scheduler.Mode(mode)}
			if at != "" {
				now, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--at: %w", err)
				}
				req.Now = now
			}

			var sched *scheduler.Scheduler
			stop, err := startApp(cmd.Context(), &sched)
			if err != nil {
				return err
			}
			defer stop()

			summary, err := sched.RunOnce(cmd.Context(), req)
			if printErr := printJSON(cmd.OutOrStdout(), summary); printErr != nil && err == nil {
				err = printErr
			}
			return err
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(scheduler.ModeAll), "all, enrollments or employees")
	cmd.Flags().StringVar(&at, "at", "", "billing instant (RFC3339), defaults to now")
	return cmd
}

func newBillingSimulateCmd() *cobra.Command {
	var (
		req         scheduler.SimulationRequest
		months      string
		enrollments bool
		employees   bool
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Create simulation invoices for the months of a year",
		Example: `  escolar billing simulate --year 2024
  escolar billing simulate --year 2024 --months 9,10,11 --tag curso-24 --delete-existing`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parsed, err := parseMonths(months)
			if err != nil {
				return err
			}
			req.Months = parsed
			req.IncludeEnrollments = &enrollments
			req.IncludeEmployees = &employees

			var sched *scheduler.Scheduler
			stop, err := startApp(cmd.Context(), &sched)
			if err != nil {
				return err
			}
			defer stop()

			result, err := sched.Simulate(cmd.Context(), req)
			if printErr := printJSON(cmd.OutOrStdout(), result); printErr != nil && err == nil {
				err = printErr
			}
			return err
		},
	}
	cmd.Flags().IntVar(&req.Year, "year", time.Now().Year(), "year to simulate")
	cmd.Flags().StringVar(&months, "months", "", "comma-separated months, defaults to the whole year")
	cmd.Flags().StringVar(&req.Tag, "tag", "", "simulation tag, defaults to simulation-<year>")
	cmd.Flags().BoolVar(&req.DeleteExisting, "delete-existing", false, "delete invoices already simulated under the tag")
	cmd.Flags().BoolVar(&enrollments, "enrollments", true, "bill enrollments")
	cmd.Flags().BoolVar(&employees, "employees", true, "bill employees")
	return cmd
}

func parseMonths(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(raw, ",") {
		m, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || m < 1 || m > 12 {
			return nil, fmt.Errorf("--months: invalid month %q", part)
		}
		out = append(out, m)
	}
	return out, nil
}
