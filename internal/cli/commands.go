package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"crnumbers/internal/core"
	applog "crnumbers/internal/log"
	"crnumbers/internal/storage"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := storage.RunMigrations(rootOpts.DatabasePath); err != nil {
				return err
			}
			version, dirty, err := storage.MigrationVersion(rootOpts.DatabasePath)
			if err != nil {
				return err
			}
			return output(rootOpts, cmd.OutOrStdout(),
				map[string]any{"version": version, "dirty": dirty},
				func(w io.Writer) {
					fmt.Fprintf(w, "schema at version %d (dirty=%t)\n", version, dirty)
				})
		},
	}
}

// NewBackfillCommand creates the backfill-totals command.
func NewBackfillCommand(rootOpts *RootOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "backfill-totals",
		Short: "Recompute stored report totals",
		Long: `Recompute totalFunds, totalAttendance and totalSmallGroup from the stored metric values.

By default only reports whose totalFunds is 0 are checked. Use --all to check every report.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer sess.Close()

			res, err := sess.maintenance.BackfillTotals(cmd.Context(), !all)
			sess.logger.LogOperation(cmd.Context(), applog.OpBackfill, err,
				applog.NewFields().With(applog.FieldCount, len(res.Updated)))
			if err != nil {
				return err
			}
			dates := dateStrings(res.Updated)
			return output(rootOpts, cmd.OutOrStdout(),
				map[string]any{"scanned": res.Scanned, "updated": dates},
				func(w io.Writer) {
					fmt.Fprintf(w, "scanned %d reports, updated %d\n", res.Scanned, len(dates))
					for _, d := range dates {
						fmt.Fprintf(w, "  %s\n", d)
					}
				})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "check every report, not only those with zero totalFunds")
	return cmd
}

// NewCleanPendingCommand creates the clean-pending command.
func NewCleanPendingCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clean-pending",
		Short: "Delete staging entries left behind for finalized dates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer sess.Close()

			res, err := sess.maintenance.SweepOrphanedStaging(cmd.Context())
			sess.logger.LogOperation(cmd.Context(), applog.OpSweep, err,
				applog.NewFields().With(applog.FieldCount, res.Deleted))
			if err != nil {
				return err
			}
			dates := dateStrings(res.Dates)
			return output(rootOpts, cmd.OutOrStdout(),
				map[string]any{"dates": dates, "deleted": res.Deleted},
				func(w io.Writer) {
					fmt.Fprintf(w, "deleted %d staging entries across %d dates\n", res.Deleted, len(dates))
				})
		},
	}
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	var year int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print dashboard rollups for a year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer sess.Close()

			st, err := sess.reports.Stats(cmd.Context(), year)
			if err != nil {
				return err
			}
			return output(rootOpts, cmd.OutOrStdout(), st, func(w io.Writer) { printStats(w, st) })
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "calendar year (default current year)")
	return cmd
}

func printStats(w io.Writer, st core.Stats) {
	fmt.Fprintf(w, "Year %d: %d reports\n", st.Year, st.YearToDate.Count)
	if st.YearToDate.Count > 0 {
		fmt.Fprintf(w, "%-22s %12s %10s %12s\n", "field", "total", "average", "highest")
		for _, f := range core.StatFields {
			h := st.YearToDate.Highest[f]
			fmt.Fprintf(w, "%-22s %12s %10s %12s\n", f,
				core.FormatValue(f, st.YearToDate.Totals[f]),
				core.FormatValue(f, st.YearToDate.Averages[f]),
				core.FormatValue(f, h.Value))
		}
	}
	if len(st.Years) > 0 {
		years := make([]string, len(st.Years))
		for i, y := range st.Years {
			years[i] = fmt.Sprint(y)
		}
		fmt.Fprintf(w, "Years on record: %s\n", strings.Join(years, ", "))
	}
}

func dateStrings(dates []core.Date) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.String()
	}
	return out
}
