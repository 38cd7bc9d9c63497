// Package report implements the "report" command, a one-shot analytics
// dashboard for a date range printed as JSON.
package report

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/campusfit/campusfit-go/internal/analytics"
	"github.com/campusfit/campusfit-go/internal/conf"
	"github.com/campusfit/campusfit-go/internal/datastore"
)

// Command creates the report command.
func Command(settings *conf.Settings) *cobra.Command {
	var start, end, timeframe, mode string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the analytics dashboard as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			complianceMode, err := analytics.ParseComplianceMode(mode)
			if err != nil {
				return err
			}
			today := time.Now().In(settings.Location())
			r := analytics.RangeForTimeframe(timeframe, today)
			if start != "" || end != "" {
				if r, err = analytics.ParseDateRange(start, end); err != nil {
					return err
				}
			}

			store, err := datastore.New(settings)
			if err != nil {
				return err
			}
			if err := store.Open(); err != nil {
				return err
			}
			defer store.Close()

			snap, err := store.Snapshot(cmd.Context(), analytics.SnapshotRange(r, today).Filter())
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(analytics.BuildDashboard(snap, r, today, complianceMode))
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "Start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "End date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&timeframe, "timeframe", analytics.TimeframeWeek, "week, month or year when no dates are given")
	cmd.Flags().StringVar(&mode, "mode", string(analytics.ModeQuadrant), "Compliance view: quadrant or year")

	return cmd
}
