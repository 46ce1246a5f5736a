package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/aliasrobotics/RVD-sub000/internal/report"
	"github.com/aliasrobotics/RVD-sub000/internal/types"
)

var (
	summaryLabels []string
	summaryState  string
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show statistics of the database",
	Long: `Count records by flaw type, severity band, phase, vendor, year reported
and label.

Example:
  rvd summary
  rvd summary --state all --label vulnerability`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		store := openStore(ctx)

		records := loadRecords(ctx, store, types.RecordFilter{Labels: summaryLabels, State: summaryState})
		report.Summarize(records).Render(os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(summaryCmd)
	summaryCmd.Flags().StringSliceVar(&summaryLabels, "label", nil, "Only records carrying this label (repeatable)")
	summaryCmd.Flags().StringVar(&summaryState, "state", types.StateAll, "Record state: open, closed or all")
}
