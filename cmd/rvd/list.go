package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/aliasrobotics/RVD-sub000/internal/labels"
	"github.com/aliasrobotics/RVD-sub000/internal/types"
)

var (
	listLabels []string
	listState  string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List records",
	Long: `List the records of the store with their type, curation state and title.

Example:
  rvd list
  rvd list --label vulnerability --label triage
  rvd list --state all`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		store := openStore(ctx)

		records := loadRecords(ctx, store, types.RecordFilter{Labels: listLabels, State: listState})
		if len(records) == 0 {
			fmt.Println(gray("No records"))
			return
		}
		fmt.Println(renderRecordTable(records))
	},
}

func renderRecordTable(records []*types.Record) string {
	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"ID", "Type", "State", "Title", "Labels"})
	for _, rec := range records {
		flawType := "?"
		if flaw, err := rec.Flaw(); err == nil && flaw.Type.IsValid() {
			flawType = string(flaw.Type)
		}
		tw.AppendRow(table.Row{rec.ID, flawType, labels.GetStateLabel(rec), rec.Title, strings.Join(rec.Labels, ", ")})
	}
	tw.AppendFooter(table.Row{"", "", "", fmt.Sprintf("%d records", len(records))})
	return tw.Render()
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringSliceVar(&listLabels, "label", nil, "Only records carrying this label (repeatable)")
	listCmd.Flags().StringVar(&listState, "state", types.StateOpen, "Record state: open, closed or all")
}
