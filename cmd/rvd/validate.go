package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/aliasrobotics/RVD-sub000/internal/labels"
	"github.com/aliasrobotics/RVD-sub000/internal/schema"
	"github.com/aliasrobotics/RVD-sub000/internal/types"
)

var (
	validateLabels []string
	validateState  string
	validateMark   bool
)

var validateCmd = &cobra.Command{
	Use:   "validate [ID]",
	Short: "Validate record bodies against the flaw schema",
	Long: `Validate one record, or every record matching the filters, and print the
problems of each failing field.

With --mark, failing records get the malformed label and a comment listing
the problems; records that validate again lose the label.

Example:
  rvd validate
  rvd validate 42
  rvd validate --label vulnerability --mark`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		store := openStore(ctx)

		records := selectRecords(ctx, store, args, types.RecordFilter{Labels: validateLabels, State: validateState})

		failing := map[int]schema.Errors{}
		bar := progressbar.Default(int64(len(records)), "validating")
		for _, rec := range records {
			if problems := checkRecord(rec); len(problems) > 0 {
				failing[rec.ID] = problems
			}
			_ = bar.Add(1)
		}
		_ = bar.Finish()
		fmt.Println()

		marked, cleared := 0, 0
		for _, rec := range records {
			problems, bad := failing[rec.ID]
			if bad {
				fmt.Printf("%s #%d %s\n", red("✗"), rec.ID, rec.Title)
				for _, path := range problems.Paths() {
					fmt.Printf("    %s: %s\n", cyan(path), strings.Join(problems[path], "; "))
				}
			}
			if !validateMark {
				continue
			}
			var changed bool
			var err error
			if bad {
				changed, err = labels.MarkMalformed(ctx, store, rec, problems)
				if changed {
					marked++
				}
			} else {
				changed, err = labels.ClearMalformed(ctx, store, rec)
				if changed {
					cleared++
				}
			}
			if err != nil {
				slog.Error("could not update labels", "record", rec.ID, "err", err)
			}
		}

		fmt.Printf("\n%s %d valid, %d failing\n", green("✓"), len(records)-len(failing), len(failing))
		if validateMark {
			fmt.Printf("  %d labeled %s, %d cleared\n", marked, types.LabelMalformed, cleared)
		}
		if len(failing) > 0 {
			exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringSliceVar(&validateLabels, "label", nil, "Only records carrying this label (repeatable)")
	validateCmd.Flags().StringVar(&validateState, "state", types.StateOpen, "Record state: open, closed or all")
	validateCmd.Flags().BoolVar(&validateMark, "mark", false, "Label failing records malformed and clear the label from valid ones")
}
