package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/aliasrobotics/RVD-sub000/internal/report"
	"github.com/aliasrobotics/RVD-sub000/internal/types"
)

var (
	exportLabels   []string
	exportState    string
	exportAssigner string
)

var reportCmd = &cobra.Command{
	Use:   "report ID",
	Short: "Write the Markdown report of a flaw",
	Long: `Write rvd-<id>-<title slug>.md with the flaw details, decoded CVSS
components and mitigation into the output directory.

Example:
  rvd report 42
  rvd report 42 --out reports/`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		store := openStore(ctx)

		rec := selectRecords(ctx, store, args, types.RecordFilter{})[0]
		parsed, _ := parseRecords([]*types.Record{rec})
		if len(parsed) == 0 {
			fatalf("#%d does not hold a flaw document (run 'rvd validate %d')", rec.ID, rec.ID)
		}
		path, err := report.WriteMarkdown(cfg.OutDir, parsed[0].flaw)
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s %s\n", green("✓"), path)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export [ID]",
	Short: "Export flaws with a CVE id as CVE JSON 4.0",
	Long: `Write <CVE id>.json for one flaw, or for every flaw matching the filters
that carries a CVE id.

Example:
  rvd export --out cve/
  rvd export 42 --assigner cna@example.com`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		store := openStore(ctx)

		records := selectRecords(ctx, store, args, types.RecordFilter{Labels: exportLabels, State: exportState})
		parsed, _ := parseRecords(records)

		written, skipped := 0, 0
		bar := progressbar.Default(int64(len(parsed)), "exporting")
		for _, p := range parsed {
			_ = bar.Add(1)
			_, err := report.WriteCVE(cfg.OutDir, p.flaw, exportAssigner)
			if errors.Is(err, report.ErrNoCVE) {
				skipped++
				continue
			}
			if err != nil {
				fatalf("%v", err)
			}
			written++
		}
		_ = bar.Finish()
		slog.Debug("export done", "written", written, "without_cve", skipped)

		fmt.Printf("\n%s %d CVE records written to %s (%d flaws without a CVE id)\n", green("✓"), written, cfg.OutDir, skipped)
		if len(args) == 1 && written == 0 {
			fatalf("#%s has no CVE id", args[0])
		}
	},
}

func init() {
	rootCmd.AddCommand(reportCmd, exportCmd)
	for _, c := range []*cobra.Command{reportCmd, exportCmd} {
		c.Flags().String("out", "", "Output directory (default current directory)")
	}
	exportCmd.Flags().StringSliceVar(&exportLabels, "label", nil, "Only records carrying this label (repeatable)")
	exportCmd.Flags().StringVar(&exportState, "state", types.StateAll, "Record state: open, closed or all")
	exportCmd.Flags().StringVar(&exportAssigner, "assigner", report.DefaultAssigner, "CNA contact written as ASSIGNER")
}
