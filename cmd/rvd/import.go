package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/aliasrobotics/RVD-sub000/internal/deduplication"
	"github.com/aliasrobotics/RVD-sub000/internal/importer"
	"github.com/aliasrobotics/RVD-sub000/internal/storage"
	"github.com/aliasrobotics/RVD-sub000/internal/types"
)

var (
	importPush            bool
	importLabels          []string
	importAllowDuplicates bool
)

var importCmd = &cobra.Command{
	Use:   "import FILE.csv",
	Short: "Import flaws from a CSV sheet",
	Long: `Read flaws from a CSV sheet whose header names schema fields, e.g.

  title,type,cwe,keywords,severity.cvss-vector,flaw.phase

List cells (keywords, links) are split on ';'. Missing fields take the
schema defaults. Every row is validated; failing rows are reported and
skipped. Without --push the sheet is only checked.

When deduplication settings exist, every row is checked against the
records in the tracker and the rows filed before it; duplicates are
reported and skipped unless --allow-duplicates is given.

Example:
  rvd import findings.csv
  rvd import findings.csv --push --label triage`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		f, err := os.Open(args[0])
		if err != nil {
			fatalf("%v", err)
		}
		defer func() { _ = f.Close() }()

		rows, err := importer.Read(f)
		if err != nil {
			fatalf("failed to read %s: %v", args[0], err)
		}

		valid := printRowProblems(rows)
		fmt.Printf("\n%s %d valid rows, %d skipped\n", green("✓"), valid, len(rows)-valid)
		if !importPush || valid == 0 {
			return
		}

		ctx := context.Background()
		store := openStore(ctx)
		acquireLock("import")

		var check importer.DuplicateCheck
		if !importAllowDuplicates {
			checker, err := duplicateChecker(ctx, store)
			if err != nil {
				fatalf("%v", err)
			}
			if checker != nil {
				check = checker
			}
		}

		bar := progressbar.Default(int64(valid), "importing")
		created, duplicates, err := importer.Push(ctx, &progressStore{Store: store, bar: bar}, rows, importLabels, check)
		_ = bar.Finish()
		fmt.Println()
		for _, rec := range created {
			fmt.Printf("  %s #%d %s\n", green("+"), rec.ID, rec.Title)
		}
		for _, row := range duplicates {
			fmt.Printf("  %s line %d %s (duplicate, skipped)\n", yellow("="), row.Line, row.Flaw().Title)
		}
		if err != nil {
			fatalf("%v (%d records created before the failure)", err, len(created))
		}
	},
}

// printRowProblems reports invalid rows and returns the number of valid ones
func printRowProblems(rows []importer.Row) int {
	valid := 0
	for _, row := range rows {
		switch {
		case row.Err != nil:
			fmt.Printf("%s line %d: %v\n", red("✗"), row.Line, row.Err)
		case len(row.Problems) > 0:
			fmt.Printf("%s line %d:\n", red("✗"), row.Line)
			for _, path := range row.Problems.Paths() {
				fmt.Printf("    %s: %s\n", cyan(path), strings.Join(row.Problems[path], "; "))
			}
		default:
			valid++
		}
	}
	return valid
}

// duplicateChecker builds a checker over every record of the store. It
// returns nil when no deduplication settings were trained.
func duplicateChecker(ctx context.Context, store storage.Store) (*deduplication.Checker, error) {
	if _, err := os.Stat(cfg.Dedup.SettingsPath); errors.Is(err, fs.ErrNotExist) {
		fmt.Printf("%s no deduplication settings at %s, rows are not checked for duplicates\n",
			yellow("⚠"), cfg.Dedup.SettingsPath)
		return nil, nil
	}
	engine, err := loadEngine()
	if err != nil {
		return nil, err
	}
	parsed, _ := parseRecords(loadRecords(ctx, store, types.RecordFilter{State: types.StateAll}))
	corpus := dedupCorpus(parsed)
	slog.Debug("checking rows for duplicates", "corpus", len(corpus))
	return deduplication.NewChecker(engine, corpus), nil
}

// progressStore advances bar after every created record
type progressStore struct {
	importer.Store
	bar *progressbar.ProgressBar
}

func (p *progressStore) UpdateRecord(ctx context.Context, id int, title, body string, labels []string) error {
	err := p.Store.UpdateRecord(ctx, id, title, body, labels)
	_ = p.bar.Add(1)
	return err
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().BoolVar(&importPush, "push", false, "Create a record for every valid row")
	importCmd.Flags().BoolVar(&importAllowDuplicates, "allow-duplicates", false, "File rows even when they duplicate existing records")
	importCmd.Flags().StringSliceVar(&importLabels, "label", []string{types.LabelTriage}, "Labels added to created records")
}
