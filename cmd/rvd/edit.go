package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aliasrobotics/RVD-sub000/internal/repl"
	"github.com/aliasrobotics/RVD-sub000/internal/schema"
	"github.com/aliasrobotics/RVD-sub000/internal/storage"
	"github.com/aliasrobotics/RVD-sub000/internal/types"
)

var editCmd = &cobra.Command{
	Use:   "edit ID",
	Short: "Edit the fields of a record interactively",
	Long: `Open a field editor on a record. Set fields with 'path = value'
(e.g. severity.cvss-vector = CVSS:3.0/AV:N/...), inspect them with 'show',
check them with 'validate' and store them with 'save'. Only documents that
validate are saved. A record whose body does not parse starts from the
schema defaults.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		store := openStore(ctx)

		rec := selectRecords(ctx, store, args, types.RecordFilter{})[0]
		doc := editDocument(rec)

		rl, err := repl.NewReadline("edit> ")
		if err != nil {
			fatalf("%v", err)
		}
		onExit(func() { _ = rl.Close() })

		editor := repl.NewEditor(rl, os.Stdout, doc, saveRecord(store, rec))
		saved, err := editor.Run(ctx, fmt.Sprintf("#%d %s", rec.ID, rec.Title))
		if err != nil {
			fatalf("%v", err)
		}
		if saved {
			fmt.Printf("%s #%d updated\n", green("✓"), rec.ID)
		}
	},
}

// editDocument returns the document stored in rec, or the schema defaults
// carrying the record title when the body does not parse
func editDocument(rec *types.Record) schema.Document {
	doc, err := types.ParseIssueBody(rec.Body)
	if err != nil {
		fmt.Printf("%s #%d: %v, starting from the defaults\n", yellow("⚠"), rec.ID, err)
		doc = schema.DefaultDocument()
		doc["title"] = types.TitleFromIssue(rec.Title)
	}
	doc["id"] = rec.ID
	return doc
}

// saveRecord writes an edited document back into rec. The title follows
// the flaw title, the type label follows the flaw type and the malformed
// label is dropped.
func saveRecord(store storage.Store, rec *types.Record) repl.SaveFunc {
	return func(ctx context.Context, doc schema.Document) error {
		flaw := types.FromDocument(doc)
		flaw.ID = rec.ID
		body, err := types.FormatIssueBody(flaw.ToDocument())
		if err != nil {
			return err
		}

		recordLabels := types.WithoutLabel(rec.Labels, types.LabelMalformed)
		for _, t := range []string{types.LabelVulnerability, types.LabelWeakness, types.LabelExposure} {
			recordLabels = types.WithoutLabel(recordLabels, t)
		}
		for _, l := range flaw.Labels() {
			recordLabels = types.WithLabel(recordLabels, l)
		}

		title := flaw.IssueTitle()
		if err := store.UpdateRecord(ctx, rec.ID, title, body, recordLabels); err != nil {
			return err
		}
		rec.Title, rec.Body, rec.Labels = title, body, recordLabels
		return nil
	}
}

func init() {
	rootCmd.AddCommand(editCmd)
}
