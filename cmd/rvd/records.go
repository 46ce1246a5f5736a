package main

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/fatih/color"

	"github.com/aliasrobotics/RVD-sub000/internal/deduplication"
	"github.com/aliasrobotics/RVD-sub000/internal/schema"
	"github.com/aliasrobotics/RVD-sub000/internal/storage"
	"github.com/aliasrobotics/RVD-sub000/internal/types"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
)

// flawRecord is a record whose body parsed into a flaw
type flawRecord struct {
	rec  *types.Record
	flaw *types.Flaw
}

// parseRecords splits records into parsed flaws and malformed records.
// The flaw id is taken from the tracker.
func parseRecords(records []*types.Record) ([]flawRecord, []*types.Record) {
	var parsed []flawRecord
	var malformed []*types.Record
	for _, rec := range records {
		flaw, err := rec.Flaw()
		if err != nil {
			slog.Warn("skipping malformed record", "record", rec.ID, "err", err)
			malformed = append(malformed, rec)
			continue
		}
		flaw.ID = rec.ID
		parsed = append(parsed, flawRecord{rec: rec, flaw: flaw})
	}
	return parsed, malformed
}

// dedupCorpus builds the engine corpus in tracker id order
func dedupCorpus(parsed []flawRecord) []deduplication.Record {
	corpus := make([]deduplication.Record, 0, len(parsed))
	for _, p := range parsed {
		corpus = append(corpus, deduplication.RecordFromFlaw(p.flaw, p.rec.HasLabel(types.LabelDuplicate)))
	}
	sort.SliceStable(corpus, func(i, j int) bool { return corpus[i].ID < corpus[j].ID })
	return corpus
}

// checkRecord validates the body of rec. A body that does not parse is
// reported under the "body" path.
func checkRecord(rec *types.Record) schema.Errors {
	doc, err := types.ParseIssueBody(rec.Body)
	if err != nil {
		errs := schema.Errors{}
		errs.Add("body", err.Error())
		return errs
	}
	_, problems := schema.Validate(doc)
	return problems
}

// loadRecords lists records or exits
func loadRecords(ctx context.Context, store storage.Store, filter types.RecordFilter) []*types.Record {
	records, err := store.ListRecords(ctx, filter)
	if err != nil {
		fatalf("failed to list records: %v", err)
	}
	return records
}

// selectRecords returns the record named by args[0], or every record
// matching filter when args is empty
func selectRecords(ctx context.Context, store storage.Store, args []string, filter types.RecordFilter) []*types.Record {
	if len(args) == 0 {
		return loadRecords(ctx, store, filter)
	}
	id, err := parseID(args[0])
	if err != nil {
		fatalf("%v", err)
	}
	rec, err := store.GetRecord(ctx, id)
	if err != nil {
		fatalf("failed to get #%d: %v", id, err)
	}
	return []*types.Record{rec}
}

// parseID accepts "42" and "#42"
func parseID(arg string) (int, error) {
	if len(arg) > 0 && arg[0] == '#' {
		arg = arg[1:]
	}
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid record id %q", arg)
	}
	return id, nil
}
