// Package importer turns CSV sheets into validated flaw documents.
//
// The header row names schema paths (title, severity.cvss-vector,
// flaw.phase, ...). Cells are parsed by the declared kind of their column;
// list columns such as keywords and links are split on ';'. Fields a row
// leaves empty keep the schema defaults.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aliasrobotics/RVD-sub000/internal/schema"
	"github.com/aliasrobotics/RVD-sub000/internal/types"
)

// ListSeparator splits list cells
const ListSeparator = ";"

// Row is one imported CSV line
type Row struct {
	// Line is the 1-based line number in the sheet
	Line     int
	Document schema.Document
	// Problems is non-empty when the document does not validate
	Problems schema.Errors
	// Err is set when a cell could not be parsed at all
	Err error
}

// Valid reports whether the row produced a valid document
func (r Row) Valid() bool {
	return r.Err == nil && len(r.Problems) == 0
}

// Flaw returns the flaw of a valid row
func (r Row) Flaw() *types.Flaw {
	return types.FromDocument(r.Document)
}

// Read parses every data row of a sheet. Rows that fail are returned with
// Err or Problems set; only a broken header or an unreadable stream fail
// the whole read.
func Read(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty sheet: missing header row")
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	columns, err := parseHeader(header)
	if err != nil {
		return nil, err
	}

	var rows []Row
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				rows = append(rows, Row{Line: line, Err: err})
				continue
			}
			return rows, fmt.Errorf("failed to read line %d: %w", line, err)
		}
		if blank(record) {
			continue
		}
		rows = append(rows, buildRow(line, columns, record))
	}
	return rows, nil
}

func parseHeader(header []string) ([]string, error) {
	seen := make(map[string]bool, len(header))
	columns := make([]string, len(header))
	for i, h := range header {
		path := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if path == "" {
			return nil, fmt.Errorf("column %d has no name", i+1)
		}
		if seen[path] {
			return nil, fmt.Errorf("duplicate column %q", path)
		}
		if _, declared := schema.RVD.Lookup(path); !declared {
			slog.Warn("column is not a schema field, keeping it as an extra field", "column", path)
		}
		seen[path] = true
		columns[i] = path
	}
	return columns, nil
}

func buildRow(line int, columns, record []string) Row {
	row := Row{Line: line, Document: schema.DefaultDocument()}
	if len(record) > len(columns) {
		row.Err = fmt.Errorf("line %d: %d cells for %d columns", line, len(record), len(columns))
		return row
	}
	for i, cell := range record {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		value, err := schema.RVD.ParseValue(columns[i], cell, ListSeparator)
		if err != nil {
			row.Err = fmt.Errorf("line %d: %w", line, err)
			return row
		}
		if err := schema.Set(row.Document, columns[i], value); err != nil {
			row.Err = fmt.Errorf("line %d: %w", line, err)
			return row
		}
	}
	normalized, problems := schema.Validate(row.Document)
	if len(problems) > 0 {
		row.Problems = problems
		return row
	}
	row.Document = normalized
	return row
}

func blank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// Store files new records
type Store interface {
	CreateRecord(ctx context.Context, title, body string, labels []string) (*types.Record, error)
	UpdateRecord(ctx context.Context, id int, title, body string, labels []string) error
}

// DuplicateCheck tells whether a flaw duplicates a record already filed.
// Push adds every created flaw so later rows are checked against it.
type DuplicateCheck interface {
	IsDuplicate(flaw *types.Flaw) (bool, error)
	Add(flaw *types.Flaw)
}

// Push files every valid row as a new record, then rewrites it with the id
// the tracker assigned. Extra labels are added to the type label. With a
// non-nil check, rows duplicating a filed record are skipped and returned.
// It returns the records created before the first failure.
func Push(ctx context.Context, store Store, rows []Row, labels []string, check DuplicateCheck) ([]*types.Record, []Row, error) {
	var created []*types.Record
	var duplicates []Row
	for _, row := range rows {
		if !row.Valid() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return created, duplicates, err
		}
		flaw := row.Flaw()
		flaw.ID = 0
		if check != nil {
			dup, err := check.IsDuplicate(flaw)
			if err != nil {
				return created, duplicates, fmt.Errorf("line %d: duplicate check failed: %w", row.Line, err)
			}
			if dup {
				slog.Warn("row duplicates a filed record, skipped", "line", row.Line, "title", flaw.Title)
				duplicates = append(duplicates, row)
				continue
			}
		}
		recordLabels := flaw.Labels()
		for _, l := range labels {
			recordLabels = types.WithLabel(recordLabels, l)
		}

		body, err := types.FormatIssueBody(flaw.ToDocument())
		if err != nil {
			return created, duplicates, fmt.Errorf("line %d: %w", row.Line, err)
		}
		rec, err := store.CreateRecord(ctx, flaw.Title, body, recordLabels)
		if err != nil {
			return created, duplicates, fmt.Errorf("line %d: failed to create record: %w", row.Line, err)
		}

		flaw.ID = rec.ID
		if body, err = types.FormatIssueBody(flaw.ToDocument()); err != nil {
			return created, duplicates, fmt.Errorf("line %d: %w", row.Line, err)
		}
		if err := store.UpdateRecord(ctx, rec.ID, flaw.IssueTitle(), body, recordLabels); err != nil {
			return created, duplicates, fmt.Errorf("line %d: failed to set id of #%d: %w", row.Line, rec.ID, err)
		}
		rec.Title, rec.Body = flaw.IssueTitle(), body
		created = append(created, rec)
		if check != nil {
			check.Add(flaw)
		}
	}
	return created, duplicates, nil
}
