// Package labels applies curation label transitions to tracker records.
//
// State Flow:
//   - triage → a curator reviews a new record
//   - malformed → the body does not parse or validate; cleared once it does
//   - duplicate → deduplication found a primary record; a comment points at it
//   - invalid → reviewed and rejected
//   - mitigated → a fix is available
package labels

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aliasrobotics/RVD-sub000/internal/schema"
	"github.com/aliasrobotics/RVD-sub000/internal/types"
)

// Storage is the subset of the document store label transitions need
type Storage interface {
	UpdateRecord(ctx context.Context, id int, title, body string, labels []string) error
	AddComment(ctx context.Context, id int, body string) error
}

// TransitionState replaces fromLabel with toLabel on rec and, when comment is
// not empty, leaves comment on the record. Either label may be empty.
// rec.Labels is updated on success.
func TransitionState(ctx context.Context, store Storage, rec *types.Record, fromLabel, toLabel, comment string) error {
	labels := rec.Labels
	if fromLabel != "" {
		labels = types.WithoutLabel(labels, fromLabel)
	}
	if toLabel != "" {
		labels = types.WithLabel(labels, toLabel)
	}

	if err := store.UpdateRecord(ctx, rec.ID, rec.Title, rec.Body, labels); err != nil {
		return fmt.Errorf("failed to update labels of #%d: %w", rec.ID, err)
	}
	rec.Labels = labels

	if comment != "" {
		if err := store.AddComment(ctx, rec.ID, comment); err != nil {
			return fmt.Errorf("labels of #%d updated but failed to comment: %w", rec.ID, err)
		}
	}

	slog.Debug("label transition", "record", rec.ID, "from", fromLabel, "to", toLabel)
	return nil
}

// DuplicateComment is the comment left on a record marked as duplicate
func DuplicateComment(primaryID int) string {
	return fmt.Sprintf("Duplicate of #%d", primaryID)
}

// MarkDuplicate labels rec as a duplicate of primaryID. Records already
// labeled are left alone; the returned bool reports whether rec changed.
func MarkDuplicate(ctx context.Context, store Storage, rec *types.Record, primaryID int) (bool, error) {
	if rec.ID == primaryID {
		return false, fmt.Errorf("record #%d cannot duplicate itself", rec.ID)
	}
	if rec.HasLabel(types.LabelDuplicate) {
		return false, nil
	}
	if err := TransitionState(ctx, store, rec, types.LabelTriage, types.LabelDuplicate, DuplicateComment(primaryID)); err != nil {
		return false, err
	}
	return true, nil
}

// MalformedComment renders problems as a markdown list
func MalformedComment(problems schema.Errors) string {
	var b strings.Builder
	b.WriteString("This record does not validate:\n\n")
	for _, path := range problems.Paths() {
		for _, reason := range problems[path] {
			fmt.Fprintf(&b, "- `%s`: %s\n", path, reason)
		}
	}
	return b.String()
}

// MarkMalformed labels rec as malformed and comments the field problems.
// Records already labeled are left alone.
func MarkMalformed(ctx context.Context, store Storage, rec *types.Record, problems schema.Errors) (bool, error) {
	if rec.HasLabel(types.LabelMalformed) {
		return false, nil
	}
	if err := TransitionState(ctx, store, rec, "", types.LabelMalformed, MalformedComment(problems)); err != nil {
		return false, err
	}
	return true, nil
}

// ClearMalformed removes the malformed label from a record that validates again
func ClearMalformed(ctx context.Context, store Storage, rec *types.Record) (bool, error) {
	if !rec.HasLabel(types.LabelMalformed) {
		return false, nil
	}
	if err := TransitionState(ctx, store, rec, types.LabelMalformed, "", ""); err != nil {
		return false, err
	}
	return true, nil
}

// GetStateLabel returns the curation state label of a record, or "" when
// no state label is present.
func GetStateLabel(rec *types.Record) string {
	// Check for state labels in priority order
	stateLabels := []string{
		types.LabelInvalid,
		types.LabelDuplicate,
		types.LabelMalformed,
		types.LabelMitigated,
		types.LabelTriage,
	}
	for _, stateLabel := range stateLabels {
		if rec.HasLabel(stateLabel) {
			return stateLabel
		}
	}
	return ""
}
