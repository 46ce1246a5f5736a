package types

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by document stores for unknown record ids
var ErrNotFound = errors.New("record not found")

// Record states
const (
	StateOpen   = "open"
	StateClosed = "closed"
	StateAll    = "all"
)

// Record is a tracker issue holding one flaw document in its body
type Record struct {
	ID     int      `json:"id"`
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	State  string   `json:"state"`
	Labels []string `json:"labels"`
	URL    string   `json:"url,omitempty"`
}

// HasLabel reports whether the record carries label
func (r *Record) HasLabel(label string) bool {
	return HasLabel(r.Labels, label)
}

// Flaw parses the record body. Errors wrap ErrMalformedDocument.
func (r *Record) Flaw() (*Flaw, error) {
	doc, err := ParseIssueBody(r.Body)
	if err != nil {
		return nil, fmt.Errorf("record %d: %w", r.ID, err)
	}
	return FromDocument(doc), nil
}

// RecordFilter selects records from a store. All listed labels must be
// present; an empty State means StateOpen.
type RecordFilter struct {
	Labels []string
	State  string
}

// Validate checks the filter state
func (f RecordFilter) Validate() error {
	switch f.State {
	case "", StateOpen, StateClosed, StateAll:
		return nil
	}
	return fmt.Errorf("invalid state %q (want open, closed or all)", f.State)
}

// Matches reports whether r passes the filter
func (f RecordFilter) Matches(r *Record) bool {
	state := f.State
	if state == "" {
		state = StateOpen
	}
	if state != StateAll && r.State != state {
		return false
	}
	for _, l := range f.Labels {
		if !r.HasLabel(l) {
			return false
		}
	}
	return true
}

// WithLabel returns a copy of labels with label appended if absent
func WithLabel(labels []string, label string) []string {
	out := append([]string(nil), labels...)
	if !HasLabel(out, label) {
		out = append(out, label)
	}
	return out
}

// WithoutLabel returns a copy of labels without label
func WithoutLabel(labels []string, label string) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if l != label {
			out = append(out, l)
		}
	}
	return out
}
