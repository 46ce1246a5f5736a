package types

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/aliasrobotics/RVD-sub000/internal/schema"
)

// ExtensionEntry is one additional field: a one or two element path and its value
type ExtensionEntry struct {
	Path  []string
	Value any
}

// Key returns the dotted path
func (e ExtensionEntry) Key() string {
	return strings.Join(e.Path, ".")
}

// ExtensionMap is an ordered mapping from path to value for fields outside
// the schema. The zero value is ready to use.
type ExtensionMap struct {
	entries []ExtensionEntry
	index   map[string]int
}

// Set stores value at path, replacing an earlier value at the same path
// while keeping its original position
func (m *ExtensionMap) Set(value any, path ...string) {
	if len(path) == 0 {
		return
	}
	if m.index == nil {
		m.index = map[string]int{}
	}
	entry := ExtensionEntry{Path: append([]string(nil), path...), Value: value}
	key := entry.Key()
	if i, ok := m.index[key]; ok {
		m.entries[i] = entry
		return
	}
	m.index[key] = len(m.entries)
	m.entries = append(m.entries, entry)
}

// Len returns the number of entries
func (m *ExtensionMap) Len() int {
	return len(m.entries)
}

// Entries returns the entries in insertion order
func (m *ExtensionMap) Entries() []ExtensionEntry {
	out := make([]ExtensionEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// MergeInto applies the entries to doc in insertion order.
//
// An entry overrides a value only at leaf level: a one-element path
// replaces a top-level scalar or adds a new key, a two-element path sets a
// key inside an existing group or creates the group when the key is
// absent. Entries that would replace a group with a scalar, or nest a
// value under a scalar, are skipped.
func (m *ExtensionMap) MergeInto(doc schema.Document) {
	for _, e := range m.entries {
		value := deepCopy(e.Value)
		switch len(e.Path) {
		case 1:
			key := e.Path[0]
			if _, isGroup := doc[key].(map[string]any); isGroup {
				slog.Warn("additional field would replace a group, skipped", "field", key)
				continue
			}
			doc[key] = value

		case 2:
			key, sub := e.Path[0], e.Path[1]
			current, present := doc[key]
			if !present {
				doc[key] = schema.Document{sub: value}
				continue
			}
			group, isGroup := current.(map[string]any)
			if !isGroup {
				slog.Warn("additional field nested under a scalar, skipped", "field", e.Key())
				continue
			}
			if _, subGroup := group[sub].(map[string]any); subGroup {
				slog.Warn("additional field would replace a group, skipped", "field", e.Key())
				continue
			}
			group[sub] = value

		default:
			slog.Warn("additional field path too deep, skipped", "field", e.Key())
		}
	}
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = deepCopy(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = deepCopy(item)
		}
		return out
	}
	return v
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
