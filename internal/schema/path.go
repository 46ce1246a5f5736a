package schema

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Get returns the value at a dotted path, e.g. "severity.cvss-score"
func Get(doc Document, path string) (any, bool) {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// Set stores value at a dotted path, creating missing groups
func Set(doc Document, path string, value any) error {
	parts := strings.Split(path, ".")
	cur := doc
	for i, part := range parts[:len(parts)-1] {
		next, ok := cur[part]
		if !ok || next == nil {
			created := map[string]any{}
			cur[part] = created
			cur = created
			continue
		}
		m, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("%s is not a group", strings.Join(parts[:i+1], "."))
		}
		cur = m
	}
	cur[parts[len(parts)-1]] = value
	return nil
}

// Unset removes the value at a dotted path and reports whether it was set
func Unset(doc Document, path string) bool {
	parts := strings.Split(path, ".")
	parent := doc
	if len(parts) > 1 {
		v, ok := Get(doc, strings.Join(parts[:len(parts)-1], "."))
		if !ok {
			return false
		}
		if parent, ok = v.(map[string]any); !ok {
			return false
		}
	}
	last := parts[len(parts)-1]
	if _, ok := parent[last]; !ok {
		return false
	}
	delete(parent, last)
	return true
}

// ParseValue converts text typed by a user into a value of the kind
// declared for path. Strings are taken verbatim, lists are split on sep
// unless written as a YAML flow sequence, and everything else (including
// paths outside the schema) is parsed as YAML.
func (s *Schema) ParseValue(path, raw, sep string) (any, error) {
	field, declared := s.Lookup(path)
	switch {
	case declared && field.Kind == KindGroup:
		return nil, fmt.Errorf("%s is a group, set its fields instead", path)
	case declared && field.Kind == KindString:
		return strings.Trim(raw, `"`), nil
	case declared && field.Kind == KindList && !strings.HasPrefix(raw, "["):
		items := []any{}
		for _, item := range strings.Split(raw, sep) {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		return items, nil
	}
	var value any
	if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
		return nil, fmt.Errorf("invalid value for %s: %w", path, err)
	}
	return value, nil
}
