package types

import (
	"strconv"
	"strings"
)

// Feature is one comparable value of a record. Missing marks a field that
// is present but empty, so that comparators can tell it apart from a value.
type Feature struct {
	Value   string `json:"value,omitempty"`
	Missing bool   `json:"missing,omitempty"`
}

// MissingFeature is the explicit "missing" marker
var MissingFeature = Feature{Missing: true}

// FeatureOf returns the feature for s, MissingFeature when s is empty
func FeatureOf(s string) Feature {
	if strings.TrimSpace(s) == "" {
		return MissingFeature
	}
	return Feature{Value: s}
}

// FeatureMap is a flat, comparison-ready view of a record
type FeatureMap map[string]Feature

// ToDuplicateFeatures flattens the document form of the flaw. Nested keys
// are joined with "_" (e.g. "severity_cvss-vector"), lists are joined with
// spaces and empty values become MissingFeature.
func (f *Flaw) ToDuplicateFeatures() FeatureMap {
	out := FeatureMap{}
	flattenInto(out, "", f.ToDocument())
	return out
}

func flattenInto(out FeatureMap, prefix string, v any) {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			key := k
			if prefix != "" {
				key = prefix + "_" + k
			}
			flattenInto(out, key, item)
		}
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := scalarString(item); s != "" {
				parts = append(parts, s)
			}
		}
		out[prefix] = FeatureOf(strings.Join(parts, " "))
	default:
		out[prefix] = FeatureOf(scalarString(t))
	}
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return stringFrom(v)
}
