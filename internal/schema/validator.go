package schema

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"
)

// Errors maps an offending field path to the reasons it failed validation.
// Schema violations are always collected here, never returned as error.
type Errors map[string][]string

// Add records a reason for path
func (e Errors) Add(path, reason string) {
	e[path] = append(e[path], reason)
}

// Paths returns the offending paths in sorted order
func (e Errors) Paths() []string {
	paths := make([]string, 0, len(e))
	for p := range e {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// String renders one "path: reason; reason" line per field
func (e Errors) String() string {
	var b strings.Builder
	for _, p := range e.Paths() {
		fmt.Fprintf(&b, "%s: %s\n", p, strings.Join(e[p], "; "))
	}
	return b.String()
}

// Validate checks doc against the RVD schema.
// See (*Schema).Validate.
func Validate(doc Document) (Document, Errors) {
	return RVD.Validate(doc)
}

// Validate checks every declared field of doc. On success it returns a
// normalized copy of doc with every default-generated field materialized,
// integers as int and numbers as float64, and a nil Errors. On failure the
// returned document is nil and Errors lists every problem found.
//
// Keys not declared by the schema are carried over unvalidated.
func (s *Schema) Validate(doc Document) (Document, Errors) {
	errs := Errors{}
	out := validateGroup("", s.Fields, doc, errs)
	if len(errs) > 0 {
		return nil, errs
	}
	return out, nil
}

// DefaultDocument returns a minimal document built from the defaults of the
// RVD schema. It panics if that document does not validate: the defaults
// are part of the program, not of the data.
func DefaultDocument() Document {
	return RVD.DefaultDocument()
}

// DefaultDocument builds a document from every field's default and
// validates it. It panics when the defaults are inconsistent with the
// schema.
func (s *Schema) DefaultDocument() Document {
	doc := defaultGroup(s.Fields, true)
	normalized, errs := s.Validate(doc)
	if errs != nil {
		panic(fmt.Sprintf("schema defaults do not validate:\n%s", errs))
	}
	return normalized
}

// defaultGroup materializes defaults of fields. When includeRequired is
// false only optional fields are generated (used for omitted optional groups).
func defaultGroup(fields []Field, includeRequired bool) Document {
	doc := Document{}
	for _, f := range fields {
		if f.Kind == KindGroup && f.Default == nil {
			doc[f.Name] = defaultGroup(f.Fields, true)
			continue
		}
		if f.Default == nil {
			continue
		}
		if f.Required && !includeRequired {
			continue
		}
		doc[f.Name] = f.Default()
	}
	return doc
}

func validateGroup(prefix string, fields []Field, in map[string]any, errs Errors) Document {
	out := make(Document, len(in)+len(fields))
	declared := make(map[string]bool, len(fields))

	for _, f := range fields {
		declared[f.Name] = true
		path := joinPath(prefix, f.Name)

		raw, present := in[f.Name]
		if !present {
			switch {
			case f.Required:
				errs.Add(path, "required field")
			case f.Kind == KindGroup && f.Default == nil:
				out[f.Name] = validateGroup(path, f.Fields, defaultGroup(f.Fields, true), errs)
			case f.Default != nil:
				out[f.Name] = f.Default()
			}
			continue
		}

		if raw == nil {
			if f.Nullable {
				out[f.Name] = nil
			} else {
				errs.Add(path, "null value not allowed")
			}
			continue
		}

		if v, ok := validateValue(path, f, raw, errs); ok {
			out[f.Name] = v
		}
	}

	for k, v := range in {
		if !declared[k] {
			out[k] = v
		}
	}
	return out
}

func validateValue(path string, f Field, raw any, errs Errors) (any, bool) {
	switch f.Kind {
	case KindString:
		s, ok := raw.(string)
		if !ok {
			errs.Add(path, "must be of string type")
			return nil, false
		}
		return s, validateString(path, f, s, errs)

	case KindInteger:
		n, ok := toInt(raw)
		if !ok {
			errs.Add(path, "must be of integer type")
			return nil, false
		}
		return n, validateRange(path, f, float64(n), errs)

	case KindNumber:
		n, ok := toFloat(raw)
		if !ok {
			errs.Add(path, "must be of number type")
			return nil, false
		}
		return n, validateRange(path, f, n, errs)

	case KindScore:
		if s, ok := raw.(string); ok {
			if s != NoneScore {
				errs.Add(path, fmt.Sprintf("must be of number type or '%s'", NoneScore))
				return nil, false
			}
			return s, true
		}
		n, ok := toFloat(raw)
		if !ok {
			errs.Add(path, fmt.Sprintf("must be of number type or '%s'", NoneScore))
			return nil, false
		}
		return n, validateRange(path, f, n, errs)

	case KindList:
		items, ok := toList(raw)
		if !ok {
			errs.Add(path, "must be of list type")
			return nil, false
		}
		valid := true
		for i, item := range items {
			if _, ok := item.(string); !ok {
				errs.Add(fmt.Sprintf("%s.%d", path, i), "must be of string type")
				valid = false
			}
		}
		return items, valid

	case KindGroup:
		m, ok := raw.(map[string]any)
		if !ok {
			errs.Add(path, "must be of dict type")
			return nil, false
		}
		before := len(errs)
		g := validateGroup(path, f.Fields, m, errs)
		return g, len(errs) == before
	}
	errs.Add(path, fmt.Sprintf("unsupported kind %s", f.Kind))
	return nil, false
}

func validateString(path string, f Field, s string, errs Errors) bool {
	if s == "" {
		if f.AllowEmpty {
			return true
		}
		errs.Add(path, "empty values not allowed")
		return false
	}
	valid := true
	if f.MaxLength > 0 && utf8.RuneCountInString(s) > f.MaxLength {
		errs.Add(path, fmt.Sprintf("max length is %d", f.MaxLength))
		valid = false
	}
	if len(f.Allowed) > 0 && !contains(f.Allowed, s) {
		errs.Add(path, fmt.Sprintf("unallowed value %s", s))
		valid = false
	}
	if f.Pattern != nil && !f.Pattern.MatchString(s) {
		errs.Add(path, fmt.Sprintf("value does not match regex '%s'", f.Pattern.String()))
		valid = false
	}
	return valid
}

func validateRange(path string, f Field, n float64, errs Errors) bool {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		errs.Add(path, "must be a finite number")
		return false
	}
	if f.Range == nil {
		return true
	}
	valid := true
	if n < f.Range.Min {
		errs.Add(path, fmt.Sprintf("min value is %v", f.Range.Min))
		valid = false
	}
	if n > f.Range.Max {
		errs.Add(path, fmt.Sprintf("max value is %v", f.Range.Max))
		valid = false
	}
	return valid
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		// JSON sources decode every number as float64
		if n == math.Trunc(n) && !math.IsInf(n, 0) {
			return int(n), true
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	if i, ok := toInt(v); ok {
		return float64(i), true
	}
	return 0, false
}

func toList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		out := make([]any, len(l))
		copy(out, l)
		return out, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
