// Package schema declares the shape of an RVD flaw document and validates
// raw documents against it.
//
// A schema is plain data: a tree of Field descriptors. Each descriptor names
// its kind, whether it is required, the constraints that apply to its value
// and, when the field may be left out, a default generator. The generic
// validator in validator.go walks this tree; nothing in this file executes
// behavior beyond building descriptors.
package schema

import (
	"fmt"
	"regexp"
	"strings"
)

// Document is a structured, YAML-equivalent nested mapping.
// Nested groups are map[string]any, lists are []any.
type Document = map[string]any

// Kind is the value type a field accepts
type Kind int

const (
	KindString Kind = iota
	KindInteger
	KindNumber
	// KindScore accepts a number or the literal string "None"
	KindScore
	// KindList accepts a list of strings
	KindList
	// KindGroup is a nested sub-document with its own fields
	KindGroup
)

// String returns the name used in validation messages
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindNumber:
		return "number"
	case KindScore:
		return "number or 'None'"
	case KindList:
		return "list"
	case KindGroup:
		return "dict"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// NoneScore is the literal accepted by KindScore fields in place of a number
const NoneScore = "None"

// DefaultFunc produces the default value of a single field.
// It must not depend on any other field of the document.
type DefaultFunc func() any

// Value returns a DefaultFunc producing v. Lists are copied on every call
// so that documents never share backing arrays.
func Value(v any) DefaultFunc {
	return func() any {
		if l, ok := v.([]any); ok {
			out := make([]any, len(l))
			copy(out, l)
			return out
		}
		return v
	}
}

// Range bounds numeric fields (inclusive)
type Range struct {
	Min float64
	Max float64
}

// Field describes one key of a document or of a nested group.
type Field struct {
	Name     string
	Kind     Kind
	Required bool

	// Nullable allows an explicit null value
	Nullable bool

	// AllowEmpty accepts "" and skips Allowed and Pattern for it
	AllowEmpty bool

	MaxLength int
	Range     *Range
	Allowed   []string
	Pattern   *regexp.Regexp

	// Default generates the value of an omitted optional field. Required
	// fields may carry one too; it is only used by DefaultDocument and never
	// materialized by Validate.
	Default DefaultFunc

	// Fields of a KindGroup field
	Fields []Field
}

// Option configures a Field
type Option func(*Field)

// Required declares a field that must be present in every document
func Required(name string, kind Kind, opts ...Option) Field {
	f := Field{Name: name, Kind: kind, Required: true}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// Optional declares a field that may be omitted. When def is nil the field
// is left out of normalized documents if the input omits it.
func Optional(name string, kind Kind, def DefaultFunc, opts ...Option) Field {
	f := Field{Name: name, Kind: kind, Default: def}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// Group declares a nested sub-document. An optional group without an
// explicit default is materialized from the defaults of its fields.
func Group(name string, required bool, fields ...Field) Field {
	return Field{Name: name, Kind: KindGroup, Required: required, Fields: fields}
}

// WithDefault attaches a default generator (used by DefaultDocument for required fields)
func WithDefault(def DefaultFunc) Option {
	return func(f *Field) { f.Default = def }
}

// WithAllowed restricts a string field to an enumeration
func WithAllowed(values ...string) Option {
	return func(f *Field) { f.Allowed = values }
}

// WithPattern requires a string field to match expr
func WithPattern(expr string) Option {
	re := regexp.MustCompile(expr)
	return func(f *Field) { f.Pattern = re }
}

// WithMaxLength bounds the length of a string field
func WithMaxLength(n int) Option {
	return func(f *Field) { f.MaxLength = n }
}

// WithRange bounds a numeric field
func WithRange(min, max float64) Option {
	return func(f *Field) { f.Range = &Range{Min: min, Max: max} }
}

// AllowNull allows an explicit null value
func AllowNull() Option {
	return func(f *Field) { f.Nullable = true }
}

// AllowEmpty accepts the empty string
func AllowEmpty() Option {
	return func(f *Field) { f.AllowEmpty = true }
}

// Schema is an ordered set of top-level fields
type Schema struct {
	Fields []Field
}

// New creates a schema from its top-level fields
func New(fields ...Field) *Schema {
	return &Schema{Fields: fields}
}

// Lookup finds a field by dotted path (e.g. "severity.rvss-score")
func (s *Schema) Lookup(path string) (Field, bool) {
	fields := s.Fields
	parts := strings.Split(path, ".")
	for i, part := range parts {
		found := false
		for _, f := range fields {
			if f.Name != part {
				continue
			}
			if i == len(parts)-1 {
				return f, true
			}
			if f.Kind != KindGroup {
				return Field{}, false
			}
			fields = f.Fields
			found = true
			break
		}
		if !found {
			return Field{}, false
		}
	}
	return Field{}, false
}

// Paths lists every leaf path declared by the schema, in declaration order
func (s *Schema) Paths() []string {
	var out []string
	var walk func(prefix string, fields []Field)
	walk = func(prefix string, fields []Field) {
		for _, f := range fields {
			path := joinPath(prefix, f.Name)
			if f.Kind == KindGroup {
				walk(path, f.Fields)
				continue
			}
			out = append(out, path)
		}
	}
	walk("", s.Fields)
	return out
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
