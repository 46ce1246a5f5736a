package types

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aliasrobotics/RVD-sub000/internal/schema"
)

// ErrMalformedDocument is returned when a record body cannot be parsed
// as a structured document at all
var ErrMalformedDocument = errors.New("malformed document")

const (
	fenceOpen  = "```yaml"
	fenceClose = "```"
)

// ParseIssueBody extracts the YAML document of a tracker issue body. The
// document may be wrapped in a ```yaml fence; otherwise the whole body is
// parsed.
func ParseIssueBody(body string) (schema.Document, error) {
	text := body
	if start := strings.Index(body, fenceOpen); start >= 0 {
		rest := body[start+len(fenceOpen):]
		end := strings.Index(rest, fenceClose)
		if end < 0 {
			return nil, fmt.Errorf("%w: unterminated yaml fence", ErrMalformedDocument)
		}
		text = rest[:end]
	}
	return ParseDocument([]byte(text))
}

// ParseDocument decodes a YAML document whose top level must be a mapping
func ParseDocument(data []byte) (schema.Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrMalformedDocument)
	}
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	doc, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: top level is %T, not a mapping", ErrMalformedDocument, v)
	}
	return doc, nil
}

// FormatIssueBody renders doc as a fenced YAML issue body
func FormatIssueBody(doc schema.Document) (string, error) {
	data, err := EncodeDocument(doc)
	if err != nil {
		return "", err
	}
	return fenceOpen + "\n" + string(data) + fenceClose + "\n", nil
}

// EncodeDocument marshals doc to YAML with schema fields in declaration
// order followed by any other keys in lexical order
func EncodeDocument(doc schema.Document) ([]byte, error) {
	node, err := orderedNode(doc, schema.RVD.Fields)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return buf.Bytes(), nil
}

func orderedNode(m map[string]any, fields []schema.Field) (*yaml.Node, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	seen := make(map[string]bool, len(m))

	add := func(key string, value any, sub []schema.Field) error {
		seen[key] = true
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: key}
		var valueNode *yaml.Node
		if group, ok := value.(map[string]any); ok {
			n, err := orderedNode(group, sub)
			if err != nil {
				return err
			}
			valueNode = n
		} else {
			valueNode = &yaml.Node{}
			if err := valueNode.Encode(value); err != nil {
				return fmt.Errorf("failed to encode %s: %w", key, err)
			}
		}
		node.Content = append(node.Content, keyNode, valueNode)
		return nil
	}

	for _, f := range fields {
		value, ok := m[f.Name]
		if !ok {
			continue
		}
		if err := add(f.Name, value, f.Fields); err != nil {
			return nil, err
		}
	}

	rest := make([]string, 0, len(m))
	for k := range m {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		if err := add(k, m[k], nil); err != nil {
			return nil, err
		}
	}
	return node, nil
}
