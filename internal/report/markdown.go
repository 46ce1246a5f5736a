// Package report renders flaws for humans and for other databases:
// Markdown reports, summary statistics and CVE JSON records.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/gosimple/slug"

	"github.com/aliasrobotics/RVD-sub000/internal/types"
)

// Filename is the report file name of a flaw: rvd-<id>-<slug>.md
func Filename(f *types.Flaw) string {
	s := slug.Make(f.Title)
	if s == "" {
		s = "untitled"
	}
	return fmt.Sprintf("rvd-%d-%s.md", f.ID, s)
}

// vectorComponents are decoded in the severity section when a CVSS vector is present
var vectorComponents = []struct {
	Code string
	Name string
}{
	{"AV", "Attack vector"},
	{"AC", "Attack complexity"},
	{"PR", "Privileges required"},
	{"UI", "User interaction"},
	{"S", "Scope"},
	{"C", "Confidentiality"},
	{"I", "Integrity"},
	{"A", "Availability"},
}

type component struct {
	Name  string
	Value string
}

type reportData struct {
	Flaw       *types.Flaw
	Title      string
	Band       string
	Vendor     string
	Components []component
	Extensions []component
}

var markdownTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"join":  strings.Join,
	"orNA":  orNA,
	"upper": strings.ToUpper,
}).Parse(`# {{ .Title }}

| | |
|---|---|
| **ID** | {{ .Flaw.ID }} |
| **Type** | {{ .Flaw.Type }} |
| **CWE** | {{ .Flaw.CWE }} |
| **CVE** | {{ .Flaw.CVE }} |
| **System** | {{ orNA .Flaw.System }} |
| **Vendor** | {{ .Vendor }} |
| **Keywords** | {{ orNA (join .Flaw.Keywords ", ") }} |

## Description

{{ orNA .Flaw.Description }}

## Severity

**{{ upper .Band }}**

| Metric | Score | Vector |
|---|---|---|
| RVSS | {{ .Flaw.Severity.RVSSScore }} | {{ orNA .Flaw.Severity.RVSSVector }} |
| CVSS | {{ .Flaw.Severity.CVSSScore }} | {{ orNA .Flaw.Severity.CVSSVector }} |
{{ if .Flaw.Severity.Description }}
{{ .Flaw.Severity.Description }}
{{ end }}{{ if .Components }}
| Component | Value |
|---|---|
{{ range .Components }}| {{ .Name }} | {{ .Value }} |
{{ end }}{{ end }}
## Flaw

| | |
|---|---|
| **Phase** | {{ .Flaw.Details.Phase }} |
| **Specificity** | {{ .Flaw.Details.Specificity }} |
| **Architectural location** | {{ .Flaw.Details.ArchitecturalLocation }} |
| **Application** | {{ orNA .Flaw.Details.Application }} |
| **Subsystem** | {{ orNA .Flaw.Details.Subsystem }} |
| **Package** | {{ orNA .Flaw.Details.Package }} |
| **Languages** | {{ orNA .Flaw.Details.Languages }} |
| **Detected** | {{ orNA .Flaw.Details.DateDetected }} by {{ orNA .Flaw.Details.DetectedBy }} ({{ orNA .Flaw.Details.DetectedByMethod }}) |
| **Reported** | {{ orNA .Flaw.Details.DateReported }} by {{ orNA .Flaw.Details.ReportedBy }} ({{ orNA .Flaw.Details.ReportedByRelationship }}) |
| **Issue** | {{ orNA .Flaw.Details.Issue }} |
| **Reproducibility** | {{ orNA .Flaw.Details.Reproducibility }} |
{{ if .Flaw.Details.Reproduction }}
### Reproduction

{{ .Flaw.Details.Reproduction }}
{{ end }}{{ if .Flaw.Details.Trace }}
### Trace

` + "```" + `
{{ .Flaw.Details.Trace }}
` + "```" + `
{{ end }}{{ if .Flaw.Exploitation.Description }}
## Exploitation

{{ .Flaw.Exploitation.Description }}
{{ if .Flaw.Exploitation.Vector }}
Vector: {{ .Flaw.Exploitation.Vector }}
{{ end }}{{ end }}
## Mitigation

{{ orNA .Flaw.Mitigation.Description }}
{{ if .Flaw.Mitigation.PullRequest }}
Pull request: {{ .Flaw.Mitigation.PullRequest }}
{{ end }}{{ if .Flaw.Links }}
## Links
{{ range .Flaw.Links }}
- {{ . }}{{ end }}
{{ end }}{{ if .Extensions }}
## Additional fields

| Field | Value |
|---|---|
{{ range .Extensions }}| {{ .Name }} | {{ .Value }} |
{{ end }}{{ end }}`))

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

// extensionValue renders scalars as is and structured values as compact JSON
func extensionValue(v any) string {
	switch v.(type) {
	case map[string]any, []any:
		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
	}
	return fmt.Sprint(v)
}

// RenderMarkdown writes the Markdown report of f to w
func RenderMarkdown(w io.Writer, f *types.Flaw) error {
	data := reportData{
		Flaw:   f,
		Title:  f.IssueTitle(),
		Band:   f.SeverityBand(),
		Vendor: "N/A",
	}
	if f.Vendor != nil && *f.Vendor != "" {
		data.Vendor = *f.Vendor
	}
	if f.Severity.CVSSVector != "" {
		for _, c := range vectorComponents {
			value, err := types.ExtractCVSSComponent(f.Severity.CVSSVector, c.Code)
			if err != nil {
				continue
			}
			data.Components = append(data.Components, component{Name: c.Name, Value: value})
		}
	}
	if f.Extensions.Len() > 0 {
		for _, e := range f.Extensions.Entries() {
			data.Extensions = append(data.Extensions, component{Name: e.Key(), Value: extensionValue(e.Value)})
		}
	}
	if err := markdownTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("failed to render report of #%d: %w", f.ID, err)
	}
	return nil
}

// WriteMarkdown writes the report of f into dir and returns its path
func WriteMarkdown(dir string, f *types.Flaw) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	path := filepath.Join(dir, Filename(f))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create report: %w", err)
	}
	if err := RenderMarkdown(file, f); err != nil {
		_ = file.Close()
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}
