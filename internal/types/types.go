package types

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/aliasrobotics/RVD-sub000/internal/schema"
)

// Flaw is the canonical in-memory vulnerability/weakness/exposure record.
type Flaw struct {
	// ID is assigned by the tracker; zero for records not filed yet
	ID           int
	Title        string
	Type         FlawType
	Description  string
	CWE          string
	CVE          string
	Keywords     []string
	System       string
	Vendor       *string
	Severity     Severity
	Links        []string
	Details      Details
	Exploitation Exploitation
	Mitigation   Mitigation

	// Extensions holds keys outside the schema (additional fields)
	Extensions ExtensionMap
}

// FlawType classifies a flaw
type FlawType string

const (
	TypeWeakness      FlawType = "weakness"
	TypeVulnerability FlawType = "vulnerability"
	TypeExposure      FlawType = "exposure"
)

// IsValid checks if the flaw type value is valid
func (t FlawType) IsValid() bool {
	switch t {
	case TypeWeakness, TypeVulnerability, TypeExposure:
		return true
	}
	return false
}

// Severity is the "severity" sub-record
type Severity struct {
	RVSSScore   Score
	RVSSVector  string
	Description string
	CVSSScore   Score
	CVSSVector  string
}

// Details is the "flaw" sub-record: provenance and lifecycle
type Details struct {
	Phase                  string
	Specificity            string
	ArchitecturalLocation  string
	Application            string
	Subsystem              string
	Package                string
	Languages              string
	DateDetected           string
	DetectedBy             string
	DetectedByMethod       string
	DateReported           string
	ReportedBy             string
	ReportedByRelationship string
	Issue                  string
	Reproducibility        string
	Trace                  string
	Reproduction           string
	ReproductionImage      string
}

// Exploitation is the "exploitation" sub-record
type Exploitation struct {
	Description string
	Image       string
	Vector      string
}

// Mitigation is the "mitigation" sub-record
type Mitigation struct {
	Description    string
	PullRequest    string
	DateMitigation *string
}

// Score is a severity score: a number in [0, 10] or the literal "None"
type Score struct {
	Value float64
	None  bool
}

// NoScore is the "None" score
var NoScore = Score{None: true}

// ScoreOf wraps a numeric score
func ScoreOf(v float64) Score {
	return Score{Value: v}
}

// document returns the document representation of the score
func (s Score) document() any {
	if s.None {
		return schema.NoneScore
	}
	return s.Value
}

// String formats the score for display
func (s Score) String() string {
	if s.None {
		return schema.NoneScore
	}
	return strconv.FormatFloat(s.Value, 'f', -1, 64)
}

func scoreFrom(v any) Score {
	switch n := v.(type) {
	case nil:
		return Score{}
	case string:
		if n == schema.NoneScore {
			return NoScore
		}
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return Score{}
		}
		return ScoreOf(f)
	case int:
		return ScoreOf(float64(n))
	case int64:
		return ScoreOf(float64(n))
	case float64:
		return ScoreOf(n)
	}
	return Score{}
}

// declared lists the names of the top-level schema fields and of the
// fields of each nested group
var declared = func() map[string]map[string]bool {
	out := map[string]map[string]bool{"": {}}
	for _, f := range schema.RVD.Fields {
		out[""][f.Name] = true
		if f.Kind == schema.KindGroup {
			out[f.Name] = map[string]bool{}
			for _, sub := range f.Fields {
				out[f.Name][sub.Name] = true
			}
		}
	}
	return out
}()

// FromDocument maps a document into a Flaw. Missing or mistyped values
// degrade to zero values: historical records are often only partially
// formed. Keys outside the schema are kept as extensions.
func FromDocument(doc schema.Document) *Flaw {
	f := &Flaw{
		ID:          intFrom(doc["id"]),
		Title:       stringFrom(doc["title"]),
		Type:        FlawType(stringFrom(doc["type"])),
		Description: stringFrom(doc["description"]),
		CWE:         stringFrom(doc["cwe"]),
		CVE:         stringFrom(doc["cve"]),
		Keywords:    listFrom(doc["keywords"]),
		System:      stringFrom(doc["system"]),
		Links:       listFrom(doc["links"]),
	}
	if v, ok := doc["vendor"].(string); ok {
		f.Vendor = &v
	}

	sev := groupFrom(doc["severity"])
	f.Severity = Severity{
		RVSSScore:   scoreFrom(sev["rvss-score"]),
		RVSSVector:  stringFrom(sev["rvss-vector"]),
		Description: stringFrom(sev["severity-description"]),
		CVSSScore:   scoreFrom(sev["cvss-score"]),
		CVSSVector:  stringFrom(sev["cvss-vector"]),
	}

	d := groupFrom(doc["flaw"])
	f.Details = Details{
		Phase:                  stringFrom(d["phase"]),
		Specificity:            stringFrom(d["specificity"]),
		ArchitecturalLocation:  stringFrom(d["architectural-location"]),
		Application:            stringFrom(d["application"]),
		Subsystem:              stringFrom(d["subsystem"]),
		Package:                stringFrom(d["package"]),
		Languages:              stringFrom(d["languages"]),
		DateDetected:           stringFrom(d["date-detected"]),
		DetectedBy:             stringFrom(d["detected-by"]),
		DetectedByMethod:       stringFrom(d["detected-by-method"]),
		DateReported:           stringFrom(d["date-reported"]),
		ReportedBy:             stringFrom(d["reported-by"]),
		ReportedByRelationship: stringFrom(d["reported-by-relationship"]),
		Issue:                  stringFrom(d["issue"]),
		Reproducibility:        stringFrom(d["reproducibility"]),
		Trace:                  stringFrom(d["trace"]),
		Reproduction:           stringFrom(d["reproduction"]),
		ReproductionImage:      stringFrom(d["reproduction-image"]),
	}

	e := groupFrom(doc["exploitation"])
	f.Exploitation = Exploitation{
		Description: stringFrom(e["description"]),
		Image:       stringFrom(e["exploitation-image"]),
		Vector:      stringFrom(e["exploitation-vector"]),
	}

	m := groupFrom(doc["mitigation"])
	f.Mitigation = Mitigation{
		Description: stringFrom(m["description"]),
		PullRequest: stringFrom(m["pull-request"]),
	}
	if v, ok := m["date-mitigation"].(string); ok {
		f.Mitigation.DateMitigation = &v
	}

	for _, k := range sortedKeys(doc) {
		if !declared[""][k] {
			f.Extensions.Set(doc[k], k)
			continue
		}
		fields, isGroup := declared[k]
		if !isGroup {
			continue
		}
		group := groupFrom(doc[k])
		for _, sub := range sortedKeys(group) {
			if !fields[sub] {
				f.Extensions.Set(group[sub], k, sub)
			}
		}
	}
	return f
}

// ToDocument is the inverse of FromDocument. Extensions are merged over
// the canonical shape; see ExtensionMap.MergeInto for precedence.
func (f *Flaw) ToDocument() schema.Document {
	var vendor any
	if f.Vendor != nil {
		vendor = *f.Vendor
	}

	mitigation := schema.Document{
		"description":  f.Mitigation.Description,
		"pull-request": f.Mitigation.PullRequest,
	}
	if f.Mitigation.DateMitigation != nil {
		mitigation["date-mitigation"] = *f.Mitigation.DateMitigation
	}

	doc := schema.Document{
		"id":          f.ID,
		"title":       f.Title,
		"type":        string(f.Type),
		"description": f.Description,
		"cwe":         f.CWE,
		"cve":         f.CVE,
		"keywords":    listDocument(f.Keywords),
		"system":      f.System,
		"vendor":      vendor,
		"severity": schema.Document{
			"rvss-score":           f.Severity.RVSSScore.document(),
			"rvss-vector":          f.Severity.RVSSVector,
			"severity-description": f.Severity.Description,
			"cvss-score":           f.Severity.CVSSScore.document(),
			"cvss-vector":          f.Severity.CVSSVector,
		},
		"links": listDocument(f.Links),
		"flaw": schema.Document{
			"phase":                    f.Details.Phase,
			"specificity":              f.Details.Specificity,
			"architectural-location":   f.Details.ArchitecturalLocation,
			"application":              f.Details.Application,
			"subsystem":                f.Details.Subsystem,
			"package":                  f.Details.Package,
			"languages":                f.Details.Languages,
			"date-detected":            f.Details.DateDetected,
			"detected-by":              f.Details.DetectedBy,
			"detected-by-method":       f.Details.DetectedByMethod,
			"date-reported":            f.Details.DateReported,
			"reported-by":              f.Details.ReportedBy,
			"reported-by-relationship": f.Details.ReportedByRelationship,
			"issue":                    f.Details.Issue,
			"reproducibility":          f.Details.Reproducibility,
			"trace":                    f.Details.Trace,
			"reproduction":             f.Details.Reproduction,
			"reproduction-image":       f.Details.ReproductionImage,
		},
		"exploitation": schema.Document{
			"description":         f.Exploitation.Description,
			"exploitation-image":  f.Exploitation.Image,
			"exploitation-vector": f.Exploitation.Vector,
		},
		"mitigation": mitigation,
	}

	f.Extensions.MergeInto(doc)
	return doc
}

// AddField stores value under key in the additional fields
func (f *Flaw) AddField(value any, key string) {
	f.Extensions.Set(value, key)
}

// AddNestedField stores value under key.key2 in the additional fields,
// creating the group key when needed
func (f *Flaw) AddNestedField(value any, key, key2 string) {
	f.Extensions.Set(value, key, key2)
}

// Problems validates the document form of the flaw and returns the
// schema violations, or nil when it is well-formed
func (f *Flaw) Problems() schema.Errors {
	_, errs := schema.Validate(f.ToDocument())
	return errs
}

// Validate re-validates the flaw and logs one diagnostic per failing field
func (f *Flaw) Validate() bool {
	errs := f.Problems()
	for _, path := range errs.Paths() {
		slog.Warn("flaw failed validation",
			"id", f.ID, "field", path, "reasons", strings.Join(errs[path], "; "))
	}
	return errs == nil
}

// SeverityBand derives the qualitative severity from the CVSS vector,
// falling back to the CVSS score when the vector is empty or unparseable
func (f *Flaw) SeverityBand() string {
	if f.Severity.CVSSVector != "" {
		if band, err := ExtractCVSSComponent(f.Severity.CVSSVector, ComponentSeverity); err == nil {
			return band
		}
	}
	if f.Severity.CVSSScore.None {
		return BandNone
	}
	return SeverityBand(f.Severity.CVSSScore.Value)
}

// Labels returns the store labels implied by the record
func (f *Flaw) Labels() []string {
	if f.Type.IsValid() {
		return []string{string(f.Type)}
	}
	return nil
}

// IssueTitle formats the tracker title: "RVD#<id>: <title>"
func (f *Flaw) IssueTitle() string {
	if f.ID == 0 {
		return f.Title
	}
	return fmt.Sprintf("RVD#%d: %s", f.ID, f.Title)
}

var issueTitlePrefix = regexp.MustCompile(`^RVD#[0-9]+: `)

// TitleFromIssue strips the "RVD#<id>: " prefix IssueTitle adds
func TitleFromIssue(title string) string {
	return issueTitlePrefix.ReplaceAllString(title, "")
}

func stringFrom(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	}
	return fmt.Sprint(v)
}

func intFrom(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		i, _ := strconv.Atoi(n)
		return i
	}
	return 0
}

func listFrom(v any) []string {
	switch l := v.(type) {
	case []string:
		out := make([]string, len(l))
		copy(out, l)
		return out
	case []any:
		out := make([]string, 0, len(l))
		for _, item := range l {
			out = append(out, stringFrom(item))
		}
		return out
	case string:
		if l == "" {
			return nil
		}
		return []string{l}
	}
	return nil
}

func listDocument(l []string) []any {
	out := make([]any, 0, len(l))
	for _, s := range l {
		out = append(out, s)
	}
	return out
}

func groupFrom(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}
