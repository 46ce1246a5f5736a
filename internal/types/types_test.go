package types

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliasrobotics/RVD-sub000/internal/schema"
)

func sampleDocument(t *testing.T) schema.Document {
	t.Helper()
	doc := schema.DefaultDocument()
	doc["id"] = 1
	doc["title"] = "X"
	doc["type"] = "vulnerability"
	doc["cwe"] = "CWE-1"
	doc["cve"] = "None"
	doc["keywords"] = []any{"ROS", "ROS 2"}
	doc["vendor"] = "Open Robotics"
	sev := doc["severity"].(schema.Document)
	sev["cvss-vector"] = "CVSS:3.0/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H"
	sev["cvss-score"] = 9.8
	sev["rvss-score"] = "None"
	doc["mitigation"].(schema.Document)["date-mitigation"] = "2020-01-02"

	normalized, errs := schema.Validate(doc)
	require.Nil(t, errs, "sample document must validate: %s", errs)
	return normalized
}

func TestFlawRoundTrip(t *testing.T) {
	doc := sampleDocument(t)

	flaw := FromDocument(doc)
	assert.Equal(t, 1, flaw.ID)
	assert.Equal(t, TypeVulnerability, flaw.Type)
	assert.Equal(t, []string{"ROS", "ROS 2"}, flaw.Keywords)
	require.NotNil(t, flaw.Vendor)
	assert.Equal(t, "Open Robotics", *flaw.Vendor)
	assert.Equal(t, ScoreOf(9.8), flaw.Severity.CVSSScore)
	assert.Equal(t, NoScore, flaw.Severity.RVSSScore)
	require.NotNil(t, flaw.Mitigation.DateMitigation)
	assert.Equal(t, 0, flaw.Extensions.Len())

	assert.Equal(t, doc, flaw.ToDocument())
	assert.True(t, flaw.Validate())
}

func TestFlawRoundTripProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("validated documents survive FromDocument/ToDocument", prop.ForAll(
		func(id int, title string, flawType string, cweNumber int, score float64, keywords []string, withVendor bool) bool {
			if len(title) > schema.MaxTitleLength {
				title = title[:schema.MaxTitleLength]
			}
			doc := schema.DefaultDocument()
			doc["id"] = id
			doc["title"] = title + "x"
			doc["type"] = flawType
			doc["cwe"] = fmt.Sprintf("CWE-%d", cweNumber)
			kw := make([]any, len(keywords))
			for i, k := range keywords {
				kw[i] = k
			}
			doc["keywords"] = kw
			if withVendor {
				doc["vendor"] = "vendor"
			}
			doc["severity"].(schema.Document)["cvss-score"] = score

			normalized, errs := schema.Validate(doc)
			if errs != nil {
				// only titles that got too long after the suffix end up here
				return len(title) == schema.MaxTitleLength
			}
			return reflect.DeepEqual(normalized, FromDocument(normalized).ToDocument())
		},
		gen.IntRange(0, 100000),
		gen.AlphaString(),
		gen.OneConstOf("weakness", "vulnerability", "exposure"),
		gen.IntRange(1, 1500),
		gen.Float64Range(0, 10),
		gen.SliceOf(gen.AlphaString()),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestFromDocumentIsLenient(t *testing.T) {
	flaw := FromDocument(schema.Document{
		"id":       7,
		"title":    "partial record",
		"keywords": "single keyword",
		"flaw":     "not a mapping",
	})

	assert.Equal(t, 7, flaw.ID)
	assert.Equal(t, []string{"single keyword"}, flaw.Keywords)
	assert.Equal(t, Severity{}, flaw.Severity)
	assert.Equal(t, Details{}, flaw.Details)
	assert.Equal(t, Exploitation{}, flaw.Exploitation)
	assert.Nil(t, flaw.Vendor)

	doc := flaw.ToDocument()
	assert.Equal(t, "", doc["exploitation"].(schema.Document)["exploitation-vector"])
	assert.Equal(t, 0.0, doc["severity"].(schema.Document)["cvss-score"])
	assert.False(t, flaw.Validate(), "a partial record must not validate")
}

func TestUnknownKeysArePreserved(t *testing.T) {
	doc := sampleDocument(t)
	doc["reviewed-by"] = "triage team"
	doc["severity"].(schema.Document)["epss"] = 0.12

	flaw := FromDocument(doc)
	assert.Equal(t, 2, flaw.Extensions.Len())

	keys := map[string]any{}
	for _, e := range flaw.Extensions.Entries() {
		keys[e.Key()] = e.Value
	}
	assert.Equal(t, map[string]any{"reviewed-by": "triage team", "severity.epss": 0.12}, keys)

	assert.Equal(t, doc, flaw.ToDocument())
}

func TestAddField(t *testing.T) {
	flaw := FromDocument(sampleDocument(t))

	flaw.AddField("https://example.org/advisory", "advisory")
	flaw.AddNestedField("ros2/rcl", "robot", "component")
	flaw.AddNestedField(3.1, "severity", "epss-percentile")

	doc := flaw.ToDocument()
	assert.Equal(t, "https://example.org/advisory", doc["advisory"])
	assert.Equal(t, schema.Document{"component": "ros2/rcl"}, doc["robot"])
	assert.Equal(t, 3.1, doc["severity"].(schema.Document)["epss-percentile"])
	assert.Equal(t, 9.8, doc["severity"].(schema.Document)["cvss-score"], "canonical values stay untouched")

	// additional fields reappear at the same path after a round trip
	again := FromDocument(doc).ToDocument()
	assert.Equal(t, doc, again)
}

func TestExtensionPrecedence(t *testing.T) {
	flaw := FromDocument(sampleDocument(t))

	flaw.AddField("overridden title", "title")
	flaw.AddField("scalar", "severity")
	flaw.AddNestedField("nested", "cwe", "detail")

	doc := flaw.ToDocument()
	assert.Equal(t, "overridden title", doc["title"], "leaf overrides are allowed")
	assert.IsType(t, schema.Document{}, doc["severity"], "groups are never replaced")
	assert.Equal(t, "CWE-1", doc["cwe"], "scalars are never restructured")
}

func TestExtensionMapOrderAndReplace(t *testing.T) {
	var m ExtensionMap
	m.Set(1, "a")
	m.Set(2, "b", "c")
	m.Set(3, "a")

	entries := m.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Key())
	assert.Equal(t, 3, entries[0].Value)
	assert.Equal(t, "b.c", entries[1].Key())

	assert.Equal(t, 2, m.Len())
}

func TestExtensionValuesAreCopied(t *testing.T) {
	flaw := FromDocument(sampleDocument(t))
	flaw.AddField(map[string]any{"x": 1}, "meta")
	flaw.AddNestedField(2, "meta", "y")

	first := flaw.ToDocument()
	second := flaw.ToDocument()
	assert.Equal(t, map[string]any{"x": 1, "y": 2}, first["meta"])
	assert.Equal(t, first["meta"], second["meta"])

	entries := flaw.Extensions.Entries()
	require.Equal(t, "meta", entries[0].Key())
	assert.Equal(t, map[string]any{"x": 1}, entries[0].Value, "merging must not mutate stored values")
}

func TestProblemsReportsFieldPaths(t *testing.T) {
	flaw := FromDocument(sampleDocument(t))
	flaw.CWE = "CVE-401"
	flaw.Details.Subsystem = "navigation"

	errs := flaw.Problems()
	require.NotNil(t, errs)
	assert.Equal(t, []string{"cwe", "flaw.subsystem"}, errs.Paths())
	assert.False(t, flaw.Validate())

	flaw.CWE = "None"
	flaw.Details.Subsystem = "sensing"
	assert.Nil(t, flaw.Problems())
}

func TestFlawTypeIsValid(t *testing.T) {
	assert.True(t, TypeExposure.IsValid())
	assert.False(t, FlawType("bug").IsValid())
}

func TestIssueTitleAndLabels(t *testing.T) {
	flaw := FromDocument(sampleDocument(t))
	assert.Equal(t, "RVD#1: X", flaw.IssueTitle())
	assert.Equal(t, []string{"vulnerability"}, flaw.Labels())

	flaw.ID = 0
	assert.Equal(t, "X", flaw.IssueTitle())
}

func TestTitleFromIssue(t *testing.T) {
	assert.Equal(t, "Use after free", TitleFromIssue("RVD#12: Use after free"))
	assert.Equal(t, "Use after free", TitleFromIssue("Use after free"))
	assert.Equal(t, "Fix for RVD#12: regression", TitleFromIssue("Fix for RVD#12: regression"), "only a leading prefix is stripped")

	flaw := FromDocument(sampleDocument(t))
	assert.Equal(t, flaw.Title, TitleFromIssue(flaw.IssueTitle()))
}

func TestToDuplicateFeatures(t *testing.T) {
	flaw := FromDocument(sampleDocument(t))
	flaw.Description = ""
	flaw.Vendor = nil

	features := flaw.ToDuplicateFeatures()
	assert.Equal(t, Feature{Value: "vulnerability"}, features["type"])
	assert.Equal(t, MissingFeature, features["description"])
	assert.Equal(t, Feature{Value: "ROS ROS 2"}, features["keywords"])
	assert.Equal(t, Feature{Value: "9.8"}, features["severity_cvss-score"])
	assert.Equal(t, Feature{Value: "None"}, features["severity_rvss-score"])
	assert.Equal(t, MissingFeature, features["vendor"], "null vendor")
	assert.Equal(t, Feature{Value: "unknown"}, features["flaw_phase"])

	_, present := features["flaw"]
	assert.False(t, present, "groups are flattened, not kept")
}
