package schema

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDocument() Document {
	doc := DefaultDocument()
	doc["id"] = 1
	doc["title"] = "X"
	doc["cwe"] = "CWE-1"
	return doc
}

func TestDefaultDocumentValidates(t *testing.T) {
	doc := DefaultDocument()

	normalized, errs := Validate(doc)
	require.Nil(t, errs, "default document should validate: %s", errs)
	assert.Equal(t, doc, normalized)

	assert.Equal(t, 0, doc["id"])
	assert.Equal(t, "None", doc["cwe"])
	assert.Equal(t, "None", doc["cve"])
	assert.Equal(t, []any{}, doc["keywords"])

	severity := doc["severity"].(Document)
	assert.Equal(t, 0.0, severity["cvss-score"])

	mitigation := doc["mitigation"].(Document)
	_, hasDate := mitigation["date-mitigation"]
	assert.False(t, hasDate, "optional field without default must stay absent")
}

func TestDefaultDocumentAlwaysValidProperty(t *testing.T) {
	defer func() { now = time.Now }()

	properties := gopter.NewProperties(nil)
	properties.Property("default document validates at any clock time", prop.ForAll(
		func(seconds int64) bool {
			now = func() time.Time { return time.Unix(seconds, 0).UTC() }
			_, errs := Validate(DefaultDocument())
			return errs == nil
		},
		gen.Int64Range(0, 4102444800),
	))
	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestDefaultDocumentPanicsOnInconsistentDefaults(t *testing.T) {
	broken := New(Required("type", KindString, WithAllowed("a", "b"), WithDefault(Value("c"))))
	assert.Panics(t, func() { broken.DefaultDocument() })
}

func TestValidateRegexInvariants(t *testing.T) {
	tests := []struct {
		name  string
		field string
		value string
		valid bool
	}{
		{"cwe with number", "cwe", "CWE-401", true},
		{"cwe with suffix", "cwe", "CWE-401: Missing Release of Memory", true},
		{"cwe None", "cwe", "None", true},
		{"cwe holding a cve", "cwe", "CVE-401", false},
		{"cwe empty", "cwe", "", false},
		{"cve full", "cve", "CVE-2019-19625", true},
		{"cve None", "cve", "None", true},
		{"cve missing year", "cve", "CVE-19625", false},
		{"cve trailing text", "cve", "CVE-2019-19625 (disputed)", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := validDocument()
			doc[tt.field] = tt.value

			_, errs := Validate(doc)
			if tt.valid {
				assert.Nil(t, errs)
			} else {
				require.NotNil(t, errs)
				assert.Contains(t, errs, tt.field)
			}
		})
	}
}

func TestValidateSubsystemPattern(t *testing.T) {
	for value, valid := range map[string]bool{
		"sensing:camera":  true,
		"UI":              true,
		"power":           true,
		"":                true,
		"navigation":      false,
		"cognition/ros2":  true,
		"N/A":             false,
		"communication:x": true,
	} {
		doc := validDocument()
		doc["flaw"].(Document)["subsystem"] = value
		_, errs := Validate(doc)
		if valid {
			assert.Nil(t, errs, "subsystem %q", value)
		} else {
			assert.Contains(t, errs, "flaw.subsystem", "subsystem %q", value)
		}
	}
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	doc := Document{
		"id":          "one",
		"title":       "This title is definitely far too long to fit in the tracker title column",
		"type":        "bug",
		"description": "",
		"cwe":         "CVE-401",
		"cve":         "None",
		"keywords":    []any{"ROS", 2},
		"system":      "",
		"severity": Document{
			"rvss-score":           11,
			"rvss-vector":          "",
			"severity-description": "",
			"cvss-score":           "high",
		},
		"flaw": "not a group",
	}

	normalized, errs := Validate(doc)
	assert.Nil(t, normalized)
	require.NotNil(t, errs)

	assert.Equal(t, []string{"must be of integer type"}, errs["id"])
	assert.Equal(t, []string{"max length is 65"}, errs["title"])
	assert.Equal(t, []string{"unallowed value bug"}, errs["type"])
	assert.Contains(t, errs["cwe"][0], "does not match regex")
	assert.Equal(t, []string{"must be of string type"}, errs["keywords.1"])
	assert.Equal(t, []string{"max value is 10"}, errs["severity.rvss-score"])
	assert.Equal(t, []string{"must be of number type or 'None'"}, errs["severity.cvss-score"])
	assert.Equal(t, []string{"required field"}, errs["severity.cvss-vector"])
	assert.Equal(t, []string{"must be of dict type"}, errs["flaw"])

	assert.Equal(t, []string{
		"cwe", "flaw", "id", "keywords.1", "severity.cvss-score",
		"severity.cvss-vector", "severity.rvss-score", "title", "type",
	}, errs.Paths())
	assert.Contains(t, errs.String(), "type: unallowed value bug\n")
}

func TestValidateCountsCharactersNotBytes(t *testing.T) {
	doc := validDocument()
	doc["title"] = strings.Repeat("é", 65)
	_, errs := Validate(doc)
	assert.Nil(t, errs, "65 two-byte characters fit the title: %s", errs)

	doc = validDocument()
	doc["title"] = strings.Repeat("é", 66)
	_, errs = Validate(doc)
	require.NotNil(t, errs)
	assert.Equal(t, []string{"max length is 65"}, errs["title"])
}

func TestValidateRejectsNonFiniteScores(t *testing.T) {
	tests := []struct {
		name  string
		value float64
	}{
		{"nan", math.NaN()},
		{"positive infinity", math.Inf(1)},
		{"negative infinity", math.Inf(-1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := validDocument()
			require.NoError(t, Set(doc, "severity.cvss-score", tt.value))

			normalized, errs := Validate(doc)
			assert.Nil(t, normalized)
			require.NotNil(t, errs)
			assert.Equal(t, []string{"must be a finite number"}, errs["severity.cvss-score"])
		})
	}
}

func TestValidateMissingRequired(t *testing.T) {
	doc := validDocument()
	delete(doc, "title")
	delete(doc["flaw"].(Document), "phase")

	_, errs := Validate(doc)
	require.NotNil(t, errs)
	assert.Equal(t, []string{"required field"}, errs["title"])
	assert.Equal(t, []string{"required field"}, errs["flaw.phase"])
}

func TestValidateMaterializesDefaults(t *testing.T) {
	doc := validDocument()
	delete(doc, "exploitation")
	delete(doc, "links")
	delete(doc, "vendor")
	delete(doc["flaw"].(Document), "reproducibility")

	normalized, errs := Validate(doc)
	require.Nil(t, errs)

	assert.Equal(t, Document{
		"description":         "",
		"exploitation-image":  "",
		"exploitation-vector": "",
	}, normalized["exploitation"])
	assert.Equal(t, []any{}, normalized["links"])
	assert.Contains(t, normalized, "vendor")
	assert.Nil(t, normalized["vendor"])
	assert.Equal(t, "N/A", normalized["flaw"].(Document)["reproducibility"])
}

func TestValidateNormalizesNumbers(t *testing.T) {
	doc := validDocument()
	doc["id"] = float64(42)
	severity := doc["severity"].(Document)
	severity["cvss-score"] = 9
	severity["rvss-score"] = "None"

	normalized, errs := Validate(doc)
	require.Nil(t, errs)
	assert.Equal(t, 42, normalized["id"])
	assert.Equal(t, 9.0, normalized["severity"].(Document)["cvss-score"])
	assert.Equal(t, "None", normalized["severity"].(Document)["rvss-score"])

	doc["id"] = 4.5
	_, errs = Validate(doc)
	assert.Equal(t, []string{"must be of integer type"}, errs["id"])
}

func TestValidateKeepsUnknownKeys(t *testing.T) {
	doc := validDocument()
	doc["reviewed-by"] = "triage team"
	doc["severity"].(Document)["epss"] = 0.2

	normalized, errs := Validate(doc)
	require.Nil(t, errs)
	assert.Equal(t, "triage team", normalized["reviewed-by"])
	assert.Equal(t, 0.2, normalized["severity"].(Document)["epss"])
}

func TestValidateNull(t *testing.T) {
	doc := validDocument()
	doc["vendor"] = nil
	_, errs := Validate(doc)
	assert.Nil(t, errs)

	doc["system"] = nil
	_, errs = Validate(doc)
	assert.Equal(t, []string{"null value not allowed"}, errs["system"])
}

func TestLookupAndPaths(t *testing.T) {
	f, ok := RVD.Lookup("severity.rvss-score")
	require.True(t, ok)
	assert.Equal(t, KindScore, f.Kind)

	_, ok = RVD.Lookup("severity.unknown")
	assert.False(t, ok)
	_, ok = RVD.Lookup("title.nested")
	assert.False(t, ok)

	paths := RVD.Paths()
	assert.Contains(t, paths, "flaw.reported-by-relationship")
	assert.Contains(t, paths, "mitigation.date-mitigation")
	assert.NotContains(t, paths, "flaw")
	assert.Equal(t, "id", paths[0])
}

func TestDocumentPaths(t *testing.T) {
	doc := Document{"title": "x"}

	require.NoError(t, Set(doc, "severity.cvss-score", 7.5))
	v, ok := Get(doc, "severity.cvss-score")
	assert.True(t, ok)
	assert.Equal(t, 7.5, v)

	err := Set(doc, "title.sub", 1)
	assert.EqualError(t, err, "title is not a group")

	_, ok = Get(doc, "severity.rvss-score")
	assert.False(t, ok)
	assert.False(t, Unset(doc, "severity.rvss-score"))
	assert.True(t, Unset(doc, "severity.cvss-score"))
	assert.Equal(t, map[string]any{}, doc["severity"])
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		path string
		raw  string
		want any
	}{
		{"title", `"quoted"`, "quoted"},
		{"cwe", "CWE-20", "CWE-20"},
		{"keywords", "ROS; memory ;", []any{"ROS", "memory"}},
		{"keywords", "[a, b]", []any{"a", "b"}},
		{"severity.cvss-score", "9.8", 9.8},
		{"severity.cvss-score", "None", "None"},
		{"id", "12", 12},
		{"extra.flag", "true", true},
	}
	for _, tt := range tests {
		got, err := RVD.ParseValue(tt.path, tt.raw, ";")
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}

	_, err := RVD.ParseValue("severity", "1", ";")
	assert.ErrorContains(t, err, "is a group")
	_, err = RVD.ParseValue("severity.cvss-score", "[1", ";")
	assert.ErrorContains(t, err, "invalid value for severity.cvss-score")
}
