package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aliasrobotics/RVD-sub000/internal/schema"
	"github.com/aliasrobotics/RVD-sub000/internal/types"
)

// ErrNoCVE is returned when exporting a flaw without a CVE id
var ErrNoCVE = errors.New("flaw has no CVE id")

// DefaultAssigner is the CNA contact written into exported records
const DefaultAssigner = "cve@aliasrobotics.com"

// CVERecord is a MITRE CVE JSON 4.0 record
type CVERecord struct {
	DataType    string         `json:"data_type"`
	DataFormat  string         `json:"data_format"`
	DataVersion string         `json:"data_version"`
	Meta        CVEMeta        `json:"CVE_data_meta"`
	Affects     CVEAffects     `json:"affects"`
	ProblemType CVEProblemType `json:"problemtype"`
	References  CVEReferences  `json:"references"`
	Description CVEDescription `json:"description"`
	Impact      *CVEImpact     `json:"impact,omitempty"`
	Source      CVESource      `json:"source"`
}

type CVEMeta struct {
	ID         string `json:"ID"`
	Assigner   string `json:"ASSIGNER"`
	State      string `json:"STATE"`
	Title      string `json:"TITLE"`
	DatePublic string `json:"DATE_PUBLIC,omitempty"`
}

type CVEAffects struct {
	Vendor struct {
		VendorData []CVEVendor `json:"vendor_data"`
	} `json:"vendor"`
}

type CVEVendor struct {
	VendorName string `json:"vendor_name"`
	Product    struct {
		ProductData []CVEProduct `json:"product_data"`
	} `json:"product"`
}

type CVEProduct struct {
	ProductName string `json:"product_name"`
	Version     struct {
		VersionData []CVEVersion `json:"version_data"`
	} `json:"version"`
}

type CVEVersion struct {
	VersionValue string `json:"version_value"`
}

type CVELangString struct {
	Lang  string `json:"lang"`
	Value string `json:"value"`
}

type CVEProblemType struct {
	ProblemTypeData []struct {
		Description []CVELangString `json:"description"`
	} `json:"problemtype_data"`
}

type CVEReferences struct {
	ReferenceData []CVEReference `json:"reference_data"`
}

type CVEReference struct {
	URL       string `json:"url"`
	Name      string `json:"name"`
	RefSource string `json:"refsource"`
}

type CVEDescription struct {
	DescriptionData []CVELangString `json:"description_data"`
}

type CVEImpact struct {
	CVSS CVSSv3 `json:"cvss"`
}

type CVSSv3 struct {
	Version               string  `json:"version"`
	VectorString          string  `json:"vectorString"`
	AttackVector          string  `json:"attackVector,omitempty"`
	AttackComplexity      string  `json:"attackComplexity,omitempty"`
	PrivilegesRequired    string  `json:"privilegesRequired,omitempty"`
	UserInteraction       string  `json:"userInteraction,omitempty"`
	Scope                 string  `json:"scope,omitempty"`
	ConfidentialityImpact string  `json:"confidentialityImpact,omitempty"`
	IntegrityImpact       string  `json:"integrityImpact,omitempty"`
	AvailabilityImpact    string  `json:"availabilityImpact,omitempty"`
	BaseScore             float64 `json:"baseScore"`
	BaseSeverity          string  `json:"baseSeverity"`
}

type CVESource struct {
	Discovery string `json:"discovery"`
}

// ExportCVE builds the CVE record of f. The record is PUBLIC when the flaw
// was reported, RESERVED otherwise.
func ExportCVE(f *types.Flaw, assigner string) (*CVERecord, error) {
	if f.CVE == "" || f.CVE == schema.NoneScore {
		return nil, fmt.Errorf("#%d: %w", f.ID, ErrNoCVE)
	}
	if assigner == "" {
		assigner = DefaultAssigner
	}

	rec := &CVERecord{
		DataType:    "CVE",
		DataFormat:  "MITRE",
		DataVersion: "4.0",
		Meta: CVEMeta{
			ID:         f.CVE,
			Assigner:   assigner,
			State:      "RESERVED",
			Title:      f.Title,
			DatePublic: f.Details.DateReported,
		},
		Source: CVESource{Discovery: discovery(f.Details.ReportedByRelationship)},
	}
	if f.Details.DateReported != "" {
		rec.Meta.State = "PUBLIC"
	}

	vendor := CVEVendor{VendorName: "n/a"}
	if f.Vendor != nil && *f.Vendor != "" {
		vendor.VendorName = *f.Vendor
	}
	product := CVEProduct{ProductName: orDefault(f.System, f.Details.Package)}
	product.Version.VersionData = []CVEVersion{{VersionValue: "n/a"}}
	vendor.Product.ProductData = []CVEProduct{product}
	rec.Affects.Vendor.VendorData = []CVEVendor{vendor}

	problem := f.CWE
	if problem == "" {
		problem = schema.NoneScore
	}
	rec.ProblemType.ProblemTypeData = append(rec.ProblemType.ProblemTypeData, struct {
		Description []CVELangString `json:"description"`
	}{Description: []CVELangString{{Lang: "eng", Value: problem}}})

	rec.Description.DescriptionData = []CVELangString{{Lang: "eng", Value: orDefault(f.Description, f.Title)}}

	rec.References.ReferenceData = []CVEReference{}
	for _, link := range f.Links {
		rec.References.ReferenceData = append(rec.References.ReferenceData, CVEReference{
			URL: link, Name: link, RefSource: "MISC",
		})
	}
	if f.Details.Issue != "" {
		rec.References.ReferenceData = append(rec.References.ReferenceData, CVEReference{
			URL: f.Details.Issue, Name: f.Details.Issue, RefSource: "CONFIRM",
		})
	}

	if impact := cvssImpact(f); impact != nil {
		rec.Impact = impact
	}
	return rec, nil
}

func cvssImpact(f *types.Flaw) *CVEImpact {
	vector := f.Severity.CVSSVector
	if vector == "" {
		return nil
	}
	score, err := types.BaseScore(vector)
	if err != nil {
		if f.Severity.CVSSScore.None {
			return nil
		}
		score = f.Severity.CVSSScore.Value
	}
	version := types.CVSSVersion(vector)

	decode := func(code string) string {
		v, err := types.ExtractCVSSComponent(vector, code)
		if err != nil {
			return ""
		}
		return v
	}
	return &CVEImpact{CVSS: CVSSv3{
		Version:               version,
		VectorString:          vector,
		AttackVector:          decode("AV"),
		AttackComplexity:      decode("AC"),
		PrivilegesRequired:    decode("PR"),
		UserInteraction:       decode("UI"),
		Scope:                 decode("S"),
		ConfidentialityImpact: decode("C"),
		IntegrityImpact:       decode("I"),
		AvailabilityImpact:    decode("A"),
		BaseScore:             score,
		BaseSeverity:          strings.ToUpper(types.SeverityBand(score)),
	}}
}

func discovery(relationship string) string {
	switch relationship {
	case "", "N/A":
		return "UNKNOWN"
	case "security researcher", "Security researcher":
		return "EXTERNAL"
	}
	return "INTERNAL"
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		if strings.TrimSpace(fallback) == "" {
			return "n/a"
		}
		return fallback
	}
	return s
}

// CVEFilename is the export file name of a flaw: <CVE id>.json
func CVEFilename(f *types.Flaw) string {
	return f.CVE + ".json"
}

// WriteCVE exports f into dir and returns the file path
func WriteCVE(dir string, f *types.Flaw, assigner string) (string, error) {
	rec, err := ExportCVE(f, assigner)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s: %w", f.CVE, err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	path := filepath.Join(dir, CVEFilename(f))
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
