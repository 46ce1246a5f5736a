package types

import (
	"errors"
	"fmt"
	"strings"

	gocvss20 "github.com/pandatix/go-cvss/20"
	gocvss30 "github.com/pandatix/go-cvss/30"
	gocvss31 "github.com/pandatix/go-cvss/31"
	gocvss40 "github.com/pandatix/go-cvss/40"
)

var (
	// ErrUnknownComponent is returned when a component code outside the
	// decoded set is requested. It signals a caller bug, not bad data.
	ErrUnknownComponent = errors.New("unknown CVSS component")

	// ErrComponentNotFound is returned when the vector lacks the component
	ErrComponentNotFound = errors.New("component not present in vector")

	// ErrUnknownComponentValue is returned when the vector holds a value
	// the component table cannot decode
	ErrUnknownComponentValue = errors.New("unknown CVSS component value")
)

// ComponentSeverity is the synthetic component decoding the base score
// into a qualitative band
const ComponentSeverity = "severity"

// Qualitative severity bands
const (
	BandCritical = "critical"
	BandHigh     = "high"
	BandMedium   = "medium"
	BandLow      = "low"
	BandNone     = "none"
)

var cvssComponents = map[string]map[string]string{
	"AV": {"N": "NETWORK", "A": "ADJACENT_NETWORK", "L": "LOCAL", "P": "PHYSICAL"},
	"AC": {"L": "LOW", "H": "HIGH"},
	"PR": {"N": "NONE", "L": "LOW", "H": "HIGH"},
	"UI": {"N": "NONE", "R": "REQUIRED"},
	"S":  {"U": "UNCHANGED", "C": "CHANGED"},
	"C":  {"H": "HIGH", "L": "LOW", "N": "NONE"},
	"I":  {"H": "HIGH", "L": "LOW", "N": "NONE"},
	"A":  {"H": "HIGH", "L": "LOW", "N": "NONE"},
}

// ExtractCVSSComponent decodes one component of a CVSS vector
// ("CVSS:3.0/AV:N/AC:L/...") into its long form, e.g. AV → "NETWORK".
// The synthetic "severity" component returns the band of the vector's
// base score.
func ExtractCVSSComponent(vector, component string) (string, error) {
	if component == ComponentSeverity {
		score, err := BaseScore(vector)
		if err != nil {
			return "", err
		}
		return SeverityBand(score), nil
	}

	values, ok := cvssComponents[component]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownComponent, component)
	}

	for _, token := range strings.Split(vector, "/") {
		code, value, found := strings.Cut(token, ":")
		if !found || code != component {
			continue
		}
		decoded, ok := values[value]
		if !ok {
			return "", fmt.Errorf("%w: %s:%s", ErrUnknownComponentValue, code, value)
		}
		return decoded, nil
	}
	return "", fmt.Errorf("%w: %s in %q", ErrComponentNotFound, component, vector)
}

// BaseScore computes the base score of a CVSS v2, v3.0, v3.1 or v4.0 vector
func BaseScore(vector string) (float64, error) {
	switch CVSSVersion(vector) {
	case "3.0":
		cvss, err := gocvss30.ParseVector(vector)
		if err != nil {
			return 0, fmt.Errorf("failed to parse CVSS vector %q: %w", vector, err)
		}
		return cvss.BaseScore(), nil
	case "3.1":
		cvss, err := gocvss31.ParseVector(vector)
		if err != nil {
			return 0, fmt.Errorf("failed to parse CVSS vector %q: %w", vector, err)
		}
		return cvss.BaseScore(), nil
	case "4.0":
		cvss, err := gocvss40.ParseVector(vector)
		if err != nil {
			return 0, fmt.Errorf("failed to parse CVSS vector %q: %w", vector, err)
		}
		return cvss.Score(), nil
	default:
		cvss, err := gocvss20.ParseVector(vector)
		if err != nil {
			return 0, fmt.Errorf("failed to parse CVSS vector %q: %w", vector, err)
		}
		return cvss.BaseScore(), nil
	}
}

// CVSSVersion returns the CVSS version of vector from its "CVSS:x.y/"
// prefix. Vectors without a prefix are CVSS 2.0.
func CVSSVersion(vector string) string {
	for _, v := range []string{"3.0", "3.1", "4.0"} {
		if strings.HasPrefix(vector, "CVSS:"+v+"/") {
			return v
		}
	}
	return "2.0"
}

// SeverityBand maps a base score to its qualitative band. Bounds are
// strict: 9.0 is "high" and anything at or below 0.1 is "none".
func SeverityBand(score float64) string {
	switch {
	case score > 9.0:
		return BandCritical
	case score > 7.0:
		return BandHigh
	case score > 4.0:
		return BandMedium
	case score > 0.1:
		return BandLow
	}
	return BandNone
}
