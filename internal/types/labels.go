package types

// Tracker label constants.
// The flaw type labels mirror FlawType; the rest describe curation state.
const (
	LabelVulnerability = "vulnerability"
	LabelWeakness      = "weakness"
	LabelExposure      = "exposure"

	// LabelDuplicate marks a record that duplicates a primary record.
	// Duplicates stay in the tracker and keep a comment pointing at the primary.
	LabelDuplicate = "duplicate"

	// LabelMalformed marks a record whose body does not parse or validate
	LabelMalformed = "malformed"

	// LabelInvalid marks a record that was reviewed and rejected
	LabelInvalid = "invalid"

	LabelMitigated = "mitigated"
	LabelTriage    = "triage"
)

// HasLabel reports whether labels contains label
func HasLabel(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}
