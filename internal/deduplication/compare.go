package deduplication

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"

	"github.com/aliasrobotics/RVD-sub000/internal/types"
)

// Record is one entry of the corpus handed to the engine
type Record struct {
	// ID is the tracker id; 0 is reserved for the membership probe
	ID int

	// Features is the flattened comparison view of the flaw
	Features types.FeatureMap

	// Duplicate is true when the record is already labeled duplicate
	Duplicate bool
}

// RecordFromFlaw builds an engine record from a flaw
func RecordFromFlaw(flaw *types.Flaw, alreadyDuplicate bool) Record {
	return Record{
		ID:        flaw.ID,
		Features:  flaw.ToDuplicateFeatures(),
		Duplicate: alreadyDuplicate,
	}
}

func (r Record) feature(name string) types.Feature {
	f, ok := r.Features[name]
	if !ok {
		return types.MissingFeature
	}
	return f
}

// compareField returns the similarity of two values in [0, 1] and whether
// either side is missing. Missing values compare as 0.
func compareField(kind string, a, b types.Feature) (float64, bool) {
	if a.Missing || b.Missing {
		return 0, true
	}
	switch kind {
	case KindExact:
		if strings.EqualFold(strings.TrimSpace(a.Value), strings.TrimSpace(b.Value)) {
			return 1, false
		}
		return 0, false
	case KindString:
		return stringSimilarity(a.Value, b.Value), false
	default:
		return tokenSimilarity(a.Value, b.Value), false
	}
}

// stringSimilarity is 1 - levenshtein(a, b) / max(len(a), len(b)) over
// lower-cased runes
func stringSimilarity(a, b string) float64 {
	a, b = strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 1
	}
	d := levenshtein.ComputeDistance(a, b)
	return 1 - float64(d)/float64(longest)
}

// tokenSimilarity is the Jaccard index of the token sets of a and b
func tokenSimilarity(a, b string) float64 {
	ta, tb := tokenSet(a), tokenSet(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 1
	}
	shared := 0
	for t := range ta {
		if tb[t] {
			shared++
		}
	}
	union := len(ta) + len(tb) - shared
	return float64(shared) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := map[string]bool{}
	for _, t := range tokenize(s) {
		set[t] = true
	}
	return set
}

// tokenize splits s into lower-cased alphanumeric tokens
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// distances is the feature vector of a pair: a similarity and a missing
// indicator per configured field
func distances(fields []FieldSpec, a, b Record) []float64 {
	out := make([]float64, 0, 2*len(fields))
	for _, f := range fields {
		sim, missing := compareField(f.Kind, a.feature(f.Name), b.feature(f.Name))
		m := 0.0
		if missing {
			m = 1
		}
		out = append(out, sim, m)
	}
	return out
}

// similarity is the mean field similarity of a pair, used to seed active
// learning before the classifier has seen both classes
func similarity(fields []FieldSpec, a, b Record) float64 {
	if len(fields) == 0 {
		return 0
	}
	total := 0.0
	for _, f := range fields {
		sim, _ := compareField(f.Kind, a.feature(f.Name), b.feature(f.Name))
		total += sim
	}
	return total / float64(len(fields))
}
