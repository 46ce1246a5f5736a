package deduplication

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"
)

// Blocking rules applied to a single field
const (
	RuleWholeField     = "wholeField"
	RuleFirstToken     = "firstToken"
	RuleFirstTwoTokens = "firstTwoTokens"
	RuleCommonToken    = "commonToken"
	RulePrefix4        = "prefix4"
)

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true, "this": true,
	"from": true, "are": true, "was": true, "not": true, "when": true, "which": true,
	"into": true, "can": true, "has": true, "have": true, "its": true, "via": true,
}

// Rule derives block keys from one field
type Rule struct {
	Field string `yaml:"field"`
	Kind  string `yaml:"kind"`
}

func (r Rule) String() string {
	return fmt.Sprintf("%s(%s)", r.Kind, r.Field)
}

func (r Rule) keys(rec Record) []string {
	f := rec.feature(r.Field)
	if f.Missing {
		return nil
	}
	switch r.Kind {
	case RuleWholeField:
		return []string{strings.ToLower(strings.TrimSpace(f.Value))}
	case RuleFirstToken:
		if tokens := tokenize(f.Value); len(tokens) > 0 {
			return tokens[:1]
		}
	case RuleFirstTwoTokens:
		if tokens := tokenize(f.Value); len(tokens) > 1 {
			return []string{tokens[0] + " " + tokens[1]}
		}
	case RuleCommonToken:
		var keys []string
		seen := map[string]bool{}
		for _, t := range tokenize(f.Value) {
			if utf8.RuneCountInString(t) < 3 || stopwords[t] || seen[t] {
				continue
			}
			seen[t] = true
			keys = append(keys, t)
		}
		return keys
	case RulePrefix4:
		v := strings.ToLower(strings.TrimSpace(f.Value))
		if utf8.RuneCountInString(v) >= 4 {
			return []string{string([]rune(v)[:4])}
		}
	}
	return nil
}

// Predicate is a conjunction of rules. Two records share a block when every
// rule yields a common key.
type Predicate struct {
	Rules []Rule `yaml:"rules"`
}

func (p Predicate) String() string {
	parts := make([]string, len(p.Rules))
	for i, r := range p.Rules {
		parts[i] = r.String()
	}
	return strings.Join(parts, "&")
}

// Keys returns the block keys of rec under p
func (p Predicate) Keys(rec Record) []string {
	keys := []string{""}
	for i, r := range p.Rules {
		ruleKeys := r.keys(rec)
		if len(ruleKeys) == 0 {
			return nil
		}
		next := make([]string, 0, len(keys)*len(ruleKeys))
		for _, prefix := range keys {
			for _, k := range ruleKeys {
				if i > 0 {
					next = append(next, prefix+"\x1f"+k)
				} else {
					next = append(next, k)
				}
			}
		}
		keys = next
	}
	return keys
}

func (p Predicate) covers(a, b Record) bool {
	ka := p.Keys(a)
	if len(ka) == 0 {
		return false
	}
	set := make(map[string]bool, len(ka))
	for _, k := range ka {
		set[k] = true
	}
	for _, k := range p.Keys(b) {
		if set[k] {
			return true
		}
	}
	return false
}

func rulesFor(field FieldSpec) []string {
	if field.Kind == KindExact {
		return []string{RuleWholeField}
	}
	return []string{RuleWholeField, RuleFirstToken, RuleFirstTwoTokens, RuleCommonToken, RulePrefix4}
}

// candidatePredicates lists every single-field predicate and every
// conjunction of two predicates on different fields
func candidatePredicates(fields []FieldSpec) []Predicate {
	var simple []Rule
	for _, f := range fields {
		for _, kind := range rulesFor(f) {
			simple = append(simple, Rule{Field: f.Name, Kind: kind})
		}
	}
	out := make([]Predicate, 0, len(simple)*len(simple))
	for _, r := range simple {
		out = append(out, Predicate{Rules: []Rule{r}})
	}
	for i, a := range simple {
		for _, b := range simple[i+1:] {
			if a.Field != b.Field {
				out = append(out, Predicate{Rules: []Rule{a, b}})
			}
		}
	}
	return out
}

// DefaultPredicates are used when training saw no duplicates: the whole
// value of every field plus the first token of free-text fields
func DefaultPredicates(fields []FieldSpec) []Predicate {
	var out []Predicate
	for _, f := range fields {
		out = append(out, Predicate{Rules: []Rule{{Field: f.Name, Kind: RuleWholeField}}})
		if f.Kind != KindExact {
			out = append(out, Predicate{Rules: []Rule{{Field: f.Name, Kind: RuleFirstToken}}})
		}
	}
	return out
}

// blockCost is the number of pairs p would put in the same block
func blockCost(p Predicate, records []Record) int {
	blocks := map[string]int{}
	for _, rec := range records {
		for _, k := range p.Keys(rec) {
			blocks[k]++
		}
	}
	cost := 0
	for _, n := range blocks {
		cost += n * (n - 1) / 2
	}
	return cost
}

// learnPredicates picks predicates by greedy set cover over the labeled
// matches. Each round takes the predicate covering the most uncovered
// matches, ties broken by lower cost and then by name. Predicates whose
// cost exceeds the cap are never taken.
func learnPredicates(fields []FieldSpec, records []Record, matches [][2]Record, cfg Config) []Predicate {
	if len(matches) == 0 {
		return DefaultPredicates(fields)
	}
	total := len(records) * (len(records) - 1) / 2
	limit := max(int(cfg.MaxBlockFraction*float64(total)), 1000)

	type candidate struct {
		pred    Predicate
		name    string
		cost    int
		covered []int
	}
	var pool []candidate
	for _, p := range candidatePredicates(fields) {
		cost := blockCost(p, records)
		if cost > limit {
			slog.Debug("blocking predicate too costly", "predicate", p.String(), "pairs", cost, "limit", limit)
			continue
		}
		var covered []int
		for i, m := range matches {
			if p.covers(m[0], m[1]) {
				covered = append(covered, i)
			}
		}
		if len(covered) > 0 {
			pool = append(pool, candidate{pred: p, name: p.String(), cost: cost, covered: covered})
		}
	}

	uncovered := make(map[int]bool, len(matches))
	for i := range matches {
		uncovered[i] = true
	}
	var chosen []Predicate
	for len(uncovered) > 0 {
		best, bestGain := -1, 0
		for i, c := range pool {
			gain := 0
			for _, m := range c.covered {
				if uncovered[m] {
					gain++
				}
			}
			if gain == 0 {
				continue
			}
			if best < 0 || gain > bestGain ||
				(gain == bestGain && (c.cost < pool[best].cost ||
					(c.cost == pool[best].cost && c.name < pool[best].name))) {
				best, bestGain = i, gain
			}
		}
		if best < 0 {
			break
		}
		chosen = append(chosen, pool[best].pred)
		for _, m := range pool[best].covered {
			delete(uncovered, m)
		}
	}
	if len(uncovered) > 0 {
		slog.Debug("labeled duplicates not covered by any blocking predicate", "count", len(uncovered))
	}
	if len(chosen) == 0 {
		return DefaultPredicates(fields)
	}
	sort.SliceStable(chosen, func(i, j int) bool { return chosen[i].String() < chosen[j].String() })
	return chosen
}

// blockPairs returns the candidate pairs, as record indices with i < j,
// sharing at least one block under any predicate. Pairs are sorted.
func blockPairs(records []Record, predicates []Predicate) [][2]int {
	seen := map[[2]int]bool{}
	for _, p := range predicates {
		blocks := map[string][]int{}
		var order []string
		for i, rec := range records {
			for _, k := range p.Keys(rec) {
				if _, ok := blocks[k]; !ok {
					order = append(order, k)
				}
				blocks[k] = append(blocks[k], i)
			}
		}
		for _, k := range order {
			members := blocks[k]
			for x := 0; x < len(members); x++ {
				for y := x + 1; y < len(members); y++ {
					a, b := members[x], members[y]
					if a == b {
						continue
					}
					if a > b {
						a, b = b, a
					}
					seen[[2]int{a, b}] = true
				}
			}
		}
	}
	pairs := make([][2]int, 0, len(seen))
	for p := range seen {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})
	return pairs
}
