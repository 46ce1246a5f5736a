package deduplication

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// SentinelID is the id under which IsDuplicate inserts its candidate
const SentinelID = 0

// Deduplicator defines the interface for detecting duplicate flaws
//
// Example usage:
//
//	settings, err := deduplication.LoadSettings(cfg.SettingsPath)
//	if errors.Is(err, deduplication.ErrNoSettings) {
//	    // train first
//	}
//	engine, err := deduplication.NewEngine(cfg, settings)
//	result, err := engine.Partition(records)
//	for _, set := range result.Sets {
//	    fmt.Println(set.Primary, set.ToMark())
//	}
type Deduplicator interface {
	// Partition groups records into duplicate-sets. Only sets with more
	// than one member are returned.
	Partition(records []Record) (*Result, error)

	// IsDuplicate reports whether candidate would join a duplicate-set if
	// it were added to records
	IsDuplicate(records []Record, candidate Record) (bool, error)
}

// Member is one record of a duplicate-set
type Member struct {
	ID int `json:"id"`

	// Duplicate is true if the record was already labeled duplicate
	Duplicate bool `json:"duplicate"`

	// Score is the best score linking the member to the rest of the set
	Score float64 `json:"score"`
}

// DuplicateSet is a cluster of records judged to be the same flaw
type DuplicateSet struct {
	// Members in corpus order
	Members []Member `json:"members"`

	// Primary is the id of the first member not already labeled duplicate.
	// Only meaningful when HasPrimary is true.
	Primary    int  `json:"primary"`
	HasPrimary bool `json:"has_primary"`
}

// ToMark returns the ids that should be labeled as duplicates of the
// primary: every other member not already labeled
func (s DuplicateSet) ToMark() []int {
	if !s.HasPrimary {
		return nil
	}
	var ids []int
	for _, m := range s.Members {
		if m.ID != s.Primary && !m.Duplicate {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// Contains reports whether id is a member of the set
func (s DuplicateSet) Contains(id int) bool {
	for _, m := range s.Members {
		if m.ID == id {
			return true
		}
	}
	return false
}

// Result is the outcome of Partition
type Result struct {
	Sets      []DuplicateSet `json:"sets"`
	Threshold float64        `json:"threshold"`
	Stats     Stats          `json:"stats"`
}

// Stats provides metrics about a partition run
type Stats struct {
	// Records is the number of records partitioned
	Records int `json:"records"`

	// CandidatePairs is the number of pairs produced by blocking and scored
	CandidatePairs int `json:"candidate_pairs"`

	// Clusters is the number of duplicate-sets
	Clusters int `json:"clusters"`

	// ToMark is the number of records that need a duplicate label
	ToMark int `json:"to_mark"`

	// ProcessingTimeMs is the time taken in milliseconds
	ProcessingTimeMs int64 `json:"processing_time_ms"`
}

// Validate checks if the result has consistent values
func (r *Result) Validate() error {
	if r.Threshold < 0 || r.Threshold > 1 {
		return fmt.Errorf("threshold must be between 0.0 and 1.0 (got %.2f)", r.Threshold)
	}
	if r.Stats.Clusters != len(r.Sets) {
		return fmt.Errorf("stats.clusters (%d) does not match sets length (%d)", r.Stats.Clusters, len(r.Sets))
	}
	seen := map[int]bool{}
	toMark := 0
	for i, s := range r.Sets {
		if len(s.Members) < 2 {
			return fmt.Errorf("set %d has %d members, want at least 2", i, len(s.Members))
		}
		for _, m := range s.Members {
			if seen[m.ID] {
				return fmt.Errorf("record %d appears in more than one set", m.ID)
			}
			seen[m.ID] = true
		}
		if s.HasPrimary {
			if !s.Contains(s.Primary) {
				return fmt.Errorf("set %d primary %d is not a member", i, s.Primary)
			}
			for _, m := range s.Members {
				if m.ID == s.Primary && m.Duplicate {
					return fmt.Errorf("set %d primary %d is already labeled duplicate", i, s.Primary)
				}
			}
		}
		toMark += len(s.ToMark())
	}
	if r.Stats.ToMark != toMark {
		return fmt.Errorf("stats.to_mark (%d) does not match sets (%d)", r.Stats.ToMark, toMark)
	}
	if len(seen) > r.Stats.Records {
		return fmt.Errorf("sets contain %d records, more than the %d partitioned", len(seen), r.Stats.Records)
	}
	return nil
}

// Engine scores, blocks and clusters records with learned settings
type Engine struct {
	cfg      Config
	settings *Settings
}

var _ Deduplicator = (*Engine)(nil)

// NewEngine returns an engine using persisted settings. The fields of
// cfg are ignored in favor of the fields the settings were trained on.
func NewEngine(cfg Config, settings *Settings) (*Engine, error) {
	if settings == nil {
		return nil, ErrNoSettings
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	cfg.Fields = settings.Fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Engine{cfg: cfg, settings: settings}, nil
}

// Train runs an active learning session over records and fits the
// classifier and blocking predicates to the collected labels. Labels
// already in training are reused.
func Train(ctx context.Context, cfg Config, records []Record, training *TrainingData, labeler Labeler) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	learner := NewActiveLearner(cfg, records, training)
	if err := learner.Run(ctx, labeler); err != nil {
		return nil, err
	}
	return Fit(cfg, records, learner.Training())
}

// Fit builds settings from labeled examples without asking for labels
func Fit(cfg Config, records []Record, training *TrainingData) (*Engine, error) {
	if len(training.Match) == 0 || len(training.Distinct) == 0 {
		return nil, fmt.Errorf("training needs at least one duplicate and one distinct pair (have %d and %d)",
			len(training.Match), len(training.Distinct))
	}
	classifier, err := trainClassifier(training.examples(cfg.Fields), 2*len(cfg.Fields), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to train classifier: %w", err)
	}
	settings := &Settings{
		ModelID:    uuid.NewString(),
		Fields:     append([]FieldSpec(nil), cfg.Fields...),
		Classifier: *classifier,
		Predicates: learnPredicates(cfg.Fields, records, training.matches(), cfg),
		TrainedAt:  time.Now().UTC(),
	}
	slog.Debug("trained deduplication model",
		"model", settings.ModelID, "matches", len(training.Match),
		"distinct", len(training.Distinct), "predicates", len(settings.Predicates))
	return NewEngine(cfg, settings)
}

// Settings returns the learned settings for persistence
func (e *Engine) Settings() *Settings {
	return e.settings
}

// Score returns the match probability of two records
func (e *Engine) Score(a, b Record) float64 {
	return e.settings.Classifier.score(distances(e.settings.Fields, a, b))
}

// Partition implements Deduplicator
func (e *Engine) Partition(records []Record) (*Result, error) {
	start := time.Now()
	ids := make(map[int]bool, len(records))
	for _, r := range records {
		if ids[r.ID] {
			return nil, fmt.Errorf("record %d appears twice", r.ID)
		}
		ids[r.ID] = true
	}

	candidates := blockPairs(records, e.settings.Predicates)
	scored := make([]ScoredPair, len(candidates))
	scores := make([]float64, len(candidates))
	for i, p := range candidates {
		s := e.Score(records[p[0]], records[p[1]])
		scored[i] = ScoredPair{Left: p[0], Right: p[1], Score: s}
		scores[i] = s
	}
	threshold := chooseThreshold(scores, e.cfg.RecallWeight, e.cfg.MinThreshold)
	slog.Debug("partitioning records", "records", len(records), "pairs", len(candidates), "threshold", threshold)

	best := make([]float64, len(records))
	for _, p := range scored {
		if p.Score >= threshold {
			best[p.Left] = max(best[p.Left], p.Score)
			best[p.Right] = max(best[p.Right], p.Score)
		}
	}

	result := &Result{Threshold: threshold}
	for _, cluster := range clusterPairs(len(records), scored, threshold) {
		set := DuplicateSet{}
		for _, idx := range cluster {
			rec := records[idx]
			set.Members = append(set.Members, Member{ID: rec.ID, Duplicate: rec.Duplicate, Score: best[idx]})
			if !set.HasPrimary && !rec.Duplicate {
				set.Primary, set.HasPrimary = rec.ID, true
			}
		}
		result.Sets = append(result.Sets, set)
		result.Stats.ToMark += len(set.ToMark())
	}
	result.Stats.Records = len(records)
	result.Stats.CandidatePairs = len(candidates)
	result.Stats.Clusters = len(result.Sets)
	result.Stats.ProcessingTimeMs = time.Since(start).Milliseconds()
	return result, nil
}

// IsDuplicate implements Deduplicator. The candidate is added under
// SentinelID; corpus records using that id are left out.
func (e *Engine) IsDuplicate(records []Record, candidate Record) (bool, error) {
	corpus := make([]Record, 0, len(records)+1)
	for _, r := range records {
		if r.ID != SentinelID {
			corpus = append(corpus, r)
		}
	}
	candidate.ID = SentinelID
	corpus = append(corpus, candidate)

	result, err := e.Partition(corpus)
	if err != nil {
		return false, err
	}
	for _, set := range result.Sets {
		if set.Contains(SentinelID) {
			return true, nil
		}
	}
	return false, nil
}
