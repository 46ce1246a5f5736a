package deduplication

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/aliasrobotics/RVD-sub000/internal/types"
)

// ErrNoSettings is returned when no learned classifier has been persisted
var ErrNoSettings = errors.New("no deduplication settings found (run with --train first)")

// Settings is the persisted, learned state of the engine
type Settings struct {
	ModelID    string      `yaml:"model-id"`
	Fields     []FieldSpec `yaml:"fields"`
	Classifier Classifier  `yaml:"classifier"`
	Predicates []Predicate `yaml:"predicates"`
	TrainedAt  time.Time   `yaml:"trained-at"`
}

// Validate checks the settings are usable for scoring
func (s *Settings) Validate() error {
	if s.ModelID == "" {
		return fmt.Errorf("model-id cannot be empty")
	}
	if _, err := uuid.Parse(s.ModelID); err != nil {
		return fmt.Errorf("invalid model-id %q: %w", s.ModelID, err)
	}
	if len(s.Fields) == 0 {
		return fmt.Errorf("fields cannot be empty")
	}
	if len(s.Classifier.Weights) != 2*len(s.Fields) {
		return fmt.Errorf("classifier has %d weights, want %d for %d fields",
			len(s.Classifier.Weights), 2*len(s.Fields), len(s.Fields))
	}
	if len(s.Predicates) == 0 {
		return fmt.Errorf("predicates cannot be empty")
	}
	return nil
}

// LoadSettings reads settings from path. A missing file yields ErrNoSettings.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSettings
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse settings %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings %s: %w", path, err)
	}
	return &s, nil
}

// Save writes the settings to path, creating parent directories
func (s *Settings) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return writeFile(path, data)
}

// TrainingData is the set of labeled pairs collected by active learning
type TrainingData struct {
	Match    [][2]types.FeatureMap `json:"match"`
	Distinct [][2]types.FeatureMap `json:"distinct"`
}

// Add records a labeled pair
func (t *TrainingData) Add(a, b Record, match bool) {
	pair := [2]types.FeatureMap{a.Features, b.Features}
	if match {
		t.Match = append(t.Match, pair)
	} else {
		t.Distinct = append(t.Distinct, pair)
	}
}

// Len is the number of labeled pairs
func (t *TrainingData) Len() int {
	return len(t.Match) + len(t.Distinct)
}

func (t *TrainingData) examples(fields []FieldSpec) []example {
	out := make([]example, 0, t.Len())
	for _, p := range t.Match {
		out = append(out, example{x: distances(fields, Record{Features: p[0]}, Record{Features: p[1]}), match: true})
	}
	for _, p := range t.Distinct {
		out = append(out, example{x: distances(fields, Record{Features: p[0]}, Record{Features: p[1]}), match: false})
	}
	return out
}

func (t *TrainingData) matches() [][2]Record {
	out := make([][2]Record, len(t.Match))
	for i, p := range t.Match {
		out[i] = [2]Record{{Features: p[0]}, {Features: p[1]}}
	}
	return out
}

// LoadTrainingData reads labeled pairs from path. A missing file yields an
// empty set so that training can start from scratch.
func LoadTrainingData(path string) (*TrainingData, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &TrainingData{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read training data: %w", err)
	}
	var t TrainingData
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse training data %s: %w", path, err)
	}
	return &t, nil
}

// Save writes the labeled pairs to path, creating parent directories
func (t *TrainingData) Save(path string) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode training data: %w", err)
	}
	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
