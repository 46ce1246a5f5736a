package deduplication

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Comparator kinds for a compared field
const (
	// KindExact compares values for equality after case folding
	KindExact = "exact"

	// KindText compares the token sets of two values (Jaccard similarity)
	KindText = "text"

	// KindString compares values character by character (normalized Levenshtein)
	KindString = "string"
)

// FieldSpec names one feature to compare and how to compare it
type FieldSpec struct {
	Name string `yaml:"name" json:"name"`
	Kind string `yaml:"kind" json:"kind"`
}

func (f FieldSpec) String() string {
	return f.Name + ":" + f.Kind
}

// Config holds configuration for the deduplication engine
type Config struct {
	// Fields are the features used for pairwise comparison.
	// Default: type (exact) and description (text)
	Fields []FieldSpec

	// RecallWeight is the beta of the F-score maximized when choosing
	// the decision threshold. Values above 1 favor recall.
	// Default: 1.5
	RecallWeight float64

	// MinThreshold is the lowest decision threshold the engine will use
	// Default: 0.5
	MinThreshold float64

	// SampleSize bounds the number of pairs considered as labeling
	// candidates during active learning. Corpora with fewer pairs use all of them.
	// Default: 5000
	SampleSize int

	// MaxBlockFraction caps how many candidate pairs a single blocking
	// predicate may produce, as a fraction of all pairs (never below 1000 pairs)
	// Default: 0.1
	MaxBlockFraction float64

	// LearningRate, Iterations and Regularization drive the logistic regression
	// Defaults: 0.5, 1000, 0.001
	LearningRate   float64
	Iterations     int
	Regularization float64

	// SettingsPath is where the learned classifier is persisted
	// Default: .rvd/dedup_settings.yaml
	SettingsPath string

	// TrainingPath is where labeled examples are persisted
	// Default: .rvd/dedup_training.json
	TrainingPath string
}

// DefaultFields are compared when no fields are configured
func DefaultFields() []FieldSpec {
	return []FieldSpec{
		{Name: "type", Kind: KindExact},
		{Name: "description", Kind: KindText},
	}
}

// DefaultConfig returns the default deduplication configuration
func DefaultConfig() Config {
	return Config{
		Fields:           DefaultFields(),
		RecallWeight:     1.5,
		MinThreshold:     0.5,
		SampleSize:       5000,
		MaxBlockFraction: 0.1,
		LearningRate:     0.5,
		Iterations:       1000,
		Regularization:   0.001,
		SettingsPath:     ".rvd/dedup_settings.yaml",
		TrainingPath:     ".rvd/dedup_training.json",
	}
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if len(c.Fields) == 0 {
		return fmt.Errorf("fields cannot be empty")
	}
	seen := make(map[string]bool, len(c.Fields))
	for _, f := range c.Fields {
		if f.Name == "" {
			return fmt.Errorf("field name cannot be empty")
		}
		if seen[f.Name] {
			return fmt.Errorf("field %q listed twice", f.Name)
		}
		seen[f.Name] = true
		switch f.Kind {
		case KindExact, KindText, KindString:
		default:
			return fmt.Errorf("field %q has unknown kind %q (want exact, text or string)", f.Name, f.Kind)
		}
	}
	if c.RecallWeight <= 0 {
		return fmt.Errorf("recall_weight must be positive (got %.2f)", c.RecallWeight)
	}
	if c.RecallWeight > 10 {
		return fmt.Errorf("recall_weight too large (got %.2f, max 10)", c.RecallWeight)
	}
	if c.MinThreshold < 0.0 || c.MinThreshold > 1.0 {
		return fmt.Errorf("min_threshold must be between 0.0 and 1.0 (got %.2f)", c.MinThreshold)
	}
	if c.SampleSize <= 0 {
		return fmt.Errorf("sample_size must be positive (got %d)", c.SampleSize)
	}
	if c.MaxBlockFraction <= 0.0 || c.MaxBlockFraction > 1.0 {
		return fmt.Errorf("max_block_fraction must be in (0.0, 1.0] (got %.2f)", c.MaxBlockFraction)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning_rate must be positive (got %v)", c.LearningRate)
	}
	if c.Iterations <= 0 {
		return fmt.Errorf("iterations must be positive (got %d)", c.Iterations)
	}
	if c.Iterations > 100000 {
		return fmt.Errorf("iterations too large (got %d, max 100000)", c.Iterations)
	}
	if c.Regularization < 0 {
		return fmt.Errorf("regularization cannot be negative (got %v)", c.Regularization)
	}
	if c.SettingsPath == "" {
		return fmt.Errorf("settings_path cannot be empty")
	}
	if c.TrainingPath == "" {
		return fmt.Errorf("training_path cannot be empty")
	}
	return nil
}

// String returns a human-readable representation of the config
func (c Config) String() string {
	fields := make([]string, len(c.Fields))
	for i, f := range c.Fields {
		fields[i] = f.String()
	}
	return fmt.Sprintf(
		"Config{Fields: [%s], RecallWeight: %.2f, MinThreshold: %.2f, SampleSize: %d, "+
			"MaxBlockFraction: %.2f, LearningRate: %v, Iterations: %d, Regularization: %v, "+
			"Settings: %s, Training: %s}",
		strings.Join(fields, ","), c.RecallWeight, c.MinThreshold, c.SampleSize,
		c.MaxBlockFraction, c.LearningRate, c.Iterations, c.Regularization,
		c.SettingsPath, c.TrainingPath,
	)
}

// ConfigFromEnv creates a Config from environment variables, falling back to defaults
//
// Environment variables:
//   - RVD_DEDUP_FIELDS: Comma separated name:kind list (default: type:exact,description:text)
//   - RVD_DEDUP_RECALL_WEIGHT: F-score beta for threshold selection (default: 1.5)
//   - RVD_DEDUP_MIN_THRESHOLD: Lowest decision threshold (default: 0.5)
//   - RVD_DEDUP_SAMPLE_SIZE: Active learning candidate pool size (default: 5000)
//   - RVD_DEDUP_MAX_BLOCK_FRACTION: Cap on pairs per blocking predicate (default: 0.1)
//   - RVD_DEDUP_ITERATIONS: Gradient descent iterations (default: 1000)
//   - RVD_DEDUP_SETTINGS_PATH: Learned settings file (default: .rvd/dedup_settings.yaml)
//   - RVD_DEDUP_TRAINING_PATH: Labeled examples file (default: .rvd/dedup_training.json)
//
// Returns an error if any environment variable has an invalid value.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if err := parseEnvFields("RVD_DEDUP_FIELDS", &cfg.Fields); err != nil {
		return cfg, err
	}
	if err := parseEnvFloat("RVD_DEDUP_RECALL_WEIGHT", &cfg.RecallWeight); err != nil {
		return cfg, err
	}
	if err := parseEnvFloat("RVD_DEDUP_MIN_THRESHOLD", &cfg.MinThreshold); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("RVD_DEDUP_SAMPLE_SIZE", &cfg.SampleSize); err != nil {
		return cfg, err
	}
	if err := parseEnvFloat("RVD_DEDUP_MAX_BLOCK_FRACTION", &cfg.MaxBlockFraction); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("RVD_DEDUP_ITERATIONS", &cfg.Iterations); err != nil {
		return cfg, err
	}
	if v := os.Getenv("RVD_DEDUP_SETTINGS_PATH"); v != "" {
		cfg.SettingsPath = v
	}
	if v := os.Getenv("RVD_DEDUP_TRAINING_PATH"); v != "" {
		cfg.TrainingPath = v
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration from environment: %w", err)
	}

	return cfg, nil
}

// ParseFields parses a "name:kind,name:kind" list. A name without a kind
// is compared as text.
func ParseFields(value string) ([]FieldSpec, error) {
	var fields []FieldSpec
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, kind, found := strings.Cut(part, ":")
		if !found {
			kind = KindText
		}
		name, kind = strings.TrimSpace(name), strings.TrimSpace(kind)
		if name == "" {
			return nil, fmt.Errorf("empty field name in %q", value)
		}
		fields = append(fields, FieldSpec{Name: name, Kind: kind})
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("no fields in %q", value)
	}
	return fields, nil
}

func parseEnvFields(key string, dest *[]FieldSpec) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	fields, err := ParseFields(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = fields
	return nil
}

// parseEnvFloat parses a float64 from an environment variable
func parseEnvFloat(key string, dest *float64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvInt parses an int from an environment variable
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}
