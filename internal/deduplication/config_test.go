package deduplication

import (
	"reflect"
	"strings"
	"testing"
)

var dedupEnv = []string{
	"RVD_DEDUP_FIELDS",
	"RVD_DEDUP_RECALL_WEIGHT",
	"RVD_DEDUP_MIN_THRESHOLD",
	"RVD_DEDUP_SAMPLE_SIZE",
	"RVD_DEDUP_MAX_BLOCK_FRACTION",
	"RVD_DEDUP_ITERATIONS",
	"RVD_DEDUP_SETTINGS_PATH",
	"RVD_DEDUP_TRAINING_PATH",
}

func TestConfigFromEnv(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(t *testing.T, cfg Config)
	}{
		{
			name:    "no environment variables uses defaults",
			envVars: map[string]string{},
			check: func(t *testing.T, cfg Config) {
				if !reflect.DeepEqual(cfg, DefaultConfig()) {
					t.Errorf("ConfigFromEnv() = %v, want %v", cfg, DefaultConfig())
				}
			},
		},
		{
			name: "valid custom configuration",
			envVars: map[string]string{
				"RVD_DEDUP_FIELDS":             "type:exact, title:string, description",
				"RVD_DEDUP_RECALL_WEIGHT":      "2",
				"RVD_DEDUP_MIN_THRESHOLD":      "0.6",
				"RVD_DEDUP_SAMPLE_SIZE":        "100",
				"RVD_DEDUP_MAX_BLOCK_FRACTION": "0.5",
				"RVD_DEDUP_ITERATIONS":         "50",
				"RVD_DEDUP_SETTINGS_PATH":      "/tmp/settings.yaml",
				"RVD_DEDUP_TRAINING_PATH":      "/tmp/training.json",
			},
			check: func(t *testing.T, cfg Config) {
				want := []FieldSpec{
					{Name: "type", Kind: KindExact},
					{Name: "title", Kind: KindString},
					{Name: "description", Kind: KindText},
				}
				if !reflect.DeepEqual(cfg.Fields, want) {
					t.Errorf("Fields = %v, want %v", cfg.Fields, want)
				}
				if cfg.RecallWeight != 2 {
					t.Errorf("RecallWeight = %v, want 2", cfg.RecallWeight)
				}
				if cfg.MinThreshold != 0.6 {
					t.Errorf("MinThreshold = %v, want 0.6", cfg.MinThreshold)
				}
				if cfg.SampleSize != 100 {
					t.Errorf("SampleSize = %v, want 100", cfg.SampleSize)
				}
				if cfg.MaxBlockFraction != 0.5 {
					t.Errorf("MaxBlockFraction = %v, want 0.5", cfg.MaxBlockFraction)
				}
				if cfg.Iterations != 50 {
					t.Errorf("Iterations = %v, want 50", cfg.Iterations)
				}
				if cfg.SettingsPath != "/tmp/settings.yaml" {
					t.Errorf("SettingsPath = %v", cfg.SettingsPath)
				}
				if cfg.TrainingPath != "/tmp/training.json" {
					t.Errorf("TrainingPath = %v", cfg.TrainingPath)
				}
			},
		},
		{
			name:    "invalid float value",
			envVars: map[string]string{"RVD_DEDUP_RECALL_WEIGHT": "not-a-number"},
			wantErr: true,
		},
		{
			name:    "invalid int value",
			envVars: map[string]string{"RVD_DEDUP_SAMPLE_SIZE": "many"},
			wantErr: true,
		},
		{
			name:    "unknown comparator kind",
			envVars: map[string]string{"RVD_DEDUP_FIELDS": "type:fuzzy"},
			wantErr: true,
		},
		{
			name:    "empty field list",
			envVars: map[string]string{"RVD_DEDUP_FIELDS": " , "},
			wantErr: true,
		},
		{
			name:    "value out of range - threshold too high",
			envVars: map[string]string{"RVD_DEDUP_MIN_THRESHOLD": "1.5"},
			wantErr: true,
		},
		{
			name:    "value out of range - recall weight zero",
			envVars: map[string]string{"RVD_DEDUP_RECALL_WEIGHT": "0"},
			wantErr: true,
		},
		{
			name:    "partial configuration",
			envVars: map[string]string{"RVD_DEDUP_RECALL_WEIGHT": "1"},
			check: func(t *testing.T, cfg Config) {
				if cfg.RecallWeight != 1 {
					t.Errorf("RecallWeight = %v, want 1", cfg.RecallWeight)
				}
				defaults := DefaultConfig()
				if cfg.MinThreshold != defaults.MinThreshold {
					t.Errorf("MinThreshold = %v, want %v (default)", cfg.MinThreshold, defaults.MinThreshold)
				}
				if !reflect.DeepEqual(cfg.Fields, defaults.Fields) {
					t.Errorf("Fields = %v, want %v (default)", cfg.Fields, defaults.Fields)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range dedupEnv {
				t.Setenv(key, "")
			}
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			cfg, err := ConfigFromEnv()
			if (err != nil) != tt.wantErr {
				t.Errorf("ConfigFromEnv() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"no fields", func(c *Config) { c.Fields = nil }, "fields cannot be empty"},
		{"duplicate field", func(c *Config) { c.Fields = append(c.Fields, c.Fields[0]) }, "listed twice"},
		{"blank field name", func(c *Config) { c.Fields[0].Name = "" }, "field name cannot be empty"},
		{"sample size", func(c *Config) { c.SampleSize = 0 }, "sample_size"},
		{"block fraction", func(c *Config) { c.MaxBlockFraction = 0 }, "max_block_fraction"},
		{"learning rate", func(c *Config) { c.LearningRate = 0 }, "learning_rate"},
		{"iterations", func(c *Config) { c.Iterations = 1 << 20 }, "iterations too large"},
		{"regularization", func(c *Config) { c.Regularization = -1 }, "regularization"},
		{"settings path", func(c *Config) { c.SettingsPath = "" }, "settings_path"},
		{"training path", func(c *Config) { c.TrainingPath = "" }, "training_path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfigString(t *testing.T) {
	s := DefaultConfig().String()
	for _, want := range []string{"type:exact", "description:text", "RecallWeight: 1.50", "dedup_settings.yaml"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %q, missing %q", s, want)
		}
	}
}
