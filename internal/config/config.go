// Package config loads the rvd command configuration.
//
// Sources, lowest precedence first: built-in defaults, .rvd.yaml (current
// directory, then $HOME), .env, environment (prefix RVD_), command flags.
// Credentials are resolved here and handed to components explicitly.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/aliasrobotics/RVD-sub000/internal/deduplication"
	"github.com/aliasrobotics/RVD-sub000/internal/storage"
	"github.com/aliasrobotics/RVD-sub000/internal/storage/github"
)

const (
	// ConfigName is the config file base name (.rvd.yaml)
	ConfigName = ".rvd"

	// EnvPrefix prefixes every environment variable (RVD_TRACKER_TOKEN, ...)
	EnvPrefix = "RVD"
)

// Viper keys
const (
	KeyBackend      = "tracker.backend"
	KeyOwner        = "tracker.owner"
	KeyRepo         = "tracker.repo"
	KeyToken        = "tracker.token"
	KeyBaseURL      = "tracker.base-url"
	KeyDBPath       = "tracker.db-path"
	KeyRecallWeight = "dedup.recall-weight"
	KeyFields       = "dedup.fields"
	KeySettingsPath = "dedup.settings-path"
	KeyTrainingPath = "dedup.training-path"
	KeyOutDir       = "out-dir"
)

var validate = validator.New()

// TrackerConfig selects the document store
type TrackerConfig struct {
	// Backend is "github" (the tracker) or "sqlite" (the local mirror)
	Backend string `mapstructure:"backend" validate:"required,oneof=github sqlite"`

	Owner   string `mapstructure:"owner" validate:"required_if=Backend github"`
	Repo    string `mapstructure:"repo" validate:"required_if=Backend github"`
	Token   string `mapstructure:"token"`
	BaseURL string `mapstructure:"base-url" validate:"omitempty,url"`

	// DBPath is the local mirror; empty means discover .rvd/*.db
	DBPath string `mapstructure:"db-path"`
}

// Config is the resolved configuration of one rvd invocation
type Config struct {
	Tracker TrackerConfig `mapstructure:"tracker"`

	// OutDir is where report and export write their files
	OutDir string `mapstructure:"out-dir" validate:"required"`

	Dedup deduplication.Config `mapstructure:"-"`
}

// DefaultConfig returns the configuration used when nothing is set
func DefaultConfig() Config {
	return Config{
		Tracker: TrackerConfig{
			Backend: storage.BackendGitHub,
			Owner:   "aliasrobotics",
			Repo:    "RVD",
		},
		OutDir: ".",
		Dedup:  deduplication.DefaultConfig(),
	}
}

// SetDefaults registers DefaultConfig on v so that environment variables
// for every key are picked up by Unmarshal
func SetDefaults(v *viper.Viper) {
	def := DefaultConfig()
	v.SetDefault(KeyBackend, def.Tracker.Backend)
	v.SetDefault(KeyOwner, def.Tracker.Owner)
	v.SetDefault(KeyRepo, def.Tracker.Repo)
	v.SetDefault(KeyToken, "")
	v.SetDefault(KeyBaseURL, "")
	v.SetDefault(KeyDBPath, "")
	v.SetDefault(KeyOutDir, def.OutDir)
}

// Load resolves the configuration. envFiles default to ".env"; missing
// files are ignored. Variables already in the environment win over .env.
func Load(v *viper.Viper, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
		slog.Debug("loaded env file", "file", f)
	}

	SetDefaults(v)

	if v.ConfigFileUsed() == "" {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		slog.Debug("no config file found")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv(KeyToken, EnvPrefix+"_TRACKER_TOKEN", "GITHUB_TOKEN"); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	dedup, err := deduplication.ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	if err := overlayDedup(v, &dedup); err != nil {
		return nil, err
	}
	cfg.Dedup = dedup

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func overlayDedup(v *viper.Viper, dedup *deduplication.Config) error {
	if v.IsSet(KeyRecallWeight) {
		dedup.RecallWeight = v.GetFloat64(KeyRecallWeight)
	}
	if v.IsSet(KeyFields) {
		raw := v.Get(KeyFields)
		var value string
		switch f := raw.(type) {
		case []any:
			parts := make([]string, 0, len(f))
			for _, p := range f {
				parts = append(parts, fmt.Sprint(p))
			}
			value = strings.Join(parts, ",")
		default:
			value = v.GetString(KeyFields)
		}
		fields, err := deduplication.ParseFields(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", KeyFields, err)
		}
		dedup.Fields = fields
	}
	if v.IsSet(KeySettingsPath) {
		dedup.SettingsPath = v.GetString(KeySettingsPath)
	}
	if v.IsSet(KeyTrainingPath) {
		dedup.TrainingPath = v.GetString(KeyTrainingPath)
	}
	return nil
}

// Validate checks struct constraints and the deduplication settings
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := c.Dedup.Validate(); err != nil {
		return fmt.Errorf("invalid dedup configuration: %w", err)
	}
	return nil
}

// StorageConfig maps the tracker settings onto the storage factory
func (c *Config) StorageConfig() *storage.Config {
	return &storage.Config{
		Backend: c.Tracker.Backend,
		Path:    c.Tracker.DBPath,
		GitHub: github.ClientConfig{
			Owner:   c.Tracker.Owner,
			Repo:    c.Tracker.Repo,
			Token:   c.Tracker.Token,
			BaseURL: c.Tracker.BaseURL,
		},
	}
}

// String returns a human-readable representation with the token masked
func (c *Config) String() string {
	token := "<unset>"
	if c.Tracker.Token != "" {
		token = "<set>"
	}
	return fmt.Sprintf("Config{Backend: %s, Repo: %s/%s, Token: %s, BaseURL: %q, DBPath: %q, OutDir: %s, Dedup: %s}",
		c.Tracker.Backend, c.Tracker.Owner, c.Tracker.Repo, token, c.Tracker.BaseURL, c.Tracker.DBPath, c.OutDir, c.Dedup)
}
