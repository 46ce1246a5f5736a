package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliasrobotics/RVD-sub000/internal/deduplication"
	"github.com/aliasrobotics/RVD-sub000/internal/storage"
)

// isolate runs the test in an empty directory with no RVD_ variables, no
// GITHUB_TOKEN and an empty $HOME. Variables set by .env files are
// removed again when the test ends.
func isolate(t *testing.T) string {
	t.Helper()
	keys := []string{"GITHUB_TOKEN", "RVD_TRACKER_OWNER", "RVD_TRACKER_REPO", "RVD_TRACKER_TOKEN", "RVD_TRACKER_BACKEND"}
	for _, kv := range os.Environ() {
		k, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(k, "RVD_") {
			keys = append(keys, k)
		}
	}
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(viper.New())
	require.NoError(t, err)
	assert.Equal(t, storage.BackendGitHub, cfg.Tracker.Backend)
	assert.Equal(t, "aliasrobotics", cfg.Tracker.Owner)
	assert.Equal(t, "RVD", cfg.Tracker.Repo)
	assert.Empty(t, cfg.Tracker.Token)
	assert.Equal(t, ".", cfg.OutDir)
	assert.Equal(t, deduplication.DefaultConfig(), cfg.Dedup)
}

func TestLoadConfigFile(t *testing.T) {
	dir := isolate(t)
	writeFile(t, dir, ".rvd.yaml", `
tracker:
  backend: sqlite
  db-path: mirror/.rvd/rvd.db
out-dir: reports
dedup:
  recall-weight: 2.5
  fields: [type:exact, title:string]
  settings-path: model.yaml
`)

	cfg, err := Load(viper.New())
	require.NoError(t, err)
	assert.Equal(t, storage.BackendSQLite, cfg.Tracker.Backend)
	assert.Equal(t, "mirror/.rvd/rvd.db", cfg.Tracker.DBPath)
	assert.Equal(t, "reports", cfg.OutDir)
	assert.Equal(t, 2.5, cfg.Dedup.RecallWeight)
	assert.Equal(t, []deduplication.FieldSpec{
		{Name: "type", Kind: deduplication.KindExact},
		{Name: "title", Kind: deduplication.KindString},
	}, cfg.Dedup.Fields)
	assert.Equal(t, "model.yaml", cfg.Dedup.SettingsPath)
	assert.Equal(t, deduplication.DefaultConfig().TrainingPath, cfg.Dedup.TrainingPath)
}

func TestLoadEnvironment(t *testing.T) {
	t.Run("GITHUB_TOKEN is a fallback for the tracker token", func(t *testing.T) {
		isolate(t)
		t.Setenv("GITHUB_TOKEN", "ghp_fallback")
		t.Setenv("RVD_TRACKER_OWNER", "someone")

		cfg, err := Load(viper.New())
		require.NoError(t, err)
		assert.Equal(t, "ghp_fallback", cfg.Tracker.Token)
		assert.Equal(t, "someone", cfg.Tracker.Owner)
	})

	t.Run("RVD_TRACKER_TOKEN wins", func(t *testing.T) {
		isolate(t)
		t.Setenv("GITHUB_TOKEN", "ghp_fallback")
		t.Setenv("RVD_TRACKER_TOKEN", "ghp_explicit")

		cfg, err := Load(viper.New())
		require.NoError(t, err)
		assert.Equal(t, "ghp_explicit", cfg.Tracker.Token)
	})

	t.Run("dedup variables", func(t *testing.T) {
		isolate(t)
		t.Setenv("RVD_DEDUP_RECALL_WEIGHT", "3")
		t.Setenv("RVD_DEDUP_FIELDS", "description")

		cfg, err := Load(viper.New())
		require.NoError(t, err)
		assert.Equal(t, 3.0, cfg.Dedup.RecallWeight)
		assert.Equal(t, []deduplication.FieldSpec{{Name: "description", Kind: deduplication.KindText}}, cfg.Dedup.Fields)
	})

	t.Run("env overrides config file", func(t *testing.T) {
		dir := isolate(t)
		writeFile(t, dir, ".rvd.yaml", "tracker:\n  repo: from-file\n")
		t.Setenv("RVD_TRACKER_REPO", "from-env")

		cfg, err := Load(viper.New())
		require.NoError(t, err)
		assert.Equal(t, "from-env", cfg.Tracker.Repo)
	})
}

func TestLoadDotEnv(t *testing.T) {
	dir := isolate(t)
	writeFile(t, dir, ".env", "RVD_TRACKER_REPO=from-dotenv\nRVD_TRACKER_OWNER=dotenv-owner\n")
	t.Setenv("RVD_TRACKER_OWNER", "real-owner")

	cfg, err := Load(viper.New())
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Tracker.Repo)
	assert.Equal(t, "real-owner", cfg.Tracker.Owner, "existing variables win over .env")

	_, err = Load(viper.New(), filepath.Join(dir, "missing.env"))
	assert.NoError(t, err, "missing env files are ignored")
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "unknown backend",
			config:  "tracker:\n  backend: jira\n",
			wantErr: "Backend",
		},
		{
			name:    "github backend needs an owner",
			config:  "tracker:\n  owner: \"\"\n",
			wantErr: "Owner",
		},
		{
			name:    "base url must be a url",
			config:  "tracker:\n  base-url: not a url\n",
			wantErr: "BaseURL",
		},
		{
			name:    "dedup recall weight",
			config:  "dedup:\n  recall-weight: 0\n",
			wantErr: "recall_weight",
		},
		{
			name:    "dedup fields",
			config:  "dedup:\n  fields: \",\"\n",
			wantErr: "dedup.fields",
		},
		{
			name:    "invalid dedup environment",
			env:     map[string]string{"RVD_DEDUP_ITERATIONS": "many"},
			wantErr: "RVD_DEDUP_ITERATIONS",
		},
		{
			name:    "broken config file",
			config:  "tracker: [\n",
			wantErr: "config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolate(t)
			if tt.config != "" {
				writeFile(t, dir, ".rvd.yaml", tt.config)
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(viper.New())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestStorageConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tracker.Token = "secret"
	cfg.Tracker.BaseURL = "https://ghe.example.com/api/v3"

	sc := cfg.StorageConfig()
	assert.Equal(t, storage.BackendGitHub, sc.Backend)
	assert.Equal(t, "aliasrobotics", sc.GitHub.Owner)
	assert.Equal(t, "RVD", sc.GitHub.Repo)
	assert.Equal(t, "secret", sc.GitHub.Token)
	assert.Equal(t, "https://ghe.example.com/api/v3", sc.GitHub.BaseURL)

	s := cfg.String()
	assert.NotContains(t, s, "secret")
	assert.Contains(t, s, "Token: <set>")
	assert.Contains(t, s, "Repo: aliasrobotics/RVD")
}
