package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aliasrobotics/RVD-sub000/internal/storage/github"
	"github.com/aliasrobotics/RVD-sub000/internal/types"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("RVD_DB_PATH", "")
	cfg := DefaultConfig()
	if cfg.Backend != BackendSQLite || cfg.Path != DefaultDBPath {
		t.Errorf("DefaultConfig() = %+v", cfg)
	}

	t.Setenv("RVD_DB_PATH", ":memory:")
	if cfg := DefaultConfig(); cfg.Path != ":memory:" {
		t.Errorf("Path = %s, want :memory:", cfg.Path)
	}
}

func TestNewStorageSQLite(t *testing.T) {
	ctx := context.Background()
	store, err := NewStorage(ctx, &Config{Backend: BackendSQLite, Path: ":memory:"})
	if err != nil {
		t.Fatalf("NewStorage failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	rec, err := store.CreateRecord(ctx, "title", "body", []string{"triage"})
	if err != nil {
		t.Fatalf("CreateRecord failed: %v", err)
	}
	if _, err := store.GetRecord(ctx, rec.ID+1); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRecord error = %v, want ErrNotFound", err)
	}
}

func TestNewStorageGitHub(t *testing.T) {
	store, err := NewStorage(context.Background(), &Config{
		Backend: BackendGitHub,
		GitHub:  github.ClientConfig{Owner: "aliasrobotics", Repo: "RVD"},
	})
	if err != nil {
		t.Fatalf("NewStorage failed: %v", err)
	}
	if _, ok := store.(*github.Store); !ok {
		t.Errorf("store = %T, want *github.Store", store)
	}

	if _, err := NewStorage(context.Background(), &Config{Backend: BackendGitHub}); err == nil {
		t.Error("Expected error without owner/repo")
	}
}

func TestNewStorageUnknownBackend(t *testing.T) {
	if _, err := NewStorage(context.Background(), &Config{Backend: "jira"}); err == nil {
		t.Error("Expected error for unknown backend")
	}
}

func TestNewStorageDiscoversPath(t *testing.T) {
	t.Setenv("RVD_DB_PATH", filepath.Join(t.TempDir(), DataDir, "rvd.db"))
	store, err := NewStorage(context.Background(), &Config{Backend: BackendSQLite})
	if err != nil {
		t.Fatalf("NewStorage failed: %v", err)
	}
	_ = store.Close()
}

func TestExclusiveLock(t *testing.T) {
	dir := t.TempDir()

	lockPath, err := AcquireExclusiveLock(dir, "rvd duplicates", "test")
	if err != nil {
		t.Fatalf("AcquireExclusiveLock failed: %v", err)
	}
	if lockPath != filepath.Join(dir, DataDir, ".lock") {
		t.Errorf("lockPath = %s", lockPath)
	}

	// held by this (live) process
	if _, err := AcquireExclusiveLock(dir, "rvd import", "test"); !errors.Is(err, ErrLocked) {
		t.Errorf("second acquire error = %v, want ErrLocked", err)
	}

	if err := ReleaseExclusiveLock(lockPath); err != nil {
		t.Fatalf("ReleaseExclusiveLock failed: %v", err)
	}
	if err := ReleaseExclusiveLock(lockPath); err != nil {
		t.Errorf("releasing twice should be a no-op, got %v", err)
	}
	if err := ReleaseExclusiveLock(""); err != nil {
		t.Errorf("empty path should be a no-op, got %v", err)
	}
}

func TestExclusiveLockOverwritesStaleLock(t *testing.T) {
	dir := t.TempDir()
	hostname, err := os.Hostname()
	if err != nil {
		t.Skip("hostname unavailable")
	}

	stale := ExclusiveLock{
		Holder:    "rvd import",
		PID:       1 << 22, // above the default pid_max
		Hostname:  hostname,
		StartedAt: time.Now().Add(-time.Hour),
	}
	data, _ := json.Marshal(stale)
	if err := os.MkdirAll(filepath.Join(dir, DataDir), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, DataDir, ".lock"), data, 0644); err != nil {
		t.Fatal(err)
	}

	lockPath, err := AcquireExclusiveLock(dir, "rvd duplicates", "test")
	if err != nil {
		t.Fatalf("stale lock should be overwritten, got %v", err)
	}
	defer func() { _ = ReleaseExclusiveLock(lockPath) }()

	raw, err := os.ReadFile(lockPath)
	if err != nil {
		t.Fatal(err)
	}
	var got ExclusiveLock
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatal(err)
	}
	if got.PID != os.Getpid() || got.Holder != "rvd duplicates" {
		t.Errorf("lock = %+v", got)
	}
}

func TestRecordFilterThroughStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewStorage(ctx, &Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("NewStorage failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	for _, labels := range [][]string{{"vulnerability"}, {"weakness"}} {
		if _, err := store.CreateRecord(ctx, "t", "", labels); err != nil {
			t.Fatal(err)
		}
	}
	records, err := store.ListRecords(ctx, types.RecordFilter{Labels: []string{"weakness"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || !records[0].HasLabel("weakness") {
		t.Errorf("records = %+v", records)
	}
}
