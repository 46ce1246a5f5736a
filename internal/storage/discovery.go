package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DataDir is the per-project directory holding the local mirror, the
// classifier artifacts and the lock file
const DataDir = ".rvd"

// DefaultDBPath is the local mirror created by 'rvd init'
var DefaultDBPath = filepath.Join(DataDir, "rvd.db")

// DiscoverDatabase looks for .rvd/*.db in the current directory only.
// Returns the absolute path to the database file, or an error if not found.
//
// RVD_DB_PATH is checked first and used as is (":memory:" included).
func DiscoverDatabase() (string, error) {
	if dbPath := os.Getenv("RVD_DB_PATH"); dbPath != "" {
		return dbPath, nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	return discoverDatabaseInDir(dir)
}

// discoverDatabaseInDir checks for .rvd/*.db in dir. Parents are not searched.
func discoverDatabaseInDir(dir string) (string, error) {
	dataDir := filepath.Join(dir, DataDir)

	if info, err := os.Stat(dataDir); err == nil && info.IsDir() {
		entries, err := os.ReadDir(dataDir)
		if err == nil {
			for _, entry := range entries {
				if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".db") {
					absPath, err := filepath.Abs(filepath.Join(dataDir, entry.Name()))
					if err != nil {
						return "", fmt.Errorf("failed to get absolute path: %w", err)
					}
					return absPath, nil
				}
			}
		}
	}

	return "", fmt.Errorf(
		"no %s/*.db found in %s\n"+
			"  Run 'rvd init' to create a local mirror in this directory\n"+
			"  Or use --backend github to work against the tracker directly",
		DataDir, dir)
}

// GetProjectRoot returns the directory containing the .rvd/ directory of dbPath.
//
// Example:
//
//	dbPath: /home/user/triage/.rvd/rvd.db
//	returns: /home/user/triage
func GetProjectRoot(dbPath string) (string, error) {
	absPath, err := filepath.Abs(dbPath)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	dbDir := filepath.Dir(absPath)
	if filepath.Base(dbDir) != DataDir {
		return "", fmt.Errorf("database must be in a %s/ directory, got: %s", DataDir, dbPath)
	}
	return filepath.Dir(dbDir), nil
}

// InitProject creates projectDir/.rvd and returns the database path to use.
// The database itself is created on first connection.
func InitProject(projectDir, name string) (string, error) {
	if _, err := os.Stat(projectDir); os.IsNotExist(err) {
		return "", fmt.Errorf("project directory does not exist: %s", projectDir)
	}

	dataDir := filepath.Join(projectDir, DataDir)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s directory: %w", DataDir, err)
	}

	dbName := name
	if dbName == "" {
		dbName = "rvd"
	}
	if !strings.HasSuffix(dbName, ".db") {
		dbName += ".db"
	}

	dbPath := filepath.Join(dataDir, dbName)
	if _, err := os.Stat(dbPath); err == nil {
		return "", fmt.Errorf("database already exists: %s", dbPath)
	}
	return dbPath, nil
}
