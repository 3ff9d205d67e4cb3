package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// ProjectDir is the per-project directory holding the database and config.
const ProjectDir = ".ps4"

// DiscoverDatabase returns the database path for the current directory.
// PS4_DB takes precedence when set, so tests and scripts can point at a
// scratch database (including ":memory:"). Otherwise .ps4/ps4.db in the
// current directory is used; parent directories are not searched.
func DiscoverDatabase() (string, error) {
	if dbPath := os.Getenv("PS4_DB"); dbPath != "" {
		return dbPath, nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	return discoverDatabaseInDir(dir)
}

// discoverDatabaseInDir checks for .ps4/ps4.db in dir only.
func discoverDatabaseInDir(dir string) (string, error) {
	dbPath := filepath.Join(dir, ProjectDir, filepath.Base(DefaultPath))
	if info, err := os.Stat(dbPath); err == nil && !info.IsDir() {
		absPath, err := filepath.Abs(dbPath)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		return absPath, nil
	}

	return "", fmt.Errorf(
		"no %s/ps4.db found in %s\n"+
			"  Run 'ps4 init' to initialize a project in this directory\n"+
			"  Or use --db flag to specify database path explicitly",
		ProjectDir, dir)
}

// GetProjectRoot returns the project root directory for a given database path.
// The project root is the directory containing the .ps4/ directory.
//
// Example:
//
//	dbPath: /home/user/casp/.ps4/ps4.db
//	returns: /home/user/casp
func GetProjectRoot(dbPath string) (string, error) {
	absPath, err := filepath.Abs(dbPath)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	dbDir := filepath.Dir(absPath)
	if filepath.Base(dbDir) != ProjectDir {
		return "", fmt.Errorf("database must be in a %s/ directory, got: %s", ProjectDir, dbPath)
	}

	return filepath.Dir(dbDir), nil
}

// InitProject creates the .ps4 directory under projectDir and returns the
// path the database should be opened at. The database itself is created on
// first connection.
func InitProject(projectDir string) (string, error) {
	if _, err := os.Stat(projectDir); os.IsNotExist(err) {
		return "", fmt.Errorf("project directory does not exist: %s", projectDir)
	}

	dir := filepath.Join(projectDir, ProjectDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s directory: %w", ProjectDir, err)
	}

	dbPath := filepath.Join(dir, filepath.Base(DefaultPath))
	if _, err := os.Stat(dbPath); err == nil {
		return "", fmt.Errorf("database already exists: %s", dbPath)
	}

	return dbPath, nil
}
