package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// RunLock is the lock file a parse run holds next to the database so two
// runs never write snapshots into the same project at once.
type RunLock struct {
	Holder    string    `json:"holder"`
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"started_at"`
	InputDir  string    `json:"input_dir,omitempty"`
}

const lockFileName = ".run-lock"

// AcquireRunLock creates the run lock beside dbPath and returns its path
// for release. In-memory databases need no lock and return an empty path.
// A lock left by a process that no longer exists is taken over.
func AcquireRunLock(dbPath, inputDir string) (lockPath string, err error) {
	if dbPath == ":memory:" {
		return "", nil
	}

	absPath, err := filepath.Abs(dbPath)
	if err != nil {
		return "", fmt.Errorf("invalid database path: %w", err)
	}
	lockPath = filepath.Join(filepath.Dir(absPath), lockFileName)

	if data, err := os.ReadFile(lockPath); err == nil {
		var existing RunLock
		if json.Unmarshal(data, &existing) == nil && isProcessAlive(existing.PID, existing.Hostname) {
			return "", fmt.Errorf("another parse run is already active (PID %d on %s, started %s)",
				existing.PID, existing.Hostname, existing.StartedAt.Format(time.RFC3339))
		}
	}

	hostname, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("failed to get hostname: %w", err)
	}

	lock := RunLock{
		Holder:    "ps4-parse",
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartedAt: time.Now(),
		InputDir:  inputDir,
	}

	data, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal lock: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create lock directory: %w", err)
	}
	if err := os.WriteFile(lockPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to create run lock: %w", err)
	}

	return lockPath, nil
}

// InspectRunLock returns the lock beside dbPath, if any, and whether its
// holder is still running.
func InspectRunLock(dbPath string) (lock *RunLock, alive bool, err error) {
	if dbPath == ":memory:" {
		return nil, false, nil
	}
	absPath, err := filepath.Abs(dbPath)
	if err != nil {
		return nil, false, fmt.Errorf("invalid database path: %w", err)
	}
	data, err := os.ReadFile(filepath.Join(filepath.Dir(absPath), lockFileName))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read run lock: %w", err)
	}
	var l RunLock
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, false, fmt.Errorf("corrupt run lock: %w", err)
	}
	return &l, isProcessAlive(l.PID, l.Hostname), nil
}

// ReleaseRunLock removes the lock file. An empty path is a no-op.
func ReleaseRunLock(lockPath string) error {
	if lockPath == "" {
		return nil
	}

	if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove run lock: %w", err)
	}

	return nil
}

// isProcessAlive reports whether pid is running on hostname. Processes on
// other hosts cannot be checked and count as alive.
func isProcessAlive(pid int, hostname string) bool {
	currentHost, err := os.Hostname()
	if err != nil {
		return true
	}

	if !strings.EqualFold(hostname, currentHost) {
		return true
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// Signal 0 probes without delivering anything
	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}

	// EPERM means it exists but belongs to someone else
	return err == syscall.EPERM
}
