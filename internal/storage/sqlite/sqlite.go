package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/steveyegge/ps4/internal/types"
)

// ErrNoSnapshot is returned when no stored run matches a lookup.
var ErrNoSnapshot = errors.New("no snapshot found")

// timeLayout is how timestamps are stored in TEXT columns. Fixed width UTC
// so that string order is time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStorage persists run snapshots in a SQLite database
type SQLiteStorage struct {
	db *sql.DB
}

// New creates a new SQLite storage backend. The special path ":memory:"
// opens a private in-memory database.
func New(path string) (*SQLiteStorage, error) {
	memory := path == ":memory:"

	var dsn string
	if memory {
		dsn = "file::memory:?_pragma=foreign_keys(1)"
	} else {
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		dsn = "file:" + path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if memory {
		// Every connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Initialize schema
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// SaveSnapshot stores a run and its records in one transaction. Saving a
// run ID that already exists is an error.
func (s *SQLiteStorage) SaveSnapshot(ctx context.Context, snap *types.Snapshot) error {
	if err := snap.Run.Validate(); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	run := snap.Run
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, input_dir, output_path, started_at, completed_at, candidates, kept, config)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.InputDir, run.OutputPath,
		run.StartedAt.UTC().Format(timeLayout), run.CompletedAt.UTC().Format(timeLayout),
		run.Candidates, run.Kept, run.Config)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO snapshot_chains (run_id, position, chain_id, first_res, input, dssp8)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range snap.Records {
		if err := rec.Validate(); err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, run.ID, i, rec.ID, rec.FirstResidue, rec.Residues, rec.Structure); err != nil {
			return fmt.Errorf("failed to insert chain %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetSnapshot returns the run with the given ID, or the single run whose
// ID starts with it, along with its records.
func (s *SQLiteStorage) GetSnapshot(ctx context.Context, runID string) (*types.Snapshot, error) {
	if runID == "" {
		return nil, fmt.Errorf("run id is required")
	}
	runs, err := s.queryRuns(ctx, `WHERE id = ?`, runID)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		runs, err = s.queryRuns(ctx, `WHERE substr(id, 1, ?) = ? LIMIT 2`, len(runID), runID)
		if err != nil {
			return nil, err
		}
	}
	switch len(runs) {
	case 0:
		return nil, fmt.Errorf("%w: run %s", ErrNoSnapshot, runID)
	case 1:
		return s.loadRecords(ctx, runs[0])
	default:
		return nil, fmt.Errorf("run id prefix %q is ambiguous", runID)
	}
}

// LatestSnapshot returns the most recently completed run and its records.
func (s *SQLiteStorage) LatestSnapshot(ctx context.Context) (*types.Snapshot, error) {
	runs, err := s.queryRuns(ctx, `ORDER BY completed_at DESC LIMIT 1`)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrNoSnapshot
	}
	return s.loadRecords(ctx, runs[0])
}

// ListRuns returns up to limit runs, newest first. A non-positive limit
// returns every run.
func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]*types.Run, error) {
	if limit <= 0 {
		return s.queryRuns(ctx, `ORDER BY completed_at DESC`)
	}
	return s.queryRuns(ctx, `ORDER BY completed_at DESC LIMIT ?`, limit)
}

// DeleteRun removes a run and its snapshot records.
func (s *SQLiteStorage) DeleteRun(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: run %s", ErrNoSnapshot, runID)
	}
	return nil
}

func (s *SQLiteStorage) queryRuns(ctx context.Context, clause string, args ...interface{}) ([]*types.Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, input_dir, output_path, started_at, completed_at, candidates, kept, config
		FROM runs `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*types.Run
	for rows.Next() {
		var run types.Run
		var started, completed string
		if err := rows.Scan(&run.ID, &run.InputDir, &run.OutputPath, &started, &completed,
			&run.Candidates, &run.Kept, &run.Config); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if run.StartedAt, err = time.Parse(timeLayout, started); err != nil {
			return nil, fmt.Errorf("run %s: invalid started_at: %w", run.ID, err)
		}
		if run.CompletedAt, err = time.Parse(timeLayout, completed); err != nil {
			return nil, fmt.Errorf("run %s: invalid completed_at: %w", run.ID, err)
		}
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

func (s *SQLiteStorage) loadRecords(ctx context.Context, run *types.Run) (*types.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chain_id, first_res, input, dssp8
		FROM snapshot_chains
		WHERE run_id = ?
		ORDER BY position
	`, run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot chains: %w", err)
	}
	defer rows.Close()

	snap := &types.Snapshot{Run: *run}
	for rows.Next() {
		var rec types.ChainRecord
		if err := rows.Scan(&rec.ID, &rec.FirstResidue, &rec.Residues, &rec.Structure); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot chain: %w", err)
		}
		snap.Records = append(snap.Records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshot chains: %w", err)
	}
	return snap, nil
}

// GetConfig gets a configuration value from the config table
func (s *SQLiteStorage) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetConfig sets a configuration value in the config table
func (s *SQLiteStorage) SetConfig(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
