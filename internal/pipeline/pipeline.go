// Package pipeline runs a parse: DSSP files are extracted and filtered
// against the reference sets in parallel, the survivors are
// self-deduplicated, and the final set is written as CSV and stored as a
// snapshot.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/steveyegge/ps4/internal/config"
	"github.com/steveyegge/ps4/internal/deduplication"
	"github.com/steveyegge/ps4/internal/dssp"
	"github.com/steveyegge/ps4/internal/output"
	"github.com/steveyegge/ps4/internal/refset"
	"github.com/steveyegge/ps4/internal/storage"
	"github.com/steveyegge/ps4/internal/types"
	"github.com/steveyegge/ps4/internal/workpool"
)

// progressInterval throttles the running accepted-count log.
const progressInterval = 2 * time.Second

// Result summarizes a completed parse run.
type Result struct {
	RunID      string `json:"run_id,omitempty"`
	OutputPath string `json:"output_path"`

	FilesProcessed   int `json:"files_processed"`
	ChainsExtracted  int `json:"chains_extracted"`
	TooShort         int `json:"too_short"`
	RejectedCrossSet int `json:"rejected_cross_set"`
	DuplicateIDs     int `json:"duplicate_ids"`

	// Accepted is the number of chains that entered self-deduplication.
	Accepted int `json:"accepted"`

	// Kept is the size of the final deduplicated set.
	Kept int `json:"kept"`

	ReferenceSets int                              `json:"reference_sets"`
	Dedup         deduplication.DeduplicationStats `json:"dedup"`
	Duration      time.Duration                    `json:"duration"`
}

// Orchestrator runs parses for one configuration. The store may be nil,
// in which case nothing is persisted and previous snapshots are ignored.
type Orchestrator struct {
	cfg   *config.Config
	store storage.Storage
	cache *refset.Cache
}

// NewOrchestrator validates cfg and returns an orchestrator bound to it.
func NewOrchestrator(cfg *config.Config, store storage.Storage) (*Orchestrator, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &Orchestrator{cfg: cfg, store: store, cache: refset.NewCache()}, nil
}

// Run opens the configured database when the run stores a snapshot or
// excludes the previous one, and parses inputDir into outputPath.
func Run(ctx context.Context, cfg *config.Config, inputDir, outputPath string) (*Result, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	var store storage.Storage
	if cfg.Snapshot || cfg.ExcludePreviousSnapshot {
		s, err := storage.NewStorage(ctx, &storage.Config{Path: cfg.Database})
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		defer func() { _ = s.Close() }()
		store = s
	}

	o, err := NewOrchestrator(cfg, store)
	if err != nil {
		return nil, err
	}
	return o.Run(ctx, inputDir, outputPath)
}

// fileResult is what one extraction task hands back to the join.
type fileResult struct {
	accepted  []*types.ChainRecord
	extracted int
	tooShort  int
	rejected  int
}

// Run parses every file in inputDir and writes the deduplicated chains to
// outputPath, replacing any existing file. Any extraction, reference-set,
// or write failure aborts the run; failures from parallel tasks are joined
// into one error.
func (o *Orchestrator) Run(ctx context.Context, inputDir, outputPath string) (*Result, error) {
	start := time.Now()
	cfg := o.cfg
	persist := o.store != nil && cfg.Snapshot

	if persist {
		lockPath, err := storage.AcquireRunLock(cfg.Database, inputDir)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := storage.ReleaseRunLock(lockPath); err != nil {
				slog.Warn("failed to release run lock", "path", lockPath, "error", err)
			}
		}()
	}

	pool := workpool.New(cfg.Workers)
	dcfg, err := cfg.DedupConfig()
	if err != nil {
		return nil, fmt.Errorf("invalid deduplication config: %w", err)
	}
	reducer, err := deduplication.NewReducer(pool, dcfg)
	if err != nil {
		return nil, err
	}

	sets, err := o.referenceSets(ctx, pool)
	if err != nil {
		return nil, err
	}
	filter := deduplication.NewCrossSetFilter(cfg.CrossSetThreshold, sets...)

	files, err := listInputs(inputDir)
	if err != nil {
		return nil, err
	}
	slog.Info("parsing input files", "dir", inputDir, "files", len(files), "reference_sets", len(sets))

	var accepted atomic.Int64
	progress := rate.Sometimes{Interval: progressInterval}

	perFile, err := workpool.Map(ctx, pool, len(files), func(ctx context.Context, i int) (*fileResult, error) {
		records, err := dssp.ExtractFile(files[i])
		if err != nil {
			return nil, err
		}

		fr := &fileResult{extracted: len(records)}
		for _, rec := range records {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if rec.Len() < cfg.MinChainLength {
				fr.tooShort++
				slog.Debug("chain too short", "chain_id", rec.ID, "length", rec.Len())
				continue
			}
			if ok, rej := filter.Check(rec.Residues); !ok {
				fr.rejected++
				slog.Debug("chain rejected", "chain_id", rec.ID, "reference_set", rej.Set, "row", rej.Index)
				continue
			}
			fr.accepted = append(fr.accepted, rec)
			n := accepted.Add(1)
			progress.Do(func() { slog.Info("accepted chains", "accepted", n) })
		}
		return fr, nil
	})
	if err != nil {
		return nil, fmt.Errorf("extraction failed: %w", err)
	}

	res := &Result{
		OutputPath:     outputPath,
		FilesProcessed: len(files),
		ReferenceSets:  len(sets),
	}

	// Joined in file order so duplicate IDs resolve the same way every run
	ws := types.NewWorkingSet()
	for i, fr := range perFile {
		res.ChainsExtracted += fr.extracted
		res.TooShort += fr.tooShort
		res.RejectedCrossSet += fr.rejected
		for _, rec := range fr.accepted {
			if !ws.Add(rec) {
				res.DuplicateIDs++
				slog.Warn("duplicate chain id dropped", "chain_id", rec.ID, "file", files[i])
			}
		}
	}
	res.Accepted = ws.Len()
	slog.Info("extraction complete", "files", len(files), "extracted", res.ChainsExtracted,
		"too_short", res.TooShort, "rejected", res.RejectedCrossSet, "accepted", res.Accepted)

	dedup, err := reducer.Reduce(ctx, ws.Sequences())
	if err != nil {
		return nil, fmt.Errorf("deduplication failed: %w", err)
	}
	res.Dedup = dedup.Stats
	res.Kept = dedup.Kept.Len()

	records, err := output.Select(ws, dedup.Kept.Sorted())
	if err != nil {
		return nil, err
	}
	if err := output.WriteFile(outputPath, records); err != nil {
		return nil, err
	}

	if persist {
		run := types.Run{
			ID:          uuid.New().String(),
			InputDir:    inputDir,
			OutputPath:  outputPath,
			StartedAt:   start,
			CompletedAt: time.Now(),
			Candidates:  res.Accepted,
			Kept:        res.Kept,
			Config:      cfg.YAML(),
		}
		if err := o.store.SaveSnapshot(ctx, &types.Snapshot{Run: run, Records: records}); err != nil {
			return nil, fmt.Errorf("failed to save snapshot: %w", err)
		}
		res.RunID = run.ID
	}

	res.Duration = time.Since(start)
	slog.Info("parse complete", "run_id", res.RunID, "kept", res.Kept, "output", outputPath, "duration", res.Duration)
	return res, nil
}

// referenceSets loads every configured reference file in parallel, then
// appends the latest snapshot when configured to exclude it.
func (o *Orchestrator) referenceSets(ctx context.Context, pool *workpool.Pool) ([]*refset.Set, error) {
	refs := o.cfg.ReferenceSets
	sets, err := workpool.Map(ctx, pool, len(refs), func(ctx context.Context, i int) (*refset.Set, error) {
		return o.cache.Get(refs[i].Path, o.cfg.ColumnFor(refs[i]))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load reference sets: %w", err)
	}
	for _, s := range sets {
		slog.Debug("reference set loaded", "reference_set", s.Name, "sequences", s.Len())
	}

	if !o.cfg.ExcludePreviousSnapshot || o.store == nil {
		return sets, nil
	}
	snap, err := o.store.LatestSnapshot(ctx)
	if errors.Is(err, storage.ErrNoSnapshot) {
		slog.Info("no previous snapshot to exclude")
		return sets, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load previous snapshot: %w", err)
	}
	slog.Info("excluding previous snapshot", "run_id", snap.Run.ID, "sequences", len(snap.Records))
	return append(sets, refset.FromSequences("snapshot "+snap.Run.ID, snap.Sequences())), nil
}

// listInputs returns the non-directory entries of dir in name order.
func listInputs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}
