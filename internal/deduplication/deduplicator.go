package deduplication

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/steveyegge/ps4/internal/similarity"
	"github.com/steveyegge/ps4/internal/types"
	"github.com/steveyegge/ps4/internal/workpool"
)

// Deduplicator removes near-duplicates from a pool of candidate sequences.
type Deduplicator interface {
	// Reduce returns the IDs of a subset of seqs in which no two members are
	// near-duplicates. seqs maps chain ID to residue string and is only read.
	Reduce(ctx context.Context, seqs map[string]string) (*DeduplicationResult, error)
}

// DeduplicationResult is the outcome of one Reduce call.
type DeduplicationResult struct {
	// Kept holds the surviving chain IDs.
	Kept *types.KeptSet `json:"-"`

	Stats DeduplicationStats `json:"stats"`
}

// DeduplicationStats provides metrics about the deduplication process
type DeduplicationStats struct {
	// TotalCandidates is the number of IDs handed to the reducer
	TotalCandidates int `json:"total_candidates"`

	// KeptCount is the size of the final set
	KeptCount int `json:"kept_count"`

	// Chunks is the number of non-empty partitions reduced in parallel
	Chunks int `json:"chunks"`

	// IntraDuplicates counts candidates dropped inside their own chunk
	IntraDuplicates int `json:"intra_duplicates"`

	// InterDuplicates counts kept members dropped while merging chunks
	InterDuplicates int `json:"inter_duplicates"`

	// MergeRounds is the number of pairwise merge rounds
	MergeRounds int `json:"merge_rounds"`

	// ComparisonsMade is the total number of ratio computations
	ComparisonsMade int64 `json:"comparisons_made"`

	// ProcessingTimeMs is the time taken in milliseconds
	ProcessingTimeMs int64 `json:"processing_time_ms"`
}

// Validate checks if the stats are internally consistent
func (s *DeduplicationStats) Validate() error {
	if s.KeptCount < 0 || s.IntraDuplicates < 0 || s.InterDuplicates < 0 {
		return fmt.Errorf("counts cannot be negative (kept %d, intra %d, inter %d)",
			s.KeptCount, s.IntraDuplicates, s.InterDuplicates)
	}
	total := s.KeptCount + s.IntraDuplicates + s.InterDuplicates
	if total != s.TotalCandidates {
		return fmt.Errorf("total_candidates (%d) does not match kept + intra + inter (%d)",
			s.TotalCandidates, total)
	}
	if s.TotalCandidates > 0 && s.Chunks == 0 {
		return fmt.Errorf("chunks cannot be zero with %d candidates", s.TotalCandidates)
	}
	return nil
}

// Reducer is the parallel divide-and-conquer Deduplicator.
//
// IDs are sorted and split into contiguous chunks, one per worker. Each
// chunk is reduced sequentially: a candidate is kept only if it is distinct
// from every member kept before it. The kept sets are then merged pairwise,
// (set[2i], set[2i+1]), until one remains. A merge drops members of the left
// set that are near-duplicates of any member of the right set and keeps the
// right set whole. With an odd number of sets the last one is carried
// unmerged into the next round.
type Reducer struct {
	pool   *workpool.Pool
	config Config
}

// Compile-time check that Reducer implements Deduplicator
var _ Deduplicator = (*Reducer)(nil)

// NewReducer creates a reducer running on pool.
func NewReducer(pool *workpool.Pool, config Config) (*Reducer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Reducer{pool: pool, config: config}, nil
}

// Reduce implements Deduplicator.
func (r *Reducer) Reduce(ctx context.Context, seqs map[string]string) (*DeduplicationResult, error) {
	start := time.Now()
	red := &reduction{config: r.config, seqs: seqs}

	ids := make([]string, 0, len(seqs))
	for id := range seqs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	stats := DeduplicationStats{TotalCandidates: len(ids)}
	chunks := Partition(ids, r.config.Workers)
	stats.Chunks = len(chunks)

	kept, err := workpool.Map(ctx, r.pool, len(chunks), func(ctx context.Context, i int) (*types.KeptSet, error) {
		k := red.reduceChunk(chunks[i])
		slog.Debug("chunk reduced", "chunk", i, "candidates", len(chunks[i]), "kept", k.Len())
		return k, nil
	})
	if err != nil {
		return nil, fmt.Errorf("intra-chunk reduce: %w", err)
	}
	for i, k := range kept {
		stats.IntraDuplicates += len(chunks[i]) - k.Len()
	}

	for len(kept) > 1 {
		stats.MergeRounds++
		before := 0
		for _, k := range kept {
			before += k.Len()
		}
		slog.Debug("merging kept sets", "round", stats.MergeRounds, "sets", len(kept))

		kept, err = red.mergeRound(ctx, r.pool, kept)
		if err != nil {
			return nil, fmt.Errorf("merge round %d: %w", stats.MergeRounds, err)
		}

		after := 0
		for _, k := range kept {
			after += k.Len()
		}
		stats.InterDuplicates += before - after
	}

	final := types.NewKeptSet()
	if len(kept) == 1 {
		final = kept[0]
	}
	stats.KeptCount = final.Len()
	stats.ComparisonsMade = red.comparisons.Load()
	stats.ProcessingTimeMs = time.Since(start).Milliseconds()

	return &DeduplicationResult{Kept: final, Stats: stats}, nil
}

// Partition splits ids into at most p contiguous chunks of ceil(len/p)
// entries; the last chunk may be shorter. Empty chunks are omitted.
func Partition(ids []string, p int) [][]string {
	if len(ids) == 0 {
		return nil
	}
	if p < 1 {
		p = 1
	}
	size := (len(ids) + p - 1) / p
	chunks := make([][]string, 0, p)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

// reduction is the state of one Reduce call.
type reduction struct {
	config      Config
	seqs        map[string]string
	comparisons atomic.Int64
}

// reduceChunk keeps each candidate that is distinct from every member kept
// before it, in chunk order.
func (r *reduction) reduceChunk(ids []string) *types.KeptSet {
	kept := types.NewKeptSet()
	for _, id := range ids {
		if r.distinctFromAll(r.seqs[id], kept.IDs(), r.config.IntraThreshold) {
			kept.Add(id)
		}
	}
	return kept
}

func (r *reduction) distinctFromAll(seq string, others []string, threshold float64) bool {
	for _, other := range others {
		r.comparisons.Add(1)
		if !similarity.DistinctFrom(seq, r.seqs[other], threshold) {
			return false
		}
	}
	return true
}

// mergeRound merges kept sets pairwise. Left-set members are checked in
// parallel, one task per member, and the survivors are assembled in order.
func (r *reduction) mergeRound(ctx context.Context, pool *workpool.Pool, sets []*types.KeptSet) ([]*types.KeptSet, error) {
	pairs := len(sets) / 2

	survives := make([][]bool, pairs)
	for i := range survives {
		survives[i] = make([]bool, sets[2*i].Len())
	}

	err := pool.Scope(ctx, func(s *workpool.Scope) {
		for i := 0; i < pairs; i++ {
			left, right := sets[2*i].IDs(), sets[2*i+1].IDs()
			for j, id := range left {
				s.Go(func(ctx context.Context) error {
					survives[i][j] = r.distinctFromAll(r.seqs[id], right, r.config.InterThreshold)
					return nil
				})
			}
		}
	})
	if err != nil {
		return nil, err
	}

	next := make([]*types.KeptSet, 0, pairs+1)
	for i := 0; i < pairs; i++ {
		merged := types.NewKeptSet()
		for j, id := range sets[2*i].IDs() {
			if survives[i][j] {
				merged.Add(id)
			}
		}
		for _, id := range sets[2*i+1].IDs() {
			merged.Add(id)
		}
		next = append(next, merged)
	}
	if len(sets)%2 == 1 {
		next = append(next, sets[len(sets)-1])
	}
	return next, nil
}
