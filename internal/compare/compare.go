// Package compare measures how much one sequence set overlaps another.
package compare

import (
	"context"
	"fmt"

	"github.com/steveyegge/ps4/internal/refset"
	"github.com/steveyegge/ps4/internal/similarity"
	"github.com/steveyegge/ps4/internal/workpool"
)

// DefaultThreshold is the near-duplicate ratio used by the standalone
// comparison.
const DefaultThreshold = 40.0

// Report summarizes a comparison of set A against set B.
type Report struct {
	SetA      string  `json:"set_a"`
	SetB      string  `json:"set_b"`
	Threshold float64 `json:"threshold"`

	// Total is the number of sequences in A.
	Total int `json:"total"`

	// Below counts A sequences with a near-duplicate in B.
	Below int `json:"below"`

	// PctBelow is 100 * Below / Total.
	PctBelow float64 `json:"pct_below"`

	// MeanAbove is the mean minimum ratio over A sequences without a
	// near-duplicate in B, or 0 when there are none.
	MeanAbove float64 `json:"mean_above"`

	// Distances holds, per A sequence in order, its minimum ratio against B,
	// or 0 when a near-duplicate was found.
	Distances []float64 `json:"distances,omitempty"`
}

// Sets compares every sequence of a against b on pool. For each A sequence
// the scan of B keeps the smallest ratio and stops as soon as it drops below
// threshold, recording 0 for that sequence.
func Sets(ctx context.Context, pool *workpool.Pool, a, b *refset.Set, threshold float64) (*Report, error) {
	dists, err := workpool.Map(ctx, pool, a.Len(), func(ctx context.Context, i int) (float64, error) {
		best, dup := similarity.MinRatio(a.Sequences[i], b.Sequences, threshold)
		if dup {
			return 0, nil
		}
		return best, nil
	})
	if err != nil {
		return nil, fmt.Errorf("comparing %s against %s: %w", a.Name, b.Name, err)
	}

	report := &Report{
		SetA:      a.Name,
		SetB:      b.Name,
		Threshold: threshold,
		Total:     len(dists),
		Distances: dists,
	}
	report.summarize()
	return report, nil
}

func (r *Report) summarize() {
	var sum float64
	above := 0
	for _, d := range r.Distances {
		if d > 0 {
			sum += d
			above++
		}
	}
	r.Below = r.Total - above
	if above > 0 {
		r.MeanAbove = sum / float64(above)
	}
	if r.Total > 0 {
		r.PctBelow = 100 * float64(r.Below) / float64(r.Total)
	}
}

// Files loads both sets from delimited files, reading column, and compares
// them.
func Files(ctx context.Context, pool *workpool.Pool, pathA, pathB, column string, threshold float64) (*Report, error) {
	a, err := refset.Load(pathA, column)
	if err != nil {
		return nil, err
	}
	b, err := refset.Load(pathB, column)
	if err != nil {
		return nil, err
	}
	return Sets(ctx, pool, a, b, threshold)
}
