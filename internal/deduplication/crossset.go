package deduplication

import (
	"github.com/steveyegge/ps4/internal/refset"
	"github.com/steveyegge/ps4/internal/similarity"
)

// CrossSetFilter rejects candidates that are near-duplicates of any sequence
// in any of its reference sets. The sets are shared read-only between
// concurrent callers.
type CrossSetFilter struct {
	sets      []*refset.Set
	threshold float64
}

// NewCrossSetFilter creates a filter over sets. A candidate is rejected by a
// set when its ratio against some entry is strictly below threshold.
func NewCrossSetFilter(threshold float64, sets ...*refset.Set) *CrossSetFilter {
	return &CrossSetFilter{sets: sets, threshold: threshold}
}

// Sets returns the filter's reference sets in check order.
func (f *CrossSetFilter) Sets() []*refset.Set {
	return f.sets
}

// Threshold returns the rejection threshold in percent.
func (f *CrossSetFilter) Threshold() float64 {
	return f.threshold
}

// Rejection says which reference entry a candidate matched.
type Rejection struct {
	Set   string
	Index int
}

// Check reports whether seq passes against every reference set. On failure
// it returns the first set and entry, in configured order, that matched.
func (f *CrossSetFilter) Check(seq string) (bool, *Rejection) {
	for _, set := range f.sets {
		if idx, dup := similarity.FirstNearDuplicate(seq, set.Sequences, f.threshold); dup {
			return false, &Rejection{Set: set.Name, Index: idx}
		}
	}
	return true, nil
}

// Passes reports whether seq passes against every reference set.
func (f *CrossSetFilter) Passes(seq string) bool {
	ok, _ := f.Check(seq)
	return ok
}
