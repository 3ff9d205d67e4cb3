// Package deduplication removes near-duplicate protein chains.
//
// # Overview
//
// Two stages use the similarity ratio from package similarity:
//
//  1. Cross-set filtering (CrossSetFilter): a candidate is rejected if it is a
//     near-duplicate of any sequence in any reference set, for example a
//     held-out benchmark that must not leak into training data.
//  2. Self-deduplication (Reducer): the surviving candidate pool is reduced so
//     that no two kept chains are near-duplicates of each other.
//
// A near-duplicate is a pair whose ratio is strictly below the threshold. A
// candidate is kept against an already-kept member only when the ratio is
// strictly above it, so a ratio exactly at the threshold rejects in the
// reducer but passes the cross-set filter.
//
// # Reduction
//
// The Reducer sorts candidate IDs, splits them into Config.Workers contiguous
// chunks, and reduces each chunk sequentially on the shared worker pool. The
// per-chunk kept sets are merged pairwise until one remains:
//
//	round 1:  {c0 c1} {c2 c3} {c4 c5} {c6 c7}
//	round 2:     {m01}   {m23}   {m45}   {m67}
//	round 3:        {m0123}         {m4567}
//	result:              {m01234567}
//
// Merging (left, right) keeps right whole and drops every left member that is
// a near-duplicate of some right member. The outcome therefore favors chains
// that sort later. An odd set at the end of a round is carried forward as-is.
//
// Sorting makes chunk membership, and so the final set, independent of map
// iteration order: the same input and worker count always give the same
// result.
//
// # Configuration
//
// The defaults are 8 workers, a 20% cross-set threshold, and 60% for both
// reduction phases (DefaultConfig). Package config layers file, environment
// and flag overrides on top.
//
// Cost is quadratic in the worst case: every candidate may be compared with
// every kept member of its chunk, and every left member with the whole right
// set of its merge pair. DeduplicationStats.ComparisonsMade reports the
// actual count.
package deduplication
