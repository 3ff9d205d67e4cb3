// Package similarity implements the normalized edit-distance ratio used to
// decide whether two residue sequences are near-duplicates.
//
// Ratio is asymmetric: the distance is normalized by the length of the first
// argument only, so Ratio(a, b) and Ratio(b, a) differ whenever the stripped
// lengths differ. Every threshold in this module is a percentage in [0, 100].
package similarity

import (
	"math"
	"strings"
	"unicode"
)

// Strip removes all whitespace from s.
func Strip(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// Distance returns the unit-cost Levenshtein distance between a and b,
// counting insertions, deletions and substitutions of single bytes.
func Distance(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 0; i < len(a); i++ {
		curr[0] = i + 1
		for j := 0; j < len(b); j++ {
			sub := prev[j]
			if a[i] != b[j] {
				sub++
			}
			curr[j+1] = min(curr[j]+1, prev[j+1]+1, sub)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// Ratio returns 100 * Distance(a, b) / len(a) after stripping whitespace from
// both inputs. When a is empty after stripping the ratio is 0 if b is empty
// too, and +Inf otherwise.
func Ratio(a, b string) float64 {
	return ratioStripped(Strip(a), Strip(b))
}

func ratioStripped(a, b string) float64 {
	if len(a) == 0 {
		if len(b) == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return 100 * float64(Distance(a, b)) / float64(len(a))
}

// DistinctFrom reports whether a is sufficiently distinct from b, i.e. the
// ratio is strictly greater than threshold. A ratio equal to the threshold is
// not distinct.
func DistinctFrom(a, b string, threshold float64) bool {
	return Ratio(a, b) > threshold
}

// PassesAgainst scans set in order and reports false at the first entry whose
// ratio against a is strictly below threshold. It reports true when the set is
// exhausted without such a match.
func PassesAgainst(a string, set []string, threshold float64) bool {
	_, dup := FirstNearDuplicate(a, set, threshold)
	return !dup
}

// FirstNearDuplicate returns the index of the first entry in set whose ratio
// against a is strictly below threshold.
func FirstNearDuplicate(a string, set []string, threshold float64) (int, bool) {
	sa := Strip(a)
	for i, entry := range set {
		if ratioStripped(sa, Strip(entry)) < threshold {
			return i, true
		}
	}
	return -1, false
}

// MinRatio returns the smallest ratio of a against the entries of set,
// stopping early once the running minimum drops below threshold. It returns
// 100 for an empty set, and reports whether the scan stopped early.
func MinRatio(a string, set []string, threshold float64) (float64, bool) {
	sa := Strip(a)
	best := 100.0
	for _, entry := range set {
		if r := ratioStripped(sa, Strip(entry)); r < best {
			best = r
		}
		if best < threshold {
			return best, true
		}
	}
	return best, false
}
