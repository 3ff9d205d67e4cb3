package types

import (
	"fmt"
	"sort"
)

// ChainRecord is one protein chain extracted from a structural annotation
// file: its residue letters and the per-residue secondary-structure codes.
type ChainRecord struct {
	// ID is the source file code followed by the one-character chain label
	// (e.g. "1abcA").
	ID string `json:"chain_id"`

	// FirstResidue is the residue number of the first captured residue, or a
	// negative sentinel when nothing was captured.
	FirstResidue int `json:"first_res"`

	// Residues holds one letter per residue.
	Residues string `json:"input"`

	// Structure holds one secondary-structure code per residue.
	Structure string `json:"dssp8"`
}

// Len returns the number of residues in the chain.
func (c *ChainRecord) Len() int {
	return len(c.Residues)
}

// Validate checks the record's invariants
func (c *ChainRecord) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("chain_id is required")
	}
	if len(c.Residues) != len(c.Structure) {
		return fmt.Errorf("chain %s: residue and structure lengths differ (%d != %d)",
			c.ID, len(c.Residues), len(c.Structure))
	}
	return nil
}

// WorkingSet maps chain IDs to the records that passed cross-set filtering.
// It is not safe for concurrent mutation; workers return their records and
// the caller adds them after the join.
type WorkingSet struct {
	records map[string]*ChainRecord
}

// NewWorkingSet creates an empty working set.
func NewWorkingSet() *WorkingSet {
	return &WorkingSet{records: make(map[string]*ChainRecord)}
}

// Add inserts rec and reports whether it was new. An existing record with
// the same ID is kept.
func (w *WorkingSet) Add(rec *ChainRecord) bool {
	if _, exists := w.records[rec.ID]; exists {
		return false
	}
	w.records[rec.ID] = rec
	return true
}

// Get returns the record for id, or nil.
func (w *WorkingSet) Get(id string) *ChainRecord {
	return w.records[id]
}

// Len returns the number of records.
func (w *WorkingSet) Len() int {
	return len(w.records)
}

// IDs returns every chain ID in ascending order.
func (w *WorkingSet) IDs() []string {
	ids := make([]string, 0, len(w.records))
	for id := range w.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Sequences returns the residue strings keyed by chain ID.
func (w *WorkingSet) Sequences() map[string]string {
	seqs := make(map[string]string, len(w.records))
	for id, rec := range w.records {
		seqs[id] = rec.Residues
	}
	return seqs
}

// KeptSet is an insertion-ordered set of chain IDs judged mutually
// non-duplicate. Members are never removed.
type KeptSet struct {
	ids     []string
	members map[string]struct{}
}

// NewKeptSet creates a kept set holding ids in the given order.
func NewKeptSet(ids ...string) *KeptSet {
	k := &KeptSet{members: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		k.Add(id)
	}
	return k
}

// Add inserts id if absent and reports whether it was inserted.
func (k *KeptSet) Add(id string) bool {
	if _, ok := k.members[id]; ok {
		return false
	}
	k.members[id] = struct{}{}
	k.ids = append(k.ids, id)
	return true
}

// Contains reports whether id is a member.
func (k *KeptSet) Contains(id string) bool {
	_, ok := k.members[id]
	return ok
}

// Len returns the number of members.
func (k *KeptSet) Len() int {
	return len(k.ids)
}

// IDs returns the members in insertion order. The slice must not be modified.
func (k *KeptSet) IDs() []string {
	return k.ids
}

// Sorted returns a sorted copy of the members.
func (k *KeptSet) Sorted() []string {
	out := make([]string, len(k.ids))
	copy(out, k.ids)
	sort.Strings(out)
	return out
}
