package types

import (
	"fmt"
	"time"
)

// Run records one completed parse run.
type Run struct {
	ID          string    `json:"id"`
	InputDir    string    `json:"input_dir"`
	OutputPath  string    `json:"output_path"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`

	// Candidates is the number of chains that entered self-deduplication.
	Candidates int `json:"candidates"`

	// Kept is the size of the final deduplicated set.
	Kept int `json:"kept"`

	// Config is the effective run configuration as YAML.
	Config string `json:"config,omitempty"`
}

// Validate checks if the run has valid field values
func (r *Run) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("run id is required")
	}
	if r.Candidates < 0 || r.Kept < 0 {
		return fmt.Errorf("counts cannot be negative (candidates %d, kept %d)", r.Candidates, r.Kept)
	}
	if r.Kept > r.Candidates {
		return fmt.Errorf("kept (%d) cannot exceed candidates (%d)", r.Kept, r.Candidates)
	}
	if !r.CompletedAt.IsZero() && r.CompletedAt.Before(r.StartedAt) {
		return fmt.Errorf("completed_at is before started_at")
	}
	return nil
}

// Snapshot is the final deduplicated chain set of a run, kept so later runs
// can exclude it.
type Snapshot struct {
	Run     Run            `json:"run"`
	Records []*ChainRecord `json:"records"`
}

// IDs returns the chain IDs of the snapshot in stored order.
func (s *Snapshot) IDs() []string {
	ids := make([]string, len(s.Records))
	for i, r := range s.Records {
		ids[i] = r.ID
	}
	return ids
}

// Sequences returns the residue strings in stored order.
func (s *Snapshot) Sequences() []string {
	seqs := make([]string, len(s.Records))
	for i, r := range s.Records {
		seqs[i] = r.Residues
	}
	return seqs
}
