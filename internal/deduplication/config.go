package deduplication

import (
	"fmt"

	"github.com/steveyegge/ps4/internal/workpool"
)

// Config holds configuration for the deduplication engine
type Config struct {
	// Workers is the number of chunks the candidate pool is split into for
	// the intra-chunk phase.
	// Default: 8
	Workers int

	// CrossSetThreshold is the ratio (percent) below which a candidate is a
	// near-duplicate of a reference sequence and is rejected.
	// Default: 20
	CrossSetThreshold float64

	// IntraThreshold is the ratio (percent) a candidate must exceed against
	// every already-kept member of its chunk to be kept.
	// Default: 60
	IntraThreshold float64

	// InterThreshold is the ratio (percent) a member of the left set of a
	// merge pair must exceed against every member of the right set.
	// Default: 60
	InterThreshold float64
}

// Default ratio thresholds, in percent.
const (
	DefaultCrossSetThreshold = 20.0
	DefaultDedupThreshold    = 60.0
)

// DefaultConfig returns the default deduplication configuration
func DefaultConfig() Config {
	return Config{
		Workers:           workpool.DefaultWorkers,
		CrossSetThreshold: DefaultCrossSetThreshold,
		IntraThreshold:    DefaultDedupThreshold,
		InterThreshold:    DefaultDedupThreshold,
	}
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive (got %d)", c.Workers)
	}
	if c.Workers > 1024 {
		return fmt.Errorf("workers too large (got %d, max 1024)", c.Workers)
	}
	for _, t := range []struct {
		name  string
		value float64
	}{
		{"cross_set_threshold", c.CrossSetThreshold},
		{"intra_threshold", c.IntraThreshold},
		{"inter_threshold", c.InterThreshold},
	} {
		if t.value < 0 || t.value > 100 {
			return fmt.Errorf("%s must be between 0 and 100 (got %.2f)", t.name, t.value)
		}
	}
	return nil
}

// String returns a human-readable representation of the config
func (c Config) String() string {
	return fmt.Sprintf("Config{Workers: %d, CrossSet: %.1f%%, Intra: %.1f%%, Inter: %.1f%%}",
		c.Workers, c.CrossSetThreshold, c.IntraThreshold, c.InterThreshold)
}
