// Package config holds the run configuration of a ps4 project. Values are
// layered: built-in defaults, then .ps4/config.yaml, then PS4_* environment
// variables, then command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/steveyegge/ps4/internal/compare"
	"github.com/steveyegge/ps4/internal/deduplication"
	"github.com/steveyegge/ps4/internal/refset"
	"github.com/steveyegge/ps4/internal/storage"
	"github.com/steveyegge/ps4/internal/workpool"
)

// FileName is the config file name inside the project directory.
const FileName = "config.yaml"

// DefaultMinChainLength is the shortest chain kept by a parse run.
const DefaultMinChainLength = 16

// ReferenceSet names a delimited file of sequences to filter new chains against.
type ReferenceSet struct {
	Path string `yaml:"path"`

	// Column is the header naming the sequence column. Empty means the
	// config's SequenceColumn.
	Column string `yaml:"column,omitempty"`
}

// Config is the effective configuration of a parse or compare run
type Config struct {
	// Workers bounds concurrent work and sets the partition count
	// Default: 8
	Workers int `yaml:"workers"`

	// MinChainLength is the minimum residue count of a kept chain
	// Default: 16
	MinChainLength int `yaml:"min_chain_length"`

	// ReferenceSets are the previously published sets new chains are
	// filtered against
	ReferenceSets []ReferenceSet `yaml:"reference_sets"`

	// CrossSetThreshold is the ratio below which a chain is rejected as a
	// near-duplicate of a reference sequence
	// Default: 20
	CrossSetThreshold float64 `yaml:"cross_set_threshold"`

	// DedupThreshold is the ratio a chain must exceed against every kept
	// chain during self-deduplication
	// Default: 60
	DedupThreshold float64 `yaml:"dedup_threshold"`

	// CompareThreshold is the cutoff of the compare diagnostic
	// Default: 40
	CompareThreshold float64 `yaml:"compare_threshold"`

	// SequenceColumn is the default header of the sequence column in
	// reference files
	// Default: "input"
	SequenceColumn string `yaml:"sequence_column"`

	// Database is the snapshot database path
	// Default: ".ps4/ps4.db"
	Database string `yaml:"database"`

	// Snapshot controls whether runs are persisted
	// Default: true
	Snapshot bool `yaml:"snapshot"`

	// ExcludePreviousSnapshot adds the latest stored snapshot as an extra
	// reference set
	// Default: false
	ExcludePreviousSnapshot bool `yaml:"exclude_previous_snapshot"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Workers:           workpool.DefaultWorkers,
		MinChainLength:    DefaultMinChainLength,
		CrossSetThreshold: deduplication.DefaultCrossSetThreshold,
		DedupThreshold:    deduplication.DefaultDedupThreshold,
		CompareThreshold:  compare.DefaultThreshold,
		SequenceColumn:    refset.DefaultColumn,
		Database:          storage.DefaultPath,
		Snapshot:          true,
	}
}

// ConfigFile is the on-disk form of Config. Pointer fields distinguish an
// absent key from an explicit zero.
type ConfigFile struct {
	Workers                 *int           `yaml:"workers"`
	MinChainLength          *int           `yaml:"min_chain_length"`
	ReferenceSets           []ReferenceSet `yaml:"reference_sets"`
	CrossSetThreshold       *float64       `yaml:"cross_set_threshold"`
	DedupThreshold          *float64       `yaml:"dedup_threshold"`
	CompareThreshold        *float64       `yaml:"compare_threshold"`
	SequenceColumn          string         `yaml:"sequence_column"`
	Database                string         `yaml:"database"`
	Snapshot                *bool          `yaml:"snapshot"`
	ExcludePreviousSnapshot *bool          `yaml:"exclude_previous_snapshot"`
}

// ToConfig overlays the file's settings onto the defaults.
func (cf *ConfigFile) ToConfig() *Config {
	cfg := DefaultConfig()
	if cf.Workers != nil {
		cfg.Workers = *cf.Workers
	}
	if cf.MinChainLength != nil {
		cfg.MinChainLength = *cf.MinChainLength
	}
	if len(cf.ReferenceSets) > 0 {
		cfg.ReferenceSets = cf.ReferenceSets
	}
	if cf.CrossSetThreshold != nil {
		cfg.CrossSetThreshold = *cf.CrossSetThreshold
	}
	if cf.DedupThreshold != nil {
		cfg.DedupThreshold = *cf.DedupThreshold
	}
	if cf.CompareThreshold != nil {
		cfg.CompareThreshold = *cf.CompareThreshold
	}
	if cf.SequenceColumn != "" {
		cfg.SequenceColumn = cf.SequenceColumn
	}
	if cf.Database != "" {
		cfg.Database = cf.Database
	}
	if cf.Snapshot != nil {
		cfg.Snapshot = *cf.Snapshot
	}
	if cf.ExcludePreviousSnapshot != nil {
		cfg.ExcludePreviousSnapshot = *cf.ExcludePreviousSnapshot
	}
	return cfg
}

// Load reads the config file at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cf ConfigFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cf.ToConfig(), nil
}

// ProjectPath returns the config file location under projectRoot.
func ProjectPath(projectRoot string) string {
	return filepath.Join(projectRoot, storage.ProjectDir, FileName)
}

// Save writes cfg as YAML to path, creating parent directories.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// YAML renders the effective configuration, as stored with each snapshot.
func (c *Config) YAML() string {
	data, err := yaml.Marshal(c)
	if err != nil {
		return ""
	}
	return string(data)
}

// ApplyEnv overlays PS4_* environment variables onto c
//
// Environment variables:
//   - PS4_WORKERS: Worker bound and partition count
//   - PS4_MIN_CHAIN_LENGTH: Minimum residues per kept chain
//   - PS4_CROSS_SET_THRESHOLD: Reference-set rejection ratio in percent
//   - PS4_DEDUP_THRESHOLD: Self-deduplication ratio in percent
//   - PS4_COMPARE_THRESHOLD: Compare diagnostic cutoff in percent
//   - PS4_DB: Snapshot database path
//   - PS4_REFERENCE_SETS: Comma-separated reference file paths, replacing
//     the configured list
//   - PS4_SNAPSHOT: Persist runs (true/false)
//   - PS4_EXCLUDE_PREVIOUS_SNAPSHOT: Filter against the latest snapshot
//
// Returns an error if any environment variable has an invalid value.
func (c *Config) ApplyEnv() error {
	if err := parseEnvInt("PS4_WORKERS", &c.Workers); err != nil {
		return err
	}
	if err := parseEnvInt("PS4_MIN_CHAIN_LENGTH", &c.MinChainLength); err != nil {
		return err
	}
	if err := parseEnvFloat("PS4_CROSS_SET_THRESHOLD", &c.CrossSetThreshold); err != nil {
		return err
	}
	if err := parseEnvFloat("PS4_DEDUP_THRESHOLD", &c.DedupThreshold); err != nil {
		return err
	}
	if err := parseEnvFloat("PS4_COMPARE_THRESHOLD", &c.CompareThreshold); err != nil {
		return err
	}
	if err := parseEnvString("PS4_DB", &c.Database); err != nil {
		return err
	}
	if err := parseEnvBool("PS4_SNAPSHOT", &c.Snapshot); err != nil {
		return err
	}
	if err := parseEnvBool("PS4_EXCLUDE_PREVIOUS_SNAPSHOT", &c.ExcludePreviousSnapshot); err != nil {
		return err
	}

	var paths string
	if err := parseEnvString("PS4_REFERENCE_SETS", &paths); err != nil {
		return err
	}
	if paths != "" {
		c.ReferenceSets = nil
		for _, p := range strings.Split(paths, ",") {
			if p = strings.TrimSpace(p); p != "" {
				c.ReferenceSets = append(c.ReferenceSets, ReferenceSet{Path: p})
			}
		}
	}
	return nil
}

// Validate checks if the configuration has valid values
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive (got %d)", c.Workers)
	}
	if c.MinChainLength < 0 {
		return fmt.Errorf("min_chain_length cannot be negative (got %d)", c.MinChainLength)
	}
	for _, t := range []struct {
		name  string
		value float64
	}{
		{"cross_set_threshold", c.CrossSetThreshold},
		{"dedup_threshold", c.DedupThreshold},
		{"compare_threshold", c.CompareThreshold},
	} {
		if t.value < 0 || t.value > 100 {
			return fmt.Errorf("%s must be between 0 and 100 (got %.2f)", t.name, t.value)
		}
	}
	for i, rs := range c.ReferenceSets {
		if strings.TrimSpace(rs.Path) == "" {
			return fmt.Errorf("reference_sets[%d]: path is required", i)
		}
	}
	if c.SequenceColumn == "" {
		return fmt.Errorf("sequence_column is required")
	}
	if c.Snapshot && c.Database == "" {
		return fmt.Errorf("database is required when snapshot is enabled")
	}
	return nil
}

// ColumnFor returns the sequence column to read from rs.
func (c *Config) ColumnFor(rs ReferenceSet) string {
	if rs.Column != "" {
		return rs.Column
	}
	return c.SequenceColumn
}

// DedupConfig returns the reducer configuration for this run. Both phases
// use DedupThreshold unless PS4_DEDUP_INTRA_THRESHOLD or
// PS4_DEDUP_INTER_THRESHOLD set one of them apart.
func (c *Config) DedupConfig() (deduplication.Config, error) {
	dc := deduplication.Config{
		Workers:           c.Workers,
		CrossSetThreshold: c.CrossSetThreshold,
		IntraThreshold:    c.DedupThreshold,
		InterThreshold:    c.DedupThreshold,
	}
	if err := parseEnvFloat("PS4_DEDUP_INTRA_THRESHOLD", &dc.IntraThreshold); err != nil {
		return dc, err
	}
	if err := parseEnvFloat("PS4_DEDUP_INTER_THRESHOLD", &dc.InterThreshold); err != nil {
		return dc, err
	}
	return dc, dc.Validate()
}

// String returns a human-readable representation of the config
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Workers: %d, MinLength: %d, References: %d, CrossSet: %.1f%%, "+
			"Dedup: %.1f%%, Compare: %.1f%%, Snapshot: %t}",
		c.Workers, c.MinChainLength, len(c.ReferenceSets), c.CrossSetThreshold,
		c.DedupThreshold, c.CompareThreshold, c.Snapshot,
	)
}
