package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 16, cfg.MinChainLength)
	assert.Equal(t, 20.0, cfg.CrossSetThreshold)
	assert.Equal(t, 60.0, cfg.DedupThreshold)
	assert.Equal(t, 40.0, cfg.CompareThreshold)
	assert.Equal(t, "input", cfg.SequenceColumn)
	assert.Equal(t, ".ps4/ps4.db", cfg.Database)
	assert.True(t, cfg.Snapshot)
	assert.False(t, cfg.ExcludePreviousSnapshot)
}

func TestLoad(t *testing.T) {
	t.Run("missing file uses defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), FileName)
		data := `
workers: 4
min_chain_length: 0
reference_sets:
  - path: data/cb513.csv
    column: seq
  - path: data/data.csv
cross_set_threshold: 25
snapshot: false
`
		require.NoError(t, os.WriteFile(path, []byte(data), 0644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 4, cfg.Workers)
		assert.Equal(t, 0, cfg.MinChainLength, "explicit zero is kept")
		assert.Equal(t, 25.0, cfg.CrossSetThreshold)
		assert.Equal(t, 60.0, cfg.DedupThreshold, "absent key keeps its default")
		assert.False(t, cfg.Snapshot)
		require.Len(t, cfg.ReferenceSets, 2)
		assert.Equal(t, "seq", cfg.ColumnFor(cfg.ReferenceSets[0]))
		assert.Equal(t, "input", cfg.ColumnFor(cfg.ReferenceSets[1]))
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), FileName)
		require.NoError(t, os.WriteFile(path, []byte("workers: [1, 2"), 0644))

		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestSaveRoundTrip(t *testing.T) {
	path := ProjectPath(t.TempDir())

	cfg := DefaultConfig()
	cfg.Workers = 2
	cfg.ReferenceSets = []ReferenceSet{{Path: "ref.csv"}}
	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
	assert.Contains(t, cfg.YAML(), "workers: 2")
}

func TestApplyEnv(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name:    "no environment variables keeps values",
			envVars: map[string]string{},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, DefaultConfig(), cfg)
			},
		},
		{
			name: "all overrides",
			envVars: map[string]string{
				"PS4_WORKERS":                   "3",
				"PS4_MIN_CHAIN_LENGTH":          "30",
				"PS4_CROSS_SET_THRESHOLD":       "15.5",
				"PS4_DEDUP_THRESHOLD":           "50",
				"PS4_COMPARE_THRESHOLD":         "35",
				"PS4_DB":                        ":memory:",
				"PS4_SNAPSHOT":                  "false",
				"PS4_EXCLUDE_PREVIOUS_SNAPSHOT": "true",
				"PS4_REFERENCE_SETS":            "a.csv, b.csv,,",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 3, cfg.Workers)
				assert.Equal(t, 30, cfg.MinChainLength)
				assert.Equal(t, 15.5, cfg.CrossSetThreshold)
				assert.Equal(t, 50.0, cfg.DedupThreshold)
				assert.Equal(t, 35.0, cfg.CompareThreshold)
				assert.Equal(t, ":memory:", cfg.Database)
				assert.False(t, cfg.Snapshot)
				assert.True(t, cfg.ExcludePreviousSnapshot)
				assert.Equal(t, []ReferenceSet{{Path: "a.csv"}, {Path: "b.csv"}}, cfg.ReferenceSets)
			},
		},
		{
			name:    "invalid int",
			envVars: map[string]string{"PS4_WORKERS": "many"},
			wantErr: true,
		},
		{
			name:    "invalid float",
			envVars: map[string]string{"PS4_DEDUP_THRESHOLD": "high"},
			wantErr: true,
		},
		{
			name:    "invalid bool",
			envVars: map[string]string{"PS4_SNAPSHOT": "sometimes"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := DefaultConfig()
			err := cfg.ApplyEnv()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"zero workers", func(c *Config) { c.Workers = 0 }, "workers"},
		{"negative min length", func(c *Config) { c.MinChainLength = -1 }, "min_chain_length"},
		{"cross-set above 100", func(c *Config) { c.CrossSetThreshold = 101 }, "cross_set_threshold"},
		{"negative dedup", func(c *Config) { c.DedupThreshold = -1 }, "dedup_threshold"},
		{"compare above 100", func(c *Config) { c.CompareThreshold = 150 }, "compare_threshold"},
		{"empty reference path", func(c *Config) { c.ReferenceSets = []ReferenceSet{{Path: " "}} }, "reference_sets[0]"},
		{"empty column", func(c *Config) { c.SequenceColumn = "" }, "sequence_column"},
		{"snapshot without database", func(c *Config) { c.Database = "" }, "database"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("database not needed without snapshot", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Snapshot = false
		cfg.Database = ""
		assert.NoError(t, cfg.Validate())
	})
}

func TestDedupConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 5
	cfg.DedupThreshold = 55

	dc, err := cfg.DedupConfig()
	require.NoError(t, err)
	assert.Equal(t, 5, dc.Workers)
	assert.Equal(t, 20.0, dc.CrossSetThreshold)
	assert.Equal(t, 55.0, dc.IntraThreshold)
	assert.Equal(t, 55.0, dc.InterThreshold)

	t.Run("phase override", func(t *testing.T) {
		t.Setenv("PS4_DEDUP_INTER_THRESHOLD", "45")
		dc, err := cfg.DedupConfig()
		require.NoError(t, err)
		assert.Equal(t, 55.0, dc.IntraThreshold)
		assert.Equal(t, 45.0, dc.InterThreshold)
	})

	t.Run("malformed phase override", func(t *testing.T) {
		t.Setenv("PS4_DEDUP_INTRA_THRESHOLD", "high")
		_, err := cfg.DedupConfig()
		assert.Error(t, err)
	})

	t.Run("invalid phase override", func(t *testing.T) {
		t.Setenv("PS4_DEDUP_INTRA_THRESHOLD", "250")
		_, err := cfg.DedupConfig()
		assert.Error(t, err)
	})
}
