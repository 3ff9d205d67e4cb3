package pipeline

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/ps4/internal/config"
	"github.com/steveyegge/ps4/internal/storage/sqlite"
)

const dsspHeader = "  #  RESIDUE AA STRUCTURE BP1 BP2  ACC     N-H-->O    O-->H-N    N-H-->O    O-->H-N    TCO  KAPPA ALPHA  PHI   PSI    X-CA   Y-CA   Z-CA\n"

const (
	seqA      = "ACDEFGHIKLMNPQRSTVWY"
	seqAMut   = "MCDEFGHIKLMNPQRSTVWY"
	seqW      = "WWWWWWWWWWWWWWWWWWWW"
	seqG      = "GGGGGGGGGGGGGGGGGGGG"
	seqShort  = "ACDEFGHIKL"
	structure = "HHHHHHHHHHEEEEEEEEEE"
)

// chain is one chain of a generated DSSP file.
type chain struct {
	label byte
	first int
	seq   string
}

func writeDSSP(t *testing.T, dir, name string, chains ...chain) {
	t.Helper()
	var b strings.Builder
	b.WriteString("HEADER    TEST\n")
	b.WriteString(dsspHeader)
	n := 0
	for _, c := range chains {
		for i := 0; i < len(c.seq); i++ {
			n++
			ss := structure[i%len(structure)]
			fmt.Fprintf(&b, "%5d%5d %c %c  %c   0   0  100      0, 0.0     0, 0.0     0, 0.0     0, 0.0   0.000 360.0 360.0 360.0 360.0    0.0    0.0    0.0\n",
				n, c.first+i, c.label, c.seq[i], ss)
		}
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(b.String()), 0644))
}

func writeReference(t *testing.T, path string, seqs ...string) {
	t.Helper()
	var b strings.Builder
	b.WriteString("id,input\n")
	for i, s := range seqs {
		fmt.Fprintf(&b, "ref%d,%s\n", i, s)
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))
}

func readOutput(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

// fixtureDir lays out the standard scenario:
//
//	1abcA  seqA          kept
//	1abcB  10 residues   too short
//	2xyzA  seqA, 1 edit  near-duplicate of 1abcA
//	2xyzB  seqW          kept
//	3refA  seqG          rejected by the reference set
func fixtureDir(t *testing.T) (inputDir, refPath string) {
	t.Helper()
	root := t.TempDir()
	inputDir = filepath.Join(root, "dssp")
	require.NoError(t, os.MkdirAll(inputDir, 0755))

	writeDSSP(t, inputDir, "1abc.dssp", chain{'A', 1, seqA}, chain{'B', 5, seqShort})
	writeDSSP(t, inputDir, "2xyz.dssp", chain{'A', 3, seqAMut}, chain{'B', 100, seqW})
	writeDSSP(t, inputDir, "3ref.dssp", chain{'A', 1, seqG})

	refPath = filepath.Join(root, "ref.csv")
	writeReference(t, refPath, "TTTTTTTTTTTTTTTTTTTT", seqG)
	return inputDir, refPath
}

func testConfig(refPath string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Workers = 2
	cfg.Database = ":memory:"
	cfg.ReferenceSets = []config.ReferenceSet{{Path: refPath}}
	return cfg
}

func newStore(t *testing.T) *sqlite.SQLiteStorage {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOrchestratorRun(t *testing.T) {
	ctx := context.Background()
	inputDir, refPath := fixtureDir(t)
	outPath := filepath.Join(t.TempDir(), "out", "data.csv")
	store := newStore(t)

	o, err := NewOrchestrator(testConfig(refPath), store)
	require.NoError(t, err)

	res, err := o.Run(ctx, inputDir, outPath)
	require.NoError(t, err)

	assert.Equal(t, 3, res.FilesProcessed)
	assert.Equal(t, 5, res.ChainsExtracted)
	assert.Equal(t, 1, res.TooShort)
	assert.Equal(t, 1, res.RejectedCrossSet)
	assert.Equal(t, 3, res.Accepted)
	assert.Equal(t, 2, res.Kept)
	assert.Equal(t, 1, res.ReferenceSets)
	assert.NoError(t, res.Dedup.Validate())
	assert.NotEmpty(t, res.RunID)

	rows := readOutput(t, outPath)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"chain_id", "first_res", "input", "dssp8"}, rows[0])
	assert.Equal(t, []string{"1abcA", "1", seqA, structure}, rows[1])
	assert.Equal(t, []string{"2xyzB", "100", seqW, structure}, rows[2])

	snap, err := store.GetSnapshot(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, []string{"1abcA", "2xyzB"}, snap.IDs())
	assert.Equal(t, 3, snap.Run.Candidates)
	assert.Equal(t, 2, snap.Run.Kept)
	assert.Contains(t, snap.Run.Config, "workers: 2")
}

func TestOrchestratorRun_ExcludePreviousSnapshot(t *testing.T) {
	ctx := context.Background()
	inputDir, refPath := fixtureDir(t)
	store := newStore(t)

	first, err := NewOrchestrator(testConfig(refPath), store)
	require.NoError(t, err)
	_, err = first.Run(ctx, inputDir, filepath.Join(t.TempDir(), "first.csv"))
	require.NoError(t, err)

	cfg := testConfig(refPath)
	cfg.ExcludePreviousSnapshot = true
	second, err := NewOrchestrator(cfg, store)
	require.NoError(t, err)

	outPath := filepath.Join(t.TempDir(), "second.csv")
	res, err := second.Run(ctx, inputDir, outPath)
	require.NoError(t, err)

	// Everything is already in the first snapshot or near it
	assert.Equal(t, 2, res.ReferenceSets)
	assert.Equal(t, 4, res.RejectedCrossSet)
	assert.Zero(t, res.Kept)
	assert.Len(t, readOutput(t, outPath), 1, "header only")

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestOrchestratorRun_ExcludeWithoutSnapshot(t *testing.T) {
	inputDir, refPath := fixtureDir(t)
	cfg := testConfig(refPath)
	cfg.ExcludePreviousSnapshot = true

	o, err := NewOrchestrator(cfg, newStore(t))
	require.NoError(t, err)

	res, err := o.Run(context.Background(), inputDir, filepath.Join(t.TempDir(), "out.csv"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.ReferenceSets)
	assert.Equal(t, 2, res.Kept)
}

func TestOrchestratorRun_OverwritesOutput(t *testing.T) {
	inputDir, refPath := fixtureDir(t)
	outPath := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, os.WriteFile(outPath, []byte("stale\ncontent\nthat\nis\nlonger\n"), 0644))

	o, err := NewOrchestrator(testConfig(refPath), nil)
	require.NoError(t, err)
	_, err = o.Run(context.Background(), inputDir, outPath)
	require.NoError(t, err)

	rows := readOutput(t, outPath)
	require.Len(t, rows, 3)
	assert.Equal(t, "chain_id", rows[0][0])
}

func TestOrchestratorRun_DuplicateChainIDs(t *testing.T) {
	dir := t.TempDir()
	writeDSSP(t, dir, "1abc.dssp", chain{'A', 1, seqA})
	writeDSSP(t, dir, "1abc.v2.dssp", chain{'A', 7, seqW})

	cfg := config.DefaultConfig()
	cfg.Snapshot = false
	o, err := NewOrchestrator(cfg, nil)
	require.NoError(t, err)

	outPath := filepath.Join(t.TempDir(), "out.csv")
	res, err := o.Run(context.Background(), dir, outPath)
	require.NoError(t, err)
	assert.Equal(t, 1, res.DuplicateIDs)
	assert.Equal(t, 1, res.Kept)

	rows := readOutput(t, outPath)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"1abcA", "1", seqA, structure}, rows[1], "first file in name order wins")
}

func TestOrchestratorRun_Errors(t *testing.T) {
	t.Run("malformed files are all reported", func(t *testing.T) {
		dir := t.TempDir()
		writeDSSP(t, dir, "1abc.dssp", chain{'A', 1, seqA})
		bad := "HEADER\n" + dsspHeader + "    1  abc A A  H\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, "8bad.dssp"), []byte(bad), 0644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "9bad.dssp"), []byte(bad), 0644))

		cfg := config.DefaultConfig()
		cfg.Snapshot = false
		o, err := NewOrchestrator(cfg, nil)
		require.NoError(t, err)

		outPath := filepath.Join(t.TempDir(), "out.csv")
		_, err = o.Run(context.Background(), dir, outPath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "8bad.dssp")
		assert.Contains(t, err.Error(), "9bad.dssp")
		assert.NoFileExists(t, outPath)
	})

	t.Run("missing reference set", func(t *testing.T) {
		inputDir, _ := fixtureDir(t)
		o, err := NewOrchestrator(testConfig(filepath.Join(t.TempDir(), "missing.csv")), nil)
		require.NoError(t, err)

		_, err = o.Run(context.Background(), inputDir, filepath.Join(t.TempDir(), "out.csv"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reference set")
	})

	t.Run("missing input directory", func(t *testing.T) {
		o, err := NewOrchestrator(nil, nil)
		require.NoError(t, err)

		_, err = o.Run(context.Background(), filepath.Join(t.TempDir(), "nope"), filepath.Join(t.TempDir(), "out.csv"))
		assert.Error(t, err)
	})

	t.Run("invalid configuration", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Workers = 0
		_, err := NewOrchestrator(cfg, nil)
		assert.Error(t, err)
	})

	t.Run("canceled context", func(t *testing.T) {
		inputDir, refPath := fixtureDir(t)
		o, err := NewOrchestrator(testConfig(refPath), nil)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = o.Run(ctx, inputDir, filepath.Join(t.TempDir(), "out.csv"))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRun(t *testing.T) {
	inputDir, refPath := fixtureDir(t)
	cfg := testConfig(refPath)
	cfg.Snapshot = false

	res, err := Run(context.Background(), cfg, inputDir, filepath.Join(t.TempDir(), "out.csv"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Kept)
	assert.Empty(t, res.RunID, "nothing persisted without snapshots")
}

func TestRun_ExcludePreviousWithoutSaving(t *testing.T) {
	ctx := context.Background()
	inputDir, refPath := fixtureDir(t)
	dbPath := filepath.Join(t.TempDir(), "ps4.db")

	cfg := testConfig(refPath)
	cfg.Database = dbPath
	first, err := Run(ctx, cfg, inputDir, filepath.Join(t.TempDir(), "first.csv"))
	require.NoError(t, err)
	require.NotEmpty(t, first.RunID)

	cfg = testConfig(refPath)
	cfg.Database = dbPath
	cfg.Snapshot = false
	cfg.ExcludePreviousSnapshot = true
	res, err := Run(ctx, cfg, inputDir, filepath.Join(t.TempDir(), "second.csv"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.ReferenceSets, "previous snapshot still excluded")
	assert.Zero(t, res.Kept)
	assert.Empty(t, res.RunID)

	store, err := sqlite.New(dbPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1, "second run is not stored")
}
