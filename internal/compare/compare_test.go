package compare

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/ps4/internal/refset"
	"github.com/steveyegge/ps4/internal/workpool"
)

func TestSets(t *testing.T) {
	a := refset.FromSequences("a", []string{
		"AAAAAAAAAA", // identical to b[1]
		"CCCCCCCCCC", // 100 from everything
		"AAAAAAATTT", // 30 from b[1]
		"AAAAAAAAAT", // 10 from b[1]
	})
	b := refset.FromSequences("b", []string{"GGGGGGGGGG", "AAAAAAAAAA"})

	report, err := Sets(context.Background(), workpool.New(2), a, b, 20)
	require.NoError(t, err)

	assert.Equal(t, 4, report.Total)
	assert.Equal(t, []float64{0, 100, 30, 0}, report.Distances)
	assert.Equal(t, 2, report.Below)
	assert.InDelta(t, 50.0, report.PctBelow, 1e-9)
	assert.InDelta(t, 65.0, report.MeanAbove, 1e-9)
	assert.Equal(t, "a", report.SetA)
	assert.Equal(t, "b", report.SetB)
}

func TestSets_AllBelow(t *testing.T) {
	a := refset.FromSequences("a", []string{"AAAA", "AAAA"})
	report, err := Sets(context.Background(), workpool.New(1), a, a, DefaultThreshold)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Below)
	assert.Equal(t, 100.0, report.PctBelow)
	assert.Equal(t, 0.0, report.MeanAbove, "no values above threshold")
}

func TestSets_EmptyInputs(t *testing.T) {
	empty := refset.FromSequences("empty", nil)
	some := refset.FromSequences("some", []string{"AAAA"})

	report, err := Sets(context.Background(), workpool.New(1), empty, some, 40)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Total)
	assert.Equal(t, 0.0, report.PctBelow)

	report, err = Sets(context.Background(), workpool.New(1), some, empty, 40)
	require.NoError(t, err)
	assert.Equal(t, []float64{100}, report.Distances)
	assert.Equal(t, 0, report.Below)
}

func TestFiles(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "a.csv")
	pathB := filepath.Join(dir, "b.csv")
	require.NoError(t, os.WriteFile(pathA, []byte("chain_id,input\nx,AAAAAAAAAA\ny,CCCCCCCCCC\n"), 0644))
	require.NoError(t, os.WriteFile(pathB, []byte("chain_id,input\nz,AAAAAAAAAA\n"), 0644))

	report, err := Files(context.Background(), workpool.New(2), pathA, pathB, "", 40)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Below)
	assert.InDelta(t, 50.0, report.PctBelow, 1e-9)

	_, err = Files(context.Background(), workpool.New(2), pathA, filepath.Join(dir, "missing.csv"), "", 40)
	assert.Error(t, err)

	_, err = Files(context.Background(), workpool.New(2), pathA, pathB, "seq", 40)
	assert.ErrorIs(t, err, refset.ErrMissingColumn)
}
