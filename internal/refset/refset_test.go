package refset

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRead(t *testing.T) {
	tests := []struct {
		name    string
		content string
		column  string
		want    []string
		wantErr error
		errMsg  string
	}{
		{
			name:    "default column",
			content: "chain_id,first_res,input,dssp8\n1abcA,1,MKT,HHC\n2xyzB,5,GGA,EEC\n",
			want:    []string{"MKT", "GGA"},
		},
		{
			name:    "named column",
			content: "id,seq\na,AAAA\nb,TTTT\n",
			column:  "seq",
			want:    []string{"AAAA", "TTTT"},
		},
		{
			name:    "header only",
			content: "input\n",
			want:    nil,
		},
		{
			name:    "quoted values with spaces",
			content: "input\n\"M K T\"\n",
			want:    []string{"M K T"},
		},
		{
			name:    "missing column",
			content: "id,seq\na,AAAA\n",
			wantErr: ErrMissingColumn,
		},
		{
			name:    "empty file",
			content: "",
			wantErr: ErrMissingColumn,
		},
		{
			name:    "ragged row",
			content: "id,input\na,AAAA\nb\n",
			errMsg:  "malformed row",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Read(strings.NewReader(tt.content), tt.column)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.errMsg != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "ref.csv", "input\nAAAA\nCCCC\n")

	set, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, path, set.Name)
	assert.Equal(t, 2, set.Len())

	_, err = Load(filepath.Join(t.TempDir(), "nope.csv"), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCacheLoadsOnce(t *testing.T) {
	path := writeFile(t, "ref.csv", "input\nAAAA\n")
	cache := NewCache()

	var wg sync.WaitGroup
	sets := make([]*Set, 16)
	for i := range sets {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := cache.Get(path, "input")
			assert.NoError(t, err)
			sets[i] = s
		}(i)
	}
	wg.Wait()

	for _, s := range sets {
		assert.Same(t, sets[0], s)
	}

	// Rewriting the file must not affect the cached copy.
	require.NoError(t, os.WriteFile(path, []byte("input\nTTTT\nGGGG\n"), 0644))
	s, err := cache.Get(path, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"AAAA"}, s.Sequences)
}

func TestCacheDoesNotKeepFailures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "late.csv")
	cache := NewCache()

	_, err := cache.Get(path, "")
	require.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("input\nAAAA\n"), 0644))
	s, err := cache.Get(path, "")
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())
}
