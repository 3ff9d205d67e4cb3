// Package refset loads reference sequence sets: delimited text files with a
// header row and a named column holding one sequence per row.
package refset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/sync/singleflight"
)

// DefaultColumn is the header of the sequence column.
const DefaultColumn = "input"

// ErrMissingColumn is returned when the header lacks the sequence column.
var ErrMissingColumn = errors.New("missing sequence column")

// Set is a read-only, ordered collection of reference sequences.
type Set struct {
	// Name identifies the set in logs (usually its path).
	Name string

	// Sequences are kept in file row order.
	Sequences []string
}

// Len returns the number of sequences.
func (s *Set) Len() int {
	return len(s.Sequences)
}

// FromSequences builds an in-memory set.
func FromSequences(name string, seqs []string) *Set {
	return &Set{Name: name, Sequences: seqs}
}

// Load reads the set at path, taking sequences from column. An empty column
// means DefaultColumn.
func Load(path, column string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open reference set: %w", err)
	}
	defer f.Close()

	seqs, err := Read(f, column)
	if err != nil {
		return nil, fmt.Errorf("reference set %s: %w", path, err)
	}
	return &Set{Name: path, Sequences: seqs}, nil
}

// Read parses delimited text from r and returns the values of column.
// Every row must have as many fields as the header.
func Read(r io.Reader, column string) ([]string, error) {
	if column == "" {
		column = DefaultColumn
	}

	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w %q: empty file", ErrMissingColumn, column)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	idx := -1
	for i, name := range header {
		if name == column {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w %q", ErrMissingColumn, column)
	}

	var seqs []string
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed row: %w", err)
		}
		seqs = append(seqs, row[idx])
	}
	return seqs, nil
}

// Cache loads each (path, column) pair at most once and shares the result
// between concurrent callers. Sets are never mutated after loading.
type Cache struct {
	mu    sync.RWMutex
	sets  map[string]*Set
	group singleflight.Group
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{sets: make(map[string]*Set)}
}

// Get returns the cached set for path and column, loading it on first use.
// Failed loads are not cached.
func (c *Cache) Get(path, column string) (*Set, error) {
	if column == "" {
		column = DefaultColumn
	}
	key := column + "\x00" + path

	c.mu.RLock()
	set, ok := c.sets[key]
	c.mu.RUnlock()
	if ok {
		return set, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		set, err := Load(path, column)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.sets[key] = set
		c.mu.Unlock()
		return set, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Set), nil
}
