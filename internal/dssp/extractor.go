// Package dssp reconstructs per-chain residue and secondary-structure
// sequences from DSSP text output.
package dssp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/steveyegge/ps4/internal/types"
)

// ErrMalformedLine is returned for residue lines that are too short to hold
// the fixed columns or whose residue number is not an integer.
var ErrMalformedLine = errors.New("malformed residue line")

// CodeFromPath returns the structure code of a DSSP file: its base name up
// to the first dot ("/data/1abc.dssp" -> "1abc").
func CodeFromPath(path string) string {
	base := filepath.Base(path)
	if i := strings.IndexByte(base, '.'); i >= 0 {
		return base[:i]
	}
	return base
}

// ExtractFile reads the DSSP file at path and returns one record per chain,
// keyed by the file's structure code.
func ExtractFile(path string) ([]*types.ChainRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	records, err := Extract(f, CodeFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// Extract parses DSSP text from r. Lines before the header marker are
// ignored. A change of chain label flushes the accumulated chain; a residue
// numbering gap discards the chain's accumulation and everything after it
// until the next label change. The final chain is always flushed, even when
// empty, so callers must filter short records.
func Extract(r io.Reader, code string) ([]*types.ChainRecord, error) {
	x := &extractor{code: code, chain: blankChain}
	x.reset()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	inResidues := false
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		if !inResidues {
			fields := strings.Fields(line)
			inResidues = len(fields) > 0 && fields[0] == HeaderMarker
			continue
		}

		if strings.Contains(line, BreakMarker) || strings.TrimSpace(line) == "" {
			continue
		}
		if err := x.residueLine(line); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read: %w", err)
	}

	x.flush()
	return x.records, nil
}

// extractor holds the accumulation for the chain being read.
type extractor struct {
	code    string
	records []*types.ChainRecord

	chain     byte
	current   int // last accepted residue number, or a sentinel
	first     int
	broken    bool
	residues  []byte
	structure []byte
}

func (x *extractor) reset() {
	x.current = NoResidue
	x.first = NoResidue
	x.broken = false
	x.residues = nil
	x.structure = nil
}

func (x *extractor) flush() {
	x.records = append(x.records, &types.ChainRecord{
		ID:           x.code + string(x.chain),
		FirstResidue: x.first,
		Residues:     string(x.residues),
		Structure:    string(x.structure),
	})
}

func (x *extractor) residueLine(line string) error {
	if len(line) < minResidueLineLen {
		return fmt.Errorf("%w: %d bytes, need %d", ErrMalformedLine, len(line), minResidueLineLen)
	}

	label := line[ChainColumn]
	if label != x.chain && x.chain != blankChain {
		x.flush()
		x.reset()
	}
	x.chain = label

	numField := strings.TrimSpace(line[ResidueNumberStart:ResidueNumberEnd])
	num, err := strconv.Atoi(numField)
	if err != nil {
		return fmt.Errorf("%w: residue number %q", ErrMalformedLine, numField)
	}

	if x.broken {
		return nil
	}
	if x.current != NoResidue && num != x.current+1 {
		// Numbering gap: drop the chain until the label changes.
		x.residues = nil
		x.structure = nil
		x.current = BrokenResidue
		x.first = BrokenResidue
		x.broken = true
		return nil
	}

	ss := line[StructureColumn]
	if ss == ' ' {
		ss = DefaultStructure
	}

	if x.first == NoResidue {
		x.first = num
	}
	x.current = num
	x.residues = append(x.residues, line[ResidueColumn])
	x.structure = append(x.structure, ss)
	return nil
}
