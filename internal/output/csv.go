// Package output writes deduplicated chains as delimited text.
package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/steveyegge/ps4/internal/types"
)

// Header is the column contract of the output file; downstream readers
// depend on these exact names in this order.
var Header = []string{"chain_id", "first_res", "input", "dssp8"}

// WriteRecords writes a header row followed by one row per record.
func WriteRecords(w io.Writer, records []*types.ChainRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			return err
		}
		row := []string{rec.ID, strconv.Itoa(rec.FirstResidue), rec.Residues, rec.Structure}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write %s: %w", rec.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	return nil
}

// WriteFile replaces the file at path with the given records. The file is
// written to a temporary sibling and renamed into place, so a failed write
// leaves any previous file intact.
func WriteFile(path string, records []*types.ChainRecord) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }() // No-op after a successful rename

	if err := WriteRecords(tmp, records); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close output file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// Select returns the records of ws for ids, in ids order. Unknown IDs are an
// error.
func Select(ws *types.WorkingSet, ids []string) ([]*types.ChainRecord, error) {
	out := make([]*types.ChainRecord, 0, len(ids))
	for _, id := range ids {
		rec := ws.Get(id)
		if rec == nil {
			return nil, fmt.Errorf("chain %s not in working set", id)
		}
		out = append(out, rec)
	}
	return out, nil
}
