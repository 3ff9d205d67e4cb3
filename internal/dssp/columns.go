package dssp

// Fixed byte offsets of the residue section of a DSSP file. These are part
// of the file format and must not drift.
const (
	// ResidueNumberStart and ResidueNumberEnd bound the author residue
	// number field, [start, end).
	ResidueNumberStart = 5
	ResidueNumberEnd   = 10

	// ChainColumn holds the one-character chain label.
	ChainColumn = 11

	// ResidueColumn holds the one-letter amino acid code.
	ResidueColumn = 13

	// StructureColumn holds the eight-state secondary-structure code.
	StructureColumn = 16

	// minResidueLineLen is the shortest line that covers every column above.
	minResidueLineLen = StructureColumn + 1
)

const (
	// HeaderMarker is the first token of the column-header line that precedes
	// the residue section.
	HeaderMarker = "#"

	// BreakMarker appears on chain-break lines, which carry no residue.
	BreakMarker = "!"

	// DefaultStructure replaces a blank secondary-structure code.
	DefaultStructure = 'C'

	// blankChain is the chain label before any residue has been read.
	blankChain = ' '
)

// Sentinels stored in ChainRecord.FirstResidue.
const (
	// NoResidue marks a chain for which no residue has been captured.
	NoResidue = -999

	// BrokenResidue marks a chain whose accumulation was discarded after a
	// residue numbering gap.
	BrokenResidue = -998
)
