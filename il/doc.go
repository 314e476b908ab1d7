// Package il decodes, edits and re-encodes CIL method bodies.
//
// Decode reads a tiny or fat method header, the instruction stream and any
// exception sections. Branch displacements and clause offsets are bound to
// instruction handles, so offsets never need to be maintained by hand:
// RecalculateOffsets derives them, and Encode always runs it first.
//
// Edits are insertions. InsertBefore moves every reference that reached an
// instruction onto the inserted block, which keeps branch targets and
// exception regions pointing at the same logical location. InsertAfter adds
// code without redirecting anything. Short branches are widened to their
// four-byte forms on decode and in every inserted block, and are never
// narrowed again.
//
// Encoded bodies always use the fat header and a single fat exception
// section.
package il
