// Package scanner implements a compiled, table-driven multi-regexp DFA
// matcher. The whole scanner lives in one contiguous, word-aligned buffer:
// a byte-to-letter translation table, a CSR-style accepted-regexp table, and
// a transition matrix whose rows are prefixed by a fixed header carrying
// state flags and shortcut masks.
//
// Two relocation strategies encode transitions: Offset stores 32-bit signed
// row deltas and yields a position-independent image that can be adopted
// straight from a memory mapping; Absolute stores full row positions and
// saves one add per step in the hot loop.
//
// Built scanners are immutable and safe for concurrent use without
// synchronization; each match owns its own State value.
package scanner

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer writes to trace with key 'goscan.scanner'
func tracer() tracing.Trace {
	return tracing.Select("goscan.scanner")
}
