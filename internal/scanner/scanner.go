package scanner

import "encoding/binary"

// Byte values and letter-table geometry.
const (
	maxChar     = 256
	letterBytes = 2 // letters are uint16
)

// endMark terminates each state's accepted-regexp list in the final table.
const endMark = ^uint64(0)

// State is an opaque token identifying a scanner state: the byte offset of
// the state's transition row from the transition-matrix base. Callers own
// their State values; the scanner itself is never mutated by a match.
type State uint64

// Action exists for interface compatibility with richer scanners; this
// scanner never produces one.
type Action uint32

// locals mirrors the counters block of the serialized image.
type locals struct {
	statesCount    uint32
	lettersCount   uint32
	regexpsCount   uint32
	initial        uint64
	finalTableSize uint32
	signature      uint64
}

// Scanner is a compiled multiregexp matcher, parametrized by the transition
// encoding. It answers whether a byte string matches any of its regexps in
// O(len) with small constants; agglutinated scanners report per-regexp IDs.
//
// The zero value is an empty scanner: Size() == 0, matches nothing.
type Scanner[R Relocation] struct {
	m locals

	// buf is the whole image. For owned scanners it aliases an aligned
	// allocation; for mmap-adopted scanners it aliases the mapping and
	// owned is false.
	buf   []byte
	owned bool

	// Sub-region byte offsets within buf, set by markup.
	finalOff      uint64
	finalIndexOff uint64
	transOff      uint64

	// trans is the transition matrix region of buf.
	trans []byte

	// alignOffset is the word offset that makes mask reads vector-aligned;
	// rows are vector-word multiples, so it is image-wide.
	alignOffset uint64

	finalEnd uint64 // build cursor into the final table, in words
	sealed   bool
}

// Size returns the number of states.
func (s *Scanner[R]) Size() int { return int(s.m.statesCount) }

// Empty reports whether the scanner has no states and can match nothing.
func (s *Scanner[R]) Empty() bool { return s.m.statesCount == 0 }

// RegexpsCount returns the number of regexps the scanner distinguishes.
func (s *Scanner[R]) RegexpsCount() int { return int(s.m.regexpsCount) }

// LettersCount returns the number of byte equivalence classes.
func (s *Scanner[R]) LettersCount() int { return int(s.m.lettersCount) }

// Signature returns the relocation signature baked into the image.
func (s *Scanner[R]) Signature() uint64 { return s.m.signature }

// Initialize sets state to the scanner's initial state.
func (s *Scanner[R]) Initialize(st *State) { *st = State(s.m.initial) }

// Step advances state by one input byte. It cannot fail: every byte value
// maps to a letter and every state has a full row.
func (s *Scanner[R]) Step(st *State, c byte) Action {
	var r R
	l := uint64(binary.LittleEndian.Uint16(s.buf[uint64(c)*letterBytes:]))
	*st = r.next(*st, r.load(s.trans, uint64(*st)+l*r.cellBytes()))
	return 0
}

// TakeAction is a no-op, present for interface compatibility.
func (s *Scanner[R]) TakeAction(*State, Action) {}

// Final reports whether state is in any of the final sets.
func (s *Scanner[R]) Final(st State) bool { return s.flags(st)&flagFinal != 0 }

// Dead reports whether no final state is reachable from state.
func (s *Scanner[R]) Dead(st State) bool { return s.flags(st)&flagDead != 0 }

// AcceptedRegexps returns the regexp IDs accepted at state, in ascending
// order. The result is freshly allocated.
func (s *Scanner[R]) AcceptedRegexps(st State) []uint32 {
	off := s.finalIndexAt(s.StateIndex(st))
	var ids []uint32
	for {
		v := s.finalAt(off)
		if v == endMark {
			return ids
		}
		ids = append(ids, uint32(v))
		off++
	}
}

// StateIndex converts a state token to its dense index.
func (s *Scanner[R]) StateIndex(st State) uint64 {
	return uint64(st) / s.rowBytes()
}

// IndexToState converts a dense state index to its token.
func (s *Scanner[R]) IndexToState(i uint64) State {
	return State(i * s.rowBytes())
}

// BufSize returns the size of the image buffer used (or required) by the
// scanner.
func (s *Scanner[R]) BufSize() uint64 {
	return alignUp(
		maxChar*letterBytes+
			uint64(s.m.finalTableSize)*wordBytes+
			uint64(s.m.statesCount)*wordBytes+
			s.rowBytes()*uint64(s.m.statesCount),
		wordBytes)
}

// Swap exchanges the contents of two scanners. Not safe to call while either
// scanner has concurrent readers.
func (s *Scanner[R]) Swap(o *Scanner[R]) {
	*s, *o = *o, *s
}

// Clone returns a scanner matching s. Owned images are deep-copied; borrowed
// (mmap-adopted) images stay aliased to the same mapping.
func (s *Scanner[R]) Clone() (*Scanner[R], error) {
	if s.Empty() || !s.owned {
		c := *s
		return &c, nil
	}
	c := &Scanner[R]{m: s.m, owned: true, finalEnd: s.finalEnd, sealed: s.sealed}
	buf := newAlignedBuffer(s.BufSize())
	copy(buf, s.buf)
	if err := c.markup(buf); err != nil {
		return nil, err
	}
	return c, nil
}

// --- geometry ---

func (s *Scanner[R]) headerCells() uint64 {
	var r R
	return rowHeaderBytes / r.cellBytes()
}

// rowWidth is the row size in transition cells: letters plus the header,
// rounded up to a whole number of vector words.
func (s *Scanner[R]) rowWidth() uint64 {
	var r R
	return alignUp(uint64(s.m.lettersCount)+s.headerCells(), vectorBytes/r.cellBytes())
}

func (s *Scanner[R]) rowBytes() uint64 {
	var r R
	return s.rowWidth() * r.cellBytes()
}

// markup points the sub-regions into buf: letter table, final table, final
// index, transition matrix. buf must be word-aligned and BufSize() long.
func (s *Scanner[R]) markup(buf []byte) error {
	if len(buf) > 0 && sliceAddr(buf, 0)%wordBytes != 0 {
		return ErrMisaligned
	}
	s.buf = buf
	off := uint64(maxChar * letterBytes)
	s.finalOff = off
	off += uint64(s.m.finalTableSize) * wordBytes
	s.finalIndexOff = off
	off += uint64(s.m.statesCount) * wordBytes
	s.transOff = off
	s.trans = buf[off : off+s.rowBytes()*uint64(s.m.statesCount)]
	s.alignOffset = 0
	if len(s.trans) > 0 {
		base := uint64(sliceAddr(s.trans, 0))
		s.alignOffset = (alignUp(base, vectorBytes) - base) / wordBytes
	}
	return nil
}

// --- raw table access ---

func (s *Scanner[R]) word(off uint64) uint64 {
	return binary.LittleEndian.Uint64(s.trans[off:])
}

func (s *Scanner[R]) putWord(off, v uint64) {
	binary.LittleEndian.PutUint64(s.trans[off:], v)
}

func (s *Scanner[R]) letter(c byte) uint64 {
	return uint64(binary.LittleEndian.Uint16(s.buf[uint64(c)*letterBytes:]))
}

func (s *Scanner[R]) putLetter(c byte, l uint64) {
	binary.LittleEndian.PutUint16(s.buf[uint64(c)*letterBytes:], uint16(l))
}

func (s *Scanner[R]) finalAt(i uint64) uint64 {
	return binary.LittleEndian.Uint64(s.buf[s.finalOff+i*wordBytes:])
}

func (s *Scanner[R]) putFinal(i, v uint64) {
	binary.LittleEndian.PutUint64(s.buf[s.finalOff+i*wordBytes:], v)
}

func (s *Scanner[R]) finalIndexAt(i uint64) uint64 {
	return binary.LittleEndian.Uint64(s.buf[s.finalIndexOff+i*wordBytes:])
}

func (s *Scanner[R]) putFinalIndex(i, v uint64) {
	binary.LittleEndian.PutUint64(s.buf[s.finalIndexOff+i*wordBytes:], v)
}

// cell reads the transition cell for letter l (header-offset letter index)
// of the row at st.
func (s *Scanner[R]) cell(st State, l uint64) uint64 {
	var r R
	return r.load(s.trans, uint64(st)+l*r.cellBytes())
}
