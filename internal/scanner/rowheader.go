package scanner

// Every transition row starts with a fixed header: the shortcut exit masks
// followed by a flags word. The header occupies whole transition cells so a
// row stays uniformly indexable by letter.
//
// Each exit mask is stored duplicated across 2x the vector/word ratio, so a
// vector-word read starting alignOffset words into the slot lands on a
// vector boundary no matter how the transition base is aligned; the image
// itself only needs word alignment.
const (
	exitMaskCount = 2
	maskSlotWords = 2 * wordsPerVector
	maskWords     = exitMaskCount * maskSlotWords

	rowFlagsOffset = maskWords * wordBytes
	rowHeaderBytes = rowFlagsOffset + wordBytes
)

// State flags.
const (
	flagFinal uint64 = 1
	flagDead  uint64 = 2
)

// Sentinel mask values. Bytes of a broadcast mask are all equal, so small
// mixed-byte words can never collide with a real mask.
const (
	maskNoShortcut uint64 = 1 // state has no shortcut
	maskNoExit     uint64 = 2 // state only transitions to itself
)

func (s *Scanner[R]) flags(st State) uint64 {
	return s.word(uint64(st) + rowFlagsOffset)
}

func (s *Scanner[R]) setStateFlags(st State, f uint64) {
	s.putWord(uint64(st)+rowFlagsOffset, f)
}

// mask returns the i-th exit mask as a scalar word, for sentinel compares.
func (s *Scanner[R]) mask(st State, i int) uint64 {
	return s.word(uint64(st) + uint64(i*maskSlotWords)*wordBytes)
}

// maskVec returns the i-th exit mask as a vector word, read alignOffset
// words into the duplicated slot so the access is vector-aligned.
func (s *Scanner[R]) maskVec(st State, i int) (uint64, uint64) {
	off := uint64(st) + (s.alignOffset+uint64(i*maskSlotWords))*wordBytes
	return s.word(off), s.word(off + wordBytes)
}

// setMask writes v across every word of the i-th duplicated mask slot.
func (s *Scanner[R]) setMask(st State, i int, v uint64) {
	off := uint64(st) + uint64(i*maskSlotWords)*wordBytes
	for j := 0; j < maskSlotWords; j++ {
		s.putWord(off+uint64(j)*wordBytes, v)
	}
}
