package scanner

import (
	"errors"
	"fmt"
	"math"

	"GoScan/internal/fsm"
)

// errOffsetRange guards the 32-bit cell encoding of the Offset strategy.
var errOffsetRange = errors.New("scanner: transition table too large for 32-bit offset cells")

// New builds a sealed scanner from a canonized automaton. The automaton is
// canonized first if the caller has not done so.
func New[R Relocation](f *fsm.Fsm) (*Scanner[R], error) {
	f.Canonize()
	letters := f.Letters()

	s, err := newScanner[R](
		uint32(f.Size()),
		uint32(letters.Size()),
		uint64(f.FinalIDsTotal()),
		f.RegexpsCount(),
	)
	if err != nil {
		return nil, err
	}

	// Letter translation table: every byte maps to its class, offset past
	// the header cells so rows are uniformly indexable.
	hc := s.headerCells()
	for cls := 0; cls < letters.Size(); cls++ {
		for _, c := range letters.Members(uint16(cls)) {
			s.putLetter(c, uint64(cls)+hc)
		}
	}

	for i := uint64(0); i < uint64(f.Size()); i++ {
		st := s.IndexToState(i)
		for k := 0; k < exitMaskCount; k++ {
			s.setMask(st, k, maskNoShortcut)
		}
	}

	s.m.initial = uint64(s.IndexToState(uint64(f.Initial())))

	lists := make([][]uint32, f.Size())
	for i := 0; i < f.Size(); i++ {
		src := uint32(i)
		for cls := 0; cls < letters.Size(); cls++ {
			rep := letters.Representative(uint16(cls))
			s.setJump(src, rep, f.Next(src, rep))
		}
		var fl uint64
		ids := f.Accepts(src)
		if len(ids) > 0 {
			fl |= flagFinal
		}
		if f.Dead(src) {
			fl |= flagDead
		}
		s.setStateFlags(s.IndexToState(uint64(i)), fl)
		lists[i] = ids
	}

	s.finishBuild(lists)
	s.buildShortcuts()
	s.sealed = true
	tracer().Debugf("built scanner: states=%d letters=%d regexps=%d buf=%dB",
		s.Size(), s.LettersCount(), s.RegexpsCount(), s.BufSize())
	return s, nil
}

// newScanner allocates a zeroed, word-aligned image for the given geometry.
// finalIDsTotal is the number of accepted IDs across all states; the final
// table additionally holds one terminator per state.
func newScanner[R Relocation](states, lettersCount uint32, finalIDsTotal uint64, regexps uint32) (*Scanner[R], error) {
	var r R
	s := &Scanner[R]{owned: true}
	s.m = locals{
		statesCount:    states,
		lettersCount:   lettersCount,
		regexpsCount:   regexps,
		finalTableSize: uint32(finalIDsTotal + uint64(states)),
		signature:      r.signature(),
	}
	if r.cellBytes() == 4 && s.rowBytes()*uint64(states) > math.MaxInt32 {
		return nil, errOffsetRange
	}
	if err := s.markup(newAlignedBuffer(s.BufSize())); err != nil {
		return nil, err
	}
	return s, nil
}

// setJump writes the transition src --c--> dst. Out-of-range states indicate
// a broken construction driver, not a recoverable condition.
func (s *Scanner[R]) setJump(src uint32, c byte, dst uint32) {
	if s.sealed {
		panic("scanner: setJump on sealed scanner")
	}
	if src >= s.m.statesCount || dst >= s.m.statesCount {
		panic(fmt.Sprintf("scanner: setJump state out of range: %d -> %d of %d", src, dst, s.m.statesCount))
	}
	var r R
	from := s.IndexToState(uint64(src))
	r.store(s.trans, uint64(from)+s.letter(c)*r.cellBytes(), r.diff(from, s.IndexToState(uint64(dst))))
}

// finishBuild lays out the final-set tables: for each state, finalIndex
// points at its accepted-ID list in final, terminated by endMark.
func (s *Scanner[R]) finishBuild(lists [][]uint32) {
	for st := uint64(0); st < uint64(s.m.statesCount); st++ {
		s.putFinalIndex(st, s.finalEnd)
		for _, id := range lists[st] {
			s.putFinal(s.finalEnd, uint64(id))
			s.finalEnd++
		}
		s.putFinal(s.finalEnd, endMark)
		s.finalEnd++
	}
	if s.finalEnd != uint64(s.m.finalTableSize) {
		panic(fmt.Sprintf("scanner: final table size mismatch: %d != %d", s.finalEnd, s.m.finalTableSize))
	}
}

// buildShortcuts fills the exit masks of every state. A state that leaves
// itself on at most exitMaskCount distinct bytes gets each byte broadcast
// into a mask; a state that never leaves itself gets maskNoExit; everything
// else gets maskNoShortcut and bypasses the optimization.
func (s *Scanner[R]) buildShortcuts() {
	var r R

	// Invert the letter table into the bytes of each letter class.
	bytesOf := make([][]byte, s.rowWidth())
	for ch := 0; ch < maxChar; ch++ {
		l := s.letter(byte(ch))
		bytesOf[l] = append(bytesOf[l], byte(ch))
	}

	hc := s.headerCells()
	letters := uint64(s.m.lettersCount)
	for i := uint64(0); i < uint64(s.m.statesCount); i++ {
		st := s.IndexToState(i)
		ind := 0
		last := maskNoExit
		l := hc
		for ; l != hc+letters; l++ {
			if r.next(st, s.cell(st, l)) == st {
				continue
			}
			if ind+len(bytesOf[l]) > exitMaskCount {
				break
			}
			for _, ch := range bytesOf[l] {
				last = broadcast(ch)
				s.setMask(st, ind, last)
				ind++
			}
		}
		if l != hc+letters {
			// Not enough mask slots; bypass the optimization for this state.
			last = maskNoShortcut
			ind = 0
		}
		// Duplicate the last used mask into the remaining slots, so equal
		// neighboring masks mark the end of the real ones.
		for ; ind != exitMaskCount; ind++ {
			s.setMask(st, ind, last)
		}
	}
}

// Reencode rewrites a scanner under another relocation strategy. Every
// transition cell is re-encoded and the letter table re-offset for the
// target header geometry; accept behavior is preserved exactly.
func Reencode[To Relocation, From Relocation](src *Scanner[From]) (*Scanner[To], error) {
	var to To
	var from From

	if src.Empty() {
		return &Scanner[To]{m: locals{signature: to.signature()}}, nil
	}

	dst := &Scanner[To]{owned: true}
	dst.m = src.m
	dst.m.signature = to.signature()
	if to.cellBytes() == 4 && dst.rowBytes()*uint64(dst.m.statesCount) > math.MaxInt32 {
		return nil, errOffsetRange
	}
	if err := dst.markup(newAlignedBuffer(dst.BufSize())); err != nil {
		return nil, err
	}

	hcSrc, hcDst := src.headerCells(), dst.headerCells()
	for ch := 0; ch < maxChar; ch++ {
		cls := src.letter(byte(ch)) - hcSrc
		dst.putLetter(byte(ch), cls+hcDst)
	}
	for i := uint64(0); i < uint64(src.m.finalTableSize); i++ {
		dst.putFinal(i, src.finalAt(i))
	}
	for i := uint64(0); i < uint64(src.m.statesCount); i++ {
		dst.putFinalIndex(i, src.finalIndexAt(i))
	}
	dst.m.initial = uint64(dst.IndexToState(src.StateIndex(State(src.m.initial))))
	dst.finalEnd = src.finalEnd

	letters := uint64(src.m.lettersCount)
	for i := uint64(0); i < uint64(src.m.statesCount); i++ {
		os := src.IndexToState(i)
		ns := dst.IndexToState(i)
		dst.setStateFlags(ns, src.flags(os))
		for k := 0; k < exitMaskCount; k++ {
			dst.setMask(ns, k, src.mask(os, k))
		}
		for l := uint64(0); l < letters; l++ {
			target := from.next(os, src.cell(os, hcSrc+l))
			cell := to.diff(ns, dst.IndexToState(src.StateIndex(target)))
			to.store(dst.trans, uint64(ns)+(hcDst+l)*to.cellBytes(), cell)
		}
	}

	dst.sealed = true
	return dst, nil
}
