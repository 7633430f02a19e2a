package scanner

import "encoding/binary"

// Relocation signatures embedded in the image header. A loader for one
// variant refuses images of the other.
const (
	SignatureOffset   uint64 = 1
	SignatureAbsolute uint64 = 2
)

// Relocation selects how a transition cell encodes its target row. The two
// strategies expose the same operations; the scanner is generic over them.
type Relocation interface {
	Offset | Absolute

	signature() uint64
	cellBytes() uint64
	// next computes the target state from the current state and a cell value.
	next(s State, cell uint64) State
	// diff encodes the cell value for a transition from one row to another.
	diff(from, to State) uint64
	load(trans []byte, off uint64) uint64
	store(trans []byte, off uint64, v uint64)
}

// Offset stores each transition as a 32-bit signed delta between the source
// and target row positions. The image is position-independent and may be
// adopted from a memory mapping. Cell size is hardcoded at 32 bits, which
// caps the transition table at math.MaxInt32 bytes (the signed delta range)
// but halves it against 64-bit cells.
type Offset struct{}

func (Offset) signature() uint64 { return SignatureOffset }
func (Offset) cellBytes() uint64 { return 4 }

func (Offset) next(s State, cell uint64) State {
	return State(uint64(s) + uint64(int64(int32(uint32(cell)))))
}

func (Offset) diff(from, to State) uint64 {
	return uint64(uint32(uint64(to) - uint64(from)))
}

func (Offset) load(trans []byte, off uint64) uint64 {
	return uint64(binary.LittleEndian.Uint32(trans[off:]))
}

func (Offset) store(trans []byte, off uint64, v uint64) {
	binary.LittleEndian.PutUint32(trans[off:], uint32(v))
}

// Absolute stores each transition as the target row position itself, saving
// the add in next. Images are refused by Mmap; loading always rebuilds an
// owned copy.
type Absolute struct{}

func (Absolute) signature() uint64 { return SignatureAbsolute }
func (Absolute) cellBytes() uint64 { return 8 }

func (Absolute) next(_ State, cell uint64) State { return State(cell) }

func (Absolute) diff(_, to State) uint64 { return uint64(to) }

func (Absolute) load(trans []byte, off uint64) uint64 {
	return binary.LittleEndian.Uint64(trans[off:])
}

func (Absolute) store(trans []byte, off uint64, v uint64) {
	binary.LittleEndian.PutUint64(trans[off:], v)
}
