package scanner

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Image framing. The frame header carries a magic, a format version, and the
// encoded size of the locals block; loaders reject anything unexpected
// before touching the rest.
const (
	imageMagic    = "GSCNDFA\x00"
	formatVersion = uint32(1)

	frameSize    = 16
	localsSize   = 40
	settingsSize = 16
)

// settings captures the platform-visible invariants baked into an image.
// Loading an image whose settings differ from the loader's is refused:
// header geometry is not translatable.
type settings struct {
	exitMaskCount uint64
	rowHeaderSize uint64
}

func hostSettings() settings {
	return settings{exitMaskCount: exitMaskCount, rowHeaderSize: rowHeaderBytes}
}

func encodeFrame(b []byte) {
	copy(b, imageMagic)
	binary.LittleEndian.PutUint32(b[8:], formatVersion)
	binary.LittleEndian.PutUint32(b[12:], localsSize)
}

func validateFrame(b []byte) error {
	if !bytes.Equal(b[:8], []byte(imageMagic)) {
		return fmt.Errorf("scanner: bad image magic %q", b[:8])
	}
	if v := binary.LittleEndian.Uint32(b[8:]); v != formatVersion {
		return fmt.Errorf("scanner: unsupported image version %d", v)
	}
	if n := binary.LittleEndian.Uint32(b[12:]); n != localsSize {
		return fmt.Errorf("scanner: unexpected locals size %d", n)
	}
	return nil
}

func encodeLocals(b []byte, m *locals) {
	binary.LittleEndian.PutUint32(b[0:], m.statesCount)
	binary.LittleEndian.PutUint32(b[4:], m.lettersCount)
	binary.LittleEndian.PutUint32(b[8:], m.regexpsCount)
	binary.LittleEndian.PutUint32(b[12:], 0)
	binary.LittleEndian.PutUint64(b[16:], m.initial)
	binary.LittleEndian.PutUint32(b[24:], m.finalTableSize)
	binary.LittleEndian.PutUint32(b[28:], 0)
	binary.LittleEndian.PutUint64(b[32:], m.signature)
}

func decodeLocals(b []byte) locals {
	return locals{
		statesCount:    binary.LittleEndian.Uint32(b[0:]),
		lettersCount:   binary.LittleEndian.Uint32(b[4:]),
		regexpsCount:   binary.LittleEndian.Uint32(b[8:]),
		initial:        binary.LittleEndian.Uint64(b[16:]),
		finalTableSize: binary.LittleEndian.Uint32(b[24:]),
		signature:      binary.LittleEndian.Uint64(b[32:]),
	}
}

func encodeSettings(b []byte, s settings) {
	binary.LittleEndian.PutUint64(b[0:], s.exitMaskCount)
	binary.LittleEndian.PutUint64(b[8:], s.rowHeaderSize)
}

func decodeSettings(b []byte) settings {
	return settings{
		exitMaskCount: binary.LittleEndian.Uint64(b[0:]),
		rowHeaderSize: binary.LittleEndian.Uint64(b[8:]),
	}
}

// Save writes the framed image: frame header, locals, settings, and the
// buffer, with word-alignment padding between blocks.
func (s *Scanner[R]) Save(w io.Writer) error {
	head := make([]byte, 0, frameSize+localsSize+settingsSize+2*wordBytes)

	var frame [frameSize]byte
	encodeFrame(frame[:])
	head = append(head, frame[:]...)

	var lb [localsSize]byte
	encodeLocals(lb[:], &s.m)
	head = append(head, lb[:]...)
	head = pad(head)

	var sb [settingsSize]byte
	encodeSettings(sb[:], hostSettings())
	head = append(head, sb[:]...)
	head = pad(head)

	if _, err := w.Write(head); err != nil {
		return fmt.Errorf("scanner: save header: %w", err)
	}

	buf := s.buf
	if buf == nil {
		buf = make([]byte, s.BufSize())
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("scanner: save image: %w", err)
	}
	return nil
}

// Load reads a framed image into an owned scanner. The image must have been
// saved with the same relocation strategy and settings.
func Load[R Relocation](r io.Reader) (*Scanner[R], error) {
	var rel R

	var frame [frameSize]byte
	if err := readFull(r, frame[:]); err != nil {
		return nil, err
	}
	if err := validateFrame(frame[:]); err != nil {
		return nil, err
	}

	var lb [localsSize]byte
	if err := readFull(r, lb[:]); err != nil {
		return nil, err
	}
	m := decodeLocals(lb[:])
	if m.signature != rel.signature() {
		return nil, ErrSignatureMismatch
	}
	if err := skipPad(r, frameSize+localsSize); err != nil {
		return nil, err
	}

	var sb [settingsSize]byte
	if err := readFull(r, sb[:]); err != nil {
		return nil, err
	}
	if decodeSettings(sb[:]) != hostSettings() {
		return nil, ErrPlatformMismatch
	}
	if err := skipPad(r, frameSize+localsSize+settingsSize); err != nil {
		return nil, err
	}

	s := &Scanner[R]{m: m, owned: true, sealed: true}
	buf := newAlignedBuffer(s.BufSize())
	if err := readFull(r, buf); err != nil {
		return nil, err
	}
	if err := s.markup(buf); err != nil {
		return nil, err
	}
	return s, nil
}

// Mmap adopts a saved image in place: the returned scanner borrows the given
// buffer without copying, and the remaining tail of the buffer is returned.
// Only Offset images are position-independent, so only they can be adopted.
func Mmap(data []byte) (*Scanner[Offset], []byte, error) {
	if len(data) > 0 && sliceAddr(data, 0)%wordBytes != 0 {
		return nil, nil, ErrMisaligned
	}
	if len(data) < frameSize+localsSize {
		return nil, nil, ErrShortImage
	}
	if err := validateFrame(data[:frameSize]); err != nil {
		return nil, nil, err
	}
	m := decodeLocals(data[frameSize:])
	if m.signature != SignatureOffset {
		return nil, nil, ErrSignatureMismatch
	}

	off := alignUp(frameSize+localsSize, wordBytes)
	if uint64(len(data)) < off+settingsSize {
		return nil, nil, ErrShortImage
	}
	if decodeSettings(data[off:]) != hostSettings() {
		return nil, nil, ErrPlatformMismatch
	}
	off = alignUp(off+settingsSize, wordBytes)

	s := &Scanner[Offset]{m: m, sealed: true}
	size := s.BufSize()
	if uint64(len(data)) < off+size {
		return nil, nil, ErrShortImage
	}
	if err := s.markup(data[off : off+size]); err != nil {
		return nil, nil, err
	}

	tail := alignUp(off+size, wordBytes)
	if tail > uint64(len(data)) {
		tail = uint64(len(data))
	}
	return s, data[tail:], nil
}

func pad(b []byte) []byte {
	for uint64(len(b))%wordBytes != 0 {
		b = append(b, 0)
	}
	return b
}

func skipPad(r io.Reader, pos uint64) error {
	n := alignUp(pos, wordBytes) - pos
	if n == 0 {
		return nil
	}
	var scratch [wordBytes]byte
	return readFull(r, scratch[:n])
}

func readFull(r io.Reader, b []byte) error {
	if _, err := io.ReadFull(r, b); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return ErrShortImage
		}
		return fmt.Errorf("scanner: read image: %w", err)
	}
	return nil
}
