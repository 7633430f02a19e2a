package scanner

import "errors"

var (
	// ErrShortImage reports that a reader or buffer ended before a whole
	// scanner image could be consumed.
	ErrShortImage = errors.New("scanner: image truncated")

	// ErrSignatureMismatch reports that an image was built with a different
	// relocation strategy than the loader's.
	ErrSignatureMismatch = errors.New("scanner: relocation signature mismatch")

	// ErrPlatformMismatch reports that an image was built with incompatible
	// settings (exit-mask count or row-header size).
	ErrPlatformMismatch = errors.New("scanner: image built for an incompatible platform")

	// ErrMisaligned reports that a buffer handed to Mmap does not start on
	// a word boundary.
	ErrMisaligned = errors.New("scanner: buffer is not word-aligned")

	// ErrGlueTooLarge reports that the product automaton of Glue exceeded
	// the caller's state bound; the glued scanner is returned empty.
	ErrGlueTooLarge = errors.New("scanner: glued automaton exceeds size limit")
)
