package storage

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/blake2b"
)

const (
	// ChecksumPrefix is the prefix for BLAKE2b-256 checksums.
	ChecksumPrefix = "blake2b:"

	// checksumBufSize is the buffer size for streaming checksum computation.
	checksumBufSize = 32 * 1024 // 32KB
)

// Checksum represents a hex-encoded BLAKE2b-256 hash with the "blake2b:"
// prefix. Checksums key the compile cache and verify manifests and scanner
// files.
type Checksum string

var (
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrInvalidChecksum  = errors.New("invalid checksum format")
)

// bufPool pools 32KB buffers for streaming checksum computation.
var bufPool = sync.Pool{
	New: func() any {
		buf := make([]byte, checksumBufSize)
		return &buf
	},
}

// ComputeChecksum computes BLAKE2b-256 over a byte slice.
func ComputeChecksum(data []byte) Checksum {
	sum := blake2b.Sum256(data)
	return FormatChecksum(sum[:])
}

// ComputeFileChecksum opens a file and computes its BLAKE2b-256 checksum.
func ComputeFileChecksum(path string) (Checksum, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("compute file checksum %s: %w", path, err)
	}
	defer f.Close()

	bufPtr := bufPool.Get().(*[]byte)
	defer bufPool.Put(bufPtr)

	return ComputeReaderChecksum(f, *bufPtr)
}

// ComputeReaderChecksum computes BLAKE2b-256 by streaming from an io.Reader.
// If buf is nil, a default 32KB buffer is allocated.
func ComputeReaderChecksum(r io.Reader, buf []byte) (Checksum, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", fmt.Errorf("init blake2b: %w", err)
	}
	if buf == nil {
		buf = make([]byte, checksumBufSize)
	}
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", fmt.Errorf("compute reader checksum: %w", err)
	}
	return FormatChecksum(h.Sum(nil)), nil
}

// VerifyFileChecksum verifies that a file's BLAKE2b-256 matches the expected
// checksum.
func VerifyFileChecksum(path string, expected Checksum) error {
	actual, err := ComputeFileChecksum(path)
	if err != nil {
		return err
	}
	if actual != expected {
		return fmt.Errorf("%w: file %s expected %s got %s", ErrChecksumMismatch, path, expected, actual)
	}
	return nil
}

// FormatChecksum hex-encodes a raw digest with the standard prefix.
func FormatChecksum(sum []byte) Checksum {
	return Checksum(ChecksumPrefix + hex.EncodeToString(sum))
}

// ParseChecksum validates the format of a checksum string.
func ParseChecksum(s string) (Checksum, error) {
	rest, ok := strings.CutPrefix(s, ChecksumPrefix)
	if !ok {
		return "", fmt.Errorf("%w: missing %q prefix", ErrInvalidChecksum, ChecksumPrefix)
	}
	if len(rest) != 2*blake2b.Size256 {
		return "", fmt.Errorf("%w: digest length %d", ErrInvalidChecksum, len(rest))
	}
	if _, err := hex.DecodeString(rest); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidChecksum, err)
	}
	return Checksum(s), nil
}
