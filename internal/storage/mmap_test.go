package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestMmapFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image")
	data := bytes.Repeat([]byte("0123456789abcdef"), 256)
	if err := os.WriteFile(path, data, FilePerm); err != nil {
		t.Fatal(err)
	}

	m, err := MmapFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(m.Data, data) {
		t.Error("mapped data differs from file contents")
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	// Close is idempotent.
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestMmapFile_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty")
	if err := os.WriteFile(path, nil, FilePerm); err != nil {
		t.Fatal(err)
	}
	m, err := MmapFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if m.Data != nil {
		t.Error("empty file should map to nil data")
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestMmapFile_Missing(t *testing.T) {
	if _, err := MmapFile(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("missing file should fail")
	}
}
