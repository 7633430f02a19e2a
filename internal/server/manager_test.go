package server

import (
	"errors"
	"log/slog"
	"path/filepath"
	"reflect"
	"testing"
)

func newTestManager(t *testing.T, dir string) *Manager {
	t.Helper()
	m, err := NewManager(dir, filepath.Join(dir, "cache.db"), slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(m.CloseAll)
	return m
}

var testSpecs = []PatternSpec{
	{Name: "hex", Pattern: "[0-9a-f]+"},
	{Name: "word", Pattern: "[A-Za-z]+"},
}

func TestManager_CompileAndMatch(t *testing.T) {
	m := newTestManager(t, t.TempDir())

	if _, err := m.Compile("basic", testSpecs); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Compile("basic", testSpecs); !errors.Is(err, ErrScannerExists) {
		t.Errorf("duplicate compile: err = %v", err)
	}
	if _, err := m.Compile("../evil", testSpecs); !errors.Is(err, ErrBadScannerName) {
		t.Errorf("bad name: err = %v", err)
	}

	res, err := m.Match("basic", []byte("cafe"))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Final {
		t.Error("\"cafe\" should match")
	}
	if !reflect.DeepEqual(res.Regexps, []uint32{0, 1}) {
		t.Errorf("regexps = %v, want [0 1]", res.Regexps)
	}
	if !reflect.DeepEqual(res.Names, []string{"hex", "word"}) {
		t.Errorf("names = %v", res.Names)
	}

	res, err = m.Match("basic", []byte("Hello"))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Final || !reflect.DeepEqual(res.Regexps, []uint32{1}) {
		t.Errorf("Hello: %+v", res)
	}

	if _, err := m.Match("missing", nil); !errors.Is(err, ErrScannerNotFound) {
		t.Errorf("match missing: err = %v", err)
	}
}

func TestManager_ReloadsFromDisk(t *testing.T) {
	dir := t.TempDir()
	m := newTestManager(t, dir)
	if _, err := m.Compile("persist", testSpecs); err != nil {
		t.Fatal(err)
	}
	m.CloseAll()

	// A fresh manager adopts the saved image via mmap.
	m2 := newTestManager(t, dir)
	res, err := m2.Match("persist", []byte("deadbeef"))
	if err != nil {
		t.Fatal(err)
	}
	// "deadbeef" is both hex and a word.
	if !res.Final || !reflect.DeepEqual(res.Regexps, []uint32{0, 1}) {
		t.Errorf("reloaded scanner: %+v", res)
	}
}

func TestManager_Delete(t *testing.T) {
	dir := t.TempDir()
	m := newTestManager(t, dir)
	if _, err := m.Compile("gone", testSpecs); err != nil {
		t.Fatal(err)
	}
	if err := m.Delete("gone"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Get("gone"); !errors.Is(err, ErrScannerNotFound) {
		t.Error("instance survived delete")
	}
	if err := m.Delete("gone"); !errors.Is(err, ErrScannerNotFound) {
		t.Errorf("double delete: err = %v", err)
	}

	// Nothing left to reload.
	m2 := newTestManager(t, dir)
	if names := m2.List(); len(names) != 0 {
		t.Errorf("reload found %v", names)
	}
}

func TestManager_CompileCacheHit(t *testing.T) {
	dir := t.TempDir()
	m := newTestManager(t, dir)
	if _, err := m.Compile("a", testSpecs); err != nil {
		t.Fatal(err)
	}

	// Same pattern set under a different name reuses the cached image.
	entries, _, err := m.cache.Stats()
	if err != nil || entries != 1 {
		t.Fatalf("cache entries = %d, err=%v", entries, err)
	}
	if _, err := m.Compile("b", testSpecs); err != nil {
		t.Fatal(err)
	}
	entries, _, err = m.cache.Stats()
	if err != nil || entries != 1 {
		t.Errorf("cache entries after reuse = %d, err=%v", entries, err)
	}

	res, err := m.Match("b", []byte("f00d"))
	if err != nil || !res.Final {
		t.Errorf("cached image misbehaves: %+v err=%v", res, err)
	}
}
