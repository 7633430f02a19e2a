package cache

import (
	"bytes"
	"path/filepath"
	"testing"

	"GoScan/internal/storage"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCache_PutGet(t *testing.T) {
	c := openTestCache(t)
	key := storage.ComputeChecksum([]byte("patterns-v1"))
	image := []byte("serialized scanner image")

	if _, _, ok, err := c.Get(key); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	if err := c.Put(key, 1, image); err != nil {
		t.Fatal(err)
	}

	got, sig, ok, err := c.Get(key)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if sig != 1 || !bytes.Equal(got, image) {
		t.Errorf("got sig=%d image=%q", sig, got)
	}
}

func TestCache_PutReplaces(t *testing.T) {
	c := openTestCache(t)
	key := storage.ComputeChecksum([]byte("k"))
	if err := c.Put(key, 1, []byte("v1")); err != nil {
		t.Fatal(err)
	}
	if err := c.Put(key, 2, []byte("v2")); err != nil {
		t.Fatal(err)
	}
	got, sig, ok, err := c.Get(key)
	if err != nil || !ok || sig != 2 || string(got) != "v2" {
		t.Errorf("got %q sig=%d ok=%v err=%v", got, sig, ok, err)
	}
}

func TestCache_EvictAndStats(t *testing.T) {
	c := openTestCache(t)
	k1 := storage.ComputeChecksum([]byte("k1"))
	k2 := storage.ComputeChecksum([]byte("k2"))
	if err := c.Put(k1, 1, []byte("aaaa")); err != nil {
		t.Fatal(err)
	}
	if err := c.Put(k2, 1, []byte("bb")); err != nil {
		t.Fatal(err)
	}

	entries, size, err := c.Stats()
	if err != nil || entries != 2 || size != 6 {
		t.Errorf("Stats = %d entries, %d bytes, err=%v", entries, size, err)
	}

	if err := c.Evict(k1); err != nil {
		t.Fatal(err)
	}
	if _, _, ok, _ := c.Get(k1); ok {
		t.Error("entry survived Evict")
	}
	// Evicting a missing key is not an error.
	if err := c.Evict(k1); err != nil {
		t.Error(err)
	}
}
