package registry

import (
	"errors"
	"testing"
	"time"
)

func TestRegistry_AddGetRemove(t *testing.T) {
	r := NewRegistry()
	e := PatternEntry{Name: "api/token", Pattern: "tok_[a-z0-9]+", RegexpID: 0}
	if err := r.Add(e); err != nil {
		t.Fatal(err)
	}
	if err := r.Add(e); !errors.Is(err, ErrPatternExists) {
		t.Errorf("duplicate add: err = %v, want ErrPatternExists", err)
	}

	got, err := r.Get("api/token")
	if err != nil || got.Pattern != e.Pattern {
		t.Fatalf("Get = %+v, %v", got, err)
	}
	if _, err := r.Get("missing"); !errors.Is(err, ErrPatternNotFound) {
		t.Errorf("Get missing: err = %v", err)
	}

	if err := r.Remove("api/token"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Get("api/token"); !errors.Is(err, ErrPatternNotFound) {
		t.Error("entry survived Remove")
	}
}

func TestRegistry_ListPrefix(t *testing.T) {
	r := NewRegistry()
	for i, name := range []string{"api/token", "api/secret", "web/session", "apex"} {
		if err := r.Add(PatternEntry{Name: name, Pattern: "x", RegexpID: uint32(i)}); err != nil {
			t.Fatal(err)
		}
	}

	got := r.ListPrefix("api/")
	if len(got) != 2 || got[0].Name != "api/secret" || got[1].Name != "api/token" {
		t.Errorf("ListPrefix(api/) = %+v", got)
	}
	if all := r.ListPrefix(""); len(all) != 4 {
		t.Errorf("ListPrefix(\"\") returned %d entries, want 4", len(all))
	}
	if none := r.ListPrefix("zzz"); len(none) != 0 {
		t.Errorf("ListPrefix(zzz) = %+v", none)
	}
}

func TestManifest_RoundTrip(t *testing.T) {
	m := &Manifest{
		Name:       "secrets",
		CreatedAt:  time.Now().UTC(),
		Relocation: "offset",
		Patterns: []PatternEntry{
			{Name: "b", Pattern: "bb", RegexpID: 1},
			{Name: "a", Pattern: "aa", RegexpID: 0},
		},
	}
	data, err := MarshalManifest(m)
	if err != nil {
		t.Fatal(err)
	}

	got, err := UnmarshalManifest(data)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != m.Name || len(got.Patterns) != 2 {
		t.Fatalf("round trip lost data: %+v", got)
	}
	if got.Patterns[0].RegexpID != 0 {
		t.Error("patterns not sorted by regexp ID")
	}
}

func TestManifest_DetectsTampering(t *testing.T) {
	m := &Manifest{Name: "x", Relocation: "offset"}
	data, err := MarshalManifest(m)
	if err != nil {
		t.Fatal(err)
	}
	tampered := []byte(string(data))
	for i := range tampered {
		if tampered[i] == 'x' {
			tampered[i] = 'y'
			break
		}
	}
	if _, err := UnmarshalManifest(tampered); !errors.Is(err, ErrManifestCorrupt) {
		t.Errorf("err = %v, want ErrManifestCorrupt", err)
	}
}

func TestCompileKey_Sensitivity(t *testing.T) {
	a := CompileKey([]string{"ab", "cd"}, "offset")
	if a != CompileKey([]string{"ab", "cd"}, "offset") {
		t.Error("key is not deterministic")
	}
	if a == CompileKey([]string{"ab", "cd"}, "absolute") {
		t.Error("key ignores relocation")
	}
	if a == CompileKey([]string{"cd", "ab"}, "offset") {
		t.Error("key ignores pattern order")
	}
}
