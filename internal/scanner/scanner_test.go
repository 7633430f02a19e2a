package scanner

import (
	"testing"

	"GoScan/internal/fsm"
)

// compile builds a sealed scanner for one pattern.
func compile[R Relocation](t *testing.T, pattern string) *Scanner[R] {
	t.Helper()
	f, err := fsm.Compile(pattern)
	if err != nil {
		t.Fatalf("compile %q: %v", pattern, err)
	}
	s, err := New[R](f)
	if err != nil {
		t.Fatalf("build scanner for %q: %v", pattern, err)
	}
	return s
}

// matches reports whether input is a whole-string match.
func matches[R Relocation](s *Scanner[R], input string) bool {
	var st State
	s.Initialize(&st)
	st = s.Run(st, []byte(input))
	return s.Final(st)
}

func TestScanner_SingleLiteral(t *testing.T) {
	s := compile[Offset](t, "a")

	if !matches(s, "a") {
		t.Error("should match \"a\"")
	}
	var st State
	s.Initialize(&st)
	st = s.Run(st, []byte("a"))
	if ids := s.AcceptedRegexps(st); len(ids) != 1 || ids[0] != 0 {
		t.Errorf("accepted regexps = %v, want [0]", ids)
	}

	for _, input := range []string{"b", "", "aa", "ab"} {
		if matches(s, input) {
			t.Errorf("should not match %q", input)
		}
	}
}

func TestScanner_EmptyPattern(t *testing.T) {
	s := compile[Offset](t, "^$")

	var st State
	s.Initialize(&st)
	if !s.Final(st) {
		t.Error("initial state should be final for ^$")
	}
	if ids := s.AcceptedRegexps(st); len(ids) != 1 || ids[0] != 0 {
		t.Errorf("accepted regexps = %v, want [0]", ids)
	}
	if matches(s, "x") {
		t.Error("^$ should not match \"x\"")
	}
}

func TestScanner_MatchTable(t *testing.T) {
	tests := []struct {
		pattern string
		accepts []string
		rejects []string
	}{
		{"abc", []string{"abc"}, []string{"", "ab", "abcd", "abx"}},
		{"[A-Z]+", []string{"A", "HELLO", "XYZ"}, []string{"", "Hello", "hello", "A1"}},
		{".*[Aa]", []string{"a", "A", "xxxa", "bbbA", "aA"}, []string{"", "b", "ax"}},
		{"a|bc", []string{"a", "bc"}, []string{"b", "c", "abc", ""}},
		{"(ab)+", []string{"ab", "abab"}, []string{"", "a", "aba"}},
		{"a{2,4}", []string{"aa", "aaa", "aaaa"}, []string{"a", "aaaaa"}},
		{"(?i)go", []string{"go", "GO", "Go", "gO"}, []string{"g", "goo"}},
	}
	for _, tt := range tests {
		sOff := compile[Offset](t, tt.pattern)
		sAbs := compile[Absolute](t, tt.pattern)
		for _, in := range tt.accepts {
			if !matches(sOff, in) {
				t.Errorf("Offset %q should match %q", tt.pattern, in)
			}
			if !matches(sAbs, in) {
				t.Errorf("Absolute %q should match %q", tt.pattern, in)
			}
		}
		for _, in := range tt.rejects {
			if matches(sOff, in) {
				t.Errorf("Offset %q should not match %q", tt.pattern, in)
			}
			if matches(sAbs, in) {
				t.Errorf("Absolute %q should not match %q", tt.pattern, in)
			}
		}
	}
}

func TestScanner_StateIndexRoundTrip(t *testing.T) {
	s := compile[Offset](t, "a(b|c)*d")
	for i := uint64(0); i < uint64(s.Size()); i++ {
		if got := s.StateIndex(s.IndexToState(i)); got != i {
			t.Errorf("StateIndex(IndexToState(%d)) = %d", i, got)
		}
	}
}

func TestScanner_LetterTableInvariant(t *testing.T) {
	f, err := fsm.Compile("[0-9]+|[a-f]+")
	if err != nil {
		t.Fatal(err)
	}
	s, err := New[Offset](f)
	if err != nil {
		t.Fatal(err)
	}

	letters := f.Letters()
	hc := s.headerCells()
	for c := 0; c < maxChar; c++ {
		want := uint64(letters.Class(byte(c))) + hc
		if got := s.letter(byte(c)); got != want {
			t.Errorf("letter(%#x) = %d, want %d", c, got, want)
		}
	}
	if s.LettersCount() != letters.Size() {
		t.Errorf("LettersCount = %d, want %d", s.LettersCount(), letters.Size())
	}
}

func TestScanner_DeadStateLoops(t *testing.T) {
	s := compile[Offset](t, "abc")

	var st State
	s.Initialize(&st)
	st = s.Run(st, []byte("abx"))
	if !s.Dead(st) {
		t.Fatal("state after \"abx\" should be dead")
	}
	if s.Final(st) {
		t.Error("dead state must not be final")
	}
	for c := 0; c < maxChar; c++ {
		next := st
		s.Step(&next, byte(c))
		if next != st {
			t.Fatalf("dead state moved on byte %#x", c)
		}
	}
}

func TestScanner_FinalListInvariant(t *testing.T) {
	// Single-regexp build: a state is final iff its final list begins
	// with regexp ID 0.
	s := compile[Offset](t, "x+y?")
	for i := uint64(0); i < uint64(s.Size()); i++ {
		st := s.IndexToState(i)
		first := s.finalAt(s.finalIndexAt(i))
		if s.Final(st) != (first == 0) {
			t.Errorf("state %d: Final=%v but list starts with %#x", i, s.Final(st), first)
		}
	}
}

func TestScanner_ExitMaskInvariant(t *testing.T) {
	patterns := []string{"a", ".*[Aa]", "abc", "[A-Z]+", ".*(foo|bar)", "x*y*z*"}
	for _, pattern := range patterns {
		s := compile[Offset](t, pattern)
		for i := uint64(0); i < uint64(s.Size()); i++ {
			st := s.IndexToState(i)
			m0, m1 := s.mask(st, 0), s.mask(st, 1)
			switch {
			case m0 == maskNoShortcut || m0 == maskNoExit:
				if m1 != m0 {
					t.Errorf("%q state %d: sentinel %#x not duplicated (%#x)", pattern, i, m0, m1)
				}
			default:
				if !isBroadcast(m0) {
					t.Errorf("%q state %d: mask0 %#x is not a broadcast", pattern, i, m0)
				}
				if m1 != m0 && !isBroadcast(m1) {
					t.Errorf("%q state %d: mask1 %#x is not a broadcast", pattern, i, m1)
				}
			}
		}
	}
}

func isBroadcast(m uint64) bool {
	return m == broadcast(byte(m))
}

func TestScanner_ShortcutMasksForDotStar(t *testing.T) {
	// (?s) lets '.' match '\n' too, so the start state leaves itself only
	// on 'A' and 'a'. Without it '\n' is a third exit byte and the state
	// gets no shortcut.
	s := compile[Offset](t, "(?s).*[Aa]")

	var st State
	s.Initialize(&st)
	m0, m1 := s.mask(st, 0), s.mask(st, 1)
	if m0 != broadcast('A') || m1 != broadcast('a') {
		t.Errorf("start state masks = %#x, %#x; want broadcasts of 'A' and 'a'", m0, m1)
	}
}

func TestScanner_NoExitMaskOnDeadState(t *testing.T) {
	s := compile[Offset](t, "abc")
	var st State
	s.Initialize(&st)
	st = s.Run(st, []byte("zzz"))
	if !s.Dead(st) {
		t.Fatal("expected dead state")
	}
	if got := s.mask(st, 0); got != maskNoExit {
		t.Errorf("dead state mask0 = %#x, want noExit", got)
	}
}

func TestScanner_MaskVecMatchesScalar(t *testing.T) {
	s := compile[Offset](t, ".*[Aa]")
	for i := uint64(0); i < uint64(s.Size()); i++ {
		st := s.IndexToState(i)
		for k := 0; k < exitMaskCount; k++ {
			a, b := s.maskVec(st, k)
			if want := s.mask(st, k); a != want || b != want {
				t.Errorf("state %d mask %d: vec (%#x,%#x) != scalar %#x", i, k, a, b, want)
			}
		}
	}
}

func TestScanner_EmptyScanner(t *testing.T) {
	var s Scanner[Offset]
	if !s.Empty() || s.Size() != 0 {
		t.Fatal("zero scanner should be empty")
	}
	var st State
	s.Initialize(&st)
	if got := s.Run(st, []byte("anything")); got != st {
		t.Error("Run on empty scanner should be a no-op")
	}
}

func TestScanner_Swap(t *testing.T) {
	a := compile[Offset](t, "a")
	b := compile[Offset](t, "bb")

	sa, sb := a.Size(), b.Size()
	a.Swap(b)
	if a.Size() != sb || b.Size() != sa {
		t.Error("Swap did not exchange contents")
	}
	if !matches(a, "bb") || !matches(b, "a") {
		t.Error("Swap broke matching")
	}
}

func TestScanner_Clone(t *testing.T) {
	s := compile[Offset](t, "ab*")
	c, err := s.Clone()
	if err != nil {
		t.Fatal(err)
	}
	for _, in := range []string{"a", "ab", "abbb", "b", ""} {
		if matches(s, in) != matches(c, in) {
			t.Errorf("clone disagrees on %q", in)
		}
	}
}
