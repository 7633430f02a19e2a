// Package testutil provides helpers shared by cross-package tests.
package testutil

import (
	"testing"

	"GoScan/internal/fsm"
	"GoScan/internal/scanner"
)

// MustScanner compiles patterns into an Offset scanner or fails the test.
func MustScanner(t *testing.T, patterns ...string) *scanner.Scanner[scanner.Offset] {
	t.Helper()
	f, err := fsm.CompileSet(patterns)
	if err != nil {
		t.Fatalf("compile %v: %v", patterns, err)
	}
	s, err := scanner.New[scanner.Offset](f)
	if err != nil {
		t.Fatalf("build scanner for %v: %v", patterns, err)
	}
	return s
}

// Accepted runs input from the initial state and returns the accepted
// regexp IDs, or nil when the end state is not final.
func Accepted[R scanner.Relocation](s *scanner.Scanner[R], input string) []uint32 {
	var st scanner.State
	s.Initialize(&st)
	st = s.Run(st, []byte(input))
	if !s.Final(st) {
		return nil
	}
	return s.AcceptedRegexps(st)
}

// SecretPatterns is a realistic multi-pattern set used by integration tests.
var SecretPatterns = []string{
	"tok_[a-z0-9]{8}",
	"AKIA[0-9A-Z]{4}",
	"-----BEGIN [A-Z ]+-----",
}
