package benchmark

import (
	"testing"

	"GoScan/internal/fsm"
	"GoScan/internal/scanner"
)

func BenchmarkCompile_Simple(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := fsm.Compile("[a-z]+@[a-z]+"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCompile_Alternation(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := fsm.Compile("GET|PUT|POST|DELETE|PATCH|OPTIONS"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkBuild_Scanner(b *testing.B) {
	f, err := fsm.Compile(".*(foo|bar|baz).*")
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := scanner.New[scanner.Offset](f); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkGlue_Pair(b *testing.B) {
	fa, err := fsm.Compile("[0-9]+")
	if err != nil {
		b.Fatal(err)
	}
	fb, err := fsm.Compile("[a-f]+")
	if err != nil {
		b.Fatal(err)
	}
	sa, err := scanner.New[scanner.Offset](fa)
	if err != nil {
		b.Fatal(err)
	}
	sb, err := scanner.New[scanner.Offset](fb)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := scanner.Glue(sa, sb, 0); err != nil {
			b.Fatal(err)
		}
	}
}
