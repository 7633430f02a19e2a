// Command goscan compiles pattern sets into scanner files and matches
// inputs against them.
//
// Usage:
//
//	goscan compile -patterns patterns.json -out set.scanner [-reloc offset|absolute] [-cache cache.db]
//	goscan match -scanner set.scanner [-mmap] [input-file]
//	goscan info -scanner set.scanner [-prefix name/]
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/sugawarayuuta/sonnet"

	"GoScan/internal/cache"
	"GoScan/internal/fsm"
	"GoScan/internal/registry"
	"GoScan/internal/scanner"
	"GoScan/internal/storage"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "compile":
		err = runCompile(os.Args[2:])
	case "match":
		err = runMatch(os.Args[2:])
	case "info":
		err = runInfo(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "goscan %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: goscan compile|match|info [flags]")
}

// patternsFile is the JSON input of the compile subcommand.
type patternsFile struct {
	Name     string `json:"name"`
	Patterns []struct {
		Name    string `json:"name"`
		Pattern string `json:"pattern"`
	} `json:"patterns"`
}

func runCompile(args []string) error {
	fs := flag.NewFlagSet("compile", flag.ExitOnError)
	patternsPath := fs.String("patterns", "", "JSON file listing the patterns")
	outPath := fs.String("out", "", "output scanner file")
	reloc := fs.String("reloc", "offset", "relocation strategy: offset or absolute")
	cachePath := fs.String("cache", "", "compile cache database (optional)")
	fs.Parse(args)

	if *patternsPath == "" || *outPath == "" {
		return fmt.Errorf("-patterns and -out are required")
	}

	data, err := os.ReadFile(*patternsPath)
	if err != nil {
		return err
	}
	var pf patternsFile
	if err := sonnet.Unmarshal(data, &pf); err != nil {
		return fmt.Errorf("parse %s: %w", *patternsPath, err)
	}
	if len(pf.Patterns) == 0 {
		return fmt.Errorf("%s lists no patterns", *patternsPath)
	}
	patterns := make([]string, len(pf.Patterns))
	for i, p := range pf.Patterns {
		patterns[i] = p.Pattern
	}

	image, err := compileImage(patterns, *reloc, *cachePath)
	if err != nil {
		return err
	}

	if err := storage.AtomicWriteFile(*outPath, image); err != nil {
		return err
	}

	manifest := &registry.Manifest{
		Name:          pf.Name,
		Relocation:    *reloc,
		ImageChecksum: storage.ComputeChecksum(image),
	}
	for i, p := range pf.Patterns {
		manifest.Patterns = append(manifest.Patterns, registry.PatternEntry{
			Name: p.Name, Pattern: p.Pattern, RegexpID: uint32(i),
		})
	}
	manifestData, err := registry.MarshalManifest(manifest)
	if err != nil {
		return err
	}
	if err := storage.AtomicWriteFile(*outPath+".manifest.json", manifestData); err != nil {
		return err
	}

	slog.Info("compiled", "patterns", len(patterns), "out", *outPath, "bytes", len(image))
	return nil
}

func compileImage(patterns []string, reloc, cachePath string) ([]byte, error) {
	var c *cache.Cache
	if cachePath != "" {
		var err error
		if c, err = cache.Open(cachePath); err != nil {
			return nil, err
		}
		defer c.Close()
	}

	key := registry.CompileKey(patterns, reloc)
	wantSig := scanner.SignatureOffset
	if reloc == "absolute" {
		wantSig = scanner.SignatureAbsolute
	}
	if c != nil {
		if image, sig, ok, err := c.Get(key); err == nil && ok && sig == wantSig {
			slog.Debug("compile cache hit", "key", key)
			return image, nil
		}
	}

	f, err := fsm.CompileSet(patterns)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	switch reloc {
	case "offset":
		s, err := scanner.New[scanner.Offset](f)
		if err != nil {
			return nil, err
		}
		err = s.Save(&buf)
		if err != nil {
			return nil, err
		}
	case "absolute":
		s, err := scanner.New[scanner.Absolute](f)
		if err != nil {
			return nil, err
		}
		err = s.Save(&buf)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown relocation %q", reloc)
	}

	if c != nil {
		if err := c.Put(key, wantSig, buf.Bytes()); err != nil {
			slog.Warn("cache put failed", "error", err)
		}
	}
	return buf.Bytes(), nil
}

func runMatch(args []string) error {
	fs := flag.NewFlagSet("match", flag.ExitOnError)
	scannerPath := fs.String("scanner", "", "scanner file")
	useMmap := fs.Bool("mmap", false, "adopt the scanner file via mmap instead of loading it")
	fs.Parse(args)

	if *scannerPath == "" {
		return fmt.Errorf("-scanner is required")
	}

	input, err := readInput(fs.Args())
	if err != nil {
		return err
	}

	var out map[string]interface{}
	if *useMmap {
		mapping, err := storage.MmapFile(*scannerPath)
		if err != nil {
			return err
		}
		defer mapping.Close()
		s, _, err := scanner.Mmap(mapping.Data)
		if err != nil {
			return err
		}
		out = matchInfo(s, input)
	} else {
		data, err := os.ReadFile(*scannerPath)
		if err != nil {
			return err
		}
		if s, err := scanner.Load[scanner.Offset](bytes.NewReader(data)); err == nil {
			out = matchInfo(s, input)
		} else if s, err := scanner.Load[scanner.Absolute](bytes.NewReader(data)); err == nil {
			out = matchInfo(s, input)
		} else {
			return err
		}
	}

	data, err := sonnet.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	if final, _ := out["final"].(bool); !final {
		os.Exit(1)
	}
	return nil
}

// matchInfo runs input through s and reports the outcome.
func matchInfo[R scanner.Relocation](s *scanner.Scanner[R], input []byte) map[string]interface{} {
	var st scanner.State
	s.Initialize(&st)
	st = s.Run(st, input)

	out := map[string]interface{}{
		"final": s.Final(st),
		"dead":  s.Dead(st),
	}
	if s.Final(st) {
		out["regexps"] = s.AcceptedRegexps(st)
	}
	return out
}

func runInfo(args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	scannerPath := fs.String("scanner", "", "scanner file")
	prefix := fs.String("prefix", "", "only list patterns whose name has this prefix")
	fs.Parse(args)

	if *scannerPath == "" {
		return fmt.Errorf("-scanner is required")
	}

	raw, err := os.ReadFile(*scannerPath)
	if err != nil {
		return err
	}
	var out map[string]interface{}
	if s, err := scanner.Load[scanner.Offset](bytes.NewReader(raw)); err == nil {
		out = scannerStats(s)
	} else if s, err := scanner.Load[scanner.Absolute](bytes.NewReader(raw)); err == nil {
		out = scannerStats(s)
	} else {
		return err
	}

	// The manifest is optional; without it there are no pattern names.
	if data, err := os.ReadFile(*scannerPath + ".manifest.json"); err == nil {
		manifest, err := registry.UnmarshalManifest(data)
		if err != nil {
			return err
		}
		reg := registry.NewRegistry()
		for _, e := range manifest.Patterns {
			reg.Add(e)
		}
		out["name"] = manifest.Name
		out["patterns"] = reg.ListPrefix(*prefix)
	}

	data, err := sonnet.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func scannerStats[R scanner.Relocation](s *scanner.Scanner[R]) map[string]interface{} {
	return map[string]interface{}{
		"states":    s.Size(),
		"letters":   s.LettersCount(),
		"regexps":   s.RegexpsCount(),
		"signature": s.Signature(),
		"buf_bytes": s.BufSize(),
	}
}

func readInput(args []string) ([]byte, error) {
	if len(args) == 0 {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(args[0])
}
