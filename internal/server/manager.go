package server

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"GoScan/internal/cache"
	"GoScan/internal/fsm"
	"GoScan/internal/registry"
	"GoScan/internal/scanner"
	"GoScan/internal/storage"
)

var (
	ErrScannerNotFound = errors.New("scanner not found")
	ErrScannerExists   = errors.New("scanner already exists")
	ErrBadScannerName  = errors.New("invalid scanner name")
)

var nameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// PatternSpec is one named pattern in a compile request.
type PatternSpec struct {
	Name    string `json:"name"`
	Pattern string `json:"pattern"`
}

// ScannerInstance holds the runtime state of one compiled scanner: the
// mmap-adopted image, its manifest, and a registry for name lookups.
type ScannerInstance struct {
	Name     string
	Manifest *registry.Manifest
	Scanner  *scanner.Scanner[scanner.Offset]
	Registry *registry.Registry

	mapping *storage.Mapping // nil when the image is heap-backed
}

// MatchResult is the outcome of running input through a scanner.
type MatchResult struct {
	Final   bool     `json:"final"`
	Dead    bool     `json:"dead"`
	Regexps []uint32 `json:"regexps"`
	Names   []string `json:"names,omitempty"`
}

// Manager owns the scanner files under a data directory and their loaded
// instances. Compiled images are persisted atomically and adopted back via
// mmap on startup.
type Manager struct {
	dataDir string
	cache   *cache.Cache // nil disables the compile cache
	logger  *slog.Logger

	mu       sync.RWMutex
	scanners map[string]*ScannerInstance
}

// NewManager loads all scanner files under dataDir. cachePath may be empty
// to run without a compile cache.
func NewManager(dataDir, cachePath string, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dataDir, storage.DirPerm); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dataDir, err)
	}

	m := &Manager{
		dataDir:  dataDir,
		logger:   logger,
		scanners: make(map[string]*ScannerInstance),
	}
	if cachePath != "" {
		c, err := cache.Open(cachePath)
		if err != nil {
			return nil, err
		}
		m.cache = c
	}

	if err := m.loadAll(); err != nil {
		m.CloseAll()
		return nil, err
	}
	return m, nil
}

func (m *Manager) manifestPath(name string) string {
	return filepath.Join(m.dataDir, name+".manifest.json")
}

func (m *Manager) imagePath(name string) string {
	return filepath.Join(m.dataDir, name+".scanner")
}

// loadAll adopts every manifest/image pair found in the data directory.
func (m *Manager) loadAll() error {
	files, err := storage.ListFiles(m.dataDir)
	if err != nil {
		return err
	}
	for _, f := range files {
		name, ok := strings.CutSuffix(f, ".manifest.json")
		if !ok {
			continue
		}
		inst, err := m.loadInstance(name)
		if err != nil {
			m.logger.Error("skipping scanner", "name", name, "error", err)
			continue
		}
		m.scanners[name] = inst
		m.logger.Info("loaded scanner",
			"name", name,
			"states", inst.Scanner.Size(),
			"regexps", inst.Scanner.RegexpsCount(),
		)
	}
	return nil
}

// loadInstance verifies and mmap-adopts one scanner from disk.
func (m *Manager) loadInstance(name string) (*ScannerInstance, error) {
	data, err := os.ReadFile(m.manifestPath(name))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	manifest, err := registry.UnmarshalManifest(data)
	if err != nil {
		return nil, err
	}
	if err := storage.VerifyFileChecksum(m.imagePath(name), manifest.ImageChecksum); err != nil {
		return nil, err
	}

	mapping, err := storage.MmapFile(m.imagePath(name))
	if err != nil {
		return nil, err
	}
	s, _, err := scanner.Mmap(mapping.Data)
	if err != nil {
		mapping.Close()
		return nil, fmt.Errorf("adopt image: %w", err)
	}

	return &ScannerInstance{
		Name:     name,
		Manifest: manifest,
		Scanner:  s,
		Registry: registryFrom(manifest),
		mapping:  mapping,
	}, nil
}

// Compile builds (or fetches from cache) a scanner for the given patterns,
// persists it, and registers it under name.
func (m *Manager) Compile(name string, specs []PatternSpec) (*ScannerInstance, error) {
	if !nameRe.MatchString(name) {
		return nil, fmt.Errorf("%w: %q", ErrBadScannerName, name)
	}
	if len(specs) == 0 {
		return nil, errors.New("no patterns given")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.scanners[name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrScannerExists, name)
	}

	patterns := make([]string, len(specs))
	for i, spec := range specs {
		patterns[i] = spec.Pattern
	}

	image, err := m.compileImage(patterns)
	if err != nil {
		return nil, err
	}

	manifest := &registry.Manifest{
		Name:          name,
		CreatedAt:     time.Now().UTC(),
		Relocation:    "offset",
		ImageChecksum: storage.ComputeChecksum(image),
	}
	for i, spec := range specs {
		entryName := spec.Name
		if entryName == "" {
			entryName = fmt.Sprintf("pattern-%d", i)
		}
		manifest.Patterns = append(manifest.Patterns, registry.PatternEntry{
			Name:     entryName,
			Pattern:  spec.Pattern,
			RegexpID: uint32(i),
		})
	}
	manifestData, err := registry.MarshalManifest(manifest)
	if err != nil {
		return nil, err
	}

	if err := storage.AtomicWriteFile(m.imagePath(name), image); err != nil {
		return nil, err
	}
	if err := storage.AtomicWriteFile(m.manifestPath(name), manifestData); err != nil {
		os.Remove(m.imagePath(name))
		return nil, err
	}

	inst, err := m.loadInstance(name)
	if err != nil {
		return nil, err
	}
	m.scanners[name] = inst
	m.logger.Info("compiled scanner", "name", name, "patterns", len(specs), "bytes", len(image))
	return inst, nil
}

// compileImage produces the serialized Offset image for a pattern set,
// consulting the cache when one is configured.
func (m *Manager) compileImage(patterns []string) ([]byte, error) {
	key := registry.CompileKey(patterns, "offset")
	if m.cache != nil {
		if image, sig, ok, err := m.cache.Get(key); err != nil {
			m.logger.Warn("cache get failed", "error", err)
		} else if ok && sig == scanner.SignatureOffset {
			m.logger.Debug("compile cache hit", "key", key)
			return image, nil
		}
	}

	f, err := fsm.CompileSet(patterns)
	if err != nil {
		return nil, err
	}
	s, err := scanner.New[scanner.Offset](f)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := s.Save(&buf); err != nil {
		return nil, err
	}

	if m.cache != nil {
		if err := m.cache.Put(key, scanner.SignatureOffset, buf.Bytes()); err != nil {
			m.logger.Warn("cache put failed", "error", err)
		}
	}
	return buf.Bytes(), nil
}

// Get returns the instance registered under name.
func (m *Manager) Get(name string) (*ScannerInstance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.scanners[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrScannerNotFound, name)
	}
	return inst, nil
}

// List returns the registered scanner names, unsorted.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.scanners))
	for name := range m.scanners {
		names = append(names, name)
	}
	return names
}

// Delete unregisters a scanner and removes its files.
func (m *Manager) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.scanners[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrScannerNotFound, name)
	}
	delete(m.scanners, name)
	if inst.mapping != nil {
		inst.mapping.Close()
	}
	if err := os.Remove(m.imagePath(name)); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Remove(m.manifestPath(name)); err != nil && !os.IsNotExist(err) {
		return err
	}
	m.logger.Info("deleted scanner", "name", name)
	return nil
}

// Match runs input through the named scanner.
func (m *Manager) Match(name string, input []byte) (MatchResult, error) {
	inst, err := m.Get(name)
	if err != nil {
		return MatchResult{}, err
	}
	return inst.Match(input), nil
}

// Match runs input through this instance's scanner and resolves the
// accepted regexp IDs back to pattern names.
func (inst *ScannerInstance) Match(input []byte) MatchResult {
	s := inst.Scanner
	var st scanner.State
	s.Initialize(&st)
	st = s.Run(st, input)

	res := MatchResult{Final: s.Final(st), Dead: s.Dead(st)}
	if res.Final {
		res.Regexps = s.AcceptedRegexps(st)
		for _, id := range res.Regexps {
			for _, e := range inst.Manifest.Patterns {
				if e.RegexpID == id {
					res.Names = append(res.Names, e.Name)
				}
			}
		}
	}
	return res
}

// CloseAll unmaps every instance and closes the cache. The manager is
// unusable afterwards.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inst := range m.scanners {
		if inst.mapping != nil {
			inst.mapping.Close()
		}
	}
	m.scanners = make(map[string]*ScannerInstance)
	if m.cache != nil {
		m.cache.Close()
	}
}

func registryFrom(manifest *registry.Manifest) *registry.Registry {
	r := registry.NewRegistry()
	for _, e := range manifest.Patterns {
		if err := r.Add(e); err != nil {
			// Duplicate names in a manifest keep the first entry.
			continue
		}
	}
	return r
}
