package vboard

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var sketchExts = []string{".ino", ".pde"}

// Sketch is firmware source plus, once compiled, the runnable artifact.
// A Sketch is compiled at most once.
type Sketch struct {
	id     uuid.UUID
	source string
	cfg    SketchConfig

	mu       sync.RWMutex
	compiled bool
	artifact string
}

// NewSketch returns an uncompiled sketch. source is a .ino or .pde file, or
// a directory holding one; a directory prefers the file named after it.
func NewSketch(source string, cfg SketchConfig) (*Sketch, error) {
	path, err := resolveSketch(source)
	if err != nil {
		return nil, err
	}
	return &Sketch{
		id:     uuid.New(),
		source: path,
		cfg:    cfg,
	}, nil
}

func resolveSketch(source string) (string, error) {
	abs, err := filepath.Abs(source)
	if err != nil {
		return "", errors.Wrapf(ErrInvalidPath, "%s: %v", source, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", errors.Wrapf(ErrInvalidPath, "%s: %v", source, err)
	}
	if !info.IsDir() {
		if !isSketchFile(abs) {
			return "", errors.Wrap(ErrInvalidPath, source)
		}
		return abs, nil
	}

	for _, ext := range sketchExts {
		named := filepath.Join(abs, filepath.Base(abs)+ext)
		if fi, err := os.Stat(named); err == nil && !fi.IsDir() {
			return named, nil
		}
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return "", errors.Wrapf(ErrInvalidPath, "%s: %v", source, err)
	}
	var found []string
	for _, e := range entries {
		if !e.IsDir() && isSketchFile(e.Name()) {
			found = append(found, e.Name())
		}
	}
	if len(found) == 0 {
		return "", errors.Wrapf(ErrInvalidPath, "%s holds no sketch", source)
	}
	sort.Strings(found)
	return filepath.Join(abs, found[0]), nil
}

func isSketchFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range sketchExts {
		if ext == e {
			return true
		}
	}
	return false
}

// Source returns the absolute path of the sketch file.
func (s *Sketch) Source() string {
	return s.source
}

func (s *Sketch) Config() SketchConfig {
	return s.cfg
}

// ID identifies the sketch and names its build directory.
func (s *Sketch) ID() uuid.UUID {
	return s.id
}

func (s *Sketch) IsCompiled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.compiled
}

// Artifact returns the compiled executable, or "" before compilation.
func (s *Sketch) Artifact() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.artifact
}

func (s *Sketch) markCompiled(artifact string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.compiled = true
	s.artifact = artifact
}
