package scenario

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FixtureStore reads fixture files from a folder and caches their content
// for the rest of the run.
type FixtureStore struct {
	Dir string

	mu    sync.Mutex
	cache map[string][]byte
}

func NewFixtureStore(dir string) *FixtureStore {
	return &FixtureStore{Dir: dir, cache: make(map[string][]byte)}
}

// safePath joins name onto base and rejects results outside base.
func safePath(base, name string) (string, error) {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("invalid fixtures folder: %w", err)
	}
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("fixture %q escapes %s", name, base)
	}
	resolved := filepath.Clean(filepath.Join(absBase, filepath.FromSlash(name)))
	if !strings.HasPrefix(resolved, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("fixture %q escapes %s", name, base)
	}
	return resolved, nil
}

// Load returns the whole content of the named fixture.
func (f *FixtureStore) Load(name string) ([]byte, error) {
	p, err := safePath(f.Dir, name)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if data, ok := f.cache[p]; ok {
		return data, nil
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("fixture %s: %w", name, err)
	}
	f.cache[p] = data
	return data, nil
}
