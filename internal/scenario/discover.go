package scenario

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// Discover returns the files matching pattern, sorted. Besides the usual
// per-segment wildcards, a "**" segment matches any number of directories.
func Discover(pattern string) ([]string, error) {
	pattern = filepath.ToSlash(filepath.Clean(pattern))
	if _, err := path.Match(strings.ReplaceAll(pattern, "**", "*"), ""); err != nil {
		return nil, fmt.Errorf("spec pattern %q: %w", pattern, err)
	}

	root := staticPrefix(pattern)
	patSegs := strings.Split(pattern, "/")

	var files []string
	err := filepath.WalkDir(filepath.FromSlash(root), func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == filepath.FromSlash(root) {
				return err
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if matchSegments(patSegs, strings.Split(filepath.ToSlash(p), "/")) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", pattern, err)
	}
	sort.Strings(files)
	return files, nil
}

// staticPrefix is the leading directory of pattern that holds no wildcards.
func staticPrefix(pattern string) string {
	segs := strings.Split(pattern, "/")
	var fixed []string
	for _, s := range segs[:len(segs)-1] {
		if strings.ContainsAny(s, "*?[") {
			break
		}
		fixed = append(fixed, s)
	}
	if len(fixed) == 0 {
		if strings.HasPrefix(pattern, "/") {
			return "/"
		}
		return "."
	}
	if fixed[0] == "" {
		return "/" + strings.Join(fixed[1:], "/")
	}
	return strings.Join(fixed, "/")
}

func matchSegments(pat, name []string) bool {
	for len(pat) > 0 {
		if pat[0] == "**" {
			rest := pat[1:]
			for i := 0; i <= len(name); i++ {
				if matchSegments(rest, name[i:]) {
					return true
				}
			}
			return false
		}
		if len(name) == 0 {
			return false
		}
		if ok, _ := path.Match(pat[0], name[0]); !ok {
			return false
		}
		pat, name = pat[1:], name[1:]
	}
	return len(name) == 0
}

// LoadAll discovers, parses and validates every suite matching pattern.
func LoadAll(pattern string, fixtures *FixtureStore) ([]*Suite, error) {
	files, err := Discover(pattern)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no spec files found matching %s", pattern)
	}
	suites := make([]*Suite, 0, len(files))
	for _, f := range files {
		s, err := Load(f)
		if err != nil {
			return nil, err
		}
		if err := s.Validate(fixtures); err != nil {
			return nil, fmt.Errorf("suite %s: %w", f, err)
		}
		suites = append(suites, s)
	}
	return suites, nil
}
