package scenario

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Screenshots writes PNGs under Dir/<spec file>/ using
// "<suite> -- <scenario>[ (n)][ (failed)].png" names. The spec file is
// taken relative to Root, the fixed leading directory of the spec pattern,
// so equally named files in different directories keep separate folders.
type Screenshots struct {
	Dir  string
	Root string
}

// SpecRoot is the leading directory of a spec pattern that holds no
// wildcards.
func SpecRoot(pattern string) string {
	return filepath.FromSlash(staticPrefix(filepath.ToSlash(filepath.Clean(pattern))))
}

var unsafeNameChars = strings.NewReplacer(
	"/", "", "\\", "", ":", "", "*", "", "?", "",
	"\"", "", "<", "", ">", "", "|", "",
)

func sanitizeName(s string) string {
	return strings.TrimSpace(unsafeNameChars.Replace(s))
}

func (s *Screenshots) path(specFile, suite, scenario, suffix string) string {
	name := sanitizeName(suite) + " -- " + sanitizeName(scenario)
	if suffix != "" {
		name += " " + suffix
	}
	return filepath.Join(s.folder(specFile), name+".png")
}

func (s *Screenshots) folder(specFile string) string {
	rel := filepath.Clean(specFile)
	if s.Root != "" {
		r, err := filepath.Rel(s.Root, rel)
		if err == nil && r != ".." && !strings.HasPrefix(r, ".."+string(filepath.Separator)) {
			rel = r
		}
	}
	rel = strings.TrimPrefix(rel, filepath.VolumeName(rel))

	segs := []string{s.Dir}
	for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
		if seg == "" || seg == "." || seg == ".." {
			continue
		}
		segs = append(segs, seg)
	}
	if len(segs) == 1 {
		segs = append(segs, "unnamed")
	}
	return filepath.Join(segs...)
}

// Save writes data and returns the file path.
func (s *Screenshots) Save(specFile, suite, scenario, suffix string, data []byte) (string, error) {
	p := s.path(specFile, suite, scenario, suffix)
	if err := os.MkdirAll(filepath.Dir(p), 0750); err != nil {
		return "", fmt.Errorf("create screenshot dir: %w", err)
	}
	if err := os.WriteFile(p, data, 0600); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}
	return p, nil
}

// Reset removes screenshots left by a previous run of specFile.
func (s *Screenshots) Reset(specFile string) error {
	return os.RemoveAll(s.folder(specFile))
}
