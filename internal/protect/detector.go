package protect

import (
	"path"
	"path/filepath"
	"strings"
)

// Detector checks project-relative paths against protected patterns,
// file names, and extensions.
type Detector struct {
	patterns  []string
	names     map[string]bool
	fileTypes map[string]bool
}

// New creates a detector with the default rules plus extra glob patterns.
func New(extra ...string) *Detector {
	d := &Detector{
		patterns:  append(append([]string{}, DefaultPatterns...), extra...),
		names:     make(map[string]bool, len(DefaultFileNames)),
		fileTypes: make(map[string]bool, len(DefaultFileTypes)),
	}
	for _, n := range DefaultFileNames {
		d.names[n] = true
	}
	for _, ext := range DefaultFileTypes {
		d.fileTypes[ext] = true
	}
	return d
}

// Match reports whether rel is protected and why.
func (d *Detector) Match(rel string) (string, bool) {
	p := strings.TrimPrefix(filepath.ToSlash(rel), "./")

	for _, pattern := range d.patterns {
		if matchGlobPattern(p, pattern) {
			return "matches protected pattern " + pattern, true
		}
	}
	base := path.Base(p)
	if d.names[base] {
		return "protected file " + base, true
	}
	if ext := strings.ToLower(path.Ext(p)); ext != "" && d.fileTypes[ext] {
		return "protected file type " + ext, true
	}
	return "", false
}
