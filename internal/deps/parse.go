// Package deps builds file-level reference graphs from source imports.
package deps

import (
	"path"
	"regexp"
	"sort"
	"strings"
)

var (
	staticImportRe  = regexp.MustCompile(`import\s+(?:type\s+)?[\w*$\s{},]+?\s+from\s+['"]([^'"]+)['"]`)
	sideEffectRe    = regexp.MustCompile(`(?m)^\s*import\s+['"]([^'"]+)['"]`)
	exportFromRe    = regexp.MustCompile(`export\s+(?:type\s+)?(?:\*(?:\s+as\s+[\w$]+)?|\{[^}]*\})\s+from\s+['"]([^'"]+)['"]`)
	dynamicImportRe = regexp.MustCompile(`import\s*\(\s*['"]([^'"]+)['"]\s*\)`)
	requireRe       = regexp.MustCompile(`require\s*\(\s*['"]([^'"]+)['"]\s*\)`)
	pyRelativeRe    = regexp.MustCompile(`(?m)^\s*from\s+(\.+)([\w.]*)\s+import\s`)
	cssImportRe     = regexp.MustCompile(`@import\s+(?:url\(\s*)?['"]([^'"]+)['"]`)

	declExportRe  = regexp.MustCompile(`export\s+(?:default\s+)?(?:declare\s+)?(?:async\s+)?(?:const|let|var|function\*?|class|interface|type|enum)\s+([\w$]+)`)
	namedExportRe = regexp.MustCompile(`export\s+(?:type\s+)?\{([^}]*)\}`)
	defaultExpRe  = regexp.MustCompile(`export\s+default\s`)
)

// Language returns the reference syntax family for a file, or "" when the
// file's references are not parsed.
func Language(file string) string {
	switch strings.ToLower(path.Ext(file)) {
	case ".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs":
		return "js"
	case ".py":
		return "python"
	case ".css", ".scss", ".less":
		return "css"
	default:
		return ""
	}
}

// ParseImports returns the raw import specifiers found in content, in
// source order without duplicates.
func ParseImports(file, content string) []string {
	var found []string
	seen := make(map[string]bool)
	add := func(spec string) {
		if spec != "" && !seen[spec] {
			seen[spec] = true
			found = append(found, spec)
		}
	}

	switch Language(file) {
	case "js":
		for _, spec := range matchesInOrder(content, staticImportRe, sideEffectRe, exportFromRe, dynamicImportRe, requireRe) {
			add(spec)
		}
	case "python":
		for _, m := range pyRelativeRe.FindAllStringSubmatch(content, -1) {
			add(pythonSpec(m[1], m[2]))
		}
	case "css":
		for _, m := range cssImportRe.FindAllStringSubmatch(content, -1) {
			add(m[1])
		}
	}
	return found
}

// matchesInOrder returns the first capture group of every match of every
// pattern, ordered by position in content.
func matchesInOrder(content string, patterns ...*regexp.Regexp) []string {
	type hit struct {
		pos  int
		spec string
	}
	var hits []hit
	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatchIndex(content, -1) {
			hits = append(hits, hit{pos: m[2], spec: content[m[2]:m[3]]})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.spec
	}
	return out
}

// pythonSpec converts a relative Python module reference to a path-like
// specifier: ".utils" becomes "./utils", "..pkg.mod" becomes "../pkg/mod".
func pythonSpec(dots, module string) string {
	if module == "" {
		return ""
	}
	prefix := "./"
	if len(dots) > 1 {
		prefix = strings.Repeat("../", len(dots)-1)
	}
	return prefix + strings.ReplaceAll(module, ".", "/")
}

// ParseExports returns the names exported by a JavaScript or TypeScript
// file, in source order without duplicates.
func ParseExports(file, content string) []string {
	if Language(file) != "js" {
		return nil
	}

	var names []string
	seen := make(map[string]bool)
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	for _, m := range declExportRe.FindAllStringSubmatch(content, -1) {
		add(m[1])
	}
	for _, m := range namedExportRe.FindAllStringSubmatch(content, -1) {
		for _, part := range strings.Split(m[1], ",") {
			part = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(part), "type "))
			if i := strings.Index(part, " as "); i >= 0 {
				part = strings.TrimSpace(part[i+4:])
			}
			add(part)
		}
	}
	if defaultExpRe.MatchString(content) {
		add("default")
	}
	return names
}

// IsRelative reports whether an import specifier refers to a project file.
func IsRelative(spec string) bool {
	return strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../") || spec == "." || spec == ".."
}

// probeSuffixes are tried in order when resolving a relative specifier.
var probeSuffixes = []string{
	"",
	".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs",
	".py", ".css", ".scss",
	"/index.ts", "/index.tsx", "/index.js", "/index.jsx",
	"/__init__.py",
}

// Resolve maps a relative specifier imported from file to a slash-separated
// project path accepted by exists. It returns false when no candidate is
// accepted or spec is not relative.
func Resolve(file, spec string, exists func(string) bool) (string, bool) {
	if !IsRelative(spec) {
		return "", false
	}
	base := path.Join(path.Dir(file), spec)
	for _, suffix := range probeSuffixes {
		candidate := base + suffix
		if exists(candidate) {
			return candidate, true
		}
	}
	return "", false
}
