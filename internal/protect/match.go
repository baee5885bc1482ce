package protect

import (
	"path"
	"strings"
)

// matchGlobPattern matches a slash-separated path against a glob pattern.
// A "**" segment matches zero or more path segments; other segments use
// path.Match syntax.
func matchGlobPattern(p, pattern string) bool {
	return matchSegments(strings.Split(p, "/"), strings.Split(pattern, "/"))
}

func matchSegments(segs, pats []string) bool {
	for len(pats) > 0 {
		if pats[0] == "**" {
			rest := pats[1:]
			if len(rest) == 0 {
				return true
			}
			for i := range len(segs) + 1 {
				if matchSegments(segs[i:], rest) {
					return true
				}
			}
			return false
		}
		if len(segs) == 0 {
			return false
		}
		if ok, err := path.Match(pats[0], segs[0]); err != nil || !ok {
			return false
		}
		segs, pats = segs[1:], pats[1:]
	}
	return len(segs) == 0
}
