package vfs

import (
	"path/filepath"
	"regexp"
	"strings"
)

// IsWithinRoot reports whether target resolves to a location inside root.
// The root itself counts as within root.
func IsWithinRoot(target, root string) bool {
	target = filepath.Clean(target)
	root = filepath.Clean(root)

	rel, err := filepath.Rel(root, target)
	if err != nil {
		// Different volumes or otherwise unrelatable paths.
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// CompileGlob converts a simplified shell pattern into an anchored regexp:
// * matches any run of characters, ? matches a single character, everything
// else is literal. Brace expansion and character classes are deliberately
// not supported.
func CompileGlob(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// GlobMatch reports whether path matches the simplified pattern.
func GlobMatch(pattern, path string) (bool, error) {
	re, err := CompileGlob(pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(path), nil
}
