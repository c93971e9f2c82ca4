// Package ignore implements gitignore-style exclusion over a vfs.FileSystem,
// so both the native and sandbox backends share one policy.
package ignore

import (
	"context"
	"errors"
	"strings"
	"sync"

	"genport/internal/vfs"

	"github.com/bmatcuk/doublestar/v4"
)

const maxCacheSize = 1000

// pattern is one parsed ignore rule.
type pattern struct {
	glob     string
	negation bool // starts with !
	dirOnly  bool // ends with /
	anchored bool // contains a non-trailing /
	baseDir  string
}

// Policy parses ignore files and answers whether a path is excluded.
type Policy struct {
	fs      vfs.FileSystem
	workDir string

	mu       sync.RWMutex
	patterns []pattern
	loaded   bool
	cache    map[string]bool
	order    []string
}

// NewPolicy creates a policy rooted at workDir on the given filesystem.
func NewPolicy(fs vfs.FileSystem, workDir string) *Policy {
	return &Policy{
		fs:      fs,
		workDir: workDir,
		cache:   map[string]bool{},
	}
}

// Load reads the root .gitignore plus nested ones found under workDir.
// The .git directory is always excluded.
func (p *Policy) Load(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.patterns = p.patterns[:0]
	p.cache = map[string]bool{}
	p.order = nil
	p.loaded = true

	root := p.fs.Join(p.workDir, ".gitignore")
	if err := p.loadFile(ctx, root, p.workDir); err != nil && !errors.Is(err, vfs.ErrNotFound) {
		return err
	}

	// Nested ignore files. Glob failures are not fatal.
	if nested, err := p.fs.Glob(ctx, "*/.gitignore", p.workDir); err == nil {
		for _, rel := range nested {
			full := p.fs.Join(p.workDir, rel)
			base := p.fs.Dirname(full)
			if err := p.loadFile(ctx, full, base); err != nil && !errors.Is(err, vfs.ErrNotFound) {
				continue
			}
		}
	}

	p.patterns = append(p.patterns, pattern{
		glob:    ".git",
		dirOnly: true,
		baseDir: p.workDir,
	})
	return nil
}

func (p *Policy) loadFile(ctx context.Context, path, baseDir string) error {
	content, err := p.fs.ReadFile(ctx, path)
	if err != nil {
		return err
	}
	for _, line := range strings.Split(content, "\n") {
		if pat := parseLine(line, baseDir); pat != nil {
			p.patterns = append(p.patterns, *pat)
		}
	}
	return nil
}

func parseLine(line, baseDir string) *pattern {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}

	pat := &pattern{baseDir: baseDir}
	if strings.HasPrefix(line, "!") {
		pat.negation = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		pat.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.Contains(line, "/") {
		pat.anchored = true
	}
	if strings.HasPrefix(line, "/") {
		pat.anchored = true
		line = line[1:]
	}
	pat.glob = line
	return pat
}

// AddPattern appends a rule programmatically, as if it were the last line of
// the root ignore file.
func (p *Policy) AddPattern(rule string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pat := parseLine(rule, p.workDir); pat != nil {
		p.patterns = append(p.patterns, *pat)
		p.cache = map[string]bool{}
		p.order = nil
	}
}

// IsIgnored reports whether path is excluded. isDir must reflect whether the
// path is a directory; callers usually know without a Stat.
func (p *Policy) IsIgnored(path string, isDir bool) bool {
	p.mu.RLock()
	if !p.loaded {
		p.mu.RUnlock()
		return false
	}
	key := path
	if isDir {
		key += "/"
	}
	if result, ok := p.cache[key]; ok {
		p.mu.RUnlock()
		return result
	}
	p.mu.RUnlock()

	result := p.evaluate(path, isDir)
	p.cacheResult(key, result)
	return result
}

func (p *Policy) evaluate(path string, isDir bool) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	rel := strings.TrimPrefix(p.fs.Relative(p.workDir, path), "./")
	rel = strings.ReplaceAll(rel, "\\", "/")

	// Last matching rule wins.
	ignored := false
	for _, pat := range p.patterns {
		if p.match(pat, rel, isDir) {
			ignored = !pat.negation
		}
	}
	return ignored
}

func (p *Policy) match(pat pattern, rel string, isDir bool) bool {
	if pat.dirOnly && !isDir {
		// A file under an ignored directory is still ignored.
		if !strings.Contains(rel, "/") {
			return false
		}
	}

	glob := pat.glob
	if pat.baseDir != p.workDir {
		baseRel := strings.TrimPrefix(p.fs.Relative(p.workDir, pat.baseDir), "./")
		if baseRel != "." && baseRel != "" {
			glob = baseRel + "/" + glob
		}
	}

	if pat.anchored {
		return globMatch(glob, rel) || globMatch(glob+"/**", rel)
	}
	if globMatch("**/"+glob, rel) || globMatch("**/"+glob+"/**", rel) {
		return true
	}
	// Non-anchored patterns also match the bare filename.
	base := rel
	if i := strings.LastIndex(rel, "/"); i >= 0 {
		base = rel[i+1:]
	}
	return globMatch(glob, base)
}

func (p *Policy) cacheResult(key string, result bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.cache[key]; ok {
		return
	}
	if len(p.cache) >= maxCacheSize && len(p.order) > 0 {
		delete(p.cache, p.order[0])
		p.order = p.order[1:]
	}
	p.cache[key] = result
	p.order = append(p.order, key)
}

// Invalidate clears the result cache. Called when the tree changes.
func (p *Policy) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache = map[string]bool{}
	p.order = nil
}

func globMatch(glob, path string) bool {
	matched, err := doublestar.Match(glob, path)
	return err == nil && matched
}
