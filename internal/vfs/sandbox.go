package vfs

import (
	"context"
	"errors"
	"path"
	"regexp"
	"strings"
	"sync"
	"time"

	"genport/internal/logging"
)

// SandboxFS implements FileSystem over an opaque handle Storage. All paths
// are POSIX-style and resolved against an in-memory working directory; the
// host filesystem is never touched.
//
// Resolved handles are cached per path. The cache is invalidated only when
// the exact path is removed through Unlink or Rmdir: renaming an ancestor
// directory leaves descendants' cached handles pointing at the old tree.
// Known limitation, kept for lookup performance.
type SandboxFS struct {
	store Storage

	mu    sync.Mutex
	root  DirHandle
	cwd   string
	cache map[string]any // string -> DirHandle | FileHandle
}

// NewSandboxFS creates a sandbox backend. Initialization is lazy: the store
// root is fetched on first use, or eagerly via Initialize.
func NewSandboxFS(store Storage) *SandboxFS {
	return &SandboxFS{
		store: store,
		cwd:   "/",
		cache: map[string]any{},
	}
}

// Initialize fetches the store root. Idempotent; calling it again after a
// successful init is a no-op.
func (s *SandboxFS) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initLocked(ctx)
}

func (s *SandboxFS) initLocked(ctx context.Context) error {
	if s.root != nil {
		return nil
	}
	root, err := s.store.Root(ctx)
	if err != nil {
		return err
	}
	s.root = root
	s.cache["/"] = root
	return nil
}

// normalize resolves a possibly-relative path against the sandbox cwd and
// cleans it. The result is always absolute.
func (s *SandboxFS) normalize(p string) string {
	if !path.IsAbs(p) {
		p = path.Join(s.cwd, p)
	}
	return path.Clean(p)
}

func splitSegments(abs string) []string {
	trimmed := strings.Trim(abs, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// walkDir resolves abs to a directory handle, walking segment by segment
// from the root. Intermediate segments must be directories.
func (s *SandboxFS) walkDir(ctx context.Context, abs string, create bool) (DirHandle, error) {
	if err := s.initLocked(ctx); err != nil {
		return nil, err
	}
	if cached, ok := s.cache[abs]; ok {
		if d, ok := cached.(DirHandle); ok {
			return d, nil
		}
		return nil, notADirectory(abs)
	}

	dir := s.root
	for _, seg := range splitSegments(abs) {
		next, err := dir.GetDirectory(ctx, seg, create)
		if err != nil {
			return nil, err
		}
		dir = next
	}
	s.cache[abs] = dir
	return dir, nil
}

// walkFile resolves abs to a file handle. At the leaf the file namespace is
// probed before the directory namespace, so a file and a directory sharing
// a name resolve to the file.
func (s *SandboxFS) walkFile(ctx context.Context, abs string, create bool) (FileHandle, error) {
	if err := s.initLocked(ctx); err != nil {
		return nil, err
	}
	if cached, ok := s.cache[abs]; ok {
		if f, ok := cached.(FileHandle); ok {
			return f, nil
		}
		return nil, notAFile(abs)
	}

	parentPath, name := path.Split(abs)
	if name == "" {
		return nil, notAFile(abs)
	}
	parent, err := s.walkDir(ctx, path.Clean(parentPath), false)
	if err != nil {
		return nil, err
	}
	f, err := parent.GetFile(ctx, name, create)
	if err != nil {
		return nil, err
	}
	s.cache[abs] = f
	return f, nil
}

func (s *SandboxFS) ReadFile(ctx context.Context, p string) (string, error) {
	data, err := s.ReadFileBytes(ctx, p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *SandboxFS) ReadFileBytes(ctx context.Context, p string) ([]byte, error) {
	s.mu.Lock()
	f, err := s.walkFile(ctx, s.normalize(p), false)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.Read(ctx)
}

func (s *SandboxFS) WriteFile(ctx context.Context, p, content string) error {
	return s.WriteFileBytes(ctx, p, []byte(content))
}

func (s *SandboxFS) WriteFileBytes(ctx context.Context, p string, data []byte) error {
	s.mu.Lock()
	f, err := s.walkFile(ctx, s.normalize(p), true)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Write(ctx, data)
}

func (s *SandboxFS) ReadDir(ctx context.Context, p string) ([]string, error) {
	s.mu.Lock()
	d, err := s.walkDir(ctx, s.normalize(p), false)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	entries, err := d.Entries(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return names, nil
}

func (s *SandboxFS) Mkdir(ctx context.Context, p string, recursive bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	abs := s.normalize(p)
	if recursive {
		_, err := s.walkDir(ctx, abs, true)
		return err
	}
	parent, err := s.walkDir(ctx, path.Dir(abs), false)
	if err != nil {
		return err
	}
	_, err = parent.GetDirectory(ctx, path.Base(abs), true)
	return err
}

func (s *SandboxFS) Rmdir(ctx context.Context, p string, recursive bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	abs := s.normalize(p)
	if abs == "/" {
		return invalidArgument("cannot remove root")
	}
	if _, err := s.walkDir(ctx, abs, false); err != nil {
		return err
	}
	parent, err := s.walkDir(ctx, path.Dir(abs), false)
	if err != nil {
		return err
	}
	if err := parent.Remove(ctx, path.Base(abs), recursive); err != nil {
		return err
	}
	delete(s.cache, abs)
	return nil
}

func (s *SandboxFS) Unlink(ctx context.Context, p string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	abs := s.normalize(p)
	if _, err := s.walkFile(ctx, abs, false); err != nil {
		return err
	}
	parent, err := s.walkDir(ctx, path.Dir(abs), false)
	if err != nil {
		return err
	}
	if err := parent.Remove(ctx, path.Base(abs), false); err != nil {
		return err
	}
	delete(s.cache, abs)
	return nil
}

// Rename is copy-then-delete: the store has no rename primitive. A crash
// between the write and the unlink leaves both paths populated. Directories
// are not supported.
func (s *SandboxFS) Rename(ctx context.Context, oldPath, newPath string) error {
	data, err := s.ReadFileBytes(ctx, oldPath)
	if err != nil {
		return err
	}
	if err := s.WriteFileBytes(ctx, newPath, data); err != nil {
		return err
	}
	if err := s.Unlink(ctx, oldPath); err != nil {
		logging.Warn("rename cleanup failed, source retained", "path", oldPath, "error", err)
		return err
	}
	return nil
}

func (s *SandboxFS) CopyFile(ctx context.Context, src, dst string) error {
	data, err := s.ReadFileBytes(ctx, src)
	if err != nil {
		return err
	}
	return s.WriteFileBytes(ctx, dst, data)
}

func (s *SandboxFS) Stat(ctx context.Context, p string) (FileStat, error) {
	s.mu.Lock()
	abs := s.normalize(p)
	f, ferr := s.walkFile(ctx, abs, false)
	if ferr == nil {
		s.mu.Unlock()
		return f.Stat(ctx)
	}
	_, derr := s.walkDir(ctx, abs, false)
	s.mu.Unlock()
	if derr == nil {
		// Directory handles carry no metadata of their own.
		return statFor(true, 0, time.Time{}), nil
	}
	return FileStat{}, notFound(p)
}

func (s *SandboxFS) Exists(ctx context.Context, p string) (bool, error) {
	_, err := s.Stat(ctx, p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}

func (s *SandboxFS) Glob(ctx context.Context, pattern, cwd string) ([]string, error) {
	re, err := CompileGlob(pattern)
	if err != nil {
		return nil, invalidArgument("bad glob pattern: " + err.Error())
	}

	s.mu.Lock()
	if cwd == "" {
		cwd = s.cwd
	}
	base := s.normalize(cwd)
	dir, derr := s.walkDir(ctx, base, false)
	s.mu.Unlock()
	if derr != nil {
		return nil, derr
	}

	var matches []string
	if err := s.collectMatches(ctx, dir, "", re, &matches); err != nil {
		return nil, err
	}
	return matches, nil
}

func (s *SandboxFS) collectMatches(ctx context.Context, dir DirHandle, prefix string, re *regexp.Regexp, out *[]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := dir.Entries(ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		rel := e.Name
		if prefix != "" {
			rel = prefix + "/" + e.Name
		}
		if e.IsDir {
			child, err := dir.GetDirectory(ctx, e.Name, false)
			if err != nil {
				continue
			}
			if err := s.collectMatches(ctx, child, rel, re, out); err != nil {
				return err
			}
			continue
		}
		if re.MatchString(rel) {
			*out = append(*out, rel)
		}
	}
	return nil
}

func (s *SandboxFS) Grep(ctx context.Context, pattern, p string, opts GrepOptions) ([]Match, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, invalidArgument("bad regex: " + err.Error())
	}

	abs := s.normalize(p)
	stat, err := s.Stat(ctx, abs)
	if err != nil {
		return nil, err
	}
	if stat.IsDirectory {
		if !opts.Recursive {
			return nil, invalidArgument("grep on a directory requires recursive: true")
		}
		s.mu.Lock()
		dir, derr := s.walkDir(ctx, abs, false)
		s.mu.Unlock()
		if derr != nil {
			return nil, derr
		}
		var matches []Match
		if err := s.grepDir(ctx, dir, abs, re, &matches); err != nil {
			return nil, err
		}
		return matches, nil
	}

	content, err := s.ReadFile(ctx, abs)
	if err != nil {
		return nil, err
	}
	return scanLines(abs, content, re), nil
}

func (s *SandboxFS) grepDir(ctx context.Context, dir DirHandle, prefix string, re *regexp.Regexp, out *[]Match) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := dir.Entries(ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		full := path.Join(prefix, e.Name)
		if e.IsDir {
			child, err := dir.GetDirectory(ctx, e.Name, false)
			if err != nil {
				continue
			}
			if err := s.grepDir(ctx, child, full, re, out); err != nil {
				return err
			}
			continue
		}
		f, err := dir.GetFile(ctx, e.Name, false)
		if err != nil {
			continue
		}
		data, err := f.Read(ctx)
		if err != nil {
			continue
		}
		*out = append(*out, scanLines(full, string(data), re)...)
	}
	return nil
}

func (s *SandboxFS) Join(elem ...string) string { return path.Join(elem...) }

func (s *SandboxFS) Resolve(p string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.normalize(p)
}

func (s *SandboxFS) Relative(base, target string) string {
	s.mu.Lock()
	base = s.normalize(base)
	target = s.normalize(target)
	s.mu.Unlock()

	baseSegs := splitSegments(base)
	targetSegs := splitSegments(target)
	i := 0
	for i < len(baseSegs) && i < len(targetSegs) && baseSegs[i] == targetSegs[i] {
		i++
	}
	var parts []string
	for range baseSegs[i:] {
		parts = append(parts, "..")
	}
	parts = append(parts, targetSegs[i:]...)
	if len(parts) == 0 {
		return "."
	}
	return strings.Join(parts, "/")
}

func (s *SandboxFS) Dirname(p string) string  { return path.Dir(p) }
func (s *SandboxFS) Basename(p string) string { return path.Base(p) }
func (s *SandboxFS) Extname(p string) string  { return path.Ext(p) }

func (s *SandboxFS) Cwd() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cwd
}

func (s *SandboxFS) Chdir(p string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	abs := s.normalize(p)
	if _, err := s.walkDir(context.Background(), abs, false); err != nil {
		return err
	}
	s.cwd = abs
	return nil
}
