package vfs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"genport/internal/logging"
)

// maxGrepFileSize caps in-process grep reads. Larger files are skipped; the
// tool layer caps file sizes before handing paths down here anyway.
const maxGrepFileSize = 10 * 1024 * 1024

// NativeFS implements FileSystem over the host operating system.
type NativeFS struct {
	mu  sync.RWMutex
	cwd string

	// grepBinary is the external fast-search binary tried before the
	// in-process scan. Overridable for tests.
	grepBinary string
}

// NewNativeFS creates a native backend rooted at the process working
// directory, or at dir when non-empty.
func NewNativeFS(dir string) (*NativeFS, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &NativeFS{cwd: abs, grepBinary: "rg"}, nil
}

func (n *NativeFS) resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	n.mu.RLock()
	cwd := n.cwd
	n.mu.RUnlock()
	return filepath.Join(cwd, path)
}

func mapOSError(err error, path string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return notFound(path)
	case errors.Is(err, fs.ErrExist):
		return alreadyExists(path)
	default:
		return err
	}
}

func (n *NativeFS) ReadFile(ctx context.Context, path string) (string, error) {
	data, err := n.ReadFileBytes(ctx, path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (n *NativeFS) ReadFileBytes(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	abs := n.resolve(path)
	info, err := os.Stat(abs)
	if err != nil {
		return nil, mapOSError(err, path)
	}
	if info.IsDir() {
		return nil, notAFile(path)
	}
	data, err := os.ReadFile(abs)
	return data, mapOSError(err, path)
}

func (n *NativeFS) WriteFile(ctx context.Context, path, content string) error {
	return n.WriteFileBytes(ctx, path, []byte(content))
}

// WriteFileBytes writes atomically: temp file in the target directory,
// fsync, then rename over the destination.
func (n *NativeFS) WriteFileBytes(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	abs := n.resolve(path)
	dir := filepath.Dir(abs)
	if info, err := os.Stat(dir); err != nil {
		return mapOSError(err, filepath.Dir(path))
	} else if !info.IsDir() {
		return notADirectory(filepath.Dir(path))
	}

	tmp, err := os.CreateTemp(dir, ".genport-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, abs); err != nil {
		return err
	}
	success = true
	return nil
}

func (n *NativeFS) ReadDir(ctx context.Context, path string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	abs := n.resolve(path)
	info, err := os.Stat(abs)
	if err != nil {
		return nil, mapOSError(err, path)
	}
	if !info.IsDir() {
		return nil, notADirectory(path)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, mapOSError(err, path)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

func (n *NativeFS) Mkdir(ctx context.Context, path string, recursive bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	abs := n.resolve(path)
	if recursive {
		return mapOSError(os.MkdirAll(abs, 0755), path)
	}
	return mapOSError(os.Mkdir(abs, 0755), path)
}

func (n *NativeFS) Rmdir(ctx context.Context, path string, recursive bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	abs := n.resolve(path)
	info, err := os.Stat(abs)
	if err != nil {
		return mapOSError(err, path)
	}
	if !info.IsDir() {
		return notADirectory(path)
	}
	if recursive {
		return mapOSError(os.RemoveAll(abs), path)
	}
	return mapOSError(os.Remove(abs), path)
}

func (n *NativeFS) Unlink(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	abs := n.resolve(path)
	info, err := os.Stat(abs)
	if err != nil {
		return mapOSError(err, path)
	}
	if info.IsDir() {
		return notAFile(path)
	}
	return mapOSError(os.Remove(abs), path)
}

func (n *NativeFS) Rename(ctx context.Context, oldPath, newPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return mapOSError(os.Rename(n.resolve(oldPath), n.resolve(newPath)), oldPath)
}

func (n *NativeFS) CopyFile(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	in, err := os.Open(n.resolve(src))
	if err != nil {
		return mapOSError(err, src)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		return notAFile(src)
	}

	out, err := os.Create(n.resolve(dst))
	if err != nil {
		return mapOSError(err, dst)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

func (n *NativeFS) Stat(ctx context.Context, path string) (FileStat, error) {
	if err := ctx.Err(); err != nil {
		return FileStat{}, err
	}
	info, err := os.Stat(n.resolve(path))
	if err != nil {
		return FileStat{}, mapOSError(err, path)
	}
	return FileStat{
		IsFile:      info.Mode().IsRegular(),
		IsDirectory: info.IsDir(),
		Size:        info.Size(),
		ModTime:     info.ModTime(),
		Mode:        info.Mode(),
	}, nil
}

func (n *NativeFS) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(n.resolve(path))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (n *NativeFS) Glob(ctx context.Context, pattern, cwd string) ([]string, error) {
	if cwd == "" {
		cwd = n.Cwd()
	}
	root := n.resolve(cwd)
	re, err := CompileGlob(pattern)
	if err != nil {
		return nil, invalidArgument("bad glob pattern: " + err.Error())
	}

	var matches []string
	walkErr := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if re.MatchString(rel) {
			matches = append(matches, rel)
		}
		return nil
	})
	if walkErr != nil {
		if errors.Is(walkErr, fs.ErrNotExist) {
			return nil, notFound(cwd)
		}
		return nil, walkErr
	}
	return matches, nil
}

// Grep tries the external fast-search binary first and silently falls back
// to the in-process scan when the binary is unavailable or exits abnormally.
func (n *NativeFS) Grep(ctx context.Context, pattern, path string, opts GrepOptions) ([]Match, error) {
	abs := n.resolve(path)
	info, err := os.Stat(abs)
	if err != nil {
		return nil, mapOSError(err, path)
	}
	if info.IsDir() && !opts.Recursive {
		return nil, invalidArgument("grep on a directory requires recursive: true")
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, invalidArgument("bad regex: " + err.Error())
	}

	if matches, ok := n.grepExternal(ctx, pattern, abs); ok {
		return matches, nil
	}
	return n.grepInProcess(ctx, re, abs, info.IsDir())
}

// ripgrep --json emits one JSON object per line; only type=="match" records
// carry hits.
type rgRecord struct {
	Type string `json:"type"`
	Data struct {
		Path struct {
			Text string `json:"text"`
		} `json:"path"`
		Lines struct {
			Text string `json:"text"`
		} `json:"lines"`
		LineNumber int `json:"line_number"`
		Submatches []struct {
			Start int `json:"start"`
		} `json:"submatches"`
	} `json:"data"`
}

func (n *NativeFS) grepExternal(ctx context.Context, pattern, abs string) ([]Match, bool) {
	if n.grepBinary == "" {
		return nil, false
	}
	if _, err := exec.LookPath(n.grepBinary); err != nil {
		return nil, false
	}

	cmd := exec.CommandContext(ctx, n.grepBinary, "--json", "-e", pattern, abs)
	out, err := cmd.Output()
	if err != nil {
		// Exit code 1 means no matches; anything else falls back.
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return []Match{}, true
		}
		logging.Debug("external grep failed, falling back", "error", err)
		return nil, false
	}

	var matches []Match
	for _, line := range strings.Split(string(out), "\n") {
		if line == "" {
			continue
		}
		var rec rgRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			logging.Debug("unparseable grep record, falling back", "line", line)
			return nil, false
		}
		if rec.Type != "match" {
			continue
		}
		col := 1
		if len(rec.Data.Submatches) > 0 {
			col = rec.Data.Submatches[0].Start + 1
		}
		matches = append(matches, Match{
			File:   rec.Data.Path.Text,
			Line:   rec.Data.LineNumber,
			Column: col,
			Text:   strings.TrimRight(rec.Data.Lines.Text, "\n"),
		})
	}
	return matches, true
}

func (n *NativeFS) grepInProcess(ctx context.Context, re *regexp.Regexp, abs string, isDir bool) ([]Match, error) {
	var files []string
	if isDir {
		err := filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if d.IsDir() {
				return nil
			}
			if info, err := d.Info(); err == nil && info.Size() <= maxGrepFileSize {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	} else {
		files = []string{abs}
	}

	var matches []Match
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			continue
		}
		matches = append(matches, scanLines(f, string(data), re)...)
	}
	return matches, nil
}

// scanLines does the whole-file-in-memory linewise regex scan shared with
// the sandbox backend.
func scanLines(file, content string, re *regexp.Regexp) []Match {
	var matches []Match
	for i, line := range strings.Split(content, "\n") {
		loc := re.FindStringIndex(line)
		if loc == nil {
			continue
		}
		matches = append(matches, Match{
			File:   file,
			Line:   i + 1,
			Column: loc[0] + 1,
			Text:   line,
		})
	}
	return matches
}

func (n *NativeFS) Join(elem ...string) string { return filepath.Join(elem...) }

func (n *NativeFS) Resolve(path string) string { return n.resolve(path) }

func (n *NativeFS) Relative(base, target string) string {
	rel, err := filepath.Rel(n.resolve(base), n.resolve(target))
	if err != nil {
		return target
	}
	return rel
}
func (n *NativeFS) Dirname(path string) string  { return filepath.Dir(path) }
func (n *NativeFS) Basename(path string) string { return filepath.Base(path) }
func (n *NativeFS) Extname(path string) string  { return filepath.Ext(path) }

func (n *NativeFS) Cwd() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.cwd
}

func (n *NativeFS) Chdir(path string) error {
	abs := n.resolve(path)
	info, err := os.Stat(abs)
	if err != nil {
		return mapOSError(err, path)
	}
	if !info.IsDir() {
		return notADirectory(path)
	}
	n.mu.Lock()
	n.cwd = abs
	n.mu.Unlock()
	return nil
}
