// Package vfs defines the FileSystem contract consumed by the tool layer and
// provides the native and sandbox backends.
package vfs

import (
	"context"
	"io/fs"
	"time"
)

// FileStat describes a single file or directory. It is produced by Stat and
// never mutated afterwards.
type FileStat struct {
	IsFile      bool
	IsDirectory bool
	Size        int64
	ModTime     time.Time
	Mode        fs.FileMode
}

// Match is a single grep hit.
type Match struct {
	File   string
	Line   int // 1-based
	Column int // 1-based
	Text   string
}

// GrepOptions configures FileSystem.Grep.
type GrepOptions struct {
	// Recursive must be set when the target path is a directory.
	Recursive bool
}

// FileSystem is the single contract both backends implement. All I/O methods
// take a context because the sandbox backend may be remote; the pure path
// helpers and Cwd are synchronous by construction.
type FileSystem interface {
	ReadFile(ctx context.Context, path string) (string, error)
	ReadFileBytes(ctx context.Context, path string) ([]byte, error)
	WriteFile(ctx context.Context, path string, content string) error
	WriteFileBytes(ctx context.Context, path string, data []byte) error

	ReadDir(ctx context.Context, path string) ([]string, error)
	Mkdir(ctx context.Context, path string, recursive bool) error
	Rmdir(ctx context.Context, path string, recursive bool) error
	Unlink(ctx context.Context, path string) error

	// Rename moves a file. The sandbox backend has no atomic rename and
	// implements it as copy-then-delete; callers must tolerate a window
	// where both paths exist, or where the copy succeeded and the delete
	// failed.
	Rename(ctx context.Context, oldPath, newPath string) error
	CopyFile(ctx context.Context, src, dst string) error

	Stat(ctx context.Context, path string) (FileStat, error)
	Exists(ctx context.Context, path string) (bool, error)

	// Glob matches the simplified shell pattern (* and ? only, anchored)
	// against paths relative to cwd, traversing recursively.
	Glob(ctx context.Context, pattern, cwd string) ([]string, error)

	// Grep scans path for the regex pattern. Directories require
	// opts.Recursive, otherwise ErrInvalidArgument is returned.
	Grep(ctx context.Context, pattern, path string, opts GrepOptions) ([]Match, error)

	// Pure path helpers. Each backend applies its own separator rules.
	Join(elem ...string) string
	Resolve(path string) string
	Relative(base, target string) string
	Dirname(path string) string
	Basename(path string) string
	Extname(path string) string

	Cwd() string
	Chdir(path string) error
}
