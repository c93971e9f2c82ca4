package vfs

import (
	"context"
	"time"
)

// Storage exposes a handle tree the sandbox backend walks. Handles are
// opaque references into the store; the backend never sees raw paths below
// the root.
type Storage interface {
	// Root returns the top-level directory handle. It must be idempotent.
	Root(ctx context.Context) (DirHandle, error)
}

// DirHandle is a directory in the handle tree.
type DirHandle interface {
	Name() string

	// Entries lists immediate child names with a kind marker each.
	Entries(ctx context.Context) ([]Entry, error)

	// GetFile returns the child file handle, creating it when create is set.
	// Returns ErrNotFound when absent and create is false, ErrNotAFile when
	// the name is taken by a directory.
	GetFile(ctx context.Context, name string, create bool) (FileHandle, error)

	// GetDirectory mirrors GetFile for subdirectories.
	GetDirectory(ctx context.Context, name string, create bool) (DirHandle, error)

	// Remove deletes the named child. Non-empty directories require
	// recursive.
	Remove(ctx context.Context, name string, recursive bool) error
}

// FileHandle is a file in the handle tree. Reads and writes are whole-file.
type FileHandle interface {
	Name() string
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Stat(ctx context.Context) (FileStat, error)
}

// Entry is one child of a directory handle.
type Entry struct {
	Name  string
	IsDir bool
}

// statFor builds a FileStat for handle-backed files, which carry no mode
// bits of their own.
func statFor(isDir bool, size int64, modTime time.Time) FileStat {
	return FileStat{
		IsFile:      !isDir,
		IsDirectory: isDir,
		Size:        size,
		ModTime:     modTime,
		Mode:        0644,
	}
}
