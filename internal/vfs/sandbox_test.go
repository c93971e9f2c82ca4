package vfs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSandbox(t *testing.T) *SandboxFS {
	t.Helper()
	fs := NewSandboxFS(NewMemStore())
	require.NoError(t, fs.Initialize(context.Background()))
	return fs
}

func TestSandboxInitializeIdempotent(t *testing.T) {
	fs := NewSandboxFS(NewMemStore())
	ctx := context.Background()
	require.NoError(t, fs.Initialize(ctx))
	require.NoError(t, fs.Initialize(ctx))
	require.NoError(t, fs.WriteFile(ctx, "/a.txt", "x"))
	require.NoError(t, fs.Initialize(ctx))

	got, err := fs.ReadFile(ctx, "/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "x", got)
}

func TestSandboxLazyInit(t *testing.T) {
	fs := NewSandboxFS(NewMemStore())
	ctx := context.Background()

	// No explicit Initialize; first operation fetches the root.
	require.NoError(t, fs.WriteFile(ctx, "/a.txt", "lazy"))
	got, err := fs.ReadFile(ctx, "/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "lazy", got)
}

func TestSandboxWriteRead(t *testing.T) {
	fs := newSandbox(t)
	ctx := context.Background()

	require.NoError(t, fs.Mkdir(ctx, "/a/b", true))
	require.NoError(t, fs.WriteFile(ctx, "/a/b/f.txt", "deep"))

	got, err := fs.ReadFile(ctx, "/a/b/f.txt")
	require.NoError(t, err)
	assert.Equal(t, "deep", got)

	stat, err := fs.Stat(ctx, "/a/b/f.txt")
	require.NoError(t, err)
	assert.True(t, stat.IsFile)
	assert.Equal(t, int64(4), stat.Size)

	stat, err = fs.Stat(ctx, "/a/b")
	require.NoError(t, err)
	assert.True(t, stat.IsDirectory)
}

func TestSandboxMkdirNonRecursiveRequiresParent(t *testing.T) {
	fs := newSandbox(t)
	ctx := context.Background()

	err := fs.Mkdir(ctx, "/x/y", false)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, fs.Mkdir(ctx, "/x", false))
	require.NoError(t, fs.Mkdir(ctx, "/x/y", false))
}

func TestSandboxReadDirSorted(t *testing.T) {
	fs := newSandbox(t)
	ctx := context.Background()

	require.NoError(t, fs.WriteFile(ctx, "/b.txt", ""))
	require.NoError(t, fs.WriteFile(ctx, "/a.txt", ""))
	require.NoError(t, fs.Mkdir(ctx, "/c", false))

	names, err := fs.ReadDir(ctx, "/")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt", "c"}, names)
}

func TestSandboxUnlinkAndRmdir(t *testing.T) {
	fs := newSandbox(t)
	ctx := context.Background()

	require.NoError(t, fs.WriteFile(ctx, "/f.txt", "x"))
	require.NoError(t, fs.Unlink(ctx, "/f.txt"))
	_, err := fs.ReadFile(ctx, "/f.txt")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, fs.Mkdir(ctx, "/d/sub", true))
	err = fs.Rmdir(ctx, "/d", false)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	require.NoError(t, fs.Rmdir(ctx, "/d", true))
	ok, err := fs.Exists(ctx, "/d")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, fs.Rmdir(ctx, "/", false), ErrInvalidArgument)
}

func TestSandboxUnlinkInvalidatesCachedHandle(t *testing.T) {
	fs := newSandbox(t)
	ctx := context.Background()

	require.NoError(t, fs.WriteFile(ctx, "/f.txt", "v1"))
	_, err := fs.ReadFile(ctx, "/f.txt") // populate the handle cache
	require.NoError(t, err)

	require.NoError(t, fs.Unlink(ctx, "/f.txt"))
	_, err = fs.ReadFile(ctx, "/f.txt")
	assert.ErrorIs(t, err, ErrNotFound)

	// Re-creating the path resolves fresh, not through a stale handle.
	require.NoError(t, fs.WriteFile(ctx, "/f.txt", "v2"))
	got, err := fs.ReadFile(ctx, "/f.txt")
	require.NoError(t, err)
	assert.Equal(t, "v2", got)
}

func TestSandboxDescendantHandlesSurviveAncestorRemoval(t *testing.T) {
	fs := newSandbox(t)
	ctx := context.Background()

	require.NoError(t, fs.Mkdir(ctx, "/a/b", true))
	require.NoError(t, fs.WriteFile(ctx, "/a/b/f.txt", "old"))
	_, err := fs.ReadFile(ctx, "/a/b/f.txt") // cache the descendant handle
	require.NoError(t, err)

	require.NoError(t, fs.Rmdir(ctx, "/a", true))

	// Only the exact removed path is evicted; the descendant's cached handle
	// still reads from the detached tree.
	got, err := fs.ReadFile(ctx, "/a/b/f.txt")
	require.NoError(t, err)
	assert.Equal(t, "old", got)

	// A path never resolved before the removal fails normally.
	_, err = fs.ReadFile(ctx, "/a/b/other.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSandboxRenameCopiesThenDeletes(t *testing.T) {
	fs := newSandbox(t)
	ctx := context.Background()

	require.NoError(t, fs.WriteFile(ctx, "/src.txt", "payload"))
	require.NoError(t, fs.Rename(ctx, "/src.txt", "/dst.txt"))

	got, err := fs.ReadFile(ctx, "/dst.txt")
	require.NoError(t, err)
	assert.Equal(t, "payload", got)
	_, err = fs.ReadFile(ctx, "/src.txt")
	assert.ErrorIs(t, err, ErrNotFound)

	err = fs.Rename(ctx, "/missing.txt", "/x.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

// removeBlockedStore wraps MemStore so Remove on the root directory can be
// made to fail, simulating a crash between a rename's copy and delete steps.
type removeBlockedStore struct {
	inner *MemStore
	block bool
}

func (s *removeBlockedStore) Root(ctx context.Context) (DirHandle, error) {
	root, err := s.inner.Root(ctx)
	if err != nil {
		return nil, err
	}
	return &removeBlockedDir{DirHandle: root, store: s}, nil
}

type removeBlockedDir struct {
	DirHandle
	store *removeBlockedStore
}

func (d *removeBlockedDir) Remove(ctx context.Context, name string, recursive bool) error {
	if d.store.block {
		return errors.New("remove failed")
	}
	return d.DirHandle.Remove(ctx, name, recursive)
}

func TestSandboxRenameCleanupFailureLeavesBothPaths(t *testing.T) {
	store := &removeBlockedStore{inner: NewMemStore()}
	fs := NewSandboxFS(store)
	ctx := context.Background()

	require.NoError(t, fs.WriteFile(ctx, "/src.txt", "payload"))

	store.block = true
	err := fs.Rename(ctx, "/src.txt", "/dst.txt")
	require.Error(t, err)

	// The copy step completed before the failed delete: both paths hold the
	// content.
	got, err := fs.ReadFile(ctx, "/src.txt")
	require.NoError(t, err)
	assert.Equal(t, "payload", got)
	got, err = fs.ReadFile(ctx, "/dst.txt")
	require.NoError(t, err)
	assert.Equal(t, "payload", got)
}

func TestSandboxCopyFile(t *testing.T) {
	fs := newSandbox(t)
	ctx := context.Background()

	require.NoError(t, fs.WriteFile(ctx, "/src.txt", "dup"))
	require.NoError(t, fs.CopyFile(ctx, "/src.txt", "/copy.txt"))

	got, err := fs.ReadFile(ctx, "/copy.txt")
	require.NoError(t, err)
	assert.Equal(t, "dup", got)
	ok, _ := fs.Exists(ctx, "/src.txt")
	assert.True(t, ok)
}

func TestSandboxChdirRelativePaths(t *testing.T) {
	fs := newSandbox(t)
	ctx := context.Background()

	require.NoError(t, fs.Mkdir(ctx, "/work", false))
	require.NoError(t, fs.Chdir("/work"))
	assert.Equal(t, "/work", fs.Cwd())

	require.NoError(t, fs.WriteFile(ctx, "rel.txt", "x"))
	got, err := fs.ReadFile(ctx, "/work/rel.txt")
	require.NoError(t, err)
	assert.Equal(t, "x", got)

	assert.Error(t, fs.Chdir("/nonexistent"))
	assert.Equal(t, "/work", fs.Cwd())
}

func TestSandboxGlob(t *testing.T) {
	fs := newSandbox(t)
	ctx := context.Background()

	require.NoError(t, fs.Mkdir(ctx, "/src", false))
	require.NoError(t, fs.WriteFile(ctx, "/main.go", ""))
	require.NoError(t, fs.WriteFile(ctx, "/readme.md", ""))
	require.NoError(t, fs.WriteFile(ctx, "/src/util.go", ""))

	matches, err := fs.Glob(ctx, "*.go", "/")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"main.go", "src/util.go"}, matches)

	matches, err = fs.Glob(ctx, "*.go", "/src")
	require.NoError(t, err)
	assert.Equal(t, []string{"util.go"}, matches)
}

func TestSandboxGrep(t *testing.T) {
	fs := newSandbox(t)
	ctx := context.Background()

	require.NoError(t, fs.Mkdir(ctx, "/d", false))
	require.NoError(t, fs.WriteFile(ctx, "/d/a.txt", "no hit\nneedle here\n"))
	require.NoError(t, fs.WriteFile(ctx, "/d/b.txt", "another needle\n"))

	_, err := fs.Grep(ctx, "needle", "/d", GrepOptions{})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	matches, err := fs.Grep(ctx, "needle", "/d", GrepOptions{Recursive: true})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "/d/a.txt", matches[0].File)
	assert.Equal(t, 2, matches[0].Line)

	matches, err = fs.Grep(ctx, "needle", "/d/b.txt", GrepOptions{})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 1, matches[0].Line)

	_, err = fs.Grep(ctx, "[bad", "/d/b.txt", GrepOptions{})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSandboxPathOps(t *testing.T) {
	fs := newSandbox(t)

	assert.Equal(t, "/a/b", fs.Join("/a", "b"))
	assert.Equal(t, "/a/b", fs.Resolve("/a/c/../b"))
	assert.Equal(t, "../b/c", fs.Relative("/a/x", "/a/b/c"))
	assert.Equal(t, ".", fs.Relative("/a", "/a"))
	assert.Equal(t, "/a", fs.Dirname("/a/b"))
	assert.Equal(t, "b.go", fs.Basename("/a/b.go"))
	assert.Equal(t, ".go", fs.Extname("/a/b.go"))
}

func TestMemStoreNameCollision(t *testing.T) {
	fs := newSandbox(t)
	ctx := context.Background()

	require.NoError(t, fs.Mkdir(ctx, "/thing", false))
	err := fs.WriteFile(ctx, "/thing", "x")
	assert.ErrorIs(t, err, ErrNotAFile)

	require.NoError(t, fs.WriteFile(ctx, "/file", "x"))
	err = fs.Mkdir(ctx, "/file", false)
	assert.ErrorIs(t, err, ErrNotADirectory)
}
