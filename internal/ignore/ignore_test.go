package ignore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genport/internal/vfs"
)

func newPolicy(t *testing.T, gitignore string) *Policy {
	t.Helper()
	fs := vfs.NewSandboxFS(vfs.NewMemStore())
	ctx := context.Background()
	require.NoError(t, fs.Initialize(ctx))
	require.NoError(t, fs.Mkdir(ctx, "/work", true))
	if gitignore != "" {
		require.NoError(t, fs.WriteFile(ctx, "/work/.gitignore", gitignore))
	}

	p := NewPolicy(fs, "/work")
	require.NoError(t, p.Load(ctx))
	return p
}

func TestUnloadedPolicyIgnoresNothing(t *testing.T) {
	fs := vfs.NewSandboxFS(vfs.NewMemStore())
	p := NewPolicy(fs, "/work")
	assert.False(t, p.IsIgnored("/work/anything", false))
}

func TestBasicPatterns(t *testing.T) {
	p := newPolicy(t, "*.log\nbuild/\n")

	assert.True(t, p.IsIgnored("/work/debug.log", false))
	assert.True(t, p.IsIgnored("/work/sub/deep.log", false))
	assert.False(t, p.IsIgnored("/work/main.go", false))
	assert.True(t, p.IsIgnored("/work/build", true))
	assert.True(t, p.IsIgnored("/work/build/out.bin", false))
}

func TestDirOnlyPatternSkipsPlainFile(t *testing.T) {
	p := newPolicy(t, "build/\n")

	// A file named like the directory pattern is not ignored.
	assert.False(t, p.IsIgnored("/work/build", false))
	assert.True(t, p.IsIgnored("/work/build", true))
}

func TestNegationLastMatchWins(t *testing.T) {
	p := newPolicy(t, "*.log\n!keep.log\n")

	assert.True(t, p.IsIgnored("/work/debug.log", false))
	assert.False(t, p.IsIgnored("/work/keep.log", false))
}

func TestAnchoredPattern(t *testing.T) {
	p := newPolicy(t, "/vendor\ndocs/generated\n")

	assert.True(t, p.IsIgnored("/work/vendor", true))
	assert.True(t, p.IsIgnored("/work/vendor/dep.go", false))
	assert.False(t, p.IsIgnored("/work/sub/vendor", true))

	assert.True(t, p.IsIgnored("/work/docs/generated", true))
	assert.True(t, p.IsIgnored("/work/docs/generated/a.md", false))
}

func TestCommentsAndBlanksSkipped(t *testing.T) {
	p := newPolicy(t, "# a comment\n\n*.tmp\n")

	assert.True(t, p.IsIgnored("/work/x.tmp", false))
	assert.False(t, p.IsIgnored("/work/#", false))
}

func TestGitDirAlwaysIgnored(t *testing.T) {
	p := newPolicy(t, "")

	assert.True(t, p.IsIgnored("/work/.git", true))
	assert.True(t, p.IsIgnored("/work/.git/HEAD", false))
	assert.False(t, p.IsIgnored("/work/.github", true))
}

func TestNestedIgnoreFile(t *testing.T) {
	fs := vfs.NewSandboxFS(vfs.NewMemStore())
	ctx := context.Background()
	require.NoError(t, fs.Initialize(ctx))
	require.NoError(t, fs.Mkdir(ctx, "/work/sub", true))
	require.NoError(t, fs.WriteFile(ctx, "/work/sub/.gitignore", "local.out\n"))

	p := NewPolicy(fs, "/work")
	require.NoError(t, p.Load(ctx))

	assert.True(t, p.IsIgnored("/work/sub/local.out", false))
}

func TestAddPattern(t *testing.T) {
	p := newPolicy(t, "")

	assert.False(t, p.IsIgnored("/work/scratch.txt", false))
	p.AddPattern("scratch.txt")
	assert.True(t, p.IsIgnored("/work/scratch.txt", false))
}

func TestInvalidateClearsCachedVerdicts(t *testing.T) {
	p := newPolicy(t, "")

	assert.False(t, p.IsIgnored("/work/a.log", false)) // cached false
	p.AddPattern("*.log")                              // AddPattern resets the cache itself
	assert.True(t, p.IsIgnored("/work/a.log", false))

	p.Invalidate()
	assert.True(t, p.IsIgnored("/work/a.log", false))
}
