package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genport/internal/cache"
	"genport/internal/vfs"
)

const testWorkDir = "/work"

// newToolFS builds a sandbox filesystem with /work as the working directory.
func newToolFS(t *testing.T) vfs.FileSystem {
	t.Helper()
	fs := vfs.NewSandboxFS(vfs.NewMemStore())
	ctx := context.Background()
	require.NoError(t, fs.Initialize(ctx))
	require.NoError(t, fs.Mkdir(ctx, testWorkDir, true))
	require.NoError(t, fs.Chdir(testWorkDir))
	return fs
}

func mustWrite(t *testing.T, fs vfs.FileSystem, path, content string) {
	t.Helper()
	require.NoError(t, fs.WriteFile(context.Background(), path, content))
}

func execute(t *testing.T, tool Tool, args map[string]any) ToolResult {
	t.Helper()
	require.NoError(t, tool.Validate(args))
	res, err := tool.Execute(context.Background(), args)
	require.NoError(t, err)
	return res
}

func TestGlobToolMatches(t *testing.T) {
	fs := newToolFS(t)
	mustWrite(t, fs, "/work/main.go", "package main")
	mustWrite(t, fs, "/work/readme.md", "# hi")
	require.NoError(t, fs.Mkdir(context.Background(), "/work/src", false))
	mustWrite(t, fs, "/work/src/util.go", "package src")

	tool := NewGlobTool(fs, testWorkDir)
	res := execute(t, tool, map[string]any{"pattern": "**/*.go"})
	require.True(t, res.Success)

	lines := strings.Fields(res.Content)
	assert.ElementsMatch(t, []string{"main.go", "src/util.go"}, lines)
}

func TestGlobToolNoMatches(t *testing.T) {
	fs := newToolFS(t)
	tool := NewGlobTool(fs, testWorkDir)

	res := execute(t, tool, map[string]any{"pattern": "*.rs"})
	require.True(t, res.Success)
	assert.Equal(t, "(no matches)", res.Content)
}

func TestGlobToolRespectsIgnoreFile(t *testing.T) {
	fs := newToolFS(t)
	mustWrite(t, fs, "/work/.gitignore", "vendor/\n*.log\n")
	mustWrite(t, fs, "/work/app.go", "")
	mustWrite(t, fs, "/work/debug.log", "")
	require.NoError(t, fs.Mkdir(context.Background(), "/work/vendor", false))
	mustWrite(t, fs, "/work/vendor/dep.go", "")

	tool := NewGlobTool(fs, testWorkDir)
	res := execute(t, tool, map[string]any{"pattern": "**/*"})
	require.True(t, res.Success)

	assert.Contains(t, res.Content, "app.go")
	assert.NotContains(t, res.Content, "debug.log")
	assert.NotContains(t, res.Content, "dep.go")
}

func TestGlobToolRejectsEscapingPath(t *testing.T) {
	fs := newToolFS(t)
	tool := NewGlobTool(fs, testWorkDir)

	res := execute(t, tool, map[string]any{"pattern": "*", "path": "/etc"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "outside working directory")
}

func TestGlobToolValidation(t *testing.T) {
	fs := newToolFS(t)
	tool := NewGlobTool(fs, testWorkDir)

	err := tool.Validate(map[string]any{})
	var vErr ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "pattern", vErr.Field)
}

func TestGlobToolCaches(t *testing.T) {
	fs := newToolFS(t)
	mustWrite(t, fs, "/work/a.go", "")

	tool := NewGlobTool(fs, testWorkDir)
	c := cache.New(cache.DefaultCapacity)
	tool.SetCache(c)

	first := execute(t, tool, map[string]any{"pattern": "*.go"})
	assert.Equal(t, 1, c.Len())
	second := execute(t, tool, map[string]any{"pattern": "*.go"})
	assert.Equal(t, first.Content, second.Content)
}

func TestGrepToolFindsMatches(t *testing.T) {
	fs := newToolFS(t)
	mustWrite(t, fs, "/work/a.go", "package a\nfunc Needle() {}\n")
	mustWrite(t, fs, "/work/b.md", "needle in prose\n")

	tool := NewGrepTool(fs, testWorkDir)
	res := execute(t, tool, map[string]any{"pattern": "Needle"})
	require.True(t, res.Success)
	assert.Contains(t, res.Content, "a.go:2: func Needle() {}")
	assert.NotContains(t, res.Content, "b.md")
}

func TestGrepToolCaseInsensitive(t *testing.T) {
	fs := newToolFS(t)
	mustWrite(t, fs, "/work/a.txt", "NEEDLE\n")

	tool := NewGrepTool(fs, testWorkDir)
	res := execute(t, tool, map[string]any{"pattern": "needle"})
	assert.Equal(t, "(no matches)", res.Content)

	res = execute(t, tool, map[string]any{"pattern": "needle", "case_insensitive": true})
	assert.Contains(t, res.Content, "a.txt:1: NEEDLE")
}

func TestGrepToolIncludeFilter(t *testing.T) {
	fs := newToolFS(t)
	mustWrite(t, fs, "/work/a.go", "match\n")
	mustWrite(t, fs, "/work/a.md", "match\n")

	tool := NewGrepTool(fs, testWorkDir)
	res := execute(t, tool, map[string]any{"pattern": "match", "include": "*.go"})
	assert.Contains(t, res.Content, "a.go")
	assert.NotContains(t, res.Content, "a.md")
}

func TestGrepToolSingleFile(t *testing.T) {
	fs := newToolFS(t)
	mustWrite(t, fs, "/work/only.txt", "one\ntwo target\n")

	tool := NewGrepTool(fs, testWorkDir)
	res := execute(t, tool, map[string]any{"pattern": "target", "path": "only.txt"})
	assert.Contains(t, res.Content, "only.txt:2: two target")
}

func TestListDirTool(t *testing.T) {
	fs := newToolFS(t)
	mustWrite(t, fs, "/work/b.txt", "")
	mustWrite(t, fs, "/work/a.txt", "")
	require.NoError(t, fs.Mkdir(context.Background(), "/work/sub", false))

	tool := NewListDirTool(fs, testWorkDir)
	res := execute(t, tool, map[string]any{})
	require.True(t, res.Success)
	assert.Equal(t, "a.txt\nb.txt\nsub/", res.Content)
}

func TestListDirToolEmpty(t *testing.T) {
	fs := newToolFS(t)
	tool := NewListDirTool(fs, testWorkDir)

	res := execute(t, tool, map[string]any{})
	assert.Equal(t, "(empty)", res.Content)
}

func TestListDirToolMissingPath(t *testing.T) {
	fs := newToolFS(t)
	tool := NewListDirTool(fs, testWorkDir)

	res := execute(t, tool, map[string]any{"path": "nope"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "cannot list")
}

func TestReadFileTool(t *testing.T) {
	fs := newToolFS(t)
	mustWrite(t, fs, "/work/main.go", "package main\n\nfunc main() {}")

	tool := NewReadFileTool(fs, testWorkDir)
	res := execute(t, tool, map[string]any{"path": "main.go"})
	require.True(t, res.Success)
	assert.Contains(t, res.Content, "main.go (lines 1-3 of 3, Go)")
	assert.Contains(t, res.Content, "func main() {}")
}

func TestReadFileToolWindow(t *testing.T) {
	fs := newToolFS(t)
	mustWrite(t, fs, "/work/long.txt", "l1\nl2\nl3\nl4\nl5")

	tool := NewReadFileTool(fs, testWorkDir)
	res := execute(t, tool, map[string]any{"path": "long.txt", "offset": 1, "limit": 2})
	require.True(t, res.Success)
	assert.Contains(t, res.Content, "(lines 2-3 of 5")
	assert.Contains(t, res.Content, "(truncated; pass offset to continue)")
	assert.Contains(t, res.Content, "l2\nl3")
	assert.NotContains(t, res.Content, "l4")
}

func TestReadFileToolRefusesBinary(t *testing.T) {
	fs := newToolFS(t)
	require.NoError(t, fs.WriteFileBytes(context.Background(), "/work/blob.png",
		[]byte{0x89, 'P', 'N', 'G', 0x00, 0x01}))

	tool := NewReadFileTool(fs, testWorkDir)
	res := execute(t, tool, map[string]any{"path": "blob.png"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "binary file (image/png)")
}

func TestReadFileToolMissing(t *testing.T) {
	fs := newToolFS(t)
	tool := NewReadFileTool(fs, testWorkDir)

	res := execute(t, tool, map[string]any{"path": "ghost.txt"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "cannot read")
}

func TestWriteFileToolCreates(t *testing.T) {
	fs := newToolFS(t)
	tool := NewWriteFileTool(fs, testWorkDir)

	res := execute(t, tool, map[string]any{"path": "new/dir/f.txt", "content": "hello"})
	require.True(t, res.Success)
	assert.Equal(t, "created new/dir/f.txt (5 bytes)", res.Content)

	got, err := fs.ReadFile(context.Background(), "/work/new/dir/f.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestWriteFileToolUpdateReportsDiff(t *testing.T) {
	fs := newToolFS(t)
	mustWrite(t, fs, "/work/f.txt", "hello")

	tool := NewWriteFileTool(fs, testWorkDir)
	res := execute(t, tool, map[string]any{"path": "f.txt", "content": "hello world"})
	require.True(t, res.Success)
	assert.Equal(t, "updated f.txt (+6/-0 bytes)", res.Content)
}

func TestWriteFileToolValidation(t *testing.T) {
	fs := newToolFS(t)
	tool := NewWriteFileTool(fs, testWorkDir)

	var vErr ValidationError
	require.ErrorAs(t, tool.Validate(map[string]any{"content": "x"}), &vErr)
	assert.Equal(t, "path", vErr.Field)
	require.ErrorAs(t, tool.Validate(map[string]any{"path": "f"}), &vErr)
	assert.Equal(t, "content", vErr.Field)
}

func TestWriteFileToolRejectsEscapingPath(t *testing.T) {
	fs := newToolFS(t)
	tool := NewWriteFileTool(fs, testWorkDir)

	res := execute(t, tool, map[string]any{"path": "/etc/passwd", "content": "x"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "outside working directory")
}

func TestToolResultToMap(t *testing.T) {
	ok := NewSuccessResult("fine")
	m := ok.ToMap()
	assert.Equal(t, "fine", m["content"])

	bad := NewErrorResult("broke")
	m = bad.ToMap()
	assert.Equal(t, "broke", m["error"])
}

func TestArgHelpers(t *testing.T) {
	args := map[string]any{
		"s": "text",
		"i": float64(7), // JSON numbers decode as float64
		"b": true,
	}

	s, ok := GetString(args, "s")
	assert.True(t, ok)
	assert.Equal(t, "text", s)
	_, ok = GetString(args, "missing")
	assert.False(t, ok)
	assert.Equal(t, "fallback", GetStringDefault(args, "missing", "fallback"))

	i, ok := GetInt(args, "i")
	assert.True(t, ok)
	assert.Equal(t, 7, i)
	assert.Equal(t, 9, GetIntDefault(args, "missing", 9))

	b, ok := GetBool(args, "b")
	assert.True(t, ok)
	assert.True(t, b)
	assert.False(t, GetBoolDefault(args, "missing", false))
}
