package fileutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genport/internal/vfs"
)

func TestIsBinary(t *testing.T) {
	assert.False(t, IsBinary([]byte("plain text\nwith lines\n")))
	assert.False(t, IsBinary(nil))
	assert.True(t, IsBinary([]byte{'a', 0x00, 'b'}))

	// A NUL past the sniff window is not seen.
	big := make([]byte, binarySniffLen+1)
	for i := range big {
		big[i] = 'x'
	}
	big[binarySniffLen] = 0x00
	assert.False(t, IsBinary(big))
}

func TestMimeType(t *testing.T) {
	assert.Equal(t, "image/png", MimeType("shot.PNG", nil))
	assert.Equal(t, "image/jpeg", MimeType("photo.jpg", nil))
	// No known extension falls back to content sniffing.
	assert.Equal(t, "text/html; charset=utf-8", MimeType("page", []byte("<html><body>hi</body></html>")))
}

func TestIsImage(t *testing.T) {
	assert.True(t, IsImage("a.png"))
	assert.True(t, IsImage("a.WEBP"))
	assert.False(t, IsImage("a.txt"))
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, "Go", DetectLanguage("/src/main.go"))
	assert.Equal(t, "Python", DetectLanguage("script.py"))
	assert.Empty(t, DetectLanguage("no-extension-here.zzz"))
}

func chunkFS(t *testing.T, content string) vfs.FileSystem {
	t.Helper()
	fs := vfs.NewSandboxFS(vfs.NewMemStore())
	ctx := context.Background()
	require.NoError(t, fs.Initialize(ctx))
	require.NoError(t, fs.WriteFile(ctx, "/f.txt", content))
	return fs
}

func TestReadChunkWholeFile(t *testing.T) {
	fs := chunkFS(t, "l1\nl2\nl3")

	chunk, err := ReadChunk(context.Background(), fs, "/f.txt", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "l1\nl2\nl3", chunk.Content)
	assert.Equal(t, 1, chunk.StartLine)
	assert.Equal(t, 3, chunk.EndLine)
	assert.Equal(t, 3, chunk.TotalLines)
	assert.False(t, chunk.Truncated)
}

func TestReadChunkWindow(t *testing.T) {
	fs := chunkFS(t, "l1\nl2\nl3\nl4\nl5")

	chunk, err := ReadChunk(context.Background(), fs, "/f.txt", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, "l2\nl3", chunk.Content)
	assert.Equal(t, 2, chunk.StartLine)
	assert.Equal(t, 3, chunk.EndLine)
	assert.Equal(t, 5, chunk.TotalLines)
	assert.True(t, chunk.Truncated)
}

func TestReadChunkOffsetPastEnd(t *testing.T) {
	fs := chunkFS(t, "only\ntwo")

	chunk, err := ReadChunk(context.Background(), fs, "/f.txt", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, chunk.Content)
	assert.Equal(t, 2, chunk.TotalLines)
	assert.False(t, chunk.Truncated)
}

func TestReadChunkNegativeOffsetClamped(t *testing.T) {
	fs := chunkFS(t, "a\nb")

	chunk, err := ReadChunk(context.Background(), fs, "/f.txt", -5, 1)
	require.NoError(t, err)
	assert.Equal(t, "a", chunk.Content)
	assert.Equal(t, 1, chunk.StartLine)
	assert.True(t, chunk.Truncated)
}

func TestReadChunkMissingFile(t *testing.T) {
	fs := chunkFS(t, "x")

	_, err := ReadChunk(context.Background(), fs, "/absent.txt", 0, 0)
	assert.ErrorIs(t, err, vfs.ErrNotFound)
}
