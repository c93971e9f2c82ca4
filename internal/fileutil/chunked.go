package fileutil

import (
	"context"
	"strings"

	"genport/internal/vfs"
)

// DefaultChunkLines is how many lines ReadChunk returns when no limit is
// given.
const DefaultChunkLines = 2000

// Chunk is a window of a text file.
type Chunk struct {
	Content    string
	StartLine  int // 1-based line of the first returned line
	EndLine    int // 1-based line of the last returned line
	TotalLines int
	Truncated  bool // more lines follow the window
}

// ReadChunk reads a line window of a file through the given filesystem.
// offset is the 0-based line to start at; limit <= 0 means DefaultChunkLines.
func ReadChunk(ctx context.Context, fs vfs.FileSystem, path string, offset, limit int) (Chunk, error) {
	content, err := fs.ReadFile(ctx, path)
	if err != nil {
		return Chunk{}, err
	}

	if limit <= 0 {
		limit = DefaultChunkLines
	}
	if offset < 0 {
		offset = 0
	}

	lines := strings.Split(content, "\n")
	total := len(lines)
	if offset >= total {
		return Chunk{TotalLines: total, StartLine: total, EndLine: total}, nil
	}

	end := offset + limit
	if end > total {
		end = total
	}

	return Chunk{
		Content:    strings.Join(lines[offset:end], "\n"),
		StartLine:  offset + 1,
		EndLine:    end,
		TotalLines: total,
		Truncated:  end < total,
	}, nil
}
