package tools

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"genport/internal/fileutil"
	"genport/internal/vfs"
)

// ReadFileTool reads a window of a text file.
type ReadFileTool struct {
	fs      vfs.FileSystem
	workDir string
}

// NewReadFileTool creates a new ReadFileTool instance.
func NewReadFileTool(fs vfs.FileSystem, workDir string) *ReadFileTool {
	return &ReadFileTool{fs: fs, workDir: workDir}
}

func (t *ReadFileTool) Name() string {
	return "read_file"
}

func (t *ReadFileTool) Description() string {
	return `Reads a text file, returning up to 2000 lines per call.

PARAMETERS:
- path (required): File to read
- offset (optional): 0-based line to start from (default: 0)
- limit (optional): Maximum lines to return (default: 2000)

LIMITATIONS:
- Binary files are refused
- Use offset/limit to page through large files`
}

func (t *ReadFileTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"path": {
					Type:        genai.TypeString,
					Description: "The file to read",
				},
				"offset": {
					Type:        genai.TypeInteger,
					Description: "0-based line to start reading from",
				},
				"limit": {
					Type:        genai.TypeInteger,
					Description: "Maximum number of lines to return",
				},
			},
			Required: []string{"path"},
		},
	}
}

func (t *ReadFileTool) Validate(args map[string]any) error {
	path, ok := GetString(args, "path")
	if !ok || path == "" {
		return NewValidationError("path", "is required")
	}
	return nil
}

func (t *ReadFileTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	path, _ := GetString(args, "path")
	offset := GetIntDefault(args, "offset", 0)
	limit := GetIntDefault(args, "limit", 0)

	path = t.fs.Resolve(path)
	if !vfs.IsWithinRoot(path, t.workDir) {
		return NewErrorResult(fmt.Sprintf("path outside working directory: %s", path)), nil
	}

	data, err := t.fs.ReadFileBytes(ctx, path)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("cannot read %s: %s", path, err)), nil
	}
	if fileutil.IsBinary(data) {
		mime := fileutil.MimeType(path, data)
		return NewErrorResult(fmt.Sprintf("binary file (%s), refusing to read as text", mime)), nil
	}

	chunk, err := fileutil.ReadChunk(ctx, t.fs, path, offset, limit)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("cannot read %s: %s", path, err)), nil
	}

	header := fmt.Sprintf("%s (lines %d-%d of %d", t.fs.Relative(t.workDir, path), chunk.StartLine, chunk.EndLine, chunk.TotalLines)
	if lang := fileutil.DetectLanguage(path); lang != "" {
		header += ", " + lang
	}
	header += ")\n"
	if chunk.Truncated {
		header += "(truncated; pass offset to continue)\n"
	}
	return NewSuccessResult(header + chunk.Content), nil
}
