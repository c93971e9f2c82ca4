package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/sergi/go-diff/diffmatchpatch"
	"google.golang.org/genai"

	"genport/internal/vfs"
)

// WriteFileTool writes file contents, creating parent directories as needed.
// Overwrites report a diff of what changed.
type WriteFileTool struct {
	fs      vfs.FileSystem
	workDir string
}

// NewWriteFileTool creates a new WriteFileTool instance.
func NewWriteFileTool(fs vfs.FileSystem, workDir string) *WriteFileTool {
	return &WriteFileTool{fs: fs, workDir: workDir}
}

func (t *WriteFileTool) Name() string {
	return "write_file"
}

func (t *WriteFileTool) Description() string {
	return `Writes content to a file, creating it (and parent directories) if needed.

PARAMETERS:
- path (required): File to write
- content (required): Full content to write

Overwriting an existing file replaces it entirely; the result includes a
summary of the change.`
}

func (t *WriteFileTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"path": {
					Type:        genai.TypeString,
					Description: "The file to write",
				},
				"content": {
					Type:        genai.TypeString,
					Description: "The full content to write",
				},
			},
			Required: []string{"path", "content"},
		},
	}
}

func (t *WriteFileTool) Validate(args map[string]any) error {
	path, ok := GetString(args, "path")
	if !ok || path == "" {
		return NewValidationError("path", "is required")
	}
	if _, ok := GetString(args, "content"); !ok {
		return NewValidationError("content", "is required")
	}
	return nil
}

func (t *WriteFileTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	path, _ := GetString(args, "path")
	content, _ := GetString(args, "content")

	path = t.fs.Resolve(path)
	if !vfs.IsWithinRoot(path, t.workDir) {
		return NewErrorResult(fmt.Sprintf("path outside working directory: %s", path)), nil
	}

	previous, err := t.fs.ReadFile(ctx, path)
	isNew := false
	if err != nil {
		if !errors.Is(err, vfs.ErrNotFound) {
			return NewErrorResult(fmt.Sprintf("cannot read existing %s: %s", path, err)), nil
		}
		isNew = true
	}

	if err := t.fs.Mkdir(ctx, t.fs.Dirname(path), true); err != nil && !errors.Is(err, vfs.ErrExists) {
		return NewErrorResult(fmt.Sprintf("cannot create parent directory: %s", err)), nil
	}
	if err := t.fs.WriteFile(ctx, path, content); err != nil {
		return NewErrorResult(fmt.Sprintf("cannot write %s: %s", path, err)), nil
	}

	rel := t.fs.Relative(t.workDir, path)
	if isNew {
		return NewSuccessResult(fmt.Sprintf("created %s (%d bytes)", rel, len(content))), nil
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(previous, content, false)
	dmp.DiffCleanupSemantic(diffs)

	added, removed := 0, 0
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added += len(d.Text)
		case diffmatchpatch.DiffDelete:
			removed += len(d.Text)
		}
	}
	return NewSuccessResult(fmt.Sprintf("updated %s (+%d/-%d bytes)", rel, added, removed)), nil
}
