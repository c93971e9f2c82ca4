package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"google.golang.org/genai"

	"genport/internal/ignore"
	"genport/internal/vfs"
)

const maxListEntries = 2000

// ListDirTool lists directory contents.
type ListDirTool struct {
	fs      vfs.FileSystem
	workDir string
	policy  *ignore.Policy
}

// NewListDirTool creates a new ListDirTool instance.
func NewListDirTool(fs vfs.FileSystem, workDir string) *ListDirTool {
	policy := ignore.NewPolicy(fs, workDir)
	_ = policy.Load(context.Background())

	return &ListDirTool{fs: fs, workDir: workDir, policy: policy}
}

// SetIgnorePolicy replaces the ignore policy.
func (t *ListDirTool) SetIgnorePolicy(p *ignore.Policy) {
	t.policy = p
}

func (t *ListDirTool) Name() string {
	return "list_dir"
}

func (t *ListDirTool) Description() string {
	return `Lists the contents of a directory. Directories are suffixed with "/".

PARAMETERS:
- path (optional): Directory to list (default: current working directory)

LIMITATIONS:
- Maximum 2000 entries returned
- Gitignored entries are excluded`
}

func (t *ListDirTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"path": {
					Type:        genai.TypeString,
					Description: "The directory to list. Defaults to current working directory.",
				},
			},
		},
	}
}

func (t *ListDirTool) Validate(args map[string]any) error {
	return nil
}

func (t *ListDirTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	path := GetStringDefault(args, "path", t.workDir)
	path = t.fs.Resolve(path)

	if !vfs.IsWithinRoot(path, t.workDir) {
		return NewErrorResult(fmt.Sprintf("path outside working directory: %s", path)), nil
	}

	names, err := t.fs.ReadDir(ctx, path)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("cannot list %s: %s", path, err)), nil
	}

	var entries []string
	for _, name := range names {
		full := t.fs.Join(path, name)
		stat, err := t.fs.Stat(ctx, full)
		if err != nil {
			continue
		}
		if t.policy != nil && t.policy.IsIgnored(full, stat.IsDirectory) {
			continue
		}
		if stat.IsDirectory {
			entries = append(entries, name+"/")
		} else {
			entries = append(entries, name)
		}
	}
	sort.Strings(entries)

	if len(entries) == 0 {
		return NewSuccessResult("(empty)"), nil
	}

	total := len(entries)
	if len(entries) > maxListEntries {
		entries = entries[:maxListEntries]
	}

	var b strings.Builder
	if total > maxListEntries {
		fmt.Fprintf(&b, "(showing %d of %d)\n", maxListEntries, total)
	}
	b.WriteString(strings.Join(entries, "\n"))
	return NewSuccessResult(b.String()), nil
}
