package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"google.golang.org/genai"

	"genport/internal/cache"
	"genport/internal/ignore"
	"genport/internal/vfs"
)

const maxGrepResults = 500

// GrepTool searches file contents with a regular expression.
type GrepTool struct {
	fs      vfs.FileSystem
	workDir string
	policy  *ignore.Policy
	cache   *cache.SearchCache
}

// NewGrepTool creates a new GrepTool instance.
func NewGrepTool(fs vfs.FileSystem, workDir string) *GrepTool {
	policy := ignore.NewPolicy(fs, workDir)
	_ = policy.Load(context.Background())

	return &GrepTool{fs: fs, workDir: workDir, policy: policy}
}

// SetIgnorePolicy replaces the ignore policy.
func (t *GrepTool) SetIgnorePolicy(p *ignore.Policy) {
	t.policy = p
}

// SetCache sets the search cache for the tool.
func (t *GrepTool) SetCache(c *cache.SearchCache) {
	t.cache = c
}

func (t *GrepTool) Name() string {
	return "grep"
}

func (t *GrepTool) Description() string {
	return `Searches file contents using a regular expression. Returns matching lines with file path and line number.

PARAMETERS:
- pattern (required): Regular expression to search for
- path (optional): File or directory to search (default: current working directory)
- include (optional): Glob pattern filtering which files are searched (e.g. '*.go')
- case_insensitive (optional): Case-insensitive matching (default: false)

LIMITATIONS:
- Maximum 500 results returned
- Gitignored files are excluded
- Searching a directory always recurses`
}

func (t *GrepTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"pattern": {
					Type:        genai.TypeString,
					Description: "The regular expression to search for",
				},
				"path": {
					Type:        genai.TypeString,
					Description: "File or directory to search. Defaults to current working directory.",
				},
				"include": {
					Type:        genai.TypeString,
					Description: "Glob pattern limiting which files are searched (e.g. '*.go')",
				},
				"case_insensitive": {
					Type:        genai.TypeBoolean,
					Description: "Match case-insensitively",
				},
			},
			Required: []string{"pattern"},
		},
	}
}

func (t *GrepTool) Validate(args map[string]any) error {
	pattern, ok := GetString(args, "pattern")
	if !ok || pattern == "" {
		return NewValidationError("pattern", "is required")
	}
	return nil
}

func (t *GrepTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	pattern, _ := GetString(args, "pattern")
	searchPath := GetStringDefault(args, "path", t.workDir)
	include := GetStringDefault(args, "include", "")
	caseInsensitive := GetBoolDefault(args, "case_insensitive", false)

	searchPath = t.fs.Resolve(searchPath)
	if !vfs.IsWithinRoot(searchPath, t.workDir) {
		return NewErrorResult(fmt.Sprintf("path outside working directory: %s", searchPath)), nil
	}

	if caseInsensitive {
		pattern = "(?i)" + pattern
	}

	stat, err := t.fs.Stat(ctx, searchPath)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("path not found: %s", searchPath)), nil
	}

	var cacheKey string
	if t.cache != nil {
		cacheKey = cache.GrepKey(pattern, searchPath, stat.IsDirectory)
		if cached, ok := t.cache.GetGrep(cacheKey); ok {
			return t.render(t.filter(cached, include)), nil
		}
	}

	matches, err := t.fs.Grep(ctx, pattern, searchPath, vfs.GrepOptions{Recursive: stat.IsDirectory})
	if err != nil {
		return NewErrorResult(fmt.Sprintf("search failed: %s", err)), nil
	}

	if t.cache != nil && cacheKey != "" {
		t.cache.PutGrep(cacheKey, matches)
	}

	return t.render(t.filter(matches, include)), nil
}

// filter drops ignored files and, when include is set, files whose basename
// does not match the include glob.
func (t *GrepTool) filter(matches []vfs.Match, include string) []vfs.Match {
	out := matches[:0:0]
	for _, m := range matches {
		if t.policy != nil && t.policy.IsIgnored(m.File, false) {
			continue
		}
		if include != "" {
			matched, err := doublestar.Match(include, t.fs.Basename(m.File))
			if err != nil || !matched {
				continue
			}
		}
		out = append(out, m)
	}
	return out
}

func (t *GrepTool) render(matches []vfs.Match) ToolResult {
	if len(matches) == 0 {
		return NewSuccessResult("(no matches)")
	}

	total := len(matches)
	if len(matches) > maxGrepResults {
		matches = matches[:maxGrepResults]
	}

	var b strings.Builder
	if total > maxGrepResults {
		fmt.Fprintf(&b, "(showing %d of %d)\n", maxGrepResults, total)
	}
	for _, m := range matches {
		fmt.Fprintf(&b, "%s:%d: %s\n", t.fs.Relative(t.workDir, m.File), m.Line, strings.TrimSpace(m.Text))
	}
	return NewSuccessResult(b.String())
}
