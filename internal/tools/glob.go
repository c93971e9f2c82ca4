package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"google.golang.org/genai"

	"genport/internal/cache"
	"genport/internal/ignore"
	"genport/internal/vfs"
)

const maxGlobResults = 1000

// GlobTool finds files matching a glob pattern.
type GlobTool struct {
	fs      vfs.FileSystem
	workDir string
	policy  *ignore.Policy
	cache   *cache.SearchCache
}

// NewGlobTool creates a new GlobTool instance.
func NewGlobTool(fs vfs.FileSystem, workDir string) *GlobTool {
	policy := ignore.NewPolicy(fs, workDir)
	_ = policy.Load(context.Background()) // ignore files are optional

	return &GlobTool{fs: fs, workDir: workDir, policy: policy}
}

// SetIgnorePolicy replaces the ignore policy.
func (t *GlobTool) SetIgnorePolicy(p *ignore.Policy) {
	t.policy = p
}

// SetCache sets the search cache for the tool.
func (t *GlobTool) SetCache(c *cache.SearchCache) {
	t.cache = c
}

func (t *GlobTool) Name() string {
	return "glob"
}

func (t *GlobTool) Description() string {
	return `Finds files matching a glob pattern. Returns file paths sorted by modification time (newest first).

PARAMETERS:
- pattern (required): Glob pattern to match files
- path (optional): Directory to search in (default: current working directory)

PATTERN SYNTAX:
- *: Matches any characters except /
- **: Matches any characters including / (recursive)
- ?: Matches single character
- [abc]: Matches any character in brackets
- {a,b}: Matches either a or b

LIMITATIONS:
- Maximum 1000 results returned
- Gitignored files are excluded
- Directories are not included (files only)`
}

func (t *GlobTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"pattern": {
					Type:        genai.TypeString,
					Description: "The glob pattern to match (e.g., '**/*.go', 'src/**/*.ts')",
				},
				"path": {
					Type:        genai.TypeString,
					Description: "The directory to search in. Defaults to current working directory.",
				},
			},
			Required: []string{"pattern"},
		},
	}
}

func (t *GlobTool) Validate(args map[string]any) error {
	pattern, ok := GetString(args, "pattern")
	if !ok || pattern == "" {
		return NewValidationError("pattern", "is required")
	}
	return nil
}

func (t *GlobTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	pattern, _ := GetString(args, "pattern")
	searchPath := GetStringDefault(args, "path", t.workDir)
	searchPath = t.fs.Resolve(searchPath)

	if !vfs.IsWithinRoot(searchPath, t.workDir) {
		return NewErrorResult(fmt.Sprintf("path outside working directory: %s", searchPath)), nil
	}

	var cacheKey string
	if t.cache != nil {
		cacheKey = cache.GlobKey(pattern, searchPath)
		if cached, ok := t.cache.GetGlob(cacheKey); ok {
			return t.render(cached, len(cached)), nil
		}
	}

	stat, err := t.fs.Stat(ctx, searchPath)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("path not found: %s", searchPath)), nil
	}
	if !stat.IsDirectory {
		return NewErrorResult(fmt.Sprintf("not a directory: %s", searchPath)), nil
	}

	// Walk through the filesystem abstraction and match with doublestar so
	// the richer syntax (**, braces, classes) works on both backends.
	type fileInfo struct {
		path    string
		modTime int64
	}
	var files []fileInfo
	err = t.walk(ctx, searchPath, "", func(rel string, isDir bool) error {
		if isDir {
			return nil
		}
		matched, merr := doublestar.Match(pattern, rel)
		if merr != nil {
			return merr
		}
		if !matched {
			return nil
		}
		full := t.fs.Join(searchPath, rel)
		if t.policy != nil && t.policy.IsIgnored(full, false) {
			return nil
		}
		info, serr := t.fs.Stat(ctx, full)
		if serr != nil {
			return nil
		}
		files = append(files, fileInfo{path: full, modTime: info.ModTime.Unix()})
		return nil
	})
	if err != nil {
		return NewErrorResult(fmt.Sprintf("glob failed: %s", err)), nil
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime > files[j].modTime
	})

	totalFound := len(files)
	if len(files) > maxGlobResults {
		files = files[:maxGlobResults]
	}

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.path
	}
	if t.cache != nil && cacheKey != "" {
		t.cache.PutGlob(cacheKey, paths)
	}

	return t.render(paths, totalFound), nil
}

func (t *GlobTool) render(paths []string, totalFound int) ToolResult {
	if len(paths) == 0 {
		return NewSuccessResult("(no matches)")
	}
	var b strings.Builder
	if totalFound > maxGlobResults {
		fmt.Fprintf(&b, "(showing %d of %d+)\n", maxGlobResults, totalFound)
	}
	for _, p := range paths {
		b.WriteString(t.fs.Relative(t.workDir, p))
		b.WriteString("\n")
	}
	return NewSuccessResult(b.String())
}

// walk visits every entry under dir, reporting slash-separated paths
// relative to the search root.
func (t *GlobTool) walk(ctx context.Context, root, prefix string, visit func(rel string, isDir bool) error) error {
	dir := root
	if prefix != "" {
		dir = t.fs.Join(root, prefix)
	}
	names, err := t.fs.ReadDir(ctx, dir)
	if err != nil {
		return nil // unreadable directories are skipped
	}
	for _, name := range names {
		rel := name
		if prefix != "" {
			rel = prefix + "/" + name
		}
		full := t.fs.Join(root, rel)
		stat, err := t.fs.Stat(ctx, full)
		if err != nil {
			continue
		}
		if err := visit(rel, stat.IsDirectory); err != nil {
			return err
		}
		if stat.IsDirectory {
			if t.policy != nil && t.policy.IsIgnored(full, true) {
				continue
			}
			if err := t.walk(ctx, root, rel, visit); err != nil {
				return err
			}
		}
	}
	return nil
}
