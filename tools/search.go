package tools

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	// DefaultMaxResults caps how many matches search tools return.
	DefaultMaxResults = 20

	// maxSearchResults is the hard ceiling regardless of what the model asks
	// for.
	maxSearchResults = 200
)

// FindFilesTool locates files by glob pattern under the code root.
type FindFilesTool struct {
	root string
}

// NewFindFilesTool creates a find_files tool rooted at the given directory.
func NewFindFilesTool(root string) *FindFilesTool {
	return &FindFilesTool{root: root}
}

// Metadata returns tool metadata.
func (t *FindFilesTool) Metadata() Metadata {
	return Metadata{
		Name:        "find_files",
		Description: "Find files matching a glob pattern, e.g. *.go or cmd/**/*.go",
		Parameters: []Parameter{
			{Name: "pattern", Type: "string", Description: "Glob pattern matched against file names and relative paths", Required: true},
			{Name: "max_results", Type: "integer", Description: "Maximum number of paths to return", Default: "20"},
		},
	}
}

// Execute walks the root collecting files whose base name or relative path
// matches the pattern.
func (t *FindFilesTool) Execute(ctx context.Context, args Args) (string, error) {
	pattern := args.String("pattern", "")
	if !doublestar.ValidatePattern(pattern) {
		return "", fmt.Errorf("invalid glob pattern %q", pattern)
	}
	limit, err := resultLimit(args)
	if err != nil {
		return "", err
	}

	var matches []string
	err = walkFiles(t.root, func(rel string, d fs.DirEntry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		byName, _ := doublestar.Match(pattern, filepath.Base(rel))
		byPath, _ := doublestar.Match(pattern, rel)
		if byName || byPath {
			matches = append(matches, rel)
			if len(matches) >= limit {
				return filepath.SkipAll
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return fmt.Sprintf("no files match %q", pattern), nil
	}
	out := strings.Join(matches, "\n")
	if len(matches) >= limit {
		out += fmt.Sprintf("\n... (limited to %d results)", limit)
	}
	return out, nil
}

// SearchCodeTool scans file contents for a keyword, line by line.
type SearchCodeTool struct {
	root string
}

// NewSearchCodeTool creates a search_code tool rooted at the given directory.
func NewSearchCodeTool(root string) *SearchCodeTool {
	return &SearchCodeTool{root: root}
}

// Metadata returns tool metadata.
func (t *SearchCodeTool) Metadata() Metadata {
	return Metadata{
		Name:        "search_code",
		Description: "Search file contents for a keyword, returning file:line matches",
		Parameters: []Parameter{
			{Name: "keyword", Type: "string", Description: "Literal text to search for (case-insensitive)", Required: true},
			{Name: "extensions", Type: "string", Description: "Comma-separated extensions to restrict to, e.g. .go,.md; * searches all files", Default: "*"},
			{Name: "max_results", Type: "integer", Description: "Maximum number of matches to return", Default: "20"},
		},
	}
}

// Execute scans files under the root for lines containing the keyword.
func (t *SearchCodeTool) Execute(ctx context.Context, args Args) (string, error) {
	keyword := strings.ToLower(args.String("keyword", ""))
	exts := parseExtensions(args.String("extensions", ""))
	limit, err := resultLimit(args)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	found := 0
	err = walkFiles(t.root, func(rel string, d fs.DirEntry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !extensionAllowed(rel, exts) {
			return nil
		}
		n, err := scanFileFor(ctx, filepath.Join(t.root, rel), rel, keyword, limit-found, &b)
		if err != nil {
			// Binary or unreadable files are skipped silently.
			return nil
		}
		found += n
		if found >= limit {
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if found == 0 {
		return fmt.Sprintf("no matches for %q", args.String("keyword", "")), nil
	}
	if found >= limit {
		fmt.Fprintf(&b, "... (limited to %d results)", limit)
	}
	return strings.TrimRight(b.String(), "\n") + "\n", nil
}

// scanFileFor appends up to budget matching lines as "rel:line: text" and
// returns how many it found.
func scanFileFor(ctx context.Context, path, rel, keyword string, budget int, b *strings.Builder) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	line, found := 0, 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return found, err
		}
		line++
		text := scanner.Text()
		if !strings.Contains(strings.ToLower(text), keyword) {
			continue
		}
		fmt.Fprintf(b, "%s:%d: %s\n", rel, line, strings.TrimSpace(text))
		found++
		if found >= budget {
			break
		}
	}
	return found, scanner.Err()
}

// FindByExtTool lists files with any of the given extensions.
type FindByExtTool struct {
	root string
}

// NewFindByExtTool creates a find_by_ext tool rooted at the given directory.
func NewFindByExtTool(root string) *FindByExtTool {
	return &FindByExtTool{root: root}
}

// Metadata returns tool metadata.
func (t *FindByExtTool) Metadata() Metadata {
	return Metadata{
		Name:        "find_by_ext",
		Description: "Find files by extension, e.g. .go or .py,.pyi",
		Parameters: []Parameter{
			{Name: "extensions", Type: "string", Description: "Comma-separated extensions", Required: true},
			{Name: "max_results", Type: "integer", Description: "Maximum number of paths to return", Default: "20"},
		},
	}
}

// Execute walks the root collecting files with matching extensions.
func (t *FindByExtTool) Execute(ctx context.Context, args Args) (string, error) {
	raw := args.String("extensions", "")
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("no extensions given")
	}
	exts := parseExtensions(raw)
	limit, err := resultLimit(args)
	if err != nil {
		return "", err
	}

	var matches []string
	err = walkFiles(t.root, func(rel string, d fs.DirEntry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if extensionAllowed(rel, exts) {
			matches = append(matches, rel)
			if len(matches) >= limit {
				return filepath.SkipAll
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return fmt.Sprintf("no files with extension %s", args.String("extensions", "")), nil
	}
	out := strings.Join(matches, "\n")
	if len(matches) >= limit {
		out += fmt.Sprintf("\n... (limited to %d results)", limit)
	}
	return out, nil
}

// parseExtensions normalizes a comma-separated extension list, ensuring each
// entry carries a leading dot. An empty input, or a "*" wildcard entry,
// yields nil, meaning no filter.
func parseExtensions(s string) []string {
	if s == "" {
		return nil
	}
	var exts []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if part == "*" {
			return nil
		}
		if !strings.HasPrefix(part, ".") {
			part = "." + part
		}
		exts = append(exts, strings.ToLower(part))
	}
	return exts
}

func extensionAllowed(path string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

func resultLimit(args Args) (int, error) {
	limit, err := args.Int("max_results", DefaultMaxResults)
	if err != nil {
		return 0, err
	}
	if limit <= 0 {
		limit = DefaultMaxResults
	}
	if limit > maxSearchResults {
		limit = maxSearchResults
	}
	return limit, nil
}
