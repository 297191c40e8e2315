package tools

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// DefaultReadMaxLines caps how much of a file a single read returns.
	DefaultReadMaxLines = 500

	// maxLineBytes caps a single scanned line. Longer lines are usually
	// minified or generated content and are truncated rather than failed.
	maxLineBytes = 1 << 20
)

// ReadFileTool reads a slice of a text file, confined to a root directory.
type ReadFileTool struct {
	root     string
	maxLines int
}

// NewReadFileTool creates a read_file tool rooted at the given directory.
func NewReadFileTool(root string) *ReadFileTool {
	return &ReadFileTool{root: root, maxLines: DefaultReadMaxLines}
}

// Metadata returns tool metadata.
func (t *ReadFileTool) Metadata() Metadata {
	return Metadata{
		Name:        "read_file",
		Description: "Read the contents of a file, up to max_lines lines starting at start_line",
		Parameters: []Parameter{
			{Name: "path", Type: "string", Description: "File path relative to the code directory", Required: true},
			{Name: "max_lines", Type: "integer", Description: "Maximum number of lines to return", Default: "500"},
			{Name: "start_line", Type: "integer", Description: "1-based line to start reading from", Default: "1"},
			{Name: "force", Type: "boolean", Description: "Re-read even when the file is already memorized", Default: "false"},
		},
	}
}

// Execute reads the requested slice of the file.
func (t *ReadFileTool) Execute(ctx context.Context, args Args) (string, error) {
	path, err := resolvePath(t.root, args.String("path", ""))
	if err != nil {
		return "", err
	}
	maxLines, err := args.Int("max_lines", t.maxLines)
	if err != nil {
		return "", err
	}
	if maxLines <= 0 || maxLines > t.maxLines {
		maxLines = t.maxLines
	}
	startLine, err := args.Int("start_line", 1)
	if err != nil {
		return "", err
	}
	if startLine < 1 {
		startLine = 1
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("cannot read %s: %w", args.String("path", ""), err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory, use list_dir", args.String("path", ""))
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("cannot read %s: %w", args.String("path", ""), err)
	}
	defer f.Close()

	var b strings.Builder
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	line, written := 0, 0
	truncated := false
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		line++
		if line < startLine {
			continue
		}
		if written >= maxLines {
			truncated = true
			break
		}
		b.WriteString(scanner.Text())
		b.WriteByte('\n')
		written++
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading %s: %w", args.String("path", ""), err)
	}
	if written == 0 {
		return fmt.Sprintf("(file has %d lines, nothing at start_line %d)", line, startLine), nil
	}
	if truncated {
		fmt.Fprintf(&b, "... (truncated at %d lines, file continues from line %d)\n", maxLines, line)
	}
	return b.String(), nil
}

// ListDirTool lists the entries of a directory inside the code root.
type ListDirTool struct {
	root string
}

// NewListDirTool creates a list_dir tool rooted at the given directory.
func NewListDirTool(root string) *ListDirTool {
	return &ListDirTool{root: root}
}

// Metadata returns tool metadata.
func (t *ListDirTool) Metadata() Metadata {
	return Metadata{
		Name:        "list_dir",
		Description: "List files and subdirectories of a directory",
		Parameters: []Parameter{
			{Name: "path", Type: "string", Description: "Directory path relative to the code directory", Default: "."},
		},
	}
}

// Execute lists the directory, directories first, each suffixed with /.
func (t *ListDirTool) Execute(ctx context.Context, args Args) (string, error) {
	path, err := resolvePath(t.root, args.String("path", "."))
	if err != nil {
		return "", err
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return "", fmt.Errorf("cannot list %s: %w", args.String("path", "."), err)
	}

	var dirs, files []string
	for _, e := range entries {
		if skippable(e.Name()) && e.IsDir() {
			continue
		}
		if e.IsDir() {
			dirs = append(dirs, e.Name()+"/")
		} else {
			files = append(files, e.Name())
		}
	}
	sort.Strings(dirs)
	sort.Strings(files)

	if len(dirs)+len(files) == 0 {
		return "(empty directory)", nil
	}
	return strings.Join(append(dirs, files...), "\n"), nil
}

// FileInfoTool reports size and line-count metadata for a file.
type FileInfoTool struct {
	root string
}

// NewFileInfoTool creates a get_file_info tool rooted at the given directory.
func NewFileInfoTool(root string) *FileInfoTool {
	return &FileInfoTool{root: root}
}

// Metadata returns tool metadata.
func (t *FileInfoTool) Metadata() Metadata {
	return Metadata{
		Name:        "get_file_info",
		Description: "Get size, line count and modification time for a file",
		Parameters: []Parameter{
			{Name: "path", Type: "string", Description: "File path relative to the code directory", Required: true},
		},
	}
}

// Execute stats the file and counts its lines.
func (t *FileInfoTool) Execute(ctx context.Context, args Args) (string, error) {
	path, err := resolvePath(t.root, args.String("path", ""))
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("cannot stat %s: %w", args.String("path", ""), err)
	}
	if info.IsDir() {
		return fmt.Sprintf("%s: directory, modified %s",
			args.String("path", ""), info.ModTime().Format("2006-01-02 15:04:05")), nil
	}

	lines, err := countLines(ctx, path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s: %d bytes, %d lines, extension %s, modified %s",
		args.String("path", ""), info.Size(), lines,
		extensionOf(path), info.ModTime().Format("2006-01-02 15:04:05")), nil
}

func countLines(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	n := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		n++
	}
	return n, scanner.Err()
}

func extensionOf(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return "(none)"
	}
	return ext
}
