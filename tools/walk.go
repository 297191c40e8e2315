package tools

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// skipDirs are directory names never descended into when walking a codebase.
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	".git":         true,
}

// skippable reports whether a directory entry should be pruned from a walk.
// Hidden directories are skipped except the walk root itself.
func skippable(name string) bool {
	if skipDirs[name] {
		return true
	}
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

// walkFiles walks the tree under root calling fn for every regular file, in
// lexical order, pruning skippable directories. fn receives the path relative
// to root using forward slashes. Returning filepath.SkipAll from fn stops the
// walk early.
func walkFiles(root string, fn func(rel string, d fs.DirEntry) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped, not fatal.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && skippable(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		return fn(filepath.ToSlash(rel), d)
	})
}

// resolvePath joins a possibly-relative path against root and verifies the
// result stays inside root. Tools use this to confine the model to the
// configured code directory.
func resolvePath(root, path string) (string, error) {
	if path == "" || path == "." {
		return root, nil
	}
	candidate := path
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(root, candidate)
	}
	candidate = filepath.Clean(candidate)
	rel, err := filepath.Rel(root, candidate)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside the code directory", path)
	}
	return candidate, nil
}
