package source

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Tree calls visit for every .go file under root. vendor, testdata, hidden
// and _-prefixed directories are skipped, as is anything matching one of
// the exclude patterns (matched against the slash path relative to root and
// against the base name).
func Tree(root string, exclude []string, visit func(path string) error) error {
	return walk(root, exclude, "", func(path string, d fs.DirEntry) error {
		if !isGoFile(d.Name()) {
			return nil
		}
		return visit(path)
	})
}

// Files expands paths into the .go files they name. Directories are walked
// with Tree; files are taken as given.
func Files(paths []string, exclude []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = Tree(p, exclude, func(path string) error {
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

// SkipFile may be returned by a Process callback to leave a file out of the
// mirror without stopping the walk.
var SkipFile = errors.New("skip this file")

// Process mirrors root into out: .go files are passed through fn, other
// files are copied unchanged, so the output stays a buildable tree. out may
// live inside root; it is never walked.
func Process(root, out string, exclude []string, fn func(path string, src []byte) ([]byte, error)) error {
	absOut, err := filepath.Abs(out)
	if err != nil {
		return err
	}

	return walk(root, exclude, absOut, func(path string, d fs.DirEntry) error {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		data := src
		if isGoFile(d.Name()) {
			if data, err = fn(path, src); err != nil {
				if errors.Is(err, SkipFile) {
					return nil
				}
				return err
			}
		}
		return writeMirrored(filepath.Join(out, rel), data)
	})
}

func walk(root string, exclude []string, skip string, visit func(path string, d fs.DirEntry) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		excluded := matches(exclude, filepath.ToSlash(rel), d.Name())

		if d.IsDir() {
			if excluded || skipDir(d.Name()) {
				return filepath.SkipDir
			}
			if skip != "" {
				if abs, err := filepath.Abs(path); err == nil && abs == skip {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if excluded || !d.Type().IsRegular() {
			return nil
		}
		return visit(path, d)
	})
}

// Skipped reports whether Tree would skip path, a file or directory below
// root.
func Skipped(root, path string, isDir bool, exclude []string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return true
	}
	if rel == "." {
		return false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	for i, name := range parts {
		last := i == len(parts)-1
		if matches(exclude, strings.Join(parts[:i+1], "/"), name) {
			return true
		}
		if (!last || isDir) && skipDir(name) {
			return true
		}
	}
	return false
}

// IsGoFile reports whether name is a Go source file
func IsGoFile(name string) bool {
	return isGoFile(name)
}

func skipDir(name string) bool {
	switch name {
	case "vendor", "testdata":
		return true
	}
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}

func isGoFile(name string) bool {
	return strings.HasSuffix(name, ".go") && !strings.HasPrefix(name, ".")
}

func matches(patterns []string, rel, base string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, rel); ok {
			return true
		}
		if ok, _ := filepath.Match(p, base); ok {
			return true
		}
	}
	return false
}

func writeMirrored(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	return os.WriteFile(path, data, 0644)
}
