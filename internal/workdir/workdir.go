// Package workdir resolves the featuregate project root, supporting
// redirection via .featuregate-root files.
package workdir

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	// RootFile redirects root discovery to the path it contains
	RootFile = ".featuregate-root"
	// ConfigFile marks a project root
	ConfigFile = ".featuregate.yaml"
	// StateDir holds generated state (the index) under the root
	StateDir = ".featuregate"

	goModFile = "go.mod"
)

// ResolveBaseDir walks up from baseDir looking for a .featuregate-root or
// .featuregate.yaml. A .featuregate-root file wins and returns the path it
// contains (relative paths resolve against the file's directory). Without
// either marker the nearest directory holding a go.mod is used, and failing
// that baseDir itself.
func ResolveBaseDir(baseDir string) string {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return baseDir
	}

	moduleRoot := ""
	for dir := abs; ; {
		if target, ok := readRootFile(dir); ok {
			return target
		}
		if exists(filepath.Join(dir, ConfigFile)) {
			return dir
		}
		if moduleRoot == "" && exists(filepath.Join(dir, goModFile)) {
			moduleRoot = dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	if moduleRoot != "" {
		return moduleRoot
	}
	return baseDir
}

// ConfigPath returns the config file location under root
func ConfigPath(root string) string {
	return filepath.Join(root, ConfigFile)
}

// IndexPath returns the index database location under root
func IndexPath(root string) string {
	return filepath.Join(root, StateDir, "index.db")
}

func readRootFile(dir string) (string, bool) {
	content, err := os.ReadFile(filepath.Join(dir, RootFile))
	if err != nil {
		return "", false
	}
	resolved := strings.TrimSpace(string(content))
	if resolved == "" {
		return "", false
	}
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(dir, resolved)
	}
	return filepath.Clean(resolved), true
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
