package registry

import (
	"fmt"
	"os"
	"path/filepath"
)

// Registry resolves import paths to normalized absolute file locations.
type Registry struct {
	project *Project
}

// New creates a registry for one project.
func New(project *Project) *Registry {
	return &Registry{project: project}
}

// Project returns the project the registry resolves against.
func (r *Registry) Project() *Project { return r.project }

// Resolve maps an import path as written in source to a normalized absolute
// path. Relative paths resolve against the importing file's directory; bare
// paths resolve against the project root, then the bundled standard-library
// directory. The caller wraps a miss into an ImportNotFoundError carrying
// the import's source span.
func (r *Registry) Resolve(importPath, fromFile string) (string, error) {
	var candidates []string
	if filepath.IsAbs(importPath) {
		candidates = []string{filepath.Clean(importPath)}
	} else {
		candidates = append(candidates, filepath.Join(filepath.Dir(fromFile), importPath))
		if r.project != nil {
			candidates = append(candidates, filepath.Join(r.project.Root, importPath))
			if r.project.Stdlib != "" {
				candidates = append(candidates, filepath.Join(r.project.Stdlib, importPath))
			}
		}
	}

	for _, c := range candidates {
		abs, err := filepath.Abs(c)
		if err != nil {
			continue
		}
		if info, err := os.Stat(abs); err == nil && !info.IsDir() {
			return abs, nil
		}
	}
	return "", fmt.Errorf("import %q not found (searched %d locations)", importPath, len(candidates))
}

// Normalize returns the canonical absolute form of a path, used as the
// build-cache key.
func Normalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("normalizing path %s: %w", path, err)
	}
	return filepath.Clean(abs), nil
}
