// Package fsutil provides file system helpers for source discovery.
package fsutil

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// FindSources recursively collects every .ato file under the given root.
// Hidden directories are skipped so a project's VCS metadata never feeds
// the compiler.
func FindSources(rootPath string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != rootPath && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), ".ato") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
