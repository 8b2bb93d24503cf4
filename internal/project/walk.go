package project

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

var skipDirs = map[string]bool{".git": true, "node_modules": true, "vendor": true, "dist": true, "build": true}

// Files lists regular files under the root, skipping VCS and dependency directories.
func (l *Local) Files(ctx context.Context) ([]string, error) {
	var files []string
	err := filepath.WalkDir(l.absRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if p != l.absRoot && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(l.absRoot, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func (m *InMemory) Files(_ context.Context) ([]string, error) {
	files := make([]string, 0, len(m.files))
	for name := range m.files {
		if !skipped(name) {
			files = append(files, name)
		}
	}
	sort.Strings(files)
	return files, nil
}

func skipped(name string) bool {
	parts := strings.Split(name, "/")
	for _, dir := range parts[:len(parts)-1] {
		if skipDirs[dir] {
			return true
		}
	}
	return false
}
