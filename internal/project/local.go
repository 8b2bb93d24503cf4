package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"repoinsight/internal/fingerprint"
)

// Local is a repository checked out on disk. All reads are locked to its root.
type Local struct {
	ref     fingerprint.RepoRef
	absRoot string // absolute root with symlinks resolved
}

// Open binds a checkout directory to a repo identity. Owner and repo default to
// the parent and base directory names.
func Open(root string, ref fingerprint.RepoRef) (*Local, error) {
	if root == "" {
		return nil, errors.New("project: empty root")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	abs, err = filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project: %s is not a directory", root)
	}
	if ref.Repo == "" {
		ref.Repo = filepath.Base(abs)
	}
	if ref.Owner == "" {
		ref.Owner = filepath.Base(filepath.Dir(abs))
	}
	if ref.URL == "" {
		ref.URL = "file://" + filepath.ToSlash(abs)
	}
	return &Local{ref: ref, absRoot: abs}, nil
}

func (l *Local) ID() fingerprint.RepoRef { return l.ref }

func (l *Local) Root() string { return l.absRoot }

func (l *Local) ReadFile(name string) ([]byte, error) {
	p, err := l.resolve(name)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("project: %s is a directory", name)
	}
	return os.ReadFile(p)
}

func (l *Local) Exists(name string) bool {
	p, err := l.resolve(name)
	if err != nil {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

func (l *Local) resolve(name string) (string, error) {
	if l == nil {
		return "", errors.New("project: not opened")
	}
	if name == "" {
		return "", errors.New("project: empty path")
	}
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || (runtime.GOOS == "windows" && filepath.VolumeName(clean) != "") {
		return "", fmt.Errorf("project: absolute path %s not allowed", name)
	}
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", errors.New("project: path traversal not allowed")
	}
	resolved, err := filepath.EvalSymlinks(filepath.Join(l.absRoot, clean))
	if err != nil {
		return "", err
	}
	if !within(resolved, l.absRoot) {
		return "", fmt.Errorf("project: %s resolves outside %s", name, l.absRoot)
	}
	return resolved, nil
}

func within(path, root string) bool {
	path = filepath.Clean(path)
	root = filepath.Clean(root)
	if runtime.GOOS == "windows" {
		path = strings.ToLower(path)
		root = strings.ToLower(root)
	}
	if path == root {
		return true
	}
	sep := string(os.PathSeparator)
	if !strings.HasSuffix(root, sep) {
		root += sep
	}
	return strings.HasPrefix(path, root)
}
