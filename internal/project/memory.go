package project

import (
	"fmt"
	"io/fs"
	"path"

	"repoinsight/internal/fingerprint"
)

// InMemory is a project backed by a map of slash-separated paths to contents.
type InMemory struct {
	ref   fingerprint.RepoRef
	files map[string]string
}

func NewInMemory(ref fingerprint.RepoRef, files map[string]string) *InMemory {
	cp := make(map[string]string, len(files))
	for k, v := range files {
		cp[path.Clean(k)] = v
	}
	return &InMemory{ref: ref, files: cp}
}

func (m *InMemory) ID() fingerprint.RepoRef { return m.ref }

func (m *InMemory) ReadFile(name string) ([]byte, error) {
	content, ok := m.files[path.Clean(name)]
	if !ok {
		return nil, fmt.Errorf("project %s: %s: %w", m.ref.Key(), name, fs.ErrNotExist)
	}
	return []byte(content), nil
}

func (m *InMemory) Exists(name string) bool {
	_, ok := m.files[path.Clean(name)]
	return ok
}
