package archive

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

type MemoryArchive struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{data: make(map[string][]byte)}
}

func (s *MemoryArchive) Put(_ context.Context, workspaceID, key string, content []byte) error {
	workspaceID, key, err := validate(workspaceID, key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[objectKey(workspaceID, key)] = append([]byte(nil), content...)
	return nil
}

func (s *MemoryArchive) Get(_ context.Context, workspaceID, key string) ([]byte, error) {
	workspaceID, key, err := validate(workspaceID, key)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.data[objectKey(workspaceID, key)]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", workspaceID, key, ErrNotFound)
	}
	return append([]byte(nil), raw...), nil
}

func (s *MemoryArchive) List(_ context.Context, workspaceID string) ([]string, error) {
	workspaceID = strings.TrimSpace(workspaceID)
	if workspaceID == "" {
		return nil, fmt.Errorf("workspace_id is required")
	}
	prefix := workspaceID + "/"
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, 16)
	for key := range s.data {
		if strings.HasPrefix(key, prefix) {
			out = append(out, strings.TrimPrefix(key, prefix))
		}
	}
	sort.Strings(out)
	return out, nil
}
