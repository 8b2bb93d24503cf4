package store

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"repoinsight/internal/fingerprint"
)

// MemoryStore keeps analyses in process. Snapshots are keyed by SnapshotID and
// replaced on re-persist.
type MemoryStore struct {
	mu    sync.RWMutex
	byID  map[string]RepoAnalysis
	order []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]RepoAnalysis)}
}

func (s *MemoryStore) Persist(_ context.Context, ra RepoAnalysis) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	ra.WorkspaceID = strings.TrimSpace(ra.WorkspaceID)
	if ra.WorkspaceID == "" || ra.WorkspaceID == AllWorkspaces {
		return fmt.Errorf("workspace_id is required")
	}
	if ra.ID.Owner == "" || ra.ID.Repo == "" {
		return fmt.Errorf("repo owner and name are required")
	}
	if ra.SnapshotID == "" {
		ra.SnapshotID = SnapshotID(ra.WorkspaceID, ra.ID)
	}
	ra.Fingerprints = slices.Clone(ra.Fingerprints)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[ra.SnapshotID]; !ok {
		s.order = append(s.order, ra.SnapshotID)
	}
	s.byID[ra.SnapshotID] = ra
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) Snapshot(_ context.Context, snapshotID string) (RepoAnalysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ra, ok := s.byID[snapshotID]
	if !ok {
		return RepoAnalysis{}, fmt.Errorf("snapshot %s: %w", snapshotID, ErrNotFound)
	}
	ra.Fingerprints = slices.Clone(ra.Fingerprints)
	return ra, nil
}

// scoped returns matching snapshots in insertion order.
func (s *MemoryStore) scoped(f Filter) []RepoAnalysis {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RepoAnalysis, 0, len(s.order))
	for _, id := range s.order {
		ra := s.byID[id]
		if f.matches(ra) {
			out = append(out, ra)
		}
	}
	return out
}

func (s *MemoryStore) LoadRepos(_ context.Context, f Filter) ([]RepoAnalysis, error) {
	repos := s.scoped(f)
	for i := range repos {
		repos[i].Fingerprints = slices.Clone(repos[i].Fingerprints)
	}
	return repos, nil
}

func (s *MemoryStore) FingerprintUsage(_ context.Context, workspaceID, kind string) ([]fingerprint.FingerprintUsage, error) {
	counts := map[fingerprint.Kind]map[string]int{}
	for _, ra := range s.scoped(Filter{WorkspaceID: workspaceID}) {
		// A repo holding the same value twice counts once.
		seen := map[string]bool{}
		for _, fp := range ra.Fingerprints {
			if kind != AllKinds && kind != "" && fp.Type != kind {
				continue
			}
			key := fp.Type + "\x00" + fp.Name + "\x00" + fp.SHA
			if seen[key] {
				continue
			}
			seen[key] = true
			k := fp.Kind()
			if counts[k] == nil {
				counts[k] = map[string]int{}
			}
			counts[k][fp.SHA]++
		}
	}
	return fingerprint.UsageOf(counts), nil
}

func (s *MemoryStore) DistinctFingerprintKinds(_ context.Context, workspaceID string) ([]fingerprint.Kind, error) {
	set := map[fingerprint.Kind]bool{}
	for _, ra := range s.scoped(Filter{WorkspaceID: workspaceID}) {
		for _, fp := range ra.Fingerprints {
			set[fp.Kind()] = true
		}
	}
	return sortedKinds(set), nil
}

func (s *MemoryStore) QueryValueRepoGroups(_ context.Context, q GroupQuery) ([]ValueRepoGroup, error) {
	if strings.TrimSpace(q.Type) == "" {
		return nil, fmt.Errorf("fingerprint type is required")
	}
	type group struct {
		fp    fingerprint.FP
		repos []fingerprint.RepoRef
		seen  map[string]bool
	}
	groups := map[string]*group{}
	var without []fingerprint.RepoRef

	for _, ra := range s.scoped(Filter{WorkspaceID: q.WorkspaceID}) {
		matched := false
		for _, fp := range ra.Fingerprints {
			if fp.Type != q.Type || !q.matchesName(fp.Name) {
				continue
			}
			matched = true
			key := fp.Name + "\x00" + fp.SHA
			g, ok := groups[key]
			if !ok {
				g = &group{fp: fp, seen: map[string]bool{}}
				g.fp.Path = ""
				groups[key] = g
			}
			if !g.seen[ra.SnapshotID] {
				g.seen[ra.SnapshotID] = true
				g.repos = append(g.repos, ra.ID)
			}
		}
		if !matched {
			without = append(without, ra.ID)
		}
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]ValueRepoGroup, 0, len(keys)+1)
	for _, k := range keys {
		g := groups[k]
		fp := g.fp
		out = append(out, ValueRepoGroup{Fingerprint: &fp, Repos: g.repos})
	}
	if q.IncludeWithout && len(without) > 0 {
		out = append(out, ValueRepoGroup{Repos: without})
	}
	return out, nil
}

func sortedKinds(set map[fingerprint.Kind]bool) []fingerprint.Kind {
	out := make([]fingerprint.Kind, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Name < out[j].Name
	})
	return out
}
