package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"repoinsight/internal/fingerprint"
)

const (
	// AllWorkspaces selects every workspace.
	AllWorkspaces = "*"
	// AllKinds selects every fingerprint type in usage queries.
	AllKinds = "*"
)

var ErrNotFound = errors.New("not found")

// RepoAnalysis is one persisted analysis of a repo in a workspace.
type RepoAnalysis struct {
	SnapshotID  string `json:"snapshotId"`
	WorkspaceID string `json:"workspaceId"`
	fingerprint.Analyzed
	Timestamp time.Time `json:"timestamp"`
}

// Filter scopes repo queries. An empty or "*" WorkspaceID matches every workspace.
type Filter struct {
	WorkspaceID string
	Owner       string
}

func (f Filter) matches(ra RepoAnalysis) bool {
	if !inWorkspace(f.WorkspaceID, ra.WorkspaceID) {
		return false
	}
	return f.Owner == "" || f.Owner == ra.ID.Owner
}

func inWorkspace(scope, workspaceID string) bool {
	return IsAllWorkspaces(scope) || scope == workspaceID
}

func IsAllWorkspaces(workspaceID string) bool {
	ws := strings.TrimSpace(workspaceID)
	return ws == "" || ws == AllWorkspaces
}

// GroupQuery selects the fingerprint values of one kind to group repos by.
type GroupQuery struct {
	WorkspaceID string
	Type        string
	Name        string
	// ByName selects fingerprints named Name; otherwise every name except Name.
	ByName bool
	// IncludeWithout adds one group of repos holding no matching fingerprint.
	IncludeWithout bool
}

func (q GroupQuery) matchesName(name string) bool {
	if q.ByName {
		return name == q.Name
	}
	return name != q.Name
}

// ValueRepoGroup is a distinct fingerprint value and the repos holding exactly it.
// Fingerprint is nil for the group of repos without any matching fingerprint.
type ValueRepoGroup struct {
	Fingerprint *fingerprint.FP       `json:"fingerprint,omitempty"`
	Repos       []fingerprint.RepoRef `json:"repos"`
}

func (g ValueRepoGroup) Without() bool { return g.Fingerprint == nil }

// FingerprintStore is the query contract the reports consume.
type FingerprintStore interface {
	LoadRepos(ctx context.Context, f Filter) ([]RepoAnalysis, error)
	// FingerprintUsage accepts "*" as kind to mean every type.
	FingerprintUsage(ctx context.Context, workspaceID, kind string) ([]fingerprint.FingerprintUsage, error)
	DistinctFingerprintKinds(ctx context.Context, workspaceID string) ([]fingerprint.Kind, error)
	QueryValueRepoGroups(ctx context.Context, q GroupQuery) ([]ValueRepoGroup, error)
}

// Store adds the write path used by batch analysis.
type Store interface {
	FingerprintStore
	Persist(ctx context.Context, ra RepoAnalysis) error
	// Snapshot returns ErrNotFound for unknown ids.
	Snapshot(ctx context.Context, snapshotID string) (RepoAnalysis, error)
	Close() error
}

// SnapshotID is the stable identity of a repo within a workspace.
func SnapshotID(workspaceID string, ref fingerprint.RepoRef) string {
	return workspaceID + ":" + ref.Key()
}
