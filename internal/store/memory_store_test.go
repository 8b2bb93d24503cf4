package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repoinsight/internal/fingerprint"
)

func persist(t *testing.T, s Store, ws, repo string, fps ...fingerprint.FP) {
	t.Helper()
	err := s.Persist(context.Background(), RepoAnalysis{
		WorkspaceID: ws,
		Analyzed: fingerprint.Analyzed{
			ID:           fingerprint.RepoRef{Owner: "acme", Repo: repo, URL: "https://example.com/acme/" + repo},
			Fingerprints: fps,
		},
	})
	require.NoError(t, err)
}

func seed(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	persist(t, s, "w1", "api",
		fingerprint.MustOf("docker", "alpine", "3.19"),
		fingerprint.MustOf("gomod", "x/net", "v0.48.0"),
	)
	persist(t, s, "w1", "web",
		fingerprint.MustOf("docker", "alpine", "3.18"),
	)
	persist(t, s, "w1", "docs")
	persist(t, s, "w2", "tool",
		fingerprint.MustOf("docker", "alpine", "3.19"),
		fingerprint.MustOf("docker", "golang", "1.24"),
	)
	return s
}

func TestMemoryStorePersistValidates(t *testing.T) {
	s := NewMemoryStore()
	err := s.Persist(context.Background(), RepoAnalysis{WorkspaceID: "*", Analyzed: fingerprint.Analyzed{ID: fingerprint.RepoRef{Owner: "o", Repo: "r"}}})
	require.Error(t, err)
	err = s.Persist(context.Background(), RepoAnalysis{WorkspaceID: "w"})
	require.Error(t, err)
}

func TestMemoryStoreLoadReposScopes(t *testing.T) {
	s := seed(t)
	ctx := context.Background()

	w1, err := s.LoadRepos(ctx, Filter{WorkspaceID: "w1"})
	require.NoError(t, err)
	assert.Len(t, w1, 3)

	all, err := s.LoadRepos(ctx, Filter{WorkspaceID: AllWorkspaces})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	ra, err := s.Snapshot(ctx, SnapshotID("w1", fingerprint.RepoRef{Owner: "acme", Repo: "api"}))
	require.NoError(t, err)
	assert.Len(t, ra.Fingerprints, 2)
	_, err = s.Snapshot(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryStoreRepersistReplaces(t *testing.T) {
	s := seed(t)
	persist(t, s, "w1", "api")
	ra, err := s.Snapshot(context.Background(), SnapshotID("w1", fingerprint.RepoRef{Owner: "acme", Repo: "api"}))
	require.NoError(t, err)
	assert.Empty(t, ra.Fingerprints)
	all, err := s.LoadRepos(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestMemoryStoreUsage(t *testing.T) {
	s := seed(t)
	usage, err := s.FingerprintUsage(context.Background(), "w1", AllKinds)
	require.NoError(t, err)
	require.Len(t, usage, 2)
	assert.Equal(t, "docker", usage[0].Type)
	assert.Equal(t, 2, usage[0].Variants)
	assert.Equal(t, fingerprint.EntropyMedium, usage[0].EntropyBand)
	assert.Equal(t, fingerprint.EntropyZero, usage[1].EntropyBand)

	dockerOnly, err := s.FingerprintUsage(context.Background(), AllWorkspaces, "docker")
	require.NoError(t, err)
	assert.Len(t, dockerOnly, 2)

	kinds, err := s.DistinctFingerprintKinds(context.Background(), "w2")
	require.NoError(t, err)
	assert.Equal(t, []fingerprint.Kind{{Type: "docker", Name: "alpine"}, {Type: "docker", Name: "golang"}}, kinds)
}

func TestMemoryStoreValueRepoGroups(t *testing.T) {
	s := seed(t)
	groups, err := s.QueryValueRepoGroups(context.Background(), GroupQuery{
		WorkspaceID:    AllWorkspaces,
		Type:           "docker",
		Name:           "alpine",
		ByName:         true,
		IncludeWithout: true,
	})
	require.NoError(t, err)
	// 3.18, 3.19 and the without group.
	require.Len(t, groups, 3)
	total := 0
	for _, g := range groups {
		total += len(g.Repos)
	}
	assert.Equal(t, 4, total)
	last := groups[len(groups)-1]
	assert.True(t, last.Without())
	assert.Equal(t, "docs", last.Repos[0].Repo)

	allButAlpine, err := s.QueryValueRepoGroups(context.Background(), GroupQuery{
		WorkspaceID: "w2",
		Type:        "docker",
		Name:        "alpine",
	})
	require.NoError(t, err)
	require.Len(t, allButAlpine, 1)
	assert.Equal(t, "golang", allButAlpine[0].Fingerprint.Name)

	_, err = s.QueryValueRepoGroups(context.Background(), GroupQuery{})
	assert.Error(t, err)
}
