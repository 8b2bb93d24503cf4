package builtin

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repoinsight/internal/analysis"
	"repoinsight/internal/aspect"
	"repoinsight/internal/fingerprint"
	"repoinsight/internal/project"
	"repoinsight/internal/store"
)

const goMod = `module example.com/api

go 1.24

require (
	github.com/jackc/pgx/v5 v5.7.2
	golang.org/x/sync v0.19.0
	golang.org/x/text v0.31.0 // indirect
)
`

const dockerfile = `FROM --platform=linux/amd64 golang:1.24 AS build
RUN go build ./...
FROM build AS test
FROM registry.local:5000/base/alpine:3.19
FROM scratch
COPY --from=build /out /app
`

func kinds(fps []fingerprint.FP) []string {
	var out []string
	for _, fp := range fps {
		out = append(out, fp.Type+"/"+fp.Name)
	}
	return out
}

func TestBuiltinAspectsAnalyzeProject(t *testing.T) {
	p := project.NewInMemory(fingerprint.RepoRef{Owner: "acme", Repo: "api"}, map[string]string{
		"go.mod":     goMod,
		"Dockerfile": dockerfile,
	})
	res, err := analysis.NewAnalyzer(Aspects()).Analyze(context.Background(), p)
	require.NoError(t, err)
	assert.Empty(t, res.Failures)
	assert.Equal(t, []string{
		"gomod-dependency/github.com/jackc/pgx/v5",
		"gomod-dependency/golang.org/x/sync",
		"docker-base-image/golang",
		"docker-base-image/registry.local:5000/base/alpine",
		"language/uses-go",
		"language/uses-docker",
	}, kinds(res.Fingerprints))

	v, ok := res.Fingerprints[3].DataString()
	require.True(t, ok)
	assert.Equal(t, "3.19", v)
}

func TestBuiltinAspectsSkipMissingFiles(t *testing.T) {
	p := project.NewInMemory(fingerprint.RepoRef{Owner: "acme", Repo: "docs"}, map[string]string{"README.md": "# docs"})
	res, err := analysis.NewAnalyzer(Aspects()).Analyze(context.Background(), p)
	require.NoError(t, err)
	assert.Empty(t, res.Fingerprints)
	assert.Empty(t, res.Failures)
}

func TestBaseImagesFollowDockerfileSyntax(t *testing.T) {
	fps, err := baseImages([]byte(`# syntax=docker/dockerfile:1
ARG BASE_IMAGE=alpine:3.19
FROM --platform=$BUILDPLATFORM \
    golang:1.22 AS build
FROM ${BASE_IMAGE}
from node@sha256:abc as web
FROM web
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"docker-base-image/golang", "docker-base-image/node"}, kinds(fps))

	v, ok := fps[0].DataString()
	require.True(t, ok)
	assert.Equal(t, "1.22", v)
	v, ok = fps[1].DataString()
	require.True(t, ok)
	assert.Equal(t, "sha256:abc", v)
}

func TestBaseImagesWithoutInstructions(t *testing.T) {
	fps, err := baseImages([]byte("# nothing here\n"))
	require.NoError(t, err)
	assert.Empty(t, fps)
}

func TestSplitRef(t *testing.T) {
	image, tag := splitRef("registry.local:5000/base/alpine")
	assert.Equal(t, "registry.local:5000/base/alpine", image)
	assert.Empty(t, tag)
}

func TestPercentile(t *testing.T) {
	assert.Equal(t, 0, percentile(nil, 90))
	assert.Equal(t, 9, percentile([]int{10, 1, 2, 3, 4, 5, 6, 7, 8, 9}, 90))
	assert.Equal(t, 5, percentile([]int{5}, 90))
}

func goRepo(name string, deps int) fingerprint.Analyzed {
	var fps []fingerprint.FP
	for i := range deps {
		fps = append(fps, fingerprint.MustOf(GoModType, fmt.Sprintf("example.com/dep%d", i), "v1.0.0"))
	}
	if deps > 0 {
		fps = append(fps, fingerprint.MustOf(LanguageType, UsesGo, "go"))
	}
	return fingerprint.Analyzed{ID: fingerprint.RepoRef{Owner: "acme", Repo: name}, Fingerprints: fps}
}

func TestBuiltinRegistryTagsAndScores(t *testing.T) {
	s := store.NewMemoryStore()
	var repos []aspect.RepoToScore
	for i := 1; i <= 10; i++ {
		r := goRepo(fmt.Sprintf("r%02d", i), i*3)
		repos = append(repos, r)
		require.NoError(t, s.Persist(context.Background(), store.RepoAnalysis{WorkspaceID: "w1", Analyzed: r}))
	}
	repos = append(repos, goRepo("empty", 0))

	reg, err := aspect.NewRegistry(Config(s))
	require.NoError(t, err)

	scored, err := reg.TagAndScoreRepos(context.Background(), "w1", repos, aspect.TagAndScoreOptions{})
	require.NoError(t, err)
	require.Len(t, scored, 11)

	tagNames := func(r aspect.ScoredRepo) []string {
		var out []string
		for _, tag := range r.Tags {
			out = append(out, tag.Name)
		}
		return out
	}
	// Threshold is 27, the 90th percentile of 3..30.
	assert.ElementsMatch(t, []string{"go", "heavy-deps"}, tagNames(scored[9]))
	assert.ElementsMatch(t, []string{"go"}, tagNames(scored[8]))
	assert.Empty(t, tagNames(scored[10]))

	require.NotNil(t, scored[0].WeightedScore.Score)
	assert.Equal(t, 100.0, *scored[0].WeightedScore.Score)
	require.NotNil(t, scored[9].WeightedScore.Score)
	assert.Equal(t, 60.0, *scored[9].WeightedScore.Score)
	assert.Nil(t, scored[10].WeightedScore.Score)

	usage, err := s.FingerprintUsage(context.Background(), "w1", store.AllKinds)
	require.NoError(t, err)
	ws, err := reg.ScoreWorkspace(context.Background(), "w1", aspect.WorkspaceSummary(usage, scored))
	require.NoError(t, err)
	require.NotNil(t, ws.Score)
	assert.Equal(t, 100.0, *ws.Score)
}

func TestNestedManifestsSetPath(t *testing.T) {
	p := project.NewInMemory(fingerprint.RepoRef{Owner: "acme", Repo: "mono"}, map[string]string{
		"go.mod":                  goMod,
		"services/billing/go.mod": "module example.com/billing\n\nrequire golang.org/x/sync v0.19.0\n",
		"vendor/x/go.mod":         "module x\n\nrequire example.com/ignored v1.0.0\n",
	})
	res, err := analysis.NewAnalyzer(Aspects()).Analyze(context.Background(), p)
	require.NoError(t, err)

	paths := map[string]int{}
	for _, fp := range res.Fingerprints {
		if fp.Type == GoModType {
			paths[fp.Path]++
		}
	}
	assert.Equal(t, map[string]int{"": 2, "services/billing": 1}, paths)

	reg, err := aspect.NewRegistry(aspect.Config{RepositoryScorers: []aspect.RepositoryScorer{DependencyCountScorer()}})
	require.NoError(t, err)
	scored, err := reg.TagAndScoreRepos(context.Background(), "w1", []aspect.RepoToScore{res.Analyzed}, aspect.TagAndScoreOptions{})
	require.NoError(t, err)
	entry := scored[0].WeightedScore.WeightedScores["dependency-count"]
	require.NotNil(t, entry.Score)
	assert.Equal(t, 100.0, *entry.Score)
}
