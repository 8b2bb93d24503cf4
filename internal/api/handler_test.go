package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repoinsight/internal/analysis"
	"repoinsight/internal/archive"
	"repoinsight/internal/aspect"
	"repoinsight/internal/aspect/builtin"
	"repoinsight/internal/fingerprint"
	"repoinsight/internal/report"
	"repoinsight/internal/store"
	"repoinsight/internal/tree"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	s := store.NewMemoryStore()
	add := func(ws, repo string, fps ...fingerprint.FP) {
		require.NoError(t, s.Persist(context.Background(), store.RepoAnalysis{
			WorkspaceID: ws,
			Analyzed: fingerprint.Analyzed{
				ID:           fingerprint.RepoRef{Owner: "acme", Repo: repo, URL: "https://example.com/acme/" + repo},
				Fingerprints: fps,
			},
		}))
	}
	add("w1", "api",
		fingerprint.MustOf(builtin.GoModType, "golang.org/x/sync", "v0.19.0"),
		fingerprint.MustOf(builtin.DockerBaseImageType, "alpine", "3.19"),
		fingerprint.MustOf(builtin.LanguageType, builtin.UsesGo, "go"),
	)
	add("w1", "web", fingerprint.MustOf(builtin.DockerBaseImageType, "alpine", "3.18"))
	add("w1", "docs")

	reg, err := aspect.NewRegistry(builtin.Config(s))
	require.NoError(t, err)
	arch := archive.NewMemoryArchive()
	_, err = archive.Save(context.Background(), arch, "w1", &analysis.Analysis{
		Analyzed: fingerprint.Analyzed{ID: fingerprint.RepoRef{Owner: "acme", Repo: "docs"}},
		Failures: []analysis.StageFailure{{Aspect: builtin.GoModType, Stage: analysis.StageExtract, Err: "parse go.mod"}},
	})
	require.NoError(t, err)

	srv := httptest.NewServer(NewMux(NewHandler(s, reg, arch)))
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, v any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK && v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp
}

func TestFingerprintTreeEndpoint(t *testing.T) {
	srv := newTestServer(t)

	var pt tree.PlantedTree
	resp := getJSON(t, srv.URL+"/api/v1/w1/fingerprint/docker-base-image/alpine?otherLabel=No%20Docker", &pt)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, pt.Circles, tree.Depth)
	assert.Equal(t, 3, tree.LeafSize(pt.Tree))

	last := pt.Tree.Children[len(pt.Tree.Children)-1]
	assert.Equal(t, "No Docker", last.Name)
	assert.Equal(t, "docs", last.Children[0].Name)
}

func TestCategoriesEndpoint(t *testing.T) {
	srv := newTestServer(t)
	var reports []report.AspectReport
	resp := getJSON(t, srv.URL+"/api/v1/w1/categories", &reports)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var categories []string
	for _, r := range reports {
		categories = append(categories, r.Category)
	}
	// Registration order: go modules, docker, language.
	assert.Equal(t, []string{"dependencies", "docker", "languages"}, categories)
	assert.Equal(t, 2, reports[1].Count)
	assert.Equal(t, "/api/v1/w1/fingerprint/docker-base-image/*", reports[1].Aspects[0].URL)
}

func TestReposAndScoreEndpoints(t *testing.T) {
	srv := newTestServer(t)

	var repos []map[string]any
	resp := getJSON(t, srv.URL+"/api/v1/w1/repos", &repos)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, repos, 3)
	first := repos[0]["weightedScore"].(map[string]any)
	assert.Equal(t, 100.0, first["score"])
	last := repos[2]["weightedScore"].(map[string]any)
	assert.Nil(t, last["score"])

	var score aspect.WeightedScore
	resp = getJSON(t, srv.URL+"/api/v1/w1/score", &score)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, score.Score)
	assert.Contains(t, score.WeightedScores, "entropy")
}

func TestTagsAndCORS(t *testing.T) {
	srv := newTestServer(t)
	var tags []aspect.Tag
	resp := getJSON(t, srv.URL+"/api/v1/tags", &tags)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, tags, 3)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/v1/tags", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	pre, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	pre.Body.Close()
	assert.Equal(t, "http://localhost:3000", pre.Header.Get("Access-Control-Allow-Origin"))
}

func TestBadByNameIsRejected(t *testing.T) {
	srv := newTestServer(t)
	resp := getJSON(t, srv.URL+"/api/v1/w1/fingerprint/docker-base-image/alpine?byName=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUsageEndpointFiltersByBand(t *testing.T) {
	srv := newTestServer(t)

	// alpine has two values over two repos: one bit of entropy.
	var usage []fingerprint.FingerprintUsage
	resp := getJSON(t, srv.URL+"/api/v1/w1/usage?band=Medium", &usage)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, usage, 1)
	assert.Equal(t, "alpine", usage[0].Name)
	assert.Equal(t, fingerprint.EntropyMedium, usage[0].EntropyBand)

	usage = nil
	resp = getJSON(t, srv.URL+"/api/v1/w1/usage?type=gomod-dependency", &usage)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, usage, 1)
	assert.Equal(t, fingerprint.EntropyZero, usage[0].EntropyBand)

	resp = getJSON(t, srv.URL+"/api/v1/w1/usage?band=huge", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAnalysesEndpoints(t *testing.T) {
	srv := newTestServer(t)

	var keys []string
	resp := getJSON(t, srv.URL+"/api/v1/w1/analyses", &keys)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"analyses/acme/docs.json"}, keys)

	var an analysis.Analysis
	resp = getJSON(t, srv.URL+"/api/v1/w1/analyses/acme/docs", &an)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, an.Failures, 1)
	assert.Equal(t, analysis.StageExtract, an.Failures[0].Stage)

	resp = getJSON(t, srv.URL+"/api/v1/w1/analyses/acme/api", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = getJSON(t, srv.URL+"/api/v1/*/analyses", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
