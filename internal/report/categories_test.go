package report

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repoinsight/internal/aspect"
	"repoinsight/internal/fingerprint"
)

func details(category string) *fingerprint.ReportDetails {
	return &fingerprint.ReportDetails{Category: category, Description: category + " facts"}
}

func testRegistry(t *testing.T) *aspect.Registry {
	t.Helper()
	off := false
	reg, err := aspect.NewRegistry(aspect.Config{Aspects: []fingerprint.Aspect{
		{Name: "node-version", DisplayName: "Node", Details: details("runtime")},
		{Name: "docker-base-image", DisplayName: "Base images", Details: details("build")},
		{Name: "gomod-dependency", DisplayName: "Go modules", Details: &fingerprint.ReportDetails{Category: "build", Unit: "module", Manage: &off}},
		{Name: "language"},
	}})
	require.NoError(t, err)
	return reg
}

func sampleRepos() []RepoFingerprints {
	return []RepoFingerprints{
		{Owner: "acme", Repo: "api", Fingerprints: []fingerprint.Kind{
			{Type: "gomod-dependency", Name: "golang.org/x/net"},
			{Type: "docker-base-image", Name: "alpine"},
			{Type: "language", Name: "language"},
		}},
		{Owner: "acme", Repo: "web", Fingerprints: []fingerprint.Kind{
			{Type: "node-version", Name: "node"},
			{Type: "docker-base-image", Name: "node"},
		}},
		{Owner: "acme", Repo: "docs"},
	}
}

func sampleUsage() []fingerprint.FingerprintUsage {
	return []fingerprint.FingerprintUsage{
		{Type: "docker-base-image", Name: "alpine", EntropyBand: fingerprint.EntropyHigh},
		{Type: "docker-base-image", Name: "node", EntropyBand: fingerprint.EntropyLow},
		{Type: "gomod-dependency", Name: "golang.org/x/net", EntropyBand: fingerprint.EntropyMedium},
		{Type: "node-version", Name: "node", EntropyBand: fingerprint.EntropyZero},
	}
}

func TestAspectReportsGroupsAndOrders(t *testing.T) {
	reports, err := AspectReports(context.Background(), sampleRepos(), sampleUsage(), testRegistry(t), "w1")
	require.NoError(t, err)

	require.Len(t, reports, 2)
	assert.Equal(t, "runtime", reports[0].Category)
	assert.Equal(t, 1, reports[0].Count)
	assert.Equal(t, "build", reports[1].Category)
	assert.Equal(t, 2, reports[1].Count)

	build := reports[1].Aspects
	require.Len(t, build, 2)
	assert.Equal(t, "docker-base-image", build[0].Type)
	assert.Equal(t, "Base images", build[0].Name)
	assert.Equal(t, "/api/v1/w1/fingerprint/docker-base-image/*", build[0].URL)
	assert.True(t, build[0].Manage)
	assert.Equal(t, 0, build[0].Order)
	assert.Equal(t, &EntropyBands{Type: "docker-base-image", Low: 1, High: 1}, build[0].EntropyBands)

	assert.Equal(t, "gomod-dependency", build[1].Type)
	assert.False(t, build[1].Manage)
	assert.Equal(t, 1, build[1].Order)
	assert.Equal(t, "module", build[1].Unit)
}

func TestAspectReportsIsDeterministic(t *testing.T) {
	reg := testRegistry(t)
	first, err := AspectReports(context.Background(), sampleRepos(), sampleUsage(), reg, "w1")
	require.NoError(t, err)
	for range 20 {
		again, err := AspectReports(context.Background(), sampleRepos(), sampleUsage(), reg, "w1")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

type slowRegistry struct {
	*aspect.Registry
	calls map[string]*atomic.Int32
	fail  string
}

func (s *slowRegistry) ReportDetailsOf(ctx context.Context, typ, ws string) (*fingerprint.ReportDetails, error) {
	s.calls[typ].Add(1)
	time.Sleep(10 * time.Millisecond)
	if typ == s.fail {
		return nil, errors.New("details backend down")
	}
	return s.Registry.ReportDetailsOf(ctx, typ, ws)
}

func TestAspectReportsResolvesDetailsOncePerKind(t *testing.T) {
	reg := &slowRegistry{Registry: testRegistry(t), calls: map[string]*atomic.Int32{}}
	var repos []RepoFingerprints
	for range 50 {
		repos = append(repos, RepoFingerprints{Owner: "acme", Repo: "r", Fingerprints: []fingerprint.Kind{
			{Type: "docker-base-image", Name: "alpine"},
			{Type: "gomod-dependency", Name: "golang.org/x/net"},
			{Type: "unknown", Name: "x"},
		}})
	}
	for _, typ := range []string{"docker-base-image", "gomod-dependency", "unknown"} {
		reg.calls[typ] = &atomic.Int32{}
	}

	reports, err := AspectReports(context.Background(), repos, nil, reg, "w1")
	require.NoError(t, err)
	for typ, n := range reg.calls {
		assert.Equal(t, int32(1), n.Load(), typ)
	}
	// unknown has no details and so no category.
	require.Len(t, reports, 1)
	assert.Equal(t, 50, reports[0].Count)
	assert.Equal(t, -1, reports[0].Aspects[0].Order)
	assert.Nil(t, reports[0].Aspects[0].EntropyBands)
}

func TestAspectReportsPropagatesLookupErrors(t *testing.T) {
	reg := &slowRegistry{Registry: testRegistry(t), calls: map[string]*atomic.Int32{}, fail: "node-version"}
	for _, typ := range []string{"gomod-dependency", "docker-base-image", "language", "node-version"} {
		reg.calls[typ] = &atomic.Int32{}
	}
	_, err := AspectReports(context.Background(), sampleRepos(), sampleUsage(), reg, "w1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node-version")
}

func TestEntropyOrder(t *testing.T) {
	order := entropyOrder([]fingerprint.FingerprintUsage{
		{Type: "b", EntropyBand: fingerprint.EntropyMedium},
		{Type: "a", EntropyBand: fingerprint.EntropyMedium},
		{Type: "c", EntropyBand: fingerprint.EntropyHigh},
		{Type: "d", EntropyBand: fingerprint.EntropyZero},
		{Type: "d", EntropyBand: fingerprint.EntropyZero},
	})
	var types []string
	for _, e := range order {
		types = append(types, e.Type)
	}
	assert.Equal(t, []string{"c", "a", "b", "d"}, types)
	assert.Equal(t, 2, order[3].Zero)
}
