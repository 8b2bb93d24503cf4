package builtin

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"

	"repoinsight/internal/aspect"
	"repoinsight/internal/store"
)

// HeavyDepsPercentile is the workspace percentile above which a repo is tagged heavy-deps.
const HeavyDepsPercentile = 90

func hasFingerprint(typ, name string) aspect.TagTest {
	return func(_ context.Context, repo aspect.RepoToScore) (bool, error) {
		for _, fp := range repo.Fingerprints {
			if fp.Type == typ && (name == "" || fp.Name == name) {
				return true, nil
			}
		}
		return false, nil
	}
}

func GoTagger() aspect.Tagger {
	return aspect.Tagger{
		Tag: aspect.Tag{Name: "go", Description: "Go module", Severity: aspect.SeverityInfo},
		// The language stage only emits uses-go after go.mod requirements were found.
		Test: hasFingerprint(LanguageType, UsesGo),
	}
}

func DockerTagger() aspect.Tagger {
	return aspect.Tagger{
		Tag:  aspect.Tag{Name: "docker", Description: "Built from a Dockerfile", Severity: aspect.SeverityInfo},
		Test: hasFingerprint(DockerBaseImageType, ""),
	}
}

// HeavyDepsTagger tags repos whose direct Go dependency count is above the
// workspace's HeavyDepsPercentile. The threshold is computed once per workspace.
func HeavyDepsTagger(src store.FingerprintStore) aspect.WorkspaceSpecificTagger {
	return aspect.WorkspaceSpecificTagger{
		Tag: aspect.Tag{
			Name:        "heavy-deps",
			Parent:      "go",
			Description: fmt.Sprintf("More direct Go dependencies than %d%% of the workspace", HeavyDepsPercentile),
			Severity:    aspect.SeverityWarning,
		},
		CreateTest: func(ctx context.Context, workspaceID string, _ *aspect.Registry) (aspect.TagTest, error) {
			repos, err := src.LoadRepos(ctx, store.Filter{WorkspaceID: workspaceID})
			if err != nil {
				return nil, fmt.Errorf("load repos of %s: %w", workspaceID, err)
			}
			counts := make([]int, 0, len(repos))
			for _, ra := range repos {
				if n := goDependencyCount(ra.Fingerprints); n > 0 {
					counts = append(counts, n)
				}
			}
			threshold := percentile(counts, HeavyDepsPercentile)
			log.Printf("heavy-deps: workspace %s threshold %d over %d repos", workspaceID, threshold, len(counts))
			return func(_ context.Context, repo aspect.RepoToScore) (bool, error) {
				n := goDependencyCount(repo.Fingerprints)
				return n > 0 && n > threshold, nil
			}, nil
		},
	}
}

// percentile uses the nearest-rank method. It is 0 for no values.
func percentile(values []int, p int) int {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]int(nil), values...)
	sort.Ints(sorted)
	rank := int(math.Ceil(float64(p) / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}
