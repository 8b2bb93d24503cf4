package builtin

import (
	"context"
	"fmt"

	"repoinsight/internal/aspect"
	"repoinsight/internal/fingerprint"
)

// DependencyCountScorer rates a Go module by its number of direct requirements.
// Up to 10 scores 100; every further dependency costs 2 points.
// It does not apply to repos without go.mod requirements.
func DependencyCountScorer() aspect.RepositoryScorer {
	return aspect.RepositoryScorer{
		Scorer: aspect.Scorer{Name: "dependency-count", Category: "dependencies"},
		ScoreFingerprints: func(_ context.Context, repo aspect.RepoToScore) (*aspect.ScorerReturn, error) {
			n := goDependencyCount(repo.Fingerprints)
			if n == 0 {
				return nil, nil
			}
			score := 100.0
			if n > 10 {
				score = max(0, 100-2*float64(n-10))
			}
			return &aspect.ScorerReturn{Score: score, Reason: fmt.Sprintf("%d direct Go dependencies", n)}, nil
		},
	}
}

// EntropyScorer rates a workspace by how consistent its fingerprint values are.
// High entropy kinds count fully against the score, medium ones half.
func EntropyScorer() aspect.WorkspaceScorer {
	return aspect.WorkspaceScorer{
		Scorer: aspect.Scorer{Name: "entropy", Category: "consistency"},
		Score: func(_ context.Context, ws aspect.WorkspaceToScore) (*aspect.ScorerReturn, error) {
			if len(ws.FingerprintUsage) == 0 {
				return nil, nil
			}
			var high, medium int
			for _, fu := range ws.FingerprintUsage {
				switch fu.EntropyBand {
				case fingerprint.EntropyHigh:
					high++
				case fingerprint.EntropyMedium:
					medium++
				}
			}
			total := float64(len(ws.FingerprintUsage))
			score := 100 * (1 - (float64(high)+0.5*float64(medium))/total)
			return &aspect.ScorerReturn{
				Score:  score,
				Reason: fmt.Sprintf("%d high and %d medium entropy kinds of %d", high, medium, len(ws.FingerprintUsage)),
			}, nil
		},
	}
}
