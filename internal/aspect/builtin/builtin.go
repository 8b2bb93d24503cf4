// Package builtin holds the aspects, taggers and scorers shipped with repoinsight.
package builtin

import (
	"repoinsight/internal/aspect"
	"repoinsight/internal/fingerprint"
	"repoinsight/internal/store"
)

// Aspects in consolidation order. Language must follow the aspects it reads.
func Aspects() []fingerprint.Aspect {
	return []fingerprint.Aspect{
		GoModDependencies(),
		DockerBaseImages(),
		Language(),
	}
}

// Config is the default registry configuration. src backs workspace-specific taggers.
func Config(src store.FingerprintStore) aspect.Config {
	return aspect.Config{
		Aspects: Aspects(),
		Taggers: []aspect.TaggerDefinition{
			GoTagger(),
			DockerTagger(),
			HeavyDepsTagger(src),
		},
		RepositoryScorers: []aspect.RepositoryScorer{DependencyCountScorer()},
		WorkspaceScorers:  []aspect.WorkspaceScorer{EntropyScorer()},
	}
}
