package aspect

import (
	"context"
	"sort"

	"repoinsight/internal/fingerprint"
)

// ScorerReturn is a scorer's opinion. A nil *ScorerReturn means "not applicable".
type ScorerReturn struct {
	Score  float64
	Reason string
}

// Scorer is metadata shared by repository and workspace scorers.
type Scorer struct {
	Name     string
	Category string
	// Weight defaults to 1 when zero.
	Weight float64
}

func (s Scorer) weight() float64 {
	if s.Weight <= 0 {
		return 1
	}
	return s.Weight
}

type RepositoryScorer struct {
	Scorer
	// BaseOnly scorers only see fingerprints at the repo base.
	BaseOnly bool
	// ScoreAll scorers run once over every fingerprint, ignoring sub-project paths.
	ScoreAll          bool
	ScoreFingerprints func(ctx context.Context, repo RepoToScore) (*ScorerReturn, error)
}

// WorkspaceRepo is an already scored repo of a workspace.
type WorkspaceRepo struct {
	URL   string   `json:"url"`
	Owner string   `json:"owner"`
	Repo  string   `json:"repo"`
	Score *float64 `json:"score,omitempty"`
}

// WorkspaceToScore is what workspace scorers evaluate.
type WorkspaceToScore struct {
	FingerprintUsage []fingerprint.FingerprintUsage `json:"fingerprintUsage"`
	Repos            []WorkspaceRepo                `json:"repos"`
}

type WorkspaceScorer struct {
	Scorer
	Score func(ctx context.Context, ws WorkspaceToScore) (*ScorerReturn, error)
}

// ScoreEntry is one scorer's contribution. A nil Score means the scorer did not apply.
type ScoreEntry struct {
	Name     string   `json:"name"`
	Category string   `json:"category,omitempty"`
	Score    *float64 `json:"score"`
	Weight   float64  `json:"weight"`
	Reason   string   `json:"reason,omitempty"`
}

// WeightedScore is the weight-normalized mean of applicable entries.
// Score is nil when nothing applied.
type WeightedScore struct {
	Score          *float64              `json:"score"`
	WeightedScores map[string]ScoreEntry `json:"weightedScores"`
}

// Combine averages applicable entries by weight. Inapplicable entries are kept
// for display but never count as zero.
func Combine(entries []ScoreEntry) WeightedScore {
	ws := WeightedScore{WeightedScores: make(map[string]ScoreEntry, len(entries))}
	var sum, weights float64
	for _, e := range entries {
		if e.Weight <= 0 {
			e.Weight = 1
		}
		ws.WeightedScores[e.Name] = e
		if e.Score == nil {
			continue
		}
		sum += *e.Score * e.Weight
		weights += e.Weight
	}
	if weights > 0 {
		v := sum / weights
		ws.Score = &v
	}
	return ws
}

// Applicable returns the names of entries that produced a score, sorted.
func (w WeightedScore) Applicable() []string {
	var names []string
	for name, e := range w.WeightedScores {
		if e.Score != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func inCategory(category string, s Scorer) bool {
	return category == "" || category == "*" || s.Category == category
}
