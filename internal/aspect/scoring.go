package aspect

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"repoinsight/internal/fingerprint"
)

func (r *Registry) repositoryScorers(category string) []RepositoryScorer {
	out := make([]RepositoryScorer, 0, len(r.scorers))
	for _, s := range r.scorers {
		if inCategory(category, s.Scorer) {
			out = append(out, s)
		}
	}
	return out
}

func scoreRepo(ctx context.Context, repo RepoToScore, scorers []RepositoryScorer) WeightedScore {
	entries := make([]ScoreEntry, 0, len(scorers))
	for _, s := range scorers {
		entries = append(entries, runRepositoryScorer(ctx, repo, s))
	}
	return Combine(entries)
}

// runRepositoryScorer applies a scorer per sub-project path and averages the
// applicable results. ScoreAll scorers run once; BaseOnly scorers only see the base.
func runRepositoryScorer(ctx context.Context, repo RepoToScore, s RepositoryScorer) ScoreEntry {
	entry := ScoreEntry{Name: s.Name, Category: s.Category, Weight: s.weight()}

	var groups []RepoToScore
	switch {
	case s.ScoreAll:
		groups = []RepoToScore{repo}
	case s.BaseOnly:
		groups = []RepoToScore{{ID: repo.ID, Fingerprints: byPath(repo.Fingerprints)[""]}}
	default:
		groups = splitByPath(repo)
	}

	var sum float64
	var n int
	var reasons []string
	for _, g := range groups {
		res, err := safeScore(func() (*ScorerReturn, error) { return s.ScoreFingerprints(ctx, g) })
		if err != nil {
			log.Printf("scorer %s: %s: %v", s.Name, g.ID.Key(), err)
			continue
		}
		if res == nil {
			continue
		}
		sum += res.Score
		n++
		if res.Reason != "" {
			reasons = append(reasons, res.Reason)
		}
	}
	if n > 0 {
		v := sum / float64(n)
		entry.Score = &v
		entry.Reason = strings.Join(reasons, "; ")
	}
	return entry
}

func byPath(fps []fingerprint.FP) map[string][]fingerprint.FP {
	out := map[string][]fingerprint.FP{}
	for _, fp := range fps {
		out[fp.Path] = append(out[fp.Path], fp)
	}
	return out
}

// splitByPath always yields the base group, even when it holds no fingerprints.
func splitByPath(repo RepoToScore) []RepoToScore {
	groups := byPath(repo.Fingerprints)
	paths := make([]string, 0, len(groups)+1)
	if _, ok := groups[""]; !ok {
		paths = append(paths, "")
	}
	for p := range groups {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	out := make([]RepoToScore, 0, len(paths))
	for _, p := range paths {
		id := repo.ID
		if p != "" {
			id.Path = p
		}
		out = append(out, RepoToScore{ID: id, Fingerprints: groups[p]})
	}
	return out
}

func safeScore(fn func() (*ScorerReturn, error)) (res *ScorerReturn, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			res, err = nil, fmt.Errorf("panic: %v", rec)
		}
	}()
	return fn()
}

// ScoreWorkspace runs every workspace scorer and combines them like repo scores.
func (r *Registry) ScoreWorkspace(ctx context.Context, workspaceID string, ws WorkspaceToScore) (WeightedScore, error) {
	entries := make([]ScoreEntry, 0, len(r.workspaceScorers))
	for _, s := range r.workspaceScorers {
		entry := ScoreEntry{Name: s.Name, Category: s.Category, Weight: s.weight()}
		res, err := safeScore(func() (*ScorerReturn, error) { return s.Score(ctx, ws) })
		if err != nil {
			log.Printf("workspace scorer %s: %s: %v", s.Name, workspaceID, err)
		} else if res != nil {
			v := res.Score
			entry.Score = &v
			entry.Reason = res.Reason
		}
		entries = append(entries, entry)
	}
	if err := ctx.Err(); err != nil {
		return WeightedScore{}, err
	}
	return Combine(entries), nil
}

// WorkspaceSummary builds the workspace scoring input from scored repos.
func WorkspaceSummary(usage []fingerprint.FingerprintUsage, repos []ScoredRepo) WorkspaceToScore {
	ws := WorkspaceToScore{FingerprintUsage: usage, Repos: make([]WorkspaceRepo, 0, len(repos))}
	for _, r := range repos {
		wr := WorkspaceRepo{URL: r.ID.URL, Owner: r.ID.Owner, Repo: r.ID.Repo}
		if r.WeightedScore.Score != nil {
			v := *r.WeightedScore.Score
			wr.Score = &v
		}
		ws.Repos = append(ws.Repos, wr)
	}
	return ws
}
