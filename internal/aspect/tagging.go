package aspect

import (
	"context"
	"fmt"
	"log"
	"slices"

	"golang.org/x/sync/errgroup"

	"repoinsight/internal/fingerprint"
)

type resolvedTagger struct {
	tag  Tag
	test TagTest
}

// TagAndScoreOptions restricts scoring. Category "" or "*" runs every scorer.
type TagAndScoreOptions struct {
	Category string
}

// resolveTaggers turns every definition into a plain test. Workspace-specific
// tests are built once per workspace and reused. A tagger whose test cannot be
// built is skipped for this call.
func (r *Registry) resolveTaggers(ctx context.Context, workspaceID string) []resolvedTagger {
	out := make([]resolvedTagger, 0, len(r.taggers))
	for i, def := range r.taggers {
		switch t := def.(type) {
		case Tagger:
			out = append(out, resolvedTagger{tag: t.Tag, test: t.Test})
		case WorkspaceSpecificTagger:
			test, err := r.predicates.get(ctx, workspaceID, i, t.Name, func(ctx context.Context) (test TagTest, err error) {
				defer func() {
					if rec := recover(); rec != nil {
						test, err = nil, fmt.Errorf("panic: %v", rec)
					}
				}()
				return t.CreateTest(ctx, workspaceID, r)
			})
			if err != nil {
				log.Printf("tagger %s: workspace %s: cannot build test: %v", t.Name, workspaceID, err)
				continue
			}
			out = append(out, resolvedTagger{tag: t.Tag, test: test})
		}
	}
	return out
}

// tagRepo evaluates resolved tests against one repo. A failing test counts as no match
// for this repo only.
func tagRepo(ctx context.Context, repo RepoToScore, taggers []resolvedTagger) []Tag {
	tags := []Tag{}
	for _, t := range taggers {
		ok, err := runTest(ctx, t.test, repo)
		if err != nil {
			log.Printf("tagger %s: %s: %v", t.tag.Name, repo.ID.Key(), err)
			continue
		}
		if ok {
			tags = append(tags, t.tag)
		}
	}
	return tags
}

func runTest(ctx context.Context, test TagTest, repo RepoToScore) (ok bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			ok, err = false, fmt.Errorf("panic: %v", rec)
		}
	}()
	return test(ctx, repo)
}

// TagRepos tags each repo without scoring.
func (r *Registry) TagRepos(ctx context.Context, workspaceID string, repos []RepoToScore) []TaggedRepo {
	taggers := r.resolveTaggers(ctx, workspaceID)
	out := make([]TaggedRepo, len(repos))
	var g errgroup.Group
	for i, repo := range repos {
		g.Go(func() error {
			repo := cloneRepo(repo)
			out[i] = TaggedRepo{RepoToScore: repo, Tags: tagRepo(ctx, repo, taggers)}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// TagAndScoreRepos derives tags and a weighted score for every repo. Inputs are
// not mutated and repos are processed independently.
func (r *Registry) TagAndScoreRepos(ctx context.Context, workspaceID string, repos []RepoToScore, opts TagAndScoreOptions) ([]ScoredRepo, error) {
	tagged := r.TagRepos(ctx, workspaceID, repos)
	scorers := r.repositoryScorers(opts.Category)

	out := make([]ScoredRepo, len(tagged))
	var g errgroup.Group
	for i, t := range tagged {
		g.Go(func() error {
			out[i] = ScoredRepo{TaggedRepo: t, WeightedScore: scoreRepo(ctx, t.RepoToScore, scorers)}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func cloneRepo(repo RepoToScore) RepoToScore {
	fps := slices.Clone(repo.Fingerprints)
	if fps == nil {
		fps = []fingerprint.FP{}
	}
	for i := range fps {
		fps[i].Data = slices.Clone(fps[i].Data)
	}
	return RepoToScore{ID: repo.ID, Fingerprints: fps}
}
