package aspect

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"repoinsight/internal/fingerprint"
)

// Config declares everything a Registry manages. Aspect order is authoritative
// for consolidation and for report ordering.
type Config struct {
	Aspects           []fingerprint.Aspect
	Taggers           []TaggerDefinition
	RepositoryScorers []RepositoryScorer
	WorkspaceScorers  []WorkspaceScorer

	// PredicateCacheSize and PredicateTTL bound the workspace tagger cache.
	PredicateCacheSize int
	PredicateTTL       time.Duration
}

// Registry composes tagging, scoring and aspect lookup.
type Registry struct {
	aspects          []fingerprint.Aspect
	rank             map[string]int
	taggers          []TaggerDefinition
	scorers          []RepositoryScorer
	workspaceScorers []WorkspaceScorer
	predicates       *predicateCache
}

func NewRegistry(cfg Config) (*Registry, error) {
	rank := make(map[string]int, len(cfg.Aspects))
	for i, a := range cfg.Aspects {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			return nil, fmt.Errorf("aspect at index %d has no name", i)
		}
		if _, dup := rank[name]; dup {
			return nil, fmt.Errorf("duplicate aspect name %q", name)
		}
		rank[name] = i
	}
	seenScorers := map[string]bool{}
	for _, s := range cfg.RepositoryScorers {
		if s.Name == "" || s.ScoreFingerprints == nil {
			return nil, fmt.Errorf("repository scorer %q is incomplete", s.Name)
		}
		if seenScorers[s.Name] {
			return nil, fmt.Errorf("duplicate scorer name %q", s.Name)
		}
		seenScorers[s.Name] = true
	}
	seenWorkspaceScorers := map[string]bool{}
	for _, s := range cfg.WorkspaceScorers {
		if s.Name == "" || s.Score == nil {
			return nil, fmt.Errorf("workspace scorer %q is incomplete", s.Name)
		}
		if seenWorkspaceScorers[s.Name] {
			return nil, fmt.Errorf("duplicate workspace scorer name %q", s.Name)
		}
		seenWorkspaceScorers[s.Name] = true
	}
	for _, t := range cfg.Taggers {
		switch tt := t.(type) {
		case Tagger:
			if tt.Test == nil {
				return nil, fmt.Errorf("tagger %q has no test", tt.Name)
			}
		case WorkspaceSpecificTagger:
			if tt.CreateTest == nil {
				return nil, fmt.Errorf("workspace tagger %q has no test factory", tt.Name)
			}
		default:
			return nil, fmt.Errorf("unsupported tagger type %T", t)
		}
	}
	return &Registry{
		aspects:          slices.Clone(cfg.Aspects),
		rank:             rank,
		taggers:          slices.Clone(cfg.Taggers),
		scorers:          slices.Clone(cfg.RepositoryScorers),
		workspaceScorers: slices.Clone(cfg.WorkspaceScorers),
		predicates:       newPredicateCache(cfg.PredicateCacheSize, cfg.PredicateTTL),
	}, nil
}

// Aspects returns all aspects in registration order.
func (r *Registry) Aspects() []fingerprint.Aspect {
	return slices.Clone(r.aspects)
}

// AspectOf finds the aspect managing fingerprints of the given type.
func (r *Registry) AspectOf(typ string) (fingerprint.Aspect, bool) {
	i, ok := r.rank[typ]
	if !ok {
		return fingerprint.Aspect{}, false
	}
	return r.aspects[i], true
}

// AvailableTags lists the metadata of every registered tagger. Tests are not run.
func (r *Registry) AvailableTags() []Tag {
	out := make([]Tag, 0, len(r.taggers))
	for _, t := range r.taggers {
		out = append(out, t.TagInfo())
	}
	return out
}

// ReportDetailsOf returns the report metadata of a kind, nil when none is registered.
func (r *Registry) ReportDetailsOf(_ context.Context, typ, _ string) (*fingerprint.ReportDetails, error) {
	a, ok := r.AspectOf(typ)
	if !ok || a.Details == nil {
		return nil, nil
	}
	d := *a.Details
	return &d, nil
}

// InvalidateWorkspace forces workspace-specific taggers to rebuild their tests.
func (r *Registry) InvalidateWorkspace(workspaceID string) {
	r.predicates.invalidate(workspaceID)
}
