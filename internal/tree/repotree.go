package tree

import (
	"context"
	"fmt"
	"strings"

	"repoinsight/internal/fingerprint"
	"repoinsight/internal/store"
)

// GroupSource answers the value -> repos grouping query.
type GroupSource interface {
	QueryValueRepoGroups(ctx context.Context, q store.GroupQuery) ([]store.ValueRepoGroup, error)
}

type Query struct {
	// WorkspaceID may be store.AllWorkspaces.
	WorkspaceID string
	AspectName  string
	// RootName is the fingerprint name matched (ByName) or excluded (!ByName).
	// It also names the root node.
	RootName       string
	ByName         bool
	IncludeWithout bool
	// WithoutLabel names the branch of repos lacking the fingerprint. Defaults to "None".
	WithoutLabel string
}

// FingerprintsToReposTree builds a fingerprint -> value -> repo tree. Every
// distinct value becomes a branch of repo leaves of size 1.
func FingerprintsToReposTree(ctx context.Context, src GroupSource, q Query, display func(fingerprint.FP) string) (*PlantedTree, error) {
	if strings.TrimSpace(q.AspectName) == "" {
		return nil, fmt.Errorf("aspect name is required")
	}
	if display == nil {
		display = fingerprint.Aspect{}.DisplayValue
	}
	groups, err := src.QueryValueRepoGroups(ctx, store.GroupQuery{
		WorkspaceID:    q.WorkspaceID,
		Type:           q.AspectName,
		Name:           q.RootName,
		ByName:         q.ByName,
		IncludeWithout: q.IncludeWithout,
	})
	if err != nil {
		return nil, err
	}

	root := &SunburstTree{Name: q.RootName, Children: []*SunburstTree{}}
	for _, g := range groups {
		if len(g.Repos) == 0 {
			continue
		}
		branch := &SunburstTree{Children: make([]*SunburstTree, 0, len(g.Repos))}
		if g.Without() {
			branch.Name = q.withoutLabel()
			branch.Type = q.AspectName
		} else {
			fp := *g.Fingerprint
			branch.Name = display(fp)
			branch.SHA = fp.SHA
			branch.Type = fp.Type
			branch.Data = fp.Data
		}
		for _, r := range g.Repos {
			branch.Children = append(branch.Children, &SunburstTree{
				Name:  r.Repo,
				Owner: r.Owner,
				URL:   r.URL,
				Size:  1,
			})
		}
		root.Children = append(root.Children, branch)
	}

	first := "aspect"
	if q.ByName {
		first = "fingerprint name"
	}
	pt := &PlantedTree{
		Tree: root,
		Circles: []Circle{
			{Meaning: first},
			{Meaning: "fingerprint value"},
			{Meaning: "repo"},
		},
	}
	if err := Validate(pt); err != nil {
		return nil, fmt.Errorf("tree for %s/%s: %w", q.AspectName, q.RootName, err)
	}
	return pt, nil
}

func (q Query) withoutLabel() string {
	if q.WithoutLabel != "" {
		return q.WithoutLabel
	}
	return "None"
}
