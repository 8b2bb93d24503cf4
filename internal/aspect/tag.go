package aspect

import (
	"context"

	"repoinsight/internal/fingerprint"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warn"
	SeverityError   Severity = "error"
)

// Tag is static tag metadata.
type Tag struct {
	Name        string   `json:"name"`
	Parent      string   `json:"parent,omitempty"`
	Description string   `json:"description,omitempty"`
	Severity    Severity `json:"severity,omitempty"`
}

// RepoToScore is the view of a repo that taggers and scorers evaluate.
type RepoToScore = fingerprint.Analyzed

// TagTest reports whether a tag applies to a repo.
type TagTest func(ctx context.Context, repo RepoToScore) (bool, error)

// TaggerDefinition is either a Tagger or a WorkspaceSpecificTagger.
type TaggerDefinition interface {
	TagInfo() Tag
}

// Tagger applies the same test in every workspace.
type Tagger struct {
	Tag
	Test TagTest
}

func (t Tagger) TagInfo() Tag { return t.Tag }

// WorkspaceSpecificTagger builds its test per workspace, e.g. from percentile
// baselines. The built test is reused for every repo of that workspace.
type WorkspaceSpecificTagger struct {
	Tag
	CreateTest func(ctx context.Context, workspaceID string, reg *Registry) (TagTest, error)
}

func (t WorkspaceSpecificTagger) TagInfo() Tag { return t.Tag }

// TaggedRepo is a repo with the tags whose tests matched.
type TaggedRepo struct {
	RepoToScore
	Tags []Tag `json:"tags"`
}

type ScoredRepo struct {
	TaggedRepo
	WeightedScore WeightedScore `json:"weightedScore"`
}
