package analysis

import (
	"context"
	"fmt"
	"log"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"repoinsight/internal/fingerprint"
)

type Stage string

const (
	StageExtract     Stage = "extract"
	StageConsolidate Stage = "consolidate"
)

// StageFailure records an aspect whose contribution was skipped.
type StageFailure struct {
	Aspect string `json:"aspect"`
	Stage  Stage  `json:"stage"`
	Err    string `json:"error"`
}

// Analysis is the fingerprint set of one project from one run.
type Analysis struct {
	fingerprint.Analyzed
	Timestamp time.Time      `json:"timestamp"`
	Failures  []StageFailure `json:"failures,omitempty"`
}

// Analyzer runs extraction concurrently, then consolidation strictly in
// registration order. Every consolidation stage sees all fingerprints
// accumulated before it.
type Analyzer struct {
	aspects []fingerprint.Aspect
	now     func() time.Time
}

func NewAnalyzer(aspects []fingerprint.Aspect) *Analyzer {
	return &Analyzer{
		aspects: slices.Clone(aspects),
		now:     time.Now,
	}
}

// Analyze never fails because of a single aspect; failed aspects are logged and
// listed in Analysis.Failures. The returned list is not deduplicated.
func (a *Analyzer) Analyze(ctx context.Context, p fingerprint.Project) (*Analysis, error) {
	if p == nil {
		return nil, fmt.Errorf("analysis: project is nil")
	}
	ref := p.ID()

	extracted := make([][]fingerprint.FP, len(a.aspects))
	extractErrs := make([]error, len(a.aspects))
	var g errgroup.Group
	for i, asp := range a.aspects {
		if asp.Extract == nil {
			continue
		}
		g.Go(func() error {
			fps, err := runExtract(ctx, asp, p)
			extracted[i], extractErrs[i] = fps, err
			return nil
		})
	}
	_ = g.Wait()

	var failures []StageFailure
	var acc []fingerprint.FP
	for i, asp := range a.aspects {
		if err := extractErrs[i]; err != nil {
			log.Printf("analysis: %s: extract %s failed: %v", ref.Key(), asp.Name, err)
			failures = append(failures, StageFailure{Aspect: asp.Name, Stage: StageExtract, Err: err.Error()})
			continue
		}
		acc = append(acc, extracted[i]...)
	}

	for _, asp := range a.aspects {
		if asp.Consolidate == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// Each stage gets its own snapshot so a failing stage cannot corrupt the accumulator.
		out, err := runConsolidate(ctx, asp, slices.Clone(acc))
		if err != nil {
			log.Printf("analysis: %s: consolidate %s failed: %v", ref.Key(), asp.Name, err)
			failures = append(failures, StageFailure{Aspect: asp.Name, Stage: StageConsolidate, Err: err.Error()})
			continue
		}
		acc = append(acc, out...)
	}

	if acc == nil {
		acc = []fingerprint.FP{}
	}
	return &Analysis{
		Analyzed:  fingerprint.Analyzed{ID: ref, Fingerprints: acc},
		Timestamp: a.now(),
		Failures:  failures,
	}, nil
}

// AnalyzeAll analyzes projects independently and in parallel. Results keep input order.
func (a *Analyzer) AnalyzeAll(ctx context.Context, projects []fingerprint.Project) ([]*Analysis, error) {
	out := make([]*Analysis, len(projects))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range projects {
		g.Go(func() error {
			res, err := a.Analyze(gctx, p)
			if err != nil {
				return err
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func runExtract(ctx context.Context, asp fingerprint.Aspect, p fingerprint.Project) (fps []fingerprint.FP, err error) {
	defer func() {
		if r := recover(); r != nil {
			fps, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return asp.Extract(ctx, p)
}

func runConsolidate(ctx context.Context, asp fingerprint.Aspect, fps []fingerprint.FP) (out []fingerprint.FP, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return asp.Consolidate(ctx, fps)
}
