package builtin

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"golang.org/x/mod/modfile"

	"repoinsight/internal/aspect"
	"repoinsight/internal/fingerprint"
)

const GoModType = "gomod-dependency"

// GoModDependencies emits one fingerprint per direct require of every go.mod,
// named by module path with the required version as data. Nested modules set
// the fingerprint path.
func GoModDependencies() fingerprint.Aspect {
	a := fingerprint.Aspect{
		Name:        GoModType,
		DisplayName: "Go module dependencies",
		Extract:     extractGoMod,
		ToDisplayableFingerprint: func(fp fingerprint.FP) string {
			v, _ := fp.DataString()
			return v
		},
		Details: &fingerprint.ReportDetails{
			Category:    "dependencies",
			Description: "Direct Go module requirements",
			ShortName:   "go modules",
			Unit:        "version",
		},
	}
	return aspect.Conditionalize(a, hasManifest("go.mod"), aspect.Overrides{})
}

func extractGoMod(ctx context.Context, p fingerprint.Project) ([]fingerprint.FP, error) {
	found, err := manifests(ctx, p, "go.mod")
	if err != nil {
		return nil, err
	}
	var out []fingerprint.FP
	for _, name := range found {
		data, err := p.ReadFile(name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		mf, err := modfile.ParseLax(name, data, nil)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		for _, req := range mf.Require {
			if req == nil || req.Indirect {
				continue
			}
			fp, err := fingerprint.Of(GoModType, req.Mod.Path, req.Mod.Version)
			if err != nil {
				return nil, err
			}
			fp.Path = subProject(name)
			out = append(out, fp)
		}
	}
	return out, nil
}

// goDependencyCount counts direct go module requirements.
func goDependencyCount(fps []fingerprint.FP) int {
	n := 0
	for _, fp := range fps {
		if fp.Type == GoModType {
			n++
		}
	}
	return n
}
