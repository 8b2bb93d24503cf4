package aspect

import (
	"context"

	"repoinsight/internal/fingerprint"
)

// Overrides replace identity and display fields of a wrapped aspect.
type Overrides struct {
	Name                         string
	DisplayName                  string
	ToDisplayableFingerprint     func(fp fingerprint.FP) string
	ToDisplayableFingerprintName func(name string) string
}

// Conditionalize makes extraction run only for projects passing test.
// When Overrides.Name is set, extracted fingerprints are re-typed to it.
func Conditionalize(a fingerprint.Aspect, test func(ctx context.Context, p fingerprint.Project) (bool, error), o Overrides) fingerprint.Aspect {
	out := a
	if o.Name != "" {
		out.Name = o.Name
	}
	if o.DisplayName != "" {
		out.DisplayName = o.DisplayName
	}
	if o.ToDisplayableFingerprint != nil {
		out.ToDisplayableFingerprint = o.ToDisplayableFingerprint
	}
	if o.ToDisplayableFingerprintName != nil {
		out.ToDisplayableFingerprintName = o.ToDisplayableFingerprintName
	}
	if a.Extract == nil {
		return out
	}
	extract := a.Extract
	out.Extract = func(ctx context.Context, p fingerprint.Project) ([]fingerprint.FP, error) {
		ok, err := test(ctx, p)
		if err != nil || !ok {
			return nil, err
		}
		fps, err := extract(ctx, p)
		if err != nil {
			return nil, err
		}
		if o.Name != "" {
			for i := range fps {
				fps[i].Type = o.Name
			}
		}
		return fps, nil
	}
	return out
}
