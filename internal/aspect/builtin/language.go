package builtin

import (
	"context"

	"repoinsight/internal/fingerprint"
)

const (
	LanguageType = "language"

	UsesGo     = "uses-go"
	UsesDocker = "uses-docker"
)

// Language derives usage fingerprints from what earlier aspects consolidated.
// It has no extraction of its own.
func Language() fingerprint.Aspect {
	return fingerprint.Aspect{
		Name:        LanguageType,
		DisplayName: "Languages and tooling",
		Consolidate: consolidateLanguage,
		ToDisplayableFingerprintName: func(name string) string {
			switch name {
			case UsesGo:
				return "Go"
			case UsesDocker:
				return "Docker"
			}
			return name
		},
		Details: &fingerprint.ReportDetails{
			Category:    "languages",
			Description: "Languages and tooling detected from other fingerprints",
			ShortName:   "language",
		},
	}
}

func consolidateLanguage(_ context.Context, fps []fingerprint.FP) ([]fingerprint.FP, error) {
	var goFound, dockerFound bool
	for _, fp := range fps {
		switch fp.Type {
		case GoModType:
			goFound = true
		case DockerBaseImageType:
			dockerFound = true
		}
	}
	var out []fingerprint.FP
	if goFound {
		fp, err := fingerprint.Of(LanguageType, UsesGo, "go")
		if err != nil {
			return nil, err
		}
		out = append(out, fp)
	}
	if dockerFound {
		fp, err := fingerprint.Of(LanguageType, UsesDocker, "docker")
		if err != nil {
			return nil, err
		}
		out = append(out, fp)
	}
	return out, nil
}
