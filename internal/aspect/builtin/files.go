package builtin

import (
	"context"
	"path"

	"repoinsight/internal/fingerprint"
)

// manifests finds files named base anywhere in the project. Projects that
// cannot list files are only checked at their root.
func manifests(ctx context.Context, p fingerprint.Project, base string) ([]string, error) {
	lister, ok := p.(fingerprint.FileLister)
	if !ok {
		if p.Exists(base) {
			return []string{base}, nil
		}
		return nil, nil
	}
	files, err := lister.Files(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, f := range files {
		if path.Base(f) == base {
			out = append(out, f)
		}
	}
	return out, nil
}

// subProject is the fingerprint path of a manifest: its directory, "" at the root.
func subProject(manifest string) string {
	dir := path.Dir(manifest)
	if dir == "." {
		return ""
	}
	return dir
}

func hasManifest(base string) func(context.Context, fingerprint.Project) (bool, error) {
	return func(ctx context.Context, p fingerprint.Project) (bool, error) {
		found, err := manifests(ctx, p, base)
		return len(found) > 0, err
	}
}
