package builtin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/moby/buildkit/frontend/dockerfile/command"
	"github.com/moby/buildkit/frontend/dockerfile/parser"

	"repoinsight/internal/aspect"
	"repoinsight/internal/fingerprint"
)

const DockerBaseImageType = "docker-base-image"

// DockerBaseImages emits one fingerprint per external FROM image of every
// Dockerfile, named by image with the tag as data.
func DockerBaseImages() fingerprint.Aspect {
	a := fingerprint.Aspect{
		Name:        DockerBaseImageType,
		DisplayName: "Docker base images",
		Extract:     extractDockerBaseImages,
		Details: &fingerprint.ReportDetails{
			Category:    "docker",
			Description: "Base images used in Dockerfiles",
			ShortName:   "base image",
			Unit:        "tag",
		},
	}
	return aspect.Conditionalize(a, hasManifest("Dockerfile"), aspect.Overrides{})
}

func extractDockerBaseImages(ctx context.Context, p fingerprint.Project) ([]fingerprint.FP, error) {
	found, err := manifests(ctx, p, "Dockerfile")
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
		fps, err := baseImages(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		for i := range fps {
			fps[i].Path = subProject(name)
		}
		out = append(out, fps...)
	}
	return out, nil
}

func baseImages(data []byte) ([]fingerprint.FP, error) {
	res, err := parser.Parse(bytes.NewReader(data))
	if err != nil {
		if strings.Contains(err.Error(), "file with no instructions") {
			return nil, nil
		}
		return nil, err
	}
	var out []fingerprint.FP
	stages := map[string]bool{}
	for _, n := range res.AST.Children {
		if n.Value != command.From {
			continue
		}
		ref, alias, ok := fromArgs(n)
		if !ok {
			continue
		}
		image, tag := splitRef(ref)
		// Earlier build stages, scratch and refs left to build args are not base images.
		skip := image == "scratch" || strings.Contains(ref, "$") || (stages[strings.ToLower(image)] && tag == "")
		if alias != "" {
			stages[strings.ToLower(alias)] = true
		}
		if skip {
			continue
		}
		if tag == "" {
			tag = "latest"
		}
		fp, err := fingerprint.Of(DockerBaseImageType, image, tag)
		if err != nil {
			return nil, err
		}
		out = append(out, fp)
	}
	return out, nil
}

// fromArgs reads "image[:tag|@digest] [AS alias]" from a FROM node. Flags such
// as --platform are already split off by the parser.
func fromArgs(n *parser.Node) (ref, alias string, ok bool) {
	var args []string
	for a := n.Next; a != nil; a = a.Next {
		args = append(args, a.Value)
	}
	if len(args) == 0 {
		return "", "", false
	}
	if len(args) >= 3 && strings.EqualFold(args[1], "AS") {
		alias = args[2]
	}
	return args[0], alias, true
}

func splitRef(ref string) (image, tag string) {
	if i := strings.Index(ref, "@"); i >= 0 {
		return ref[:i], ref[i+1:]
	}
	// A colon after the last slash separates the tag, not a registry port.
	if i := strings.LastIndex(ref, ":"); i > strings.LastIndex(ref, "/") {
		return ref[:i], ref[i+1:]
	}
	return ref, ""
}
