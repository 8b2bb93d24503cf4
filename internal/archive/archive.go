// Package archive keeps the raw JSON of analysis runs next to the fingerprint store.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"repoinsight/internal/analysis"
	"repoinsight/internal/fingerprint"
)

var ErrNotFound = errors.New("archived analysis not found")

// Archive stores opaque blobs by workspace and key.
type Archive interface {
	Put(ctx context.Context, workspaceID, key string, content []byte) error
	Get(ctx context.Context, workspaceID, key string) ([]byte, error)
	List(ctx context.Context, workspaceID string) ([]string, error)
}

const analysesPrefix = "analyses/"

// Key is where the latest analysis of a repo is archived.
func Key(ref fingerprint.RepoRef) string {
	return analysesPrefix + ref.Key() + ".json"
}

// Save archives an analysis under Key(an.ID) and returns the key.
func Save(ctx context.Context, a Archive, workspaceID string, an *analysis.Analysis) (string, error) {
	if an == nil {
		return "", fmt.Errorf("analysis is nil")
	}
	raw, err := json.Marshal(an)
	if err != nil {
		return "", fmt.Errorf("marshal analysis %s: %w", an.ID.Key(), err)
	}
	key := Key(an.ID)
	if err := a.Put(ctx, workspaceID, key, raw); err != nil {
		return "", fmt.Errorf("archive %s: %w", key, err)
	}
	return key, nil
}

func Load(ctx context.Context, a Archive, workspaceID string, ref fingerprint.RepoRef) (*analysis.Analysis, error) {
	raw, err := a.Get(ctx, workspaceID, Key(ref))
	if err != nil {
		return nil, err
	}
	var an analysis.Analysis
	if err := json.Unmarshal(raw, &an); err != nil {
		return nil, fmt.Errorf("decode archived analysis %s: %w", ref.Key(), err)
	}
	return &an, nil
}

func validate(workspaceID, key string) (string, string, error) {
	workspaceID = strings.TrimSpace(workspaceID)
	key = strings.TrimSpace(key)
	if workspaceID == "" {
		return "", "", fmt.Errorf("workspace_id is required")
	}
	if key == "" {
		return "", "", fmt.Errorf("key is required")
	}
	return workspaceID, key, nil
}

func objectKey(workspaceID, key string) string {
	return workspaceID + "/" + strings.TrimLeft(key, "/")
}
