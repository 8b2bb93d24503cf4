package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// FP is a named, content-hashed fact extracted about a repository.
// (Type, Name) identifies the kind; (Type, Name, SHA) identifies a value of that kind.
type FP struct {
	Type string          `json:"type"`
	Name string          `json:"name"`
	SHA  string          `json:"sha"`
	Data json.RawMessage `json:"data,omitempty"`
	// Path is the sub-project path the fingerprint was found under. Empty means the repo base.
	Path string `json:"path,omitempty"`
}

// Kind identifies a fingerprint kind.
type Kind struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

func (k Kind) String() string { return k.Type + "/" + k.Name }

func (f FP) Kind() Kind { return Kind{Type: f.Type, Name: f.Name} }

// Of builds a fingerprint whose SHA is the hex SHA-256 of the JSON encoding of data.
func Of(typ, name string, data any) (FP, error) {
	typ = strings.TrimSpace(typ)
	if typ == "" {
		return FP{}, fmt.Errorf("fingerprint type is required")
	}
	if strings.TrimSpace(name) == "" {
		name = typ
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return FP{}, fmt.Errorf("marshal fingerprint %s/%s: %w", typ, name, err)
	}
	return FP{Type: typ, Name: name, SHA: SHA(raw), Data: raw}, nil
}

// MustOf is Of for data that is known to marshal.
func MustOf(typ, name string, data any) FP {
	fp, err := Of(typ, name, data)
	if err != nil {
		panic(err)
	}
	return fp
}

func SHA(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// DataString decodes Data as a JSON string. ok is false when Data is not a string.
func (f FP) DataString() (string, bool) {
	var s string
	if len(f.Data) == 0 || json.Unmarshal(f.Data, &s) != nil {
		return "", false
	}
	return s, true
}

// RepoRef identifies a repository.
type RepoRef struct {
	Owner string `json:"owner"`
	Repo  string `json:"repo"`
	URL   string `json:"url,omitempty"`
	// Path inside the repository when the analysis covers a sub-project.
	Path string `json:"path,omitempty"`
}

func (r RepoRef) Key() string {
	if r.Path == "" {
		return r.Owner + "/" + r.Repo
	}
	return r.Owner + "/" + r.Repo + "/" + r.Path
}

// Analyzed is anything carrying repo identity plus its fingerprints.
type Analyzed struct {
	ID           RepoRef `json:"id"`
	Fingerprints []FP    `json:"fingerprints"`
}

// Project is the read-only view of a repository that extraction runs against.
type Project interface {
	ID() RepoRef
	ReadFile(name string) ([]byte, error)
	Exists(name string) bool
}

// FileLister is implemented by projects that can enumerate their files as
// slash-separated paths relative to the project root.
type FileLister interface {
	Files(ctx context.Context) ([]string, error)
}

type ExtractFunc func(ctx context.Context, p Project) ([]FP, error)

// ConsolidateFunc sees every fingerprint accumulated so far and may return none, one or several.
type ConsolidateFunc func(ctx context.Context, fps []FP) ([]FP, error)

// Aspect owns extraction and consolidation for one fingerprint kind.
type Aspect struct {
	Name        string
	DisplayName string
	// BaseOnly aspects only apply to the root of a repository.
	BaseOnly bool

	Extract     ExtractFunc
	Consolidate ConsolidateFunc

	ToDisplayableFingerprint     func(fp FP) string
	ToDisplayableFingerprintName func(name string) string

	Details *ReportDetails
}

// DisplayValue renders a fingerprint value for humans.
func (a Aspect) DisplayValue(fp FP) string {
	if a.ToDisplayableFingerprint != nil {
		return a.ToDisplayableFingerprint(fp)
	}
	if s, ok := fp.DataString(); ok {
		return s
	}
	if len(fp.SHA) > 7 {
		return fp.SHA[:7]
	}
	return fp.SHA
}

func (a Aspect) DisplayFingerprintName(name string) string {
	if a.ToDisplayableFingerprintName != nil {
		return a.ToDisplayableFingerprintName(name)
	}
	return name
}

// ReportDetails is the display metadata of a fingerprint kind in category reports.
type ReportDetails struct {
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
	ShortName   string `json:"shortName,omitempty"`
	Unit        string `json:"unit,omitempty"`
	URL         string `json:"url,omitempty"`
	// Manage defaults to true when nil.
	Manage *bool `json:"manage,omitempty"`
}

func (d ReportDetails) Managed() bool {
	return d.Manage == nil || *d.Manage
}
