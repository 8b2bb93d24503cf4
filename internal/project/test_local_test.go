package project

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"repoinsight/internal/fingerprint"
)

func TestLocalReadsUnderRoot(t *testing.T) {
	dir := t.TempDir()
	repo := filepath.Join(dir, "acme", "widgets")
	if err := os.MkdirAll(repo, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(repo, "go.mod"), []byte("module widgets\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	p, err := Open(repo, fingerprint.RepoRef{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := p.ID(); got.Owner != "acme" || got.Repo != "widgets" {
		t.Fatalf("unexpected ref: %+v", got)
	}
	b, err := p.ReadFile("go.mod")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(b) != "module widgets\n" {
		t.Fatalf("unexpected content %q", b)
	}
	if !p.Exists("go.mod") || p.Exists("Dockerfile") {
		t.Fatalf("Exists mismatch")
	}
}

func TestLocalRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	p, err := Open(dir, fingerprint.RepoRef{Owner: "o", Repo: "r"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := p.ReadFile("../etc/passwd"); err == nil {
		t.Fatalf("expected traversal error")
	}
	if _, err := p.ReadFile("/etc/passwd"); err == nil {
		t.Fatalf("expected absolute path error")
	}
}

func TestLocalRejectsSymlinkEscape(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	if err := os.WriteFile(filepath.Join(outside, "secret"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Symlink(filepath.Join(outside, "secret"), filepath.Join(dir, "link")); err != nil {
		t.Skipf("symlink unsupported: %v", err)
	}
	p, err := Open(dir, fingerprint.RepoRef{Owner: "o", Repo: "r"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := p.ReadFile("link"); err == nil {
		t.Fatalf("expected symlink escape to be rejected")
	}
}

func TestInMemory(t *testing.T) {
	p := NewInMemory(fingerprint.RepoRef{Owner: "o", Repo: "r"}, map[string]string{"./Dockerfile": "FROM alpine"})
	if !p.Exists("Dockerfile") {
		t.Fatalf("expected Dockerfile")
	}
	if _, err := p.ReadFile("missing"); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
}

func TestFilesSkipsDependencyDirs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"go.mod", "svc/go.mod", "node_modules/x/package.json", ".git/HEAD"} {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	l, err := Open(dir, fingerprint.RepoRef{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	files, err := l.Files(context.Background())
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(files) != 2 || files[0] != "go.mod" || files[1] != "svc/go.mod" {
		t.Fatalf("unexpected files %v", files)
	}

	m := NewInMemory(fingerprint.RepoRef{}, map[string]string{"a/go.mod": "", "vendor/b/go.mod": ""})
	files, _ = m.Files(context.Background())
	if len(files) != 1 || files[0] != "a/go.mod" {
		t.Fatalf("unexpected in-memory files %v", files)
	}
}
