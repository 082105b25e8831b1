package publish

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	logx "cfpbot/pkg/logx"
)

func initRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	for _, args := range [][]string{
		{"init", "-q"},
		{"config", "user.email", "ci@example.com"},
		{"config", "user.name", "ci"},
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v: %s", args, err, out)
		}
	}
	return dir
}

func gitLog(t *testing.T, dir string) []string {
	t.Helper()
	cmd := exec.Command("git", "log", "--pretty=%s")
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil
	}
	s := strings.TrimSpace(string(out))
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func TestPublishCommitsChanges(t *testing.T) {
	dir := initRepo(t)
	path := filepath.Join(dir, "data.json")
	if err := os.WriteFile(path, []byte(`{"count":1}`), 0o644); err != nil {
		t.Fatal(err)
	}

	p := New(dir, "", "", false, logx.Nop())
	committed, err := p.Publish(context.Background(), "data.json")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !committed {
		t.Fatal("expected a commit")
	}

	log := gitLog(t, dir)
	if len(log) != 1 || log[0] != "chore(data): update CFP JSON" {
		t.Fatalf("unexpected log: %v", log)
	}
}

func TestPublishSkipsWhenClean(t *testing.T) {
	dir := initRepo(t)
	path := filepath.Join(dir, "data.json")
	if err := os.WriteFile(path, []byte(`{"count":1}`), 0o644); err != nil {
		t.Fatal(err)
	}
	p := New(dir, "update", "", false, logx.Nop())
	ctx := context.Background()

	if committed, err := p.Publish(ctx, "data.json"); err != nil || !committed {
		t.Fatalf("first publish: committed=%v err=%v", committed, err)
	}
	// Second run with identical content must not create a commit.
	committed, err := p.Publish(ctx, "data.json")
	if err != nil {
		t.Fatalf("second publish: %v", err)
	}
	if committed {
		t.Fatal("clean tree should not commit")
	}
	if log := gitLog(t, dir); len(log) != 1 {
		t.Fatalf("expected exactly one commit, got %v", log)
	}
}

func TestPublishRebasesPathOntoWorkDir(t *testing.T) {
	dir := initRepo(t)
	if err := os.MkdirAll(filepath.Join(dir, "out"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "out", "data.json"), []byte(`{"count":1}`), 0o644); err != nil {
		t.Fatal(err)
	}

	// The export path is configured relative to the process, not the
	// work tree; Publish must still stage it.
	p := New(dir, "", "", false, logx.Nop())
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	rel, err := filepath.Rel(wd, filepath.Join(dir, "out", "data.json"))
	if err != nil {
		// Different volume; the absolute path exercises the same code.
		rel = filepath.Join(dir, "out", "data.json")
	}
	committed, err := p.Publish(context.Background(), rel)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !committed {
		t.Fatal("expected a commit")
	}
}

func TestPublishNoPaths(t *testing.T) {
	p := New(t.TempDir(), "", "", false, logx.Nop())
	committed, err := p.Publish(context.Background())
	if err != nil || committed {
		t.Fatalf("Publish() = %v, %v; want false, nil", committed, err)
	}
}
