// Package publish commits the exported snapshot to a git work tree.
package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	logx "cfpbot/pkg/logx"
)

const defaultCommitMessage = "chore(data): update CFP JSON"

// Publisher runs git against a work tree to record snapshot updates.
// It shells out to the git binary; there is no libgit dependency.
type Publisher struct {
	WorkDir       string
	CommitMessage string
	Push          bool
	Remote        string

	log logx.Logger
}

func New(workDir, message, remote string, push bool, log logx.Logger) *Publisher {
	if strings.TrimSpace(message) == "" {
		message = defaultCommitMessage
	}
	if strings.TrimSpace(remote) == "" {
		remote = "origin"
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Publisher{
		WorkDir:       workDir,
		CommitMessage: message,
		Push:          push,
		Remote:        remote,
		log:           log,
	}
}

// Publish stages the given paths and commits them. It reports whether a
// commit was created; staging a file whose content matches HEAD results
// in a clean index and no commit.
func (p *Publisher) Publish(ctx context.Context, paths ...string) (bool, error) {
	if len(paths) == 0 {
		return false, nil
	}
	args := []string{"add", "--"}
	for _, path := range paths {
		args = append(args, p.relPath(path))
	}
	if _, err := p.git(ctx, args...); err != nil {
		return false, err
	}

	out, err := p.git(ctx, "diff", "--cached", "--quiet")
	if err == nil {
		p.log.Debug("publish: nothing staged")
		return false, nil
	}
	var xerr *exec.ExitError
	if !errors.As(err, &xerr) || xerr.ExitCode() != 1 {
		return false, fmt.Errorf("git diff --cached: %w: %s", err, out)
	}

	if out, err := p.git(ctx, "commit", "-m", p.CommitMessage); err != nil {
		return false, fmt.Errorf("git commit: %w: %s", err, out)
	}
	p.log.Info("publish: committed", logx.String("message", p.CommitMessage))

	if p.Push {
		if out, err := p.git(ctx, "push", p.Remote, "HEAD"); err != nil {
			return true, fmt.Errorf("git push: %w: %s", err, out)
		}
		p.log.Info("publish: pushed", logx.String("remote", p.Remote))
	}
	return true, nil
}

// relPath rebases a path onto the work tree so callers can hand over the
// export path as configured (e.g. "out/data.json" with WorkDir "out").
func (p *Publisher) relPath(path string) string {
	if p.WorkDir == "" {
		return path
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	wd, err := filepath.Abs(p.WorkDir)
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(wd, abs)
	if err != nil {
		return path
	}
	return rel
}

func (p *Publisher) git(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if p.WorkDir != "" {
		cmd.Dir = p.WorkDir
	}
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	return strings.TrimSpace(buf.String()), err
}
