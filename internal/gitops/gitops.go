// Package gitops keeps the user-authored workspace files (config, formats,
// rules, accounts) under git.
package gitops

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Identity is the author recorded on commits.
type Identity struct {
	Name  string
	Email string
}

// DefaultIdentity is used when the caller has none.
var DefaultIdentity = Identity{Name: "tally", Email: "tally@localhost"}

// Repo is a git working tree.
type Repo struct {
	dir string
	who Identity
}

// Init creates a repository at dir, or opens the one already there.
func Init(ctx context.Context, dir string, who Identity) (*Repo, error) {
	r := &Repo{dir: dir, who: who}
	if IsRepo(dir) {
		return r, nil
	}
	if _, err := r.git(ctx, "init", "--quiet"); err != nil {
		return nil, err
	}
	return r, nil
}

// Commit stages paths (relative to the repo) and commits them. It returns
// the short hash of the new commit.
func (r *Repo) Commit(ctx context.Context, message string, paths ...string) (string, error) {
	if len(paths) == 0 {
		return "", errors.New("git commit: no paths")
	}
	if _, err := r.git(ctx, append([]string{"add", "--"}, paths...)...); err != nil {
		return "", err
	}
	if _, err := r.git(ctx, "commit", "--quiet", "-m", message); err != nil {
		return "", err
	}
	hash, err := r.git(ctx, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "", err
	}
	return hash, nil
}

func (r *Repo) git(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME="+r.who.Name,
		"GIT_AUTHOR_EMAIL="+r.who.Email,
		"GIT_COMMITTER_NAME="+r.who.Name,
		"GIT_COMMITTER_EMAIL="+r.who.Email,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %s: %w", args[0], strings.TrimSpace(string(out)), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// IsRepo reports whether dir is the root of a git repository.
func IsRepo(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}
