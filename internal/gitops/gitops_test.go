package gitops

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

func gitOutput(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	require.NoError(t, err)
	return string(out)
}

func TestInit(t *testing.T) {
	requireGit(t)
	dir := t.TempDir()
	assert.False(t, IsRepo(dir))

	_, err := Init(context.Background(), dir, DefaultIdentity)
	require.NoError(t, err)
	assert.True(t, IsRepo(dir))

	_, err = Init(context.Background(), dir, DefaultIdentity)
	assert.NoError(t, err, "opening an existing repo")
}

func TestCommit(t *testing.T) {
	requireGit(t)
	dir := t.TempDir()
	repo, err := Init(context.Background(), dir, Identity{Name: "Test Author", Email: "test@example.com"})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "rules.yaml"), []byte("rules: []\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tally.db"), []byte("binary"), 0o644))

	hash, err := repo.Commit(context.Background(), "init: workspace", "rules.yaml")
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	assert.Contains(t, gitOutput(t, dir, "log", "--format=%s", "-1"), "init: workspace")
	assert.Contains(t, gitOutput(t, dir, "log", "--format=%an <%ae>", "-1"), "Test Author <test@example.com>")

	files := gitOutput(t, dir, "ls-files")
	assert.Contains(t, files, "rules.yaml")
	assert.NotContains(t, files, "tally.db")
}

func TestCommit_NoPaths(t *testing.T) {
	repo := &Repo{dir: t.TempDir(), who: DefaultIdentity}
	_, err := repo.Commit(context.Background(), "empty")
	assert.Error(t, err)
}
