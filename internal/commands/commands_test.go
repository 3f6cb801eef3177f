package commands_test

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/tally/internal/commands"
)

// run executes the CLI in-process and returns what it printed to stdout.
// Log output is discarded.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := commands.NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// newWorkspace initializes a workspace and returns its dir and the
// --config flag pointing at it.
func newWorkspace(t *testing.T) (string, []string) {
	t.Helper()
	dir := t.TempDir()
	_, err := run(t, "init", dir)
	require.NoError(t, err)
	return dir, []string{"--config", filepath.Join(dir, "tally.yaml")}
}

// in runs a command against the workspace selected by cfg.
func in(t *testing.T, cfg []string, args ...string) (string, error) {
	t.Helper()
	return run(t, append(args, cfg...)...)
}

func fixture(t *testing.T, name string) string {
	t.Helper()
	path, err := filepath.Abs(filepath.Join("..", "..", "testdata", name))
	require.NoError(t, err)
	return path
}

// drop copies a fixture into dir under name.
func drop(t *testing.T, dir, fixtureName, name string) {
	t.Helper()
	data, err := os.ReadFile(fixture(t, fixtureName))
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func writeRules(t *testing.T, dir, doc string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rules.yaml"), []byte(doc), 0o644))
}

const testRules = `
rules:
  - id: 1
    description: software subscriptions
    category: software
    conditions:
      - {column: description, type: regex, value: "github|figma"}
  - id: 2
    category: income
    conditions:
      - {column: amount, type: amountRange, min_amount: 0}
  - id: 3
    category: software
    conditions:
      - {column: description, type: startsWith, value: google}
`
