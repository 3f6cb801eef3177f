package commands_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/tally/internal/runlog"
)

func TestClassify(t *testing.T) {
	dir, cfg := newWorkspace(t)
	writeRules(t, dir, testRules)
	_, err := in(t, cfg, "import", "chase-checking", fixture(t, "chase_checking.csv"))
	require.NoError(t, err)

	out, err := in(t, cfg, "classify", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "1 -> software (rule 1)")
	assert.Contains(t, out, "4 -> income (rule 2)")
	assert.Contains(t, out, "6 examined, 4 categorized, 2 unclassified (dry run)")

	out, err = in(t, cfg, "classify")
	require.NoError(t, err)
	assert.Contains(t, out, "6 examined, 4 categorized, 2 unclassified")

	out, err = in(t, cfg, "classify")
	require.NoError(t, err)
	assert.Contains(t, out, "2 examined, 0 categorized, 2 unclassified")

	entries, err := runlog.Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "classify", entries[2].Command)
}

func TestClassify_BrokenRulesAreSkipped(t *testing.T) {
	dir, cfg := newWorkspace(t)
	writeRules(t, dir, testRules+`
  - id: 9
    category: broken
    conditions:
      - {column: description, type: contains, value: x}
    logic: 1 AND 2
`)
	_, err := in(t, cfg, "import", "chase-checking", fixture(t, "chase_checking.csv"))
	require.NoError(t, err)

	out, err := in(t, cfg, "classify")
	require.NoError(t, err)
	assert.Contains(t, out, "broken rules [9]")
}

func TestCategorize_Override(t *testing.T) {
	dir, cfg := newWorkspace(t)
	writeRules(t, dir, testRules)
	_, err := in(t, cfg, "import", "chase-checking", fixture(t, "chase_checking.csv"))
	require.NoError(t, err)

	out, err := in(t, cfg, "categorize", "1", "tools")
	require.NoError(t, err)
	assert.Contains(t, out, "transaction 1 -> tools")

	out, err = in(t, cfg, "classify")
	require.NoError(t, err)
	assert.Contains(t, out, "5 examined, 3 categorized")

	out, err = in(t, cfg, "export")
	require.NoError(t, err)
	assert.Contains(t, out, "GITHUB *PRO SUBSCRIPTION,GITHUB,,,-4.00,tools,true,")
}

func TestCategorize_Errors(t *testing.T) {
	_, cfg := newWorkspace(t)

	_, err := in(t, cfg, "categorize", "42", "tools")
	assert.ErrorContains(t, err, "not found")

	_, err = in(t, cfg, "categorize", "abc", "tools")
	assert.ErrorContains(t, err, "invalid transaction id")
}
