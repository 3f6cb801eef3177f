package runlog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

func testEntry() Entry {
	return Entry{
		Timestamp: testTime,
		Command:   "import",
		AccountID: "giro",
		BatchID:   "3f1c2a9e-0000-4000-8000-000000000001",
		Summary:   "giro: 5 rows, 3 inserted, 1 duplicates, 1 errors",
	}
}

func TestAppend_NewFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Append(dir, testEntry()))

	data, err := os.ReadFile(Path(dir))
	require.NoError(t, err)
	assert.Contains(t, string(data), Header+"\n")

	entries, err := Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "import", entries[0].Command)
}

func TestAppend_ExistingFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Append(dir, testEntry()))

	e2 := testEntry()
	e2.Command = "classify"
	e2.AccountID = ""
	e2.BatchID = ""
	require.NoError(t, Append(dir, e2))

	entries, err := Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "import", entries[0].Command)
	assert.Equal(t, "classify", entries[1].Command)
	assert.Empty(t, entries[1].AccountID)
}

func TestAppend_NoEntries(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Append(dir))
	assert.NoFileExists(t, Path(dir))
}

func TestRead_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	original := testEntry()
	require.NoError(t, Append(dir, original))

	entries, err := Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got := entries[0]
	assert.True(t, original.Timestamp.Equal(got.Timestamp))
	assert.Equal(t, original.AccountID, got.AccountID)
	assert.Equal(t, original.BatchID, got.BatchID)
	assert.Equal(t, original.Summary, got.Summary)
}

func TestRead_NotFound(t *testing.T) {
	entries, err := Read(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestRead_HeaderOnly(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "logs"), 0o755))
	require.NoError(t, os.WriteFile(Path(dir), []byte(Header+"\n"), 0o644))

	entries, err := Read(dir)
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestUnmarshalEntry_Invalid(t *testing.T) {
	_, err := UnmarshalEntry([]string{"a", "b"})
	assert.Error(t, err)

	_, err = UnmarshalEntry([]string{"yesterday", "import", "", "", ""})
	assert.Error(t, err)
}

func TestRead_UnexpectedHeader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "logs"), 0o755))
	require.NoError(t, os.WriteFile(Path(dir), []byte("when,what,who,batch,note\n"), 0o644))

	_, err := Read(dir)
	assert.ErrorContains(t, err, "unexpected run log header")
}

func TestSelect(t *testing.T) {
	at := func(h int) time.Time { return testTime.Add(time.Duration(h) * time.Hour) }
	entries := []Entry{
		{Timestamp: at(0), Command: "import", AccountID: "giro", Summary: "a"},
		{Timestamp: at(1), Command: "import", AccountID: "visa", Summary: "b"},
		{Timestamp: at(2), Command: "classify", Summary: "c"},
		{Timestamp: at(3), Command: "import", AccountID: "giro", Summary: "d"},
	}
	summaries := func(es []Entry) []string {
		var out []string
		for _, e := range es {
			out = append(out, e.Summary)
		}
		return out
	}

	tests := []struct {
		name  string
		query Query
		want  []string
	}{
		{"all newest first", Query{}, []string{"d", "c", "b", "a"}},
		{"command", Query{Command: "IMPORT"}, []string{"d", "b", "a"}},
		{"account", Query{AccountID: "giro"}, []string{"d", "a"}},
		{"since", Query{Since: at(2)}, []string{"d", "c"}},
		{"limit", Query{Command: "import", Limit: 2}, []string{"d", "b"}},
		{"nothing", Query{AccountID: "savings"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, summaries(Select(entries, tt.query)))
		})
	}
}

func TestFind(t *testing.T) {
	dir := t.TempDir()
	e2 := testEntry()
	e2.Command = "classify"
	e2.AccountID = ""
	e2.Timestamp = testTime.Add(time.Minute)
	require.NoError(t, Append(dir, testEntry(), e2))

	got, err := Find(dir, Query{Command: "classify"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Empty(t, got[0].AccountID)

	got, err = Find(t.TempDir(), Query{})
	require.NoError(t, err)
	assert.Empty(t, got)
}
