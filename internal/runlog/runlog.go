// Package runlog keeps an append-only CSV record of import and classify runs
// under logs/run-log.csv in the workspace.
package runlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Entry is one row in the run log.
type Entry struct {
	Timestamp time.Time
	Command   string // import, classify, ...
	AccountID string // empty for workspace-wide runs
	BatchID   string
	Summary   string
}

// Header is the CSV header for run-log.csv.
const Header = "timestamp,command,account_id,batch_id,summary"

const (
	numFields    = 5
	logDir       = "logs"
	logFile      = "logs/run-log.csv"
	colTimestamp = 0
	colCommand   = 1
	colAccountID = 2
	colBatchID   = 3
	colSummary   = 4
)

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.UTC().Format(time.RFC3339)
	row[colCommand] = e.Command
	row[colAccountID] = e.AccountID
	row[colBatchID] = e.BatchID
	row[colSummary] = e.Summary
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}
	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}
	return Entry{
		Timestamp: ts,
		Command:   record[colCommand],
		AccountID: record[colAccountID],
		BatchID:   record[colBatchID],
		Summary:   record[colSummary],
	}, nil
}

// Path returns the run log location under root.
func Path(root string) string {
	return filepath.Join(root, logFile)
}

// Append writes entries to <root>/logs/run-log.csv, creating the file and
// header if needed.
func Append(root string, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Join(root, logDir), 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	path := Path(root)
	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Read returns all entries from <root>/logs/run-log.csv in the order they
// were written, or nil if the file does not exist.
func Read(root string) ([]Entry, error) {
	f, err := os.Open(Path(root))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields
	cr.ReuseRecord = true

	head, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading run log header: %w", err)
	}
	if got := strings.Join(head, ","); got != Header {
		return nil, fmt.Errorf("unexpected run log header %q", got)
	}

	var entries []Entry
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading run log CSV: %w", err)
		}
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		entries = append(entries, e)
	}
}

// Query narrows the run log. Zero values match everything.
type Query struct {
	Command   string    // exact, case-insensitive
	AccountID string    // exact; workspace-wide runs never match an account
	Since     time.Time // inclusive
	Limit     int       // newest n entries; 0 for all
}

// Match reports whether e satisfies q, ignoring Limit.
func (q Query) Match(e Entry) bool {
	if q.Command != "" && !strings.EqualFold(q.Command, e.Command) {
		return false
	}
	if q.AccountID != "" && q.AccountID != e.AccountID {
		return false
	}
	return q.Since.IsZero() || !e.Timestamp.Before(q.Since)
}

// Select returns the entries matching q, newest first.
func Select(entries []Entry, q Query) []Entry {
	var out []Entry
	for i := len(entries) - 1; i >= 0; i-- {
		if !q.Match(entries[i]) {
			continue
		}
		out = append(out, entries[i])
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out
}

// Find reads the run log under root and returns the entries matching q,
// newest first.
func Find(root string, q Query) ([]Entry, error) {
	entries, err := Read(root)
	if err != nil {
		return nil, err
	}
	return Select(entries, q), nil
}
