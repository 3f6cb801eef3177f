package format

import (
	"fmt"
	"strings"

	"github.com/cleared-dev/tally/internal/pattern"
)

// Header indexes column names by position. Names are matched after trimming
// surrounding whitespace; the first occurrence of a duplicate name wins.
type Header struct {
	names []string
	index map[string]int
}

// NewHeader builds a Header from ordered column names.
func NewHeader(names []string) *Header {
	h := &Header{names: make([]string, len(names)), index: make(map[string]int, len(names))}
	for i, n := range names {
		n = strings.TrimSpace(strings.TrimPrefix(n, "\ufeff"))
		h.names[i] = n
		if _, dup := h.index[n]; !dup {
			h.index[n] = i
		}
	}
	return h
}

// Names returns the trimmed column names in order.
func (h *Header) Names() []string {
	return h.names
}

// Has reports whether column is present.
func (h *Header) Has(column string) bool {
	_, ok := h.index[strings.TrimSpace(column)]
	return ok
}

func (h *Header) missing(field CanonicalField, column string) error {
	return &Error{
		Kind:       ErrBadColumn,
		Field:      field,
		Detail:     fmt.Sprintf("column %q not in header", column),
		Suggestion: suggest(column, h.names),
	}
}

// Row is one CSV record together with the header it is read against.
type Row struct {
	Header *Header
	Cells  []string
}

// Value returns the raw cell for column. ok is false when the header has no
// such column; a present column beyond the end of a short record yields "".
func (r Row) Value(column string) (value string, ok bool) {
	i, ok := r.Header.index[strings.TrimSpace(column)]
	if !ok {
		return "", false
	}
	if i >= len(r.Cells) {
		return "", true
	}
	return r.Cells[i], true
}

// Extract applies every non-unused strategy of cfg to row. Missing data
// yields "" rather than an error; mandatory-field checks happen later.
func Extract(cfg *FormatConfig, row Row) map[CanonicalField]string {
	out := make(map[CanonicalField]string, len(cfg.Columns))
	for field, s := range cfg.Columns {
		if s.Kind == StrategyUnused {
			continue
		}
		out[field] = extractOne(s, row)
	}
	return out
}

func extractOne(s ColumnStrategy, row Row) string {
	switch s.Kind {
	case StrategyName:
		v, _ := row.Value(s.Column)
		return v
	case StrategyJoin:
		parts := make([]string, 0, len(s.Columns))
		for _, col := range s.Columns {
			v, ok := row.Value(col)
			if !ok {
				continue
			}
			parts = append(parts, v)
		}
		return strings.Join(parts, s.Separator)
	case StrategyRegex:
		var b strings.Builder
		for _, src := range s.Sources {
			v, ok := row.Value(src.Column)
			if !ok || src.re == nil {
				continue
			}
			m := src.re.FindStringSubmatch(pattern.Subject(v))
			if m == nil {
				continue
			}
			// Group 1 when the pattern captures, else the whole match.
			frag := m[0]
			if len(m) > 1 {
				frag = m[1]
			}
			b.WriteString(frag)
		}
		return b.String()
	}
	return ""
}
