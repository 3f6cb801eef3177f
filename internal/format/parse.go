package format

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/itchyny/timefmt-go"
	"github.com/shopspring/decimal"
)

// Amounts are either plain ("-1234,56") or grouped with the other separator
// ("-1.234,56"); anything else, including exponents and "±", is rejected.
var (
	amountCommaDecimal = regexp.MustCompile(`^[+-]?(\d+|\d{1,3}(\.\d{3})+)(,\d+)?$`)
	amountDotDecimal   = regexp.MustCompile(`^[+-]?(\d+|\d{1,3}(,\d{3})+)(\.\d+)?$`)
)

var errEmpty = errors.New("empty value")

// ParseAmount parses raw honoring decimalSeparator (',' or '.'). Whitespace
// and apostrophe grouping are ignored.
func ParseAmount(raw string, decimalSeparator rune) (decimal.Decimal, error) {
	s := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\u00a0', '\u202f', '\'':
			return -1
		}
		return r
	}, raw)
	if s == "" {
		return decimal.Decimal{}, errEmpty
	}

	var normalized string
	switch decimalSeparator {
	case ',':
		if !amountCommaDecimal.MatchString(s) {
			return decimal.Decimal{}, fmt.Errorf("parsing amount %q: not a decimal number", raw)
		}
		normalized = strings.ReplaceAll(strings.ReplaceAll(s, ".", ""), ",", ".")
	case '.':
		if !amountDotDecimal.MatchString(s) {
			return decimal.Decimal{}, fmt.Errorf("parsing amount %q: not a decimal number", raw)
		}
		normalized = strings.ReplaceAll(s, ",", "")
	default:
		return decimal.Decimal{}, fmt.Errorf("unsupported decimal separator %q", decimalSeparator)
	}

	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parsing amount %q: %w", raw, err)
	}
	return d, nil
}

// ParseDate parses raw with a strftime pattern (any layout containing '%')
// or a Go reference layout. The result is in UTC. Impossible calendar dates
// such as 31.04. are rejected by both kinds of layout.
func ParseDate(raw, layout string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, errEmpty
	}
	var (
		t   time.Time
		err error
	)
	if strings.Contains(layout, "%") {
		t, err = timefmt.Parse(s, layout)
		if err == nil && !sameFields(s, timefmt.Format(t, layout)) {
			err = errors.New("date out of range")
		}
	} else {
		t, err = time.Parse(layout, s)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q with format %q: %w", raw, layout, err)
	}
	return t.UTC(), nil
}

// sameFields reports whether a parsed date string and its re-formatted form
// agree: digit runs must be numerically equal, so "1.4.2025" matches
// "01.04.2025" but a normalized "01.05.2025" does not; other text compares
// case-insensitively.
func sameFields(in, out string) bool {
	a, b := dateFields(in), dateFields(out)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func dateFields(s string) []string {
	var (
		fields []string
		cur    strings.Builder
		digits bool
	)
	flush := func() {
		if cur.Len() == 0 {
			return
		}
		f := cur.String()
		if digits {
			f = strings.TrimLeft(f, "0")
			if f == "" {
				f = "0"
			}
		} else {
			f = strings.ToLower(strings.Join(strings.Fields(f), " "))
		}
		if f != "" {
			fields = append(fields, f)
		}
		cur.Reset()
	}
	for _, r := range s {
		isDigit := r >= '0' && r <= '9'
		if isDigit != digits {
			flush()
			digits = isDigit
		}
		cur.WriteRune(r)
	}
	flush()
	return fields
}

// IsEmpty reports whether err came from parsing a blank value.
func IsEmpty(err error) bool {
	return errors.Is(err, errEmpty)
}
