// Package pattern compiles user-authored regular expressions under a fixed
// budget. Go's regexp is RE2-based and matches in linear time, so the budget
// only bounds pattern and subject size.
package pattern

import (
	"fmt"
	"regexp"
)

const (
	// MaxPatternLength is the longest pattern accepted, in bytes.
	MaxPatternLength = 512
	// MaxSubjectLength is the longest subject matched, in bytes. Longer
	// subjects are truncated.
	MaxSubjectLength = 4096
)

// Compile compiles expr, optionally case-insensitively.
func Compile(expr string, caseInsensitive bool) (*regexp.Regexp, error) {
	if len(expr) > MaxPatternLength {
		return nil, fmt.Errorf("pattern is %d bytes, limit is %d", len(expr), MaxPatternLength)
	}
	if caseInsensitive {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compiling pattern: %w", err)
	}
	return re, nil
}

// Subject clips s to MaxSubjectLength bytes.
func Subject(s string) string {
	if len(s) <= MaxSubjectLength {
		return s
	}
	return s[:MaxSubjectLength]
}
