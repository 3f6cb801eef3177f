package format

import (
	"errors"
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Sentinel kinds, usable with errors.Is against any *Error.
var (
	ErrUnknownFormat  = errors.New("unknown format")
	ErrUnknownVersion = errors.New("unknown format version")
	ErrBadColumn      = errors.New("bad column reference")
	ErrBadRegex       = errors.New("bad regex")
	ErrInvalid        = errors.New("invalid format config")
)

// Error is a configuration-time failure. It is fatal to loading or using one
// format but never to the rest of the system.
type Error struct {
	Kind       error // one of the sentinels above
	Format     string
	Version    string
	Field      CanonicalField
	Detail     string
	Suggestion string // closest known name, if any
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Format != "" {
		fmt.Fprintf(&b, " %q", e.Format)
	}
	if e.Version != "" {
		fmt.Fprintf(&b, " version %q", e.Version)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " field %s", e.Field)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Suggestion != "" {
		fmt.Fprintf(&b, " (did you mean %q?)", e.Suggestion)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// suggest returns the candidate closest to name, or "" if nothing is close.
func suggest(name string, candidates []string) string {
	best := ""
	bestDist := -1
	needle := strings.ToLower(strings.TrimSpace(name))
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(needle, strings.ToLower(strings.TrimSpace(c)))
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	limit := len(needle) / 3
	if limit < 2 {
		limit = 2
	}
	if bestDist < 0 || bestDist > limit {
		return ""
	}
	return best
}

// withContext fills in format/version on an *Error that lacks them.
func withContext(err error, name, version string) error {
	var fe *Error
	if errors.As(err, &fe) {
		if fe.Format == "" {
			fe.Format = name
		}
		if fe.Version == "" {
			fe.Version = version
		}
		return fe
	}
	return err
}
