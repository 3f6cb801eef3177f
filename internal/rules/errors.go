package rules

import (
	"errors"
	"fmt"
)

// Sentinel kinds for errors.Is.
var (
	ErrUnknownReference = errors.New("unknown condition reference")
	ErrSyntax           = errors.New("syntax error")
	ErrInvalidCondition = errors.New("invalid condition")
	ErrInvalidRule      = errors.New("invalid rule")
)

// ExpressionError reports a bad condition logic expression.
type ExpressionError struct {
	Kind     error // ErrUnknownReference or ErrSyntax
	Expr     string
	Position int // 1-based character offset into Expr
	Index    int // the offending reference, for ErrUnknownReference
	Detail   string
}

func (e *ExpressionError) Error() string {
	if e.Kind == ErrUnknownReference {
		return fmt.Sprintf("%v %d at position %d in %q", e.Kind, e.Index, e.Position, e.Expr)
	}
	return fmt.Sprintf("%v at position %d in %q: %s", e.Kind, e.Position, e.Expr, e.Detail)
}

func (e *ExpressionError) Unwrap() error { return e.Kind }

// ConditionError reports a condition that cannot be compiled.
type ConditionError struct {
	Index  int // 1-based
	Detail string
	Err    error
}

func (e *ConditionError) Error() string {
	msg := fmt.Sprintf("condition %d: %s", e.Index, e.Detail)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConditionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidCondition}
	}
	return []error{ErrInvalidCondition, e.Err}
}

// RuleError ties a compile failure to the rule it came from.
type RuleError struct {
	RuleID int64
	Err    error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("rule %d: %v", e.RuleID, e.Err)
}

func (e *RuleError) Unwrap() error { return e.Err }
