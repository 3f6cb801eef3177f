package rules

import (
	"strconv"
	"strings"
	"unicode"
)

// Expr is a parsed condition logic expression. Leaves are 1-based condition
// indices.
type Expr interface {
	// Eval reduces the expression; cond reports whether condition i holds.
	// Evaluation short-circuits, so cond may not be called for every leaf.
	Eval(cond func(i int) bool) bool
	String() string
}

// Ref is a reference to one condition.
type Ref int

// And is a conjunction.
type And struct{ L, R Expr }

// Or is a disjunction.
type Or struct{ L, R Expr }

func (r Ref) Eval(cond func(int) bool) bool { return cond(int(r)) }
func (a And) Eval(cond func(int) bool) bool { return a.L.Eval(cond) && a.R.Eval(cond) }
func (o Or) Eval(cond func(int) bool) bool { return o.L.Eval(cond) || o.R.Eval(cond) }

func (r Ref) String() string { return strconv.Itoa(int(r)) }

func (a And) String() string {
	return group(a.L, false) + " AND " + group(a.R, true)
}

func (o Or) String() string {
	return group(o.L, false) + " OR " + group(o.R, true)
}

// group renders a child of a binary node. An Or under an And always needs
// parentheses; a right child of the same kind needs them to keep the
// left-associative shape.
func group(e Expr, right bool) string {
	switch e.(type) {
	case Or:
		return "(" + e.String() + ")"
	case And:
		if right {
			return "(" + e.String() + ")"
		}
	}
	return e.String()
}

// Refs returns every condition index referenced by e, in order of appearance.
func Refs(e Expr) []int {
	var out []int
	var walk func(Expr)
	walk = func(e Expr) {
		switch n := e.(type) {
		case Ref:
			out = append(out, int(n))
		case And:
			walk(n.L)
			walk(n.R)
		case Or:
			walk(n.L)
			walk(n.R)
		}
	}
	walk(e)
	return out
}

// Renumber returns e with every reference shifted by offset.
func Renumber(e Expr, offset int) Expr {
	switch n := e.(type) {
	case Ref:
		return Ref(int(n) + offset)
	case And:
		return And{Renumber(n.L, offset), Renumber(n.R, offset)}
	case Or:
		return Or{Renumber(n.L, offset), Renumber(n.R, offset)}
	}
	return e
}

// ParseLogic parses logic over conditions 1..n. AND binds tighter than OR,
// both are left-associative, and keywords are case-insensitive. Empty logic
// means every condition must hold (just condition 1 when n is 1).
func ParseLogic(logic string, n int) (Expr, error) {
	if strings.TrimSpace(logic) == "" {
		if n < 1 {
			return nil, &ExpressionError{Kind: ErrSyntax, Expr: logic, Position: 1, Detail: "no conditions to combine"}
		}
		var e Expr = Ref(1)
		for i := 2; i <= n; i++ {
			e = And{e, Ref(i)}
		}
		return e, nil
	}

	toks, err := lex(logic)
	if err != nil {
		return nil, err
	}
	p := &parser{src: logic, toks: toks, n: n}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.syntax(t, "unexpected "+t.describe())
	}
	return e, nil
}

type tokKind int

const (
	tokEOF tokKind = iota
	tokNum
	tokAnd
	tokOr
	tokLParen
	tokRParen
)

type token struct {
	kind tokKind
	text string
	pos  int // 1-based
}

func (t token) describe() string {
	if t.kind == tokEOF {
		return "end of expression"
	}
	return strconv.Quote(t.text)
}

func lex(src string) ([]token, error) {
	var toks []token
	rs := []rune(src)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			toks = append(toks, token{tokLParen, "(", i + 1})
			i++
		case r == ')':
			toks = append(toks, token{tokRParen, ")", i + 1})
			i++
		case r >= '0' && r <= '9':
			j := i
			for j < len(rs) && rs[j] >= '0' && rs[j] <= '9' {
				j++
			}
			toks = append(toks, token{tokNum, string(rs[i:j]), i + 1})
			i = j
		case unicode.IsLetter(r):
			j := i
			for j < len(rs) && unicode.IsLetter(rs[j]) {
				j++
			}
			word := string(rs[i:j])
			switch strings.ToUpper(word) {
			case "AND":
				toks = append(toks, token{tokAnd, word, i + 1})
			case "OR":
				toks = append(toks, token{tokOr, word, i + 1})
			default:
				return nil, &ExpressionError{Kind: ErrSyntax, Expr: src, Position: i + 1, Detail: "unknown keyword " + strconv.Quote(word)}
			}
			i = j
		default:
			return nil, &ExpressionError{Kind: ErrSyntax, Expr: src, Position: i + 1, Detail: "unexpected character " + strconv.QuoteRune(r)}
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(rs) + 1}), nil
}

type parser struct {
	src  string
	toks []token
	i    int
	n    int
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) syntax(t token, detail string) error {
	return &ExpressionError{Kind: ErrSyntax, Expr: p.src, Position: t.pos, Detail: detail}
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = Or{left, right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		p.next()
		right, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		left = And{left, right}
	}
	return left, nil
}

func (p *parser) parseAtom() (Expr, error) {
	t := p.next()
	switch t.kind {
	case tokNum:
		idx, err := strconv.Atoi(t.text)
		if err != nil || idx < 1 || idx > p.n {
			if err != nil {
				idx = -1
			}
			return nil, &ExpressionError{Kind: ErrUnknownReference, Expr: p.src, Position: t.pos, Index: idx}
		}
		return Ref(idx), nil
	case tokLParen:
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if c := p.next(); c.kind != tokRParen {
			return nil, p.syntax(c, "expected \")\", got "+c.describe())
		}
		return e, nil
	}
	return nil, p.syntax(t, "expected condition number or \"(\", got "+t.describe())
}
