// Package formula parses and evaluates the small arithmetic language used for
// per-item quantity formulas: numbers (1e3 exponent form included), identifiers, + - * / % **,
// unary sign and parentheses.
package formula

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

const MaxLength = 200

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func tokenize(src string) ([]token, error) {
	var toks []token
	runes := []rune(src)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case unicode.IsDigit(r) || r == '.':
			start := i
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.') {
				i++
			}
			i += exponentLen(runes[i:])
			toks = append(toks, token{kind: tokNumber, text: string(runes[start:i]), pos: start})
		case unicode.IsLetter(r) || r == '_':
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_') {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: string(runes[start:i]), pos: start})
		case r == '*' && i+1 < len(runes) && runes[i+1] == '*':
			toks = append(toks, token{kind: tokOp, text: "**", pos: i})
			i += 2
		case strings.ContainsRune("+-*/%", r):
			toks = append(toks, token{kind: tokOp, text: string(r), pos: i})
			i++
		case r == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case r == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		default:
			return nil, &FormulaError{Formula: src, Expr: fmt.Sprintf("position %d", i), Reason: fmt.Sprintf("unexpected character %q", r)}
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(runes)})
	return toks, nil
}

// exponentLen returns the length of an [eE][+-]?digits suffix at the start of rs, 0 if there is none.
func exponentLen(rs []rune) int {
	if len(rs) < 2 || (rs[0] != 'e' && rs[0] != 'E') {
		return 0
	}
	n := 1
	if rs[n] == '+' || rs[n] == '-' {
		n++
	}
	digits := 0
	for n < len(rs) && unicode.IsDigit(rs[n]) {
		n++
		digits++
	}
	if digits == 0 {
		return 0
	}
	return n
}

type parser struct {
	src  string
	toks []token
	pos  int
}

// Parse builds the expression tree for src.
func Parse(src string) (Expr, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks}

	e, err := p.expr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorf(t, "unexpected %q", t.text)
	}
	return e, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return &FormulaError{Formula: p.src, Expr: fmt.Sprintf("position %d", t.pos), Reason: fmt.Sprintf(format, args...)}
}

// expr := term (('+' | '-') term)*
func (p *parser) expr() (Expr, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for t := p.peek(); t.kind == tokOp && (t.text == "+" || t.text == "-"); t = p.peek() {
		p.next()
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: t.text, Left: left, Right: right}
	}
	return left, nil
}

// term := unary (('*' | '/' | '%') unary)*
func (p *parser) term() (Expr, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for t := p.peek(); t.kind == tokOp && (t.text == "*" || t.text == "/" || t.text == "%"); t = p.peek() {
		p.next()
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: t.text, Left: left, Right: right}
	}
	return left, nil
}

// unary := ('+' | '-') unary | power
func (p *parser) unary() (Expr, error) {
	if t := p.peek(); t.kind == tokOp && (t.text == "+" || t.text == "-") {
		p.next()
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: t.text[0], Operand: operand}, nil
	}
	return p.power()
}

// power := primary ('**' unary)?   right-associative, binds tighter than a leading sign
func (p *parser) power() (Expr, error) {
	base, err := p.primary()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind == tokOp && t.text == "**" {
		p.next()
		exp, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &Binary{Op: "**", Left: base, Right: exp}, nil
	}
	return base, nil
}

// primary := number | identifier | '(' expr ')'
func (p *parser) primary() (Expr, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		v, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, p.errorf(t, "invalid number %q", t.text)
		}
		return &Literal{Value: v}, nil
	case tokIdent:
		return &Identifier{Name: t.text}, nil
	case tokLParen:
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, p.errorf(closing, "expected ')'")
		}
		return e, nil
	case tokEOF:
		return nil, p.errorf(t, "unexpected end of formula")
	default:
		return nil, p.errorf(t, "unexpected %q", t.text)
	}
}

// Evaluate parses and evaluates src against env.
func Evaluate(src string, env Env) (float64, error) {
	e, err := Parse(src)
	if err != nil {
		return 0, err
	}
	v, err := e.Eval(env)
	if err != nil {
		var fe *FormulaError
		if errors.As(err, &fe) && fe.Formula == "" {
			fe.Formula = src
		}
		return 0, err
	}
	return v, nil
}

// Validate checks a formula before it is stored on a recipe item and returns its identifiers.
// When known is non-nil every identifier must be one of its entries. The formula must
// evaluate to a finite value > 0 with every identifier bound to 1.
func Validate(src string, known []string) ([]string, error) {
	if strings.TrimSpace(src) == "" {
		return nil, &FormulaError{Formula: src, Reason: "empty formula"}
	}
	if len(src) > MaxLength {
		return nil, &FormulaError{Formula: src, Reason: fmt.Sprintf("formula longer than %d characters", MaxLength)}
	}

	e, err := Parse(src)
	if err != nil {
		return nil, err
	}

	names := Identifiers(e)
	if known != nil {
		allowed := make(map[string]bool, len(known))
		for _, k := range known {
			allowed[k] = true
		}
		for _, n := range names {
			if !allowed[n] {
				return nil, &FormulaError{Formula: src, Expr: n, Reason: "unknown variable"}
			}
		}
	}

	dummy := make(map[string]float64, len(names))
	for _, n := range names {
		dummy[n] = 1
	}
	v, err := e.Eval(MapEnv{Values: dummy, StrictMode: true})
	if err != nil {
		var fe *FormulaError
		if errors.As(err, &fe) {
			fe.Formula = src
		}
		return nil, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return nil, &FormulaError{Formula: src, Reason: "result must be a finite value > 0"}
	}
	return names, nil
}
