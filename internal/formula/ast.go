package formula

import (
	"math"
	"strconv"
)

// Expr is a node of a parsed quantity formula.
type Expr interface {
	Eval(env Env) (float64, error)
	String() string
}

// Literal is a numeric constant.
type Literal struct {
	Value float64
}

// Identifier is a name resolved through the Env at evaluation time.
type Identifier struct {
	Name string
}

// Unary is a leading sign, '+' or '-'.
type Unary struct {
	Op      byte
	Operand Expr
}

// Binary applies one of + - * / % ** to two operands.
type Binary struct {
	Op    string
	Left  Expr
	Right Expr
}

func (l *Literal) Eval(Env) (float64, error) { return l.Value, nil }

func (l *Literal) String() string { return strconv.FormatFloat(l.Value, 'g', -1, 64) }

func (id *Identifier) Eval(env Env) (float64, error) {
	if env != nil {
		if v, ok := env.Lookup(id.Name); ok {
			return v, nil
		}
	}
	if env != nil && !env.Strict() {
		return 0, nil
	}
	return 0, &UnboundVariableError{Name: id.Name}
}

func (id *Identifier) String() string { return id.Name }

func (u *Unary) Eval(env Env) (float64, error) {
	v, err := u.Operand.Eval(env)
	if err != nil {
		return 0, err
	}
	if u.Op == '-' {
		return -v, nil
	}
	return v, nil
}

func (u *Unary) String() string { return string(u.Op) + u.Operand.String() }

func (b *Binary) Eval(env Env) (float64, error) {
	left, err := b.Left.Eval(env)
	if err != nil {
		return 0, err
	}
	right, err := b.Right.Eval(env)
	if err != nil {
		return 0, err
	}

	var out float64
	switch b.Op {
	case "+":
		out = left + right
	case "-":
		out = left - right
	case "*":
		out = left * right
	case "/":
		if right == 0 {
			return 0, &FormulaError{Expr: b.String(), Reason: "division by zero"}
		}
		out = left / right
	case "%":
		if right == 0 {
			return 0, &FormulaError{Expr: b.String(), Reason: "modulo by zero"}
		}
		// Floored modulo, so the sign follows the divisor.
		out = left - right*math.Floor(left/right)
	case "**":
		out = math.Pow(left, right)
	default:
		return 0, &FormulaError{Expr: b.String(), Reason: "unsupported operator " + b.Op}
	}

	if math.IsNaN(out) || math.IsInf(out, 0) {
		return 0, &FormulaError{Expr: b.String(), Reason: "non-finite result"}
	}
	return out, nil
}

func (b *Binary) String() string {
	return "(" + b.Left.String() + " " + b.Op + " " + b.Right.String() + ")"
}

// Identifiers returns the distinct identifier names referenced by e, in first-seen order.
func Identifiers(e Expr) []string {
	seen := map[string]bool{}
	var out []string
	var walk func(Expr)
	walk = func(n Expr) {
		switch n := n.(type) {
		case *Identifier:
			if !seen[n.Name] {
				seen[n.Name] = true
				out = append(out, n.Name)
			}
		case *Unary:
			walk(n.Operand)
		case *Binary:
			walk(n.Left)
			walk(n.Right)
		}
	}
	walk(e)
	return out
}
