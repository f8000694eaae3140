package formula

import "fmt"

// FormulaError reports a malformed expression or an arithmetic failure such as division by zero.
type FormulaError struct {
	RecipeID string
	ItemID   string
	Formula  string
	// Offending sub-expression, or the position for syntax errors.
	Expr   string
	Reason string
}

func (e *FormulaError) Error() string {
	msg := "formula error"
	if e.Formula != "" {
		msg += fmt.Sprintf(" in %q", e.Formula)
	}
	if e.Expr != "" {
		msg += fmt.Sprintf(" at %s", e.Expr)
	}
	msg += ": " + e.Reason
	return withContext(msg, e.RecipeID, e.ItemID)
}

// UnboundVariableError reports an identifier with no binding while evaluating in strict mode.
type UnboundVariableError struct {
	RecipeID string
	ItemID   string
	Name     string
}

func (e *UnboundVariableError) Error() string {
	return withContext(fmt.Sprintf("unbound variable %q", e.Name), e.RecipeID, e.ItemID)
}

func withContext(msg, recipeID, itemID string) string {
	if itemID != "" {
		msg = fmt.Sprintf("%s (item %s)", msg, itemID)
	}
	if recipeID != "" {
		msg = fmt.Sprintf("%s (recipe %s)", msg, recipeID)
	}
	return msg
}
