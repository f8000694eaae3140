package costing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/awkward-3312/SDSinventory/internal/formula"
	"github.com/awkward-3312/SDSinventory/internal/pricing"
)

type (
	FormulaError         = formula.FormulaError
	UnboundVariableError = formula.UnboundVariableError
	InvalidModeError     = pricing.InvalidModeError
)

// UnknownSupplyError reports a recipe item pointing at a supply the store does not know.
type UnknownSupplyError struct {
	RecipeID string
	ItemID   string
	SupplyID string
}

func (e *UnknownSupplyError) Error() string {
	return fmt.Sprintf("unknown supply %s (item %s) (recipe %s)", e.SupplyID, e.ItemID, e.RecipeID)
}

// InvalidRangeError reports a bound value outside its declared domain: a variable outside
// min/max, a non-positive dimension, or an option key that is not declared.
type InvalidRangeError struct {
	RecipeID string
	Name     string
	Value    string
	Min      *float64
	Max      *float64
	Allowed  []string
}

func (e *InvalidRangeError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s=%s out of range", e.Name, e.Value)
	if e.Min != nil {
		fmt.Fprintf(&b, " min=%v", *e.Min)
	}
	if e.Max != nil {
		fmt.Fprintf(&b, " max=%v", *e.Max)
	}
	if len(e.Allowed) > 0 {
		fmt.Fprintf(&b, " allowed=[%s]", strings.Join(e.Allowed, ","))
	}
	if e.RecipeID != "" {
		fmt.Fprintf(&b, " (recipe %s)", e.RecipeID)
	}
	return b.String()
}

// IsCostingError reports whether err is one of the typed errors raised by a computation.
// Callers use it to tell input problems from infrastructure failures.
func IsCostingError(err error) bool {
	var (
		fe  *FormulaError
		ue  *UnboundVariableError
		se  *UnknownSupplyError
		re  *InvalidRangeError
		ime *InvalidModeError
	)
	return errors.As(err, &fe) || errors.As(err, &ue) || errors.As(err, &se) || errors.As(err, &re) || errors.As(err, &ime)
}
