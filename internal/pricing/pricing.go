package pricing

import (
	"fmt"
	"math"
	"strings"

	"github.com/awkward-3312/SDSinventory/internal/model"
)

// Mode selects how a target is turned into a sale price.
type Mode string

const (
	// ModeMargin targets (price - cost) / price.
	ModeMargin Mode = "margin"
	// ModeMarkup targets (price - cost) / cost.
	ModeMarkup Mode = "markup"
)

// MaxMargin caps the margin used in cost / (1 - m).
const MaxMargin = 0.99

// ParseMode normalizes a user supplied mode; an empty string means margin.
func ParseMode(raw string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(raw))); m {
	case "":
		return ModeMargin, nil
	case ModeMargin, ModeMarkup:
		return m, nil
	default:
		return "", &InvalidModeError{Mode: raw, Reason: "mode must be margin or markup"}
	}
}

// InvalidModeError reports an unsupported pricing mode or a target outside its domain.
type InvalidModeError struct {
	Mode   string
	Value  float64
	Reason string
}

func (e *InvalidModeError) Error() string {
	return fmt.Sprintf("invalid pricing %s=%v: %s", e.Mode, e.Value, e.Reason)
}

// Suggest returns the sale price that hits value under mode for the given total cost.
func Suggest(totalCost float64, mode Mode, value float64) (float64, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, &InvalidModeError{Mode: string(mode), Value: value, Reason: "value must be finite"}
	}

	switch mode {
	case ModeMargin:
		if value < 0 || value >= 1 {
			return 0, &InvalidModeError{Mode: string(mode), Value: value, Reason: "margin must be in [0, 1)"}
		}
		m := math.Min(value, MaxMargin)
		return totalCost / (1 - m), nil
	case ModeMarkup:
		if value < 0 {
			return 0, &InvalidModeError{Mode: string(mode), Value: value, Reason: "markup must be >= 0"}
		}
		return totalCost * (1 + value), nil
	default:
		return 0, &InvalidModeError{Mode: string(mode), Value: value, Reason: "mode must be margin or markup"}
	}
}

// LineInput describes one order line priced per unit.
type LineInput struct {
	UnitMaterialsCost float64
	// Operational cost allocated to the whole line.
	OperationalAlloc float64
	Qty              float64
	Mode             Mode
	Value            float64
	// Optional manual unit price replacing the suggestion.
	SalePrice *float64
}

// Line groups per-unit and per-line figures derived for an order line.
type Line struct {
	UnitCost           float64
	SuggestedUnitPrice float64
	UnitPrice          float64
	UnitProfit         float64
	LineCost           float64
	LineSuggested      float64
	LinePrice          float64
	LineProfit         float64
	LineMarginPct      float64
}

// LineQuote prices a line per unit and scales by quantity.
func LineQuote(in LineInput) (Line, error) {
	if in.Qty <= 0 {
		return Line{}, fmt.Errorf("%w: qty must be > 0", model.ErrValidation)
	}

	unitCost := in.UnitMaterialsCost + in.OperationalAlloc/in.Qty
	suggested, err := Suggest(unitCost, in.Mode, in.Value)
	if err != nil {
		return Line{}, err
	}

	unitPrice := suggested
	if in.SalePrice != nil {
		if *in.SalePrice < 0 {
			return Line{}, fmt.Errorf("%w: sale_price must be >= 0", model.ErrValidation)
		}
		unitPrice = *in.SalePrice
	}

	out := Line{
		UnitCost:           unitCost,
		SuggestedUnitPrice: suggested,
		UnitPrice:          unitPrice,
		UnitProfit:         unitPrice - unitCost,
		LineCost:           unitCost * in.Qty,
		LineSuggested:      suggested * in.Qty,
		LinePrice:          unitPrice * in.Qty,
	}
	out.LineProfit = out.LinePrice - out.LineCost
	if out.LinePrice != 0 {
		out.LineMarginPct = out.LineProfit / out.LinePrice
	}
	return out, nil
}
