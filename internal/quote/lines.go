package quote

import (
	"context"
	"fmt"

	"github.com/awkward-3312/SDSinventory/internal/costing"
	"github.com/awkward-3312/SDSinventory/internal/model"
	"github.com/awkward-3312/SDSinventory/internal/money"
	"github.com/awkward-3312/SDSinventory/internal/pricing"
)

// PricedLine is an order line after costing and pricing. Money fields cover the whole line
// and are rounded to cents.
type PricedLine struct {
	ProductID        string
	RecipeID         string
	Qty              float64
	MaterialsCost    float64
	OperationalAlloc float64
	SuggestedPrice   float64
	SalePrice        float64
	Profit           float64
	Width            *float64
	Height           *float64
	Vars             map[string]float64
	Opts             map[string]string
	// Costed recipe items for one unit of the line, waste included.
	Items []costing.ItemCost
}

// PricedOrder is a set of priced lines sharing the active period's operational cost.
type PricedOrder struct {
	Lines           []PricedLine
	PeriodID        string
	MaterialsCost   float64
	OperationalCost float64
	TotalCost       float64
	TotalPrice      float64
	TotalProfit     float64
}

// PriceLines costs every line in strict mode, spreads the active period's operational cost
// per order over the lines by materials weight and prices each line under mode and value.
func PriceLines(ctx context.Context, engine CostEngine, lines []Line, mode pricing.Mode, value float64) (*PricedOrder, error) {
	costs := make([]*costing.CostResult, len(lines))
	products := make([]string, len(lines))
	lineMaterials := make([]float64, len(lines))
	for i, l := range lines {
		if l.Qty <= 0 {
			return nil, fmt.Errorf("%w: line %d: qty must be > 0", model.ErrValidation, i+1)
		}
		res, err := engine.ComputeRecipeCost(ctx, costing.Request{
			RecipeID: l.RecipeID, Dims: l.Dims, Vars: l.Vars, Opts: l.Opts, Strict: true,
		})
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		if len(res.Items) == 0 {
			return nil, fmt.Errorf("%w: line %d: recipe %s has no items", model.ErrValidation, i+1, l.RecipeID)
		}
		if products[i], err = LineProduct(l.ProductID, res); err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		costs[i] = res
		lineMaterials[i] = res.MaterialsCost * l.Qty
	}

	period, err := engine.ActivePeriod(ctx)
	if err != nil {
		return nil, fmt.Errorf("active period: %w", err)
	}
	order := &PricedOrder{Lines: make([]PricedLine, 0, len(lines))}
	perOrder := 0.0
	if period != nil {
		perOrder = period.OperationalCostPerOrder
		order.PeriodID = period.Period.ID
	}

	allocs := pricing.Allocate(lineMaterials, perOrder)

	var totalCost, totalPrice []float64
	for i, l := range lines {
		priced, err := pricing.LineQuote(pricing.LineInput{
			UnitMaterialsCost: costs[i].MaterialsCost,
			OperationalAlloc:  allocs[i],
			Qty:               l.Qty,
			Mode:              mode,
			Value:             value,
			SalePrice:         l.SalePrice,
		})
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}

		pl := PricedLine{
			ProductID:        products[i],
			RecipeID:         l.RecipeID,
			Qty:              l.Qty,
			MaterialsCost:    money.Round2(lineMaterials[i]),
			OperationalAlloc: money.Round2(allocs[i]),
			SuggestedPrice:   money.Round2(priced.LineSuggested),
			SalePrice:        money.Round2(priced.LinePrice),
			Profit:           money.Round2(priced.LineProfit),
			Vars:             l.Vars,
			Opts:             l.Opts,
			Items:            costs[i].Items,
		}
		if l.Dims != nil {
			w, h := l.Dims.Width, l.Dims.Height
			pl.Width, pl.Height = &w, &h
		}
		order.Lines = append(order.Lines, pl)

		totalCost = append(totalCost, priced.LineCost)
		totalPrice = append(totalPrice, priced.LinePrice)
	}

	order.MaterialsCost = money.Round2(money.Sum(lineMaterials...))
	order.OperationalCost = money.Round2(money.Sum(allocs...))
	order.TotalCost = money.Round2(money.Sum(totalCost...))
	order.TotalPrice = money.Round2(money.Sum(totalPrice...))
	order.TotalProfit = money.Round2(order.TotalPrice - order.TotalCost)
	return order, nil
}

// LineProduct returns the product a line is for. An empty productID takes the product of the
// costed recipe; a different one is a model.ErrValidation.
func LineProduct(productID string, res *costing.CostResult) (string, error) {
	switch {
	case res.ProductID == "":
		return productID, nil
	case productID == "":
		return res.ProductID, nil
	case productID != res.ProductID:
		return "", fmt.Errorf("%w: recipe %s does not belong to product %s", model.ErrValidation, res.RecipeID, productID)
	}
	return productID, nil
}
