// Package costing computes the materials cost of a recipe for a concrete set of dimensions,
// variables and options, and derives suggested sale prices from it.
package costing

import (
	"context"
	"errors"
	"fmt"

	"github.com/awkward-3312/SDSinventory/internal/logger"
	"github.com/awkward-3312/SDSinventory/internal/model"
	"github.com/awkward-3312/SDSinventory/internal/pricing"
)

// SupplyStore returns model.ErrNotFound for an unknown supply.
type SupplyStore interface {
	SupplyByID(ctx context.Context, id string) (*model.Supply, error)
}

// RecipeStore returns a recipe with everything attached to it.
type RecipeStore interface {
	RecipeConfig(ctx context.Context, id string) (*model.RecipeConfig, error)
}

// FixedCostStore returns model.ErrNotFound when no period is active.
type FixedCostStore interface {
	ActivePeriodSummary(ctx context.Context) (*model.PeriodSummary, error)
}

// Engine costs recipes against current supply costs and prices them.
type Engine struct {
	supplies   SupplyStore
	recipes    RecipeStore
	fixedCosts FixedCostStore
	currency   string
}

// NewEngine returns an Engine; fixedCosts may be nil, which prices without operational cost.
func NewEngine(supplies SupplyStore, recipes RecipeStore, fixedCosts FixedCostStore, currency string) *Engine {
	return &Engine{supplies: supplies, recipes: recipes, fixedCosts: fixedCosts, currency: currency}
}

func (e *Engine) Currency() string { return e.currency }

// ComputeRecipeCost resolves req against the recipe's config and costs every item.
func (e *Engine) ComputeRecipeCost(ctx context.Context, req Request) (*CostResult, error) {
	_, res, err := e.compute(ctx, req)
	return res, err
}

func (e *Engine) compute(ctx context.Context, req Request) (*model.RecipeConfig, *CostResult, error) {
	const op = "costing.ComputeRecipeCost"

	cfg, err := e.recipes.RecipeConfig(ctx, req.RecipeID)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	b, err := Resolve(cfg, req)
	if err != nil {
		return nil, nil, err
	}

	supplies := make(map[string]model.Supply, len(cfg.Items))
	for _, it := range cfg.Items {
		if _, ok := supplies[it.SupplyID]; ok {
			continue
		}
		s, err := e.supplies.SupplyByID(ctx, it.SupplyID)
		if errors.Is(err, model.ErrNotFound) {
			return nil, nil, &UnknownSupplyError{RecipeID: cfg.Recipe.ID, ItemID: it.ID, SupplyID: it.SupplyID}
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%s: supply %s: %w", op, it.SupplyID, err)
		}
		supplies[it.SupplyID] = *s
	}

	res, err := Aggregate(cfg, b, supplies)
	if err != nil {
		return nil, nil, err
	}
	res.Currency = e.currency

	if len(res.UncostedSupplyIDs) > 0 {
		logger.Debug(ctx, "recipe has supplies without cost",
			logger.String("recipe_id", res.RecipeID),
			logger.Any("supply_ids", res.UncostedSupplyIDs),
		)
	}
	return cfg, res, nil
}

// PriceSuggestion is a sale price derived from a recipe's cost.
type PriceSuggestion struct {
	RecipeID        string       `json:"recipe_id"`
	Currency        string       `json:"currency"`
	Mode            pricing.Mode `json:"mode"`
	Value           float64      `json:"value"`
	MaterialsCost   float64      `json:"materials_cost"`
	OperationalCost float64      `json:"operational_cost"`
	TotalCost       float64      `json:"total_cost"`
	SuggestedPrice  float64      `json:"suggested_price"`
	Cost            *CostResult  `json:"cost"`
}

// SuggestOptions tunes SuggestPrice.
type SuggestOptions struct {
	Mode pricing.Mode
	// Nil uses the recipe's margin target.
	Value *float64
	// Adds the active period's operational cost per order to the cost being priced.
	IncludeOperational bool
}

// SuggestPrice costs req and prices the result.
func (e *Engine) SuggestPrice(ctx context.Context, req Request, opts SuggestOptions) (*PriceSuggestion, error) {
	const op = "costing.SuggestPrice"

	mode := opts.Mode
	if mode == "" {
		mode = pricing.ModeMargin
	}

	cfg, res, err := e.compute(ctx, req)
	if err != nil {
		return nil, err
	}

	value := cfg.Recipe.MarginTarget
	if opts.Value != nil {
		value = *opts.Value
	}

	out := &PriceSuggestion{
		RecipeID:      res.RecipeID,
		Currency:      e.currency,
		Mode:          mode,
		Value:         value,
		MaterialsCost: res.MaterialsCost,
		Cost:          res,
	}

	if opts.IncludeOperational {
		perOrder, err := e.OperationalCostPerOrder(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out.OperationalCost = pricing.Allocate([]float64{res.MaterialsCost}, perOrder)[0]
	}
	out.TotalCost = out.MaterialsCost + out.OperationalCost

	out.SuggestedPrice, err = pricing.Suggest(out.TotalCost, mode, value)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// OperationalCostPerOrder returns the active period's fixed costs per order, 0 without an active period.
func (e *Engine) OperationalCostPerOrder(ctx context.Context) (float64, error) {
	summary, err := e.ActivePeriod(ctx)
	if err != nil || summary == nil {
		return 0, err
	}
	return summary.OperationalCostPerOrder, nil
}

// ActivePeriod returns the active fixed cost period, or nil when there is none.
func (e *Engine) ActivePeriod(ctx context.Context) (*model.PeriodSummary, error) {
	if e.fixedCosts == nil {
		return nil, nil
	}
	summary, err := e.fixedCosts.ActivePeriodSummary(ctx)
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// AllocateOperationalCost spreads opPerOrder over order lines by their materials cost.
func (e *Engine) AllocateOperationalCost(lines []float64, opPerOrder float64) []float64 {
	return pricing.Allocate(lines, opPerOrder)
}
