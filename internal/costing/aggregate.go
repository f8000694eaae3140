package costing

import (
	"errors"
	"sort"
	"strings"

	"github.com/awkward-3312/SDSinventory/internal/formula"
	"github.com/awkward-3312/SDSinventory/internal/model"
)

// ItemCost is one costed recipe line.
type ItemCost struct {
	ItemID     string  `json:"item_id"`
	SupplyID   string  `json:"supply_id"`
	SupplyName string  `json:"supply_name"`
	UnitCode   string  `json:"unit_code"`
	Formula    string  `json:"qty_formula,omitempty"`
	BaseQty    float64 `json:"base_qty"`
	// Quantity after rules, before waste.
	Qty          float64 `json:"qty"`
	WastePct     float64 `json:"waste_pct"`
	QtyWithWaste float64 `json:"qty_with_waste"`
	AvgUnitCost  float64 `json:"avg_unit_cost"`
	LineCost     float64 `json:"line_cost"`
	ZeroCost     bool    `json:"zero_cost"`
}

// CostResult is the materials cost of one recipe under one set of bindings.
type CostResult struct {
	RecipeID          string             `json:"recipe_id"`
	ProductID         string             `json:"product_id"`
	Currency          string             `json:"currency"`
	MaterialsCost     float64            `json:"materials_cost"`
	IsVariable        bool               `json:"is_variable"`
	Strict            bool               `json:"strict"`
	Items             []ItemCost         `json:"items"`
	UncostedSupplyIDs []string           `json:"uncosted_supply_ids"`
	Bindings          map[string]float64 `json:"bindings"`
	Options           map[string]string  `json:"options"`
}

// Aggregate costs cfg against resolved bindings and the supplies referenced by its items.
// supplies must hold every referenced supply; a missing one is an *UnknownSupplyError.
func Aggregate(cfg *model.RecipeConfig, b *Bindings, supplies map[string]model.Supply) (*CostResult, error) {
	recipeID := cfg.Recipe.ID
	res := &CostResult{
		RecipeID:          recipeID,
		ProductID:         cfg.Recipe.ProductID,
		Strict:            b.Strict(),
		IsVariable:        cfg.Recipe.ProductType == model.ProductVariable,
		Items:             make([]ItemCost, 0, len(cfg.Items)),
		UncostedSupplyIDs: []string{},
		Bindings:          b.Numeric,
		Options:           b.Options,
	}

	base := make([]float64, len(cfg.Items))
	perSupply := make(map[string]float64)
	count := make(map[string]int)
	for i, it := range cfg.Items {
		if _, ok := supplies[it.SupplyID]; !ok {
			return nil, &UnknownSupplyError{RecipeID: recipeID, ItemID: it.ID, SupplyID: it.SupplyID}
		}
		q, err := itemQuantity(recipeID, it, b)
		if err != nil {
			return nil, err
		}
		if it.HasFormula() {
			res.IsVariable = true
		}
		base[i] = q
		perSupply[it.SupplyID] += q
		count[it.SupplyID]++
	}

	adjusted := ApplyRules(cfg.Rules, b, perSupply)

	uncosted := make(map[string]struct{})
	for i, it := range cfg.Items {
		s := supplies[it.SupplyID]

		share := 1 / float64(count[it.SupplyID])
		if total := perSupply[it.SupplyID]; total != 0 {
			share = base[i] / total
		}
		qty := adjusted[it.SupplyID] * share
		if qty < 0 {
			qty = 0
		}

		withWaste := qty * (1 + it.WastePct/100)
		line := ItemCost{
			ItemID:       it.ID,
			SupplyID:     it.SupplyID,
			SupplyName:   s.Name,
			UnitCode:     s.UnitCode,
			Formula:      strings.TrimSpace(it.QtyFormula),
			BaseQty:      base[i],
			Qty:          qty,
			WastePct:     it.WastePct,
			QtyWithWaste: withWaste,
			AvgUnitCost:  s.AvgUnitCost,
			LineCost:     withWaste * s.AvgUnitCost,
			ZeroCost:     s.AvgUnitCost <= 0,
		}
		if line.ZeroCost {
			uncosted[it.SupplyID] = struct{}{}
		}
		res.MaterialsCost += line.LineCost
		res.Items = append(res.Items, line)
	}

	for sid := range uncosted {
		res.UncostedSupplyIDs = append(res.UncostedSupplyIDs, sid)
	}
	sort.Strings(res.UncostedSupplyIDs)
	return res, nil
}

// itemQuantity evaluates the item's formula, or returns qty_base when it has none.
// A negative formula result is an error in strict mode and 0 otherwise.
func itemQuantity(recipeID string, it model.RecipeItem, b *Bindings) (float64, error) {
	if !it.HasFormula() {
		return it.QtyBase, nil
	}

	src := strings.TrimSpace(it.QtyFormula)
	q, err := formula.Evaluate(src, b)
	if err != nil {
		var fe *FormulaError
		if errors.As(err, &fe) {
			fe.RecipeID, fe.ItemID = recipeID, it.ID
		}
		var ue *UnboundVariableError
		if errors.As(err, &ue) {
			ue.RecipeID, ue.ItemID = recipeID, it.ID
		}
		return 0, err
	}

	if q < 0 {
		if b.Strict() {
			return 0, &FormulaError{RecipeID: recipeID, ItemID: it.ID, Formula: src, Reason: "negative quantity"}
		}
		return 0, nil
	}
	return q, nil
}
