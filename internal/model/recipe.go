package model

import (
	"strings"
	"time"
)

type (
	ProductType string
	RuleScope   string
	RuleEffect  string
	Operator    string
)

const (
	ProductFixed    ProductType = "fixed"
	ProductVariable ProductType = "variable"
)

const (
	ScopeGlobal RuleScope = "global"
	ScopeSupply RuleScope = "supply"
)

const (
	EffectMultiplier RuleEffect = "multiplier"
	EffectAddQty     RuleEffect = "add_qty"
)

const (
	OpEq  Operator = "=="
	OpNe  Operator = "!="
	OpGt  Operator = ">"
	OpLt  Operator = "<"
	OpGte Operator = ">="
	OpLte Operator = "<="
)

const DefaultMarginTarget = 0.4

func (t ProductType) Valid() bool { return t == ProductFixed || t == ProductVariable }
func (s RuleScope) Valid() bool   { return s == ScopeGlobal || s == ScopeSupply }
func (e RuleEffect) Valid() bool  { return e == EffectMultiplier || e == EffectAddQty }

func (o Operator) Valid() bool {
	switch o {
	case OpEq, OpNe, OpGt, OpLt, OpGte, OpLte:
		return true
	}
	return false
}

type Recipe struct {
	ID          string      `json:"id"`
	ProductID   string      `json:"product_id"`
	Name        string      `json:"name"`
	ProductType ProductType `json:"product_type"`
	// Target margin as a fraction of the sale price, 0 <= m < 1.
	MarginTarget float64   `json:"margin_target"`
	CreatedAt    time.Time `json:"created_at"`
}

type RecipeItem struct {
	ID       string `json:"id"`
	RecipeID string `json:"recipe_id"`
	SupplyID string `json:"supply_id"`
	// Literal per-unit consumption, used when QtyFormula is empty.
	QtyBase float64 `json:"qty_base"`
	// Extra consumption in percentage points.
	WastePct float64 `json:"waste_pct"`
	// Optional quantity expression over width/height, variable codes and option codes.
	QtyFormula string `json:"qty_formula"`
}

func (it RecipeItem) HasFormula() bool { return strings.TrimSpace(it.QtyFormula) != "" }

type RecipeVariable struct {
	ID           string   `json:"id"`
	RecipeID     string   `json:"recipe_id"`
	Code         string   `json:"code"`
	Label        string   `json:"label"`
	MinValue     *float64 `json:"min_value"`
	MaxValue     *float64 `json:"max_value"`
	DefaultValue *float64 `json:"default_value"`
}

type RecipeOption struct {
	ID       string `json:"id"`
	RecipeID string `json:"recipe_id"`
	Code     string `json:"code"`
	Label    string `json:"label"`
	// Values keep their declaration order; the first one is the non-strict fallback.
	Values []RecipeOptionValue `json:"values"`
}

type RecipeOptionValue struct {
	ID           string  `json:"id"`
	OptionID     string  `json:"option_id"`
	ValueKey     string  `json:"value_key"`
	Label        string  `json:"label"`
	NumericValue float64 `json:"numeric_value"`
}

type RecipeRule struct {
	ID       string `json:"id"`
	RecipeID string `json:"recipe_id"`
	// Position in the recipe's rule fold; rules apply in ascending order.
	SequenceIndex  int        `json:"sequence_index"`
	Scope          RuleScope  `json:"scope"`
	TargetSupplyID string     `json:"target_supply_id"`
	ConditionVar   string     `json:"condition_var"`
	Operator       Operator   `json:"operator"`
	ConditionValue string     `json:"condition_value"`
	EffectType     RuleEffect `json:"effect_type"`
	EffectValue    float64    `json:"effect_value"`
	// Attachment order within the recipe; breaks SequenceIndex ties.
	Position int `json:"position"`
}

// RecipeConfig is everything the cost engine needs to know about a recipe.
type RecipeConfig struct {
	Recipe    Recipe           `json:"recipe"`
	Items     []RecipeItem     `json:"items"`
	Variables []RecipeVariable `json:"variables"`
	Options   []RecipeOption   `json:"options"`
	Rules     []RecipeRule     `json:"rules"`
}
