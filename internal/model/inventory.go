package model

import "time"

type (
	MovementType string
	MovementRef  string
)

const (
	MovementIn  MovementType = "IN"
	MovementOut MovementType = "OUT"
)

const (
	RefPurchase   MovementRef = "purchase"
	RefSale       MovementRef = "sale"
	RefSaleVoid   MovementRef = "sale_void"
	RefProduction MovementRef = "production"
)

// Movement is one kardex entry: stock entering or leaving a supply.
type Movement struct {
	ID               string       `json:"id"`
	SupplyID         string       `json:"supply_id"`
	Type             MovementType `json:"movement_type"`
	QtyBase          float64      `json:"qty_base"`
	UnitCostSnapshot float64      `json:"unit_cost_snapshot"`
	RefType          MovementRef  `json:"ref_type"`
	// Purchase, sale item or production run the movement belongs to.
	RefID     string    `json:"ref_id"`
	CreatedAt time.Time `json:"created_at"`
}

type MovementSummary struct {
	SupplyID string  `json:"supply_id"`
	TotalIn  float64 `json:"total_in"`
	TotalOut float64 `json:"total_out"`
	Balance  float64 `json:"balance"`
}

// Consumption is stock a sale line or production run takes from one supply.
type Consumption struct {
	SupplyID string  `json:"supply_id"`
	Qty      float64 `json:"qty_base"`
	UnitCost float64 `json:"unit_cost"`
}

type ProductionRun struct {
	ID            string        `json:"id"`
	ProductID     string        `json:"product_id"`
	RecipeID      string        `json:"recipe_id"`
	Qty           float64       `json:"qty"`
	MaterialsCost float64       `json:"materials_cost"`
	Currency      string        `json:"currency"`
	CreatedAt     time.Time     `json:"created_at"`
	Consumptions  []Consumption `json:"consumptions"`
}
