package model

import "time"

type Sale struct {
	ID string `json:"id"`
	// Set when the sale was converted from a quote.
	QuoteID              string     `json:"quote_id,omitempty"`
	CustomerName         string     `json:"customer_name"`
	Notes                string     `json:"notes"`
	Currency             string     `json:"currency"`
	Margin               float64    `json:"margin"`
	MaterialsCostTotal   float64    `json:"materials_cost_total"`
	OperationalCostTotal float64    `json:"operational_cost_total"`
	TotalCost            float64    `json:"total_cost"`
	TotalSale            float64    `json:"total_sale"`
	TotalProfit          float64    `json:"total_profit"`
	FixedCostPeriodID    string     `json:"fixed_cost_period_id"`
	Voided               bool       `json:"voided"`
	VoidedAt             *time.Time `json:"voided_at"`
	VoidReason           string     `json:"void_reason"`
	VoidedBy             string     `json:"voided_by"`
	CreatedAt            time.Time  `json:"created_at"`
	Items                []SaleItem `json:"items,omitempty"`
	Movements            []Movement `json:"movements,omitempty"`
}

type SaleItem struct {
	ID               string             `json:"id"`
	SaleID           string             `json:"sale_id"`
	ProductID        string             `json:"product_id"`
	RecipeID         string             `json:"recipe_id"`
	Qty              float64            `json:"qty"`
	MaterialsCost    float64            `json:"materials_cost"`
	OperationalAlloc float64            `json:"operational_alloc"`
	SuggestedPrice   float64            `json:"suggested_price"`
	SalePrice        float64            `json:"sale_price"`
	Profit           float64            `json:"profit"`
	Width            *float64           `json:"width"`
	Height           *float64           `json:"height"`
	Vars             map[string]float64 `json:"vars"`
	Opts             map[string]string  `json:"opts"`
	// Stock the line takes, already multiplied by Qty. Written as OUT movements.
	Consumptions []Consumption `json:"-"`
}

type SaleFilter struct {
	Limit  uint64 `json:"limit"`
	Offset uint64 `json:"offset"`
}

type SalesTotals struct {
	Period        string  `json:"period"`
	IncludeVoided bool    `json:"include_voided"`
	CountSales    int     `json:"count_sales"`
	TotalSale     float64 `json:"total_sale"`
	TotalCost     float64 `json:"total_cost"`
	TotalProfit   float64 `json:"total_profit"`
	// Profit over sales, 0 without sales.
	Margin   float64 `json:"margin"`
	Currency string  `json:"currency"`
}
