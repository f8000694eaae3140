package model

import "time"

type FixedCostPeriod struct {
	ID              string    `json:"id"`
	Year            int       `json:"year"`
	Month           int       `json:"month"`
	EstimatedOrders float64   `json:"estimated_orders"`
	Currency        string    `json:"currency"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
}

type FixedCostItem struct {
	ID        string    `json:"id"`
	PeriodID  string    `json:"period_id"`
	Name      string    `json:"name"`
	Amount    float64   `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

type PeriodSummary struct {
	Period                  FixedCostPeriod `json:"period"`
	TotalFixedCosts         float64         `json:"total_fixed_costs"`
	OperationalCostPerOrder float64         `json:"operational_cost_per_order"`
}

// NewPeriodSummary derives the per-order operational cost; it is 0 when no orders are estimated.
func NewPeriodSummary(p FixedCostPeriod, total float64) PeriodSummary {
	perOrder := 0.0
	if p.EstimatedOrders > 0 {
		perOrder = total / p.EstimatedOrders
	}
	return PeriodSummary{Period: p, TotalFixedCosts: total, OperationalCostPerOrder: perOrder}
}
