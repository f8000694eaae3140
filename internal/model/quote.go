package model

import "time"

type QuoteStatus string

const (
	QuoteDraft     QuoteStatus = "draft"
	QuoteSent      QuoteStatus = "sent"
	QuoteAccepted  QuoteStatus = "accepted"
	QuoteRejected  QuoteStatus = "rejected"
	QuoteExpired   QuoteStatus = "expired"
	QuoteConverted QuoteStatus = "converted"
)

func (s QuoteStatus) Valid() bool {
	switch s {
	case QuoteDraft, QuoteSent, QuoteAccepted, QuoteRejected, QuoteExpired, QuoteConverted:
		return true
	}
	return false
}

type Quote struct {
	ID                   string              `json:"id"`
	Number               string              `json:"number"`
	Status               QuoteStatus         `json:"status"`
	ValidUntil           time.Time           `json:"valid_until"`
	CustomerName         string              `json:"customer_name"`
	Notes                string              `json:"notes"`
	Currency             string              `json:"currency"`
	Margin               float64             `json:"margin"`
	MaterialsCostTotal   float64             `json:"materials_cost_total"`
	OperationalCostTotal float64             `json:"operational_cost_total"`
	TotalCost            float64             `json:"total_cost"`
	TotalPrice           float64             `json:"total_price"`
	TotalProfit          float64             `json:"total_profit"`
	FixedCostPeriodID    string              `json:"fixed_cost_period_id"`
	CreatedAt            time.Time           `json:"created_at"`
	Items                []QuoteItem         `json:"items"`
	History              []QuoteStatusChange `json:"history"`
}

type QuoteItem struct {
	ID               string             `json:"id"`
	QuoteID          string             `json:"quote_id"`
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
}

type QuoteSummary struct {
	ID           string      `json:"id"`
	Number       string      `json:"number"`
	Status       QuoteStatus `json:"status"`
	ValidUntil   time.Time   `json:"valid_until"`
	CustomerName string      `json:"customer_name"`
	Currency     string      `json:"currency"`
	TotalPrice   float64     `json:"total_price"`
	TotalCost    float64     `json:"total_cost"`
	TotalProfit  float64     `json:"total_profit"`
	CreatedAt    time.Time   `json:"created_at"`
}

type QuoteFilter struct {
	Status QuoteStatus `json:"status"`
	// Matches number, customer name or notes.
	Search string `json:"search"`
	Limit  uint64 `json:"limit"`
	Offset uint64 `json:"offset"`
}

type QuoteStatusChange struct {
	QuoteID    string      `json:"quote_id"`
	FromStatus QuoteStatus `json:"from_status"`
	ToStatus   QuoteStatus `json:"to_status"`
	Notes      string      `json:"notes"`
	ChangedBy  string      `json:"changed_by"`
	ChangedAt  time.Time   `json:"changed_at"`
}
