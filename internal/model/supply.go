package model

import "time"

type Supply struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// Code of the base unit every quantity of this supply is expressed in (m2, ml, unidad...).
	UnitCode    string  `json:"unit_code"`
	StockOnHand float64 `json:"stock_on_hand"`
	StockMin    float64 `json:"stock_min"`
	// Weighted-average cost per base unit.
	AvgUnitCost float64   `json:"avg_unit_cost"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

type Unit struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

type Purchase struct {
	SupplyID     string  `json:"supply_id"`
	PacksQty     float64 `json:"packs_qty"`
	UnitsPerPack float64 `json:"units_per_pack"`
	TotalCost    float64 `json:"total_cost"`
	SupplierName string  `json:"supplier_name"`
}

type PurchaseResult struct {
	PurchaseID     string  `json:"purchase_id"`
	UnitsInBase    float64 `json:"units_in_base"`
	UnitCost       float64 `json:"unit_cost"`
	NewStock       float64 `json:"new_stock"`
	NewAvgUnitCost float64 `json:"new_avg_unit_cost"`
}

// WeightedAverageCost folds a purchase of units at unitCost into an existing stock valued at avg.
func WeightedAverageCost(stock, avg, units, unitCost float64) (newStock, newAvg float64) {
	newStock = stock + units
	if newStock <= 0 {
		return newStock, 0
	}
	return newStock, (stock*avg + units*unitCost) / newStock
}
