package main

import (
	"net/http"
	"strconv"

	"github.com/awkward-3312/SDSinventory/internal/model"
)

type createSupplyRequest struct {
	Name        string  `json:"name" validate:"required,max=120"`
	UnitCode    string  `json:"unit_code" validate:"required"`
	StockOnHand float64 `json:"stock_on_hand" validate:"gte=0"`
	StockMin    float64 `json:"stock_min" validate:"gte=0"`
	AvgUnitCost float64 `json:"avg_unit_cost" validate:"gte=0"`
	Active      *bool   `json:"active"`
}

type purchaseRequest struct {
	SupplyID     string  `json:"supply_id" validate:"required"`
	PacksQty     float64 `json:"packs_qty" validate:"gt=0"`
	UnitsPerPack float64 `json:"units_per_pack" validate:"gt=0"`
	TotalCost    float64 `json:"total_cost" validate:"gte=0"`
	SupplierName string  `json:"supplier_name" validate:"max=120"`
}

func (s *server) handleUnitsList(w http.ResponseWriter, r *http.Request) {
	units, err := s.store.ListUnits(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, units)
}

func (s *server) handleSuppliesList(w http.ResponseWriter, r *http.Request) {
	includeInactive, _ := strconv.ParseBool(r.URL.Query().Get("include_inactive"))
	supplies, err := s.store.ListSupplies(r.Context(), includeInactive)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, supplies)
}

func (s *server) handleSupplyCreate(w http.ResponseWriter, r *http.Request) {
	var req createSupplyRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	sup, err := s.store.CreateSupply(r.Context(), model.Supply{
		Name:        req.Name,
		UnitCode:    req.UnitCode,
		StockOnHand: req.StockOnHand,
		StockMin:    req.StockMin,
		AvgUnitCost: req.AvgUnitCost,
		Active:      active,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sup)
}

func (s *server) handlePurchaseCreate(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.store.RecordPurchase(r.Context(), model.Purchase{
		SupplyID:     req.SupplyID,
		PacksQty:     req.PacksQty,
		UnitsPerPack: req.UnitsPerPack,
		TotalCost:    req.TotalCost,
		SupplierName: req.SupplierName,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *server) handleLowStock(w http.ResponseWriter, r *http.Request) {
	supplies, err := s.store.LowStock(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, supplies)
}
