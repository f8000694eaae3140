package main

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/awkward-3312/SDSinventory/internal/inventory"
	"github.com/awkward-3312/SDSinventory/internal/model"
	"github.com/awkward-3312/SDSinventory/internal/pricing"
	"github.com/awkward-3312/SDSinventory/internal/quote"
)

type saleRequest struct {
	CustomerName string             `json:"customer_name" validate:"max=120"`
	Notes        string             `json:"notes" validate:"max=2000"`
	Mode         string             `json:"mode" validate:"omitempty,oneof=margin markup"`
	Margin       *float64           `json:"margin" validate:"omitempty,gte=0"`
	Lines        []quoteLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type voidRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type productionRequest struct {
	ProductID string  `json:"product_id"`
	RecipeID  string  `json:"recipe_id" validate:"required"`
	Qty       float64 `json:"qty" validate:"gte=0"`
}

func (req saleRequest) toParams(soldBy string) (inventory.SaleParams, error) {
	mode, err := pricing.ParseMode(req.Mode)
	if err != nil {
		return inventory.SaleParams{}, err
	}
	p := inventory.SaleParams{
		CustomerName: req.CustomerName,
		Notes:        req.Notes,
		Mode:         mode,
		Margin:       req.Margin,
		SoldBy:       soldBy,
		Lines:        make([]quote.Line, 0, len(req.Lines)),
	}
	for _, l := range req.Lines {
		p.Lines = append(p.Lines, l.toLine())
	}
	return p, nil
}

func (s *server) handleSaleCreate(w http.ResponseWriter, r *http.Request) {
	var req saleRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	params, err := req.toParams(userFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	sale, err := s.inventory.CreateSale(r.Context(), params)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sale)
}

func (s *server) handleSalesList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var (
		filter model.SaleFilter
		err    error
	)
	if filter.Limit, err = optionalUint(query.Get("limit"), "limit"); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.Offset, err = optionalUint(query.Get("offset"), "offset"); err != nil {
		writeError(w, r, err)
		return
	}

	sales, err := s.inventory.ListSales(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sales)
}

func (s *server) handleSalesSummary(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	includeVoided, _ := strconv.ParseBool(query.Get("include_voided"))
	summary, err := s.inventory.Summary(r.Context(), query.Get("period"), includeVoided)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *server) handleSaleGet(w http.ResponseWriter, r *http.Request) {
	sale, err := s.inventory.GetSale(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

func (s *server) handleSaleVoid(w http.ResponseWriter, r *http.Request) {
	var req voidRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	sale, err := s.inventory.VoidSale(r.Context(), chi.URLParam(r, "id"), req.Reason, userFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

func (s *server) handleQuoteConvert(w http.ResponseWriter, r *http.Request) {
	sale, err := s.inventory.ConvertQuote(r.Context(), chi.URLParam(r, "id"), userFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sale)
}

func (s *server) handleProductionCreate(w http.ResponseWriter, r *http.Request) {
	var req productionRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Qty == 0 {
		req.Qty = 1
	}

	run, err := s.inventory.Produce(r.Context(), inventory.ProductionParams{
		ProductID: strings.TrimSpace(req.ProductID),
		RecipeID:  req.RecipeID,
		Qty:       req.Qty,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, run)
}

func (s *server) handleMovementsList(w http.ResponseWriter, r *http.Request) {
	movements, err := s.store.ListMovements(r.Context(), r.URL.Query().Get("supply_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, movements)
}

func (s *server) handleMovementsSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.store.MovementSummary(r.Context(), r.URL.Query().Get("supply_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
