package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/awkward-3312/SDSinventory/internal/model"
	"github.com/awkward-3312/SDSinventory/internal/money"
)

type periodRequest struct {
	Year            int     `json:"year" validate:"required,gte=2000,lte=2100"`
	Month           int     `json:"month" validate:"required,min=1,max=12"`
	EstimatedOrders float64 `json:"estimated_orders" validate:"gte=0"`
	Currency        string  `json:"currency" validate:"omitempty,len=3"`
}

type fixedCostItemRequest struct {
	Name   string  `json:"name" validate:"required,max=120"`
	Amount float64 `json:"amount" validate:"gte=0"`
}

func roundSummary(sum *model.PeriodSummary) *model.PeriodSummary {
	out := *sum
	out.TotalFixedCosts = money.Round2(sum.TotalFixedCosts)
	out.OperationalCostPerOrder = money.Round2(sum.OperationalCostPerOrder)
	return &out
}

func (s *server) handlePeriodCreate(w http.ResponseWriter, r *http.Request) {
	var req periodRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = s.engine.Currency()
	}
	p, err := s.store.CreatePeriod(r.Context(), model.FixedCostPeriod{
		Year:            req.Year,
		Month:           req.Month,
		EstimatedOrders: req.EstimatedOrders,
		Currency:        currency,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *server) handlePeriodsList(w http.ResponseWriter, r *http.Request) {
	periods, err := s.store.ListPeriods(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, periods)
}

func (s *server) handleFixedCostItemCreate(w http.ResponseWriter, r *http.Request) {
	var req fixedCostItemRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	it, err := s.store.AddFixedCostItem(r.Context(), model.FixedCostItem{
		PeriodID: chi.URLParam(r, "id"),
		Name:     req.Name,
		Amount:   req.Amount,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, it)
}

func (s *server) handlePeriodActivate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.ActivatePeriod(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	sum, err := s.store.PeriodSummary(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, roundSummary(sum))
}

func (s *server) handlePeriodSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.store.PeriodSummary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, roundSummary(sum))
}

func (s *server) handleActivePeriod(w http.ResponseWriter, r *http.Request) {
	sum, err := s.engine.ActivePeriod(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if sum == nil {
		writeError(w, r, model.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, roundSummary(sum))
}
