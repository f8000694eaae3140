package main

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/awkward-3312/SDSinventory/internal/model"
)

type productRequest struct {
	Name         string   `json:"name" validate:"required,max=120"`
	ProductType  string   `json:"product_type" validate:"omitempty,oneof=fixed variable"`
	Category     string   `json:"category" validate:"max=80"`
	UnitSale     string   `json:"unit_sale" validate:"max=40"`
	MarginTarget *float64 `json:"margin_target" validate:"omitempty,gte=0,lt=1"`
}

type activeRequest struct {
	Active *bool `json:"active" validate:"required"`
}

func (req productRequest) toModel() model.Product {
	margin := model.DefaultMarginTarget
	if req.MarginTarget != nil {
		margin = *req.MarginTarget
	}
	return model.Product{
		Name:         req.Name,
		ProductType:  model.ProductType(req.ProductType),
		Category:     req.Category,
		UnitSale:     req.UnitSale,
		MarginTarget: margin,
	}
}

func (s *server) handleProductsList(w http.ResponseWriter, r *http.Request) {
	includeInactive, _ := strconv.ParseBool(r.URL.Query().Get("include_inactive"))
	products, err := s.store.ListProducts(r.Context(), includeInactive)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (s *server) handleProductCreate(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	p, err := s.store.CreateProduct(r.Context(), req.toModel())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *server) handleProductGet(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.ProductByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *server) handleProductUpdate(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	p := req.toModel()
	p.ID = chi.URLParam(r, "id")
	updated, err := s.store.UpdateProduct(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *server) handleProductActive(w http.ResponseWriter, r *http.Request) {
	var req activeRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.store.SetProductActive(r.Context(), id, *req.Active); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.store.ProductByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
