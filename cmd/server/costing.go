package main

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/awkward-3312/SDSinventory/internal/costing"
	"github.com/awkward-3312/SDSinventory/internal/model"
	"github.com/awkward-3312/SDSinventory/internal/money"
	"github.com/awkward-3312/SDSinventory/internal/pricing"
)

const (
	varParamPrefix = "var."
	optParamPrefix = "opt."
)

type costRequest struct {
	Width  *float64           `json:"width" validate:"required_with=Height"`
	Height *float64           `json:"height" validate:"required_with=Width"`
	Vars   map[string]float64 `json:"vars"`
	Opts   map[string]string  `json:"opts"`
	Strict bool               `json:"strict"`
}

type allocateRequest struct {
	Lines                   []float64 `json:"lines" validate:"required,dive,gte=0"`
	OperationalCostPerOrder *float64  `json:"operational_cost_per_order" validate:"omitempty,gte=0"`
}

type allocateResponse struct {
	Currency                string    `json:"currency"`
	OperationalCostPerOrder float64   `json:"operational_cost_per_order"`
	Allocations             []float64 `json:"allocations"`
}

func (c costRequest) toRequest(recipeID string) costing.Request {
	req := costing.Request{RecipeID: recipeID, Vars: c.Vars, Opts: c.Opts, Strict: c.Strict}
	if c.Width != nil && c.Height != nil {
		req.Dims = &costing.Dimensions{Width: *c.Width, Height: *c.Height}
	}
	return req
}

// parseCostQuery reads width, height, strict, var.<code> and opt.<code> from a query string.
func parseCostQuery(q url.Values) (costRequest, error) {
	var req costRequest
	var err error

	if req.Width, err = optionalFloat(q, "width"); err != nil {
		return req, err
	}
	if req.Height, err = optionalFloat(q, "height"); err != nil {
		return req, err
	}
	if raw := q.Get("strict"); raw != "" {
		if req.Strict, err = strconv.ParseBool(raw); err != nil {
			return req, fmt.Errorf("%w: strict must be a boolean", model.ErrValidation)
		}
	}

	for key, values := range q {
		if len(values) == 0 {
			continue
		}
		switch {
		case strings.HasPrefix(key, varParamPrefix):
			v, err := strconv.ParseFloat(strings.TrimSpace(values[0]), 64)
			if err != nil {
				return req, fmt.Errorf("%w: %s must be numeric", model.ErrValidation, key)
			}
			if req.Vars == nil {
				req.Vars = make(map[string]float64)
			}
			req.Vars[strings.TrimPrefix(key, varParamPrefix)] = v
		case strings.HasPrefix(key, optParamPrefix):
			if req.Opts == nil {
				req.Opts = make(map[string]string)
			}
			req.Opts[strings.TrimPrefix(key, optParamPrefix)] = strings.TrimSpace(values[0])
		}
	}
	return req, nil
}

func optionalFloat(q url.Values, key string) (*float64, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be numeric", model.ErrValidation, key)
	}
	return &v, nil
}

func (s *server) readCostRequest(r *http.Request) (costRequest, error) {
	if r.Method == http.MethodPost {
		var req costRequest
		err := s.decodeJSON(r, &req)
		return req, err
	}

	req, err := parseCostQuery(r.URL.Query())
	if err != nil {
		return req, err
	}
	if err := s.validate.Struct(req); err != nil {
		if fe := processValidationErrors(err); fe != nil {
			return req, fe
		}
		return req, fmt.Errorf("%w: %v", model.ErrValidation, err)
	}
	return req, nil
}

func roundCost(res *costing.CostResult) *costing.CostResult {
	out := *res
	out.MaterialsCost = money.Round2(res.MaterialsCost)
	out.Items = make([]costing.ItemCost, len(res.Items))
	for i, it := range res.Items {
		it.LineCost = money.Round2(it.LineCost)
		out.Items[i] = it
	}
	return &out
}

func (s *server) handleRecipeCost(w http.ResponseWriter, r *http.Request) {
	req, err := s.readCostRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.engine.ComputeRecipeCost(r.Context(), req.toRequest(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, roundCost(res))
}

func (s *server) handleSuggestedPrice(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req, err := s.readCostRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	mode, err := pricing.ParseMode(q.Get("mode"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	opts := costing.SuggestOptions{Mode: mode}
	if opts.Value, err = optionalFloat(q, "value"); err != nil {
		writeError(w, r, err)
		return
	}
	if raw := q.Get("include_operational"); raw != "" {
		if opts.IncludeOperational, err = strconv.ParseBool(raw); err != nil {
			writeError(w, r, fmt.Errorf("%w: include_operational must be a boolean", model.ErrValidation))
			return
		}
	}

	sug, err := s.engine.SuggestPrice(r.Context(), req.toRequest(chi.URLParam(r, "id")), opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sug.MaterialsCost = money.Round2(sug.MaterialsCost)
	sug.OperationalCost = money.Round2(sug.OperationalCost)
	sug.TotalCost = money.Round2(sug.TotalCost)
	sug.SuggestedPrice = money.Round2(sug.SuggestedPrice)
	sug.Cost = roundCost(sug.Cost)
	writeJSON(w, http.StatusOK, sug)
}

func (s *server) handleAllocate(w http.ResponseWriter, r *http.Request) {
	var req allocateRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var perOrder float64
	if req.OperationalCostPerOrder != nil {
		perOrder = *req.OperationalCostPerOrder
	} else {
		var err error
		if perOrder, err = s.engine.OperationalCostPerOrder(r.Context()); err != nil {
			writeError(w, r, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, allocateResponse{
		Currency:                s.engine.Currency(),
		OperationalCostPerOrder: money.Round2(perOrder),
		Allocations:             s.engine.AllocateOperationalCost(req.Lines, perOrder),
	})
}
