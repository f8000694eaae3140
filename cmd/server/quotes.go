package main

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/awkward-3312/SDSinventory/internal/costing"
	"github.com/awkward-3312/SDSinventory/internal/model"
	"github.com/awkward-3312/SDSinventory/internal/pricing"
	"github.com/awkward-3312/SDSinventory/internal/quote"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type quoteLineRequest struct {
	ProductID string             `json:"product_id"`
	RecipeID  string             `json:"recipe_id" validate:"required"`
	Qty       float64            `json:"qty" validate:"gt=0"`
	Width     *float64           `json:"width" validate:"required_with=Height"`
	Height    *float64           `json:"height" validate:"required_with=Width"`
	Vars      map[string]float64 `json:"vars"`
	Opts      map[string]string  `json:"opts"`
	SalePrice *float64           `json:"sale_price" validate:"omitempty,gte=0"`
}

type quoteRequest struct {
	CustomerName string             `json:"customer_name" validate:"max=120"`
	Notes        string             `json:"notes" validate:"max=2000"`
	Status       string             `json:"status" validate:"omitempty,oneof=draft sent"`
	ValidUntil   string             `json:"valid_until" validate:"omitempty,datetime=2006-01-02"`
	Mode         string             `json:"mode" validate:"omitempty,oneof=margin markup"`
	Margin       *float64           `json:"margin" validate:"omitempty,gte=0"`
	Lines        []quoteLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type quoteStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Notes  string `json:"notes" validate:"max=500"`
}

func (req quoteRequest) toParams() (quote.CreateParams, error) {
	mode, err := pricing.ParseMode(req.Mode)
	if err != nil {
		return quote.CreateParams{}, err
	}
	p := quote.CreateParams{
		CustomerName: strings.TrimSpace(req.CustomerName),
		Notes:        strings.TrimSpace(req.Notes),
		Status:       model.QuoteStatus(req.Status),
		Mode:         mode,
		Margin:       req.Margin,
		Lines:        make([]quote.Line, 0, len(req.Lines)),
	}
	if req.ValidUntil != "" {
		if p.ValidUntil, err = time.Parse(time.DateOnly, req.ValidUntil); err != nil {
			return p, fmt.Errorf("%w: valid_until must be YYYY-MM-DD", model.ErrValidation)
		}
	}
	for _, l := range req.Lines {
		p.Lines = append(p.Lines, l.toLine())
	}
	return p, nil
}

func (l quoteLineRequest) toLine() quote.Line {
	line := quote.Line{
		ProductID: strings.TrimSpace(l.ProductID),
		RecipeID:  l.RecipeID,
		Qty:       l.Qty,
		Vars:      l.Vars,
		Opts:      l.Opts,
		SalePrice: l.SalePrice,
	}
	if l.Width != nil && l.Height != nil {
		line.Dims = &costing.Dimensions{Width: *l.Width, Height: *l.Height}
	}
	return line
}

func (s *server) handleQuoteCreate(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	params, err := req.toParams()
	if err != nil {
		writeError(w, r, err)
		return
	}

	q, err := s.quotes.Create(r.Context(), params)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (s *server) handleQuotesList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := model.QuoteFilter{
		Status: model.QuoteStatus(strings.TrimSpace(query.Get("status"))),
		Search: strings.TrimSpace(query.Get("q")),
	}
	var err error
	if filter.Limit, err = optionalUint(query.Get("limit"), "limit"); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.Offset, err = optionalUint(query.Get("offset"), "offset"); err != nil {
		writeError(w, r, err)
		return
	}

	quotes, err := s.quotes.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quotes)
}

func optionalUint(raw, field string) (uint64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", model.ErrValidation, field)
	}
	return v, nil
}

func (s *server) handleQuoteGet(w http.ResponseWriter, r *http.Request) {
	q, err := s.quotes.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *server) handleQuoteStatus(w http.ResponseWriter, r *http.Request) {
	var req quoteStatusRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	id := chi.URLParam(r, "id")
	err := s.quotes.SetStatus(r.Context(), id, model.QuoteStatus(req.Status), req.Notes, userFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	q, err := s.quotes.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *server) handleQuoteText(w http.ResponseWriter, r *http.Request) {
	q, err := s.quotes.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(quote.Text(q)))
}

func (s *server) handleQuoteXLSX(w http.ResponseWriter, r *http.Request) {
	q, err := s.quotes.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := quote.WriteXLSX(&buf, q); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.xlsx"`, q.Number))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
