// Package inventory records the operations that take supplies out of stock: sales, quote
// conversions and production runs.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/awkward-3312/SDSinventory/internal/costing"
	"github.com/awkward-3312/SDSinventory/internal/logger"
	"github.com/awkward-3312/SDSinventory/internal/model"
	"github.com/awkward-3312/SDSinventory/internal/money"
	"github.com/awkward-3312/SDSinventory/internal/pricing"
	"github.com/awkward-3312/SDSinventory/internal/quote"
)

type Repository interface {
	InsertSale(ctx context.Context, sale *model.Sale, changedBy string) error
	SaleByID(ctx context.Context, id string) (*model.Sale, error)
	ListSales(ctx context.Context, f model.SaleFilter) ([]model.Sale, error)
	SalesTotals(ctx context.Context, since time.Time, includeVoided bool) (*model.SalesTotals, error)
	VoidSale(ctx context.Context, id, reason, voidedBy string) ([]model.Movement, error)
	InsertProduction(ctx context.Context, run *model.ProductionRun) error
	QuoteByID(ctx context.Context, id string) (*model.Quote, error)
}

type SaleParams struct {
	CustomerName string
	Notes        string
	Mode         pricing.Mode
	// Target margin (or markup). Nil uses model.DefaultMarginTarget.
	Margin *float64
	Lines  []quote.Line
	// Who records the sale; logged in the quote history on conversions.
	SoldBy string
}

type ProductionParams struct {
	ProductID string
	RecipeID  string
	Qty       float64
}

// Summary periods accepted by Service.Summary.
var summaryPeriods = map[string]func(time.Time) time.Time{
	"7d":  func(t time.Time) time.Time { return t.AddDate(0, 0, -7) },
	"1m":  func(t time.Time) time.Time { return t.AddDate(0, -1, 0) },
	"3m":  func(t time.Time) time.Time { return t.AddDate(0, -3, 0) },
	"6m":  func(t time.Time) time.Time { return t.AddDate(0, -6, 0) },
	"9m":  func(t time.Time) time.Time { return t.AddDate(0, -9, 0) },
	"1y":  func(t time.Time) time.Time { return t.AddDate(-1, 0, 0) },
	"all": func(time.Time) time.Time { return time.Time{} },
}

const defaultSummaryPeriod = "7d"

type Service struct {
	engine   quote.CostEngine
	repo     Repository
	currency string
	now      func() time.Time
}

func NewService(engine quote.CostEngine, repo Repository, currency string) *Service {
	return &Service{engine: engine, repo: repo, currency: currency, now: time.Now}
}

// CreateSale prices the lines the way quotes are priced and records the sale, taking each
// costed item's quantity with waste, times the line quantity, out of stock.
func (s *Service) CreateSale(ctx context.Context, p SaleParams) (*model.Sale, error) {
	const op = "inventory.CreateSale"

	sale, err := s.buildSale(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.repo.InsertSale(ctx, sale, p.SoldBy); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	logger.Info(ctx, "sale recorded",
		logger.String("sale_id", sale.ID),
		logger.Int("lines", len(sale.Items)),
		logger.Int("movements", len(sale.Movements)),
		logger.Float64("total_sale", sale.TotalSale),
	)
	return sale, nil
}

func (s *Service) buildSale(ctx context.Context, p SaleParams) (*model.Sale, error) {
	if len(p.Lines) == 0 {
		return nil, fmt.Errorf("%w: a sale needs at least one line", model.ErrValidation)
	}
	mode := p.Mode
	if mode == "" {
		mode = pricing.ModeMargin
	}
	margin := model.DefaultMarginTarget
	if p.Margin != nil {
		margin = *p.Margin
	}
	if _, err := pricing.Suggest(0, mode, margin); err != nil {
		return nil, err
	}

	order, err := quote.PriceLines(ctx, s.engine, p.Lines, mode, margin)
	if err != nil {
		return nil, err
	}

	sale := &model.Sale{
		CustomerName:         strings.TrimSpace(p.CustomerName),
		Notes:                strings.TrimSpace(p.Notes),
		Currency:             s.currency,
		Margin:               margin,
		MaterialsCostTotal:   order.MaterialsCost,
		OperationalCostTotal: order.OperationalCost,
		TotalCost:            order.TotalCost,
		TotalSale:            order.TotalPrice,
		TotalProfit:          order.TotalProfit,
		FixedCostPeriodID:    order.PeriodID,
		CreatedAt:            s.now().UTC(),
		Items:                make([]model.SaleItem, 0, len(order.Lines)),
	}
	for _, l := range order.Lines {
		sale.Items = append(sale.Items, model.SaleItem{
			ProductID:        l.ProductID,
			RecipeID:         l.RecipeID,
			Qty:              l.Qty,
			MaterialsCost:    l.MaterialsCost,
			OperationalAlloc: l.OperationalAlloc,
			SuggestedPrice:   l.SuggestedPrice,
			SalePrice:        l.SalePrice,
			Profit:           l.Profit,
			Width:            l.Width,
			Height:           l.Height,
			Vars:             l.Vars,
			Opts:             l.Opts,
			Consumptions:     consumptions(l.Items, l.Qty),
		})
	}
	return sale, nil
}

// consumptions scales the per-unit costed items of a recipe to qty units.
func consumptions(items []costing.ItemCost, qty float64) []model.Consumption {
	out := make([]model.Consumption, 0, len(items))
	for _, it := range items {
		need := it.QtyWithWaste * qty
		if need <= 0 {
			continue
		}
		out = append(out, model.Consumption{SupplyID: it.SupplyID, Qty: need, UnitCost: it.AvgUnitCost})
	}
	return out
}

// ConvertQuote records a sale from a quote's lines, at the unit prices the quote settled on,
// and marks the quote converted. Costs are taken again at today's averages.
func (s *Service) ConvertQuote(ctx context.Context, quoteID, soldBy string) (*model.Sale, error) {
	const op = "inventory.ConvertQuote"

	q, err := s.repo.QuoteByID(ctx, quoteID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if q.Status == model.QuoteConverted {
		return nil, fmt.Errorf("%s: %w: quote %s already converted", op, model.ErrConflict, q.Number)
	}

	p := SaleParams{
		CustomerName: q.CustomerName,
		Notes:        q.Notes,
		Mode:         pricing.ModeMargin,
		Margin:       &q.Margin,
		SoldBy:       soldBy,
		Lines:        make([]quote.Line, 0, len(q.Items)),
	}
	for _, it := range q.Items {
		unitPrice := it.SalePrice / it.Qty
		line := quote.Line{
			ProductID: it.ProductID,
			RecipeID:  it.RecipeID,
			Qty:       it.Qty,
			Vars:      it.Vars,
			Opts:      it.Opts,
			SalePrice: &unitPrice,
		}
		if it.Width != nil && it.Height != nil {
			line.Dims = &costing.Dimensions{Width: *it.Width, Height: *it.Height}
		}
		p.Lines = append(p.Lines, line)
	}

	sale, err := s.buildSale(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sale.QuoteID = q.ID
	if err := s.repo.InsertSale(ctx, sale, soldBy); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	logger.Info(ctx, "quote converted",
		logger.String("quote_id", q.ID),
		logger.String("number", q.Number),
		logger.String("sale_id", sale.ID),
		logger.Float64("total_sale", sale.TotalSale),
	)
	return sale, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (*model.Sale, error) {
	sale, err := s.repo.SaleByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("inventory.GetSale: %w", err)
	}
	return sale, nil
}

func (s *Service) ListSales(ctx context.Context, f model.SaleFilter) ([]model.Sale, error) {
	return s.repo.ListSales(ctx, f)
}

// VoidSale puts back the stock a sale took and returns the voided sale.
func (s *Service) VoidSale(ctx context.Context, id, reason, voidedBy string) (*model.Sale, error) {
	const op = "inventory.VoidSale"

	reversed, err := s.repo.VoidSale(ctx, id, strings.TrimSpace(reason), voidedBy)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			logger.Warn(ctx, "sale not voided", logger.String("sale_id", id), logger.ErrorF(err))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	logger.Info(ctx, "sale voided", logger.String("sale_id", id), logger.Int("reversed_movements", len(reversed)))

	sale, err := s.repo.SaleByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sale, nil
}

// Summary totals sales over period, one of 7d, 1m, 3m, 6m, 9m, 1y or all. An empty period
// means 7d.
func (s *Service) Summary(ctx context.Context, period string, includeVoided bool) (*model.SalesTotals, error) {
	const op = "inventory.Summary"

	period = strings.ToLower(strings.TrimSpace(period))
	if period == "" {
		period = defaultSummaryPeriod
	}
	since, ok := summaryPeriods[period]
	if !ok {
		return nil, fmt.Errorf("%s: %w: period must be one of 7d, 1m, 3m, 6m, 9m, 1y, all", op, model.ErrValidation)
	}

	t, err := s.repo.SalesTotals(ctx, since(s.now().UTC()), includeVoided)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	t.Period = period
	t.Currency = s.currency
	t.TotalSale = money.Round2(t.TotalSale)
	t.TotalCost = money.Round2(t.TotalCost)
	t.TotalProfit = money.Round2(t.TotalProfit)
	t.Margin = math.Round(t.Margin*10000) / 10000
	return t, nil
}

// Produce builds qty units of a fixed recipe and takes its supplies, waste included, out of
// stock. Recipes with quantity formulas need dimensions or variables and cannot be produced.
func (s *Service) Produce(ctx context.Context, p ProductionParams) (*model.ProductionRun, error) {
	const op = "inventory.Produce"

	if p.Qty <= 0 {
		return nil, fmt.Errorf("%s: %w: qty must be > 0", op, model.ErrValidation)
	}
	res, err := s.engine.ComputeRecipeCost(ctx, costing.Request{RecipeID: p.RecipeID})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(res.Items) == 0 {
		return nil, fmt.Errorf("%s: %w: recipe %s has no items", op, model.ErrValidation, p.RecipeID)
	}
	for _, it := range res.Items {
		if it.Formula != "" {
			return nil, fmt.Errorf("%s: %w: recipes with quantity formulas cannot be produced", op, model.ErrValidation)
		}
	}
	productID, err := quote.LineProduct(p.ProductID, res)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	run := &model.ProductionRun{
		ProductID:     productID,
		RecipeID:      p.RecipeID,
		Qty:           p.Qty,
		MaterialsCost: money.Round2(res.MaterialsCost * p.Qty),
		Currency:      s.currency,
		CreatedAt:     s.now().UTC(),
		Consumptions:  consumptions(res.Items, p.Qty),
	}
	if err := s.repo.InsertProduction(ctx, run); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	logger.Info(ctx, "production recorded",
		logger.String("production_id", run.ID),
		logger.String("recipe_id", run.RecipeID),
		logger.Float64("qty", run.Qty),
		logger.Float64("materials_cost", run.MaterialsCost),
	)
	return run, nil
}
