// Package quote builds priced customer quotes from recipe costs and renders them for sharing.
package quote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/awkward-3312/SDSinventory/internal/costing"
	"github.com/awkward-3312/SDSinventory/internal/logger"
	"github.com/awkward-3312/SDSinventory/internal/model"
	"github.com/awkward-3312/SDSinventory/internal/pricing"
)

type CostEngine interface {
	ComputeRecipeCost(ctx context.Context, req costing.Request) (*costing.CostResult, error)
	ActivePeriod(ctx context.Context) (*model.PeriodSummary, error)
}

type Repository interface {
	InsertQuote(ctx context.Context, q *model.Quote) error
	QuoteByID(ctx context.Context, id string) (*model.Quote, error)
	ListQuotes(ctx context.Context, f model.QuoteFilter) ([]model.QuoteSummary, error)
	UpdateQuoteStatus(ctx context.Context, c model.QuoteStatusChange) error
}

// Line is one requested product of a quote.
type Line struct {
	ProductID string
	RecipeID  string
	Qty       float64
	Dims      *costing.Dimensions
	Vars      map[string]float64
	Opts      map[string]string
	// Manual unit sale price; nil uses the suggested price.
	SalePrice *float64
}

type CreateParams struct {
	CustomerName string
	Notes        string
	Status       model.QuoteStatus
	// Zero means today plus the configured validity.
	ValidUntil time.Time
	Mode       pricing.Mode
	// Target margin (or markup). Nil uses model.DefaultMarginTarget.
	Margin *float64
	Lines  []Line
}

type Service struct {
	engine    CostEngine
	repo      Repository
	currency  string
	validDays int
	now       func() time.Time
}

func NewService(engine CostEngine, repo Repository, currency string, validDays int) *Service {
	return &Service{engine: engine, repo: repo, currency: currency, validDays: validDays, now: time.Now}
}

// Create costs every line in strict mode, spreads the active period's operational cost per
// order over the lines by materials weight, prices each line and stores the snapshot.
func (s *Service) Create(ctx context.Context, p CreateParams) (*model.Quote, error) {
	const op = "quote.Create"

	if len(p.Lines) == 0 {
		return nil, fmt.Errorf("%s: %w: a quote needs at least one line", op, model.ErrValidation)
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

	order, err := PriceLines(ctx, s.engine, p.Lines, mode, margin)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	q := &model.Quote{
		Status:               p.Status,
		CustomerName:         p.CustomerName,
		Notes:                p.Notes,
		Currency:             s.currency,
		Margin:               margin,
		CreatedAt:            s.now().UTC(),
		ValidUntil:           p.ValidUntil,
		FixedCostPeriodID:    order.PeriodID,
		MaterialsCostTotal:   order.MaterialsCost,
		OperationalCostTotal: order.OperationalCost,
		TotalCost:            order.TotalCost,
		TotalPrice:           order.TotalPrice,
		TotalProfit:          order.TotalProfit,
		Items:                make([]model.QuoteItem, 0, len(order.Lines)),
	}
	if q.ValidUntil.IsZero() {
		y, m, d := q.CreatedAt.Date()
		q.ValidUntil = time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, s.validDays)
	}
	for _, l := range order.Lines {
		q.Items = append(q.Items, model.QuoteItem{
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
		})
	}

	if err := s.repo.InsertQuote(ctx, q); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	logger.Info(ctx, "quote created",
		logger.String("quote_id", q.ID),
		logger.String("number", q.Number),
		logger.Int("lines", len(q.Items)),
		logger.Float64("total_price", q.TotalPrice),
	)
	return q, nil
}

func (s *Service) Get(ctx context.Context, id string) (*model.Quote, error) {
	q, err := s.repo.QuoteByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("quote.Get: %w", err)
	}
	return q, nil
}

func (s *Service) List(ctx context.Context, f model.QuoteFilter) ([]model.QuoteSummary, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("quote.List: %w: invalid status %q", model.ErrValidation, f.Status)
	}
	return s.repo.ListQuotes(ctx, f)
}

// SetStatus moves a quote to a new status. Converting a quote into a sale happens elsewhere,
// so converted cannot be set here.
func (s *Service) SetStatus(ctx context.Context, id string, status model.QuoteStatus, notes, changedBy string) error {
	const op = "quote.SetStatus"

	if status == model.QuoteConverted {
		return fmt.Errorf("%s: %w: quotes are converted by recording a sale", op, model.ErrValidation)
	}
	err := s.repo.UpdateQuoteStatus(ctx, model.QuoteStatusChange{
		QuoteID: id, ToStatus: status, Notes: notes, ChangedBy: changedBy,
	})
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			logger.Warn(ctx, "quote status not updated", logger.String("quote_id", id), logger.ErrorF(err))
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
