package quote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awkward-3312/SDSinventory/internal/costing"
	"github.com/awkward-3312/SDSinventory/internal/model"
	"github.com/awkward-3312/SDSinventory/internal/pricing"
)

type fakeEngine struct {
	unitCost map[string]float64
	// Product of each recipe; recipes missing here report no product.
	productOf map[string]string
	period    *model.PeriodSummary
	requests  []costing.Request
	err       error
}

func (f *fakeEngine) ComputeRecipeCost(_ context.Context, req costing.Request) (*costing.CostResult, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.unitCost[req.RecipeID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &costing.CostResult{
		RecipeID: req.RecipeID, ProductID: f.productOf[req.RecipeID], MaterialsCost: c, Items: []costing.ItemCost{{LineCost: c}},
	}, nil
}

func (f *fakeEngine) ActivePeriod(context.Context) (*model.PeriodSummary, error) {
	return f.period, nil
}

type fakeRepo struct {
	inserted *model.Quote
	changes  []model.QuoteStatusChange
}

func (r *fakeRepo) InsertQuote(_ context.Context, q *model.Quote) error {
	q.ID = "q-1"
	q.Number = "COT-2026-0001"
	r.inserted = q
	return nil
}

func (r *fakeRepo) QuoteByID(_ context.Context, id string) (*model.Quote, error) {
	if r.inserted == nil || r.inserted.ID != id {
		return nil, model.ErrNotFound
	}
	return r.inserted, nil
}

func (r *fakeRepo) ListQuotes(context.Context, model.QuoteFilter) ([]model.QuoteSummary, error) {
	return nil, nil
}

func (r *fakeRepo) UpdateQuoteStatus(_ context.Context, c model.QuoteStatusChange) error {
	r.changes = append(r.changes, c)
	return nil
}

func newTestService(engine *fakeEngine, repo *fakeRepo) *Service {
	s := NewService(engine, repo, "HNL", 15)
	s.now = func() time.Time { return time.Date(2026, 10, 15, 16, 30, 0, 0, time.UTC) }
	return s
}

func TestServiceCreate(t *testing.T) {
	t.Parallel()

	customer := gofakeit.Name()
	period := model.NewPeriodSummary(model.FixedCostPeriod{ID: "p-oct", EstimatedOrders: 10}, 300)

	type testCase struct {
		name   string
		engine *fakeEngine
		params CreateParams
		assert func(t *testing.T, q *model.Quote, err error, e *fakeEngine, r *fakeRepo)
	}

	tests := []testCase{
		{
			name:   "allocates operational cost by materials and prices with margin",
			engine: &fakeEngine{unitCost: map[string]float64{"banner": 40, "sticker": 10}, period: &period},
			params: CreateParams{
				CustomerName: customer,
				Margin:       ptr(0.5),
				Lines: []Line{
					{ProductID: "p1", RecipeID: "banner", Qty: 2, Dims: &costing.Dimensions{Width: 2, Height: 1}},
					{ProductID: "p2", RecipeID: "sticker", Qty: 2},
				},
			},
			assert: func(t *testing.T, q *model.Quote, err error, e *fakeEngine, r *fakeRepo) {
				require.NoError(t, err)
				require.Same(t, r.inserted, q)

				// 80 and 20 of materials share 30 of operational cost as 24 and 6.
				require.Len(t, q.Items, 2)
				assert.Equal(t, 80.0, q.Items[0].MaterialsCost)
				assert.Equal(t, 24.0, q.Items[0].OperationalAlloc)
				assert.Equal(t, 6.0, q.Items[1].OperationalAlloc)
				assert.Equal(t, 208.0, q.Items[0].SalePrice)
				assert.Equal(t, 52.0, q.Items[1].SalePrice)
				require.NotNil(t, q.Items[0].Width)
				assert.Nil(t, q.Items[1].Width)

				assert.Equal(t, 100.0, q.MaterialsCostTotal)
				assert.Equal(t, 30.0, q.OperationalCostTotal)
				assert.Equal(t, 130.0, q.TotalCost)
				assert.Equal(t, 260.0, q.TotalPrice)
				assert.Equal(t, 130.0, q.TotalProfit)
				assert.Equal(t, "p-oct", q.FixedCostPeriodID)
				assert.Equal(t, "HNL", q.Currency)
				assert.Equal(t, "2026-10-30", q.ValidUntil.Format("2006-01-02"))

				for _, req := range e.requests {
					assert.True(t, req.Strict, "quotes are always costed strictly")
				}
			},
		},
		{
			name:   "sale price override and no active period",
			engine: &fakeEngine{unitCost: map[string]float64{"banner": 60}},
			params: CreateParams{
				Lines: []Line{{ProductID: "p1", RecipeID: "banner", Qty: 1, SalePrice: ptr(90)}},
			},
			assert: func(t *testing.T, q *model.Quote, err error, e *fakeEngine, r *fakeRepo) {
				require.NoError(t, err)
				assert.Equal(t, 100.0, q.Items[0].SuggestedPrice)
				assert.Equal(t, 90.0, q.Items[0].SalePrice)
				assert.Equal(t, 30.0, q.Items[0].Profit)
				assert.Equal(t, 0.0, q.OperationalCostTotal)
				assert.Empty(t, q.FixedCostPeriodID)
				assert.Equal(t, model.DefaultMarginTarget, q.Margin)
			},
		},
		{
			name:   "markup mode",
			engine: &fakeEngine{unitCost: map[string]float64{"banner": 80}},
			params: CreateParams{
				Mode:   pricing.ModeMarkup,
				Margin: ptr(0.25),
				Lines:  []Line{{RecipeID: "banner", Qty: 1}},
			},
			assert: func(t *testing.T, q *model.Quote, err error, e *fakeEngine, r *fakeRepo) {
				require.NoError(t, err)
				assert.Equal(t, 100.0, q.TotalPrice)
			},
		},
		{
			name:   "line product defaults to the recipe's",
			engine: &fakeEngine{unitCost: map[string]float64{"banner": 10}, productOf: map[string]string{"banner": "p-banner"}},
			params: CreateParams{Lines: []Line{{RecipeID: "banner", Qty: 1}, {ProductID: "p-banner", RecipeID: "banner", Qty: 1}}},
			assert: func(t *testing.T, q *model.Quote, err error, e *fakeEngine, r *fakeRepo) {
				require.NoError(t, err)
				assert.Equal(t, "p-banner", q.Items[0].ProductID)
				assert.Equal(t, "p-banner", q.Items[1].ProductID)
			},
		},
		{
			name:   "recipe of another product",
			engine: &fakeEngine{unitCost: map[string]float64{"banner": 10}, productOf: map[string]string{"banner": "p-banner"}},
			params: CreateParams{Lines: []Line{{ProductID: "p-taza", RecipeID: "banner", Qty: 1}}},
			assert: func(t *testing.T, q *model.Quote, err error, e *fakeEngine, r *fakeRepo) {
				assert.ErrorIs(t, err, model.ErrValidation)
				assert.Nil(t, r.inserted)
			},
		},
		{
			name:   "no lines",
			engine: &fakeEngine{},
			params: CreateParams{},
			assert: func(t *testing.T, q *model.Quote, err error, e *fakeEngine, r *fakeRepo) {
				assert.ErrorIs(t, err, model.ErrValidation)
				assert.Nil(t, r.inserted)
			},
		},
		{
			name:   "invalid margin",
			engine: &fakeEngine{},
			params: CreateParams{Margin: ptr(1), Lines: []Line{{RecipeID: "banner", Qty: 1}}},
			assert: func(t *testing.T, q *model.Quote, err error, e *fakeEngine, r *fakeRepo) {
				var ime *pricing.InvalidModeError
				assert.True(t, errors.As(err, &ime))
				assert.Empty(t, e.requests)
			},
		},
		{
			name:   "non-positive quantity",
			engine: &fakeEngine{unitCost: map[string]float64{"banner": 1}},
			params: CreateParams{Lines: []Line{{RecipeID: "banner", Qty: 0}}},
			assert: func(t *testing.T, q *model.Quote, err error, e *fakeEngine, r *fakeRepo) {
				assert.ErrorIs(t, err, model.ErrValidation)
			},
		},
		{
			name:   "costing error aborts the quote",
			engine: &fakeEngine{err: &costing.UnboundVariableError{Name: "copias"}},
			params: CreateParams{Lines: []Line{{RecipeID: "banner", Qty: 1}}},
			assert: func(t *testing.T, q *model.Quote, err error, e *fakeEngine, r *fakeRepo) {
				var ue *costing.UnboundVariableError
				require.True(t, errors.As(err, &ue))
				assert.Nil(t, r.inserted)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			repo := &fakeRepo{}
			q, err := newTestService(tc.engine, repo).Create(context.Background(), tc.params)
			tc.assert(t, q, err, tc.engine, repo)
		})
	}
}

func TestServiceSetStatus(t *testing.T) {
	repo := &fakeRepo{}
	s := newTestService(&fakeEngine{}, repo)

	require.NoError(t, s.SetStatus(context.Background(), "q-1", model.QuoteSent, "por correo", "admin@example.com"))
	require.Len(t, repo.changes, 1)
	assert.Equal(t, model.QuoteSent, repo.changes[0].ToStatus)

	err := s.SetStatus(context.Background(), "q-1", model.QuoteConverted, "", "")
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = s.List(context.Background(), model.QuoteFilter{Status: "lost"})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func ptr(v float64) *float64 { return &v }
