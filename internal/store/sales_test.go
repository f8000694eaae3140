package store

import (
	"context"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awkward-3312/SDSinventory/internal/model"
)

func TestProducts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.CreateProduct(ctx, model.Product{Name: "  Banner  ", Category: "Gran formato", MarginTarget: 0.35})
	require.NoError(t, err)
	assert.Equal(t, "Banner", p.Name)
	assert.Equal(t, model.ProductFixed, p.ProductType)
	assert.True(t, p.Active)

	_, err = s.CreateProduct(ctx, model.Product{Name: ""})
	assert.ErrorIs(t, err, model.ErrValidation)
	_, err = s.CreateProduct(ctx, model.Product{Name: "Taza", MarginTarget: 1})
	assert.ErrorIs(t, err, model.ErrValidation)

	p.ProductType, p.UnitSale = model.ProductVariable, "m2"
	updated, err := s.UpdateProduct(ctx, *p)
	require.NoError(t, err)
	assert.Equal(t, model.ProductVariable, updated.ProductType)
	assert.Equal(t, "m2", updated.UnitSale)

	_, err = s.UpdateProduct(ctx, model.Product{ID: "missing", Name: "x"})
	assert.ErrorIs(t, err, model.ErrNotFound)

	r, err := s.CreateRecipe(ctx, model.Recipe{ProductID: p.ID, Name: "Banner lona"})
	require.NoError(t, err)
	assert.Equal(t, model.ProductVariable, r.ProductType, "recipe takes the product type")
	_, err = s.CreateRecipe(ctx, model.Recipe{ProductID: "missing", Name: "Huérfana"})
	assert.ErrorIs(t, err, model.ErrValidation)

	recipes, err := s.ListRecipes(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, recipes, 1)
	assert.Equal(t, r.ID, recipes[0].ID)

	require.NoError(t, s.SetProductActive(ctx, p.ID, false))
	active, err := s.ListProducts(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, active)
	all, err := s.ListProducts(ctx, true)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.False(t, all[0].Active)

	assert.ErrorIs(t, s.SetProductActive(ctx, "missing", true), model.ErrNotFound)
}

// saleFixture is a recipe that takes one unit of a supply with 10 in stock at 5 each.
type saleFixture struct {
	supply *model.Supply
	recipe *model.Recipe
}

func newSaleFixture(t *testing.T, s *Store) saleFixture {
	t.Helper()
	sup := mustSupply(t, s, gofakeit.ProductMaterial(), "unidad", 10, 0, 5)
	r := mustRecipe(t, s)
	_, err := s.AddItem(context.Background(), model.RecipeItem{RecipeID: r.ID, SupplyID: sup.ID, QtyBase: 1})
	require.NoError(t, err)
	return saleFixture{supply: sup, recipe: r}
}

func (f saleFixture) sale(qty float64) *model.Sale {
	return &model.Sale{
		CustomerName: gofakeit.Name(),
		Currency:     "HNL",
		TotalCost:    5 * qty,
		TotalSale:    10 * qty,
		TotalProfit:  5 * qty,
		Items: []model.SaleItem{{
			ProductID: f.recipe.ProductID, RecipeID: f.recipe.ID, Qty: qty, SalePrice: 10 * qty,
			Consumptions: []model.Consumption{{SupplyID: f.supply.ID, Qty: qty, UnitCost: 5}},
		}},
	}
}

func stockOf(t *testing.T, s *Store, supplyID string) float64 {
	t.Helper()
	sup, err := s.SupplyByID(context.Background(), supplyID)
	require.NoError(t, err)
	return sup.StockOnHand
}

func TestInsertSale_TakesStockAndRecordsMovements(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := newSaleFixture(t, s)

	sale := f.sale(3)
	require.NoError(t, s.InsertSale(ctx, sale, "caja"))
	assert.InDelta(t, 7, stockOf(t, s, f.supply.ID), 1e-9)
	require.Len(t, sale.Movements, 1)
	assert.Equal(t, model.MovementOut, sale.Movements[0].Type)
	assert.Equal(t, sale.Items[0].ID, sale.Movements[0].RefID)

	got, err := s.SaleByID(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, sale.CustomerName, got.CustomerName)
	require.Len(t, got.Items, 1)
	assert.InDelta(t, 3, got.Items[0].Qty, 1e-9)
	require.Len(t, got.Movements, 1)
	assert.Nil(t, got.VoidedAt)

	kardex, err := s.ListMovements(ctx, f.supply.ID)
	require.NoError(t, err)
	require.Len(t, kardex, 1)
	assert.Equal(t, model.RefSale, kardex[0].RefType)

	_, err = s.SaleByID(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestInsertSale_ShortStockRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := newSaleFixture(t, s)

	sale := f.sale(3)
	// The second line needs more than is left after the first.
	sale.Items = append(sale.Items, f.sale(8).Items...)
	err := s.InsertSale(ctx, sale, "caja")
	require.ErrorIs(t, err, model.ErrValidation)
	assert.Contains(t, err.Error(), "insufficient stock")

	assert.InDelta(t, 10, stockOf(t, s, f.supply.ID), 1e-9)
	sales, err := s.ListSales(ctx, model.SaleFilter{})
	require.NoError(t, err)
	assert.Empty(t, sales)
	kardex, err := s.ListMovements(ctx, f.supply.ID)
	require.NoError(t, err)
	assert.Empty(t, kardex)
}

func TestInsertSale_ChecksProductOfEachLine(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := newSaleFixture(t, s)

	sale := f.sale(1)
	sale.Items[0].ProductID = mustProduct(t, s).ID
	assert.ErrorIs(t, s.InsertSale(ctx, sale, "caja"), model.ErrValidation)

	require.NoError(t, s.SetProductActive(ctx, f.recipe.ProductID, false))
	assert.ErrorIs(t, s.InsertSale(ctx, f.sale(1), "caja"), model.ErrValidation)
	assert.ErrorIs(t, s.InsertSale(ctx, &model.Sale{Currency: "HNL"}, "caja"), model.ErrValidation)
}

func TestInsertSale_ConvertsQuoteOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := newSaleFixture(t, s)

	quote := func() *model.Quote {
		q := &model.Quote{CustomerName: gofakeit.Name(), Currency: "HNL", ValidUntil: time.Now().AddDate(0, 0, 15),
			Items: []model.QuoteItem{{ProductID: f.recipe.ProductID, RecipeID: f.recipe.ID, Qty: 1}}}
		require.NoError(t, s.InsertQuote(ctx, q))
		return q
	}

	q := quote()
	sale := f.sale(1)
	sale.QuoteID = q.ID
	require.NoError(t, s.InsertSale(ctx, sale, "caja"))

	got, err := s.QuoteByID(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QuoteConverted, got.Status)
	require.Len(t, got.History, 2)
	assert.Equal(t, "sale "+sale.ID, got.History[1].Notes)

	again := f.sale(1)
	again.QuoteID = q.ID
	assert.ErrorIs(t, s.InsertSale(ctx, again, "caja"), model.ErrConflict)
	assert.InDelta(t, 9, stockOf(t, s, f.supply.ID), 1e-9)

	rejected := quote()
	require.NoError(t, s.UpdateQuoteStatus(ctx, model.QuoteStatusChange{QuoteID: rejected.ID, ToStatus: model.QuoteRejected}))
	fromRejected := f.sale(1)
	fromRejected.QuoteID = rejected.ID
	assert.ErrorIs(t, s.InsertSale(ctx, fromRejected, "caja"), model.ErrValidation)

	missing := f.sale(1)
	missing.QuoteID = "missing"
	assert.ErrorIs(t, s.InsertSale(ctx, missing, "caja"), model.ErrNotFound)
}

func TestVoidSale_RestoresStock(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := newSaleFixture(t, s)

	kept, voided := f.sale(2), f.sale(3)
	require.NoError(t, s.InsertSale(ctx, kept, "caja"))
	require.NoError(t, s.InsertSale(ctx, voided, "caja"))
	assert.InDelta(t, 5, stockOf(t, s, f.supply.ID), 1e-9)

	reversed, err := s.VoidSale(ctx, voided.ID, "cliente canceló", "admin")
	require.NoError(t, err)
	require.Len(t, reversed, 1)
	assert.Equal(t, model.MovementIn, reversed[0].Type)
	assert.Equal(t, model.RefSaleVoid, reversed[0].RefType)
	assert.InDelta(t, 8, stockOf(t, s, f.supply.ID), 1e-9)

	_, err = s.VoidSale(ctx, voided.ID, "otra vez", "admin")
	assert.ErrorIs(t, err, model.ErrConflict)
	_, err = s.VoidSale(ctx, "missing", "", "admin")
	assert.ErrorIs(t, err, model.ErrNotFound)

	got, err := s.SaleByID(ctx, voided.ID)
	require.NoError(t, err)
	assert.True(t, got.Voided)
	require.NotNil(t, got.VoidedAt)
	assert.Equal(t, "cliente canceló", got.VoidReason)
	assert.Len(t, got.Movements, 2)

	totals, err := s.SalesTotals(ctx, time.Time{}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, totals.CountSales)
	assert.InDelta(t, 20, totals.TotalSale, 1e-9)
	assert.InDelta(t, 0.5, totals.Margin, 1e-9)

	totals, err = s.SalesTotals(ctx, time.Time{}, true)
	require.NoError(t, err)
	assert.Equal(t, 2, totals.CountSales)
	assert.InDelta(t, 50, totals.TotalSale, 1e-9)

	totals, err = s.SalesTotals(ctx, time.Now().Add(time.Hour), true)
	require.NoError(t, err)
	assert.Zero(t, totals.CountSales)
	assert.Zero(t, totals.Margin)

	sum, err := s.MovementSummary(ctx, f.supply.ID)
	require.NoError(t, err)
	assert.InDelta(t, 3, sum.TotalIn, 1e-9)
	assert.InDelta(t, 5, sum.TotalOut, 1e-9)
	assert.InDelta(t, -2, sum.Balance, 1e-9)

	_, err = s.MovementSummary(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestListSales_NewestFirstWithPaging(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := newSaleFixture(t, s)

	var ids []string
	for i := 0; i < 3; i++ {
		sale := f.sale(1)
		sale.CreatedAt = time.Date(2026, 5, 1+i, 12, 0, 0, 0, time.UTC)
		require.NoError(t, s.InsertSale(ctx, sale, "caja"))
		ids = append(ids, sale.ID)
	}

	page, err := s.ListSales(ctx, model.SaleFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[2], page[0].ID)
	assert.Empty(t, page[0].Items)

	page, err = s.ListSales(ctx, model.SaleFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[0], page[0].ID)
}

func TestInsertProduction(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := newSaleFixture(t, s)

	run := &model.ProductionRun{ProductID: f.recipe.ProductID, RecipeID: f.recipe.ID, Qty: 4, MaterialsCost: 20,
		Consumptions: []model.Consumption{{SupplyID: f.supply.ID, Qty: 4, UnitCost: 5}}}
	require.NoError(t, s.InsertProduction(ctx, run))
	assert.NotEmpty(t, run.ID)
	assert.InDelta(t, 6, stockOf(t, s, f.supply.ID), 1e-9)

	kardex, err := s.ListMovements(ctx, f.supply.ID)
	require.NoError(t, err)
	require.Len(t, kardex, 1)
	assert.Equal(t, model.RefProduction, kardex[0].RefType)
	assert.Equal(t, run.ID, kardex[0].RefID)

	tooMuch := &model.ProductionRun{ProductID: f.recipe.ProductID, RecipeID: f.recipe.ID, Qty: 7,
		Consumptions: []model.Consumption{{SupplyID: f.supply.ID, Qty: 7, UnitCost: 5}}}
	assert.ErrorIs(t, s.InsertProduction(ctx, tooMuch), model.ErrValidation)
	assert.InDelta(t, 6, stockOf(t, s, f.supply.ID), 1e-9)

	other := &model.ProductionRun{ProductID: mustProduct(t, s).ID, RecipeID: f.recipe.ID, Qty: 1}
	assert.ErrorIs(t, s.InsertProduction(ctx, other), model.ErrValidation)
	assert.ErrorIs(t, s.InsertProduction(ctx, &model.ProductionRun{ProductID: f.recipe.ProductID, RecipeID: f.recipe.ID}), model.ErrValidation)
}

func TestListQuotes_SearchMatchesWildcardsLiterally(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := newSaleFixture(t, s)

	for _, name := range []string{"100% Impresos", "Rotulos_Norte", "RotulosXNorte", "Imprenta 100"} {
		q := &model.Quote{CustomerName: name, Currency: "HNL", ValidUntil: time.Now().AddDate(0, 0, 15),
			Items: []model.QuoteItem{{ProductID: f.recipe.ProductID, RecipeID: f.recipe.ID, Qty: 1}}}
		require.NoError(t, s.InsertQuote(ctx, q))
	}

	tests := []struct {
		search string
		want   []string
	}{
		{"%", []string{"100% Impresos"}},
		{"100%", []string{"100% Impresos"}},
		{"_", []string{"Rotulos_Norte"}},
		{"Rotulos_", []string{"Rotulos_Norte"}},
		{"rotulos", []string{"Rotulos_Norte", "RotulosXNorte"}},
		{`\`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.search, func(t *testing.T) {
			list, err := s.ListQuotes(ctx, model.QuoteFilter{Search: tt.search})
			require.NoError(t, err)
			var names []string
			for _, q := range list {
				names = append(names, q.CustomerName)
			}
			assert.ElementsMatch(t, tt.want, names)
		})
	}
}

func TestExpireQuotes_ComparesUTCDates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := newSaleFixture(t, s)

	q := &model.Quote{CustomerName: gofakeit.Name(), Currency: "HNL",
		ValidUntil: time.Date(2026, 3, 25, 0, 0, 0, 0, time.UTC),
		CreatedAt:  time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		Items:      []model.QuoteItem{{ProductID: f.recipe.ProductID, RecipeID: f.recipe.ID, Qty: 1}}}
	require.NoError(t, s.InsertQuote(ctx, q))

	// Already the 26th locally but still the 25th in UTC.
	east := time.FixedZone("UTC+3", 3*60*60)
	n, err := s.ExpireQuotes(ctx, time.Date(2026, 3, 26, 0, 30, 0, 0, east))
	require.NoError(t, err)
	assert.Zero(t, n)

	// Still the 26th locally, already the 27th in UTC.
	west := time.FixedZone("UTC-6", -6*60*60)
	n, err = s.ExpireQuotes(ctx, time.Date(2026, 3, 26, 23, 0, 0, 0, west))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
