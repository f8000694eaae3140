package pricing

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awkward-3312/SDSinventory/internal/model"
)

func nearlyEqual(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
}

func TestSuggest_MarginFortyPercent(t *testing.T) {
	price, err := Suggest(60, ModeMargin, 0.40)
	require.NoError(t, err)
	nearlyEqual(t, "price", price, 100)
}

func TestSuggest_Markup(t *testing.T) {
	price, err := Suggest(80, ModeMarkup, 0.25)
	require.NoError(t, err)
	nearlyEqual(t, "price", price, 100)

	price, err = Suggest(80, ModeMarkup, 0)
	require.NoError(t, err)
	nearlyEqual(t, "zero markup", price, 80)
}

func TestSuggest_MarginInversion(t *testing.T) {
	const cost = 37.5
	for m := 0.0; m < MaxMargin; m += 0.0137 {
		price, err := Suggest(cost, ModeMargin, m)
		require.NoError(t, err)
		got := (price - cost) / price
		if math.Abs(got-m) > 1e-9*math.Max(1, m) {
			t.Fatalf("margin %v recomputed as %v", m, got)
		}
	}
}

func TestSuggest_MarginIsClampedBelowOne(t *testing.T) {
	price, err := Suggest(10, ModeMargin, 0.995)
	require.NoError(t, err)
	nearlyEqual(t, "clamped", price, 10/(1-MaxMargin))
}

func TestSuggest_InvalidInputs(t *testing.T) {
	cases := []struct {
		name  string
		mode  Mode
		value float64
	}{
		{"margin one", ModeMargin, 1},
		{"margin negative", ModeMargin, -0.1},
		{"markup negative", ModeMarkup, -1},
		{"unknown mode", Mode("discount"), 0.1},
		{"nan", ModeMargin, math.NaN()},
	}
	for _, tc := range cases {
		_, err := Suggest(10, tc.mode, tc.value)
		var ime *InvalidModeError
		assert.True(t, errors.As(err, &ime), tc.name)
	}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" Markup ")
	require.NoError(t, err)
	assert.Equal(t, ModeMarkup, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeMargin, m)

	_, err = ParseMode("cost-plus")
	require.Error(t, err)
}

func TestLineQuote_SuggestedAndOverride(t *testing.T) {
	line, err := LineQuote(LineInput{
		UnitMaterialsCost: 20,
		OperationalAlloc:  30,
		Qty:               3,
		Mode:              ModeMargin,
		Value:             0.5,
	})
	require.NoError(t, err)
	nearlyEqual(t, "unit cost", line.UnitCost, 30)
	nearlyEqual(t, "suggested", line.SuggestedUnitPrice, 60)
	nearlyEqual(t, "line price", line.LinePrice, 180)
	nearlyEqual(t, "unit profit", line.UnitProfit, 30)
	nearlyEqual(t, "line margin", line.LineMarginPct, 0.5)

	sale := 40.0
	line, err = LineQuote(LineInput{UnitMaterialsCost: 20, OperationalAlloc: 30, Qty: 3, Mode: ModeMargin, Value: 0.5, SalePrice: &sale})
	require.NoError(t, err)
	nearlyEqual(t, "line suggested", line.LineSuggested, 180)
	nearlyEqual(t, "line price", line.LinePrice, 120)
	nearlyEqual(t, "line profit", line.LineProfit, 30)
	nearlyEqual(t, "line margin", line.LineMarginPct, 0.25)
}

func TestLineQuote_ZeroPriceHasZeroMargin(t *testing.T) {
	zero := 0.0
	line, err := LineQuote(LineInput{UnitMaterialsCost: 5, Qty: 1, Mode: ModeMarkup, SalePrice: &zero})
	require.NoError(t, err)
	nearlyEqual(t, "margin", line.LineMarginPct, 0)
	nearlyEqual(t, "profit", line.LineProfit, -5)
}

func TestLineQuote_RejectsBadQuantityAndPrice(t *testing.T) {
	_, err := LineQuote(LineInput{UnitMaterialsCost: 5, Qty: 0, Mode: ModeMargin})
	require.ErrorIs(t, err, model.ErrValidation)

	neg := -1.0
	_, err = LineQuote(LineInput{UnitMaterialsCost: 5, Qty: 1, Mode: ModeMargin, SalePrice: &neg})
	require.ErrorIs(t, err, model.ErrValidation)
}
