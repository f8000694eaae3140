package costing

import (
	"math"
	"testing"

	"github.com/awkward-3312/SDSinventory/internal/model"
)

func nearlyEqual(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
}

func ptr(v float64) *float64 { return &v }

func recipe(id string, items ...model.RecipeItem) *model.RecipeConfig {
	return &model.RecipeConfig{
		Recipe: model.Recipe{ID: id, Name: "banner", ProductType: model.ProductFixed, MarginTarget: 0.4},
		Items:  items,
	}
}

func supplyMap(supplies ...model.Supply) map[string]model.Supply {
	out := make(map[string]model.Supply, len(supplies))
	for _, s := range supplies {
		out[s.ID] = s
	}
	return out
}

func mustResolve(t *testing.T, cfg *model.RecipeConfig, req Request) *Bindings {
	t.Helper()
	b, err := Resolve(cfg, req)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return b
}

func dobleCaraOption() model.RecipeOption {
	return model.RecipeOption{
		ID:   "opt-1",
		Code: "doble_cara",
		Values: []model.RecipeOptionValue{
			{ValueKey: "no", NumericValue: 0},
			{ValueKey: "si", NumericValue: 1},
		},
	}
}
