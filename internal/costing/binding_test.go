package costing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awkward-3312/SDSinventory/internal/model"
)

func TestResolve_DimensionAliases(t *testing.T) {
	b := mustResolve(t, recipe("r1"), Request{Dims: &Dimensions{Width: 1.2, Height: 0.8}})

	for _, a := range []string{"width", "w", "ancho"} {
		nearlyEqual(t, a, b.Numeric[a], 1.2)
	}
	for _, a := range []string{"height", "h", "alto"} {
		nearlyEqual(t, a, b.Numeric[a], 0.8)
	}
}

func TestResolve_MissingDims(t *testing.T) {
	b := mustResolve(t, recipe("r1"), Request{})
	nearlyEqual(t, "width", b.Numeric["width"], 1)
	nearlyEqual(t, "height", b.Numeric["height"], 1)

	b = mustResolve(t, recipe("r1"), Request{Strict: true})
	_, ok := b.Lookup("width")
	assert.False(t, ok, "strict mode leaves dimensions unbound")
}

func TestResolve_NonPositiveDims(t *testing.T) {
	_, err := Resolve(recipe("r1"), Request{Dims: &Dimensions{Width: 0, Height: 2}, Strict: true})
	var re *InvalidRangeError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "width", re.Name)

	b := mustResolve(t, recipe("r1"), Request{Dims: &Dimensions{Width: -3, Height: 2}})
	nearlyEqual(t, "width", b.Numeric["w"], 1)
	nearlyEqual(t, "height", b.Numeric["h"], 2)
}

func TestResolve_Variables(t *testing.T) {
	cfg := recipe("r1")
	cfg.Variables = []model.RecipeVariable{
		{Code: "copias", DefaultValue: ptr(10), MinValue: ptr(1), MaxValue: ptr(100)},
		{Code: "paginas", MinValue: ptr(4)},
		{Code: "grosor"},
	}

	tests := []struct {
		name   string
		req    Request
		want   map[string]float64
		errAs  any
		errVar string
	}{
		{
			name: "given values",
			req:  Request{Vars: map[string]float64{" copias ": 20, "paginas": 8, "grosor": 2}},
			want: map[string]float64{"copias": 20, "paginas": 8, "grosor": 2},
		},
		{
			name: "non-strict fallbacks: default, then min, then 1",
			req:  Request{},
			want: map[string]float64{"copias": 10, "paginas": 4, "grosor": 1},
		},
		{
			name: "non-strict clamps into range",
			req:  Request{Vars: map[string]float64{"copias": 500, "paginas": 1, "grosor": 3}},
			want: map[string]float64{"copias": 100, "paginas": 4, "grosor": 3},
		},
		{
			name:   "strict missing variable without default",
			req:    Request{Strict: true, Vars: map[string]float64{"grosor": 1}},
			errAs:  new(*UnboundVariableError),
			errVar: "paginas",
		},
		{
			name:   "strict out of range",
			req:    Request{Strict: true, Vars: map[string]float64{"copias": 0, "paginas": 4, "grosor": 1}},
			errAs:  new(*InvalidRangeError),
			errVar: "copias",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b, err := Resolve(cfg, tc.req)
			if tc.errAs != nil {
				require.Error(t, err)
				require.True(t, errors.As(err, tc.errAs))
				assert.Contains(t, err.Error(), tc.errVar)
				return
			}
			require.NoError(t, err)
			for k, v := range tc.want {
				nearlyEqual(t, k, b.Numeric[k], v)
			}
		})
	}
}

func TestResolve_Options(t *testing.T) {
	cfg := recipe("r1")
	cfg.Options = []model.RecipeOption{dobleCaraOption()}

	b := mustResolve(t, cfg, Request{Opts: map[string]string{"doble_cara": "si"}})
	assert.Equal(t, "si", b.Options["doble_cara"])
	nearlyEqual(t, "numeric", b.Numeric["doble_cara"], 1)

	b = mustResolve(t, cfg, Request{})
	assert.Equal(t, "no", b.Options["doble_cara"], "first declared value is the fallback")

	b = mustResolve(t, cfg, Request{Opts: map[string]string{"doble_cara": "tal vez"}})
	assert.Equal(t, "no", b.Options["doble_cara"])

	_, err := Resolve(cfg, Request{Strict: true})
	var ue *UnboundVariableError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "doble_cara", ue.Name)

	_, err = Resolve(cfg, Request{Strict: true, Opts: map[string]string{"doble_cara": "tal vez"}})
	var re *InvalidRangeError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, []string{"no", "si"}, re.Allowed)
}
