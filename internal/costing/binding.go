package costing

import (
	"math"
	"strconv"
	"strings"

	"github.com/awkward-3312/SDSinventory/internal/model"
)

var (
	widthAliases  = []string{"width", "w", "ancho"}
	heightAliases = []string{"height", "h", "alto"}
)

// Dimensions are supplied together or not at all.
type Dimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Request holds the per-call inputs of a cost computation.
type Request struct {
	RecipeID string
	Dims     *Dimensions
	Vars     map[string]float64
	// Option code to selected value_key.
	Opts map[string]string
	// Strict turns every missing or out-of-range input into an error instead of a fallback.
	Strict bool
}

// Bindings is the evaluation environment built from a recipe config and a request.
// It implements formula.Env.
type Bindings struct {
	// Numeric values by identifier: dimension aliases, variable codes, option codes.
	Numeric map[string]float64
	// Selected value_key by option code.
	Options map[string]string
	strict  bool
}

func (b *Bindings) Lookup(name string) (float64, bool) {
	v, ok := b.Numeric[name]
	return v, ok
}

func (b *Bindings) Strict() bool { return b.strict }

// Resolve binds dimensions, variables and options for cfg.
//
// Non-strict mode substitutes instead of failing: missing dimensions become 1x1, a missing
// variable takes its default, then its min, then 1, out-of-range values are clamped, and a
// missing or unknown option key selects the first declared value. Strict mode reports each
// of those cases as an *UnboundVariableError or *InvalidRangeError.
func Resolve(cfg *model.RecipeConfig, req Request) (*Bindings, error) {
	b := &Bindings{
		Numeric: make(map[string]float64),
		Options: make(map[string]string),
		strict:  req.Strict,
	}
	recipeID := cfg.Recipe.ID

	if err := b.bindDims(recipeID, req.Dims); err != nil {
		return nil, err
	}

	vars := trimKeys(req.Vars)
	for _, v := range cfg.Variables {
		code := strings.TrimSpace(v.Code)
		if code == "" {
			continue
		}
		val, err := b.resolveVariable(recipeID, code, v, vars)
		if err != nil {
			return nil, err
		}
		b.Numeric[code] = val
	}

	opts := trimKeys(req.Opts)
	for _, o := range cfg.Options {
		code := strings.TrimSpace(o.Code)
		if code == "" {
			continue
		}
		if err := b.resolveOption(recipeID, code, o, opts); err != nil {
			return nil, err
		}
	}

	return b, nil
}

func (b *Bindings) bindDims(recipeID string, d *Dimensions) error {
	if d == nil {
		if b.strict {
			// Left unbound: a formula that needs them fails with *UnboundVariableError.
			return nil
		}
		d = &Dimensions{Width: 1, Height: 1}
	}

	width, height := d.Width, d.Height
	for _, dim := range []struct {
		name string
		val  *float64
	}{{"width", &width}, {"height", &height}} {
		if *dim.val > 0 && !math.IsInf(*dim.val, 0) {
			continue
		}
		if b.strict || math.IsNaN(*dim.val) || math.IsInf(*dim.val, 0) {
			return &InvalidRangeError{RecipeID: recipeID, Name: dim.name, Value: formatFloat(*dim.val), Min: floatPtr(0)}
		}
		*dim.val = 1
	}

	for _, a := range widthAliases {
		b.Numeric[a] = width
	}
	for _, a := range heightAliases {
		b.Numeric[a] = height
	}
	return nil
}

func (b *Bindings) resolveVariable(recipeID, code string, v model.RecipeVariable, given map[string]float64) (float64, error) {
	val, ok := given[code]
	switch {
	case ok:
	case v.DefaultValue != nil:
		val = *v.DefaultValue
	case b.strict:
		return 0, &UnboundVariableError{RecipeID: recipeID, Name: code}
	case v.MinValue != nil:
		val = *v.MinValue
	default:
		val = 1
	}

	if math.IsNaN(val) || math.IsInf(val, 0) {
		return 0, &InvalidRangeError{RecipeID: recipeID, Name: code, Value: formatFloat(val), Min: v.MinValue, Max: v.MaxValue}
	}

	below := v.MinValue != nil && val < *v.MinValue
	above := v.MaxValue != nil && val > *v.MaxValue
	if !below && !above {
		return val, nil
	}
	if b.strict {
		return 0, &InvalidRangeError{RecipeID: recipeID, Name: code, Value: formatFloat(val), Min: v.MinValue, Max: v.MaxValue}
	}
	if below {
		return *v.MinValue, nil
	}
	return *v.MaxValue, nil
}

func (b *Bindings) resolveOption(recipeID, code string, o model.RecipeOption, given map[string]string) error {
	key, ok := given[code]
	key = strings.TrimSpace(key)

	if ok && key != "" {
		for _, val := range o.Values {
			if val.ValueKey == key {
				b.selectValue(code, val)
				return nil
			}
		}
		if b.strict {
			return &InvalidRangeError{RecipeID: recipeID, Name: code, Value: key, Allowed: optionKeys(o)}
		}
	} else if b.strict {
		return &UnboundVariableError{RecipeID: recipeID, Name: code}
	}

	if len(o.Values) > 0 {
		b.selectValue(code, o.Values[0])
	}
	return nil
}

func (b *Bindings) selectValue(code string, v model.RecipeOptionValue) {
	b.Numeric[code] = v.NumericValue
	b.Options[code] = v.ValueKey
}

func optionKeys(o model.RecipeOption) []string {
	keys := make([]string, 0, len(o.Values))
	for _, v := range o.Values {
		keys = append(keys, v.ValueKey)
	}
	return keys
}

func trimKeys[V any](in map[string]V) map[string]V {
	out := make(map[string]V, len(in))
	for k, v := range in {
		out[strings.TrimSpace(k)] = v
	}
	return out
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

func floatPtr(v float64) *float64 { return &v }
