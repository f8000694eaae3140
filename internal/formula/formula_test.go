package formula

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nearlyEqual(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
}

func env(strict bool, kv ...any) MapEnv {
	values := map[string]float64{}
	for i := 0; i+1 < len(kv); i += 2 {
		values[kv[i].(string)] = kv[i+1].(float64)
	}
	return MapEnv{Values: values, StrictMode: strict}
}

func TestEvaluate_Arithmetic(t *testing.T) {
	t.Parallel()

	cases := []struct {
		src  string
		want float64
	}{
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"10 / 4", 2.5},
		{"10 - 4 - 3", 3},
		{"-2 ** 2", -4},
		{"2 ** 3 ** 2", 512},
		{"7 % 3", 1},
		{"-7 % 3", 2},
		{"+3 - -2", 5},
		{"0.5", 0.5},
	}

	for _, tc := range cases {
		got, err := Evaluate(tc.src, env(true))
		require.NoError(t, err, tc.src)
		nearlyEqual(t, tc.src, got, tc.want)
	}
}

func TestEvaluate_ExponentNotation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		src  string
		want float64
	}{
		{"1e3", 1000},
		{"2.5E-1", 0.25},
		{"1e+2 * width", 200},
		{"e * 2", 6},
		{"2 * e3", 8},
	}

	for _, tc := range cases {
		got, err := Evaluate(tc.src, env(true, "width", 2.0, "e", 3.0, "e3", 4.0))
		require.NoError(t, err, tc.src)
		nearlyEqual(t, tc.src, got, tc.want)
	}
}

func TestEvaluate_WidthTimesHeight(t *testing.T) {
	t.Parallel()

	got, err := Evaluate("width * height", env(true, "width", 1.2, "height", 0.8))
	require.NoError(t, err)
	nearlyEqual(t, "area", got, 0.96)
}

func TestEvaluate_IdentifiersAreCaseSensitive(t *testing.T) {
	t.Parallel()

	_, err := Evaluate("Width", env(true, "width", 2.0))
	var unbound *UnboundVariableError
	require.ErrorAs(t, err, &unbound)
	assert.Equal(t, "Width", unbound.Name)
}

func TestEvaluate_UnboundVariable(t *testing.T) {
	t.Parallel()

	_, err := Evaluate("largo * 2", env(true))
	var unbound *UnboundVariableError
	require.ErrorAs(t, err, &unbound)
	assert.Equal(t, "largo", unbound.Name)

	got, err := Evaluate("largo * 2 + 1", env(false))
	require.NoError(t, err)
	nearlyEqual(t, "non-strict", got, 1)
}

func TestEvaluate_DivisionByZeroCitesSubExpression(t *testing.T) {
	t.Parallel()

	_, err := Evaluate("3 + width / (height - 1)", env(true, "width", 2.0, "height", 1.0))
	var fe *FormulaError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "(width / (height - 1))", fe.Expr)
	assert.Equal(t, "3 + width / (height - 1)", fe.Formula)
	assert.Contains(t, fe.Error(), "division by zero")
}

func TestParse_SyntaxErrors(t *testing.T) {
	t.Parallel()

	for _, src := range []string{"", "1 +", "(1 + 2", "1 2", "width $ 2", "1..2", "*3", ")", "1e", "1e+"} {
		_, err := Parse(src)
		var fe *FormulaError
		assert.True(t, errors.As(err, &fe), "expected FormulaError for %q, got %v", src, err)
	}
}

func TestEvaluate_IsDeterministic(t *testing.T) {
	t.Parallel()

	e := env(true, "width", 1.37, "height", 2.91, "capas", 3.0)
	first, err := Evaluate("(width + 0.1) * (height + 0.1) * capas / 7", e)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		again, err := Evaluate("(width + 0.1) * (height + 0.1) * capas / 7", e)
		require.NoError(t, err)
		require.Equal(t, math.Float64bits(first), math.Float64bits(again))
	}
}

func TestIdentifiers(t *testing.T) {
	t.Parallel()

	e, err := Parse("ancho * alto + ancho * margen")
	require.NoError(t, err)
	assert.Equal(t, []string{"ancho", "alto", "margen"}, Identifiers(e))
}

func TestValidate(t *testing.T) {
	t.Parallel()

	names, err := Validate("ancho * alto", []string{"ancho", "alto"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ancho", "alto"}, names)

	_, err = Validate("   ", nil)
	require.Error(t, err)

	_, err = Validate("ancho * profundidad", []string{"ancho", "alto"})
	require.Error(t, err)

	_, err = Validate("width - 1", nil)
	require.Error(t, err, "zero result with dummy bindings must be rejected")

	long := "1"
	for len(long) <= MaxLength {
		long += "+1"
	}
	_, err = Validate(long, nil)
	require.Error(t, err)
}
