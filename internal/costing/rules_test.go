package costing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/awkward-3312/SDSinventory/internal/model"
)

func bindings(numeric map[string]float64, opts map[string]string) *Bindings {
	if opts == nil {
		opts = map[string]string{}
	}
	return &Bindings{Numeric: numeric, Options: opts}
}

func TestConditionHolds(t *testing.T) {
	b := bindings(
		map[string]float64{"width": 2.5, "doble_cara": 1},
		map[string]string{"doble_cara": "si"},
	)

	tests := []struct {
		name string
		rule model.RecipeRule
		want bool
	}{
		{"numeric greater", model.RecipeRule{ConditionVar: "width", Operator: model.OpGt, ConditionValue: "2"}, true},
		{"numeric lte", model.RecipeRule{ConditionVar: "width", Operator: model.OpLte, ConditionValue: "2.5"}, true},
		{"numeric equality", model.RecipeRule{ConditionVar: "width", Operator: model.OpEq, ConditionValue: "2.50"}, true},
		{"numeric value does not parse", model.RecipeRule{ConditionVar: "width", Operator: model.OpEq, ConditionValue: "wide"}, false},
		{"option key equality", model.RecipeRule{ConditionVar: "doble_cara", Operator: model.OpEq, ConditionValue: "si"}, true},
		{"option key inequality", model.RecipeRule{ConditionVar: "doble_cara", Operator: model.OpNe, ConditionValue: "si"}, false},
		{"option ordering uses numeric value", model.RecipeRule{ConditionVar: "doble_cara", Operator: model.OpGte, ConditionValue: "1"}, true},
		{"unknown variable", model.RecipeRule{ConditionVar: "color", Operator: model.OpEq, ConditionValue: "1"}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ConditionHolds(tc.rule, b))
		})
	}
}

func TestApplyRules_GlobalMultiplier(t *testing.T) {
	b := bindings(map[string]float64{"doble_cara": 1}, map[string]string{"doble_cara": "si"})
	rules := []model.RecipeRule{{
		ID: "r1", Scope: model.ScopeGlobal, ConditionVar: "doble_cara", Operator: model.OpEq,
		ConditionValue: "si", EffectType: model.EffectMultiplier, EffectValue: 2,
	}}

	got := ApplyRules(rules, b, map[string]float64{"tinta": 3, "papel": 1.5})
	nearlyEqual(t, "tinta", got["tinta"], 6)
	nearlyEqual(t, "papel", got["papel"], 3)
}

func TestApplyRules_SupplyScope(t *testing.T) {
	b := bindings(map[string]float64{"width": 3}, nil)
	rules := []model.RecipeRule{
		{ID: "a", Scope: model.ScopeSupply, TargetSupplyID: "tinta", ConditionVar: "width", Operator: model.OpGt, ConditionValue: "2", EffectType: model.EffectAddQty, EffectValue: 0.5},
		{ID: "b", Scope: model.ScopeSupply, TargetSupplyID: "ojetes", ConditionVar: "width", Operator: model.OpGt, ConditionValue: "2", EffectType: model.EffectAddQty, EffectValue: 4},
	}

	got := ApplyRules(rules, b, map[string]float64{"tinta": 1, "papel": 1})
	nearlyEqual(t, "tinta", got["tinta"], 1.5)
	nearlyEqual(t, "papel", got["papel"], 1)
	_, added := got["ojetes"]
	assert.False(t, added, "a rule never introduces a supply the recipe does not use")
}

func TestApplyRules_SequentialFold(t *testing.T) {
	b := bindings(map[string]float64{"width": 1}, nil)
	always := func(id string, seq int, effect model.RuleEffect, v float64) model.RecipeRule {
		return model.RecipeRule{
			ID: id, SequenceIndex: seq, Scope: model.ScopeGlobal, ConditionVar: "width",
			Operator: model.OpGte, ConditionValue: "0", EffectType: effect, EffectValue: v,
		}
	}

	// Stored out of order; sequence index decides.
	rules := []model.RecipeRule{
		always("z", 2, model.EffectMultiplier, 3),
		always("y", 1, model.EffectAddQty, 1),
	}
	got := ApplyRules(rules, b, map[string]float64{"s": 2})
	nearlyEqual(t, "add then multiply", got["s"], 9)

	rules[0].SequenceIndex, rules[1].SequenceIndex = 1, 2
	got = ApplyRules(rules, b, map[string]float64{"s": 2})
	nearlyEqual(t, "multiply then add", got["s"], 7)
}

func TestApplyRules_TiesFollowAttachmentOrder(t *testing.T) {
	b := bindings(map[string]float64{"width": 1}, nil)
	rule := func(id string, pos int, effect model.RuleEffect, v float64) model.RecipeRule {
		return model.RecipeRule{
			ID: id, SequenceIndex: 1, Position: pos, Scope: model.ScopeGlobal, ConditionVar: "width",
			Operator: model.OpGte, ConditionValue: "0", EffectType: effect, EffectValue: v,
		}
	}

	tests := []struct {
		name  string
		rules []model.RecipeRule
		want  float64
	}{
		// IDs sort the other way round so only Position can produce the expected fold.
		{"add attached first", []model.RecipeRule{rule("zz", 1, model.EffectAddQty, 1), rule("aa", 2, model.EffectMultiplier, 10)}, 20},
		{"input order does not matter", []model.RecipeRule{rule("aa", 2, model.EffectMultiplier, 10), rule("zz", 1, model.EffectAddQty, 1)}, 20},
		{"multiplier attached first", []model.RecipeRule{rule("zz", 2, model.EffectAddQty, 1), rule("aa", 1, model.EffectMultiplier, 10)}, 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyRules(tt.rules, b, map[string]float64{"s": 1})
			nearlyEqual(t, tt.name, got["s"], tt.want)
		})
	}
}

func TestApplyRules_FalseConditionsLeaveQuantitiesUnchanged(t *testing.T) {
	b := bindings(map[string]float64{"width": 1}, nil)
	rules := []model.RecipeRule{
		{ID: "a", Scope: model.ScopeGlobal, ConditionVar: "width", Operator: model.OpGt, ConditionValue: "5", EffectType: model.EffectMultiplier, EffectValue: 10},
		{ID: "b", Scope: model.ScopeGlobal, ConditionVar: "missing", Operator: model.OpEq, ConditionValue: "1", EffectType: model.EffectAddQty, EffectValue: 10},
	}
	in := map[string]float64{"s": 2, "t": 0.25}

	got := ApplyRules(rules, b, in)
	assert.Equal(t, in, got)
}

func TestApplyRules_DoesNotMutateInput(t *testing.T) {
	b := bindings(map[string]float64{"width": 1}, nil)
	rules := []model.RecipeRule{{ID: "a", Scope: model.ScopeGlobal, ConditionVar: "width", Operator: model.OpEq, ConditionValue: "1", EffectType: model.EffectMultiplier, EffectValue: 2}}
	in := map[string]float64{"s": 2}

	_ = ApplyRules(rules, b, in)
	nearlyEqual(t, "input", in["s"], 2)
}
