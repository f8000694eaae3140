package costing

import (
	"sort"
	"strconv"
	"strings"

	"github.com/awkward-3312/SDSinventory/internal/model"
)

// SortRules returns rules ordered by SequenceIndex, ties in attachment order (Position).
// Rules equal on both keep their input order. The input is not modified.
func SortRules(rules []model.RecipeRule) []model.RecipeRule {
	out := append([]model.RecipeRule(nil), rules...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SequenceIndex != out[j].SequenceIndex {
			return out[i].SequenceIndex < out[j].SequenceIndex
		}
		return out[i].Position < out[j].Position
	})
	return out
}

// ApplyRules folds rules over qty (supply ID to quantity) in sequence order and returns the
// adjusted copy. Each rule sees the output of the previous one.
func ApplyRules(rules []model.RecipeRule, b *Bindings, qty map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(qty))
	for k, v := range qty {
		out[k] = v
	}

	for _, r := range SortRules(rules) {
		if !ConditionHolds(r, b) {
			continue
		}
		switch r.Scope {
		case model.ScopeGlobal:
			for sid, q := range out {
				out[sid] = applyEffect(r, q)
			}
		case model.ScopeSupply:
			sid := strings.TrimSpace(r.TargetSupplyID)
			if q, ok := out[sid]; ok {
				out[sid] = applyEffect(r, q)
			}
		}
	}
	return out
}

func applyEffect(r model.RecipeRule, q float64) float64 {
	switch r.EffectType {
	case model.EffectMultiplier:
		return q * r.EffectValue
	case model.EffectAddQty:
		return q + r.EffectValue
	}
	return q
}

// ConditionHolds evaluates a rule's condition against the bindings.
//
// For an option code, == and != compare the selected value_key and the ordering operators
// compare the option's numeric value. Any other bound name compares numerically. An unknown
// name or a condition value that does not parse as a number makes the condition false.
func ConditionHolds(r model.RecipeRule, b *Bindings) bool {
	name := strings.TrimSpace(r.ConditionVar)
	raw := strings.TrimSpace(r.ConditionValue)

	if key, ok := b.Options[name]; ok {
		switch r.Operator {
		case model.OpEq:
			return key == raw
		case model.OpNe:
			return key != raw
		}
	}

	left, ok := b.Numeric[name]
	if !ok {
		return false
	}
	right, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return false
	}
	return compare(r.Operator, left, right)
}

func compare(op model.Operator, left, right float64) bool {
	switch op {
	case model.OpEq:
		return left == right
	case model.OpNe:
		return left != right
	case model.OpGt:
		return left > right
	case model.OpLt:
		return left < right
	case model.OpGte:
		return left >= right
	case model.OpLte:
		return left <= right
	}
	return false
}
