package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/awkward-3312/SDSinventory/internal/formula"
	"github.com/awkward-3312/SDSinventory/internal/model"
)

var dimensionNames = []string{"width", "w", "ancho", "height", "h", "alto"}

// CreateRecipe adds a recipe to an existing product. An empty ProductType takes the product's.
func (s *Store) CreateRecipe(ctx context.Context, r model.Recipe) (*model.Recipe, error) {
	const op = "store.CreateRecipe"

	if r.ProductType != "" && !r.ProductType.Valid() {
		return nil, fmt.Errorf("%s: %w: product_type must be fixed or variable", op, model.ErrValidation)
	}
	if r.MarginTarget < 0 || r.MarginTarget >= 1 {
		return nil, fmt.Errorf("%s: %w: margin_target must be in [0, 1)", op, model.ErrValidation)
	}

	r.ID = uuid.NewString()
	r.ProductID = strings.TrimSpace(r.ProductID)
	r.Name = strings.TrimSpace(r.Name)
	r.CreatedAt = s.now().UTC()

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		p, err := s.productByID(ctx, tx, r.ProductID)
		if errors.Is(err, model.ErrNotFound) {
			return fmt.Errorf("%w: unknown product %q", model.ErrValidation, r.ProductID)
		}
		if err != nil {
			return err
		}
		if r.ProductType == "" {
			r.ProductType = p.ProductType
		}
		_, err = s.exec(ctx, tx, s.sb.Insert("recipes").
			Columns("id", "product_id", "name", "product_type", "margin_target", "created_at").
			Values(r.ID, r.ProductID, r.Name, r.ProductType, r.MarginTarget, r.CreatedAt.Format(timeLayouts[2])))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &r, nil
}

// ListRecipes returns recipes ordered by name, only those of productID when it is not empty.
func (s *Store) ListRecipes(ctx context.Context, productID string) ([]model.Recipe, error) {
	const op = "store.ListRecipes"

	b := s.sb.Select("id", "product_id", "name", "product_type", "margin_target", "created_at").
		From("recipes").
		OrderBy("name", "id")
	if productID = strings.TrimSpace(productID); productID != "" {
		b = b.Where(sq.Eq{"product_id": productID})
	}
	rows, err := s.query(ctx, s.db, b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := []model.Recipe{}
	for rows.Next() {
		var r model.Recipe
		if err := rows.Scan(&r.ID, &r.ProductID, &r.Name, &r.ProductType, &r.MarginTarget, sqliteTime{&r.CreatedAt}); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (s *Store) RecipeByID(ctx context.Context, id string) (*model.Recipe, error) {
	const op = "store.RecipeByID"
	r, err := s.recipeByID(ctx, s.db, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return r, nil
}

func (s *Store) recipeByID(ctx context.Context, q queryer, id string) (*model.Recipe, error) {
	row, err := s.queryRow(ctx, q, s.sb.
		Select("id", "product_id", "name", "product_type", "margin_target", "created_at").
		From("recipes").
		Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}

	var r model.Recipe
	if err := row.Scan(&r.ID, &r.ProductID, &r.Name, &r.ProductType, &r.MarginTarget, sqliteTime{&r.CreatedAt}); err != nil {
		return nil, classify(err)
	}
	return &r, nil
}

func (s *Store) UpdateMarginTarget(ctx context.Context, recipeID string, margin float64) error {
	const op = "store.UpdateMarginTarget"

	if margin < 0 || margin >= 1 {
		return fmt.Errorf("%s: %w: margin_target must be in [0, 1)", op, model.ErrValidation)
	}
	res, err := s.exec(ctx, s.db, s.sb.Update("recipes").Set("margin_target", margin).Where(sq.Eq{"id": recipeID}))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := requireAffected(res); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidateRecipe(recipeID)
	return nil
}

func validateItem(it *model.RecipeItem) error {
	it.QtyFormula = strings.TrimSpace(it.QtyFormula)
	switch {
	case it.QtyBase < 0 || it.WastePct < 0:
		return fmt.Errorf("%w: qty_base and waste_pct must be >= 0", model.ErrValidation)
	case it.WastePct >= 100:
		return fmt.Errorf("%w: waste_pct must be < 100", model.ErrValidation)
	case !it.HasFormula() && it.QtyBase <= 0:
		return fmt.Errorf("%w: qty_base must be > 0 when there is no formula", model.ErrValidation)
	}
	return nil
}

// checkItemFormula rejects formulas on fixed recipes and formulas naming anything but
// dimensions and the recipe's declared variable and option codes.
func checkItemFormula(cfg *model.RecipeConfig, it model.RecipeItem) error {
	if !it.HasFormula() {
		return nil
	}
	if cfg.Recipe.ProductType == model.ProductFixed {
		return fmt.Errorf("%w: fixed recipes take qty_base, not formulas", model.ErrValidation)
	}
	if _, err := formula.Validate(it.QtyFormula, knownNames(cfg)); err != nil {
		return fmt.Errorf("%w: %v", model.ErrValidation, err)
	}
	return nil
}

// AddItem appends an item to a recipe. A formula must only reference dimensions and the
// recipe's declared variable and option codes.
func (s *Store) AddItem(ctx context.Context, it model.RecipeItem) (*model.RecipeItem, error) {
	const op = "store.AddItem"

	if err := validateItem(&it); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	it.ID = uuid.NewString()

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		cfg, err := s.loadRecipeConfig(ctx, tx, it.RecipeID)
		if err != nil {
			return err
		}
		if err := checkItemFormula(cfg, it); err != nil {
			return err
		}

		_, err = s.exec(ctx, tx, s.sb.Insert("recipe_items").
			Columns("id", "recipe_id", "supply_id", "qty_base", "waste_pct", "qty_formula", "position").
			Values(it.ID, it.RecipeID, it.SupplyID, it.QtyBase, it.WastePct, nullString(it.QtyFormula), len(cfg.Items)))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidateRecipe(it.RecipeID)
	return &it, nil
}

// UpdateItem replaces the supply, quantities and formula of item it.ID of recipe it.RecipeID.
func (s *Store) UpdateItem(ctx context.Context, it model.RecipeItem) (*model.RecipeItem, error) {
	const op = "store.UpdateItem"

	if err := validateItem(&it); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		cfg, err := s.loadRecipeConfig(ctx, tx, it.RecipeID)
		if err != nil {
			return err
		}
		if err := checkItemFormula(cfg, it); err != nil {
			return err
		}

		res, err := s.exec(ctx, tx, s.sb.Update("recipe_items").
			SetMap(sq.Eq{
				"supply_id":   it.SupplyID,
				"qty_base":    it.QtyBase,
				"waste_pct":   it.WastePct,
				"qty_formula": nullString(it.QtyFormula),
			}).
			Where(sq.Eq{"id": it.ID, "recipe_id": it.RecipeID}))
		if err != nil {
			return err
		}
		return requireAffected(res)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidateRecipe(it.RecipeID)
	return &it, nil
}

func (s *Store) DeleteItem(ctx context.Context, recipeID, itemID string) error {
	const op = "store.DeleteItem"
	if err := s.deleteRecipeChild(ctx, "recipe_items", recipeID, itemID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// deleteRecipeChild removes row id of table when it belongs to recipeID.
func (s *Store) deleteRecipeChild(ctx context.Context, table, recipeID, id string) error {
	res, err := s.exec(ctx, s.db, s.sb.Delete(table).Where(sq.Eq{"id": id, "recipe_id": recipeID}))
	if err != nil {
		return err
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	s.invalidateRecipe(recipeID)
	return nil
}

func knownNames(cfg *model.RecipeConfig) []string {
	names := append([]string(nil), dimensionNames...)
	for _, v := range cfg.Variables {
		names = append(names, v.Code)
	}
	for _, o := range cfg.Options {
		names = append(names, o.Code)
	}
	return names
}

func validateVariable(v *model.RecipeVariable) error {
	v.Label = strings.TrimSpace(v.Label)
	if v.MinValue != nil && v.MaxValue != nil && *v.MinValue > *v.MaxValue {
		return fmt.Errorf("%w: min_value > max_value", model.ErrValidation)
	}
	if v.DefaultValue != nil {
		if (v.MinValue != nil && *v.DefaultValue < *v.MinValue) || (v.MaxValue != nil && *v.DefaultValue > *v.MaxValue) {
			return fmt.Errorf("%w: default_value outside [min_value, max_value]", model.ErrValidation)
		}
	}
	return nil
}

func (s *Store) AddVariable(ctx context.Context, v model.RecipeVariable) (*model.RecipeVariable, error) {
	const op = "store.AddVariable"

	v.Code = strings.TrimSpace(v.Code)
	if err := validateCode(v.Code); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := validateVariable(&v); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	v.ID = uuid.NewString()

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.requireFreeCode(ctx, tx, v.RecipeID, v.Code); err != nil {
			return err
		}
		_, err := s.exec(ctx, tx, s.sb.Insert("recipe_variables").
			Columns("id", "recipe_id", "code", "label", "min_value", "max_value", "default_value").
			Values(v.ID, v.RecipeID, v.Code, v.Label, nullFloat(v.MinValue), nullFloat(v.MaxValue), nullFloat(v.DefaultValue)))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidateRecipe(v.RecipeID)
	return &v, nil
}

// UpdateVariable replaces the label, bounds and default of variable v.ID. The code is fixed
// once created since formulas and rules refer to it.
func (s *Store) UpdateVariable(ctx context.Context, v model.RecipeVariable) (*model.RecipeVariable, error) {
	const op = "store.UpdateVariable"

	if err := validateVariable(&v); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := s.exec(ctx, tx, s.sb.Update("recipe_variables").
			SetMap(sq.Eq{
				"label":         v.Label,
				"min_value":     nullFloat(v.MinValue),
				"max_value":     nullFloat(v.MaxValue),
				"default_value": nullFloat(v.DefaultValue),
			}).
			Where(sq.Eq{"id": v.ID, "recipe_id": v.RecipeID}))
		if err != nil {
			return err
		}
		if err := requireAffected(res); err != nil {
			return err
		}
		row, err := s.queryRow(ctx, tx, s.sb.Select("code").From("recipe_variables").Where(sq.Eq{"id": v.ID}))
		if err != nil {
			return err
		}
		return row.Scan(&v.Code)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidateRecipe(v.RecipeID)
	return &v, nil
}

// DeleteVariable removes a variable no item formula or rule condition refers to.
func (s *Store) DeleteVariable(ctx context.Context, recipeID, id string) error {
	const op = "store.DeleteVariable"

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		cfg, err := s.loadRecipeConfig(ctx, tx, recipeID)
		if err != nil {
			return err
		}
		idx := slices.IndexFunc(cfg.Variables, func(v model.RecipeVariable) bool { return v.ID == id })
		if idx < 0 {
			return model.ErrNotFound
		}
		if err := requireUnreferenced(cfg, cfg.Variables[idx].Code); err != nil {
			return err
		}
		_, err = s.exec(ctx, tx, s.sb.Delete("recipe_variables").Where(sq.Eq{"id": id}))
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidateRecipe(recipeID)
	return nil
}

func (s *Store) AddOption(ctx context.Context, o model.RecipeOption) (*model.RecipeOption, error) {
	const op = "store.AddOption"

	o.Code = strings.TrimSpace(o.Code)
	if err := validateCode(o.Code); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	o.ID = uuid.NewString()

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.requireFreeCode(ctx, tx, o.RecipeID, o.Code); err != nil {
			return err
		}
		if _, err := s.exec(ctx, tx, s.sb.Insert("recipe_options").
			Columns("id", "recipe_id", "code", "label").
			Values(o.ID, o.RecipeID, o.Code, o.Label)); err != nil {
			return err
		}
		for i := range o.Values {
			o.Values[i].OptionID = o.ID
			if err := s.insertOptionValue(ctx, tx, &o.Values[i], i); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidateRecipe(o.RecipeID)
	return &o, nil
}

// UpdateOptionLabel renames option id. Its code and values are edited separately.
func (s *Store) UpdateOptionLabel(ctx context.Context, recipeID, id, label string) error {
	const op = "store.UpdateOptionLabel"

	res, err := s.exec(ctx, s.db, s.sb.Update("recipe_options").
		Set("label", strings.TrimSpace(label)).
		Where(sq.Eq{"id": id, "recipe_id": recipeID}))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := requireAffected(res); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidateRecipe(recipeID)
	return nil
}

// DeleteOption removes an option and its values when no item formula or rule refers to it.
func (s *Store) DeleteOption(ctx context.Context, recipeID, id string) error {
	const op = "store.DeleteOption"

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		cfg, err := s.loadRecipeConfig(ctx, tx, recipeID)
		if err != nil {
			return err
		}
		idx := slices.IndexFunc(cfg.Options, func(o model.RecipeOption) bool { return o.ID == id })
		if idx < 0 {
			return model.ErrNotFound
		}
		if err := requireUnreferenced(cfg, cfg.Options[idx].Code); err != nil {
			return err
		}
		_, err = s.exec(ctx, tx, s.sb.Delete("recipe_options").Where(sq.Eq{"id": id}))
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidateRecipe(recipeID)
	return nil
}

// requireFreeCode fails with model.ErrConflict when a variable or option of the recipe
// already uses code. Both live in the same namespace inside formulas and rules.
func (s *Store) requireFreeCode(ctx context.Context, q queryer, recipeID, code string) error {
	for _, table := range []string{"recipe_variables", "recipe_options"} {
		row, err := s.queryRow(ctx, q, s.sb.Select("1").From(table).
			Where(sq.Eq{"recipe_id": recipeID, "code": code}).
			Limit(1))
		if err != nil {
			return err
		}
		var one int
		err = row.Scan(&one)
		if err == nil {
			return fmt.Errorf("%w: code %q is already used by this recipe", model.ErrConflict, code)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
	}
	return nil
}

// requireUnreferenced fails with model.ErrConflict when an item formula or a rule condition
// of cfg names code.
func requireUnreferenced(cfg *model.RecipeConfig, code string) error {
	for _, it := range cfg.Items {
		if !it.HasFormula() {
			continue
		}
		expr, err := formula.Parse(it.QtyFormula)
		if err != nil {
			continue
		}
		if slices.Contains(formula.Identifiers(expr), code) {
			return fmt.Errorf("%w: %q is used by the formula of item %s", model.ErrConflict, code, it.ID)
		}
	}
	for _, r := range cfg.Rules {
		if strings.TrimSpace(r.ConditionVar) == code {
			return fmt.Errorf("%w: %q is used by rule %s", model.ErrConflict, code, r.ID)
		}
	}
	return nil
}

// AddOptionValue appends a value to an option of recipeID.
func (s *Store) AddOptionValue(ctx context.Context, recipeID string, v model.RecipeOptionValue) (*model.RecipeOptionValue, error) {
	const op = "store.AddOptionValue"

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		row, err := s.queryRow(ctx, tx, s.sb.
			Select("COUNT(v.id)").
			From("recipe_options o").
			LeftJoin("recipe_option_values v ON v.option_id = o.id").
			Where(sq.Eq{"o.id": v.OptionID, "o.recipe_id": recipeID}).
			GroupBy("o.id"))
		if err != nil {
			return err
		}
		var position int
		if err := row.Scan(&position); err != nil {
			return classify(err)
		}
		return s.insertOptionValue(ctx, tx, &v, position)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidateRecipe(recipeID)
	return &v, nil
}

func (s *Store) insertOptionValue(ctx context.Context, tx queryer, v *model.RecipeOptionValue, position int) error {
	v.ValueKey = strings.TrimSpace(v.ValueKey)
	if v.ValueKey == "" {
		return fmt.Errorf("%w: value_key is required", model.ErrValidation)
	}
	v.ID = uuid.NewString()
	_, err := s.exec(ctx, tx, s.sb.Insert("recipe_option_values").
		Columns("id", "option_id", "value_key", "label", "numeric_value", "position").
		Values(v.ID, v.OptionID, v.ValueKey, v.Label, v.NumericValue, position))
	return err
}

// UpdateOptionValue replaces key, label and numeric value of v.ID, which must belong to
// option v.OptionID of recipeID.
func (s *Store) UpdateOptionValue(ctx context.Context, recipeID string, v model.RecipeOptionValue) (*model.RecipeOptionValue, error) {
	const op = "store.UpdateOptionValue"

	v.ValueKey = strings.TrimSpace(v.ValueKey)
	if v.ValueKey == "" {
		return nil, fmt.Errorf("%s: %w: value_key is required", op, model.ErrValidation)
	}
	res, err := s.exec(ctx, s.db, s.sb.Update("recipe_option_values").
		SetMap(sq.Eq{"value_key": v.ValueKey, "label": strings.TrimSpace(v.Label), "numeric_value": v.NumericValue}).
		Where(sq.Eq{"id": v.ID, "option_id": v.OptionID}).
		Where(sq.Expr("option_id IN (SELECT id FROM recipe_options WHERE recipe_id = ?)", recipeID)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := requireAffected(res); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidateRecipe(recipeID)
	return &v, nil
}

func (s *Store) DeleteOptionValue(ctx context.Context, recipeID, optionID, id string) error {
	const op = "store.DeleteOptionValue"

	res, err := s.exec(ctx, s.db, s.sb.Delete("recipe_option_values").
		Where(sq.Eq{"id": id, "option_id": optionID}).
		Where(sq.Expr("option_id IN (SELECT id FROM recipe_options WHERE recipe_id = ?)", recipeID)))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := requireAffected(res); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidateRecipe(recipeID)
	return nil
}

func validateRule(r *model.RecipeRule) error {
	r.ConditionVar = strings.TrimSpace(r.ConditionVar)
	r.ConditionValue = strings.TrimSpace(r.ConditionValue)
	r.TargetSupplyID = strings.TrimSpace(r.TargetSupplyID)
	switch {
	case !r.Scope.Valid():
		return fmt.Errorf("%w: scope must be global or supply", model.ErrValidation)
	case !r.Operator.Valid():
		return fmt.Errorf("%w: unsupported operator %q", model.ErrValidation, r.Operator)
	case !r.EffectType.Valid():
		return fmt.Errorf("%w: effect_type must be multiplier or add_qty", model.ErrValidation)
	case r.ConditionVar == "":
		return fmt.Errorf("%w: condition_var is required", model.ErrValidation)
	case r.Scope == model.ScopeSupply && r.TargetSupplyID == "":
		return fmt.Errorf("%w: supply scoped rules need target_supply_id", model.ErrValidation)
	case r.EffectType == model.EffectMultiplier && r.EffectValue <= 0:
		return fmt.Errorf("%w: multiplier must be > 0", model.ErrValidation)
	}
	if r.Scope == model.ScopeGlobal {
		r.TargetSupplyID = ""
	}
	return nil
}

// AddRule appends a rule. A SequenceIndex <= 0 places it after the recipe's last rule.
// Rules sharing a SequenceIndex apply in the order they were added.
func (s *Store) AddRule(ctx context.Context, r model.RecipeRule) (*model.RecipeRule, error) {
	const op = "store.AddRule"

	if err := validateRule(&r); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	r.ID = uuid.NewString()

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.recipeByID(ctx, tx, r.RecipeID); err != nil {
			return err
		}
		row, err := s.queryRow(ctx, tx, s.sb.
			Select("COALESCE(MAX(sequence_index), 0)", "COALESCE(MAX(position), 0)").
			From("recipe_rules").
			Where(sq.Eq{"recipe_id": r.RecipeID}))
		if err != nil {
			return err
		}
		var lastSeq int
		if err := row.Scan(&lastSeq, &r.Position); err != nil {
			return err
		}
		r.Position++
		if r.SequenceIndex <= 0 {
			r.SequenceIndex = lastSeq + 1
		}

		_, err = s.exec(ctx, tx, s.sb.Insert("recipe_rules").
			Columns("id", "recipe_id", "sequence_index", "position", "scope", "target_supply_id", "condition_var",
				"operator", "condition_value", "effect_type", "effect_value").
			Values(r.ID, r.RecipeID, r.SequenceIndex, r.Position, r.Scope, nullString(r.TargetSupplyID), r.ConditionVar,
				r.Operator, r.ConditionValue, r.EffectType, r.EffectValue))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidateRecipe(r.RecipeID)
	return &r, nil
}

// UpdateRule replaces condition and effect of rule r.ID. A SequenceIndex <= 0 keeps the
// rule where it is; its attachment order never changes.
func (s *Store) UpdateRule(ctx context.Context, r model.RecipeRule) (*model.RecipeRule, error) {
	const op = "store.UpdateRule"

	if err := validateRule(&r); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		row, err := s.queryRow(ctx, tx, s.sb.Select("sequence_index", "position").From("recipe_rules").
			Where(sq.Eq{"id": r.ID, "recipe_id": r.RecipeID}))
		if err != nil {
			return err
		}
		var seq int
		if err := row.Scan(&seq, &r.Position); err != nil {
			return classify(err)
		}
		if r.SequenceIndex <= 0 {
			r.SequenceIndex = seq
		}

		_, err = s.exec(ctx, tx, s.sb.Update("recipe_rules").
			SetMap(sq.Eq{
				"sequence_index":   r.SequenceIndex,
				"scope":            r.Scope,
				"target_supply_id": nullString(r.TargetSupplyID),
				"condition_var":    r.ConditionVar,
				"operator":         r.Operator,
				"condition_value":  r.ConditionValue,
				"effect_type":      r.EffectType,
				"effect_value":     r.EffectValue,
			}).
			Where(sq.Eq{"id": r.ID}))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidateRecipe(r.RecipeID)
	return &r, nil
}

func (s *Store) DeleteRule(ctx context.Context, recipeID, id string) error {
	const op = "store.DeleteRule"
	if err := s.deleteRecipeChild(ctx, "recipe_rules", recipeID, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ReorderRules renumbers the recipe's rules to follow ruleIDs, which must list every rule of
// the recipe exactly once. Both sequence index and attachment order become 1..n.
func (s *Store) ReorderRules(ctx context.Context, recipeID string, ruleIDs []string) ([]model.RecipeRule, error) {
	const op = "store.ReorderRules"

	var rules []model.RecipeRule
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.recipeByID(ctx, tx, recipeID); err != nil {
			return err
		}
		current, err := s.loadRules(ctx, tx, recipeID)
		if err != nil {
			return err
		}
		if err := samePermutation(current, ruleIDs); err != nil {
			return err
		}
		for i, id := range ruleIDs {
			if _, err := s.exec(ctx, tx, s.sb.Update("recipe_rules").
				SetMap(sq.Eq{"sequence_index": i + 1, "position": i + 1}).
				Where(sq.Eq{"id": id})); err != nil {
				return err
			}
		}
		rules, err = s.loadRules(ctx, tx, recipeID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidateRecipe(recipeID)
	return rules, nil
}

func samePermutation(rules []model.RecipeRule, ids []string) error {
	if len(ids) != len(rules) {
		return fmt.Errorf("%w: expected %d rule ids, got %d", model.ErrValidation, len(rules), len(ids))
	}
	pending := make(map[string]bool, len(rules))
	for _, r := range rules {
		pending[r.ID] = true
	}
	for _, id := range ids {
		if !pending[id] {
			return fmt.Errorf("%w: rule %q is unknown or repeated", model.ErrValidation, id)
		}
		delete(pending, id)
	}
	return nil
}

func validateCode(code string) error {
	if code == "" {
		return fmt.Errorf("%w: code is required", model.ErrValidation)
	}
	for _, d := range dimensionNames {
		if code == d {
			return fmt.Errorf("%w: code %q is reserved for dimensions", model.ErrValidation, code)
		}
	}
	expr, err := formula.Parse(code)
	if err != nil {
		return fmt.Errorf("%w: code %q is not a valid identifier", model.ErrValidation, code)
	}
	if _, ok := expr.(*formula.Identifier); !ok {
		return fmt.Errorf("%w: code %q is not a valid identifier", model.ErrValidation, code)
	}
	return nil
}

// RecipeConfig returns the recipe with its items, variables, options and rules, read in one
// transaction. Results are cached; the returned value must be treated as read-only.
func (s *Store) RecipeConfig(ctx context.Context, id string) (*model.RecipeConfig, error) {
	const op = "store.RecipeConfig"

	if cached, ok := s.recipes.Get(id); ok {
		return cached.(*model.RecipeConfig), nil
	}

	version := s.recipeVersion(id)
	var cfg *model.RecipeConfig
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		cfg, err = s.loadRecipeConfig(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.cacheRecipe(id, version, cfg)
	return cfg, nil
}

func (s *Store) recipeVersion(id string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recipeVersions[id]
}

// cacheRecipe stores cfg unless the recipe was written after version was read, in which
// case cfg may predate that write.
func (s *Store) cacheRecipe(id string, version uint64, cfg *model.RecipeConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recipeVersions[id] != version {
		return
	}
	s.recipes.Set(id, cfg, cache.DefaultExpiration)
}

// invalidateRecipe runs after a committed write to the recipe.
func (s *Store) invalidateRecipe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recipeVersions[id]++
	s.recipes.Delete(id)
}

func (s *Store) loadRecipeConfig(ctx context.Context, tx queryer, id string) (*model.RecipeConfig, error) {
	r, err := s.recipeByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	cfg := &model.RecipeConfig{Recipe: *r}

	if cfg.Items, err = s.loadItems(ctx, tx, id); err != nil {
		return nil, err
	}
	if cfg.Variables, err = s.loadVariables(ctx, tx, id); err != nil {
		return nil, err
	}
	if cfg.Options, err = s.loadOptions(ctx, tx, id); err != nil {
		return nil, err
	}
	if cfg.Rules, err = s.loadRules(ctx, tx, id); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *Store) loadItems(ctx context.Context, tx queryer, recipeID string) ([]model.RecipeItem, error) {
	rows, err := s.query(ctx, tx, s.sb.
		Select("id", "recipe_id", "supply_id", "qty_base", "waste_pct", "qty_formula").
		From("recipe_items").
		Where(sq.Eq{"recipe_id": recipeID}).
		OrderBy("position", "id"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []model.RecipeItem{}
	for rows.Next() {
		var (
			it         model.RecipeItem
			qtyFormula sql.NullString
		)
		if err := rows.Scan(&it.ID, &it.RecipeID, &it.SupplyID, &it.QtyBase, &it.WastePct, &qtyFormula); err != nil {
			return nil, err
		}
		it.QtyFormula = qtyFormula.String
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *Store) loadVariables(ctx context.Context, tx queryer, recipeID string) ([]model.RecipeVariable, error) {
	rows, err := s.query(ctx, tx, s.sb.
		Select("id", "recipe_id", "code", "label", "min_value", "max_value", "default_value").
		From("recipe_variables").
		Where(sq.Eq{"recipe_id": recipeID}).
		OrderBy("code"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	vars := []model.RecipeVariable{}
	for rows.Next() {
		var (
			v             model.RecipeVariable
			lo, hi, deflt sql.NullFloat64
		)
		if err := rows.Scan(&v.ID, &v.RecipeID, &v.Code, &v.Label, &lo, &hi, &deflt); err != nil {
			return nil, err
		}
		v.MinValue, v.MaxValue, v.DefaultValue = floatPtr(lo), floatPtr(hi), floatPtr(deflt)
		vars = append(vars, v)
	}
	return vars, rows.Err()
}

func (s *Store) loadOptions(ctx context.Context, tx queryer, recipeID string) ([]model.RecipeOption, error) {
	rows, err := s.query(ctx, tx, s.sb.
		Select("o.id", "o.recipe_id", "o.code", "o.label", "v.id", "v.value_key", "v.label", "v.numeric_value").
		From("recipe_options o").
		LeftJoin("recipe_option_values v ON v.option_id = o.id").
		Where(sq.Eq{"o.recipe_id": recipeID}).
		OrderBy("o.code", "v.position", "v.id"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	opts := []model.RecipeOption{}
	for rows.Next() {
		var (
			o                   model.RecipeOption
			valueID, key, label sql.NullString
			numeric             sql.NullFloat64
		)
		if err := rows.Scan(&o.ID, &o.RecipeID, &o.Code, &o.Label, &valueID, &key, &label, &numeric); err != nil {
			return nil, err
		}
		if n := len(opts); n == 0 || opts[n-1].ID != o.ID {
			o.Values = []model.RecipeOptionValue{}
			opts = append(opts, o)
		}
		if valueID.Valid {
			last := &opts[len(opts)-1]
			last.Values = append(last.Values, model.RecipeOptionValue{
				ID:           valueID.String,
				OptionID:     o.ID,
				ValueKey:     key.String,
				Label:        label.String,
				NumericValue: numeric.Float64,
			})
		}
	}
	return opts, rows.Err()
}

func (s *Store) loadRules(ctx context.Context, tx queryer, recipeID string) ([]model.RecipeRule, error) {
	rows, err := s.query(ctx, tx, s.sb.
		Select("id", "recipe_id", "sequence_index", "position", "scope", "target_supply_id", "condition_var",
			"operator", "condition_value", "effect_type", "effect_value").
		From("recipe_rules").
		Where(sq.Eq{"recipe_id": recipeID}).
		OrderBy("sequence_index", "position", "id"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := []model.RecipeRule{}
	for rows.Next() {
		var (
			r      model.RecipeRule
			target sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.RecipeID, &r.SequenceIndex, &r.Position, &r.Scope, &target, &r.ConditionVar,
			&r.Operator, &r.ConditionValue, &r.EffectType, &r.EffectValue); err != nil {
			return nil, err
		}
		r.TargetSupplyID = target.String
		rules = append(rules, r)
	}
	return rules, rows.Err()
}
