package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/awkward-3312/SDSinventory/internal/model"
)

type createRecipeRequest struct {
	ProductID    string   `json:"product_id" validate:"required"`
	Name         string   `json:"name" validate:"required,max=120"`
	ProductType  string   `json:"product_type" validate:"omitempty,oneof=fixed variable"`
	MarginTarget *float64 `json:"margin_target" validate:"omitempty,gte=0,lt=1"`
}

type marginRequest struct {
	MarginTarget *float64 `json:"margin_target" validate:"required,gte=0,lt=1"`
}

type recipeItemRequest struct {
	SupplyID   string  `json:"supply_id" validate:"required"`
	QtyBase    float64 `json:"qty_base" validate:"gte=0"`
	WastePct   float64 `json:"waste_pct" validate:"gte=0"`
	QtyFormula string  `json:"qty_formula" validate:"max=500"`
}

type variableRequest struct {
	Code         string   `json:"code" validate:"required,max=64"`
	Label        string   `json:"label" validate:"max=120"`
	MinValue     *float64 `json:"min_value"`
	MaxValue     *float64 `json:"max_value"`
	DefaultValue *float64 `json:"default_value"`
}

type optionValueRequest struct {
	ValueKey     string  `json:"value_key" validate:"required,max=64"`
	Label        string  `json:"label" validate:"max=120"`
	NumericValue float64 `json:"numeric_value"`
}

type optionRequest struct {
	Code   string               `json:"code" validate:"required,max=64"`
	Label  string               `json:"label" validate:"max=120"`
	Values []optionValueRequest `json:"values" validate:"dive"`
}

type ruleRequest struct {
	SequenceIndex  int     `json:"sequence_index" validate:"gte=0"`
	Scope          string  `json:"scope" validate:"required,oneof=global supply"`
	TargetSupplyID string  `json:"target_supply_id" validate:"required_if=Scope supply"`
	ConditionVar   string  `json:"condition_var" validate:"required"`
	Operator       string  `json:"operator" validate:"required"`
	ConditionValue string  `json:"condition_value"`
	EffectType     string  `json:"effect_type" validate:"required,oneof=multiplier add_qty"`
	EffectValue    float64 `json:"effect_value"`
}

type variableUpdateRequest struct {
	Label        string   `json:"label" validate:"max=120"`
	MinValue     *float64 `json:"min_value"`
	MaxValue     *float64 `json:"max_value"`
	DefaultValue *float64 `json:"default_value"`
}

type labelRequest struct {
	Label string `json:"label" validate:"max=120"`
}

type ruleOrderRequest struct {
	RuleIDs []string `json:"rule_ids" validate:"required,dive,required"`
}

func (req recipeItemRequest) toModel(recipeID string) model.RecipeItem {
	return model.RecipeItem{
		RecipeID:   recipeID,
		SupplyID:   req.SupplyID,
		QtyBase:    req.QtyBase,
		WastePct:   req.WastePct,
		QtyFormula: req.QtyFormula,
	}
}

func (req ruleRequest) toModel(recipeID string) model.RecipeRule {
	return model.RecipeRule{
		RecipeID:       recipeID,
		SequenceIndex:  req.SequenceIndex,
		Scope:          model.RuleScope(req.Scope),
		TargetSupplyID: req.TargetSupplyID,
		ConditionVar:   req.ConditionVar,
		Operator:       model.Operator(req.Operator),
		ConditionValue: req.ConditionValue,
		EffectType:     model.RuleEffect(req.EffectType),
		EffectValue:    req.EffectValue,
	}
}

func (v optionValueRequest) toModel() model.RecipeOptionValue {
	return model.RecipeOptionValue{ValueKey: v.ValueKey, Label: v.Label, NumericValue: v.NumericValue}
}

func (s *server) handleRecipeCreate(w http.ResponseWriter, r *http.Request) {
	var req createRecipeRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	margin := model.DefaultMarginTarget
	if req.MarginTarget != nil {
		margin = *req.MarginTarget
	}
	recipe, err := s.store.CreateRecipe(r.Context(), model.Recipe{
		ProductID:    req.ProductID,
		Name:         req.Name,
		ProductType:  model.ProductType(req.ProductType),
		MarginTarget: margin,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, recipe)
}

func (s *server) handleRecipesList(w http.ResponseWriter, r *http.Request) {
	recipes, err := s.store.ListRecipes(r.Context(), r.URL.Query().Get("product_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recipes)
}

func (s *server) handleRecipeGet(w http.ResponseWriter, r *http.Request) {
	recipe, err := s.store.RecipeByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recipe)
}

func (s *server) handleRecipeConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.RecipeConfig(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *server) handleRecipeMargin(w http.ResponseWriter, r *http.Request) {
	var req marginRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.store.UpdateMarginTarget(r.Context(), id, *req.MarginTarget); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "margin_target": *req.MarginTarget})
}

func (s *server) handleRecipeItemCreate(w http.ResponseWriter, r *http.Request) {
	var req recipeItemRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	item, err := s.store.AddItem(r.Context(), req.toModel(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *server) handleRecipeVariableCreate(w http.ResponseWriter, r *http.Request) {
	var req variableRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	v, err := s.store.AddVariable(r.Context(), model.RecipeVariable{
		RecipeID:     chi.URLParam(r, "id"),
		Code:         req.Code,
		Label:        req.Label,
		MinValue:     req.MinValue,
		MaxValue:     req.MaxValue,
		DefaultValue: req.DefaultValue,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (s *server) handleRecipeOptionCreate(w http.ResponseWriter, r *http.Request) {
	var req optionRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	opt := model.RecipeOption{
		RecipeID: chi.URLParam(r, "id"),
		Code:     req.Code,
		Label:    req.Label,
		Values:   make([]model.RecipeOptionValue, 0, len(req.Values)),
	}
	for _, v := range req.Values {
		opt.Values = append(opt.Values, v.toModel())
	}

	created, err := s.store.AddOption(r.Context(), opt)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *server) handleRecipeOptionValueCreate(w http.ResponseWriter, r *http.Request) {
	var req optionValueRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	v := req.toModel()
	v.OptionID = chi.URLParam(r, "optionID")
	created, err := s.store.AddOptionValue(r.Context(), chi.URLParam(r, "id"), v)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *server) handleRecipeRuleCreate(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	rule, err := s.store.AddRule(r.Context(), req.toModel(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

func (s *server) handleRecipeItemUpdate(w http.ResponseWriter, r *http.Request) {
	var req recipeItemRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	it := req.toModel(chi.URLParam(r, "id"))
	it.ID = chi.URLParam(r, "itemID")
	item, err := s.store.UpdateItem(r.Context(), it)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *server) handleRecipeItemDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteItem(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "itemID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleRecipeVariableUpdate(w http.ResponseWriter, r *http.Request) {
	var req variableUpdateRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	v, err := s.store.UpdateVariable(r.Context(), model.RecipeVariable{
		ID:           chi.URLParam(r, "variableID"),
		RecipeID:     chi.URLParam(r, "id"),
		Label:        req.Label,
		MinValue:     req.MinValue,
		MaxValue:     req.MaxValue,
		DefaultValue: req.DefaultValue,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *server) handleRecipeVariableDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteVariable(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "variableID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleRecipeOptionUpdate(w http.ResponseWriter, r *http.Request) {
	var req labelRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	recipeID, optionID := chi.URLParam(r, "id"), chi.URLParam(r, "optionID")
	if err := s.store.UpdateOptionLabel(r.Context(), recipeID, optionID, req.Label); err != nil {
		writeError(w, r, err)
		return
	}
	cfg, err := s.store.RecipeConfig(r.Context(), recipeID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	for _, o := range cfg.Options {
		if o.ID == optionID {
			writeJSON(w, http.StatusOK, o)
			return
		}
	}
	writeError(w, r, model.ErrNotFound)
}

func (s *server) handleRecipeOptionDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteOption(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "optionID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleRecipeOptionValueUpdate(w http.ResponseWriter, r *http.Request) {
	var req optionValueRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	v := req.toModel()
	v.ID = chi.URLParam(r, "valueID")
	v.OptionID = chi.URLParam(r, "optionID")
	updated, err := s.store.UpdateOptionValue(r.Context(), chi.URLParam(r, "id"), v)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *server) handleRecipeOptionValueDelete(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteOptionValue(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "optionID"), chi.URLParam(r, "valueID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleRecipeRuleUpdate(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	rule := req.toModel(chi.URLParam(r, "id"))
	rule.ID = chi.URLParam(r, "ruleID")
	updated, err := s.store.UpdateRule(r.Context(), rule)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *server) handleRecipeRuleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteRule(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "ruleID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleRecipeRulesReorder(w http.ResponseWriter, r *http.Request) {
	var req ruleOrderRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	rules, err := s.store.ReorderRules(r.Context(), chi.URLParam(r, "id"), req.RuleIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rules)
}
