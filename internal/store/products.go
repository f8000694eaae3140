package store

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/awkward-3312/SDSinventory/internal/model"
)

var productColumns = []string{"id", "name", "product_type", "category", "unit_sale", "margin_target", "active", "created_at"}

func scanProduct(row interface{ Scan(...any) error }) (*model.Product, error) {
	var p model.Product
	if err := row.Scan(&p.ID, &p.Name, &p.ProductType, &p.Category, &p.UnitSale, &p.MarginTarget, &p.Active, sqliteTime{&p.CreatedAt}); err != nil {
		return nil, err
	}
	return &p, nil
}

func normalizeProduct(op string, p *model.Product) error {
	p.Name = strings.TrimSpace(p.Name)
	p.Category = strings.TrimSpace(p.Category)
	p.UnitSale = strings.TrimSpace(p.UnitSale)
	if p.ProductType == "" {
		p.ProductType = model.ProductFixed
	}
	switch {
	case p.Name == "":
		return fmt.Errorf("%s: %w: name is required", op, model.ErrValidation)
	case !p.ProductType.Valid():
		return fmt.Errorf("%s: %w: product_type must be fixed or variable", op, model.ErrValidation)
	case p.MarginTarget < 0 || p.MarginTarget >= 1:
		return fmt.Errorf("%s: %w: margin_target must be in [0, 1)", op, model.ErrValidation)
	}
	return nil
}

func (s *Store) CreateProduct(ctx context.Context, p model.Product) (*model.Product, error) {
	const op = "store.CreateProduct"

	if err := normalizeProduct(op, &p); err != nil {
		return nil, err
	}
	p.ID = uuid.NewString()
	p.Active = true
	p.CreatedAt = s.now().UTC()

	_, err := s.exec(ctx, s.db, s.sb.Insert("products").
		Columns(productColumns...).
		Values(p.ID, p.Name, p.ProductType, p.Category, p.UnitSale, p.MarginTarget, p.Active, p.CreatedAt.Format(timeLayouts[2])))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &p, nil
}

func (s *Store) ProductByID(ctx context.Context, id string) (*model.Product, error) {
	const op = "store.ProductByID"
	p, err := s.productByID(ctx, s.db, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

func (s *Store) productByID(ctx context.Context, q queryer, id string) (*model.Product, error) {
	row, err := s.queryRow(ctx, q, s.sb.Select(productColumns...).From("products").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	p, err := scanProduct(row)
	if err != nil {
		return nil, classify(err)
	}
	return p, nil
}

// ListProducts returns products ordered by name, only active ones unless includeInactive.
func (s *Store) ListProducts(ctx context.Context, includeInactive bool) ([]model.Product, error) {
	const op = "store.ListProducts"

	b := s.sb.Select(productColumns...).From("products").OrderBy("name", "id")
	if !includeInactive {
		b = b.Where(sq.Eq{"active": true})
	}
	rows, err := s.query(ctx, s.db, b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := []model.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// UpdateProduct replaces the editable fields of p.ID. Active is left alone.
func (s *Store) UpdateProduct(ctx context.Context, p model.Product) (*model.Product, error) {
	const op = "store.UpdateProduct"

	if err := normalizeProduct(op, &p); err != nil {
		return nil, err
	}
	res, err := s.exec(ctx, s.db, s.sb.Update("products").
		SetMap(sq.Eq{
			"name":          p.Name,
			"product_type":  p.ProductType,
			"category":      p.Category,
			"unit_sale":     p.UnitSale,
			"margin_target": p.MarginTarget,
		}).
		Where(sq.Eq{"id": p.ID}))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := requireAffected(res); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.ProductByID(ctx, p.ID)
}

// SetProductActive toggles a product. Inactive products keep their recipes and history but
// cannot be sold, quoted or produced.
func (s *Store) SetProductActive(ctx context.Context, id string, active bool) error {
	const op = "store.SetProductActive"

	res, err := s.exec(ctx, s.db, s.sb.Update("products").Set("active", active).Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := requireAffected(res); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// requireRecipeOfProduct checks that recipeID belongs to the active product productID.
func (s *Store) requireRecipeOfProduct(ctx context.Context, q queryer, productID, recipeID string) error {
	p, err := s.productByID(ctx, q, productID)
	if err != nil {
		return fmt.Errorf("product %s: %w", productID, err)
	}
	if !p.Active {
		return fmt.Errorf("%w: product %s is inactive", model.ErrValidation, productID)
	}
	r, err := s.recipeByID(ctx, q, recipeID)
	if err != nil {
		return fmt.Errorf("recipe %s: %w", recipeID, err)
	}
	if r.ProductID != productID {
		return fmt.Errorf("%w: recipe %s does not belong to product %s", model.ErrValidation, recipeID, productID)
	}
	return nil
}
