package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/awkward-3312/SDSinventory/internal/model"
)

const (
	defaultSaleLimit = 50
	maxSaleLimit     = 200
)

var saleColumns = []string{
	"id", "quote_id", "customer_name", "notes", "currency", "margin",
	"materials_cost_total", "operational_cost_total", "total_cost", "total_sale", "total_profit",
	"fixed_cost_period_id", "voided", "voided_at", "void_reason", "voided_by", "created_at",
}

var saleItemColumns = []string{
	"id", "sale_id", "product_id", "recipe_id", "qty", "materials_cost", "operational_alloc",
	"suggested_price", "sale_price", "profit", "width", "height", "vars_json", "opts_json",
}

// InsertSale stores a sale with its items and takes every item's consumptions out of stock,
// writing one OUT movement each. With QuoteID set the quote is marked converted in the same
// transaction; a quote converts at most once.
func (s *Store) InsertSale(ctx context.Context, sale *model.Sale, changedBy string) error {
	const op = "store.InsertSale"

	if len(sale.Items) == 0 {
		return fmt.Errorf("%s: %w: a sale needs at least one line", op, model.ErrValidation)
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = s.now().UTC()
	}
	sale.ID = uuid.NewString()
	sale.Movements = nil

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if sale.QuoteID != "" {
			if err := s.markConverted(ctx, tx, sale, changedBy); err != nil {
				return err
			}
		}
		for i, it := range sale.Items {
			if err := s.requireRecipeOfProduct(ctx, tx, it.ProductID, it.RecipeID); err != nil {
				return fmt.Errorf("line %d: %w", i+1, err)
			}
		}

		if _, err := s.exec(ctx, tx, s.sb.Insert("sales").
			Columns(saleColumns...).
			Values(sale.ID, nullString(sale.QuoteID), sale.CustomerName, sale.Notes, sale.Currency, sale.Margin,
				sale.MaterialsCostTotal, sale.OperationalCostTotal, sale.TotalCost, sale.TotalSale, sale.TotalProfit,
				nullString(sale.FixedCostPeriodID), false, nil, "", "", sale.CreatedAt.Format(timeLayouts[2]))); err != nil {
			return fmt.Errorf("insert sale: %w", err)
		}

		for i := range sale.Items {
			it := &sale.Items[i]
			it.ID = uuid.NewString()
			it.SaleID = sale.ID
			if err := s.insertSaleItem(ctx, tx, it, i); err != nil {
				return fmt.Errorf("insert sale item %d: %w", i+1, err)
			}
			for _, c := range it.Consumptions {
				m, err := s.consume(ctx, tx, c, model.RefSale, it.ID)
				if err != nil {
					return fmt.Errorf("line %d: %w", i+1, err)
				}
				sale.Movements = append(sale.Movements, *m)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Store) markConverted(ctx context.Context, tx queryer, sale *model.Sale, changedBy string) error {
	row, err := s.queryRow(ctx, tx, s.sb.Select("status").From("quotes").Where(sq.Eq{"id": sale.QuoteID}))
	if err != nil {
		return err
	}
	c := model.QuoteStatusChange{
		QuoteID:   sale.QuoteID,
		ToStatus:  model.QuoteConverted,
		Notes:     "sale " + sale.ID,
		ChangedBy: changedBy,
		ChangedAt: sale.CreatedAt,
	}
	if err := row.Scan(&c.FromStatus); err != nil {
		return classify(err)
	}
	switch c.FromStatus {
	case model.QuoteConverted:
		return fmt.Errorf("%w: quote already converted", model.ErrConflict)
	case model.QuoteRejected, model.QuoteExpired:
		return fmt.Errorf("%w: a %s quote cannot be converted", model.ErrValidation, c.FromStatus)
	}

	if _, err := s.exec(ctx, tx, s.sb.Update("quotes").Set("status", c.ToStatus).Where(sq.Eq{"id": c.QuoteID})); err != nil {
		return err
	}
	return s.insertStatusChange(ctx, tx, c)
}

func (s *Store) insertSaleItem(ctx context.Context, tx queryer, it *model.SaleItem, position int) error {
	vars, err := json.Marshal(nonNilMap(it.Vars))
	if err != nil {
		return err
	}
	opts, err := json.Marshal(nonNilMap(it.Opts))
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, tx, s.sb.Insert("sale_items").
		Columns(append([]string{"position"}, saleItemColumns...)...).
		Values(position, it.ID, it.SaleID, it.ProductID, it.RecipeID, it.Qty, it.MaterialsCost, it.OperationalAlloc,
			it.SuggestedPrice, it.SalePrice, it.Profit, nullFloat(it.Width), nullFloat(it.Height), string(vars), string(opts)))
	return err
}

func scanSale(row interface{ Scan(...any) error }) (*model.Sale, error) {
	var (
		sale            model.Sale
		quoteID, period sql.NullString
		voidedAt        sql.NullString
	)
	if err := row.Scan(&sale.ID, &quoteID, &sale.CustomerName, &sale.Notes, &sale.Currency, &sale.Margin,
		&sale.MaterialsCostTotal, &sale.OperationalCostTotal, &sale.TotalCost, &sale.TotalSale, &sale.TotalProfit,
		&period, &sale.Voided, &voidedAt, &sale.VoidReason, &sale.VoidedBy, sqliteTime{&sale.CreatedAt}); err != nil {
		return nil, err
	}
	sale.QuoteID, sale.FixedCostPeriodID = quoteID.String, period.String
	if voidedAt.Valid {
		var t time.Time
		if err := (sqliteTime{&t}).parse(voidedAt.String); err != nil {
			return nil, err
		}
		sale.VoidedAt = &t
	}
	return &sale, nil
}

// SaleByID returns a sale with its items and every movement it caused, voids included.
func (s *Store) SaleByID(ctx context.Context, id string) (*model.Sale, error) {
	const op = "store.SaleByID"

	row, err := s.queryRow(ctx, s.db, s.sb.Select(saleColumns...).From("sales").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sale, err := scanSale(row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}

	if sale.Items, err = s.saleItems(ctx, id); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sale.Movements, err = s.listMovements(ctx, s.db, sq.And{
		sq.Eq{"ref_type": []model.MovementRef{model.RefSale, model.RefSaleVoid}},
		sq.Expr("ref_id IN (SELECT id FROM sale_items WHERE sale_id = ?)", id),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sale, nil
}

func (s *Store) saleItems(ctx context.Context, saleID string) ([]model.SaleItem, error) {
	rows, err := s.query(ctx, s.db, s.sb.
		Select(saleItemColumns...).
		From("sale_items").
		Where(sq.Eq{"sale_id": saleID}).
		OrderBy("position"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []model.SaleItem{}
	for rows.Next() {
		var (
			it         model.SaleItem
			w, h       sql.NullFloat64
			vars, opts string
		)
		if err := rows.Scan(&it.ID, &it.SaleID, &it.ProductID, &it.RecipeID, &it.Qty, &it.MaterialsCost, &it.OperationalAlloc,
			&it.SuggestedPrice, &it.SalePrice, &it.Profit, &w, &h, &vars, &opts); err != nil {
			return nil, err
		}
		it.Width, it.Height = floatPtr(w), floatPtr(h)
		if err := json.Unmarshal([]byte(vars), &it.Vars); err != nil {
			return nil, fmt.Errorf("decode vars of sale item %s: %w", it.ID, err)
		}
		if err := json.Unmarshal([]byte(opts), &it.Opts); err != nil {
			return nil, fmt.Errorf("decode opts of sale item %s: %w", it.ID, err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ListSales returns sale headers, voided ones included, newest first.
func (s *Store) ListSales(ctx context.Context, f model.SaleFilter) ([]model.Sale, error) {
	const op = "store.ListSales"

	limit := f.Limit
	if limit == 0 {
		limit = defaultSaleLimit
	}
	limit = min(limit, maxSaleLimit)

	rows, err := s.query(ctx, s.db, s.sb.Select(saleColumns...).
		From("sales").
		OrderBy("created_at DESC", "rowid DESC").
		Limit(limit).
		Offset(f.Offset))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := []model.Sale{}
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, *sale)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// SalesTotals sums sales created at or after since; a zero since covers every sale.
func (s *Store) SalesTotals(ctx context.Context, since time.Time, includeVoided bool) (*model.SalesTotals, error) {
	const op = "store.SalesTotals"

	b := s.sb.Select("COUNT(*)", "COALESCE(SUM(total_sale), 0)", "COALESCE(SUM(total_cost), 0)", "COALESCE(SUM(total_profit), 0)").
		From("sales")
	if !includeVoided {
		b = b.Where(sq.Eq{"voided": false})
	}
	if !since.IsZero() {
		b = b.Where(sq.GtOrEq{"created_at": since.UTC().Format(timeLayouts[2])})
	}
	row, err := s.queryRow(ctx, s.db, b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	t := &model.SalesTotals{IncludeVoided: includeVoided}
	if err := row.Scan(&t.CountSales, &t.TotalSale, &t.TotalCost, &t.TotalProfit); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if t.TotalSale > 0 {
		t.Margin = t.TotalProfit / t.TotalSale
	}
	return t, nil
}

// VoidSale marks a sale voided and puts back the stock of each of its OUT movements,
// recording a sale_void IN movement per reversal. It returns the reversals.
func (s *Store) VoidSale(ctx context.Context, id, reason, voidedBy string) ([]model.Movement, error) {
	const op = "store.VoidSale"

	now := s.now().UTC()
	var reversed []model.Movement
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		row, err := s.queryRow(ctx, tx, s.sb.Select("voided").From("sales").Where(sq.Eq{"id": id}))
		if err != nil {
			return err
		}
		var voided bool
		if err := row.Scan(&voided); err != nil {
			return classify(err)
		}
		if voided {
			return fmt.Errorf("%w: sale already voided", model.ErrConflict)
		}

		outs, err := s.listMovements(ctx, tx, sq.And{
			sq.Eq{"ref_type": model.RefSale, "movement_type": model.MovementOut},
			sq.Expr("ref_id IN (SELECT id FROM sale_items WHERE sale_id = ?)", id),
		})
		if err != nil {
			return err
		}
		for _, out := range outs {
			if _, err := s.exec(ctx, tx, s.sb.Update("supplies").
				Set("stock_on_hand", sq.Expr("stock_on_hand + ?", out.QtyBase)).
				Where(sq.Eq{"id": out.SupplyID})); err != nil {
				return err
			}
			m := model.Movement{
				ID:               uuid.NewString(),
				SupplyID:         out.SupplyID,
				Type:             model.MovementIn,
				QtyBase:          out.QtyBase,
				UnitCostSnapshot: out.UnitCostSnapshot,
				RefType:          model.RefSaleVoid,
				RefID:            out.RefID,
				CreatedAt:        now,
			}
			if err := s.insertMovement(ctx, tx, m); err != nil {
				return err
			}
			reversed = append(reversed, m)
		}

		_, err = s.exec(ctx, tx, s.sb.Update("sales").
			SetMap(sq.Eq{"voided": true, "voided_at": now.Format(timeLayouts[2]), "void_reason": reason, "voided_by": voidedBy}).
			Where(sq.Eq{"id": id}))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return reversed, nil
}
