package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/awkward-3312/SDSinventory/internal/model"
)

var supplyColumns = []string{"id", "name", "unit_code", "stock_on_hand", "stock_min", "avg_unit_cost", "active", "created_at"}

func scanSupply(row interface{ Scan(...any) error }) (*model.Supply, error) {
	var s model.Supply
	if err := row.Scan(&s.ID, &s.Name, &s.UnitCode, &s.StockOnHand, &s.StockMin, &s.AvgUnitCost, &s.Active, sqliteTime{&s.CreatedAt}); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Store) ListUnits(ctx context.Context) ([]model.Unit, error) {
	const op = "store.ListUnits"

	rows, err := s.query(ctx, s.db, s.sb.Select("id", "code", "name").From("units").OrderBy("code"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	units := []model.Unit{}
	for rows.Next() {
		var u model.Unit
		if err := rows.Scan(&u.ID, &u.Code, &u.Name); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

func (s *Store) CreateSupply(ctx context.Context, sup model.Supply) (*model.Supply, error) {
	const op = "store.CreateSupply"

	sup.ID = uuid.NewString()
	sup.Name = strings.TrimSpace(sup.Name)
	sup.CreatedAt = s.now().UTC()

	_, err := s.exec(ctx, s.db, s.sb.Insert("supplies").
		Columns(supplyColumns...).
		Values(sup.ID, sup.Name, sup.UnitCode, sup.StockOnHand, sup.StockMin, sup.AvgUnitCost, sup.Active, sup.CreatedAt.Format(timeLayouts[2])))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &sup, nil
}

func (s *Store) SupplyByID(ctx context.Context, id string) (*model.Supply, error) {
	const op = "store.SupplyByID"
	return s.supplyByID(ctx, s.db, op, id)
}

func (s *Store) supplyByID(ctx context.Context, q queryer, op, id string) (*model.Supply, error) {
	row, err := s.queryRow(ctx, q, s.sb.Select(supplyColumns...).From("supplies").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sup, err := scanSupply(row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}
	return sup, nil
}

// ListSupplies returns supplies ordered by name, only active ones unless includeInactive.
func (s *Store) ListSupplies(ctx context.Context, includeInactive bool) ([]model.Supply, error) {
	const op = "store.ListSupplies"

	b := s.sb.Select(supplyColumns...).From("supplies").OrderBy("name")
	if !includeInactive {
		b = b.Where(sq.Eq{"active": true})
	}
	return s.listSupplies(ctx, op, b)
}

// LowStock lists active supplies at or below their minimum, most critical first.
func (s *Store) LowStock(ctx context.Context) ([]model.Supply, error) {
	const op = "store.LowStock"

	b := s.sb.Select(supplyColumns...).From("supplies").
		Where(sq.Eq{"active": true}).
		Where("stock_on_hand <= stock_min").
		OrderBy("(stock_on_hand - stock_min)", "name")
	return s.listSupplies(ctx, op, b)
}

func (s *Store) listSupplies(ctx context.Context, op string, b sq.SelectBuilder) ([]model.Supply, error) {
	rows, err := s.query(ctx, s.db, b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := []model.Supply{}
	for rows.Next() {
		sup, err := scanSupply(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, *sup)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// RecordPurchase books a purchase, writes its IN movement and folds it into the supply's
// stock and weighted-average cost.
func (s *Store) RecordPurchase(ctx context.Context, p model.Purchase) (*model.PurchaseResult, error) {
	const op = "store.RecordPurchase"

	if p.PacksQty <= 0 || p.UnitsPerPack <= 0 {
		return nil, fmt.Errorf("%s: %w: packs_qty and units_per_pack must be > 0", op, model.ErrValidation)
	}
	if p.TotalCost < 0 {
		return nil, fmt.Errorf("%s: %w: total_cost must be >= 0", op, model.ErrValidation)
	}

	units := p.PacksQty * p.UnitsPerPack
	res := &model.PurchaseResult{
		PurchaseID:  uuid.NewString(),
		UnitsInBase: units,
		UnitCost:    p.TotalCost / units,
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		sup, err := s.supplyByID(ctx, tx, op, p.SupplyID)
		if err != nil {
			return err
		}

		res.NewStock, res.NewAvgUnitCost = model.WeightedAverageCost(sup.StockOnHand, sup.AvgUnitCost, units, res.UnitCost)

		if _, err := s.exec(ctx, tx, s.sb.Insert("purchases").
			Columns("id", "supply_id", "supplier_name", "packs_qty", "units_per_pack", "units_in_base", "total_cost", "unit_cost").
			Values(res.PurchaseID, sup.ID, strings.TrimSpace(p.SupplierName), p.PacksQty, p.UnitsPerPack, units, p.TotalCost, res.UnitCost)); err != nil {
			return fmt.Errorf("%s: insert purchase: %w", op, err)
		}
		if err := s.insertMovement(ctx, tx, model.Movement{
			SupplyID:         sup.ID,
			Type:             model.MovementIn,
			QtyBase:          units,
			UnitCostSnapshot: res.UnitCost,
			RefType:          model.RefPurchase,
			RefID:            res.PurchaseID,
		}); err != nil {
			return fmt.Errorf("%s: insert movement: %w", op, err)
		}

		_, err = s.exec(ctx, tx, s.sb.Update("supplies").
			SetMap(sq.Eq{"stock_on_hand": res.NewStock, "avg_unit_cost": res.NewAvgUnitCost}).
			Where(sq.Eq{"id": sup.ID}))
		if err != nil {
			return fmt.Errorf("%s: update supply: %w", op, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
