package store

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/awkward-3312/SDSinventory/internal/model"
)

var movementColumns = []string{"id", "supply_id", "movement_type", "qty_base", "unit_cost_snapshot", "ref_type", "ref_id", "created_at"}

func (s *Store) insertMovement(ctx context.Context, tx queryer, m model.Movement) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now().UTC()
	}
	_, err := s.exec(ctx, tx, s.sb.Insert("inventory_movements").
		Columns(movementColumns...).
		Values(m.ID, m.SupplyID, m.Type, m.QtyBase, m.UnitCostSnapshot, m.RefType, m.RefID, m.CreatedAt.Format(timeLayouts[2])))
	return err
}

// consume takes qty of supplyID out of stock and records the OUT movement. It fails with
// model.ErrValidation when the stock on hand is short.
func (s *Store) consume(ctx context.Context, tx queryer, c model.Consumption, ref model.MovementRef, refID string) (*model.Movement, error) {
	res, err := s.exec(ctx, tx, s.sb.Update("supplies").
		Set("stock_on_hand", sq.Expr("stock_on_hand - ?", c.Qty)).
		Where(sq.Eq{"id": c.SupplyID}).
		Where(sq.GtOrEq{"stock_on_hand": c.Qty}))
	if err != nil {
		return nil, err
	}
	if err := requireAffected(res); err != nil {
		sup, lookupErr := s.supplyByID(ctx, tx, "store.consume", c.SupplyID)
		if lookupErr != nil {
			return nil, lookupErr
		}
		return nil, fmt.Errorf("%w: insufficient stock of %s: needed %g, available %g",
			model.ErrValidation, sup.Name, c.Qty, sup.StockOnHand)
	}

	m := model.Movement{
		ID:               uuid.NewString(),
		SupplyID:         c.SupplyID,
		Type:             model.MovementOut,
		QtyBase:          c.Qty,
		UnitCostSnapshot: c.UnitCost,
		RefType:          ref,
		RefID:            refID,
		CreatedAt:        s.now().UTC(),
	}
	if err := s.insertMovement(ctx, tx, m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMovements returns the kardex of a supply, oldest first.
func (s *Store) ListMovements(ctx context.Context, supplyID string) ([]model.Movement, error) {
	const op = "store.ListMovements"

	if _, err := s.supplyByID(ctx, s.db, op, supplyID); err != nil {
		return nil, err
	}
	out, err := s.listMovements(ctx, s.db, sq.Eq{"supply_id": supplyID})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (s *Store) listMovements(ctx context.Context, q queryer, where sq.Sqlizer) ([]model.Movement, error) {
	rows, err := s.query(ctx, q, s.sb.Select(movementColumns...).
		From("inventory_movements").
		Where(where).
		OrderBy("created_at", "rowid"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Movement{}
	for rows.Next() {
		var m model.Movement
		if err := rows.Scan(&m.ID, &m.SupplyID, &m.Type, &m.QtyBase, &m.UnitCostSnapshot, &m.RefType, &m.RefID, sqliteTime{&m.CreatedAt}); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MovementSummary totals the IN and OUT quantities of a supply.
func (s *Store) MovementSummary(ctx context.Context, supplyID string) (*model.MovementSummary, error) {
	const op = "store.MovementSummary"

	if _, err := s.supplyByID(ctx, s.db, op, supplyID); err != nil {
		return nil, err
	}
	row, err := s.queryRow(ctx, s.db, s.sb.
		Select(
			"COALESCE(SUM(CASE WHEN movement_type = 'IN' THEN qty_base END), 0)",
			"COALESCE(SUM(CASE WHEN movement_type = 'OUT' THEN qty_base END), 0)",
		).
		From("inventory_movements").
		Where(sq.Eq{"supply_id": supplyID}))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sum := &model.MovementSummary{SupplyID: supplyID}
	if err := row.Scan(&sum.TotalIn, &sum.TotalOut); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sum.Balance = sum.TotalIn - sum.TotalOut
	return sum, nil
}
