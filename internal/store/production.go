package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/awkward-3312/SDSinventory/internal/model"
)

// InsertProduction records a production run and takes its consumptions out of stock.
func (s *Store) InsertProduction(ctx context.Context, run *model.ProductionRun) error {
	const op = "store.InsertProduction"

	if run.Qty <= 0 {
		return fmt.Errorf("%s: %w: qty must be > 0", op, model.ErrValidation)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.now().UTC()
	}
	run.ID = uuid.NewString()

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.requireRecipeOfProduct(ctx, tx, run.ProductID, run.RecipeID); err != nil {
			return err
		}
		if _, err := s.exec(ctx, tx, s.sb.Insert("production_runs").
			Columns("id", "product_id", "recipe_id", "qty", "materials_cost", "created_at").
			Values(run.ID, run.ProductID, run.RecipeID, run.Qty, run.MaterialsCost, run.CreatedAt.Format(timeLayouts[2]))); err != nil {
			return err
		}
		for _, c := range run.Consumptions {
			if _, err := s.consume(ctx, tx, c, model.RefProduction, run.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
