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

var periodColumns = []string{"id", "year", "month", "estimated_orders", "currency", "active", "created_at"}

func scanPeriod(row interface{ Scan(...any) error }) (*model.FixedCostPeriod, error) {
	var p model.FixedCostPeriod
	if err := row.Scan(&p.ID, &p.Year, &p.Month, &p.EstimatedOrders, &p.Currency, &p.Active, sqliteTime{&p.CreatedAt}); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreatePeriod(ctx context.Context, p model.FixedCostPeriod) (*model.FixedCostPeriod, error) {
	const op = "store.CreatePeriod"

	if p.Year < 2000 || p.Year > 2100 {
		return nil, fmt.Errorf("%s: %w: year must be 2000..2100", op, model.ErrValidation)
	}
	if p.Month < 1 || p.Month > 12 {
		return nil, fmt.Errorf("%s: %w: month must be 1..12", op, model.ErrValidation)
	}
	if p.EstimatedOrders < 0 {
		return nil, fmt.Errorf("%s: %w: estimated_orders must be >= 0", op, model.ErrValidation)
	}
	p.ID = uuid.NewString()
	p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
	p.Active = false
	p.CreatedAt = s.now().UTC()

	_, err := s.exec(ctx, s.db, s.sb.Insert("fixed_cost_periods").
		Columns(periodColumns...).
		Values(p.ID, p.Year, p.Month, p.EstimatedOrders, p.Currency, p.Active, p.CreatedAt.Format(timeLayouts[2])))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &p, nil
}

func (s *Store) ListPeriods(ctx context.Context) ([]model.FixedCostPeriod, error) {
	const op = "store.ListPeriods"

	rows, err := s.query(ctx, s.db, s.sb.Select(periodColumns...).From("fixed_cost_periods").OrderBy("year DESC", "month DESC"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := []model.FixedCostPeriod{}
	for rows.Next() {
		p, err := scanPeriod(rows)
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

func (s *Store) AddFixedCostItem(ctx context.Context, it model.FixedCostItem) (*model.FixedCostItem, error) {
	const op = "store.AddFixedCostItem"

	it.Name = strings.TrimSpace(it.Name)
	if it.Name == "" {
		return nil, fmt.Errorf("%s: %w: name is required", op, model.ErrValidation)
	}
	if it.Amount < 0 {
		return nil, fmt.Errorf("%s: %w: amount must be >= 0", op, model.ErrValidation)
	}
	it.ID = uuid.NewString()
	it.CreatedAt = s.now().UTC()

	_, err := s.exec(ctx, s.db, s.sb.Insert("fixed_cost_items").
		Columns("id", "period_id", "name", "amount", "created_at").
		Values(it.ID, it.PeriodID, it.Name, it.Amount, it.CreatedAt.Format(timeLayouts[2])))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &it, nil
}

// ActivatePeriod makes id the only active period.
func (s *Store) ActivatePeriod(ctx context.Context, id string) error {
	const op = "store.ActivatePeriod"

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.exec(ctx, tx, s.sb.Update("fixed_cost_periods").Set("active", false).Where(sq.Eq{"active": true})); err != nil {
			return err
		}
		res, err := s.exec(ctx, tx, s.sb.Update("fixed_cost_periods").Set("active", true).Where(sq.Eq{"id": id}))
		if err != nil {
			return err
		}
		return requireAffected(res)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Store) PeriodSummary(ctx context.Context, id string) (*model.PeriodSummary, error) {
	const op = "store.PeriodSummary"
	summary, err := s.periodSummary(ctx, sq.Eq{"p.id": id})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return summary, nil
}

// ActivePeriodSummary returns model.ErrNotFound when no period is active.
func (s *Store) ActivePeriodSummary(ctx context.Context) (*model.PeriodSummary, error) {
	const op = "store.ActivePeriodSummary"
	summary, err := s.periodSummary(ctx, sq.Eq{"p.active": true})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return summary, nil
}

func (s *Store) periodSummary(ctx context.Context, where sq.Eq) (*model.PeriodSummary, error) {
	cols := make([]string, 0, len(periodColumns)+1)
	for _, c := range periodColumns {
		cols = append(cols, "p."+c)
	}
	cols = append(cols, "COALESCE(SUM(i.amount), 0)")

	row, err := s.queryRow(ctx, s.db, s.sb.
		Select(cols...).
		From("fixed_cost_periods p").
		LeftJoin("fixed_cost_items i ON i.period_id = p.id").
		Where(where).
		GroupBy("p.id"))
	if err != nil {
		return nil, err
	}

	var (
		p     model.FixedCostPeriod
		total float64
	)
	if err := row.Scan(&p.ID, &p.Year, &p.Month, &p.EstimatedOrders, &p.Currency, &p.Active, sqliteTime{&p.CreatedAt}, &total); err != nil {
		return nil, classify(err)
	}
	summary := model.NewPeriodSummary(p, total)
	return &summary, nil
}
