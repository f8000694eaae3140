package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/awkward-3312/SDSinventory/internal/model"
)

const (
	quoteNumberPrefix = "COT"
	dateLayout        = "2006-01-02"
	defaultQuoteLimit = 50
	maxQuoteLimit     = 200
)

// likeEscaper makes user input match literally inside a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

var quoteColumns = []string{
	"id", "number", "status", "valid_until", "customer_name", "notes", "currency", "margin",
	"materials_cost_total", "operational_cost_total", "total_cost", "total_price", "total_profit",
	"fixed_cost_period_id", "created_at",
}

// InsertQuote assigns the next COT-YYYY-NNNN number for the quote's creation year and
// stores the quote with its items and the initial status entry in one transaction. Every
// item's recipe must belong to its product, which must be active.
func (s *Store) InsertQuote(ctx context.Context, q *model.Quote) error {
	const op = "store.InsertQuote"

	if q.Status == "" {
		q.Status = model.QuoteDraft
	}
	if !q.Status.Valid() {
		return fmt.Errorf("%s: %w: invalid status %q", op, model.ErrValidation, q.Status)
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = s.now().UTC()
	}
	q.ID = uuid.NewString()

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		seq, err := s.nextQuoteSeq(ctx, tx, q.CreatedAt.Year())
		if err != nil {
			return err
		}
		q.Number = fmt.Sprintf("%s-%d-%04d", quoteNumberPrefix, q.CreatedAt.Year(), seq)

		if _, err := s.exec(ctx, tx, s.sb.Insert("quotes").
			Columns(quoteColumns...).
			Values(q.ID, q.Number, q.Status, q.ValidUntil.Format(dateLayout), q.CustomerName, q.Notes, q.Currency, q.Margin,
				q.MaterialsCostTotal, q.OperationalCostTotal, q.TotalCost, q.TotalPrice, q.TotalProfit,
				nullString(q.FixedCostPeriodID), q.CreatedAt.Format(timeLayouts[2]))); err != nil {
			return fmt.Errorf("insert quote: %w", err)
		}

		for i := range q.Items {
			it := &q.Items[i]
			if err := s.requireRecipeOfProduct(ctx, tx, it.ProductID, it.RecipeID); err != nil {
				return fmt.Errorf("line %d: %w", i+1, err)
			}
			it.ID = uuid.NewString()
			it.QuoteID = q.ID
			if err := s.insertQuoteItem(ctx, tx, it, i); err != nil {
				return fmt.Errorf("insert quote item %d: %w", i, err)
			}
		}

		change := model.QuoteStatusChange{QuoteID: q.ID, ToStatus: q.Status, ChangedAt: q.CreatedAt}
		q.History = []model.QuoteStatusChange{change}
		return s.insertStatusChange(ctx, tx, change)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Store) nextQuoteSeq(ctx context.Context, tx queryer, year int) (int, error) {
	row, err := s.queryRow(ctx, tx, s.sb.
		Insert("quote_number_sequence").
		Columns("year", "last_seq").
		Values(year, 1).
		Suffix("ON CONFLICT (year) DO UPDATE SET last_seq = last_seq + 1 RETURNING last_seq"))
	if err != nil {
		return 0, err
	}
	var seq int
	if err := row.Scan(&seq); err != nil {
		return 0, fmt.Errorf("next quote number: %w", err)
	}
	return seq, nil
}

func (s *Store) insertQuoteItem(ctx context.Context, tx queryer, it *model.QuoteItem, position int) error {
	vars, err := json.Marshal(nonNilMap(it.Vars))
	if err != nil {
		return err
	}
	opts, err := json.Marshal(nonNilMap(it.Opts))
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, tx, s.sb.Insert("quote_items").
		Columns("id", "quote_id", "position", "product_id", "recipe_id", "qty", "materials_cost", "operational_alloc",
			"suggested_price", "sale_price", "profit", "width", "height", "vars_json", "opts_json").
		Values(it.ID, it.QuoteID, position, it.ProductID, it.RecipeID, it.Qty, it.MaterialsCost, it.OperationalAlloc,
			it.SuggestedPrice, it.SalePrice, it.Profit, nullFloat(it.Width), nullFloat(it.Height), string(vars), string(opts)))
	return err
}

func nonNilMap[V any](m map[string]V) map[string]V {
	if m == nil {
		return map[string]V{}
	}
	return m
}

func (s *Store) insertStatusChange(ctx context.Context, tx queryer, c model.QuoteStatusChange) error {
	var from sql.NullString
	if c.FromStatus != "" {
		from = sql.NullString{String: string(c.FromStatus), Valid: true}
	}
	_, err := s.exec(ctx, tx, s.sb.Insert("quote_status_history").
		Columns("quote_id", "from_status", "to_status", "notes", "changed_by", "changed_at").
		Values(c.QuoteID, from, c.ToStatus, c.Notes, c.ChangedBy, c.ChangedAt.Format(timeLayouts[2])))
	return err
}

// QuoteByID returns a quote with its items and status history.
func (s *Store) QuoteByID(ctx context.Context, id string) (*model.Quote, error) {
	const op = "store.QuoteByID"

	row, err := s.queryRow(ctx, s.db, s.sb.Select(quoteColumns...).From("quotes").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var (
		q      model.Quote
		period sql.NullString
	)
	if err := row.Scan(&q.ID, &q.Number, &q.Status, sqliteTime{&q.ValidUntil}, &q.CustomerName, &q.Notes, &q.Currency, &q.Margin,
		&q.MaterialsCostTotal, &q.OperationalCostTotal, &q.TotalCost, &q.TotalPrice, &q.TotalProfit,
		&period, sqliteTime{&q.CreatedAt}); err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}
	q.FixedCostPeriodID = period.String

	if q.Items, err = s.quoteItems(ctx, id); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if q.History, err = s.quoteHistory(ctx, id); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &q, nil
}

func (s *Store) quoteItems(ctx context.Context, quoteID string) ([]model.QuoteItem, error) {
	rows, err := s.query(ctx, s.db, s.sb.
		Select("id", "quote_id", "product_id", "recipe_id", "qty", "materials_cost", "operational_alloc",
			"suggested_price", "sale_price", "profit", "width", "height", "vars_json", "opts_json").
		From("quote_items").
		Where(sq.Eq{"quote_id": quoteID}).
		OrderBy("position"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []model.QuoteItem{}
	for rows.Next() {
		var (
			it         model.QuoteItem
			w, h       sql.NullFloat64
			vars, opts string
		)
		if err := rows.Scan(&it.ID, &it.QuoteID, &it.ProductID, &it.RecipeID, &it.Qty, &it.MaterialsCost, &it.OperationalAlloc,
			&it.SuggestedPrice, &it.SalePrice, &it.Profit, &w, &h, &vars, &opts); err != nil {
			return nil, err
		}
		it.Width, it.Height = floatPtr(w), floatPtr(h)
		if err := json.Unmarshal([]byte(vars), &it.Vars); err != nil {
			return nil, fmt.Errorf("decode vars of item %s: %w", it.ID, err)
		}
		if err := json.Unmarshal([]byte(opts), &it.Opts); err != nil {
			return nil, fmt.Errorf("decode opts of item %s: %w", it.ID, err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *Store) quoteHistory(ctx context.Context, quoteID string) ([]model.QuoteStatusChange, error) {
	rows, err := s.query(ctx, s.db, s.sb.
		Select("quote_id", "from_status", "to_status", "notes", "changed_by", "changed_at").
		From("quote_status_history").
		Where(sq.Eq{"quote_id": quoteID}).
		OrderBy("id"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.QuoteStatusChange{}
	for rows.Next() {
		var (
			c    model.QuoteStatusChange
			from sql.NullString
		)
		if err := rows.Scan(&c.QuoteID, &from, &c.ToStatus, &c.Notes, &c.ChangedBy, sqliteTime{&c.ChangedAt}); err != nil {
			return nil, err
		}
		c.FromStatus = model.QuoteStatus(from.String)
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListQuotes returns quote headers, newest first.
func (s *Store) ListQuotes(ctx context.Context, f model.QuoteFilter) ([]model.QuoteSummary, error) {
	const op = "store.ListQuotes"

	limit := f.Limit
	if limit == 0 {
		limit = defaultQuoteLimit
	}
	limit = min(limit, maxQuoteLimit)

	b := s.sb.
		Select("id", "number", "status", "valid_until", "customer_name", "currency", "total_price", "total_cost", "total_profit", "created_at").
		From("quotes").
		OrderBy("created_at DESC", "number DESC").
		Limit(limit).
		Offset(f.Offset)
	if f.Status != "" {
		b = b.Where(sq.Eq{"status": f.Status})
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		like := "%" + likeEscaper.Replace(search) + "%"
		b = b.Where(sq.Or{
			sq.Expr(`number LIKE ? ESCAPE '\'`, like),
			sq.Expr(`customer_name LIKE ? ESCAPE '\'`, like),
			sq.Expr(`notes LIKE ? ESCAPE '\'`, like),
		})
	}

	rows, err := s.query(ctx, s.db, b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := []model.QuoteSummary{}
	for rows.Next() {
		var q model.QuoteSummary
		if err := rows.Scan(&q.ID, &q.Number, &q.Status, sqliteTime{&q.ValidUntil}, &q.CustomerName, &q.Currency,
			&q.TotalPrice, &q.TotalCost, &q.TotalProfit, sqliteTime{&q.CreatedAt}); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// UpdateQuoteStatus moves a quote to status and records the change. Converted quotes are final.
func (s *Store) UpdateQuoteStatus(ctx context.Context, c model.QuoteStatusChange) error {
	const op = "store.UpdateQuoteStatus"

	if !c.ToStatus.Valid() {
		return fmt.Errorf("%s: %w: invalid status %q", op, model.ErrValidation, c.ToStatus)
	}
	if c.ChangedAt.IsZero() {
		c.ChangedAt = s.now().UTC()
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		row, err := s.queryRow(ctx, tx, s.sb.Select("status").From("quotes").Where(sq.Eq{"id": c.QuoteID}))
		if err != nil {
			return err
		}
		if err := row.Scan(&c.FromStatus); err != nil {
			return classify(err)
		}
		if c.FromStatus == model.QuoteConverted {
			return fmt.Errorf("%w: quote already converted", model.ErrConflict)
		}

		if _, err := s.exec(ctx, tx, s.sb.Update("quotes").Set("status", c.ToStatus).Where(sq.Eq{"id": c.QuoteID})); err != nil {
			return err
		}
		return s.insertStatusChange(ctx, tx, c)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ExpireQuotes marks draft and sent quotes whose validity ended before today as expired.
// valid_until holds UTC dates, so today is compared as a UTC date as well.
func (s *Store) ExpireQuotes(ctx context.Context, today time.Time) (int, error) {
	const op = "store.ExpireQuotes"

	today = today.UTC()

	var expired int
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		rows, err := s.query(ctx, tx, s.sb.Select("id", "status").From("quotes").
			Where(sq.Eq{"status": []model.QuoteStatus{model.QuoteDraft, model.QuoteSent}}).
			Where(sq.Lt{"valid_until": today.Format(dateLayout)}))
		if err != nil {
			return err
		}
		var changes []model.QuoteStatusChange
		for rows.Next() {
			c := model.QuoteStatusChange{ToStatus: model.QuoteExpired, ChangedBy: "system", ChangedAt: s.now().UTC()}
			if err := rows.Scan(&c.QuoteID, &c.FromStatus); err != nil {
				rows.Close()
				return err
			}
			changes = append(changes, c)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, c := range changes {
			if _, err := s.exec(ctx, tx, s.sb.Update("quotes").Set("status", c.ToStatus).Where(sq.Eq{"id": c.QuoteID})); err != nil {
				return err
			}
			if err := s.insertStatusChange(ctx, tx, c); err != nil {
				return err
			}
		}
		expired = len(changes)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return expired, nil
}
