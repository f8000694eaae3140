// Package store persists supplies, recipes, fixed costs and quotes in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/patrickmn/go-cache"

	"github.com/awkward-3312/SDSinventory/internal/db"
	"github.com/awkward-3312/SDSinventory/internal/model"
)

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db *sql.DB
	sb sq.StatementBuilderType
	// Recipe configs by recipe ID. Entries are dropped on every write touching the recipe.
	recipes *cache.Cache
	// Bumped on every recipe write; a load only fills the cache if no write happened meanwhile.
	mu             sync.Mutex
	recipeVersions map[string]uint64
	now            func() time.Time
}

// New returns a Store; recipeTTL <= 0 disables expiry of cached recipe configs.
func New(conn *sql.DB, recipeTTL time.Duration) *Store {
	expiry, cleanup := recipeTTL, 2*recipeTTL
	if recipeTTL <= 0 {
		expiry, cleanup = cache.NoExpiration, 0
	}
	return &Store{
		db:             conn,
		sb:             sq.StatementBuilder.PlaceholderFormat(sq.Question),
		recipes:        cache.New(expiry, cleanup),
		recipeVersions: make(map[string]uint64),
		now:            time.Now,
	}
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return db.WithTx(ctx, s.db, fn)
}

func (s *Store) exec(ctx context.Context, q queryer, b sq.Sqlizer) (sql.Result, error) {
	sqlStr, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	res, err := q.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, classify(err)
	}
	return res, nil
}

func (s *Store) queryRow(ctx context.Context, q queryer, b sq.Sqlizer) (*sql.Row, error) {
	sqlStr, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	return q.QueryRowContext(ctx, sqlStr, args...), nil
}

func (s *Store) query(ctx context.Context, q queryer, b sq.Sqlizer) (*sql.Rows, error) {
	sqlStr, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	return q.QueryContext(ctx, sqlStr, args...)
}

// classify maps SQLite constraint failures onto the model sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrNotFound
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return fmt.Errorf("%w: %s", model.ErrConflict, msg)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"),
		strings.Contains(msg, "CHECK constraint failed"),
		strings.Contains(msg, "NOT NULL constraint failed"):
		return fmt.Errorf("%w: %s", model.ErrValidation, msg)
	}
	return err
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// sqliteTime scans DATETIME/DATE columns whether the driver hands back time.Time or text.
type sqliteTime struct{ t *time.Time }

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (st sqliteTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*st.t = time.Time{}
		return nil
	case time.Time:
		*st.t = v
		return nil
	case []byte:
		return st.parse(string(v))
	case string:
		return st.parse(v)
	}
	return fmt.Errorf("unsupported time value %T", src)
}

func (st sqliteTime) parse(v string) error {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			*st.t = t
			return nil
		}
	}
	return fmt.Errorf("unrecognized time %q", v)
}

func nullString(v string) sql.NullString {
	v = strings.TrimSpace(v)
	return sql.NullString{String: v, Valid: v != ""}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
