package migrations

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/awkward-3312/SDSinventory/internal/logger"
	sqlmigrations "github.com/awkward-3312/SDSinventory/migrations"
)

// Up applies every pending migration embedded in the binary.
func Up(ctx context.Context, db *sql.DB) error {
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, sqlmigrations.FS)
	if err != nil {
		return fmt.Errorf("create goose provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("run goose up migrations: %w", err)
	}

	for _, r := range results {
		logger.Info(ctx, "migration applied",
			logger.Int64("version", r.Source.Version),
			logger.String("path", r.Source.Path),
			logger.Duration("took", r.Duration),
		)
	}
	return nil
}
