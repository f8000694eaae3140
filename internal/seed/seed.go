package seed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/awkward-3312/SDSinventory/internal/db"
)

// defaultUnits are the base units supplies are measured in.
var defaultUnits = []struct{ Code, Name string }{
	{"unidad", "Unidad"},
	{"pieza", "Pieza"},
	{"hoja", "Hoja"},
	{"m", "Metro"},
	{"m2", "Metro cuadrado"},
	{"ml", "Mililitro"},
	{"l", "Litro"},
	{"g", "Gramo"},
	{"kg", "Kilogramo"},
}

// Config contains the values required by startup seed.
type Config struct {
	AdminEmail    string
	AdminPassword string
}

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
	Updates int
}

// Run executes the startup seed in an idempotent way.
func Run(ctx context.Context, conn *sql.DB, cfg Config) (Stats, error) {
	stats := Stats{}
	err := db.WithTx(ctx, conn, func(tx *sql.Tx) error {
		if err := seedAdmin(ctx, tx, cfg.AdminEmail, cfg.AdminPassword, &stats); err != nil {
			return err
		}
		return ensureUnits(ctx, tx, &stats)
	})
	if err != nil {
		return Stats{}, fmt.Errorf("seed: %w", err)
	}
	return stats, nil
}

func seedAdmin(ctx context.Context, tx *sql.Tx, email, password string, stats *Stats) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil
	}

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = ? LIMIT 1)`, email).Scan(&exists); err != nil {
		return fmt.Errorf("check admin user existence: %w", err)
	}
	if exists {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO users (email, password_hash) VALUES (?, ?)`, email, string(hash)); err != nil {
		return fmt.Errorf("insert admin user: %w", err)
	}
	stats.Inserts++
	return nil
}

func ensureUnits(ctx context.Context, tx *sql.Tx, stats *Stats) error {
	for _, u := range defaultUnits {
		var name string
		err := tx.QueryRowContext(ctx, `SELECT name FROM units WHERE code = ?`, u.Code).Scan(&name)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if _, err := tx.ExecContext(ctx, `INSERT INTO units (code, name) VALUES (?, ?)`, u.Code, u.Name); err != nil {
				return fmt.Errorf("insert unit %s: %w", u.Code, err)
			}
			stats.Inserts++
		case err != nil:
			return fmt.Errorf("check unit %s: %w", u.Code, err)
		case name != u.Name:
			if _, err := tx.ExecContext(ctx, `UPDATE units SET name = ? WHERE code = ?`, u.Name, u.Code); err != nil {
				return fmt.Errorf("update unit %s: %w", u.Code, err)
			}
			stats.Updates++
		}
	}
	return nil
}
