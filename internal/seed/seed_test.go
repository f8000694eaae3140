package seed

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/awkward-3312/SDSinventory/internal/db"
	"github.com/awkward-3312/SDSinventory/internal/migrations"
)

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dbPath := filepath.Join(t.TempDir(), "seed-test.db")
	database, err := db.Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	defer database.Close()

	if err := migrations.Up(ctx, database); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	cfg := Config{
		AdminEmail:    " Admin@SDS.hn ",
		AdminPassword: "12345",
	}

	for i := 0; i < 10; i++ {
		stats, err := Run(ctx, database, cfg)
		if err != nil {
			t.Fatalf("run seed (iteration=%d): %v", i, err)
		}
		if i == 0 {
			if want := 1 + len(defaultUnits); stats.Inserts != want {
				t.Fatalf("expected %d inserts in first run, got %d", want, stats.Inserts)
			}
			continue
		}
		if stats.Inserts != 0 || stats.Updates != 0 {
			t.Fatalf("expected no changes in iteration %d, got %+v", i, stats)
		}
	}

	assertCount(t, database, `SELECT COUNT(*) FROM users WHERE email = ?`, "admin@sds.hn", 1)
	assertCount(t, database, `SELECT COUNT(*) FROM units`, nil, len(defaultUnits))

	var hash string
	if err := database.QueryRow(`SELECT password_hash FROM users WHERE email = ?`, "admin@sds.hn").Scan(&hash); err != nil {
		t.Fatalf("query admin hash: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("12345")); err != nil {
		t.Fatalf("expected admin hash to match password: %v", err)
	}
}

func TestRunRestoresRenamedUnit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	database, err := db.Open(ctx, filepath.Join(t.TempDir(), "seed-rename.db"))
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	defer database.Close()
	if err := migrations.Up(ctx, database); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	if _, err := database.Exec(`INSERT INTO units (code, name) VALUES ('m2', 'metro2')`); err != nil {
		t.Fatalf("insert unit: %v", err)
	}

	stats, err := Run(ctx, database, Config{})
	if err != nil {
		t.Fatalf("run seed: %v", err)
	}
	if stats.Updates != 1 || stats.Inserts != len(defaultUnits)-1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	assertCount(t, database, `SELECT COUNT(*) FROM users`, nil, 0)
}

func assertCount(t *testing.T, database *sql.DB, query string, args any, expected int) {
	t.Helper()

	var count int
	var err error
	switch v := args.(type) {
	case nil:
		err = database.QueryRow(query).Scan(&count)
	case []any:
		err = database.QueryRow(query, v...).Scan(&count)
	default:
		err = database.QueryRow(query, v).Scan(&count)
	}
	if err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != expected {
		t.Fatalf("expected count %d, got %d", expected, count)
	}
}
