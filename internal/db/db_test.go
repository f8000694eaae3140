package db

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	assert.Equal(t,
		"file:./dev.db?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		dsn("./dev.db"))
	assert.Equal(t,
		"file:x.db?mode=ro&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		dsn("file:x.db?mode=ro"))
}

func TestOpen_ForeignKeysOnEveryConnection(t *testing.T) {
	ctx := context.Background()
	conn, err := Open(ctx, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	conn.SetMaxOpenConns(4)
	for i := 0; i < 4; i++ {
		c, err := conn.Conn(ctx)
		require.NoError(t, err)
		defer c.Close()

		var on int
		require.NoError(t, c.QueryRowContext(ctx, `PRAGMA foreign_keys`).Scan(&on))
		assert.Equal(t, 1, on)
	}
}

func TestWithTx(t *testing.T) {
	ctx := context.Background()
	conn, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	_, err = conn.Exec(`CREATE TABLE t (v INTEGER)`)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = WithTx(ctx, conn, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO t (v) VALUES (1)`); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, WithTx(ctx, conn, func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO t (v) VALUES (2)`)
		return err
	}))

	var count int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM t`).Scan(&count))
	assert.Equal(t, 1, count)
}
