package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(Config{Path: filepath.Join(t.TempDir(), "nested", "archive.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpen_EnablesForeignKeys(t *testing.T) {
	db := openTestDB(t)

	var fk int
	require.NoError(t, db.QueryRow(`PRAGMA foreign_keys`).Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestMigrate_IsIdempotent(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db))

	for _, table := range []string{"users", "books", "reviews"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, table)
	}
}

func insertUser(t *testing.T, db *sql.DB, id, username, email string) error {
	t.Helper()
	now := time.Now().UTC()
	_, err := db.Exec(`
		INSERT INTO users (id, username, email, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, 'x', ?, ?)
	`, id, username, email, now, now)
	return err
}

func TestIsUniqueViolation(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Migrate(db))

	require.NoError(t, insertUser(t, db, "u1", "alice", "a@x.com"))

	err := insertUser(t, db, "u2", "bob", "A@X.COM")
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err), "email is unique without regard to case")

	err = insertUser(t, db, "u1", "carol", "c@x.com")
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))

	assert.False(t, IsUniqueViolation(errors.New("other")))
	assert.False(t, IsUniqueViolation(nil))
}

func TestRatingCheckConstraint(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Migrate(db))
	require.NoError(t, insertUser(t, db, "u1", "alice", "a@x.com"))

	now := time.Now().UTC()
	_, err := db.Exec(`
		INSERT INTO books (id, title, author, description, publication_year, created_at, updated_at)
		VALUES ('b1', 'Dune', 'Herbert', '...', 1965, ?, ?)
	`, now, now)
	require.NoError(t, err)

	_, err = db.Exec(`
		INSERT INTO reviews (id, book_id, user_id, rating, headline, body, created_at, updated_at)
		VALUES ('r1', 'b1', 'u1', 6, 'h', 't', ?, ?)
	`, now, now)
	assert.Error(t, err)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Migrate(db))
	ctx := context.Background()

	boom := errors.New("boom")
	err := WithTx(ctx, db, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, username, email, password_hash, created_at, updated_at)
			VALUES ('u1', 'alice', 'a@x.com', 'x', ?, ?)
		`, now, now); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n))
	assert.Zero(t, n)
}

func TestDSN(t *testing.T) {
	dsn := DSN(Config{Path: "/tmp/a.db"})
	assert.Contains(t, dsn, "file:/tmp/a.db?")
	assert.Contains(t, dsn, "_txlock=immediate")
	assert.Contains(t, dsn, "_foreign_keys=on")
	assert.Contains(t, dsn, "_busy_timeout=5000")
}
