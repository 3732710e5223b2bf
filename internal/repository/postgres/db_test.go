package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	raw, err := sqlx.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// :memory: databases are per connection
	raw.SetMaxOpenConns(1)
	t.Cleanup(func() { raw.Close() })

	if _, err := raw.Exec(`CREATE TABLE items (name TEXT)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	return Wrap(raw)
}

func countItems(t *testing.T, db *DB) int {
	t.Helper()
	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM items`); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestWithTxCommits(t *testing.T) {
	db := openTestDB(t)

	err := db.WithTx(context.Background(), func(tx *sqlx.Tx) error {
		_, err := tx.Exec(tx.Rebind(`INSERT INTO items (name) VALUES (?)`), "a")
		return err
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}

	if n := countItems(t, db); n != 1 {
		t.Errorf("expected 1 row, got %d", n)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	boom := errors.New("boom")

	err := db.WithTx(context.Background(), func(tx *sqlx.Tx) error {
		if _, err := tx.Exec(tx.Rebind(`INSERT INTO items (name) VALUES (?)`), "a"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if n := countItems(t, db); n != 0 {
		t.Errorf("expected rollback to leave 0 rows, got %d", n)
	}
}

func TestWithTxCancelledContext(t *testing.T) {
	db := openTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := db.WithTx(ctx, func(tx *sqlx.Tx) error {
		called = true
		return nil
	})
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if called {
		t.Error("fn must not run when the transaction cannot start")
	}
}
