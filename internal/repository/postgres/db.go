package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/sports-etl/internal/config"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

type DB struct {
	*sqlx.DB
	sem *semaphore.Weighted
}

// NewDB opens and pings a connection pool using cfg.Driver ("postgres" for
// lib/pq, "pgx" for the pgx stdlib driver).
func NewDB(ctx context.Context, cfg *config.DatabaseConfig) (*DB, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = config.DefaultDBDriver
	}

	db, err := sqlx.ConnectContext(ctx, driver, cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("could not connect to %s database %s@%s:%s: %w",
			driver, cfg.DBName, cfg.Host, cfg.Port, err)
	}

	// A single batch job never needs more than a handful of connections.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	return Wrap(db), nil
}

// Wrap adapts an already opened sqlx handle.
func Wrap(db *sqlx.DB) *DB {
	return &DB{
		DB:  db,
		sem: semaphore.NewWeighted(4),
	}
}

// WithTx executes a function within a transaction. The transaction is rolled
// back when fn returns an error and committed otherwise.
func (db *DB) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	// Acquire semaphore
	if err := db.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("could not acquire semaphore: %w", err)
	}
	defer db.sem.Release(1)

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error().Err(rbErr).Msg("could not rollback transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	return nil
}
