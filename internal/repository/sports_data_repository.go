package repository

import (
	"context"
	"fmt"
	"regexp"

	"github.com/andresuchdata/sports-etl/internal/domain"
	"github.com/andresuchdata/sports-etl/internal/repository/postgres"
	"github.com/jmoiron/sqlx"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// SportsDataRepository writes league rows into the sports_data table.
type SportsDataRepository struct {
	db    *postgres.DB
	table string
}

// NewSportsDataRepository returns a repository writing into table. The table
// must already exist; this code never creates or migrates it.
func NewSportsDataRepository(db *postgres.DB, table string) (*SportsDataRepository, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &SportsDataRepository{db: db, table: table}, nil
}

// InsertRows inserts rows in order inside one transaction. Either every row
// becomes visible or, on the first failure, none does.
func (r *SportsDataRepository) InsertRows(ctx context.Context, rows []domain.SportsDataRow) (int, error) {
	inserted := 0
	query := fmt.Sprintf(`INSERT INTO %s (league_id, league_name, sport) VALUES (?, ?, ?)`, r.table)

	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx, tx.Rebind(query))
		if err != nil {
			return fmt.Errorf("failed to prepare insert into %s: %w", r.table, err)
		}
		defer stmt.Close()

		for i, row := range rows {
			if _, err := stmt.ExecContext(ctx, row.LeagueID, row.LeagueName, row.Sport); err != nil {
				return fmt.Errorf("failed to insert league #%d (%s): %w", i, deref(row.LeagueID), err)
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return inserted, nil
}

// Close releases the underlying connection pool.
func (r *SportsDataRepository) Close() error {
	return r.db.Close()
}

func deref(s *string) string {
	if s == nil {
		return "<null>"
	}
	return *s
}
