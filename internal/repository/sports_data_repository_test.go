package repository

import (
	"context"
	"testing"

	"github.com/andresuchdata/sports-etl/internal/domain"
	"github.com/andresuchdata/sports-etl/internal/repository/postgres"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const createSportsData = `CREATE TABLE sports_data (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	league_id TEXT NOT NULL,
	league_name TEXT,
	sport TEXT
)`

func newTestRepository(t *testing.T) (*SportsDataRepository, *sqlx.DB) {
	t.Helper()

	raw, err := sqlx.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	raw.SetMaxOpenConns(1)
	t.Cleanup(func() { raw.Close() })

	if _, err := raw.Exec(createSportsData); err != nil {
		t.Fatalf("create table: %v", err)
	}

	repo, err := NewSportsDataRepository(postgres.Wrap(raw), "sports_data")
	if err != nil {
		t.Fatalf("NewSportsDataRepository: %v", err)
	}
	return repo, raw
}

func str(s string) *string { return &s }

func TestInsertRowsPreservesOrder(t *testing.T) {
	repo, raw := newTestRepository(t)

	rows := []domain.SportsDataRow{
		{LeagueID: str("4328"), LeagueName: str("English Premier League"), Sport: str("Soccer")},
		{LeagueID: str("4391"), LeagueName: str("NFL"), Sport: str("American Football")},
		{LeagueID: str("4387"), LeagueName: str("NBA"), Sport: nil},
	}

	n, err := repo.InsertRows(context.Background(), rows)
	if err != nil {
		t.Fatalf("InsertRows: %v", err)
	}
	if n != len(rows) {
		t.Fatalf("expected %d inserted, got %d", len(rows), n)
	}

	var got []domain.SportsDataRow
	if err := raw.Select(&got, `SELECT league_id, league_name, sport FROM sports_data ORDER BY id`); err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(got) != len(rows) {
		t.Fatalf("expected %d rows, got %d", len(rows), len(got))
	}
	for i := range rows {
		if *got[i].LeagueID != *rows[i].LeagueID || *got[i].LeagueName != *rows[i].LeagueName {
			t.Errorf("row %d: expected %s/%s, got %s/%s", i,
				*rows[i].LeagueID, *rows[i].LeagueName, *got[i].LeagueID, *got[i].LeagueName)
		}
	}
	if got[2].Sport != nil {
		t.Errorf("expected NULL sport for row 2, got %q", *got[2].Sport)
	}
}

func TestInsertRowsRollsBackOnFailure(t *testing.T) {
	repo, raw := newTestRepository(t)

	rows := []domain.SportsDataRow{
		{LeagueID: str("1"), LeagueName: str("A"), Sport: str("Soccer")},
		{LeagueID: nil, LeagueName: str("B"), Sport: str("Soccer")}, // violates NOT NULL
		{LeagueID: str("3"), LeagueName: str("C"), Sport: str("Soccer")},
	}

	n, err := repo.InsertRows(context.Background(), rows)
	if err == nil {
		t.Fatal("expected constraint error")
	}
	if n != 0 {
		t.Errorf("expected 0 reported rows on failure, got %d", n)
	}

	var count int
	if err := raw.Get(&count, `SELECT COUNT(*) FROM sports_data`); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("expected no visible rows after rollback, got %d", count)
	}
}

func TestInsertRowsEmpty(t *testing.T) {
	repo, _ := newTestRepository(t)

	n, err := repo.InsertRows(context.Background(), nil)
	if err != nil {
		t.Fatalf("InsertRows: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0, got %d", n)
	}
}

func TestNewSportsDataRepositoryRejectsBadTable(t *testing.T) {
	for _, name := range []string{"", "sports data", "x;DROP TABLE y", "1abc"} {
		if _, err := NewSportsDataRepository(nil, name); err == nil {
			t.Errorf("expected error for table %q", name)
		}
	}
	if _, err := NewSportsDataRepository(nil, "public.sports_data"); err != nil {
		t.Errorf("expected schema-qualified name to be accepted: %v", err)
	}
}
