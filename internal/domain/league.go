// internal/domain/league.go
package domain

// Keys of a league record in the TheSportsDB "all leagues" document.
const (
	LeaguesField    = "leagues"
	LeagueIDField   = "idLeague"
	LeagueNameField = "strLeague"
	SportField      = "strSport"
)

// SportsDataRow is the relational projection of one league in sports_data.
// Nil fields are stored as NULL.
type SportsDataRow struct {
	LeagueID   *string `json:"league_id" db:"league_id"`
	LeagueName *string `json:"league_name" db:"league_name"`
	Sport      *string `json:"sport" db:"sport"`
}
