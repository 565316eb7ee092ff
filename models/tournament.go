package models

import (
	"time"
)

type TournamentType string

const (
	TypeKnockout   TournamentType = "KNOCKOUT"
	TypeRoundRobin TournamentType = "ROUND_ROBIN"
	TypeLeague     TournamentType = "LEAGUE"
)

func (t TournamentType) Valid() bool {
	switch t {
	case TypeKnockout, TypeRoundRobin, TypeLeague:
		return true
	}
	return false
}

// MatchFormat is the limited-overs code of a tournament, e.g. T20.
type MatchFormat string

const (
	FormatT10 MatchFormat = "T10"
	FormatT15 MatchFormat = "T15"
	FormatT20 MatchFormat = "T20"
)

// Overs returns the overs per innings for the format, 20 when unknown.
func (f MatchFormat) Overs() int {
	switch f {
	case FormatT10:
		return 10
	case FormatT15:
		return 15
	default:
		return 20
	}
}

type TournamentStatus string

const (
	TournamentUpcoming  TournamentStatus = "UPCOMING"
	TournamentActive    TournamentStatus = "ACTIVE"
	TournamentCompleted TournamentStatus = "COMPLETED"
)

type Tournament struct {
	ID                uint             `gorm:"primaryKey" json:"id"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
	Name              string           `gorm:"not null;size:200" json:"name"`
	Type              TournamentType   `gorm:"not null;size:20" json:"type"`
	MatchFormat       MatchFormat      `gorm:"not null;size:10;default:T20" json:"match_format"`
	Venue             string           `gorm:"size:200" json:"venue,omitempty"`
	StartDate         time.Time        `json:"start_date"`
	EndDate           time.Time        `json:"end_date"`
	NumberOfTeams     int              `gorm:"not null" json:"number_of_teams"`
	MinPlayersPerTeam int              `json:"min_players_per_team"`
	MaxPlayersPerTeam int              `json:"max_players_per_team"`
	Status            TournamentStatus `gorm:"not null;size:20;default:UPCOMING" json:"status"`
	Standings         []Standing       `gorm:"foreignKey:TournamentID;constraint:OnDelete:CASCADE" json:"standings,omitempty"`
}

type Standing struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	TournamentID  uint      `gorm:"not null;uniqueIndex:idx_standing_tournament_team" json:"tournament_id"`
	TeamID        uint      `gorm:"not null;uniqueIndex:idx_standing_tournament_team" json:"team_id"`
	Team          *Team     `gorm:"foreignKey:TeamID" json:"team,omitempty"`
	MatchesPlayed int       `gorm:"not null;default:0" json:"matches_played"`
	Wins          int       `gorm:"not null;default:0" json:"wins"`
	Losses        int       `gorm:"not null;default:0" json:"losses"`
	Points        int       `gorm:"not null;default:0" json:"points"`
	NetRunRate    float64   `gorm:"not null;default:0" json:"net_run_rate"`
}

type MatchStatus string

const (
	MatchUpcoming  MatchStatus = "UPCOMING"
	MatchLive      MatchStatus = "LIVE"
	MatchCompleted MatchStatus = "COMPLETED"
)

func (s MatchStatus) Valid() bool {
	switch s {
	case MatchUpcoming, MatchLive, MatchCompleted:
		return true
	}
	return false
}

type Match struct {
	ID             uint        `gorm:"primaryKey" json:"id"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	SequenceNumber int         `gorm:"uniqueIndex;not null" json:"sequence_number"`
	TournamentID   *uint       `gorm:"index" json:"tournament_id,omitempty"`
	HomeTeamID     uint        `gorm:"not null;index" json:"home_team_id"`
	HomeTeam       *Team       `gorm:"foreignKey:HomeTeamID" json:"home_team,omitempty"`
	AwayTeamID     uint        `gorm:"not null;index" json:"away_team_id"`
	AwayTeam       *Team       `gorm:"foreignKey:AwayTeamID" json:"away_team,omitempty"`
	Venue          string      `gorm:"size:200" json:"venue,omitempty"`
	ScheduledAt    time.Time   `json:"scheduled_at"`
	Status         MatchStatus `gorm:"not null;size:20;default:UPCOMING;index" json:"status"`
	WinnerID       *uint       `json:"winner_id,omitempty"`
	Round          string      `gorm:"size:50" json:"round,omitempty"`
	Overs          int         `json:"overs"`
	HomeRuns       int         `json:"home_runs"`
	HomeWickets    int         `json:"home_wickets"`
	AwayRuns       int         `json:"away_runs"`
	AwayWickets    int         `json:"away_wickets"`
	ResultRecorded bool        `gorm:"not null;default:false" json:"result_recorded"`
}

// LoserID returns whichever side is not the winner, or nil if no winner is set.
func (m *Match) LoserID() *uint {
	if m.WinnerID == nil {
		return nil
	}
	if *m.WinnerID == m.HomeTeamID {
		return &m.AwayTeamID
	}
	return &m.HomeTeamID
}

func (m *Match) HasTeam(teamID uint) bool {
	return m.HomeTeamID == teamID || m.AwayTeamID == teamID
}
