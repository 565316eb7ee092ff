// Package tournament runs tournaments: team entry, fixture generation and
// the standings table.
package tournament

import (
	"context"
	"fmt"
	"strings"
	"time"

	"eventhub/apperr"
	"eventhub/database"
	"eventhub/models"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Events published after a successful write.
const (
	EventMatchUpdate       = "match:update"
	EventStandingsUpdate   = "standings:update"
	EventMatchesGenerated  = "matches:generated"
	defaultIntervalMinutes = 60
)

// Broadcaster fans events out to realtime subscribers without waiting.
type Broadcaster interface {
	Publish(event string, payload any)
	PublishTo(room, event string, payload any)
}

type nopBroadcaster struct{}

func (nopBroadcaster) Publish(string, any)           {}
func (nopBroadcaster) PublishTo(string, string, any) {}

// Room is the realtime room that follows one tournament.
func Room(tournamentID uint) string {
	return fmt.Sprintf("tournament:%d", tournamentID)
}

type Engine struct {
	db     *gorm.DB
	clock  clockwork.Clock
	logger *zap.Logger
	events Broadcaster
	onGen  func(n int)
}

func NewEngine(db *gorm.DB, clock clockwork.Clock, logger *zap.Logger, events Broadcaster) *Engine {
	if events == nil {
		events = nopBroadcaster{}
	}
	return &Engine{db: db, clock: clock, logger: logger.Named("tournament"), events: events}
}

// OnGenerated registers a hook called with the number of matches each
// successful generation produced.
func (e *Engine) OnGenerated(fn func(n int)) {
	e.onGen = fn
}

type CreateInput struct {
	Name              string                `json:"name"`
	Type              models.TournamentType `json:"type"`
	MatchFormat       models.MatchFormat    `json:"match_format"`
	Venue             string                `json:"venue"`
	StartDate         time.Time             `json:"start_date"`
	EndDate           time.Time             `json:"end_date"`
	NumberOfTeams     int                   `json:"number_of_teams"`
	MinPlayersPerTeam int                   `json:"min_players_per_team"`
	MaxPlayersPerTeam int                   `json:"max_players_per_team"`
}

func (in *CreateInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return apperr.Validation("name is required")
	}
	if !in.Type.Valid() {
		return apperr.Validation("type must be KNOCKOUT, ROUND_ROBIN or LEAGUE")
	}
	switch in.MatchFormat {
	case "":
		in.MatchFormat = models.FormatT20
	case models.FormatT10, models.FormatT15, models.FormatT20:
	default:
		return apperr.Validation("match_format must be T10, T15 or T20")
	}
	if in.NumberOfTeams < 2 {
		return apperr.Validation("number_of_teams must be at least 2")
	}
	if !in.EndDate.IsZero() && in.EndDate.Before(in.StartDate) {
		return apperr.Validation("end_date is before start_date")
	}
	if in.MaxPlayersPerTeam > 0 && in.MinPlayersPerTeam > in.MaxPlayersPerTeam {
		return apperr.Validation("min_players_per_team exceeds max_players_per_team")
	}
	return nil
}

func (e *Engine) Create(ctx context.Context, in CreateInput) (*models.Tournament, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	t := &models.Tournament{
		Name:              in.Name,
		Type:              in.Type,
		MatchFormat:       in.MatchFormat,
		Venue:             strings.TrimSpace(in.Venue),
		StartDate:         in.StartDate,
		EndDate:           in.EndDate,
		NumberOfTeams:     in.NumberOfTeams,
		MinPlayersPerTeam: in.MinPlayersPerTeam,
		MaxPlayersPerTeam: in.MaxPlayersPerTeam,
		Status:            models.TournamentUpcoming,
	}
	if err := e.db.WithContext(ctx).Create(t).Error; err != nil {
		return nil, apperr.Internal("create tournament", err)
	}
	e.logger.Info("tournament created", zap.Uint("tournament_id", t.ID), zap.String("type", string(t.Type)))
	return t, nil
}

func (e *Engine) Get(ctx context.Context, id uint) (*models.Tournament, error) {
	return loadTournament(e.db.WithContext(ctx), id)
}

func (e *Engine) List(ctx context.Context) ([]models.Tournament, error) {
	var out []models.Tournament
	if err := e.db.WithContext(ctx).Order("start_date ASC, id ASC").Find(&out).Error; err != nil {
		return nil, apperr.Internal("list tournaments", err)
	}
	return out, nil
}

// Delete removes a tournament with its standings. Its matches stay as
// friendlies with no tournament.
func (e *Engine) Delete(ctx context.Context, id uint) error {
	err := database.Transact(ctx, e.db, func(tx *gorm.DB) error {
		if _, err := loadTournament(tx, id); err != nil {
			return err
		}
		if err := tx.Where("tournament_id = ?", id).Delete(&models.Standing{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Match{}).Where("tournament_id = ?", id).
			Update("tournament_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Tournament{}, id).Error
	})
	if err != nil {
		return serviceError("delete tournament", err)
	}
	e.logger.Info("tournament deleted", zap.Uint("tournament_id", id))
	return nil
}

func (e *Engine) CreateTeam(ctx context.Context, name, shortName string) (*models.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("team name is required")
	}
	team := &models.Team{Name: name, ShortName: strings.ToUpper(strings.TrimSpace(shortName))}
	if err := e.db.WithContext(ctx).Create(team).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperr.Duplicate("a team with this name already exists")
		}
		return nil, apperr.Internal("create team", err)
	}
	return team, nil
}

func (e *Engine) ListTeams(ctx context.Context) ([]models.Team, error) {
	var out []models.Team
	if err := e.db.WithContext(ctx).Order("name ASC").Find(&out).Error; err != nil {
		return nil, apperr.Internal("list teams", err)
	}
	return out, nil
}

// AddTeam enters a team with a zeroed standing.
func (e *Engine) AddTeam(ctx context.Context, tournamentID, teamID uint) (*models.Standing, error) {
	var st models.Standing
	err := database.Transact(ctx, e.db, func(tx *gorm.DB) error {
		t, err := loadTournament(tx, tournamentID)
		if err != nil {
			return err
		}
		var team models.Team
		if err := tx.First(&team, teamID).Error; err != nil {
			if database.IsNotFound(err) {
				return apperr.NotFound("team not found")
			}
			return err
		}

		var entered int64
		if err := tx.Model(&models.Standing{}).Where("tournament_id = ?", t.ID).Count(&entered).Error; err != nil {
			return err
		}
		if entered >= int64(t.NumberOfTeams) {
			return apperr.New(apperr.KindFull, "tournament is full")
		}

		var existing int64
		if err := tx.Model(&models.Standing{}).
			Where("tournament_id = ? AND team_id = ?", t.ID, teamID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return apperr.Duplicate("team is already in this tournament")
		}

		st = models.Standing{TournamentID: t.ID, TeamID: teamID, Team: &team}
		if err := tx.Omit("Team").Create(&st).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return apperr.Duplicate("team is already in this tournament")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, serviceError("add team", err)
	}

	e.events.PublishTo(Room(tournamentID), EventStandingsUpdate, map[string]any{"tournament_id": tournamentID})
	return &st, nil
}

func loadTournament(db *gorm.DB, id uint) (*models.Tournament, error) {
	var t models.Tournament
	if err := db.First(&t, id).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, apperr.NotFound("tournament not found")
		}
		return nil, apperr.Internal("load tournament", err)
	}
	return &t, nil
}

func serviceError(op string, err error) error {
	if apperr.KindOf(err) != apperr.KindInternal {
		return err
	}
	return apperr.Internal(op, err)
}
