package tournament

import (
	"context"

	"eventhub/apperr"
	"eventhub/database"
	"eventhub/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Points awarded for a win. A loss scores nothing.
const winPoints = 2

// RecordResult credits a completed match to the standings exactly once.
func (e *Engine) RecordResult(ctx context.Context, tournamentID, matchID uint) (*models.Match, error) {
	var m models.Match
	err := database.Transact(ctx, e.db, func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND tournament_id = ?", matchID, tournamentID).First(&m).Error; err != nil {
			if database.IsNotFound(err) {
				return apperr.NotFound("match not found in this tournament")
			}
			return err
		}
		return recordResult(tx, &m)
	})
	if err != nil {
		return nil, serviceError("record result", err)
	}

	e.logger.Info("result recorded",
		zap.Uint("tournament_id", tournamentID),
		zap.Uint("match_id", m.ID),
		zap.Uint("winner_id", *m.WinnerID))
	e.events.PublishTo(Room(tournamentID), EventStandingsUpdate, map[string]any{"tournament_id": tournamentID})
	return &m, nil
}

// recordResult applies m to both standings inside tx.
func recordResult(tx *gorm.DB, m *models.Match) error {
	if m.Status != models.MatchCompleted || m.WinnerID == nil {
		return apperr.New(apperr.KindNotCompleted, "match is not completed with a winner")
	}

	claimed := tx.Model(&models.Match{}).
		Where("id = ? AND result_recorded = ?", m.ID, false).
		Update("result_recorded", true)
	if claimed.Error != nil {
		return claimed.Error
	}
	if claimed.RowsAffected == 0 {
		return apperr.AlreadyProcessed("result already recorded for this match")
	}
	m.ResultRecorded = true

	if err := bump(tx, *m.TournamentID, *m.WinnerID, map[string]any{
		"matches_played": gorm.Expr("matches_played + 1"),
		"wins":           gorm.Expr("wins + 1"),
		"points":         gorm.Expr("points + ?", winPoints),
	}); err != nil {
		return err
	}
	return bump(tx, *m.TournamentID, *m.LoserID(), map[string]any{
		"matches_played": gorm.Expr("matches_played + 1"),
		"losses":         gorm.Expr("losses + 1"),
	})
}

func bump(tx *gorm.DB, tournamentID, teamID uint, cols map[string]any) error {
	res := tx.Model(&models.Standing{}).
		Where("tournament_id = ? AND team_id = ?", tournamentID, teamID).
		Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("team has no standing in this tournament")
	}
	return nil
}

// MatchPatch is a partial live update. Nil fields are left alone.
type MatchPatch struct {
	Status      *models.MatchStatus `json:"status"`
	WinnerID    *uint               `json:"winner_id"`
	HomeRuns    *int                `json:"home_runs"`
	HomeWickets *int                `json:"home_wickets"`
	AwayRuns    *int                `json:"away_runs"`
	AwayWickets *int                `json:"away_wickets"`
}

func (p MatchPatch) validate(m *models.Match) error {
	if p.Status != nil && !p.Status.Valid() {
		return apperr.Validation("status must be UPCOMING, LIVE or COMPLETED")
	}
	if p.WinnerID != nil && !m.HasTeam(*p.WinnerID) {
		return apperr.Validation("winner must be the home or away team")
	}
	for _, v := range []*int{p.HomeRuns, p.HomeWickets, p.AwayRuns, p.AwayWickets} {
		if v != nil && *v < 0 {
			return apperr.Validation("scores cannot be negative")
		}
	}
	if m.ResultRecorded && (p.WinnerID != nil || (p.Status != nil && *p.Status != models.MatchCompleted)) {
		return apperr.AlreadyProcessed("result already recorded for this match")
	}
	return nil
}

// UpdateMatch applies live score and status changes. Completing a
// tournament match with a winner records its result in the same transaction.
func (e *Engine) UpdateMatch(ctx context.Context, matchID uint, patch MatchPatch) (*models.Match, error) {
	var (
		m        models.Match
		recorded bool
	)
	err := database.Transact(ctx, e.db, func(tx *gorm.DB) error {
		if err := tx.First(&m, matchID).Error; err != nil {
			if database.IsNotFound(err) {
				return apperr.NotFound("match not found")
			}
			return err
		}
		if err := patch.validate(&m); err != nil {
			return err
		}

		cols := map[string]any{}
		if patch.Status != nil {
			m.Status = *patch.Status
			cols["status"] = m.Status
		}
		if patch.WinnerID != nil {
			m.WinnerID = patch.WinnerID
			cols["winner_id"] = *m.WinnerID
		}
		setInt := func(col string, dst *int, v *int) {
			if v != nil {
				*dst = *v
				cols[col] = *v
			}
		}
		setInt("home_runs", &m.HomeRuns, patch.HomeRuns)
		setInt("home_wickets", &m.HomeWickets, patch.HomeWickets)
		setInt("away_runs", &m.AwayRuns, patch.AwayRuns)
		setInt("away_wickets", &m.AwayWickets, patch.AwayWickets)
		if len(cols) == 0 {
			return apperr.Validation("nothing to update")
		}
		if err := tx.Model(&models.Match{}).Where("id = ?", m.ID).Updates(cols).Error; err != nil {
			return err
		}

		if m.TournamentID != nil && m.Status == models.MatchCompleted && m.WinnerID != nil && !m.ResultRecorded {
			if err := recordResult(tx, &m); err != nil {
				return err
			}
			recorded = true
		}
		return nil
	})
	if err != nil {
		return nil, serviceError("update match", err)
	}

	e.emit(m.TournamentID, EventMatchUpdate, &m)
	if recorded {
		e.logger.Info("result recorded", zap.Uint("match_id", m.ID), zap.Uint("winner_id", *m.WinnerID))
		e.emit(m.TournamentID, EventStandingsUpdate, map[string]any{"tournament_id": *m.TournamentID})
	}
	return &m, nil
}

// Standings returns the table ranked by points then net run rate.
func (e *Engine) Standings(ctx context.Context, tournamentID uint) ([]models.Standing, error) {
	db := e.db.WithContext(ctx)
	if _, err := loadTournament(db, tournamentID); err != nil {
		return nil, err
	}
	var out []models.Standing
	if err := db.Preload("Team").Where("tournament_id = ?", tournamentID).
		Order("points DESC, net_run_rate DESC, id ASC").Find(&out).Error; err != nil {
		return nil, apperr.Internal("load standings", err)
	}
	return out, nil
}

func (e *Engine) ListMatches(ctx context.Context, tournamentID uint) ([]models.Match, error) {
	db := e.db.WithContext(ctx)
	if _, err := loadTournament(db, tournamentID); err != nil {
		return nil, err
	}
	var out []models.Match
	if err := db.Preload("HomeTeam").Preload("AwayTeam").
		Where("tournament_id = ?", tournamentID).
		Order("sequence_number ASC").Find(&out).Error; err != nil {
		return nil, apperr.Internal("list matches", err)
	}
	return out, nil
}

func (e *Engine) emit(tournamentID *uint, event string, payload any) {
	if tournamentID == nil {
		e.events.Publish(event, payload)
		return
	}
	e.events.PublishTo(Room(*tournamentID), event, payload)
}
