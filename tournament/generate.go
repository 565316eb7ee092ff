package tournament

import (
	"context"
	"strings"
	"time"

	"eventhub/apperr"
	"eventhub/database"
	"eventhub/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type GenerateInput struct {
	Venue           string     `json:"venue"`
	StartTime       *time.Time `json:"start_time"`
	IntervalMinutes int        `json:"interval_minutes"`
}

// Generated is the fixture list produced by one generation. Dropped is set
// when a knockout draw had an odd team out; no bye is created for it.
type Generated struct {
	Matches []models.Match `json:"matches"`
	Dropped *models.Team   `json:"dropped,omitempty"`
}

// GenerateMatches builds the fixtures for every entered team in entry order
// and marks the tournament active.
func (e *Engine) GenerateMatches(ctx context.Context, tournamentID uint, in GenerateInput) (*Generated, error) {
	interval := in.IntervalMinutes
	if interval <= 0 {
		interval = defaultIntervalMinutes
	}

	var out Generated
	err := database.Transact(ctx, e.db, func(tx *gorm.DB) error {
		t, err := loadTournament(tx, tournamentID)
		if err != nil {
			return err
		}

		var standings []models.Standing
		if err := tx.Preload("Team").Where("tournament_id = ?", t.ID).
			Order("id ASC").Find(&standings).Error; err != nil {
			return err
		}
		if len(standings) < 2 {
			return apperr.New(apperr.KindInsufficientTeams, "at least 2 teams are required to generate matches")
		}

		var (
			pairs []pairing
			round string
		)
		if t.Type == models.TypeKnockout {
			var dropped int
			pairs, dropped = knockout(len(standings))
			if dropped >= 0 {
				out.Dropped = standings[dropped].Team
			}
			round = roundLabel(len(standings))
		} else {
			pairs = roundRobin(len(standings))
		}

		var maxSeq int
		if err := tx.Model(&models.Match{}).Select("COALESCE(MAX(sequence_number), 0)").Scan(&maxSeq).Error; err != nil {
			return err
		}

		start := t.StartDate
		if in.StartTime != nil && !in.StartTime.IsZero() {
			start = *in.StartTime
		}
		venue := strings.TrimSpace(in.Venue)
		if venue == "" {
			venue = t.Venue
		}

		tid := t.ID
		out.Matches = make([]models.Match, 0, len(pairs))
		for i, p := range pairs {
			out.Matches = append(out.Matches, models.Match{
				SequenceNumber: maxSeq + i + 1,
				TournamentID:   &tid,
				HomeTeamID:     standings[p.home].TeamID,
				AwayTeamID:     standings[p.away].TeamID,
				Venue:          venue,
				ScheduledAt:    start.Add(time.Duration(i*interval) * time.Minute),
				Status:         models.MatchUpcoming,
				Round:          round,
				Overs:          t.MatchFormat.Overs(),
			})
		}
		if err := tx.Create(&out.Matches).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return apperr.Wrap(apperr.KindInternal, "concurrent match generation, please retry", err)
			}
			return err
		}

		return tx.Model(&models.Tournament{}).Where("id = ?", t.ID).
			Update("status", models.TournamentActive).Error
	})
	if err != nil {
		return nil, serviceError("generate matches", err)
	}

	if out.Dropped != nil {
		e.logger.Warn("knockout draw has an odd team out, no bye created",
			zap.Uint("tournament_id", tournamentID),
			zap.Uint("team_id", out.Dropped.ID),
			zap.String("team", out.Dropped.Name))
	}
	e.logger.Info("matches generated",
		zap.Uint("tournament_id", tournamentID),
		zap.Int("count", len(out.Matches)))
	if e.onGen != nil {
		e.onGen(len(out.Matches))
	}
	e.events.PublishTo(Room(tournamentID), EventMatchesGenerated, map[string]any{
		"tournament_id": tournamentID,
		"count":         len(out.Matches),
	})
	return &out, nil
}
