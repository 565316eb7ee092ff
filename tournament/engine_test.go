package tournament

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"eventhub/apperr"
	"eventhub/database"
	"eventhub/models"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var kickoff = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type published struct {
	room, event string
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []published
}

func (r *recordingBroadcaster) Publish(event string, _ any) {
	r.PublishTo("", event, nil)
}

func (r *recordingBroadcaster) PublishTo(room, event string, _ any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{room: room, event: event})
}

func (r *recordingBroadcaster) has(room, event string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.events {
		if p.room == room && p.event == event {
			return true
		}
	}
	return false
}

func newTestEngine(t *testing.T) (*Engine, *gorm.DB, *recordingBroadcaster) {
	t.Helper()
	db, err := database.OpenInMemory(uuid.NewString())
	require.NoError(t, err)
	events := &recordingBroadcaster{}
	clock := clockwork.NewFakeClockAt(kickoff)
	return NewEngine(db, clock, zap.NewNop(), events), db, events
}

func newTournament(t *testing.T, e *Engine, typ models.TournamentType, teams int) *models.Tournament {
	t.Helper()
	tr, err := e.Create(context.Background(), CreateInput{
		Name:          "Spring Cup",
		Type:          typ,
		MatchFormat:   models.FormatT10,
		Venue:         "Main Ground",
		StartDate:     kickoff,
		NumberOfTeams: teams,
	})
	require.NoError(t, err)
	return tr
}

func enterTeams(t *testing.T, e *Engine, tournamentID uint, names ...string) []*models.Team {
	t.Helper()
	ctx := context.Background()
	out := make([]*models.Team, 0, len(names))
	for _, n := range names {
		team, err := e.CreateTeam(ctx, n, "")
		require.NoError(t, err)
		_, err = e.AddTeam(ctx, tournamentID, team.ID)
		require.NoError(t, err)
		out = append(out, team)
	}
	return out
}

func standingOf(t *testing.T, db *gorm.DB, tournamentID, teamID uint) models.Standing {
	t.Helper()
	var st models.Standing
	require.NoError(t, db.Where("tournament_id = ? AND team_id = ?", tournamentID, teamID).First(&st).Error)
	return st
}

func TestCreate_Validation(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Create(ctx, CreateInput{Name: "", Type: models.TypeKnockout, NumberOfTeams: 4})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = e.Create(ctx, CreateInput{Name: "Cup", Type: "SWISS", NumberOfTeams: 4})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = e.Create(ctx, CreateInput{Name: "Cup", Type: models.TypeKnockout, MatchFormat: "T50", NumberOfTeams: 4})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = e.Create(ctx, CreateInput{Name: "Cup", Type: models.TypeKnockout, NumberOfTeams: 1})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	tr, err := e.Create(ctx, CreateInput{Name: " Cup ", Type: models.TypeLeague, NumberOfTeams: 4})
	require.NoError(t, err)
	assert.Equal(t, "Cup", tr.Name)
	assert.Equal(t, models.FormatT20, tr.MatchFormat)
	assert.Equal(t, models.TournamentUpcoming, tr.Status)
}

func TestAddTeam_FullAndDuplicate(t *testing.T) {
	e, db, events := newTestEngine(t)
	ctx := context.Background()
	tr := newTournament(t, e, models.TypeRoundRobin, 3)
	teams := enterTeams(t, e, tr.ID, "A", "B", "C")

	st := standingOf(t, db, tr.ID, teams[0].ID)
	assert.Zero(t, st.MatchesPlayed)
	assert.Zero(t, st.Points)
	assert.True(t, events.has(Room(tr.ID), EventStandingsUpdate))

	d, err := e.CreateTeam(ctx, "D", "")
	require.NoError(t, err)
	_, err = e.AddTeam(ctx, tr.ID, d.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindFull))

	big := newTournament(t, e, models.TypeRoundRobin, 8)
	_, err = e.AddTeam(ctx, big.ID, teams[0].ID)
	require.NoError(t, err)
	_, err = e.AddTeam(ctx, big.ID, teams[0].ID)
	assert.True(t, apperr.IsKind(err, apperr.KindDuplicate))

	_, err = e.AddTeam(ctx, big.ID, 9999)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	_, err = e.AddTeam(ctx, 9999, teams[0].ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestCreateTeam_Duplicate(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	team, err := e.CreateTeam(ctx, "Falcons", "fal")
	require.NoError(t, err)
	assert.Equal(t, "FAL", team.ShortName)

	_, err = e.CreateTeam(ctx, "Falcons", "")
	assert.True(t, apperr.IsKind(err, apperr.KindDuplicate))
	_, err = e.CreateTeam(ctx, " ", "")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestGenerateMatches_RoundRobinFourTeams(t *testing.T) {
	e, db, events := newTestEngine(t)
	tr := newTournament(t, e, models.TypeRoundRobin, 4)
	teams := enterTeams(t, e, tr.ID, "A", "B", "C", "D")

	gen, err := e.GenerateMatches(context.Background(), tr.ID, GenerateInput{IntervalMinutes: 90})
	require.NoError(t, err)
	require.Len(t, gen.Matches, 6)
	assert.Nil(t, gen.Dropped)

	seen := map[string]bool{}
	for i, m := range gen.Matches {
		a, b := m.HomeTeamID, m.AwayTeamID
		if a > b {
			a, b = b, a
		}
		key := fmt.Sprintf("%d-%d", a, b)
		assert.False(t, seen[key], "pair %s generated twice", key)
		seen[key] = true

		assert.Equal(t, i+1, m.SequenceNumber)
		assert.Equal(t, 10, m.Overs)
		assert.Equal(t, "Main Ground", m.Venue)
		assert.True(t, m.ScheduledAt.Equal(kickoff.Add(time.Duration(i*90)*time.Minute)))
		if i > 0 {
			assert.True(t, m.ScheduledAt.After(gen.Matches[i-1].ScheduledAt))
		}
	}
	assert.Len(t, seen, 6)

	assert.Equal(t, teams[0].ID, gen.Matches[0].HomeTeamID)
	assert.Equal(t, teams[1].ID, gen.Matches[0].AwayTeamID)
	assert.Equal(t, teams[2].ID, gen.Matches[5].HomeTeamID)
	assert.Equal(t, teams[3].ID, gen.Matches[5].AwayTeamID)

	got, err := e.Get(context.Background(), tr.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TournamentActive, got.Status)
	assert.True(t, events.has(Room(tr.ID), EventMatchesGenerated))

	var count int64
	require.NoError(t, db.Model(&models.Match{}).Where("tournament_id = ?", tr.ID).Count(&count).Error)
	assert.EqualValues(t, 6, count)
}

func TestGenerateMatches_SequenceContinuesAcrossTournaments(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()
	first := newTournament(t, e, models.TypeLeague, 2)
	enterTeams(t, e, first.ID, "A", "B")
	second := newTournament(t, e, models.TypeLeague, 3)
	enterTeams(t, e, second.ID, "C", "D", "E")

	_, err := e.GenerateMatches(ctx, first.ID, GenerateInput{})
	require.NoError(t, err)

	start := kickoff.Add(48 * time.Hour)
	gen, err := e.GenerateMatches(ctx, second.ID, GenerateInput{StartTime: &start, Venue: "Side Ground"})
	require.NoError(t, err)
	require.Len(t, gen.Matches, 3)
	assert.Equal(t, 2, gen.Matches[0].SequenceNumber)
	assert.Equal(t, 4, gen.Matches[2].SequenceNumber)
	assert.Equal(t, "Side Ground", gen.Matches[0].Venue)
	assert.True(t, gen.Matches[0].ScheduledAt.Equal(start))
	assert.True(t, gen.Matches[1].ScheduledAt.Equal(start.Add(time.Hour)), "default interval is an hour")
}

func TestGenerateMatches_InsufficientTeams(t *testing.T) {
	e, _, _ := newTestEngine(t)
	tr := newTournament(t, e, models.TypeKnockout, 4)
	enterTeams(t, e, tr.ID, "A")

	_, err := e.GenerateMatches(context.Background(), tr.ID, GenerateInput{})
	assert.True(t, apperr.IsKind(err, apperr.KindInsufficientTeams))

	_, err = e.GenerateMatches(context.Background(), 9999, GenerateInput{})
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestGenerateMatches_KnockoutOddTeamDropped(t *testing.T) {
	e, _, _ := newTestEngine(t)
	tr := newTournament(t, e, models.TypeKnockout, 5)
	teams := enterTeams(t, e, tr.ID, "A", "B", "C", "D", "E")

	var generated int
	e.OnGenerated(func(n int) { generated += n })

	gen, err := e.GenerateMatches(context.Background(), tr.ID, GenerateInput{})
	require.NoError(t, err)
	require.Len(t, gen.Matches, 2)
	require.NotNil(t, gen.Dropped)
	assert.Equal(t, teams[4].ID, gen.Dropped.ID)
	assert.Equal(t, 2, generated)

	assert.Equal(t, teams[0].ID, gen.Matches[0].HomeTeamID)
	assert.Equal(t, teams[1].ID, gen.Matches[0].AwayTeamID)
	assert.Equal(t, teams[2].ID, gen.Matches[1].HomeTeamID)
	assert.Equal(t, teams[3].ID, gen.Matches[1].AwayTeamID)
	for _, m := range gen.Matches {
		assert.Equal(t, "Quarter Final", m.Round)
	}
}

func TestGenerateMatches_KnockoutFourTeams(t *testing.T) {
	e, _, _ := newTestEngine(t)
	tr := newTournament(t, e, models.TypeKnockout, 4)
	enterTeams(t, e, tr.ID, "A", "B", "C", "D")

	gen, err := e.GenerateMatches(context.Background(), tr.ID, GenerateInput{})
	require.NoError(t, err)
	require.Len(t, gen.Matches, 2)
	assert.Nil(t, gen.Dropped)
	assert.Equal(t, "Semi Final", gen.Matches[0].Round)
}

func TestThreeTeamScenario(t *testing.T) {
	e, db, _ := newTestEngine(t)
	ctx := context.Background()
	tr := newTournament(t, e, models.TypeRoundRobin, 3)
	teams := enterTeams(t, e, tr.ID, "A", "B", "C")
	a, b, c := teams[0], teams[1], teams[2]

	extra, err := e.CreateTeam(ctx, "Late", "")
	require.NoError(t, err)
	_, err = e.AddTeam(ctx, tr.ID, extra.ID)
	require.True(t, apperr.IsKind(err, apperr.KindFull))

	gen, err := e.GenerateMatches(ctx, tr.ID, GenerateInput{IntervalMinutes: 60})
	require.NoError(t, err)
	require.Len(t, gen.Matches, 3)
	pairs := [][2]uint{{a.ID, b.ID}, {a.ID, c.ID}, {b.ID, c.ID}}
	for i, m := range gen.Matches {
		assert.Equal(t, pairs[i], [2]uint{m.HomeTeamID, m.AwayTeamID})
	}

	ab := gen.Matches[0]
	_, err = e.RecordResult(ctx, tr.ID, ab.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotCompleted))

	completed := models.MatchCompleted
	require.NoError(t, db.Model(&models.Match{}).Where("id = ?", ab.ID).
		Updates(map[string]any{"status": completed, "winner_id": a.ID}).Error)

	_, err = e.RecordResult(ctx, tr.ID, ab.ID)
	require.NoError(t, err)

	sa := standingOf(t, db, tr.ID, a.ID)
	assert.Equal(t, 1, sa.MatchesPlayed)
	assert.Equal(t, 1, sa.Wins)
	assert.Equal(t, 0, sa.Losses)
	assert.Equal(t, 2, sa.Points)

	sb := standingOf(t, db, tr.ID, b.ID)
	assert.Equal(t, 1, sb.MatchesPlayed)
	assert.Equal(t, 0, sb.Wins)
	assert.Equal(t, 1, sb.Losses)
	assert.Equal(t, 0, sb.Points)

	_, err = e.RecordResult(ctx, tr.ID, ab.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindAlreadyProcessed))
	assert.Equal(t, 2, standingOf(t, db, tr.ID, a.ID).Points, "second record must not double count")
	assert.Equal(t, 1, standingOf(t, db, tr.ID, b.ID).MatchesPlayed)

	table, err := e.Standings(ctx, tr.ID)
	require.NoError(t, err)
	require.Len(t, table, 3)
	assert.Equal(t, a.ID, table[0].TeamID)
	require.NotNil(t, table[0].Team)
	assert.Equal(t, "A", table[0].Team.Name)
}

func TestRecordResult_WrongTournament(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()
	tr := newTournament(t, e, models.TypeRoundRobin, 2)
	enterTeams(t, e, tr.ID, "A", "B")
	gen, err := e.GenerateMatches(ctx, tr.ID, GenerateInput{})
	require.NoError(t, err)

	_, err = e.RecordResult(ctx, tr.ID+1, gen.Matches[0].ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestStandings_OrderedByPointsThenNetRunRate(t *testing.T) {
	e, db, _ := newTestEngine(t)
	tr := newTournament(t, e, models.TypeLeague, 3)
	teams := enterTeams(t, e, tr.ID, "A", "B", "C")

	set := func(teamID uint, points int, nrr float64) {
		require.NoError(t, db.Model(&models.Standing{}).
			Where("tournament_id = ? AND team_id = ?", tr.ID, teamID).
			Updates(map[string]any{"points": points, "net_run_rate": nrr}).Error)
	}
	set(teams[0].ID, 2, -0.5)
	set(teams[1].ID, 4, 0.1)
	set(teams[2].ID, 2, 1.25)

	table, err := e.Standings(context.Background(), tr.ID)
	require.NoError(t, err)
	require.Len(t, table, 3)
	assert.Equal(t, teams[1].ID, table[0].TeamID)
	assert.Equal(t, teams[2].ID, table[1].TeamID)
	assert.Equal(t, teams[0].ID, table[2].TeamID)
}

func TestUpdateMatch_CompletingRecordsResult(t *testing.T) {
	e, db, events := newTestEngine(t)
	ctx := context.Background()
	tr := newTournament(t, e, models.TypeRoundRobin, 2)
	teams := enterTeams(t, e, tr.ID, "A", "B")
	gen, err := e.GenerateMatches(ctx, tr.ID, GenerateInput{})
	require.NoError(t, err)
	matchID := gen.Matches[0].ID

	live := models.MatchLive
	runs := 87
	m, err := e.UpdateMatch(ctx, matchID, MatchPatch{Status: &live, HomeRuns: &runs})
	require.NoError(t, err)
	assert.Equal(t, models.MatchLive, m.Status)
	assert.Equal(t, 87, m.HomeRuns)
	assert.False(t, m.ResultRecorded)
	assert.True(t, events.has(Room(tr.ID), EventMatchUpdate))

	stranger := teams[1].ID + 100
	_, err = e.UpdateMatch(ctx, matchID, MatchPatch{WinnerID: &stranger})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	done := models.MatchCompleted
	winner := teams[1].ID
	m, err = e.UpdateMatch(ctx, matchID, MatchPatch{Status: &done, WinnerID: &winner})
	require.NoError(t, err)
	assert.True(t, m.ResultRecorded)
	assert.Equal(t, 2, standingOf(t, db, tr.ID, winner).Points)
	assert.Equal(t, 1, standingOf(t, db, tr.ID, teams[0].ID).Losses)

	_, err = e.UpdateMatch(ctx, matchID, MatchPatch{WinnerID: &teams[0].ID})
	assert.True(t, apperr.IsKind(err, apperr.KindAlreadyProcessed))

	wickets := 3
	_, err = e.UpdateMatch(ctx, matchID, MatchPatch{AwayWickets: &wickets})
	assert.NoError(t, err, "score corrections stay allowed")
	assert.Equal(t, 2, standingOf(t, db, tr.ID, winner).Points)

	_, err = e.UpdateMatch(ctx, matchID, MatchPatch{})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestDelete_DetachesMatches(t *testing.T) {
	e, db, _ := newTestEngine(t)
	ctx := context.Background()
	tr := newTournament(t, e, models.TypeRoundRobin, 2)
	enterTeams(t, e, tr.ID, "A", "B")
	gen, err := e.GenerateMatches(ctx, tr.ID, GenerateInput{})
	require.NoError(t, err)

	require.NoError(t, e.Delete(ctx, tr.ID))

	var standings int64
	require.NoError(t, db.Model(&models.Standing{}).Count(&standings).Error)
	assert.Zero(t, standings)

	var m models.Match
	require.NoError(t, db.First(&m, gen.Matches[0].ID).Error)
	assert.Nil(t, m.TournamentID)

	_, err = e.Get(ctx, tr.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	assert.True(t, apperr.IsKind(e.Delete(ctx, tr.ID), apperr.KindNotFound))
}

func TestListMatchesAndTournaments(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()
	tr := newTournament(t, e, models.TypeRoundRobin, 3)
	enterTeams(t, e, tr.ID, "A", "B", "C")
	_, err := e.GenerateMatches(ctx, tr.ID, GenerateInput{})
	require.NoError(t, err)

	matches, err := e.ListMatches(ctx, tr.ID)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	require.NotNil(t, matches[0].HomeTeam)
	assert.Equal(t, "A", matches[0].HomeTeam.Name)

	list, err := e.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	teams, err := e.ListTeams(ctx)
	require.NoError(t, err)
	assert.Len(t, teams, 3)
}
