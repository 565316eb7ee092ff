package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"eventhub/identity"
	"eventhub/response"
	"eventhub/tournament"
)

type ExportHandler struct {
	ids    *identity.Store
	engine *tournament.Engine
}

func NewExportHandler(ids *identity.Store, engine *tournament.Engine) *ExportHandler {
	return &ExportHandler{ids: ids, engine: engine}
}

func attachCSV(w http.ResponseWriter, filename string) *csv.Writer {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	return csv.NewWriter(w)
}

// FoodCSV exports every food registrant with its collection state.
func (h *ExportHandler) FoodCSV(w http.ResponseWriter, r *http.Request) {
	food, err := h.ids.ListFood(r.Context(), false)
	if err != nil {
		response.Error(w, err)
		return
	}

	writer := attachCSV(w, "food_registrants.csv")
	defer writer.Flush()

	writer.Write([]string{"Trainee ID", "Name", "Email", "Preference", "Approved", "Collected", "Collected At"})
	for _, f := range food {
		collectedAt := ""
		if f.CollectedAt != nil {
			collectedAt = f.CollectedAt.UTC().Format(time.RFC3339)
		}
		writer.Write([]string{
			f.TraineeID,
			f.Name,
			f.Email,
			f.FoodPreference,
			strconv.FormatBool(f.IsApproved),
			strconv.FormatBool(f.Collected),
			collectedAt,
		})
	}
}

// StandingsCSV exports a tournament table in ranking order.
func (h *ExportHandler) StandingsCSV(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	table, err := h.engine.Standings(r.Context(), id)
	if err != nil {
		response.Error(w, err)
		return
	}

	writer := attachCSV(w, fmt.Sprintf("standings_%d.csv", id))
	defer writer.Flush()

	writer.Write([]string{"Rank", "Team", "Played", "Won", "Lost", "Points", "NRR"})
	for i, s := range table {
		team := ""
		if s.Team != nil {
			team = s.Team.Name
		}
		writer.Write([]string{
			strconv.Itoa(i + 1),
			team,
			strconv.Itoa(s.MatchesPlayed),
			strconv.Itoa(s.Wins),
			strconv.Itoa(s.Losses),
			strconv.Itoa(s.Points),
			fmt.Sprintf("%.3f", s.NetRunRate),
		})
	}
}
