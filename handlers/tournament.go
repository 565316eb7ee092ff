package handlers

import (
	"net/http"

	"eventhub/response"
	"eventhub/tournament"
)

type TournamentHandler struct {
	engine *tournament.Engine
}

func NewTournamentHandler(engine *tournament.Engine) *TournamentHandler {
	return &TournamentHandler{engine: engine}
}

func (h *TournamentHandler) ListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.engine.ListTeams(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, teams)
}

func (h *TournamentHandler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name      string `json:"name"`
		ShortName string `json:"short_name"`
	}
	if err := decode(r, &body); err != nil {
		response.Error(w, err)
		return
	}
	team, err := h.engine.CreateTeam(r.Context(), body.Name, body.ShortName)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, team)
}

func (h *TournamentHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.engine.List(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, list)
}

func (h *TournamentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	t, err := h.engine.Get(r.Context(), id)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, t)
}

func (h *TournamentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in tournament.CreateInput
	if err := decode(r, &in); err != nil {
		response.Error(w, err)
		return
	}
	t, err := h.engine.Create(r.Context(), in)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, t)
}

func (h *TournamentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	if err := h.engine.Delete(r.Context(), id); err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, nil)
}

func (h *TournamentHandler) Standings(w http.ResponseWriter, r *http.Request) {
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
	response.OK(w, table)
}

func (h *TournamentHandler) Matches(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	matches, err := h.engine.ListMatches(r.Context(), id)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, matches)
}

func (h *TournamentHandler) AddTeam(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	var body struct {
		TeamID uint `json:"team_id"`
	}
	if err := decode(r, &body); err != nil {
		response.Error(w, err)
		return
	}
	st, err := h.engine.AddTeam(r.Context(), id, body.TeamID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, st)
}

func (h *TournamentHandler) GenerateMatches(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	var in tournament.GenerateInput
	if r.ContentLength != 0 {
		if err := decode(r, &in); err != nil {
			response.Error(w, err)
			return
		}
	}
	gen, err := h.engine.GenerateMatches(r.Context(), id, in)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, gen)
}

func (h *TournamentHandler) RecordResult(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	matchID, err := idParam(r, "matchId")
	if err != nil {
		response.Error(w, err)
		return
	}
	m, err := h.engine.RecordResult(r.Context(), id, matchID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, m)
}

func (h *TournamentHandler) UpdateMatch(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	var patch tournament.MatchPatch
	if err := decode(r, &patch); err != nil {
		response.Error(w, err)
		return
	}
	m, err := h.engine.UpdateMatch(r.Context(), id, patch)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, m)
}
