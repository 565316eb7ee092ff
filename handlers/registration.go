package handlers

import (
	"net/http"
	"time"

	"eventhub/identity"
	"eventhub/mail"
	"eventhub/models"
	"eventhub/response"

	"go.uber.org/zap"
)

type RegistrationHandler struct {
	ids    *identity.Store
	mailer mail.Dispatcher
	logger *zap.Logger
}

func NewRegistrationHandler(ids *identity.Store, mailer mail.Dispatcher, logger *zap.Logger) *RegistrationHandler {
	return &RegistrationHandler{ids: ids, mailer: mailer, logger: logger}
}

func (h *RegistrationHandler) ListPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := h.ids.ListPlayers(r.Context(), true)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, players)
}

func (h *RegistrationHandler) ListFood(w http.ResponseWriter, r *http.Request) {
	food, err := h.ids.ListFood(r.Context(), true)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, food)
}

func (h *RegistrationHandler) ListCommittee(w http.ResponseWriter, r *http.Request) {
	members, err := h.ids.ListCommittee(r.Context(), true)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, members)
}

func (h *RegistrationHandler) FoodSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.ids.FoodSummary(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, summary)
}

func (h *RegistrationHandler) ImportPlayers(w http.ResponseWriter, r *http.Request) {
	var rows []models.Player
	if err := decode(r, &rows); err != nil {
		response.Error(w, err)
		return
	}
	res, err := h.ids.ImportPlayers(r.Context(), rows)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, res)
}

func (h *RegistrationHandler) ImportFood(w http.ResponseWriter, r *http.Request) {
	var rows []models.FoodRegistrant
	if err := decode(r, &rows); err != nil {
		response.Error(w, err)
		return
	}
	res, err := h.ids.ImportFood(r.Context(), rows)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, res)
}

func (h *RegistrationHandler) ImportCommittee(w http.ResponseWriter, r *http.Request) {
	var rows []models.CommitteeMember
	if err := decode(r, &rows); err != nil {
		response.Error(w, err)
		return
	}
	res, err := h.ids.ImportCommittee(r.Context(), rows)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, res)
}

func (h *RegistrationHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	m, err := h.ids.CheckIn(r.Context(), id)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, m)
}

// Collect records a meal pickup and sends the registrant a confirmation.
func (h *RegistrationHandler) Collect(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	f, err := h.ids.MarkCollected(r.Context(), id)
	if err != nil {
		response.Error(w, err)
		return
	}

	at := ""
	if f.CollectedAt != nil {
		at = f.CollectedAt.Format(time.Kitchen)
	}
	if err := h.mailer.Send(r.Context(), mail.Message{
		To:       []string{f.Email},
		Subject:  "Meal collected",
		Template: "food_collected",
		Data:     map[string]any{"name": f.Name, "preference": f.FoodPreference, "time": at},
	}); err != nil {
		h.logger.Warn("collection confirmation not sent", zap.Uint("registrant_id", f.ID), zap.Error(err))
	}
	response.OK(w, f)
}

func (h *RegistrationHandler) AssignTeam(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	var body struct {
		TeamID *uint `json:"team_id"`
	}
	if err := decode(r, &body); err != nil {
		response.Error(w, err)
		return
	}
	p, err := h.ids.AssignTeam(r.Context(), id, body.TeamID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, p)
}
