package handlers

import (
	"context"
	"net/http"
	"strconv"

	"eventhub/approval"
	"eventhub/mail"
	"eventhub/middleware"
	"eventhub/models"
	"eventhub/response"
)

type ApprovalHandler struct {
	gate   *approval.Gate
	mailer mail.Dispatcher
}

func NewApprovalHandler(gate *approval.Gate, mailer mail.Dispatcher) *ApprovalHandler {
	return &ApprovalHandler{gate: gate, mailer: mailer}
}

// ListRequests lists login requests, optionally filtered by ?status=.
func (h *ApprovalHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.gate.ListRequests(r.Context(), models.ApprovalStatus(r.URL.Query().Get("status")))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, reqs)
}

func (h *ApprovalHandler) ListPendingUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.gate.ListPendingUsers(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, users)
}

func (h *ApprovalHandler) History(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.gate.History(r.Context(), limit)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, entries)
}

func (h *ApprovalHandler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	h.decideRequest(w, r, models.StatusApproved)
}

func (h *ApprovalHandler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.decideRequest(w, r, models.StatusRejected)
}

func (h *ApprovalHandler) ApproveUser(w http.ResponseWriter, r *http.Request) {
	h.decideUser(w, r, models.StatusApproved)
}

func (h *ApprovalHandler) RejectUser(w http.ResponseWriter, r *http.Request) {
	h.decideUser(w, r, models.StatusRejected)
}

type decisionBody struct {
	Reason string `json:"reason"`
}

// readReason accepts an empty body.
func readReason(r *http.Request) (string, error) {
	if r.ContentLength == 0 {
		return "", nil
	}
	var body decisionBody
	if err := decode(r, &body); err != nil {
		return "", err
	}
	return body.Reason, nil
}

func (h *ApprovalHandler) decideRequest(w http.ResponseWriter, r *http.Request, outcome models.ApprovalStatus) {
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	reason, err := readReason(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	reviewer := middleware.UserFromContext(r.Context())

	req, err := h.gate.Decide(r.Context(), id, outcome, reviewer.ID, reason)
	if err != nil {
		response.Error(w, err)
		return
	}
	h.notify(r.Context(), req.Email, req.Name, outcome, reason)
	response.OK(w, req)
}

func (h *ApprovalHandler) decideUser(w http.ResponseWriter, r *http.Request, outcome models.ApprovalStatus) {
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	reason, err := readReason(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	reviewer := middleware.UserFromContext(r.Context())

	u, err := h.gate.DecidePrincipal(r.Context(), id, outcome, reviewer.ID, reason)
	if err != nil {
		response.Error(w, err)
		return
	}
	h.notify(r.Context(), u.Email, u.DisplayName(), outcome, reason)
	response.OK(w, u)
}

// notify tells the principal about the decision. Delivery is best-effort.
func (h *ApprovalHandler) notify(ctx context.Context, email, name string, outcome models.ApprovalStatus, reason string) {
	_ = h.mailer.Send(ctx, mail.Message{
		To:       []string{email},
		Subject:  "Your access request",
		Template: "approval",
		Data:     map[string]any{"name": name, "outcome": string(outcome), "reason": reason},
	})
}
