package handlers

import (
	"context"
	"net/http"
	"strings"

	"eventhub/apperr"
	"eventhub/mail"
	"eventhub/models"
	"eventhub/response"
)

// NotificationHandler sends ad-hoc mail synchronously so delivery failures
// reach the caller.
type NotificationHandler struct {
	mailer mail.Dispatcher
}

func NewNotificationHandler(mailer mail.Dispatcher) *NotificationHandler {
	return &NotificationHandler{mailer: mailer}
}

type emailRequest struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

func (req *emailRequest) validate() error {
	if len(req.To) == 0 {
		return apperr.Validation("at least one recipient is required")
	}
	for i, to := range req.To {
		to = models.NormalizeEmail(to)
		if !strings.Contains(to, "@") {
			return apperr.Validation("invalid recipient " + req.To[i])
		}
		req.To[i] = to
	}
	if strings.TrimSpace(req.Subject) == "" {
		return apperr.Validation("subject is required")
	}
	if strings.TrimSpace(req.Body) == "" {
		return apperr.Validation("body is required")
	}
	return nil
}

func (h *NotificationHandler) SendEmail(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decode(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	if err := req.validate(); err != nil {
		response.Error(w, err)
		return
	}
	if err := h.send(r.Context(), req); err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]any{"sent": len(req.To)})
}

func (h *NotificationHandler) send(ctx context.Context, req emailRequest) error {
	err := h.mailer.Send(ctx, mail.Message{
		To:       req.To,
		Subject:  req.Subject,
		Template: "plain",
		Data:     map[string]any{"body": req.Body},
	})
	if err != nil {
		return apperr.Wrap(apperr.KindUnavailable, "mail delivery failed", err)
	}
	return nil
}
