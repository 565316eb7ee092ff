package handlers

import (
	"context"
	"net/http"

	"eventhub/apperr"
	"eventhub/response"
)

// ActiveCounter reports live realtime connections across instances.
type ActiveCounter interface {
	Active(ctx context.Context) (int64, error)
}

type StatsHandler struct {
	counter ActiveCounter
}

func NewStatsHandler(counter ActiveCounter) *StatsHandler {
	return &StatsHandler{counter: counter}
}

func (h *StatsHandler) Active(w http.ResponseWriter, r *http.Request) {
	n, err := h.counter.Active(r.Context())
	if err != nil {
		response.Error(w, apperr.Wrap(apperr.KindUnavailable, "connection count unavailable", err))
		return
	}
	response.OK(w, map[string]int64{"active_connections": n})
}
