// Package response writes the JSON envelope every API endpoint answers with:
// {"status": "success"|"error"|"pending", "data"|"message": ...}.
package response

import (
	"encoding/json"
	"net/http"

	"eventhub/apperr"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusPending = "pending"
)

type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func JSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, Envelope{Status: StatusSuccess, Data: data})
}

func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, Envelope{Status: StatusSuccess, Data: data})
}

// Pending answers a login that is waiting for approval.
func Pending(w http.ResponseWriter, message string, data any) {
	JSON(w, http.StatusAccepted, Envelope{Status: StatusPending, Message: message, Data: data})
}

// Error maps err onto its status code; internal causes are not shown.
func Error(w http.ResponseWriter, err error) {
	JSON(w, apperr.HTTPStatus(err), Envelope{Status: StatusError, Message: apperr.Message(err)})
}

func Fail(w http.ResponseWriter, code int, message string) {
	JSON(w, code, Envelope{Status: StatusError, Message: message})
}
