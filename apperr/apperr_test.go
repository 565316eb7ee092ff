package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("login: %w", RateLimited("slow down"))
	assert.Equal(t, KindRateLimited, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindRateLimited))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestIs_MatchesByKind(t *testing.T) {
	err := fmt.Errorf("x: %w", New(KindFull, "tournament is full"))
	assert.ErrorIs(t, err, &Error{Kind: KindFull})
	assert.NotErrorIs(t, err, &Error{Kind: KindDuplicate})
}

func TestMessage_HidesInternalCause(t *testing.T) {
	err := Internal("save standing", errors.New("pq: deadlock detected"))
	assert.Equal(t, "internal error, please retry", Message(err))
	assert.Contains(t, err.Error(), "deadlock")
	assert.Equal(t, "bad code", Message(InvalidCredential("bad code")))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[error]int{
		NotFound("x"):                  http.StatusNotFound,
		InvalidCredential("x"):         http.StatusUnauthorized,
		AccessDenied("x"):              http.StatusForbidden,
		PendingApproval("x"):           http.StatusForbidden,
		AlreadyProcessed("x"):          http.StatusConflict,
		RateLimited("x"):               http.StatusTooManyRequests,
		New(KindInsufficientTeams, ""): http.StatusUnprocessableEntity,
		Validation("x"):                http.StatusBadRequest,
		errors.New("x"):                http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, HTTPStatus(err), err.Error())
	}
}
