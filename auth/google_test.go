package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokeninfoServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "good-token", r.URL.Query().Get("id_token"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGoogleVerifier_Valid(t *testing.T) {
	srv := tokeninfoServer(t, http.StatusOK,
		`{"aud":"client-1","email":"a@example.com","email_verified":"true","name":"Ann","picture":"https://example.com/a.png"}`)
	v := NewGoogleVerifier(srv.URL, "client-1")

	p, err := v.Verify(context.Background(), "good-token")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", p.Email)
	assert.Equal(t, "Ann", p.DisplayName)
	assert.Equal(t, "https://example.com/a.png", p.PictureURL)
}

func TestGoogleVerifier_Rejections(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
	}{
		"audience":   {http.StatusOK, `{"aud":"other","email":"a@example.com","email_verified":"true"}`},
		"unverified": {http.StatusOK, `{"aud":"client-1","email":"a@example.com","email_verified":"false"}`},
		"no email":   {http.StatusOK, `{"aud":"client-1","email_verified":"true"}`},
		"bad token":  {http.StatusBadRequest, `{"error":"invalid_token"}`},
		"not json":   {http.StatusOK, `<html>`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv := tokeninfoServer(t, tc.status, tc.body)
			_, err := NewGoogleVerifier(srv.URL, "client-1").Verify(context.Background(), "good-token")
			assert.True(t, errors.Is(err, ErrInvalidToken), "got %v", err)
		})
	}
}

func TestGoogleVerifier_Unavailable(t *testing.T) {
	srv := tokeninfoServer(t, http.StatusBadGateway, "")
	_, err := NewGoogleVerifier(srv.URL, "").Verify(context.Background(), "good-token")
	assert.True(t, errors.Is(err, ErrProviderUnavailable))

	closed := httptest.NewServer(http.NotFoundHandler())
	closed.Close()
	_, err = NewGoogleVerifier(closed.URL, "").Verify(context.Background(), "good-token")
	assert.True(t, errors.Is(err, ErrProviderUnavailable))
}

func TestGoogleVerifier_EmptyToken(t *testing.T) {
	_, err := NewGoogleVerifier("http://127.0.0.1:1", "").Verify(context.Background(), "")
	assert.True(t, errors.Is(err, ErrInvalidToken))
}
