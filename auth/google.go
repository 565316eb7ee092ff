package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
)

var (
	ErrInvalidToken        = errors.New("identity token rejected")
	ErrProviderUnavailable = errors.New("identity provider unavailable")
)

// Profile is what an identity provider vouches for.
type Profile struct {
	Email       string
	DisplayName string
	PictureURL  string
}

// IdentityVerifier checks an opaque identity assertion out of process.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (*Profile, error)
}

// GoogleVerifier validates Google ID tokens against the tokeninfo endpoint.
type GoogleVerifier struct {
	endpoint string
	clientID string
	client   *http.Client
}

func NewGoogleVerifier(endpoint, clientID string) *GoogleVerifier {
	return &GoogleVerifier{
		endpoint: endpoint,
		clientID: clientID,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

func (v *GoogleVerifier) Verify(ctx context.Context, token string) (*Profile, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	u := v.endpoint + "?" + url.Values{"id_token": {token}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK || !gjson.ValidBytes(body) {
		return nil, ErrInvalidToken
	}

	claims := gjson.ParseBytes(body)
	if v.clientID != "" && claims.Get("aud").String() != v.clientID {
		return nil, fmt.Errorf("%w: audience mismatch", ErrInvalidToken)
	}
	// tokeninfo reports email_verified as a string.
	if !claims.Get("email_verified").Bool() {
		return nil, fmt.Errorf("%w: email not verified", ErrInvalidToken)
	}
	email := claims.Get("email").String()
	if email == "" {
		return nil, fmt.Errorf("%w: no email claim", ErrInvalidToken)
	}

	return &Profile{
		Email:       email,
		DisplayName: claims.Get("name").String(),
		PictureURL:  claims.Get("picture").String(),
	}, nil
}
