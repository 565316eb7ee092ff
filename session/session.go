// Package session signs and verifies the bearer tokens handed out at login.
package session

import (
	"errors"
	"time"

	"eventhub/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrExpiredToken   = errors.New("token has expired")
	ErrWeakSecretKey  = errors.New("secret key must be at least 32 characters")
	ErrInvalidTTL     = errors.New("token ttl must be positive")
	errInvalidSigning = errors.New("invalid signing algorithm")
)

type Claims struct {
	UserID uint        `json:"user_id"`
	Email  string      `json:"email"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

type Service struct {
	secret []byte
	ttl    time.Duration
	clock  clockwork.Clock
}

func NewService(secret string, ttl time.Duration, clock clockwork.Clock) (*Service, error) {
	if len(secret) < 32 {
		return nil, ErrWeakSecretKey
	}
	if ttl <= 0 {
		return nil, ErrInvalidTTL
	}
	return &Service{secret: []byte(secret), ttl: ttl, clock: clock}, nil
}

func (s *Service) TTL() time.Duration { return s.ttl }

// Issue signs a token for the principal.
func (s *Service) Issue(u *models.User) (string, error) {
	now := s.clock.Now()
	claims := &Claims{
		UserID: u.ID,
		Email:  u.Email,
		Role:   u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify parses a token and rejects expired, malformed or foreign ones.
func (s *Service) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errInvalidSigning
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.clock.Now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid && claims.Role.Valid() {
		return claims, nil
	}
	return nil, ErrInvalidToken
}
