package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"eventhub/apperr"
	"eventhub/approval"
	"eventhub/models"
	"eventhub/response"
	"eventhub/session"
)

type contextKey string

const UserContextKey contextKey = "user"

// TokenCookie is the cookie a browser client may carry the session in.
const TokenCookie = "token"

// UserLoader loads the principal a verified token names.
type UserLoader interface {
	Me(ctx context.Context, userID uint) (*models.User, error)
}

// Authenticate requires a valid session token from the cookie or the
// Authorization header and puts the current principal in the context.
func Authenticate(tokens *session.Service, users UserLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := tokenFromRequest(r)
			if tokenString == "" {
				response.Fail(w, http.StatusUnauthorized, "authentication required")
				return
			}

			claims, err := tokens.Verify(tokenString)
			if err != nil {
				clearCookie(w)
				msg := "invalid session"
				if errors.Is(err, session.ErrExpiredToken) {
					msg = "session expired, please log in again"
				}
				response.Fail(w, http.StatusUnauthorized, msg)
				return
			}

			user, err := users.Me(r.Context(), claims.UserID)
			if err != nil {
				if apperr.IsKind(err, apperr.KindNotFound) {
					clearCookie(w)
					response.Fail(w, http.StatusUnauthorized, "invalid session")
					return
				}
				response.Error(w, err)
				return
			}

			// A principal rejected or reset to pending after login loses access.
			decision, err := approval.CheckAccess(user)
			if err != nil {
				response.Error(w, err)
				return
			}
			if decision != approval.Granted {
				response.Error(w, apperr.PendingApproval("your account is awaiting approval"))
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(TokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// Capability decides whether a principal may use an endpoint.
type Capability interface {
	Allows(u *models.User) bool
}

type roleSet map[models.Role]struct{}

func (s roleSet) Allows(u *models.User) bool {
	_, ok := s[u.Role]
	return ok
}

// Roles is the capability held by any of the given roles.
func Roles(roles ...models.Role) Capability {
	s := make(roleSet, len(roles))
	for _, r := range roles {
		s[r] = struct{}{}
	}
	return s
}

var (
	AnyRole    = Roles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleUser)
	Staff      = Roles(models.RoleSuperAdmin, models.RoleAdmin)
	SuperAdmin = Roles(models.RoleSuperAdmin)
)

// Require lets the request through when the authenticated principal holds c.
func Require(c Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFromContext(r.Context())
			if user == nil {
				response.Fail(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if !c.Allows(user) {
				response.Fail(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func UserFromContext(ctx context.Context) *models.User {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}
