package middleware

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/forgo/trailhead/api/internal/model"
	"github.com/forgo/trailhead/api/internal/service"
	"github.com/forgo/trailhead/api/pkg/jwt"
)

// TokenCookie is the cookie the session token is also sent in
const TokenCookie = "jwt"

// Authenticator resolves a session token to its user
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

// Protect requires a valid session token, taken from the Authorization
// header or the jwt cookie, and puts the user in the request context.
func Protect(auth Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := auth.Authenticate(r.Context(), extractToken(r))
			if err != nil {
				authError(err).WriteJSON(w)
				return
			}

			noteUser(r.Context(), user.ID)
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RestrictTo allows only the given roles. It must run after Protect.
func RestrictTo(roles ...model.UserRole) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUser(r.Context())
			if user == nil {
				model.NewUnauthorizedError("You are not logged in! Please log in to get access.").WriteJSON(w)
				return
			}
			if !slices.Contains(roles, user.Role) {
				model.NewForbiddenError("You do not have permission to perform this action").WriteJSON(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetUser returns the authenticated user, or nil
func GetUser(ctx context.Context) *model.User {
	if user, ok := ctx.Value(userKey{}).(*model.User); ok {
		return user
	}
	return nil
}

// GetUserID returns the authenticated user's id, or ""
func GetUserID(ctx context.Context) string {
	if user := GetUser(ctx); user != nil {
		return user.ID
	}
	return ""
}

// WithUser returns a context carrying user
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

func extractToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	if c, err := r.Cookie(TokenCookie); err == nil && c.Value != "loggedout" {
		return c.Value
	}
	return ""
}

func authError(err error) *model.AppError {
	switch {
	case errors.Is(err, service.ErrNotLoggedIn):
		return model.NewUnauthorizedError("You are not logged in! Please log in to get access.")
	case errors.Is(err, jwt.ErrTokenExpired):
		return model.NewAppError(http.StatusUnauthorized, model.ErrCodeTokenExpired, "Your token has expired! Please log in again.")
	case errors.Is(err, jwt.ErrInvalidToken):
		return model.NewAppError(http.StatusUnauthorized, model.ErrCodeTokenInvalid, "Invalid token. Please log in again!")
	case errors.Is(err, service.ErrUserNoLongerExists):
		return model.NewUnauthorizedError("The user belonging to this token does no longer exist.")
	case errors.Is(err, service.ErrPasswordChanged):
		return model.NewUnauthorizedError("User recently changed password! Please log in again.")
	}
	return model.NewInternalError("")
}
