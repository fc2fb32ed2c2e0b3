package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	userIDKey contextKey = "user_id"
	roleKey   contextKey = "user_role"
)

// RequireSession returns middleware that requires a valid session token on
// every request it covers. API routes get a 401 JSON body; page routes are
// redirected to /login, mirroring how the browser app treats a dead session.
func RequireSession(tokens *Tokens) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenStr := TokenFromRequest(c.Request())
			if tokenStr == "" {
				return unauthenticated(c)
			}

			sess, ok := tokens.Verify(tokenStr)
			if !ok {
				return unauthenticated(c)
			}

			ctx := WithIdentity(c.Request().Context(), sess.UserID, sess.Role)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// RequireRole returns middleware that permits only the listed roles past it.
// Role comparison is case-insensitive: tokens issued before roles were
// normalized may carry mixed case.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			have := strings.ToLower(RoleFromContext(c.Request().Context()))
			for _, want := range roles {
				if have == strings.ToLower(want) {
					return next(c)
				}
			}
			if isAPIPath(c.Path()) || isAPIPath(c.Request().URL.Path) {
				return echo.NewHTTPError(http.StatusForbidden,
					fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
			}
			return c.Redirect(http.StatusFound, "/unauthorized")
		}
	}
}

func unauthenticated(c echo.Context) error {
	if isAPIPath(c.Request().URL.Path) {
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}
	return c.Redirect(http.StatusFound, "/login")
}

func isAPIPath(path string) bool {
	return strings.HasPrefix(path, "/api/")
}

// WithIdentity returns a context carrying the authenticated user's id and
// role.
func WithIdentity(ctx context.Context, userID uuid.UUID, role string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, roleKey, role)
}

// UserIDFromContext returns the authenticated user's id, or uuid.Nil when the
// request carried no valid session.
func UserIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(userIDKey).(uuid.UUID)
	return id
}

// RoleFromContext returns the authenticated user's role, lowercased, or "".
func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(roleKey).(string)
	return role
}
