// Package auth provides the bearer-token gate in front of the API.
//
// Tokens are HS256 JWTs carrying the username and role. The middleware
// validates the signature and expiry, then places the caller on the
// request context where handlers and services read it. A dev-mode
// middleware skips validation entirely and injects a local superuser so
// the API is usable without a token service running.
package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const userKey contextKey = "auth.user"

// RoleSuperuser grants visibility of restricted teams and their episodes.
const RoleSuperuser = "superuser"

// User is the authenticated caller as seen by handlers and services.
type User struct {
	ID       uuid.UUID
	Username string
	Role     string
}

// IsSuperuser reports whether the caller may see restricted teams.
func (u User) IsSuperuser() bool {
	return u.Role == RoleSuperuser
}

// Claims is the JWT payload issued for API access.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// NewToken mints a signed HS256 token for the given user. Used by tests
// and by the dev token command.
func NewToken(secret []byte, user User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// JWTMiddleware validates the Authorization bearer token and stores the
// caller on the request context. Requests without a valid token get 401.
func JWTMiddleware(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, err := bearerToken(c.Request())
			if err != nil {
				return err
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return secret, nil
			})
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			user := User{Username: claims.Username, Role: claims.Role}
			if id, err := uuid.Parse(claims.Subject); err == nil {
				user.ID = id
			}
			setUser(c, user)
			return next(c)
		}
	}
}

// DevMiddleware injects a fixed superuser without checking credentials.
// Only wired when the server runs with ENV=development and no JWT secret.
func DevMiddleware() echo.MiddlewareFunc {
	dev := User{
		ID:       uuid.MustParse("00000000-0000-0000-0000-000000000001"),
		Username: "dev",
		Role:     RoleSuperuser,
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			setUser(c, dev)
			return next(c)
		}
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "malformed authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}

func setUser(c echo.Context, user User) {
	ctx := context.WithValue(c.Request().Context(), userKey, user)
	c.SetRequest(c.Request().WithContext(ctx))
	// The request logger reads this key for its per-request fields.
	c.Set("username", user.Username)
}

// UserFromContext returns the authenticated caller, if any.
func UserFromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userKey).(User)
	return u, ok
}

// CurrentUser returns the caller for an echo request. Handlers behind
// the auth middleware may assume ok is true.
func CurrentUser(c echo.Context) (User, bool) {
	return UserFromContext(c.Request().Context())
}
