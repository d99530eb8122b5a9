// Package auth provides JWT validation middleware and user identity extraction.
//
// The identity provider itself is external: this package only verifies the
// bearer credential and exposes the opaque user id it carries. Client-supplied
// user identifiers are never trusted.
package auth

import (
	"net/http"
	"strings"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const userContextKey = "user"

// JWTMiddleware returns an Echo middleware that validates bearer tokens with
// the given secret. Paths accepted by skipper bypass validation.
func JWTMiddleware(secret string, skipper func(c echo.Context) bool) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey: []byte(secret),
		ContextKey: userContextKey,
		Skipper: func(c echo.Context) bool {
			if skipper == nil {
				return false
			}
			return skipper(c)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing or invalid credential")
		},
	})
}

// UserIDFromContext extracts the authenticated user id (JWT subject) from the
// request context. Returns a 401 error when the token is absent or malformed.
func UserIDFromContext(c echo.Context) (string, error) {
	token, ok := c.Get(userContextKey).(*jwt.Token)
	if !ok || token == nil {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing credential")
	}
	subject, err := token.Claims.GetSubject()
	if err != nil || strings.TrimSpace(subject) == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "credential has no subject")
	}
	return strings.TrimSpace(subject), nil
}
