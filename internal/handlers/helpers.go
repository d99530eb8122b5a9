package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lumenhq/lumen/internal/auth"
	"github.com/lumenhq/lumen/internal/history"
	"github.com/lumenhq/lumen/internal/identity"
)

// requireUserID extracts and validates the authenticated user id.
func requireUserID(c echo.Context) (string, error) {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return "", err
	}
	if err := identity.ValidateUserID(userID); err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return userID, nil
}

// conversationHTTPError maps store sentinels onto HTTP statuses.
func conversationHTTPError(err error) error {
	switch {
	case errors.Is(err, history.ErrConversationNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "conversation not found")
	case errors.Is(err, history.ErrNotOwner):
		return echo.NewHTTPError(http.StatusForbidden, "not the conversation owner")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
