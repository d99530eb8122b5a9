package handlers

import (
	"bufio"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lumenhq/lumen/internal/chat"
	"github.com/lumenhq/lumen/internal/stream"
)

// ChatHandler serves the streaming chat endpoint.
type ChatHandler struct {
	orchestrator *chat.Orchestrator
	logger       *slog.Logger
}

// NewChatHandler creates the chat handler.
func NewChatHandler(log *slog.Logger, orchestrator *chat.Orchestrator) *ChatHandler {
	return &ChatHandler{
		orchestrator: orchestrator,
		logger:       log.With(slog.String("handler", "chat")),
	}
}

// Register mounts POST /chat/stream.
func (h *ChatHandler) Register(e *echo.Echo) {
	e.POST("/chat/stream", h.StreamChat)
}

// StreamChat runs one chat turn as an NDJSON event stream. Validation and
// routing happen before the streaming headers go out, so bad requests still
// get a proper 4xx.
func (h *ChatHandler) StreamChat(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	var req chat.Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	turn, err := h.orchestrator.Prepare(c.Request().Context(), userID, req)
	if err != nil {
		if errors.Is(err, chat.ErrInvalidRequest) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "streaming not supported")
	}

	c.Response().Header().Set(echo.HeaderContentType, "application/x-ndjson")
	c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
	c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
	c.Response().WriteHeader(http.StatusOK)

	sink := stream.NewNDJSONSink(bufio.NewWriter(c.Response().Writer), flusher)
	if err := h.orchestrator.Stream(c.Request().Context(), turn, sink); err != nil {
		// The terminal event already went out (or the client is gone); the
		// HTTP exchange itself succeeded.
		h.logger.Warn("chat stream ended with error", slog.Any("error", err))
	}
	return nil
}
