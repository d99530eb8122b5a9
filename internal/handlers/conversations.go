package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lumenhq/lumen/internal/cleanup"
	"github.com/lumenhq/lumen/internal/history"
)

// ConversationsHandler serves the conversation store surface.
type ConversationsHandler struct {
	history *history.Service
	cleanup *cleanup.Reactor
	logger  *slog.Logger
}

// NewConversationsHandler creates the conversations handler.
func NewConversationsHandler(log *slog.Logger, hist *history.Service, reactor *cleanup.Reactor) *ConversationsHandler {
	return &ConversationsHandler{
		history: hist,
		cleanup: reactor,
		logger:  log.With(slog.String("handler", "conversations")),
	}
}

// Register mounts the conversation routes.
func (h *ConversationsHandler) Register(e *echo.Echo) {
	group := e.Group("/conversations")
	group.GET("", h.List)
	group.POST("", h.Create)
	group.GET("/:id", h.Get)
	group.PUT("/:id", h.Rename)
	group.DELETE("/:id", h.Delete)
}

type conversationRequest struct {
	Title string `json:"title"`
}

type conversationDetail struct {
	history.Conversation
	Messages []history.Message `json:"messages"`
}

// List returns the user's conversations, most recent first.
func (h *ConversationsHandler) List(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	conversations, err := h.history.ListConversations(c.Request().Context(), userID)
	if err != nil {
		return conversationHTTPError(err)
	}
	return c.JSON(http.StatusOK, conversations)
}

// Create creates a conversation owned by the caller.
func (h *ConversationsHandler) Create(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	var req conversationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	conv, err := h.history.CreateConversation(c.Request().Context(), userID, req.Title)
	if err != nil {
		return conversationHTTPError(err)
	}
	return c.JSON(http.StatusCreated, conv)
}

// Get returns one conversation with its full message log.
func (h *ConversationsHandler) Get(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	conv, err := h.history.GetConversation(ctx, userID, c.Param("id"))
	if err != nil {
		return conversationHTTPError(err)
	}
	messages, err := h.history.ListMessages(ctx, conv.ID)
	if err != nil {
		return conversationHTTPError(err)
	}
	return c.JSON(http.StatusOK, conversationDetail{Conversation: conv, Messages: messages})
}

// Rename updates a conversation title.
func (h *ConversationsHandler) Rename(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	var req conversationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.history.RenameConversation(c.Request().Context(), userID, c.Param("id"), req.Title); err != nil {
		return conversationHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Delete purges a conversation: stored objects first, then records.
func (h *ConversationsHandler) Delete(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	conv, err := h.history.GetConversation(ctx, userID, c.Param("id"))
	if err != nil {
		return conversationHTTPError(err)
	}
	if err := h.cleanup.Purge(ctx, conv.ID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
