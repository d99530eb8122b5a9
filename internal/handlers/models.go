package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lumenhq/lumen/internal/variant"
)

// ModelsHandler serves the closed variant list for the client picker.
type ModelsHandler struct {
	logger *slog.Logger
}

// NewModelsHandler creates the models handler.
func NewModelsHandler(log *slog.Logger) *ModelsHandler {
	return &ModelsHandler{logger: log.With(slog.String("handler", "models"))}
}

// Register mounts GET /models.
func (h *ModelsHandler) Register(e *echo.Echo) {
	e.GET("/models", h.List)
}

type modelInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// List returns the selectable identifiers: the auto pseudo-entry first, then
// every resolved variant.
func (h *ModelsHandler) List(c echo.Context) error {
	models := []modelInfo{{ID: string(variant.Auto), DisplayName: "Auto"}}
	for _, spec := range variant.All() {
		models = append(models, modelInfo{
			ID:          string(spec.Variant),
			DisplayName: spec.DisplayName,
		})
	}
	return c.JSON(http.StatusOK, models)
}
