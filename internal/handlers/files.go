package handlers

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"

	"github.com/labstack/echo/v4"

	"github.com/lumenhq/lumen/internal/attachment"
	"github.com/lumenhq/lumen/internal/storage"
	"github.com/lumenhq/lumen/internal/upload"
)

// FilesHandler serves attachment upload and durable object access.
type FilesHandler struct {
	uploader *upload.Service
	provider storage.Provider
	logger   *slog.Logger
}

// NewFilesHandler creates the files handler.
func NewFilesHandler(log *slog.Logger, uploader *upload.Service, provider storage.Provider) *FilesHandler {
	return &FilesHandler{
		uploader: uploader,
		provider: provider,
		logger:   log.With(slog.String("handler", "files")),
	}
}

// Register mounts POST /files and GET /files/*.
func (h *FilesHandler) Register(e *echo.Echo) {
	e.POST("/files", h.Upload)
	e.GET("/files/*", h.Serve)
}

// Upload accepts one multipart file and runs the dual-sink write, upgrading
// the attachment from inline bytes to a pair of handles.
func (h *FilesHandler) Upload(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	header, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file field is required")
	}
	if header.Size > attachment.MaxInlineCallBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file too large")
	}
	file, err := header.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, attachment.MaxInlineCallBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(data) > attachment.MaxInlineCallBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file too large")
	}

	mimeType := attachment.NormalizeMime(header.Header.Get("Content-Type"))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	result, err := h.uploader.Store(c.Request().Context(), userID, upload.KindAttachment, mimeType, data)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "upload failed")
	}

	return c.JSON(http.StatusCreated, attachment.Attachment{
		MimeType:         mimeType,
		Name:             header.Filename,
		DisplayHandle:    result.DisplayHandle,
		ContinuityHandle: result.ContinuityHandle,
	})
}

// Serve streams a stored object back to its owner. The wildcard is the
// storage key; access outside the caller's namespace is rejected before any
// storage lookup.
func (h *FilesHandler) Serve(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	key, err := url.PathUnescape(c.Param("*"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid object key")
	}
	if !storage.OwnedBy(key, userID) {
		return echo.NewHTTPError(http.StatusForbidden, "object outside your namespace")
	}

	reader, err := h.provider.Open(c.Request().Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "object not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	defer reader.Close()

	return c.Stream(http.StatusOK, contentType(key), reader)
}

func contentType(key string) string {
	if t := mime.TypeByExtension(path.Ext(key)); t != "" {
		return t
	}
	return "application/octet-stream"
}
