// Package upload persists image bytes to both sinks: durable object storage
// for display and the provider's ephemeral file store for continuity.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lumenhq/lumen/internal/storage"
)

// Kind selects the storage namespace folder for an asset.
type Kind int

const (
	// KindAttachment is a file the user uploaded.
	KindAttachment Kind = iota
	// KindGenerated is an image the model produced.
	KindGenerated
)

// Result reports the two sink outcomes. Either handle may be empty when its
// write failed; callers decide whether partial success is acceptable.
type Result struct {
	StorageKey       string
	DisplayHandle    string
	ContinuityHandle string
}

// Complete reports whether both sinks succeeded.
func (r Result) Complete() bool {
	return r.DisplayHandle != "" && r.ContinuityHandle != ""
}

// FileUploader is the provider's ephemeral file store.
type FileUploader interface {
	UploadFile(ctx context.Context, reader io.Reader, mime string) (string, error)
}

// Service performs the dual-sink write.
type Service struct {
	provider storage.Provider
	files    FileUploader
	logger   *slog.Logger
}

// NewService creates a dual-sink upload service.
func NewService(log *slog.Logger, provider storage.Provider, files FileUploader) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		provider: provider,
		files:    files,
		logger:   log.With(slog.String("service", "upload")),
	}
}

// Store spools data once to a local temp file and runs both sink writes
// concurrently over it. A failed write empties its handle in the Result and
// is logged; Store returns an error only when both sinks fail.
func (s *Service) Store(ctx context.Context, userID string, kind Kind, mime string, data []byte) (Result, error) {
	if len(data) == 0 {
		return Result{}, fmt.Errorf("asset payload is empty")
	}

	tempPath, err := spool(data)
	if err != nil {
		return Result{}, fmt.Errorf("spool asset: %w", err)
	}
	defer func() {
		_ = os.Remove(tempPath)
	}()

	name := uuid.NewString() + extensionFromMime(mime)
	key := storage.AttachmentKey(userID, name)
	if kind == KindGenerated {
		key = storage.GeneratedKey(userID, name)
	}

	result := Result{StorageKey: key}
	var storageErr, continuityErr error

	var group errgroup.Group
	group.Go(func() error {
		f, err := os.Open(tempPath)
		if err != nil {
			storageErr = err
			return nil
		}
		defer f.Close()
		if err := s.provider.Put(ctx, key, f); err != nil {
			storageErr = err
			return nil
		}
		result.DisplayHandle = s.provider.AccessPath(key)
		return nil
	})
	group.Go(func() error {
		continuityErr = retry.Do(
			func() error {
				f, err := os.Open(tempPath)
				if err != nil {
					return err
				}
				defer f.Close()
				uri, err := s.files.UploadFile(ctx, f, mime)
				if err != nil {
					return err
				}
				result.ContinuityHandle = uri
				return nil
			},
			retry.Attempts(2),
			retry.Context(ctx),
			retry.LastErrorOnly(true),
		)
		return nil
	})
	_ = group.Wait()

	if storageErr != nil {
		s.logger.Warn("durable storage write failed", slog.String("key", key), slog.Any("error", storageErr))
	}
	if continuityErr != nil {
		s.logger.Warn("provider file write failed", slog.Any("error", continuityErr))
	}
	if storageErr != nil && continuityErr != nil {
		return result, fmt.Errorf("both sinks failed: storage: %v; provider: %v", storageErr, continuityErr)
	}
	return result, nil
}

func spool(data []byte) (string, error) {
	tempFile, err := os.CreateTemp("", "lumen-upload-*")
	if err != nil {
		return "", err
	}
	tempPath := tempFile.Name()
	if _, err := io.Copy(tempFile, bytes.NewReader(data)); err != nil {
		_ = tempFile.Close()
		_ = os.Remove(tempPath)
		return "", err
	}
	if err := tempFile.Close(); err != nil {
		_ = os.Remove(tempPath)
		return "", err
	}
	return tempPath, nil
}

func extensionFromMime(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "application/pdf":
		return ".pdf"
	case "image/png":
		return ".png"
	default:
		return ".bin"
	}
}
