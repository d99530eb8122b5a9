package history

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"google.golang.org/genai"

	"github.com/lumenhq/lumen/internal/attachment"
	"github.com/lumenhq/lumen/internal/storage"
	"github.com/lumenhq/lumen/internal/variant"
)

// maxReembedBytes bounds a single re-fetched image; anything bigger is skipped.
const maxReembedBytes = 8 << 20

// Compactor bounds full conversation history into the window a variant
// accepts and re-embeds prior generated images where the variant needs them.
type Compactor struct {
	provider storage.Provider
	logger   *slog.Logger
}

// NewCompactor creates a history compactor backed by the given object storage.
func NewCompactor(log *slog.Logger, provider storage.Provider) *Compactor {
	if log == nil {
		log = slog.Default()
	}
	return &Compactor{
		provider: provider,
		logger:   log.With(slog.String("service", "compactor")),
	}
}

// Compact truncates turns to the variant's history bound and converts them to
// upstream wire shape. For image variants, the model's own prior generated
// images are re-fetched from durable storage and re-embedded as inline bytes
// carrying the turn's continuity signature: the provider cannot reason over
// images it generated earlier unless they come back as signed inline content.
//
// Re-embedding selects the newest MaxReembed images across the whole
// truncated window (not newest-per-message); selection is stable because it
// follows append order.
func (c *Compactor) Compact(ctx context.Context, turns []Turn, spec variant.Spec) ([]*genai.Content, error) {
	window := turns
	if spec.HistoryTurns > 0 && len(window) > spec.HistoryTurns {
		window = window[len(window)-spec.HistoryTurns:]
	}

	reembed := c.selectReembeds(window, spec)

	contents := make([]*genai.Content, 0, len(window))
	for _, turn := range window {
		content := c.turnContent(ctx, turn, reembed)
		if content != nil {
			contents = append(contents, content)
		}
	}
	return contents, nil
}

// selectReembeds picks which image handles get re-inlined: newest first
// across the window, capped at spec.MaxReembed.
func (c *Compactor) selectReembeds(window []Turn, spec variant.Spec) map[string]bool {
	if !spec.ReembedImages {
		return nil
	}
	cap := spec.MaxReembed
	if cap <= 0 {
		cap = 6
	}

	selected := make(map[string]bool)
	for i := len(window) - 1; i >= 0 && len(selected) < cap; i-- {
		turn := window[i]
		if turn.Role != RoleModel {
			continue
		}
		for j := len(turn.ImageHandles) - 1; j >= 0 && len(selected) < cap; j-- {
			selected[turn.ImageHandles[j]] = true
		}
	}
	return selected
}

func (c *Compactor) turnContent(ctx context.Context, turn Turn, reembed map[string]bool) *genai.Content {
	signature := decodeSignature(turn.ThoughtSignature)

	var parts []*genai.Part
	for _, att := range turn.Attachments {
		handle := strings.TrimSpace(att.ContinuityHandle)
		if handle == "" {
			// Persisted history keeps only display handles; nothing to send.
			continue
		}
		parts = append(parts, genai.NewPartFromURI(handle, attachment.NormalizeToolMime(att.MimeType)))
	}

	if turn.Role == RoleModel {
		for _, handle := range turn.ImageHandles {
			if !reembed[handle] {
				continue
			}
			part, err := c.fetchImagePart(ctx, handle)
			if err != nil {
				c.logger.Warn("re-embed image failed",
					slog.String("handle", handle), slog.Any("error", err))
				continue
			}
			part.ThoughtSignature = signature
			parts = append(parts, part)
		}
	}

	if strings.TrimSpace(turn.Text) != "" {
		part := genai.NewPartFromText(turn.Text)
		if turn.Role == RoleModel {
			part.ThoughtSignature = signature
		}
		parts = append(parts, part)
	}

	if len(parts) == 0 {
		return nil
	}
	role := genai.Role(genai.RoleUser)
	if turn.Role == RoleModel {
		role = genai.RoleModel
	}
	return genai.NewContentFromParts(parts, role)
}

func (c *Compactor) fetchImagePart(ctx context.Context, displayURL string) (*genai.Part, error) {
	key, err := storage.ExtractKey(displayURL)
	if err != nil {
		return nil, err
	}
	reader, err := c.provider.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open stored image: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(io.LimitReader(reader, maxReembedBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read stored image: %w", err)
	}
	if len(data) > maxReembedBytes {
		return nil, fmt.Errorf("stored image exceeds %d bytes", maxReembedBytes)
	}
	return &genai.Part{
		InlineData: &genai.Blob{MIMEType: mimeFromKey(key), Data: data},
	}, nil
}

func decodeSignature(signature string) []byte {
	trimmed := strings.TrimSpace(signature)
	if trimmed == "" {
		return nil
	}
	decoded, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		// Opaque token from an incompatible source; dropping it degrades
		// continuity quality, never correctness.
		return nil
	}
	return decoded
}

func mimeFromKey(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/png"
	}
}
