package attachment

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

// MaxInlineCallBytes is the hard per-call ceiling for decoded inline payloads.
// Exceeding it is a validation error, never a silent truncation.
const MaxInlineCallBytes = 20 << 20

// ErrPayloadTooLarge is returned when inline attachments exceed the per-call ceiling.
var ErrPayloadTooLarge = fmt.Errorf("inline attachments exceed %d bytes", MaxInlineCallBytes)

// Resolver turns attachments into the part format the generation call accepts.
type Resolver struct {
	logger *slog.Logger
}

// NewResolver creates an attachment resolver.
func NewResolver(log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{logger: log.With(slog.String("service", "attachment"))}
}

// Resolve maps each attachment to an upstream part:
//   - a continuity handle becomes a provider-file reference with a
//     tool-normalized MIME type;
//   - inline bytes of a media family become an inline blob part;
//   - any other inline bytes become a fenced text part labeled with the
//     original filename, so small pasted code files work without a handle.
func (r *Resolver) Resolve(attachments []Attachment) ([]*genai.Part, error) {
	parts := make([]*genai.Part, 0, len(attachments))
	var inlineTotal int64

	for i, att := range attachments {
		mime := NormalizeMime(att.MimeType)

		if handle := strings.TrimSpace(att.ContinuityHandle); handle != "" {
			parts = append(parts, genai.NewPartFromURI(handle, NormalizeToolMime(mime)))
			continue
		}

		inline := strings.TrimSpace(att.InlineBytes)
		if inline == "" {
			return nil, fmt.Errorf("attachment %d (%s) has neither inline bytes nor a continuity handle", i, att.Name)
		}
		data, err := base64.StdEncoding.DecodeString(stripDataURL(inline))
		if err != nil {
			return nil, fmt.Errorf("attachment %d (%s): decode inline bytes: %w", i, att.Name, err)
		}
		inlineTotal += int64(len(data))
		if inlineTotal > MaxInlineCallBytes {
			return nil, ErrPayloadTooLarge
		}

		if IsMediaMime(mime) {
			parts = append(parts, genai.NewPartFromBytes(data, mime))
			continue
		}

		parts = append(parts, genai.NewPartFromText(fencedText(att.Name, data)))
	}
	return parts, nil
}

func stripDataURL(value string) string {
	if !strings.HasPrefix(strings.ToLower(value), "data:") {
		return value
	}
	if idx := strings.Index(value, ","); idx >= 0 {
		return value[idx+1:]
	}
	return value
}

func fencedText(name string, data []byte) string {
	label := strings.TrimSpace(name)
	if label == "" {
		label = "attachment"
	}
	return fmt.Sprintf("Attached file %q:\n```\n%s\n```", label, string(data))
}
