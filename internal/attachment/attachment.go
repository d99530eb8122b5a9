// Package attachment resolves client-supplied file references into upstream
// request parts.
package attachment

import (
	"strings"
	"time"
)

// Attachment is a client-supplied file reference. Before an upstream call,
// exactly one of InlineBytes or ContinuityHandle must be set. DisplayHandle
// is UI-only and never sent upstream.
type Attachment struct {
	MimeType         string `json:"mimeType"`
	Name             string `json:"name,omitempty"`
	InlineBytes      string `json:"inlineBytes,omitempty"`
	DisplayHandle    string `json:"displayHandle,omitempty"`
	ContinuityHandle string `json:"continuityHandle,omitempty"`
}

// HasPayload reports whether the attachment can be sent upstream at all.
func (a Attachment) HasPayload() bool {
	return strings.TrimSpace(a.InlineBytes) != "" || strings.TrimSpace(a.ContinuityHandle) != ""
}

// ContinuityWindow is the approximate provider-side lifetime of a continuity
// handle; persisted attachments drop the handle past this point.
const ContinuityWindow = 48 * time.Hour

// NormalizeMime normalizes MIME to lowercase token form.
func NormalizeMime(raw string) string {
	mime := strings.ToLower(strings.TrimSpace(raw))
	if mime == "" {
		return ""
	}
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = strings.TrimSpace(mime[:idx])
	}
	return mime
}

// IsMediaMime reports whether mime belongs to one of the four inlineable
// media families.
func IsMediaMime(mime string) bool {
	mime = NormalizeMime(mime)
	return strings.HasPrefix(mime, "image/") ||
		strings.HasPrefix(mime, "video/") ||
		strings.HasPrefix(mime, "audio/") ||
		mime == "application/pdf"
}

// NormalizeToolMime maps an attachment MIME to one the upstream tool sandbox
// accepts. Media families pass unchanged; everything else (source code, JSON,
// markup) is coerced to plain text, because the sandbox hard-rejects a long
// closed list of exotic source MIME types and coercion is safer than
// allow-listing.
func NormalizeToolMime(mime string) string {
	normalized := NormalizeMime(mime)
	if IsMediaMime(normalized) {
		return normalized
	}
	return "text/plain"
}
