package storage

import (
	"fmt"
	"net/url"
	"strings"
)

// ExtractKey resolves a display URL back to the storage key it references.
// Two URL shapes are in circulation and both must resolve:
//
//	.../files/users%2Falice%2Fgenerated%2Fa.png    (encoded single segment)
//	.../o/users%2Falice%2Fgenerated%2Fa.png?alt=media  (object-endpoint form)
//
// plus the raw path spelling .../files/users/alice/generated/a.png that older
// clients produced. Query strings are ignored.
func ExtractKey(displayURL string) (string, error) {
	trimmed := strings.TrimSpace(displayURL)
	if trimmed == "" {
		return "", fmt.Errorf("empty display url")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("parse display url: %w", err)
	}

	// EscapedPath keeps %2F intact so the encoded-segment form survives.
	escaped := parsed.EscapedPath()
	var rest string
	switch {
	case strings.Contains(escaped, "/files/"):
		rest = escaped[strings.Index(escaped, "/files/")+len("/files/"):]
	case strings.Contains(escaped, "/o/"):
		rest = escaped[strings.Index(escaped, "/o/")+len("/o/"):]
	default:
		return "", fmt.Errorf("unrecognized display url shape: %s", trimmed)
	}

	key, err := url.PathUnescape(rest)
	if err != nil {
		return "", fmt.Errorf("decode display url path: %w", err)
	}
	key = strings.Trim(key, "/")
	if !strings.HasPrefix(key, userPrefix+"/") {
		return "", fmt.Errorf("display url outside storage namespace: %s", trimmed)
	}
	return key, nil
}
