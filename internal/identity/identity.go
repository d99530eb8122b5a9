// Package identity validates opaque user identifiers used for storage namespacing.
package identity

import (
	"fmt"
	"strings"
)

const maxUserIDLength = 128

// ValidateUserID enforces a conservative charset so user ids are safe to use
// as storage path segments.
func ValidateUserID(id string) error {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return fmt.Errorf("user id is required")
	}
	if len(trimmed) > maxUserIDLength {
		return fmt.Errorf("user id too long")
	}
	for _, r := range trimmed {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return fmt.Errorf("user id contains invalid character %q", r)
		}
	}
	return nil
}
