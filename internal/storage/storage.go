// Package storage defines the Provider interface for object storage backends.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
)

// ErrNotFound is returned when a storage key does not exist.
var ErrNotFound = errors.New("object not found")

// Provider abstracts object storage operations.
type Provider interface {
	// Put writes data to storage under the given key.
	Put(ctx context.Context, key string, reader io.Reader) error
	// Open returns a reader for the given storage key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the object at key. Deleting a missing key returns
	// ErrNotFound.
	Delete(ctx context.Context, key string) error
	// AccessPath returns a consumer-accessible URL for a storage key.
	AccessPath(key string) string
}

// Object keys are namespaced by the owning user: uploads the user attached
// and images the model generated live under separate prefixes.
const (
	userPrefix       = "users"
	attachmentFolder = "attachments"
	generatedFolder  = "generated"
)

// AttachmentKey builds the storage key for a user-uploaded attachment.
func AttachmentKey(userID, name string) string {
	return path.Join(userPrefix, userID, attachmentFolder, name)
}

// GeneratedKey builds the storage key for a model-generated asset.
func GeneratedKey(userID, name string) string {
	return path.Join(userPrefix, userID, generatedFolder, name)
}

// OwnedBy reports whether key lives inside the given user's namespace.
func OwnedBy(key, userID string) bool {
	prefix := path.Join(userPrefix, userID) + "/"
	return len(key) > len(prefix) && key[:len(prefix)] == prefix
}
