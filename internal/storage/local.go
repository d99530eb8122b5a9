package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// LocalProvider stores objects as files under a root directory. Keys map to
// relative paths; AccessPath returns a URL served by the files handler.
type LocalProvider struct {
	root    string
	baseURL string
}

// NewLocalProvider creates a filesystem-backed provider rooted at root.
func NewLocalProvider(root, baseURL string) (*LocalProvider, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalProvider{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

func (p *LocalProvider) resolve(key string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(key))
	if cleaned == "." || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid storage key: %s", key)
	}
	return filepath.Join(p.root, cleaned), nil
}

// Put writes the object atomically: spool to a temp file, then rename.
func (p *LocalProvider) Put(ctx context.Context, key string, reader io.Reader) error {
	target, err := p.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".put-*")
	if err != nil {
		return fmt.Errorf("create temp object: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, reader); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close object: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("finalize object: %w", err)
	}
	return nil
}

// Open returns a reader for the object at key.
func (p *LocalProvider) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	target, err := p.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open object: %w", err)
	}
	return f, nil
}

// Delete removes the object at key.
func (p *LocalProvider) Delete(ctx context.Context, key string) error {
	target, err := p.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// AccessPath returns the display URL for a key. The key is encoded as a
// single path segment, matching what the files handler decodes.
func (p *LocalProvider) AccessPath(key string) string {
	return p.baseURL + "/files/" + url.PathEscape(key)
}
