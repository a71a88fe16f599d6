package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FSProvider stores objects under a local root directory. Used by the CLI
// ingest path and by tests; PublicURL joins the configured base URL.
type FSProvider struct {
	root    string
	baseURL string
}

// NewFSProvider creates a filesystem provider rooted at root.
func NewFSProvider(root, baseURL string) (*FSProvider, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &FSProvider{root: root, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

func (p *FSProvider) localPath(key string) (string, error) {
	clean := filepath.Clean(strings.TrimPrefix(key, "/"))
	if clean == "." || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid storage key: %q", key)
	}
	return filepath.Join(p.root, clean), nil
}

// Put writes the object, creating parent directories as needed.
func (p *FSProvider) Put(ctx context.Context, key string, reader io.Reader, contentType string) error {
	path, err := p.localPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create object: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, reader); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("write object: %w", err)
	}
	return nil
}

// Open returns a reader for the stored object.
func (p *FSProvider) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := p.localPath(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// Delete removes the stored object. Missing objects are not an error.
func (p *FSProvider) Delete(ctx context.Context, key string) error {
	path, err := p.localPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// PublicURL joins the base URL and key; with no base URL configured it
// returns the local path form.
func (p *FSProvider) PublicURL(key string) string {
	key = strings.TrimPrefix(key, "/")
	if p.baseURL == "" {
		return filepath.Join(p.root, filepath.FromSlash(key))
	}
	return p.baseURL + "/" + key
}
