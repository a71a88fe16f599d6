// Package preview produces ephemeral preview assets and durable thumbnails.
// Ephemeral references live in a per-session Registry instead of ambient
// global state, so every handle is released exactly once on either upload
// or removal.
package preview

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// Registry tracks ephemeral local preview files for one caller session.
type Registry struct {
	mu      sync.Mutex
	dir     string
	ownsDir bool
	refs    map[string]string // item id -> local path
}

// NewRegistry creates a registry whose preview files live under dir
// (a fresh temp directory when dir is empty).
func NewRegistry(dir string) (*Registry, error) {
	ownsDir := false
	if dir == "" {
		tmp, err := os.MkdirTemp("", "mediaflow-preview-*")
		if err != nil {
			return nil, fmt.Errorf("create preview dir: %w", err)
		}
		dir = tmp
		ownsDir = true
	}
	return &Registry{dir: dir, ownsDir: ownsDir, refs: make(map[string]string)}, nil
}

// Acquire writes data as the ephemeral preview for item id and records the
// reference. Acquiring twice for one id is a programming error.
func (r *Registry) Acquire(id string, data []byte, ext string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.refs[id]; exists {
		return "", fmt.Errorf("preview already acquired for %q", id)
	}
	path := filepath.Join(r.dir, uuid.NewString()+ext)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write preview: %w", err)
	}
	r.refs[id] = path
	return path, nil
}

// Release revokes the preview reference for id and deletes its file. It
// returns true when a live reference was released; releasing an unknown or
// already-released id is a no-op, which keeps the release-exactly-once
// contract on every exit path.
func (r *Registry) Release(id string) bool {
	r.mu.Lock()
	path, ok := r.refs[id]
	if ok {
		delete(r.refs, id)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	_ = os.Remove(path)
	return true
}

// Len reports the number of live references.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.refs)
}

// Close releases every remaining reference and deletes the temp directory
// when the registry created it. Used on batch abort.
func (r *Registry) Close() {
	r.mu.Lock()
	refs := r.refs
	r.refs = make(map[string]string)
	r.mu.Unlock()

	for _, path := range refs {
		_ = os.Remove(path)
	}
	if r.ownsDir {
		_ = os.RemoveAll(r.dir)
	}
}
