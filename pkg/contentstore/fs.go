package contentstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/opencontainers/go-digest"
)

const backendFS = "fs"

// fsStore lays blobs out as <root>/<algorithm>/<encoded digest>.
type fsStore struct {
	root string
	mu   sync.RWMutex
}

func NewFS(root string) (Store, error) {
	if err := os.MkdirAll(filepath.Join(root, string(digest.SHA256)), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blobs directory: %w", err)
	}

	return &fsStore{root: root}, nil
}

func (s *fsStore) Put(_ context.Context, data []byte) (string, error) {
	d := digest.FromBytes(data)
	path := s.path(d)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(path); err == nil {
		return locatorFor(backendFS, d), nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".blob-*")
	if err != nil {
		return "", fmt.Errorf("failed to create blob file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()

		return "", fmt.Errorf("failed to write blob file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write blob file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to commit blob file: %w", err)
	}

	return locatorFor(backendFS, d), nil
}

func (s *fsStore) Get(_ context.Context, locator string) ([]byte, error) {
	d, err := parseLocator(backendFS, locator)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(d))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("failed to read blob file: %w", err)
	}
	if err := verify(d, data); err != nil {
		return nil, err
	}

	return data, nil
}

// path is safe for any parsed digest: both parts are validated by go-digest.
func (s *fsStore) path(d digest.Digest) string {
	return filepath.Join(s.root, string(d.Algorithm()), d.Encoded())
}
