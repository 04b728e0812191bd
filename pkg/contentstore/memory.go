package contentstore

import (
	"context"
	"slices"
	"sync"

	"github.com/opencontainers/go-digest"
)

const backendMemory = "mem"

type memoryStore struct {
	mu    sync.RWMutex
	blobs map[digest.Digest][]byte
}

func NewMemory() Store {
	return &memoryStore{blobs: make(map[digest.Digest][]byte)}
}

func (m *memoryStore) Put(_ context.Context, data []byte) (string, error) {
	d := digest.FromBytes(data)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.blobs[d]; !ok {
		m.blobs[d] = slices.Clone(data)
	}

	return locatorFor(backendMemory, d), nil
}

func (m *memoryStore) Get(_ context.Context, locator string) ([]byte, error) {
	d, err := parseLocator(backendMemory, locator)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	data, ok := m.blobs[d]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if err := verify(d, data); err != nil {
		return nil, err
	}

	return slices.Clone(data), nil
}
