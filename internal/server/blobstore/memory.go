package blobstore

import (
	"bytes"
	"context"
	"io"
	"maps"
	"net/url"
	"sync"

	"github.com/dmitrijs2005/payslips/internal/common"
)

// MemoryStore is an in-process Store for local runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]Object
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]Object)}
}

func (m *MemoryStore) Put(_ context.Context, obj Object) error {
	obj.Body = bytes.Clone(obj.Body)
	obj.Metadata = maps.Clone(obj.Metadata)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[obj.Key] = obj
	return nil
}

func (m *MemoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, common.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.Body)), nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *MemoryStore) URL(_ context.Context, key string) (string, error) {
	return (&url.URL{Scheme: "memory", Path: "/" + key}).String(), nil
}

func (m *MemoryStore) Ping(context.Context) error {
	return nil
}

// Object returns a stored object by key.
func (m *MemoryStore) Object(key string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	return obj, ok
}

// Len reports how many objects are stored.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
