package storage

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"
)

// MemoryProvider keeps objects in a map. Intended for tests and local dry
// runs; mirrors the commit-on-close semantics of the GCS writer.
type MemoryProvider struct {
	mu      sync.Mutex
	objects map[string][]byte
}

// NewMemoryProvider returns an empty in-memory blob store.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{objects: make(map[string][]byte)}
}

// NewWriter returns a writer that commits the object on Close.
func (m *MemoryProvider) NewWriter(_ context.Context, objectName string) (io.WriteCloser, error) {
	return &memoryWriter{provider: m, name: objectName}, nil
}

// Object returns a committed object's bytes and whether it exists.
func (m *MemoryProvider) Object(name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[name]
	return data, ok
}

// Len reports how many objects have been committed.
func (m *MemoryProvider) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// Names lists the committed object names, sorted.
func (m *MemoryProvider) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.objects))
	for name := range m.objects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type memoryWriter struct {
	provider *MemoryProvider
	name     string
	buf      bytes.Buffer
}

func (w *memoryWriter) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *memoryWriter) Close() error {
	w.provider.mu.Lock()
	defer w.provider.mu.Unlock()
	w.provider.objects[w.name] = append([]byte(nil), w.buf.Bytes()...)
	return nil
}
