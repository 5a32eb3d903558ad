package fetch

import (
	"fmt"
	"sort"
	"sync"
)

// AdapterFactory constructs one adapter instance. Factories run at most once
// per key; the result is memoized for the process lifetime.
type AdapterFactory func() (Adapter, error)

// Registry maps adapter keys to statically-linked adapter implementations.
// Registration happens at startup; resolution is a map lookup plus a
// capability check, cached since adapters are static per deployment.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]AdapterFactory
	resolved  map[string]Adapter
}

// NewRegistry returns an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]AdapterFactory),
		resolved:  make(map[string]Adapter),
	}
}

// Register binds an adapter key to its factory. Re-registering a key is a
// programming error and fails loudly.
func (r *Registry) Register(key string, factory AdapterFactory) error {
	if key == "" {
		return fmt.Errorf("adapter key must not be empty")
	}
	if factory == nil {
		return fmt.Errorf("adapter factory for %q must not be nil", key)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[key]; exists {
		return fmt.Errorf("adapter %q already registered", key)
	}
	r.factories[key] = factory
	return nil
}

// Resolve returns the adapter for key, constructing and caching it on first
// use. Fails with ErrAdapterNameInvalid for unknown keys,
// ErrAdapterModuleInvalid when the adapter exposes neither capability, and
// *AdapterResolveError when the factory itself fails.
func (r *Registry) Resolve(key string) (Adapter, error) {
	r.mu.RLock()
	if a, ok := r.resolved[key]; ok {
		r.mu.RUnlock()
		return a, nil
	}
	factory, ok := r.factories[key]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrAdapterNameInvalid, key)
	}

	adapter, err := factory()
	if err != nil {
		return nil, &AdapterResolveError{Key: key, Err: err}
	}
	if !hasCapability(adapter) {
		return nil, fmt.Errorf("%w: %q exposes neither FetchBatch nor FetchStream", ErrAdapterModuleInvalid, key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Another goroutine may have resolved the same key; keep the first.
	if cached, ok := r.resolved[key]; ok {
		return cached, nil
	}
	r.resolved[key] = adapter
	return adapter, nil
}

// Keys lists the registered adapter keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.factories))
	for k := range r.factories {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func hasCapability(a Adapter) bool {
	if a == nil {
		return false
	}
	if _, ok := a.(BatchFetcher); ok {
		return true
	}
	_, ok := a.(StreamFetcher)
	return ok
}
