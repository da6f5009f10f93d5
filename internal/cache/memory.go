// ABOUTME: In-memory cache storage used by tests
// ABOUTME: Keeps generations in creation order with per-generation key order

package cache

import (
	"context"
	"slices"
	"sync"
)

// MemoryStorage is an in-memory Storage implementation.
type MemoryStorage struct {
	mu    sync.Mutex
	order []string
	gens  map[string]*memoryGeneration
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{gens: make(map[string]*memoryGeneration)}
}

// Open returns the named generation, creating it if needed.
func (s *MemoryStorage) Open(ctx context.Context, name string) (Generation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.gens[name]
	if !ok {
		g = &memoryGeneration{name: name, responses: make(map[string]*Response)}
		s.gens[name] = g
		s.order = append(s.order, name)
	}
	return g, nil
}

// Names lists generations oldest first.
func (s *MemoryStorage) Names(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.order), nil
}

// Delete removes a generation.
func (s *MemoryStorage) Delete(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.gens[name]; !ok {
		return false, nil
	}
	delete(s.gens, name)
	s.order = slices.DeleteFunc(s.order, func(n string) bool { return n == name })
	return true, nil
}

// Close is a no-op for MemoryStorage.
func (s *MemoryStorage) Close() error {
	return nil
}

type memoryGeneration struct {
	name      string
	mu        sync.RWMutex
	keys      []string
	responses map[string]*Response
}

func (g *memoryGeneration) Name() string { return g.name }

func (g *memoryGeneration) Match(ctx context.Context, key string) (*Response, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	resp, ok := g.responses[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return resp.Clone(), nil
}

func (g *memoryGeneration) Put(ctx context.Context, key string, resp *Response) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.putLocked(key, resp)
	return nil
}

func (g *memoryGeneration) PutAll(ctx context.Context, entries []Entry) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, e := range entries {
		g.putLocked(e.Key, e.Response)
	}
	return nil
}

func (g *memoryGeneration) putLocked(key string, resp *Response) {
	if _, exists := g.responses[key]; !exists {
		g.keys = append(g.keys, key)
	}
	g.responses[key] = resp.Clone()
}

func (g *memoryGeneration) Keys(ctx context.Context) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Clone(g.keys), nil
}
