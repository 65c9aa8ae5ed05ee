package blob

import (
	"context"
	"sync"
)

// MemoryStore keeps objects in a map. Used by tests and the memory:// DSN.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: map[string][]byte{}}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryStore) Put(_ context.Context, key string, data []byte, opts ...PutOption) error {
	o := applyPutOptions(opts)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.objects[key]; exists && o.IfNoneMatch {
		return ErrPreconditionFailed
	}
	s.objects[key] = append([]byte(nil), data...)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return ErrNotFound
	}
	delete(s.objects, key)
	return nil
}

func (s *MemoryStore) List(_ context.Context, prefix, delimiter string) (ListResult, error) {
	s.mu.Lock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	s.mu.Unlock()
	return collate(keys, prefix, delimiter), nil
}

func (s *MemoryStore) Close() error { return nil }

// Keys returns every key currently stored, sorted.
func (s *MemoryStore) Keys() []string {
	res, _ := s.List(context.Background(), "", "")
	return res.Objects
}
