package store

import (
	"context"
	"sync"

	"github.com/viant/obpel/service/dao"
)

// MemoryStore is a generic in-memory implementation of dao.Service.
// It keeps entities of type *T mapped by a comparable key K obtained from
// the keySelector. List applies the optional filter to every record.
type MemoryStore[K comparable, T any] struct {
	mu          sync.RWMutex
	records     map[K]*T
	keySelector func(*T) K
	filter      func(*T, []*dao.Parameter) bool
}

// NewMemoryStore creates a new MemoryStore. filter may be nil.
func NewMemoryStore[K comparable, T any](keySelector func(*T) K, filter func(*T, []*dao.Parameter) bool) *MemoryStore[K, T] {
	return &MemoryStore[K, T]{
		records:     make(map[K]*T),
		keySelector: keySelector,
		filter:      filter,
	}
}

// Save stores or overwrites a record.
func (s *MemoryStore[K, T]) Save(_ context.Context, v *T) error {
	if v == nil {
		return dao.ErrNilEntity
	}
	key := s.keySelector(v)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = v
	return nil
}

// Load returns a record by key, or dao.ErrNotFound.
func (s *MemoryStore[K, T]) Load(_ context.Context, key K) (*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.records[key]
	if !ok {
		return nil, dao.ErrNotFound
	}
	return v, nil
}

// Delete removes a record, or returns dao.ErrNotFound.
func (s *MemoryStore[K, T]) Delete(_ context.Context, key K) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; !ok {
		return dao.ErrNotFound
	}
	delete(s.records, key)
	return nil
}

// List returns the stored records accepted by the filter.
func (s *MemoryStore[K, T]) List(_ context.Context, parameters ...*dao.Parameter) ([]*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*T, 0, len(s.records))
	for _, v := range s.records {
		if s.filter != nil && !s.filter(v, parameters) {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}
