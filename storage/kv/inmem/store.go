package inmemkv

import (
	"context"
	"sync"

	"github.com/unitrack/unitrack/core"
)

// Store is a process-local KVStore; the default when no Redis is configured
// and the store used by tests.
type Store struct {
	mutex sync.RWMutex
	table map[string][]byte
}

var _ core.KVStore = (*Store)(nil)

func NewStore() *Store {
	return &Store{table: make(map[string][]byte)}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	val, ok := s.table[key]
	if !ok {
		return nil, core.ErrKeyNotFound
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	val := make([]byte, len(value))
	copy(val, value)
	s.table[key] = val
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.table, key)
	return nil
}

// SetRaw stores value without copying; test helper for injecting corrupt payloads.
func (s *Store) SetRaw(key, value string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.table[key] = []byte(value)
}
