// Package memory provides a process-local slot store with an optional byte
// quota.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/objectfs/jailstore/internal/storage"
)

// Store keeps slots in a map. The zero quota means unlimited.
type Store struct {
	mu       sync.RWMutex
	slots    map[string][]byte
	used     int64
	maxBytes int64
}

var _ storage.SlotStore = (*Store)(nil)

// New creates a store holding at most maxBytes of keys and values.
func New(maxBytes int64) *Store {
	return &Store{
		slots:    make(map[string][]byte),
		maxBytes: maxBytes,
	}
}

// Get returns a copy of the stored value.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.slots[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrSlotNotFound, key)
	}
	return append([]byte(nil), data...), nil
}

// Put stores a copy of data, failing with ErrQuotaExceeded when the
// replacement would exceed the quota.
func (s *Store) Put(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	used := s.used + entrySize(key, data)
	if old, ok := s.slots[key]; ok {
		used -= entrySize(key, old)
	}
	if s.maxBytes > 0 && used > s.maxBytes {
		return fmt.Errorf("%w: %s needs %d of %d bytes", storage.ErrQuotaExceeded, key, used, s.maxBytes)
	}

	s.slots[key] = append([]byte(nil), data...)
	s.used = used
	return nil
}

// Delete removes key.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.slots[key]; ok {
		s.used -= entrySize(key, old)
		delete(s.slots, key)
	}
	return nil
}

// Used returns the bytes currently accounted against the quota.
func (s *Store) Used() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.used
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

func entrySize(key string, data []byte) int64 {
	return int64(len(key) + len(data))
}
