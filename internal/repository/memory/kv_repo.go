// Package memory contains an in-process implementation of repository.KV.
package memory

import (
	"context"
	"sync"

	"github.com/and161185/timetable-client/internal/errs"
)

// KV keeps entries in a map. The zero value is not usable; call NewKV.
type KV struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewKV returns an empty store.
func NewKV() *KV { return &KV{data: map[string]string{}} }

func (s *KV) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return "", errs.ErrNotFound
	}
	return v, nil
}

func (s *KV) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	s.data[key] = value
	s.mu.Unlock()
	return nil
}

func (s *KV) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}

// SetMany writes all entries under one lock.
func (s *KV) SetMany(_ context.Context, entries map[string]string) error {
	s.mu.Lock()
	for k, v := range entries {
		s.data[k] = v
	}
	s.mu.Unlock()
	return nil
}

// RemoveMany drops all keys under one lock.
func (s *KV) RemoveMany(_ context.Context, keys ...string) error {
	s.mu.Lock()
	for _, k := range keys {
		delete(s.data, k)
	}
	s.mu.Unlock()
	return nil
}

// Len reports the number of stored entries.
func (s *KV) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
