package limiter

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	fails        int
	updatedAt    time.Time
	blockedUntil time.Time
}

// Memory is a process-local limiter with the same window/lockout rules as PG.
type Memory struct {
	mu       sync.Mutex
	entries  map[string]*memEntry
	window   time.Duration
	maxFails int
	blockFor time.Duration
	now      func() time.Time
}

// NewMemory constructs an in-process limiter.
func NewMemory(window time.Duration, maxFails int, blockFor time.Duration) *Memory {
	return &Memory{
		entries:  map[string]*memEntry{},
		window:   window,
		maxFails: maxFails,
		blockFor: blockFor,
		now:      time.Now,
	}
}

func (l *Memory) Allow(_ context.Context, key []byte) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[string(key)]
	if !ok {
		return true, 0, nil
	}
	if wait := e.blockedUntil.Sub(l.now()); wait > 0 {
		return false, wait, nil
	}
	return true, 0, nil
}

func (l *Memory) Success(_ context.Context, key []byte) error {
	l.mu.Lock()
	delete(l.entries, string(key))
	l.mu.Unlock()
	return nil
}

func (l *Memory) Failure(_ context.Context, key []byte) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	e, ok := l.entries[string(key)]
	if !ok || now.Sub(e.updatedAt) > l.window {
		e = &memEntry{}
		l.entries[string(key)] = e
	}
	e.fails++
	e.updatedAt = now
	if e.fails >= l.maxFails {
		e.blockedUntil = now.Add(l.blockFor)
		return true, l.blockFor, nil
	}
	return false, 0, nil
}
