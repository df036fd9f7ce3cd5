package limiter

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/and161185/timetable-client/internal/errs"
	"github.com/and161185/timetable-client/internal/repository"
)

// KeyPrefix namespaces limiter entries inside a session store. They are not
// session keys, so logout keeps them.
const KeyPrefix = "login_limiter:"

type kvEntry struct {
	Fails        int       `json:"fails"`
	UpdatedAt    time.Time `json:"updated_at"`
	BlockedUntil time.Time `json:"blocked_until,omitempty"`
}

// Store keeps limiter state in a repository.KV so it survives between
// short-lived CLI processes sharing one store.
type Store struct {
	kv       repository.KV
	window   time.Duration
	maxFails int
	blockFor time.Duration
	now      func() time.Time
}

// NewStore constructs a limiter persisted in kv.
func NewStore(kv repository.KV, window time.Duration, maxFails int, blockFor time.Duration) *Store {
	return &Store{kv: kv, window: window, maxFails: maxFails, blockFor: blockFor, now: time.Now}
}

func (l *Store) entryKey(key []byte) string { return KeyPrefix + hex.EncodeToString(key) }

func (l *Store) load(ctx context.Context, key []byte) (kvEntry, bool, error) {
	v, err := l.kv.Get(ctx, l.entryKey(key))
	if errors.Is(err, errs.ErrNotFound) {
		return kvEntry{}, false, nil
	}
	if err != nil {
		return kvEntry{}, false, err
	}
	var e kvEntry
	if err := json.Unmarshal([]byte(v), &e); err != nil {
		// unreadable state counts as a clean slate
		return kvEntry{}, false, nil
	}
	return e, true, nil
}

func (l *Store) Allow(ctx context.Context, key []byte) (bool, time.Duration, error) {
	e, ok, err := l.load(ctx, key)
	if err != nil || !ok {
		return err == nil, 0, err
	}
	if wait := e.BlockedUntil.Sub(l.now()); wait > 0 {
		return false, wait, nil
	}
	return true, 0, nil
}

func (l *Store) Success(ctx context.Context, key []byte) error {
	return l.kv.Remove(ctx, l.entryKey(key))
}

func (l *Store) Failure(ctx context.Context, key []byte) (bool, time.Duration, error) {
	e, ok, err := l.load(ctx, key)
	if err != nil {
		return false, 0, err
	}
	now := l.now()
	if !ok || now.Sub(e.UpdatedAt) > l.window {
		e = kvEntry{}
	}
	e.Fails++
	e.UpdatedAt = now
	blocked := e.Fails >= l.maxFails
	if blocked {
		e.BlockedUntil = now.Add(l.blockFor)
	}
	b, err := json.Marshal(e)
	if err != nil {
		return false, 0, err
	}
	if err := l.kv.Set(ctx, l.entryKey(key), string(b)); err != nil {
		return false, 0, err
	}
	if blocked {
		return true, l.blockFor, nil
	}
	return false, 0, nil
}
