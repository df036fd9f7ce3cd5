// Package sealed wraps another repository.KV and encrypts every value before
// it reaches the backend.
package sealed

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"

	"github.com/and161185/timetable-client/internal/crypto/clientcrypto"
	"github.com/and161185/timetable-client/internal/errs"
	"github.com/and161185/timetable-client/internal/repository"
)

// SaltKey is the plaintext entry holding the KDF salt. It is never removed.
const SaltKey = "store_salt"

const purpose = "timetable-session-v1"

// KV seals values with a key derived from a passphrase. Each value is bound
// to its key name, so entries cannot be swapped on disk.
type KV struct {
	inner repository.KV
	pass  []byte

	mu  sync.Mutex
	key []byte
}

// New returns a sealing decorator over inner.
func New(inner repository.KV, passphrase string) *KV {
	return &KV{inner: inner, pass: []byte(passphrase)}
}

func (s *KV) cipherKey(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.key != nil {
		return s.key, nil
	}

	var salt []byte
	enc, err := s.inner.Get(ctx, SaltKey)
	switch {
	case err == nil:
		salt, err = base64.StdEncoding.DecodeString(enc)
		if err != nil {
			return nil, fmt.Errorf("decode salt: %w", err)
		}
	case errors.Is(err, errs.ErrNotFound):
		salt, err = clientcrypto.Rand(clientcrypto.SaltLen)
		if err != nil {
			return nil, err
		}
		if err := s.inner.Set(ctx, SaltKey, base64.StdEncoding.EncodeToString(salt)); err != nil {
			return nil, fmt.Errorf("store salt: %w", err)
		}
	default:
		return nil, err
	}

	key, err := clientcrypto.DeriveSubkey(clientcrypto.DeriveKEK(s.pass, salt), purpose)
	if err != nil {
		return nil, err
	}
	s.key = key
	return key, nil
}

func (s *KV) seal(key []byte, name, value string) (string, error) {
	ct, err := clientcrypto.Seal(key, []byte(name), []byte(value))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ct), nil
}

func (s *KV) Get(ctx context.Context, name string) (string, error) {
	raw, err := s.inner.Get(ctx, name)
	if err != nil {
		return "", err
	}
	key, err := s.cipherKey(ctx)
	if err != nil {
		return "", err
	}
	ct, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", fmt.Errorf("sealed %s: %w", name, err)
	}
	pt, err := clientcrypto.Open(key, []byte(name), ct)
	if err != nil {
		return "", fmt.Errorf("sealed %s: %w", name, err)
	}
	return string(pt), nil
}

func (s *KV) Set(ctx context.Context, name, value string) error {
	key, err := s.cipherKey(ctx)
	if err != nil {
		return err
	}
	v, err := s.seal(key, name, value)
	if err != nil {
		return err
	}
	return s.inner.Set(ctx, name, v)
}

// SetMany seals every entry and hands them to the backend in one batch.
func (s *KV) SetMany(ctx context.Context, entries map[string]string) error {
	key, err := s.cipherKey(ctx)
	if err != nil {
		return err
	}
	out := make(map[string]string, len(entries))
	for name, value := range entries {
		v, err := s.seal(key, name, value)
		if err != nil {
			return err
		}
		out[name] = v
	}
	return repository.SetAll(ctx, s.inner, out)
}

func (s *KV) Remove(ctx context.Context, name string) error {
	return s.inner.Remove(ctx, name)
}

func (s *KV) RemoveMany(ctx context.Context, names ...string) error {
	return repository.RemoveAll(ctx, s.inner, names...)
}
