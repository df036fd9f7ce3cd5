// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"
	"errors"
)

// KV is the durable client-side key-value store the session persists into.
type KV interface {
	// Get returns the value for key or errs.ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// Remove deletes key; removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}

// BatchRemover is implemented by backends that can drop several keys in one
// atomic step.
type BatchRemover interface {
	RemoveMany(ctx context.Context, keys ...string) error
}

// BatchSetter is implemented by backends that can write several entries in
// one atomic step.
type BatchSetter interface {
	SetMany(ctx context.Context, entries map[string]string) error
}

// SetAll writes entries to kv, atomically when the backend supports it.
func SetAll(ctx context.Context, kv KV, entries map[string]string) error {
	if bs, ok := kv.(BatchSetter); ok {
		return bs.SetMany(ctx, entries)
	}
	for k, v := range entries {
		if err := kv.Set(ctx, k, v); err != nil {
			return err
		}
	}
	return nil
}

// RemoveAll drops keys from kv, atomically when the backend supports it.
func RemoveAll(ctx context.Context, kv KV, keys ...string) error {
	if br, ok := kv.(BatchRemover); ok {
		return br.RemoveMany(ctx, keys...)
	}
	var errList []error
	for _, k := range keys {
		if err := kv.Remove(ctx, k); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}
