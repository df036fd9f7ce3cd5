package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/timetable-client/internal/errs"
)

// KVRepo implements repository.KV on the session_kv table.
type KVRepo struct {
	db      *DB
	profile string
}

// NewKVRepo constructs a key-value repository scoped to profile.
func NewKVRepo(db *DB, profile string) *KVRepo {
	if profile == "" {
		profile = "default"
	}
	return &KVRepo{db: db, profile: profile}
}

// Get selects a value by key.
func (r *KVRepo) Get(ctx context.Context, key string) (string, error) {
	const q = `
SELECT value FROM session_kv WHERE profile=$1 AND key=$2`
	var v string
	if err := r.db.Pool.QueryRow(ctx, q, r.profile, key).Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", errs.ErrNotFound
		}
		return "", err
	}
	return v, nil
}

// Set upserts a value.
func (r *KVRepo) Set(ctx context.Context, key, value string) error {
	const q = `
INSERT INTO session_kv (profile, key, value, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (profile, key) DO UPDATE SET value=EXCLUDED.value, updated_at=now()`
	_, err := r.db.Pool.Exec(ctx, q, r.profile, key, value)
	return err
}

// SetMany upserts all entries in one transaction.
func (r *KVRepo) SetMany(ctx context.Context, entries map[string]string) error {
	if len(entries) == 0 {
		return nil
	}
	const q = `
INSERT INTO session_kv (profile, key, value, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (profile, key) DO UPDATE SET value=EXCLUDED.value, updated_at=now()`
	return r.db.InTx(ctx, func(tx pgx.Tx) error {
		for k, v := range entries {
			if _, err := tx.Exec(ctx, q, r.profile, k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

// Remove deletes a key. Missing keys are not an error.
func (r *KVRepo) Remove(ctx context.Context, key string) error {
	const q = `
DELETE FROM session_kv WHERE profile=$1 AND key=$2`
	_, err := r.db.Pool.Exec(ctx, q, r.profile, key)
	return err
}

// RemoveMany deletes all keys in one statement.
func (r *KVRepo) RemoveMany(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	const q = `
DELETE FROM session_kv WHERE profile=$1 AND key = ANY($2)`
	_, err := r.db.Pool.Exec(ctx, q, r.profile, keys)
	return err
}
