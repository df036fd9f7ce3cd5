// Package redis implements repository.KV on a Redis hash, so several
// terminals or hosts can share one session profile.
package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/and161185/timetable-client/internal/errs"
)

const keyPrefix = "timetable:session:"

// KV stores every entry of a profile as a field of one hash.
type KV struct {
	rdb  goredis.Cmdable
	hash string
}

// New wraps an existing client. Profile separates independent sessions.
func New(rdb goredis.Cmdable, profile string) *KV {
	if profile == "" {
		profile = "default"
	}
	return &KV{rdb: rdb, hash: keyPrefix + profile}
}

// Open parses a redis:// URL, pings the server and returns the store with
// its client for the caller to close.
func Open(ctx context.Context, url, profile string) (*KV, *goredis.Client, error) {
	opt, err := goredis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	c := goredis.NewClient(opt)
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	return New(c, profile), c, nil
}

func (s *KV) Get(ctx context.Context, key string) (string, error) {
	v, err := s.rdb.HGet(ctx, s.hash, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", errs.ErrNotFound
	}
	return v, err
}

func (s *KV) Set(ctx context.Context, key, value string) error {
	return s.rdb.HSet(ctx, s.hash, key, value).Err()
}

func (s *KV) Remove(ctx context.Context, key string) error {
	return s.rdb.HDel(ctx, s.hash, key).Err()
}

// SetMany writes all entries with one HSET.
func (s *KV) SetMany(ctx context.Context, entries map[string]string) error {
	if len(entries) == 0 {
		return nil
	}
	return s.rdb.HSet(ctx, s.hash, entries).Err()
}

// RemoveMany drops all keys with one HDEL.
func (s *KV) RemoveMany(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.rdb.HDel(ctx, s.hash, keys...).Err()
}
