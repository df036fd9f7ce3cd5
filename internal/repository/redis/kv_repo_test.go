package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/and161185/timetable-client/internal/errs"
	"github.com/and161185/timetable-client/internal/repository"
)

var (
	_ repository.BatchRemover = (*KV)(nil)
	_ repository.BatchSetter  = (*KV)(nil)
)

func newKV(t *testing.T, profile string) (*KV, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = c.Close() })
	return New(c, profile), mr
}

func TestKV_SetGetRemove(t *testing.T) {
	s, mr := newKV(t, "")
	ctx := context.Background()

	_, err := s.Get(ctx, "access_token")
	require.ErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, s.Set(ctx, "access_token", "tok"))
	require.Equal(t, "tok", mr.HGet("timetable:session:default", "access_token"))

	v, err := s.Get(ctx, "access_token")
	require.NoError(t, err)
	require.Equal(t, "tok", v)

	require.NoError(t, s.Remove(ctx, "access_token"))
	_, err = s.Get(ctx, "access_token")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestKV_RemoveManyKeepsOtherFields(t *testing.T) {
	s, mr := newKV(t, "staff")
	ctx := context.Background()
	mr.HSet("timetable:session:staff", "access_token", "a", "tenant_slug", "gym", "language", "cs")

	require.NoError(t, s.RemoveMany(ctx, "access_token", "tenant_slug"))
	require.NoError(t, s.RemoveMany(ctx))

	require.Equal(t, "", mr.HGet("timetable:session:staff", "access_token"))
	require.Equal(t, "cs", mr.HGet("timetable:session:staff", "language"))
}

func TestOpen_BadURL(t *testing.T) {
	_, _, err := Open(context.Background(), "://nope", "")
	require.Error(t, err)
}

func TestOpen_OK(t *testing.T) {
	mr := miniredis.RunT(t)
	s, c, err := Open(context.Background(), "redis://"+mr.Addr()+"/0", "p")
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, s.Set(context.Background(), "k", "v"))
	require.Equal(t, "v", mr.HGet("timetable:session:p", "k"))
}

func TestKV_SetMany(t *testing.T) {
	s, mr := newKV(t, "")
	ctx := context.Background()
	require.NoError(t, s.SetMany(ctx, map[string]string{"tenant_slug": "gym", "school_id": "3"}))
	require.NoError(t, s.SetMany(ctx, nil))
	require.Equal(t, "gym", mr.HGet("timetable:session:default", "tenant_slug"))
	require.Equal(t, "3", mr.HGet("timetable:session:default", "school_id"))
}
