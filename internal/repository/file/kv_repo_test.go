package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/and161185/timetable-client/internal/errs"
	"github.com/and161185/timetable-client/internal/repository"
)

var _ repository.KV = (*KV)(nil)

func withTmpConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return filepath.Join(dir, "timetable")
}

func TestConfigDir_XDG(t *testing.T) {
	want := withTmpConfig(t)
	if got := ConfigDir(); got != want {
		t.Fatalf("ConfigDir=%q, want %q", got, want)
	}
}

func TestKV_RoundTripAcrossInstances(t *testing.T) {
	dir := withTmpConfig(t)
	ctx := context.Background()

	s := New(dir, nil)
	_, err := s.Get(ctx, "access_token")
	require.ErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, s.Set(ctx, "access_token", "tok"))
	require.NoError(t, s.Set(ctx, "school_id", "7"))

	// a second process sees the same entries
	s2 := New(dir, nil)
	v, err := s2.Get(ctx, "school_id")
	require.NoError(t, err)
	require.Equal(t, "7", v)

	fi, err := os.Stat(s.Path())
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), fi.Mode().Perm())
}

func TestKV_RemoveMany(t *testing.T) {
	dir := withTmpConfig(t)
	ctx := context.Background()
	s := New(dir, nil)

	require.NoError(t, s.Set(ctx, "a", "1"))
	require.NoError(t, s.Set(ctx, "language", "cs"))
	require.NoError(t, s.RemoveMany(ctx, "a", "missing"))
	require.NoError(t, s.Remove(ctx, "nothing-here"))

	_, err := s.Get(ctx, "a")
	require.ErrorIs(t, err, errs.ErrNotFound)
	v, err := s.Get(ctx, "language")
	require.NoError(t, err)
	require.Equal(t, "cs", v)
}

func TestKV_CorruptFile(t *testing.T) {
	dir := withTmpConfig(t)
	s := New(dir, nil)
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0o600))

	_, err := s.Get(context.Background(), "a")
	require.Error(t, err)
	require.NotErrorIs(t, err, errs.ErrNotFound)
}

func TestKV_WatchSeesExternalWrite(t *testing.T) {
	dir := withTmpConfig(t)
	s := New(dir, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fired := make(chan struct{}, 16)
	done := make(chan error, 1)
	go func() {
		done <- s.Watch(ctx, func() { fired <- struct{}{} })
	}()

	other := New(dir, nil)
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-fired:
			cancel()
			require.NoError(t, <-done)
			return
		case <-tick.C:
			// keep writing until the watcher has been registered
			require.NoError(t, other.Set(context.Background(), "access_token", time.Now().String()))
		case <-deadline:
			t.Fatalf("watch callback never fired")
		}
	}
}
