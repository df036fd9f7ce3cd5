// Package file stores session entries in a JSON document under the user's
// config directory.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/and161185/timetable-client/internal/errs"
)

// DefaultName is the file name used inside the config directory.
const DefaultName = "session.json"

// ConfigDir returns $XDG_CONFIG_HOME/timetable or ~/.config/timetable.
func ConfigDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "timetable")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "timetable")
}

// KV is a repository.KV backed by a single JSON object on disk. Every
// mutation rewrites the whole file through a temp file and rename.
type KV struct {
	path string
	log  *zap.Logger
	mu   sync.Mutex
}

// New returns a store writing to dir/DefaultName. The directory is created lazily.
func New(dir string, log *zap.Logger) *KV {
	if log == nil {
		log = zap.NewNop()
	}
	return &KV{path: filepath.Join(dir, DefaultName), log: log}
}

// Path returns the backing file.
func (s *KV) Path() string { return s.path }

func (s *KV) load() (map[string]string, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	m := map[string]string{}
	if len(b) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *KV) save(m map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*.json")
	if err != nil {
		return err
	}
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func (s *KV) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return "", err
	}
	v, ok := m[key]
	if !ok {
		return "", errs.ErrNotFound
	}
	return v, nil
}

func (s *KV) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return err
	}
	m[key] = value
	return s.save(m)
}

// SetMany writes all entries with a single rewrite.
func (s *KV) SetMany(_ context.Context, entries map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return err
	}
	for k, v := range entries {
		m[k] = v
	}
	return s.save(m)
}

func (s *KV) Remove(ctx context.Context, key string) error {
	return s.RemoveMany(ctx, key)
}

// RemoveMany drops keys with a single rewrite.
func (s *KV) RemoveMany(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return err
	}
	changed := false
	for _, k := range keys {
		if _, ok := m[k]; ok {
			delete(m, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.save(m)
}

// Watch calls fn after every external write to the backing file until ctx
// is done. The directory is watched rather than the file, since saves
// replace the file by rename.
func (s *KV) Watch(ctx context.Context, fn func()) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}

	name := filepath.Base(s.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				fn()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("store watch", zap.String("path", s.path), zap.Error(err))
		}
	}
}
